// Package timing converts a trigger's configuration into a scheduling
// decision: fire now, defer to a concrete instant, or skip. Plan is a pure
// function of its inputs, which is what makes recomputation on anchor-date
// changes safe to run repeatedly.
package timing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"inspection_portal/internal/automation/domain"
	inspection "inspection_portal/internal/inspections/domain"
)

// Result is the outcome of planning one trigger against one event.
// Exactly one of the three shapes holds: Skip, FireNow, or a non-nil
// ExecutionTime (the trigger will fire, just not now).
type Result struct {
	FireNow       bool
	ExecutionTime *time.Time
	Skip          bool
	SkipReason    string
}

func skip(reason string) Result {
	return Result{Skip: true, SkipReason: reason}
}

func deferTo(t time.Time) Result {
	return Result{ExecutionTime: &t}
}

// Plan decides when the trigger fires for the incoming event. The check
// order is load-bearing: later steps assume earlier ones passed.
func Plan(cfg domain.TriggerConfig, snap inspection.Snapshot, eventKey domain.TriggerKey, now time.Time) Result {
	// 1. The trigger must be bound to the incoming event.
	if cfg.AutomationTrigger != eventKey {
		return skip("event mismatch")
	}

	// 2. Once-only triggers that already fired never fire again. The
	// orchestrator checks this too; keeping it here guards the poller
	// replay path against at-least-once queue semantics.
	if cfg.OnlyTriggerOnce && cfg.SentAt != nil {
		return skip("already sent")
	}

	// 3. Allowed-hours window, with optional weekend exclusion inside it.
	if cfg.SendDuringCertainHoursOnly {
		start, okStart := parseMinuteOfDay(cfg.StartTime)
		end, okEnd := parseMinuteOfDay(cfg.EndTime)
		if !okStart || !okEnd {
			return skip(fmt.Sprintf("malformed send window %q-%q", cfg.StartTime, cfg.EndTime))
		}

		minute := now.Hour()*60 + now.Minute()
		inWindow := minute >= start && minute < end
		if !inWindow || (cfg.DoNotSendOnWeekends && isWeekend(now)) {
			return deferTo(nextWindowStart(now, minute, start, cfg.DoNotSendOnWeekends))
		}
	} else if cfg.DoNotSendOnWeekends && isWeekend(now) {
		// 4. Weekend exclusion alone rolls to the start of Monday.
		return deferTo(nextMonday(now))
	}

	// 5. Anchor-dated triggers schedule relative to an inspection date.
	if eventKey.AnchorDated() {
		anchor := snap.AnchorDate(eventKey)
		if anchor == nil {
			return skip("anchor date not set")
		}

		unit := cfg.SendDelayUnit.Duration()
		if cfg.SendDelay > 0 && unit == 0 {
			return skip(fmt.Sprintf("unknown delay unit %q", cfg.SendDelayUnit))
		}

		delay := time.Duration(cfg.SendDelay) * unit
		execution := anchor.Add(delay)
		if cfg.SendTiming == domain.TimingBefore {
			execution = anchor.Add(-delay)
		}

		if !execution.After(now) {
			return Result{FireNow: true}
		}
		return deferTo(execution)
	}

	// 6. Plain event-driven trigger with no restriction in effect.
	return Result{FireNow: true}
}

// nextWindowStart finds the next instant inside the allowed window. Outside
// the window it is the coming start-of-window (later today when the window
// has not opened yet, otherwise tomorrow); with weekends excluded it rolls
// forward day by day until a weekday.
func nextWindowStart(now time.Time, minute, start int, skipWeekends bool) time.Time {
	candidate := atMinute(now, start)
	if minute >= start {
		candidate = candidate.AddDate(0, 0, 1)
	}
	for skipWeekends && isWeekend(candidate) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// nextMonday returns the start of the next Monday after now.
func nextMonday(now time.Time) time.Time {
	candidate := atMinute(now, 0).AddDate(0, 0, 1)
	for candidate.Weekday() != time.Monday {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func atMinute(day time.Time, minuteOfDay int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minuteOfDay/60, minuteOfDay%60, 0, 0, day.Location())
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// parseMinuteOfDay parses "HH:MM" into minutes since midnight.
func parseMinuteOfDay(s string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	min, err := strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return 0, false
	}
	return hour*60 + min, true
}
