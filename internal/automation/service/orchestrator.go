// Package service contains the trigger orchestrator: the façade that reacts
// to inspection workflow events, filters the inspection's configured
// triggers, plans their timing and either delivers immediately or defers to
// the persistent queue.
package service

import (
	"context"
	"fmt"
	"time"

	"inspection_portal/internal/automation/change"
	"inspection_portal/internal/automation/condition"
	"inspection_portal/internal/automation/domain"
	"inspection_portal/internal/automation/queue"
	"inspection_portal/internal/automation/timing"
	"inspection_portal/internal/events"
	inspection "inspection_portal/internal/inspections/domain"
	"inspection_portal/platform/logger"

	"github.com/google/uuid"
)

// InspectionStore is the read/write boundary to the inspection persistence
// layer. GetSnapshot returns the full projection including the trigger list;
// SetTriggerSent records firing outcomes with compare-and-set semantics for
// once-only triggers.
type InspectionStore interface {
	GetSnapshot(ctx context.Context, inspectionID uuid.UUID) (inspection.Snapshot, error)
	SetTriggerSent(ctx context.Context, inspectionID uuid.UUID, triggerIndex int, status domain.TriggerStatus, sentAt *time.Time) error
}

// Orchestrator drives trigger evaluation for one event at a time. It holds
// no per-inspection state; instances are safe to scale horizontally.
type Orchestrator struct {
	store    InspectionStore
	queue    queue.Queue
	eval     *condition.Evaluator
	delivery Delivery
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time
}

func NewOrchestrator(store InspectionStore, q queue.Queue, eval *condition.Evaluator, delivery Delivery, bus events.Bus, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		queue:    q,
		eval:     eval,
		delivery: delivery,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	if now != nil {
		o.now = now
	}
}

// OnEvent runs every configured trigger of the inspection against the
// incoming event key. Trigger-level failures are contained: they are logged
// and surfaced on the activity log, never returned, so the caller's
// inspection mutation is not aborted by a notification problem.
//
// The payment and agreement keys have dedicated entry points that enforce
// mutual exclusion with the combined signed-and-paid event; they are routed
// there so no caller can double-notify around that rule.
func (o *Orchestrator) OnEvent(ctx context.Context, inspectionID uuid.UUID, key domain.TriggerKey) error {
	switch key {
	case domain.KeyInspectionFullyPaid, domain.KeySignedAndPaid:
		return o.OnPaymentEvent(ctx, inspectionID)
	case domain.KeyAllAgreementsSigned:
		return o.OnAgreementSigned(ctx, inspectionID, false)
	}

	snap, err := o.store.GetSnapshot(ctx, inspectionID)
	if err != nil {
		return fmt.Errorf("load inspection snapshot: %w", err)
	}
	o.runTriggers(ctx, snap, key)
	return nil
}

func (o *Orchestrator) runTriggers(ctx context.Context, snap inspection.Snapshot, key domain.TriggerKey) {
	for idx, cfg := range snap.Triggers {
		o.processTrigger(ctx, snap, idx, cfg, key)
	}
}

// processTrigger is the Received event -> Filter -> Time-plan -> [Fire |
// Defer | Skip] pipeline for a single trigger slot.
func (o *Orchestrator) processTrigger(ctx context.Context, snap inspection.Snapshot, idx int, cfg domain.TriggerConfig, key domain.TriggerKey) {
	if cfg.IsDisabled {
		return
	}
	if cfg.AutomationTrigger != key {
		return
	}
	if key.RequiresConfirmed() && !snap.ConfirmedInspection {
		o.log.AutomationSkipped(snap.ID, idx, "inspection not confirmed")
		return
	}
	if snap.DisableAutomatedNotifications && !cfg.SendEvenWhenNotificationsDisabled {
		o.log.AutomationSkipped(snap.ID, idx, "notifications disabled on inspection")
		return
	}
	if cfg.OnlyTriggerOnce && cfg.SentAt != nil {
		o.log.AutomationSkipped(snap.ID, idx, "once-only trigger already sent")
		return
	}

	plan := timing.Plan(cfg, snap, key, o.now())
	switch {
	case plan.Skip:
		o.log.AutomationSkipped(snap.ID, idx, plan.SkipReason)

	case plan.ExecutionTime != nil:
		o.deferTrigger(ctx, snap, idx, cfg, *plan.ExecutionTime)

	case plan.FireNow:
		o.executeNow(ctx, snap, idx, cfg)
	}
}

func (o *Orchestrator) deferTrigger(ctx context.Context, snap inspection.Snapshot, idx int, cfg domain.TriggerConfig, at time.Time) {
	rec := queue.Record{
		InspectionID:  snap.ID,
		TriggerIndex:  idx,
		ExecutionTime: at,
		TriggerKey:    cfg.AutomationTrigger,
	}
	if err := o.queue.Enqueue(ctx, rec); err != nil {
		// The trigger is lost for this cycle; the engine does not retry
		// enqueues itself.
		o.log.WithInspection(snap.ID).Error("trigger deferral failed",
			"trigger_index", idx,
			"execution_time", at,
			"error", err,
		)
		return
	}

	if o.bus != nil {
		o.bus.Publish(ctx, events.AutomationDeferred{
			BaseEvent:    events.NewBaseEvent(),
			InspectionID: snap.ID,
			TriggerIndex: idx,
			TriggerKey:   cfg.AutomationTrigger,
		})
	}
}

// executeNow evaluates the trigger's conditions and delivers. Delivery
// failures mark the trigger bounced with sentAt left unset, so a once-only
// trigger may still fire on a later matching event.
func (o *Orchestrator) executeNow(ctx context.Context, snap inspection.Snapshot, idx int, cfg domain.TriggerConfig) {
	if !o.eval.EvaluateAll(ctx, cfg.Conditions, cfg.ConditionLogic, snap) {
		o.log.AutomationSkipped(snap.ID, idx, "conditions not met")
		return
	}

	if len(cfg.Recipients.To) == 0 {
		o.log.AutomationSkipped(snap.ID, idx, "no recipients configured")
		return
	}

	if err := o.deliver(ctx, cfg); err != nil {
		o.log.DeliveryFailure(snap.ID, idx, string(cfg.CommunicationType), err)
		if storeErr := o.store.SetTriggerSent(ctx, snap.ID, idx, domain.StatusBounced, nil); storeErr != nil {
			o.log.DatabaseError("mark trigger bounced", storeErr)
		}
		if o.bus != nil {
			o.bus.Publish(ctx, events.AutomationFailed{
				BaseEvent:    events.NewBaseEvent(),
				InspectionID: snap.ID,
				TriggerIndex: idx,
				TriggerKey:   cfg.AutomationTrigger,
				Channel:      cfg.CommunicationType,
				Reason:       err.Error(),
			})
		}
		return
	}

	sentAt := o.now()
	if err := o.store.SetTriggerSent(ctx, snap.ID, idx, domain.StatusSent, &sentAt); err != nil {
		o.log.DatabaseError("mark trigger sent", err)
	}
	if o.bus != nil {
		o.bus.Publish(ctx, events.AutomationSent{
			BaseEvent:    events.NewBaseEvent(),
			InspectionID: snap.ID,
			TriggerIndex: idx,
			TriggerKey:   cfg.AutomationTrigger,
			Channel:      cfg.CommunicationType,
		})
	}
}

func (o *Orchestrator) deliver(ctx context.Context, cfg domain.TriggerConfig) error {
	switch cfg.CommunicationType {
	case domain.CommunicationText:
		return o.delivery.SendSMS(ctx, SMSMessage{
			To:   cfg.Recipients.To,
			Body: cfg.Body,
		})
	case domain.CommunicationEmail:
		return o.delivery.SendEmail(ctx, EmailMessage{
			To:       cfg.Recipients.To,
			CC:       cfg.Recipients.CC,
			BCC:      cfg.Recipients.BCC,
			From:     cfg.From,
			Subject:  cfg.Subject,
			HTMLBody: cfg.Body,
		})
	default:
		return fmt.Errorf("unknown communication type %q", cfg.CommunicationType)
	}
}

// ExecuteQueued is the poller replay path: a due record pops out of the
// queue and re-enters the immediate-execution pipeline. Every filter gate
// runs again because the configuration may have changed while the record
// waited.
func (o *Orchestrator) ExecuteQueued(ctx context.Context, rec queue.Record) error {
	snap, err := o.store.GetSnapshot(ctx, rec.InspectionID)
	if err != nil {
		return fmt.Errorf("load inspection snapshot: %w", err)
	}

	if rec.TriggerIndex < 0 || rec.TriggerIndex >= len(snap.Triggers) {
		o.log.AutomationSkipped(snap.ID, rec.TriggerIndex, "queued trigger index out of range")
		return nil
	}

	cfg := snap.Triggers[rec.TriggerIndex]
	if cfg.AutomationTrigger != rec.TriggerKey {
		// The trigger slot was reconfigured after the record was enqueued.
		o.log.AutomationSkipped(snap.ID, rec.TriggerIndex, "queued record superseded by config change")
		return nil
	}
	if rec.TriggerKey.RequiresConfirmed() && !snap.ConfirmedInspection {
		o.log.AutomationSkipped(snap.ID, rec.TriggerIndex, "inspection not confirmed")
		return nil
	}
	if cfg.IsDisabled {
		o.log.AutomationSkipped(snap.ID, rec.TriggerIndex, "trigger disabled")
		return nil
	}
	if snap.DisableAutomatedNotifications && !cfg.SendEvenWhenNotificationsDisabled {
		o.log.AutomationSkipped(snap.ID, rec.TriggerIndex, "notifications disabled on inspection")
		return nil
	}
	if cfg.OnlyTriggerOnce && cfg.SentAt != nil {
		o.log.AutomationSkipped(snap.ID, rec.TriggerIndex, "once-only trigger already sent")
		return nil
	}

	o.executeNow(ctx, snap, rec.TriggerIndex, cfg)
	return nil
}

// OnAnchorDateChanged supersedes stale timers after a user edits the
// closing date, end-of-period date or the inspection start/end time. Every
// anchor-dated trigger is removed from the queue and replanned; a newly
// computed time in the past fires immediately.
func (o *Orchestrator) OnAnchorDateChanged(ctx context.Context, inspectionID uuid.UUID) error {
	snap, err := o.store.GetSnapshot(ctx, inspectionID)
	if err != nil {
		return fmt.Errorf("load inspection snapshot: %w", err)
	}

	for idx, cfg := range snap.Triggers {
		if !cfg.AutomationTrigger.AnchorDated() {
			continue
		}

		if err := o.queue.Remove(ctx, inspectionID, idx); err != nil {
			o.log.WithInspection(inspectionID).Error("remove superseded queue entry",
				"trigger_index", idx,
				"error", err,
			)
			// Enqueue upserts by slot, so replanning still cannot
			// duplicate the record.
		}

		o.processTrigger(ctx, snap, idx, cfg, cfg.AutomationTrigger)
	}
	return nil
}

// CancelInspection removes every pending queue entry for an inspection,
// used when an inspection is deleted or canceled.
func (o *Orchestrator) CancelInspection(ctx context.Context, inspectionID uuid.UUID) error {
	records, err := o.queue.ListForInspection(ctx, inspectionID, false)
	if err != nil {
		return fmt.Errorf("list queue entries: %w", err)
	}
	for _, rec := range records {
		if err := o.queue.Remove(ctx, inspectionID, rec.TriggerIndex); err != nil {
			return fmt.Errorf("remove queue entry %d: %w", rec.TriggerIndex, err)
		}
	}
	return nil
}

// PendingForInspection lists the inspection's scheduled automations for the
// "pending automations" display.
func (o *Orchestrator) PendingForInspection(ctx context.Context, inspectionID uuid.UUID) ([]queue.Record, error) {
	return o.queue.ListForInspection(ctx, inspectionID, true)
}

// =============================================================================
// Collection change detection
// =============================================================================

// OnPricingChanged detects service/add-on and fee edits in one pass over
// the pricing line items and fires the corresponding added/removed events.
func (o *Orchestrator) OnPricingChanged(ctx context.Context, inspectionID uuid.UUID, before, after []inspection.PricingItem) error {
	snap, err := o.store.GetSnapshot(ctx, inspectionID)
	if err != nil {
		return fmt.Errorf("load inspection snapshot: %w", err)
	}

	services := change.Detect(before, after, change.ServiceKey)
	o.fireDiff(ctx, snap, services, domain.KeyServicesAdded, domain.KeyServicesRemoved)

	fees := change.Detect(before, after, change.FeeKey)
	o.fireDiff(ctx, snap, fees, domain.KeyFeesAdded, domain.KeyFeesRemoved)
	return nil
}

// OnAgreementsChanged fires agreement added/removed events. Signing an
// existing agreement is not a collection change; it goes through
// OnAgreementSigned.
func (o *Orchestrator) OnAgreementsChanged(ctx context.Context, inspectionID uuid.UUID, before, after []inspection.Agreement) error {
	snap, err := o.store.GetSnapshot(ctx, inspectionID)
	if err != nil {
		return fmt.Errorf("load inspection snapshot: %w", err)
	}

	diff := change.Detect(before, after, change.AgreementKey)
	o.fireDiff(ctx, snap, diff, domain.KeyAgreementsAdded, domain.KeyAgreementsRemoved)
	return nil
}

// OnDocumentsChanged fires document added/removed events for the
// inspection's attachments.
func (o *Orchestrator) OnDocumentsChanged(ctx context.Context, inspectionID uuid.UUID, before, after []string) error {
	snap, err := o.store.GetSnapshot(ctx, inspectionID)
	if err != nil {
		return fmt.Errorf("load inspection snapshot: %w", err)
	}

	diff := change.Detect(before, after, change.DocumentKey)
	o.fireDiff(ctx, snap, diff, domain.KeyDocumentsAdded, domain.KeyDocumentsRemoved)
	return nil
}

func (o *Orchestrator) fireDiff(ctx context.Context, snap inspection.Snapshot, diff change.Diff, addedKey, removedKey domain.TriggerKey) {
	if diff.Added {
		o.runTriggers(ctx, snap, addedKey)
	}
	if diff.Removed {
		o.runTriggers(ctx, snap, removedKey)
	}
}

// =============================================================================
// Payment / agreement mutual exclusion
// =============================================================================

// OnPaymentEvent reacts to the inspection becoming fully paid. When all
// agreements are also signed, only the combined event fires; the plain
// fully-paid event is suppressed so both conditions becoming true at once
// never double-notifies.
func (o *Orchestrator) OnPaymentEvent(ctx context.Context, inspectionID uuid.UUID) error {
	snap, err := o.store.GetSnapshot(ctx, inspectionID)
	if err != nil {
		return fmt.Errorf("load inspection snapshot: %w", err)
	}

	if !snap.IsPaid {
		return nil
	}

	if snap.AllAgreementsSigned() {
		o.runTriggers(ctx, snap, domain.KeySignedAndPaid)
		return nil
	}

	o.runTriggers(ctx, snap, domain.KeyInspectionFullyPaid)
	return nil
}

// OnAgreementSigned is the symmetric rule: prevAllSigned reports whether
// every agreement was already signed before this signing, so the
// all-signed event fires only on the transition.
func (o *Orchestrator) OnAgreementSigned(ctx context.Context, inspectionID uuid.UUID, prevAllSigned bool) error {
	snap, err := o.store.GetSnapshot(ctx, inspectionID)
	if err != nil {
		return fmt.Errorf("load inspection snapshot: %w", err)
	}

	if !snap.AllAgreementsSigned() || prevAllSigned {
		return nil
	}

	if snap.IsPaid {
		o.runTriggers(ctx, snap, domain.KeySignedAndPaid)
		return nil
	}

	o.runTriggers(ctx, snap, domain.KeyAllAgreementsSigned)
	return nil
}
