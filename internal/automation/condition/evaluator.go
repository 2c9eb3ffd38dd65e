// Package condition evaluates trigger conditions against an inspection
// snapshot. Evaluation is fail-closed: malformed configuration, unknown
// operators and missing referenced data all evaluate to false, never to an
// error that could abort the surrounding event handling.
package condition

import (
	"context"
	"strings"

	"inspection_portal/internal/automation/domain"
	inspection "inspection_portal/internal/inspections/domain"
	"inspection_portal/platform/logger"

	"github.com/google/uuid"
)

// Lookups resolves referenced entities the snapshot does not carry itself.
// Implementations must be read-only; the evaluator calls them at most once
// per condition.
type Lookups interface {
	// ServiceCategoryIDs returns the category ids of the given services.
	ServiceCategoryIDs(ctx context.Context, serviceIDs []uuid.UUID) ([]uuid.UUID, error)
	// ContactCategoryID returns the category a contact belongs to, if any.
	ContactCategoryID(ctx context.Context, contactID uuid.UUID) (uuid.UUID, bool, error)
	// EventNames returns the calendar event names attached to an inspection.
	EventNames(ctx context.Context, inspectionID uuid.UUID) ([]string, error)
}

// Evaluator applies conditions to snapshots. It holds no mutable state and
// is safe for concurrent use.
type Evaluator struct {
	lookups Lookups
	log     *logger.Logger
}

func New(lookups Lookups, log *logger.Logger) *Evaluator {
	return &Evaluator{lookups: lookups, log: log}
}

// EvaluateAll combines conditions with the given logic. An empty condition
// list always evaluates true: absence of conditions means "always".
func (e *Evaluator) EvaluateAll(ctx context.Context, conditions []domain.Condition, logic domain.Logic, snap inspection.Snapshot) bool {
	if len(conditions) == 0 {
		return true
	}

	for _, cond := range conditions {
		met := e.Evaluate(ctx, cond, snap)
		if logic == domain.LogicOr && met {
			return true
		}
		if logic != domain.LogicOr && !met {
			return false
		}
	}

	return logic != domain.LogicOr
}

// Evaluate applies a single condition to the snapshot. Deterministic for
// fixed inputs; never panics or returns an error for well-formed input.
func (e *Evaluator) Evaluate(ctx context.Context, cond domain.Condition, snap inspection.Snapshot) bool {
	switch cond.Type {
	case domain.ConditionInspection:
		return e.evalInspectionFlag(cond, snap)
	case domain.ConditionAgreement:
		return e.evalAgreement(cond, snap)
	case domain.ConditionEventName:
		return e.evalEventName(ctx, cond, snap)
	case domain.ConditionService:
		return e.evalService(cond, snap)
	case domain.ConditionAddons:
		return e.evalAddon(cond, snap)
	case domain.ConditionServiceCategory:
		return e.evalServiceCategory(ctx, cond, snap)
	case domain.ConditionClientCategory:
		return e.evalContactCategory(ctx, cond, snap.Clients)
	case domain.ConditionClientAgentCategory:
		return e.evalContactCategory(ctx, cond, snap.Agents)
	case domain.ConditionListingAgentCat:
		if snap.ListingAgent == nil {
			return false
		}
		return e.evalContactCategory(ctx, cond, []inspection.Party{*snap.ListingAgent})
	case domain.ConditionAllReports:
		return e.evalReports(cond, snap, true)
	case domain.ConditionAnyReports:
		return e.evalReports(cond, snap, false)
	case domain.ConditionYearBuild:
		return compareNumeric(cond.Operator, snap.Location.YearBuild, cond.Number, domain.OpIsOrIsAfter, domain.OpIsBefore)
	case domain.ConditionSquareFeet:
		return compareNumeric(cond.Operator, snap.Location.SquareFeet, cond.Number, domain.OpGreaterOrEqual, domain.OpLessThan)
	case domain.ConditionFoundation:
		return compareText(cond.Operator, snap.Location.Foundation, cond.Value)
	case domain.ConditionZipCode:
		return compareText(cond.Operator, snap.Location.Zip, cond.Value)
	case domain.ConditionCity:
		return compareText(cond.Operator, snap.Location.City, cond.Value)
	case domain.ConditionState:
		return compareText(cond.Operator, snap.Location.State, cond.Value)
	default:
		e.configError(snap, "unknown condition type", string(cond.Type))
		return false
	}
}

func (e *Evaluator) evalInspectionFlag(cond domain.Condition, snap inspection.Snapshot) bool {
	var fact bool
	switch canonical(cond.Value) {
	case canonical(domain.InspectionFlagPaid):
		fact = snap.IsPaid
	case canonical(domain.InspectionFlagConfirmed):
		fact = snap.ConfirmedInspection
	default:
		e.configError(snap, "unknown inspection flag", cond.Value)
		return false
	}

	switch cond.Operator {
	case domain.OpIs:
		return fact
	case domain.OpIsNot:
		return !fact
	default:
		e.configError(snap, "unsupported operator for INSPECTION", string(cond.Operator))
		return false
	}
}

func (e *Evaluator) evalAgreement(cond domain.Condition, snap inspection.Snapshot) bool {
	for _, a := range snap.Agreements {
		if a.AgreementID != cond.RefID {
			continue
		}
		switch cond.Operator {
		case domain.OpIsSigned:
			return a.IsSigned
		case domain.OpIsNotSigned:
			return !a.IsSigned
		default:
			e.configError(snap, "unsupported operator for AGREEMENT", string(cond.Operator))
			return false
		}
	}
	// Referenced agreement not on the inspection: condition not met.
	return false
}

func (e *Evaluator) evalEventName(ctx context.Context, cond domain.Condition, snap inspection.Snapshot) bool {
	if e.lookups == nil {
		return false
	}

	names, err := e.lookups.EventNames(ctx, snap.ID)
	if err != nil {
		e.dataError(snap, "event lookup failed", err)
		return false
	}

	found := false
	for _, name := range names {
		if canonical(name) == canonical(cond.Value) {
			found = true
			break
		}
	}

	switch cond.Operator {
	case domain.OpIs:
		return found
	case domain.OpIsNot:
		return !found
	default:
		e.configError(snap, "unsupported operator for EVENT_NAME", string(cond.Operator))
		return false
	}
}

func (e *Evaluator) evalService(cond domain.Condition, snap inspection.Snapshot) bool {
	found := false
	for _, id := range snap.ServiceIDs() {
		if id == cond.RefID {
			found = true
			break
		}
	}
	return applyMembership(cond.Operator, found, func(op string) {
		e.configError(snap, "unsupported operator for SERVICE", op)
	})
}

func (e *Evaluator) evalAddon(cond domain.Condition, snap inspection.Snapshot) bool {
	found := false
	for _, item := range snap.Pricing {
		if item.Type != inspection.PricingAddon {
			continue
		}
		if canonical(item.AddonName) == canonical(cond.Value) || canonical(item.Name) == canonical(cond.Value) {
			found = true
			break
		}
	}
	return applyMembership(cond.Operator, found, func(op string) {
		e.configError(snap, "unsupported operator for ADDONS", op)
	})
}

func (e *Evaluator) evalServiceCategory(ctx context.Context, cond domain.Condition, snap inspection.Snapshot) bool {
	if e.lookups == nil {
		return false
	}

	serviceIDs := snap.ServiceIDs()
	if len(serviceIDs) == 0 {
		return cond.Operator == domain.OpIsNot
	}

	categoryIDs, err := e.lookups.ServiceCategoryIDs(ctx, serviceIDs)
	if err != nil {
		e.dataError(snap, "service category lookup failed", err)
		return false
	}

	found := false
	for _, id := range categoryIDs {
		if id == cond.RefID {
			found = true
			break
		}
	}
	return applyMembership(cond.Operator, found, func(op string) {
		e.configError(snap, "unsupported operator for SERVICE_CATEGORY", op)
	})
}

func (e *Evaluator) evalContactCategory(ctx context.Context, cond domain.Condition, contacts []inspection.Party) bool {
	if e.lookups == nil {
		return false
	}

	found := false
	for _, contact := range contacts {
		categoryID, ok, err := e.lookups.ContactCategoryID(ctx, contact.ID)
		if err != nil {
			if e.log != nil {
				e.log.Warn("automation condition data error", "reason", "contact category lookup failed", "error", err)
			}
			return false
		}
		if ok && categoryID == cond.RefID {
			found = true
			break
		}
	}

	return applyMembership(cond.Operator, found, func(op string) {
		if e.log != nil {
			e.log.Warn("automation condition config error", "reason", "unsupported operator for category condition", "detail", op)
		}
	})
}

func (e *Evaluator) evalReports(cond domain.Condition, snap inspection.Snapshot, requireAll bool) bool {
	if len(snap.Reports) == 0 {
		return false
	}

	published := 0
	for _, r := range snap.Reports {
		if r.Published {
			published++
		}
	}

	var fact bool
	if requireAll {
		fact = published == len(snap.Reports)
	} else {
		fact = published > 0
	}

	switch cond.Operator {
	case domain.OpArePublished:
		return fact
	case domain.OpAreNotPublished:
		return !fact
	default:
		e.configError(snap, "unsupported operator for report condition", string(cond.Operator))
		return false
	}
}

// applyMembership maps a membership fact through Is / Is Not.
func applyMembership(op domain.Operator, found bool, onBadOp func(string)) bool {
	switch op {
	case domain.OpIs:
		return found
	case domain.OpIsNot:
		return !found
	default:
		onBadOp(string(op))
		return false
	}
}

// compareNumeric preserves the source asymmetry: inclusive on the >= side,
// strict on the < side.
func compareNumeric(op domain.Operator, fact, threshold int, geOp, ltOp domain.Operator) bool {
	if fact == 0 {
		// Unset numeric fact: condition not met.
		return false
	}
	switch op {
	case geOp:
		return fact >= threshold
	case ltOp:
		return fact < threshold
	default:
		return false
	}
}

func compareText(op domain.Operator, fact, value string) bool {
	equal := canonical(fact) == canonical(value)
	switch op {
	case domain.OpIs:
		return equal
	case domain.OpIsNot:
		return !equal
	default:
		return false
	}
}

// canonical trims and lowercases for the case-insensitive string comparisons
// every text condition uses.
func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (e *Evaluator) configError(snap inspection.Snapshot, reason, detail string) {
	if e.log != nil {
		e.log.Warn("automation condition config error", "inspection_id", snap.ID, "reason", reason, "detail", detail)
	}
}

func (e *Evaluator) dataError(snap inspection.Snapshot, reason string, err error) {
	if e.log != nil {
		e.log.Warn("automation condition data error", "inspection_id", snap.ID, "reason", reason, "error", err)
	}
}
