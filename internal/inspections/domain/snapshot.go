// Package domain defines the read-only inspection projection consumed by the
// automation engine. The engine never mutates a snapshot; trigger status
// updates go through the repository.
package domain

import (
	"time"

	"inspection_portal/internal/automation/domain"

	"github.com/google/uuid"
)

// Party is a client or agent attached to an inspection. Category membership
// is resolved through the reference data store by contact id.
type Party struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
}

// Agreement is one inspection agreement and its signing state.
type Agreement struct {
	AgreementID uuid.UUID `json:"agreementId"`
	Name        string    `json:"name"`
	IsSigned    bool      `json:"isSigned"`
}

// PricingItemType classifies a pricing line item.
type PricingItemType string

const (
	PricingService PricingItemType = "service"
	PricingAddon   PricingItemType = "addon"
	PricingFee     PricingItemType = "fee"
)

// PricingItem is one line item on the inspection order.
type PricingItem struct {
	Type       PricingItemType `json:"type"`
	ServiceID  uuid.UUID       `json:"serviceId,omitempty"`
	AddonName  string          `json:"addonName,omitempty"`
	Name       string          `json:"name"`
	PriceCents int64           `json:"priceCents"`
}

// Report is one published or pending inspection report.
type Report struct {
	URL       string `json:"url"`
	Published bool   `json:"published"`
}

// Location holds the property address and physical attributes.
type Location struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zip        string `json:"zip"`
	County     string `json:"county,omitempty"`
	YearBuild  int    `json:"yearBuild,omitempty"`
	Foundation string `json:"foundation,omitempty"`
	SquareFeet int    `json:"squareFeet,omitempty"`
}

// Snapshot is the read-only projection of an inspection at evaluation time.
type Snapshot struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"companyId"`

	Location Location `json:"location"`

	IsPaid                        bool `json:"isPaid"`
	ConfirmedInspection           bool `json:"confirmedInspection"`
	DisableAutomatedNotifications bool `json:"disableAutomatedNotifications"`

	// Anchor dates. Date and EndTime are the scheduled inspection window;
	// the other two are contract milestones. Any of them may be unset.
	Date            *time.Time `json:"date,omitempty"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	ClosingDate     *time.Time `json:"closingDate,omitempty"`
	EndOfPeriodDate *time.Time `json:"endOfPeriodDate,omitempty"`

	Clients      []Party       `json:"clients,omitempty"`
	Agents       []Party       `json:"agents,omitempty"`
	ListingAgent *Party        `json:"listingAgent,omitempty"`
	Agreements   []Agreement   `json:"agreements,omitempty"`
	Pricing      []PricingItem `json:"pricing,omitempty"`
	Reports      []Report      `json:"reports,omitempty"`
	Documents    []string      `json:"documents,omitempty"`

	Triggers []domain.TriggerConfig `json:"triggers,omitempty"`
}

// AnchorDate resolves the inspection date a trigger key schedules against.
// Returns nil for keys that are not anchor-dated or dates that are unset.
func (s Snapshot) AnchorDate(key domain.TriggerKey) *time.Time {
	switch key {
	case domain.KeyInspectionStartTime:
		return s.Date
	case domain.KeyInspectionEndTime:
		return s.EndTime
	case domain.KeyInspectionClosingDate:
		return s.ClosingDate
	case domain.KeyInspectionEndOfPeriodDate:
		return s.EndOfPeriodDate
	default:
		return nil
	}
}

// AllAgreementsSigned reports whether the inspection has at least one
// agreement and every agreement is signed.
func (s Snapshot) AllAgreementsSigned() bool {
	if len(s.Agreements) == 0 {
		return false
	}
	for _, a := range s.Agreements {
		if !a.IsSigned {
			return false
		}
	}
	return true
}

// ServiceIDs returns the service ids on the order (pricing items of type
// service), used for service and service-category conditions.
func (s Snapshot) ServiceIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, item := range s.Pricing {
		if item.Type == PricingService && item.ServiceID != uuid.Nil {
			ids = append(ids, item.ServiceID)
		}
	}
	return ids
}
