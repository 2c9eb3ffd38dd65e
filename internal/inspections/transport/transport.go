// Package transport defines the request and response DTOs for the
// inspection ingestion API.
package transport

import (
	"time"

	"inspection_portal/internal/automation/queue"
	inspection "inspection_portal/internal/inspections/domain"
)

// Workflow signals that are not trigger keys themselves but select a
// dedicated orchestration path.
const (
	SignalPayment           = "PAYMENT_RECEIVED"
	SignalAgreementSigned   = "AGREEMENT_SIGNED"
	SignalAnchorDateChanged = "ANCHOR_DATE_CHANGED"
	SignalCanceled          = "INSPECTION_CANCELED"
)

// Collection kinds accepted by the collections-changed endpoint.
const (
	KindPricing    = "pricing"
	KindAgreements = "agreements"
	KindDocuments  = "documents"
)

// EventRequest is the body of the domain-event ingestion endpoint. Event is
// either a trigger key or one of the workflow signals above.
type EventRequest struct {
	Event string `json:"event" validate:"required,min=1,max=100"`
	// PrevAllSigned reports whether every agreement was already signed
	// before an AGREEMENT_SIGNED signal.
	PrevAllSigned bool `json:"prevAllSigned"`
}

// CollectionsChangedRequest carries the before/after state of one
// inspection collection. Only the pair matching the :kind path parameter
// is read.
type CollectionsChangedRequest struct {
	PricingBefore []inspection.PricingItem `json:"pricingBefore,omitempty"`
	PricingAfter  []inspection.PricingItem `json:"pricingAfter,omitempty"`

	AgreementsBefore []inspection.Agreement `json:"agreementsBefore,omitempty"`
	AgreementsAfter  []inspection.Agreement `json:"agreementsAfter,omitempty"`

	DocumentsBefore []string `json:"documentsBefore,omitempty"`
	DocumentsAfter  []string `json:"documentsAfter,omitempty"`
}

// PendingAutomation is one scheduled automation in the pending list.
type PendingAutomation struct {
	TriggerIndex  int       `json:"triggerIndex"`
	TriggerKey    string    `json:"triggerKey"`
	ExecutionTime time.Time `json:"executionTime"`
}

// PendingAutomationsResponse is the body of the pending automations
// endpoint.
type PendingAutomationsResponse struct {
	InspectionID string              `json:"inspectionId"`
	Pending      []PendingAutomation `json:"pending"`
}

// NewPendingResponse maps queue records to the response shape.
func NewPendingResponse(inspectionID string, records []queue.Record) PendingAutomationsResponse {
	pending := make([]PendingAutomation, 0, len(records))
	for _, rec := range records {
		pending = append(pending, PendingAutomation{
			TriggerIndex:  rec.TriggerIndex,
			TriggerKey:    string(rec.TriggerKey),
			ExecutionTime: rec.ExecutionTime,
		})
	}
	return PendingAutomationsResponse{InspectionID: inspectionID, Pending: pending}
}
