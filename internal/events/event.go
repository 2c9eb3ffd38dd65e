// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"inspection_portal/internal/automation/domain"
	"inspection_portal/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Automation Domain Events
// =============================================================================

// AutomationSent is published after a trigger's notification was delivered.
type AutomationSent struct {
	BaseEvent
	InspectionID uuid.UUID                `json:"inspectionId"`
	TriggerIndex int                      `json:"triggerIndex"`
	TriggerKey   domain.TriggerKey        `json:"triggerKey"`
	Channel      domain.CommunicationType `json:"channel"`
}

func (AutomationSent) EventName() string { return "automation.sent" }

// AutomationFailed is published when delivery failed; the trigger is marked
// bounced and the failure surfaces on the inspection's activity log.
type AutomationFailed struct {
	BaseEvent
	InspectionID uuid.UUID                `json:"inspectionId"`
	TriggerIndex int                      `json:"triggerIndex"`
	TriggerKey   domain.TriggerKey        `json:"triggerKey"`
	Channel      domain.CommunicationType `json:"channel"`
	Reason       string                   `json:"reason"`
}

func (AutomationFailed) EventName() string { return "automation.failed" }

// AutomationDeferred is published when a trigger was scheduled for a future
// instant instead of firing immediately.
type AutomationDeferred struct {
	BaseEvent
	InspectionID uuid.UUID         `json:"inspectionId"`
	TriggerIndex int               `json:"triggerIndex"`
	TriggerKey   domain.TriggerKey `json:"triggerKey"`
}

func (AutomationDeferred) EventName() string { return "automation.deferred" }
