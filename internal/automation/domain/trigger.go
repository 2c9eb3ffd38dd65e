// Package domain defines the automation configuration model: trigger keys,
// trigger configs and the condition union evaluated against an inspection.
package domain

import "time"

// TriggerKey identifies the workflow event a trigger is bound to.
// The set is closed; unknown keys never match and never fire.
type TriggerKey string

const (
	KeyInspectionRequested       TriggerKey = "INSPECTION_REQUESTED"
	KeyInspectionScheduled       TriggerKey = "INSPECTION_SCHEDULED"
	KeyInspectionRescheduled     TriggerKey = "INSPECTION_RESCHEDULED"
	KeyInspectionStartTime       TriggerKey = "INSPECTION_START_TIME"
	KeyInspectionEndTime         TriggerKey = "INSPECTION_END_TIME"
	KeyInspectionClosingDate     TriggerKey = "INSPECTION_CLOSING_DATE"
	KeyInspectionEndOfPeriodDate TriggerKey = "INSPECTION_END_OF_PERIOD_DATE"
	KeyInspectionFullyPaid       TriggerKey = "INSPECTION_FULLY_PAID"
	KeyAllAgreementsSigned       TriggerKey = "ALL_AGREEMENTS_SIGNED"
	KeySignedAndPaid             TriggerKey = "ALL_AGREEMENTS_SIGNED_AND_FULLY_PAID"
	KeyServicesAdded             TriggerKey = "SERVICES_ADDED_AFTER_CONFIRMATION"
	KeyServicesRemoved           TriggerKey = "SERVICES_REMOVED_AFTER_CONFIRMATION"
	KeyFeesAdded                 TriggerKey = "FEES_ADDED_AFTER_CONFIRMATION"
	KeyFeesRemoved               TriggerKey = "FEES_REMOVED_AFTER_CONFIRMATION"
	KeyAgreementsAdded           TriggerKey = "AGREEMENTS_ADDED_AFTER_CONFIRMATION"
	KeyAgreementsRemoved         TriggerKey = "AGREEMENTS_REMOVED_AFTER_CONFIRMATION"
	KeyDocumentsAdded            TriggerKey = "DOCUMENTS_ADDED_AFTER_CONFIRMATION"
	KeyDocumentsRemoved          TriggerKey = "DOCUMENTS_REMOVED_AFTER_CONFIRMATION"
)

// keyProperties declares per-key behavior instead of scattering allow-lists
// through the orchestrator.
type keyProperties struct {
	// requiresConfirmed gates the key on a confirmed inspection.
	requiresConfirmed bool
	// anchorDated marks keys whose send time is computed relative to an
	// inspection-level date rather than the moment the event occurred.
	anchorDated bool
}

var triggerKeyTable = map[TriggerKey]keyProperties{
	KeyInspectionRequested:       {},
	KeyInspectionScheduled:       {requiresConfirmed: true},
	KeyInspectionRescheduled:     {requiresConfirmed: true},
	KeyInspectionStartTime:       {anchorDated: true},
	KeyInspectionEndTime:         {anchorDated: true},
	KeyInspectionClosingDate:     {anchorDated: true},
	KeyInspectionEndOfPeriodDate: {anchorDated: true},
	KeyInspectionFullyPaid:       {},
	KeyAllAgreementsSigned:       {},
	KeySignedAndPaid:             {},
	KeyServicesAdded:             {requiresConfirmed: true},
	KeyServicesRemoved:           {requiresConfirmed: true},
	KeyFeesAdded:                 {requiresConfirmed: true},
	KeyFeesRemoved:               {requiresConfirmed: true},
	KeyAgreementsAdded:           {requiresConfirmed: true},
	KeyAgreementsRemoved:         {requiresConfirmed: true},
	KeyDocumentsAdded:            {requiresConfirmed: true},
	KeyDocumentsRemoved:          {requiresConfirmed: true},
}

// Valid reports whether the key belongs to the closed trigger key set.
func (k TriggerKey) Valid() bool {
	_, ok := triggerKeyTable[k]
	return ok
}

// RequiresConfirmed reports whether the key only fires for confirmed inspections.
func (k TriggerKey) RequiresConfirmed() bool {
	return triggerKeyTable[k].requiresConfirmed
}

// AnchorDated reports whether the key schedules relative to an inspection date.
func (k TriggerKey) AnchorDated() bool {
	return triggerKeyTable[k].anchorDated
}

// CommunicationType selects the delivery channel for a trigger.
type CommunicationType string

const (
	CommunicationEmail CommunicationType = "EMAIL"
	CommunicationText  CommunicationType = "TEXT"
)

// Logic combines a trigger's conditions.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// SendTiming orients the delay relative to the anchor date.
type SendTiming string

const (
	TimingBefore SendTiming = "BEFORE"
	TimingAfter  SendTiming = "AFTER"
)

// DelayUnit is the unit of a trigger's send delay.
type DelayUnit string

const (
	UnitMinutes DelayUnit = "MINUTES"
	UnitHours   DelayUnit = "HOURS"
	UnitDays    DelayUnit = "DAYS"
	UnitWeeks   DelayUnit = "WEEKS"
	UnitMonths  DelayUnit = "MONTHS"
)

// delayUnitDurations maps a delay unit to its duration. Months use a fixed
// 30-day approximation rather than calendar arithmetic; changing this would
// silently shift existing users' scheduled send times.
var delayUnitDurations = map[DelayUnit]time.Duration{
	UnitMinutes: time.Minute,
	UnitHours:   time.Hour,
	UnitDays:    24 * time.Hour,
	UnitWeeks:   7 * 24 * time.Hour,
	UnitMonths:  30 * 24 * time.Hour,
}

// Duration converts the unit to a time.Duration. Unknown units resolve to
// zero, which callers treat as malformed configuration.
func (u DelayUnit) Duration() time.Duration {
	return delayUnitDurations[u]
}

// TriggerStatus records the outcome of the most recent firing.
type TriggerStatus string

const (
	StatusPending TriggerStatus = ""
	StatusSent    TriggerStatus = "sent"
	StatusBounced TriggerStatus = "bounced"
)

// Recipients holds the delivery targets for a trigger. For EMAIL triggers
// the fields carry addresses; for TEXT triggers To carries phone numbers.
type Recipients struct {
	To  []string `json:"to"`
	CC  []string `json:"cc,omitempty"`
	BCC []string `json:"bcc,omitempty"`
}

// TriggerConfig is one user-configured automation rule on an inspection.
// Subject and Body arrive already placeholder-substituted; the engine never
// parses template text.
type TriggerConfig struct {
	AutomationTrigger TriggerKey        `json:"automationTrigger"`
	CommunicationType CommunicationType `json:"communicationType"`

	Conditions     []Condition `json:"conditions,omitempty"`
	ConditionLogic Logic       `json:"conditionLogic"`

	SendTiming    SendTiming `json:"sendTiming"`
	SendDelay     int        `json:"sendDelay"`
	SendDelayUnit DelayUnit  `json:"sendDelayUnit"`

	OnlyTriggerOnce                   bool `json:"onlyTriggerOnce"`
	SendEvenWhenNotificationsDisabled bool `json:"sendEvenWhenNotificationsDisabled"`

	SendDuringCertainHoursOnly bool   `json:"sendDuringCertainHoursOnly"`
	StartTime                  string `json:"startTime,omitempty"` // "15:04"
	EndTime                    string `json:"endTime,omitempty"`
	DoNotSendOnWeekends        bool   `json:"doNotSendOnWeekends"`

	IsDisabled bool `json:"isDisabled"`

	Recipients Recipients `json:"recipients"`
	From       string     `json:"from,omitempty"`
	Subject    string     `json:"subject,omitempty"`
	Body       string     `json:"body"`

	Status TriggerStatus `json:"status,omitempty"`
	SentAt *time.Time    `json:"sentAt,omitempty"`
}
