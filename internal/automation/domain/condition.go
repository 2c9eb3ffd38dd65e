package domain

import "github.com/google/uuid"

// ConditionType discriminates the condition union. The set is closed; the
// evaluator matches every member and treats anything else as malformed
// configuration (evaluates false, logged).
type ConditionType string

const (
	ConditionInspection          ConditionType = "INSPECTION"
	ConditionAgreement           ConditionType = "AGREEMENT"
	ConditionEventName           ConditionType = "EVENT_NAME"
	ConditionService             ConditionType = "SERVICE"
	ConditionAddons              ConditionType = "ADDONS"
	ConditionServiceCategory     ConditionType = "SERVICE_CATEGORY"
	ConditionClientCategory      ConditionType = "CLIENT_CATEGORY"
	ConditionClientAgentCategory ConditionType = "CLIENT_AGENT_CATEGORY"
	ConditionListingAgentCat     ConditionType = "LISTING_AGENT_CATEGORY"
	ConditionAllReports          ConditionType = "ALL_REPORTS"
	ConditionAnyReports          ConditionType = "ANY_REPORTS"
	ConditionYearBuild           ConditionType = "YEAR_BUILD"
	ConditionFoundation          ConditionType = "FOUNDATION"
	ConditionSquareFeet          ConditionType = "SQUARE_FEET"
	ConditionZipCode             ConditionType = "ZIP_CODE"
	ConditionCity                ConditionType = "CITY"
	ConditionState               ConditionType = "STATE"
)

// Operator is the comparison applied by a condition. Which operators are
// meaningful depends on the condition type; a mismatched pair evaluates false.
type Operator string

const (
	OpIs              Operator = "Is"
	OpIsNot           Operator = "Is Not"
	OpIsSigned        Operator = "Is Signed"
	OpIsNotSigned     Operator = "Is Not Signed"
	OpIsOrIsAfter     Operator = "Is Or Is After"
	OpIsBefore        Operator = "Is Before"
	OpGreaterOrEqual  Operator = "Is Greater Than Or Equal To"
	OpLessThan        Operator = "Is Less Than"
	OpArePublished    Operator = "Are Published"
	OpAreNotPublished Operator = "Are Not Published"
)

// Inspection-flag values for ConditionInspection.
const (
	InspectionFlagPaid      = "Paid"
	InspectionFlagConfirmed = "Confirmed"
)

// Condition is one boolean predicate over an inspection snapshot. Which
// payload field is meaningful depends on Type: Value for string and flag
// comparisons, Number for YEAR_BUILD and SQUARE_FEET thresholds, RefID for
// referenced entities (services, agreements, categories).
//
// Conditions are immutable configuration; the engine never mutates them.
type Condition struct {
	Type     ConditionType `json:"type"`
	Operator Operator      `json:"operator"`
	Value    string        `json:"value,omitempty"`
	Number   int           `json:"number,omitempty"`
	RefID    uuid.UUID     `json:"refId,omitempty"`
}
