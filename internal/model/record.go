package model

import "time"

// BreachStatus tracks the remediation workflow of a logged breach.
// Statuses are labels, not guarded transitions: any status may be set
// from any other.
type BreachStatus string

const (
	BreachOpen          BreachStatus = "open"
	BreachInvestigating BreachStatus = "investigating"
	BreachRemediated    BreachStatus = "remediated"
	BreachClosed        BreachStatus = "closed"
)

// CheckStatus tracks the identity-verification leg of an AML check.
type CheckStatus string

const (
	CheckNotStarted CheckStatus = "not_started"
	CheckPending    CheckStatus = "pending"
	CheckVerified   CheckStatus = "verified"
	CheckFailed     CheckStatus = "failed"
	CheckExpired    CheckStatus = "expired"
)

// OutcomeStatus is the per-outcome assessment state for Consumer Duty.
type OutcomeStatus string

const (
	OutcomeNotAssessed        OutcomeStatus = "not_assessed"
	OutcomeUnderReview        OutcomeStatus = "under_review"
	OutcomeCompliant          OutcomeStatus = "compliant"
	OutcomePartiallyCompliant OutcomeStatus = "partially_compliant"
	OutcomeNonCompliant       OutcomeStatus = "non_compliant"
)

// OverallStatus is derived from the per-category statuses of a record.
// It is recomputed on every status write and persisted for query
// convenience; the per-category statuses remain the source of truth.
type OverallStatus string

const (
	OverallNotAssessed     OverallStatus = "not_assessed"
	OverallFullyCompliant  OverallStatus = "fully_compliant"
	OverallMostlyCompliant OverallStatus = "mostly_compliant"
	OverallNeedsAttention  OverallStatus = "needs_attention"
	OverallNonCompliant    OverallStatus = "non_compliant"
)

// Consumer Duty outcome categories, in the FCA's order.
const (
	OutcomeProductsServices      = "products_services"
	OutcomePriceValue            = "price_value"
	OutcomeConsumerUnderstanding = "consumer_understanding"
	OutcomeConsumerSupport       = "consumer_support"
)

// ConsumerDutyOutcomes lists the four outcome categories every Consumer
// Duty record carries.
var ConsumerDutyOutcomes = []string{
	OutcomeProductsServices,
	OutcomePriceValue,
	OutcomeConsumerUnderstanding,
	OutcomeConsumerSupport,
}

// Workflow categories for single-status record types.
const (
	CategoryStatus        = "status"
	CategoryIdentityCheck = "identity_verification"
)

// ComplianceRecord holds the per-category workflow statuses for one
// subject and record type. A record may be virtual (synthesized from the
// subject list, never persisted) until its first field write.
type ComplianceRecord struct {
	ID        string            `json:"id"`
	SubjectID string            `json:"subject_id"`
	Type      RecordType        `json:"record_type"`
	Statuses  map[string]string `json:"statuses"`
	Overall   OverallStatus     `json:"overall"`
	Notes     string            `json:"notes,omitempty"`
	Evidence  string            `json:"evidence,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// DefaultStatuses returns the "not assessed" status set for a record type.
func DefaultStatuses(rt RecordType) map[string]string {
	switch rt {
	case RecordConsumerDuty:
		statuses := make(map[string]string, len(ConsumerDutyOutcomes))
		for _, outcome := range ConsumerDutyOutcomes {
			statuses[outcome] = string(OutcomeNotAssessed)
		}
		return statuses
	case RecordAML:
		return map[string]string{CategoryIdentityCheck: string(CheckNotStarted)}
	case RecordBreach:
		return map[string]string{CategoryStatus: string(BreachOpen)}
	default:
		return map[string]string{}
	}
}
