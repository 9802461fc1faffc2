package model

import "time"

// RiskTier is the coarse risk classification derived from a weighted
// questionnaire.
type RiskTier string

const (
	TierLow    RiskTier = "low"
	TierMedium RiskTier = "medium"
	TierHigh   RiskTier = "high"
)

// String returns the string representation of the tier.
func (t RiskTier) String() string {
	return string(t)
}

// IsValid returns true if the tier is a known value.
func (t RiskTier) IsValid() bool {
	switch t {
	case TierLow, TierMedium, TierHigh:
		return true
	default:
		return false
	}
}

// RecordType identifies the compliance record family a subject can hold.
// A subject has at most one real record per type.
type RecordType string

const (
	RecordAML          RecordType = "aml"
	RecordConsumerDuty RecordType = "consumer_duty"
	RecordBreach       RecordType = "breach"
)

// IsValid returns true if the record type is a known value.
func (rt RecordType) IsValid() bool {
	switch rt {
	case RecordAML, RecordConsumerDuty, RecordBreach:
		return true
	default:
		return false
	}
}

// Subject is a client of the firm tracked for compliance purposes.
type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
