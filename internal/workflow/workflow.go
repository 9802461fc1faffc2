// Package workflow manages the enumerated status fields on compliance
// records and the aggregate status derived from them. Statuses are
// freely settable values, not a guarded state machine: the dashboard
// never restricted transitions, only the set of allowed values.
package workflow

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/plannetic/compliance-cli/internal/model"
)

// validStatuses enumerates the allowed values per record type.
var validStatuses = map[model.RecordType]map[string]bool{
	model.RecordBreach: {
		string(model.BreachOpen):          true,
		string(model.BreachInvestigating): true,
		string(model.BreachRemediated):    true,
		string(model.BreachClosed):        true,
	},
	model.RecordAML: {
		string(model.CheckNotStarted): true,
		string(model.CheckPending):    true,
		string(model.CheckVerified):   true,
		string(model.CheckFailed):     true,
		string(model.CheckExpired):    true,
	},
	model.RecordConsumerDuty: {
		string(model.OutcomeNotAssessed):        true,
		string(model.OutcomeUnderReview):        true,
		string(model.OutcomeCompliant):          true,
		string(model.OutcomePartiallyCompliant): true,
		string(model.OutcomeNonCompliant):       true,
	},
}

// ValidStatus reports whether status is an allowed value for the record
// type.
func ValidStatus(rt model.RecordType, status string) bool {
	return validStatuses[rt][status]
}

// validCategory reports whether a record carries the given category.
func validCategory(rec *model.ComplianceRecord, category string) bool {
	if rec.Type == model.RecordConsumerDuty {
		for _, outcome := range model.ConsumerDutyOutcomes {
			if outcome == category {
				return true
			}
		}
		return false
	}
	_, ok := rec.Statuses[category]
	return ok
}

// SetStatus overwrites a category's status and recomputes the aggregate.
// The previous status is never consulted: any value may follow any
// other. The status itself must be drawn from the record type's
// enumeration; the category must exist on the record.
func SetStatus(rec *model.ComplianceRecord, category, status string) error {
	if !ValidStatus(rec.Type, status) {
		return eris.Errorf("workflow: status %q not valid for record type %q", status, rec.Type)
	}
	if !validCategory(rec, category) {
		return eris.Errorf("workflow: record type %q has no category %q", rec.Type, category)
	}

	if rec.Statuses == nil {
		rec.Statuses = model.DefaultStatuses(rec.Type)
	}
	rec.Statuses[category] = status
	rec.Overall = DeriveOverall(rec)
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// DeriveOverall computes the record's aggregate status from its
// per-category statuses. For Consumer Duty records this is the fixed
// precedence over outcome statuses; single-status records mirror their
// one category into a coarse aggregate.
func DeriveOverall(rec *model.ComplianceRecord) model.OverallStatus {
	switch rec.Type {
	case model.RecordConsumerDuty:
		statuses := make([]model.OutcomeStatus, 0, len(model.ConsumerDutyOutcomes))
		for _, outcome := range model.ConsumerDutyOutcomes {
			statuses = append(statuses, model.OutcomeStatus(rec.Statuses[outcome]))
		}
		return AggregateOutcomes(statuses)
	case model.RecordAML:
		switch model.CheckStatus(rec.Statuses[model.CategoryIdentityCheck]) {
		case model.CheckVerified:
			return model.OverallFullyCompliant
		case model.CheckFailed, model.CheckExpired:
			return model.OverallNonCompliant
		case model.CheckPending:
			return model.OverallNeedsAttention
		default:
			return model.OverallNotAssessed
		}
	case model.RecordBreach:
		switch model.BreachStatus(rec.Statuses[model.CategoryStatus]) {
		case model.BreachClosed:
			return model.OverallFullyCompliant
		case model.BreachRemediated:
			return model.OverallMostlyCompliant
		case model.BreachInvestigating:
			return model.OverallNeedsAttention
		default:
			return model.OverallNonCompliant
		}
	default:
		return model.OverallNotAssessed
	}
}

// AggregateOutcomes applies the fixed precedence over per-outcome
// statuses. The ordering of checks matters because multiple conditions
// can hold at once:
//
//  1. any non_compliant        -> non_compliant
//  2. all compliant            -> fully_compliant
//  3. any partially_compliant  -> needs_attention
//  4. all not_assessed         -> not_assessed
//  5. otherwise                -> mostly_compliant
func AggregateOutcomes(statuses []model.OutcomeStatus) model.OverallStatus {
	if len(statuses) == 0 {
		return model.OverallNotAssessed
	}

	allCompliant := true
	allNotAssessed := true
	anyPartial := false
	for _, s := range statuses {
		switch s {
		case model.OutcomeNonCompliant:
			return model.OverallNonCompliant
		case model.OutcomePartiallyCompliant:
			anyPartial = true
		}
		if s != model.OutcomeCompliant {
			allCompliant = false
		}
		if s != model.OutcomeNotAssessed {
			allNotAssessed = false
		}
	}

	switch {
	case allCompliant:
		return model.OverallFullyCompliant
	case anyPartial:
		return model.OverallNeedsAttention
	case allNotAssessed:
		return model.OverallNotAssessed
	default:
		return model.OverallMostlyCompliant
	}
}

// OutcomeFromRisk maps a Consumer Duty answer's risk label to the
// outcome status written back to the record on assessment completion.
func OutcomeFromRisk(risk model.RiskTier) model.OutcomeStatus {
	switch risk {
	case model.TierLow:
		return model.OutcomeCompliant
	case model.TierMedium:
		return model.OutcomePartiallyCompliant
	case model.TierHigh:
		return model.OutcomeNonCompliant
	default:
		return model.OutcomeNotAssessed
	}
}
