package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plannetic/compliance-cli/internal/model"
)

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(model.RecordBreach, "open"))
	assert.True(t, ValidStatus(model.RecordBreach, "closed"))
	assert.False(t, ValidStatus(model.RecordBreach, "verified"))

	assert.True(t, ValidStatus(model.RecordAML, "verified"))
	assert.False(t, ValidStatus(model.RecordAML, "remediated"))

	assert.True(t, ValidStatus(model.RecordConsumerDuty, "partially_compliant"))
	assert.False(t, ValidStatus(model.RecordConsumerDuty, "open"))
}

func TestSetStatus(t *testing.T) {
	rec := &model.ComplianceRecord{
		Type:     model.RecordBreach,
		Statuses: model.DefaultStatuses(model.RecordBreach),
	}

	require.NoError(t, SetStatus(rec, model.CategoryStatus, string(model.BreachClosed)))
	assert.Equal(t, string(model.BreachClosed), rec.Statuses[model.CategoryStatus])
	assert.Equal(t, model.OverallFullyCompliant, rec.Overall)
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestSetStatus_AnyTransitionAllowed(t *testing.T) {
	rec := &model.ComplianceRecord{
		Type:     model.RecordBreach,
		Statuses: map[string]string{model.CategoryStatus: string(model.BreachClosed)},
	}

	// A closed breach can be reopened; no transition guard exists.
	require.NoError(t, SetStatus(rec, model.CategoryStatus, string(model.BreachOpen)))
	assert.Equal(t, string(model.BreachOpen), rec.Statuses[model.CategoryStatus])
	assert.Equal(t, model.OverallNonCompliant, rec.Overall)
}

func TestSetStatus_RejectsInvalidStatus(t *testing.T) {
	rec := &model.ComplianceRecord{
		Type:     model.RecordBreach,
		Statuses: model.DefaultStatuses(model.RecordBreach),
	}

	err := SetStatus(rec, model.CategoryStatus, "verified")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid for record type")
}

func TestSetStatus_RejectsUnknownCategory(t *testing.T) {
	rec := &model.ComplianceRecord{
		Type:     model.RecordConsumerDuty,
		Statuses: model.DefaultStatuses(model.RecordConsumerDuty),
	}

	err := SetStatus(rec, "no_such_outcome", string(model.OutcomeCompliant))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no category")
}

func TestAggregateOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		statuses []model.OutcomeStatus
		want     model.OverallStatus
	}{
		{
			name: "any non_compliant dominates",
			statuses: []model.OutcomeStatus{
				model.OutcomeNonCompliant,
				model.OutcomeCompliant,
				model.OutcomeCompliant,
				model.OutcomeCompliant,
			},
			want: model.OverallNonCompliant,
		},
		{
			name: "all compliant",
			statuses: []model.OutcomeStatus{
				model.OutcomeCompliant,
				model.OutcomeCompliant,
				model.OutcomeCompliant,
				model.OutcomeCompliant,
			},
			want: model.OverallFullyCompliant,
		},
		{
			name: "any partially_compliant needs attention",
			statuses: []model.OutcomeStatus{
				model.OutcomeCompliant,
				model.OutcomePartiallyCompliant,
				model.OutcomeNotAssessed,
				model.OutcomeCompliant,
			},
			want: model.OverallNeedsAttention,
		},
		{
			name: "all not_assessed",
			statuses: []model.OutcomeStatus{
				model.OutcomeNotAssessed,
				model.OutcomeNotAssessed,
				model.OutcomeNotAssessed,
				model.OutcomeNotAssessed,
			},
			want: model.OverallNotAssessed,
		},
		{
			name: "mixed compliant and under review",
			statuses: []model.OutcomeStatus{
				model.OutcomeCompliant,
				model.OutcomeUnderReview,
				model.OutcomeCompliant,
				model.OutcomeNotAssessed,
			},
			want: model.OverallMostlyCompliant,
		},
		{
			name:     "empty",
			statuses: nil,
			want:     model.OverallNotAssessed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateOutcomes(tt.statuses))
		})
	}
}

func TestDeriveOverall_ConsumerDuty(t *testing.T) {
	rec := &model.ComplianceRecord{
		Type: model.RecordConsumerDuty,
		Statuses: map[string]string{
			model.OutcomeProductsServices:      string(model.OutcomeCompliant),
			model.OutcomePriceValue:            string(model.OutcomeCompliant),
			model.OutcomeConsumerUnderstanding: string(model.OutcomeCompliant),
			model.OutcomeConsumerSupport:       string(model.OutcomeCompliant),
		},
	}
	assert.Equal(t, model.OverallFullyCompliant, DeriveOverall(rec))

	rec.Statuses[model.OutcomePriceValue] = string(model.OutcomeNonCompliant)
	assert.Equal(t, model.OverallNonCompliant, DeriveOverall(rec))
}

func TestDeriveOverall_AML(t *testing.T) {
	tests := []struct {
		status string
		want   model.OverallStatus
	}{
		{string(model.CheckVerified), model.OverallFullyCompliant},
		{string(model.CheckFailed), model.OverallNonCompliant},
		{string(model.CheckExpired), model.OverallNonCompliant},
		{string(model.CheckPending), model.OverallNeedsAttention},
		{string(model.CheckNotStarted), model.OverallNotAssessed},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			rec := &model.ComplianceRecord{
				Type:     model.RecordAML,
				Statuses: map[string]string{model.CategoryIdentityCheck: tt.status},
			}
			assert.Equal(t, tt.want, DeriveOverall(rec))
		})
	}
}

func TestDeriveOverall_Breach(t *testing.T) {
	tests := []struct {
		status string
		want   model.OverallStatus
	}{
		{string(model.BreachClosed), model.OverallFullyCompliant},
		{string(model.BreachRemediated), model.OverallMostlyCompliant},
		{string(model.BreachInvestigating), model.OverallNeedsAttention},
		{string(model.BreachOpen), model.OverallNonCompliant},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			rec := &model.ComplianceRecord{
				Type:     model.RecordBreach,
				Statuses: map[string]string{model.CategoryStatus: tt.status},
			}
			assert.Equal(t, tt.want, DeriveOverall(rec))
		})
	}
}

func TestOutcomeFromRisk(t *testing.T) {
	assert.Equal(t, model.OutcomeCompliant, OutcomeFromRisk(model.TierLow))
	assert.Equal(t, model.OutcomePartiallyCompliant, OutcomeFromRisk(model.TierMedium))
	assert.Equal(t, model.OutcomeNonCompliant, OutcomeFromRisk(model.TierHigh))
	assert.Equal(t, model.OutcomeNotAssessed, OutcomeFromRisk(model.RiskTier("")))
}
