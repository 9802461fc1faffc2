package records

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plannetic/compliance-cli/internal/model"
	"github.com/plannetic/compliance-cli/internal/questionnaire"
	"github.com/plannetic/compliance-cli/internal/schedule"
	"github.com/plannetic/compliance-cli/internal/scoring"
)

func TestCompleteAssessment_ConsumerDutyWritesBackOutcomes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, model.Subject{ID: "sub-1", Name: "Alan"})

	questions, err := questionnaire.ForType(model.RecordConsumerDuty)
	require.NoError(t, err)

	m := NewMaterializer(s)
	answers := []model.Answer{
		{QuestionID: model.OutcomeProductsServices, Value: 2},
		{QuestionID: model.OutcomePriceValue, Value: 0},
	}
	assessment, err := m.CompleteAssessment(ctx, model.RecordConsumerDuty, "sub-1",
		answers, questions, scoring.DefaultThresholds(), schedule.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, model.TierHigh, assessment.Tier)

	latest, err := s.LatestAssessment(ctx, model.RecordConsumerDuty, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, assessment.ID, latest.ID)

	// Completion materialized the record and applied the outcome statuses.
	rec, err := s.GetRecordBySubject(ctx, model.RecordConsumerDuty, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, string(model.OutcomeNonCompliant), rec.Statuses[model.OutcomeProductsServices])
	assert.Equal(t, string(model.OutcomeCompliant), rec.Statuses[model.OutcomePriceValue])
	assert.Equal(t, string(model.OutcomeNotAssessed), rec.Statuses[model.OutcomeConsumerSupport])
	assert.Equal(t, model.OverallNonCompliant, rec.Overall)
}

func TestCompleteAssessment_ConsumerDutyUpdatesExistingRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, model.Subject{ID: "sub-1", Name: "Alan"})

	questions, err := questionnaire.ForType(model.RecordConsumerDuty)
	require.NoError(t, err)

	m := NewMaterializer(s)
	existing, err := m.Materialize(ctx, model.RecordConsumerDuty, VirtualID("sub-1"))
	require.NoError(t, err)

	answers := []model.Answer{{QuestionID: model.OutcomePriceValue, Value: 1}}
	_, err = m.CompleteAssessment(ctx, model.RecordConsumerDuty, "sub-1",
		answers, questions, scoring.DefaultThresholds(), schedule.DefaultConfig())
	require.NoError(t, err)

	rec, err := s.GetRecordBySubject(ctx, model.RecordConsumerDuty, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, existing.ID, rec.ID)
	assert.Equal(t, string(model.OutcomePartiallyCompliant), rec.Statuses[model.OutcomePriceValue])
	assert.Equal(t, model.OverallNeedsAttention, rec.Overall)
}

func TestCompleteAssessment_AMLLeavesRecordAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, model.Subject{ID: "sub-1", Name: "Alan"})

	questions, err := questionnaire.ForType(model.RecordAML)
	require.NoError(t, err)

	m := NewMaterializer(s)
	answers := []model.Answer{
		{QuestionID: "jurisdiction", Value: 0},
		{QuestionID: "pep", Value: 0},
		{QuestionID: "sanctions", Value: 0},
		{QuestionID: "business", Value: 0},
	}
	assessment, err := m.CompleteAssessment(ctx, model.RecordAML, "sub-1",
		answers, questions, scoring.DefaultThresholds(), schedule.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, model.TierLow, assessment.Tier)
	assert.Equal(t, assessment.CompletedAt.AddDate(3, 0, 0), assessment.NextReviewAt)

	// The identity check tracks a separate verification process; the
	// questionnaire does not touch it.
	all, err := s.ListRecords(ctx, model.RecordAML)
	require.NoError(t, err)
	assert.Empty(t, all)
}
