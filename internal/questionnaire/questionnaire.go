// Package questionnaire holds the fixed AML and Consumer Duty
// questionnaires and loads operator-edited overrides from YAML files.
package questionnaire

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/plannetic/compliance-cli/internal/model"
)

// AML returns the built-in AML/CTF risk questionnaire. Each question
// scores 0 (low), 1 (medium) or 2 (high); a single high-labeled answer
// forces the overall tier to high regardless of the total.
func AML() []model.Question {
	return []model.Question{
		{
			ID:     "jurisdiction",
			Prompt: "Is the client resident in, or connected to, a high-risk jurisdiction?",
			Options: []model.Option{
				{Value: 0, Label: "UK / equivalent regime", Score: 0, Risk: model.TierLow},
				{Value: 1, Label: "Non-equivalent jurisdiction", Score: 1, Risk: model.TierMedium},
				{Value: 2, Label: "FATF high-risk or sanctioned jurisdiction", Score: 2, Risk: model.TierHigh},
			},
		},
		{
			ID:     "pep",
			Prompt: "Is the client, or a close associate, a politically exposed person?",
			Options: []model.Option{
				{Value: 0, Label: "No PEP connection", Score: 0, Risk: model.TierLow},
				{Value: 1, Label: "Former PEP (deceased/retired > 12 months)", Score: 1, Risk: model.TierMedium},
				{Value: 2, Label: "Current PEP or close associate", Score: 2, Risk: model.TierHigh},
			},
		},
		{
			ID:     "sanctions",
			Prompt: "Does screening return any sanctions or adverse media match?",
			Options: []model.Option{
				{Value: 0, Label: "No match", Score: 0, Risk: model.TierLow},
				{Value: 1, Label: "Potential match under review", Score: 1, Risk: model.TierMedium},
				{Value: 2, Label: "Confirmed sanctions match", Score: 2, Risk: model.TierHigh},
			},
		},
		{
			ID:     "business",
			Prompt: "What is the nature of the client's business or source of wealth?",
			Options: []model.Option{
				{Value: 0, Label: "Salaried / pension / transparent source", Score: 0, Risk: model.TierLow},
				{Value: 1, Label: "Cash-intensive or complex structure", Score: 1, Risk: model.TierMedium},
				{Value: 2, Label: "Opaque structure or unexplained wealth", Score: 2, Risk: model.TierHigh},
			},
		},
	}
}

// ConsumerDuty returns the built-in Consumer Duty questionnaire, one
// question per FCA outcome. Question IDs double as the record's status
// categories so a completed assessment can write outcome statuses back
// to the compliance record.
func ConsumerDuty() []model.Question {
	outcomes := []struct {
		id     string
		prompt string
	}{
		{model.OutcomeProductsServices, "Do products and services meet the needs of the target market?"},
		{model.OutcomePriceValue, "Does the price charged represent fair value for the benefits provided?"},
		{model.OutcomeConsumerUnderstanding, "Do communications equip clients to make informed decisions?"},
		{model.OutcomeConsumerSupport, "Does ongoing support let clients pursue their financial objectives?"},
	}

	questions := make([]model.Question, 0, len(outcomes))
	for _, o := range outcomes {
		questions = append(questions, model.Question{
			ID:     o.id,
			Prompt: o.prompt,
			Options: []model.Option{
				{Value: 0, Label: "Fully evidenced", Score: 0, Risk: model.TierLow},
				{Value: 1, Label: "Partially evidenced, gaps identified", Score: 1, Risk: model.TierMedium},
				{Value: 2, Label: "Not evidenced / harm identified", Score: 2, Risk: model.TierHigh},
			},
		})
	}
	return questions
}

// ForType returns the built-in questionnaire for a record type.
// Breach records have no questionnaire.
func ForType(rt model.RecordType) ([]model.Question, error) {
	switch rt {
	case model.RecordAML:
		return AML(), nil
	case model.RecordConsumerDuty:
		return ConsumerDuty(), nil
	default:
		return nil, eris.Errorf("questionnaire: no questionnaire for record type %q", rt)
	}
}

// Validate checks that a questionnaire is internally consistent:
// non-empty, unique question IDs, and unique option values per question.
func Validate(questions []model.Question) error {
	if len(questions) == 0 {
		return eris.New("questionnaire: no questions defined")
	}

	var errs []string
	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			errs = append(errs, fmt.Sprintf("question %d: missing id", i))
			continue
		}
		if seen[q.ID] {
			errs = append(errs, fmt.Sprintf("question %q: duplicate id", q.ID))
		}
		seen[q.ID] = true

		if len(q.Options) == 0 {
			errs = append(errs, fmt.Sprintf("question %q: no options", q.ID))
			continue
		}
		values := make(map[int]bool, len(q.Options))
		for _, opt := range q.Options {
			if values[opt.Value] {
				errs = append(errs, fmt.Sprintf("question %q: duplicate option value %d", q.ID, opt.Value))
			}
			values[opt.Value] = true
			if opt.Score < 0 {
				errs = append(errs, fmt.Sprintf("question %q: option %d has negative score", q.ID, opt.Value))
			}
			if !opt.Risk.IsValid() {
				errs = append(errs, fmt.Sprintf("question %q: option %d has unknown risk label %q", q.ID, opt.Value, opt.Risk))
			}
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("questionnaire: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
