// Package scoring converts weighted questionnaire answers into a total
// score and a risk tier.
package scoring

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/plannetic/compliance-cli/internal/model"
	"github.com/plannetic/compliance-cli/internal/schedule"
)

// Thresholds holds the score boundaries for tier derivation.
// total >= High yields a high tier, total >= Medium a medium tier.
type Thresholds struct {
	Medium int `yaml:"medium" mapstructure:"medium"`
	High   int `yaml:"high" mapstructure:"high"`
}

// DefaultThresholds returns the standard boundaries for the built-in
// questionnaires (four questions scoring 0-2 each).
func DefaultThresholds() Thresholds {
	return Thresholds{Medium: 3, High: 5}
}

// Validate checks that the thresholds are ordered.
func (t Thresholds) Validate() error {
	var errs []string
	if t.Medium < 0 {
		errs = append(errs, "medium must be >= 0")
	}
	if t.High < t.Medium {
		errs = append(errs, "high must be >= medium")
	}
	if len(errs) > 0 {
		return eris.Errorf("scoring: threshold validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Result is the outcome of scoring an answer set.
type Result struct {
	Total int            `json:"total"`
	Tier  model.RiskTier `json:"tier"`
}

// Score sums the chosen option scores across all answers and derives a
// tier. It is pure and tolerates a partial answer set: unanswered
// questions contribute zero, so the wizard can score progressively as
// each question is answered. A single high-labeled answer forces the
// tier to high regardless of the total: one severe risk factor must
// not be diluted by otherwise-low answers.
//
// With zero answers the result is total 0, tier low. This mirrors the
// dashboard's behavior; whether an unanswered assessment should instead
// be a distinct "unassessed" state is an open product question.
func Score(answers []model.Answer, questions []model.Question, th Thresholds) Result {
	byQuestion := make(map[string]model.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	total := 0
	anyHigh := false
	for _, q := range questions {
		a, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		opt, ok := q.OptionByValue(a.Value)
		if !ok {
			// Values outside the question's options are a caller
			// logic error; they contribute nothing.
			continue
		}
		total += opt.Score
		if opt.Risk == model.TierHigh {
			anyHigh = true
		}
	}

	tier := model.TierLow
	switch {
	case anyHigh || total >= th.High:
		tier = model.TierHigh
	case total >= th.Medium:
		tier = model.TierMedium
	}

	return Result{Total: total, Tier: tier}
}

// Complete scores a finished answer set and builds the persistable
// Assessment, deriving the next review date from the tier and schedule.
func Complete(subjectID string, rt model.RecordType, answers []model.Answer, questions []model.Question, th Thresholds, sched schedule.Config, completedAt time.Time) *model.Assessment {
	result := Score(answers, questions, th)
	completedAt = completedAt.UTC()

	return &model.Assessment{
		ID:           uuid.New().String(),
		SubjectID:    subjectID,
		Type:         rt,
		Answers:      answers,
		Total:        result.Total,
		Tier:         result.Tier,
		CompletedAt:  completedAt,
		NextReviewAt: schedule.NextReview(result.Tier, completedAt, sched),
		CreatedAt:    time.Now().UTC(),
	}
}
