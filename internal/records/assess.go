package records

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/plannetic/compliance-cli/internal/model"
	"github.com/plannetic/compliance-cli/internal/schedule"
	"github.com/plannetic/compliance-cli/internal/scoring"
	"github.com/plannetic/compliance-cli/internal/workflow"
)

// CompleteAssessment scores a finished answer set, persists the
// assessment with its next review date, and for Consumer Duty writes
// the per-outcome statuses back to the subject's compliance record.
// All caller surfaces complete assessments through here.
func (m *Materializer) CompleteAssessment(ctx context.Context, rt model.RecordType, subjectID string, answers []model.Answer, questions []model.Question, th scoring.Thresholds, sched schedule.Config) (*model.Assessment, error) {
	assessment := scoring.Complete(subjectID, rt, answers, questions, th, sched, time.Now().UTC())
	if err := m.store.CreateAssessment(ctx, assessment); err != nil {
		return nil, eris.Wrapf(err, "records: persist assessment for subject %s", subjectID)
	}

	if rt == model.RecordConsumerDuty {
		if err := m.writeBackOutcomes(ctx, subjectID, answers, questions); err != nil {
			return nil, err
		}
	}
	return assessment, nil
}

// writeBackOutcomes maps each Consumer Duty answer's risk label to an
// outcome status and applies them to the record in one update,
// materializing the record if the subject has never been edited.
func (m *Materializer) writeBackOutcomes(ctx context.Context, subjectID string, answers []model.Answer, questions []model.Question) error {
	byQuestion := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		byQuestion[q.ID] = q
	}

	statuses := make(map[string]string, len(answers))
	for _, a := range answers {
		q, ok := byQuestion[a.QuestionID]
		if !ok {
			continue
		}
		opt, ok := q.OptionByValue(a.Value)
		if !ok {
			continue
		}
		statuses[q.ID] = string(workflow.OutcomeFromRisk(opt.Risk))
	}
	if len(statuses) == 0 {
		return nil
	}

	recordID := VirtualID(subjectID)
	existing, err := m.store.GetRecordBySubject(ctx, model.RecordConsumerDuty, subjectID)
	if err != nil {
		return eris.Wrap(err, "records: check existing record")
	}
	if existing != nil {
		recordID = existing.ID
	}

	_, err = m.UpdateField(ctx, model.RecordConsumerDuty, recordID, FieldUpdate{Statuses: statuses})
	return err
}
