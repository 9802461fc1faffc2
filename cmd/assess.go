package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plannetic/compliance-cli/internal/model"
	"github.com/plannetic/compliance-cli/internal/questionnaire"
	"github.com/plannetic/compliance-cli/internal/records"
	"github.com/plannetic/compliance-cli/internal/schedule"
	"github.com/plannetic/compliance-cli/internal/scoring"
)

var (
	assessSubjectID string
	assessAnswers   string
	assessComplete  bool
	assessBatchDir  string
)

var assessCmd = &cobra.Command{
	Use:   "assess <record-type>",
	Short: "Score a risk assessment from an answers file",
	Long: "Scores a JSON answers file against the questionnaire for the given " +
		"record type (aml or consumer_duty). With --complete the assessment is " +
		"persisted, the next review date is scheduled, and for consumer_duty " +
		"the outcome statuses are written back to the compliance record.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt := model.RecordType(args[0])
		questions, err := loadQuestions(rt)
		if err != nil {
			return err
		}

		answers, err := readAnswersFile(assessAnswers)
		if err != nil {
			return err
		}

		if !assessComplete {
			result := scoring.Score(answers, questions, cfg.Scoring)
			fmt.Printf("Total: %d\nTier: %s\n", result.Total, result.Tier)
			return nil
		}

		if assessSubjectID == "" {
			return eris.New("assess: --subject is required with --complete")
		}

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		m := records.NewMaterializer(s)
		assessment, err := m.CompleteAssessment(ctx, rt, assessSubjectID, answers, questions, cfg.Scoring, cfg.Schedule)
		if err != nil {
			return err
		}

		fmt.Printf("Total: %d\nTier: %s\nNext review: %s (%s)\n",
			assessment.Total, assessment.Tier,
			assessment.NextReviewAt.Format("2006-01-02"),
			schedule.Describe(assessment.Tier, cfg.Schedule))
		return nil
	},
}

var assessBatchCmd = &cobra.Command{
	Use:   "batch <record-type>",
	Short: "Complete assessments for a directory of answer files",
	Long: "Reads every *.json file in --dir as an answers file named " +
		"<subject-id>.json and completes an assessment per subject. Files are " +
		"processed concurrently up to the configured limit.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt := model.RecordType(args[0])
		questions, err := loadQuestions(rt)
		if err != nil {
			return err
		}

		paths, err := filepath.Glob(filepath.Join(assessBatchDir, "*.json"))
		if err != nil {
			return eris.Wrap(err, "assess: glob answers dir")
		}
		if len(paths) == 0 {
			return eris.Errorf("assess: no answer files in %s", assessBatchDir)
		}

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		m := records.NewMaterializer(s)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Batch.MaxConcurrentSubjects)

		for _, path := range paths {
			g.Go(func() error {
				subjectID := strings.TrimSuffix(filepath.Base(path), ".json")
				answers, err := readAnswersFile(path)
				if err != nil {
					return err
				}
				assessment, err := m.CompleteAssessment(gctx, rt, subjectID, answers, questions, cfg.Scoring, cfg.Schedule)
				if err != nil {
					return eris.Wrapf(err, "assess: subject %s", subjectID)
				}
				zap.L().Info("assessment completed",
					zap.String("subject_id", subjectID),
					zap.String("tier", string(assessment.Tier)),
					zap.Int("total", assessment.Total),
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Printf("Completed %d assessment(s)\n", len(paths))
		return nil
	},
}

// loadQuestions returns the questionnaire for a record type, preferring
// a configured YAML override over the built-in definition.
func loadQuestions(rt model.RecordType) ([]model.Question, error) {
	var override string
	switch rt {
	case model.RecordAML:
		override = cfg.Questionnaire.AMLPath
	case model.RecordConsumerDuty:
		override = cfg.Questionnaire.ConsumerDutyPath
	}
	if override != "" {
		return questionnaire.LoadFromFile(override)
	}
	return questionnaire.ForType(rt)
}

// readAnswersFile parses a JSON array of answers.
func readAnswersFile(path string) ([]model.Answer, error) {
	if path == "" {
		return nil, eris.New("assess: --answers file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "assess: read answers file")
	}
	var answers []model.Answer
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, eris.Wrap(err, "assess: unmarshal answers")
	}
	return answers, nil
}

func init() {
	assessCmd.Flags().StringVar(&assessSubjectID, "subject", "", "subject id to assess")
	assessCmd.Flags().StringVar(&assessAnswers, "answers", "", "path to JSON answers file")
	assessCmd.Flags().BoolVar(&assessComplete, "complete", false, "persist the assessment and schedule the next review")

	assessBatchCmd.Flags().StringVar(&assessBatchDir, "dir", "", "directory of <subject-id>.json answer files")
	_ = assessBatchCmd.MarkFlagRequired("dir")

	assessCmd.AddCommand(assessBatchCmd)
	rootCmd.AddCommand(assessCmd)
}
