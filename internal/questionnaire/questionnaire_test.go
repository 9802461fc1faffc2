package questionnaire

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plannetic/compliance-cli/internal/model"
)

func TestBuiltinsAreValid(t *testing.T) {
	require.NoError(t, Validate(AML()))
	require.NoError(t, Validate(ConsumerDuty()))
}

func TestAMLQuestionIDs(t *testing.T) {
	questions := AML()
	require.Len(t, questions, 4)

	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
		require.Len(t, q.Options, 3)
	}
	assert.Equal(t, []string{"jurisdiction", "pep", "sanctions", "business"}, ids)
}

func TestConsumerDutyQuestionIDsMatchOutcomes(t *testing.T) {
	questions := ConsumerDuty()
	require.Len(t, questions, len(model.ConsumerDutyOutcomes))

	for i, q := range questions {
		assert.Equal(t, model.ConsumerDutyOutcomes[i], q.ID)
	}
}

func TestForType(t *testing.T) {
	aml, err := ForType(model.RecordAML)
	require.NoError(t, err)
	assert.Len(t, aml, 4)

	cd, err := ForType(model.RecordConsumerDuty)
	require.NoError(t, err)
	assert.Len(t, cd, 4)

	_, err = ForType(model.RecordBreach)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no questionnaire")
}

func TestValidate_Errors(t *testing.T) {
	err := Validate(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no questions")

	err = Validate([]model.Question{
		{ID: "dup", Options: []model.Option{{Value: 0, Risk: model.TierLow}}},
		{ID: "dup", Options: []model.Option{{Value: 0, Risk: model.TierLow}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")

	err = Validate([]model.Question{
		{ID: "q", Options: []model.Option{
			{Value: 1, Risk: model.TierLow},
			{Value: 1, Risk: model.TierMedium},
		}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate option value")

	err = Validate([]model.Question{
		{ID: "q", Options: []model.Option{{Value: 0, Risk: model.RiskTier("severe")}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown risk label")
}

func TestLoadFromFile(t *testing.T) {
	yaml := `
- id: custom
  prompt: "Custom question?"
  options:
    - value: 0
      label: "No"
      score: 0
      risk: low
    - value: 1
      label: "Yes"
      score: 2
      risk: high
`
	path := filepath.Join(t.TempDir(), "override.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	questions, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "custom", questions[0].ID)
	require.Len(t, questions[0].Options, 2)
	assert.Equal(t, model.TierHigh, questions[0].Options[1].Risk)
	assert.Equal(t, 2, questions[0].Options[1].Score)
}

func TestLoadFromFile_InvalidRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- id: q\n  options: []\n"), 0o644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no options")
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
