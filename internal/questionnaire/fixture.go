package questionnaire

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/plannetic/compliance-cli/internal/model"
)

// LoadFromFile reads a questionnaire override from a YAML file. The file
// holds a list of questions in the same shape as the built-in
// definitions. The loaded questionnaire is validated before use.
func LoadFromFile(path string) ([]model.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "questionnaire: read file")
	}

	var questions []model.Question
	if err := yaml.Unmarshal(data, &questions); err != nil {
		return nil, eris.Wrap(err, "questionnaire: unmarshal")
	}

	if err := Validate(questions); err != nil {
		return nil, err
	}
	return questions, nil
}
