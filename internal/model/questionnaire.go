package model

import "time"

// Option is a single mutually exclusive answer choice for a Question.
// Value is the ordinal stored on the Answer; Score is the option's
// contribution to the assessment total.
type Option struct {
	Value int      `json:"value" yaml:"value"`
	Label string   `json:"label" yaml:"label"`
	Score int      `json:"score" yaml:"score"`
	Risk  RiskTier `json:"risk" yaml:"risk"`
}

// Question is one entry in a fixed, ordered questionnaire.
type Question struct {
	ID      string   `json:"id" yaml:"id"`
	Prompt  string   `json:"prompt" yaml:"prompt"`
	Options []Option `json:"options" yaml:"options"`
}

// OptionByValue returns the option with the given ordinal value.
func (q Question) OptionByValue(value int) (Option, bool) {
	for _, opt := range q.Options {
		if opt.Value == value {
			return opt, true
		}
	}
	return Option{}, false
}

// Answer records a subject's chosen option for one question, with an
// optional note and evidence reference.
type Answer struct {
	QuestionID string `json:"question_id"`
	Value      int    `json:"value"`
	Note       string `json:"note,omitempty"`
	Evidence   string `json:"evidence,omitempty"`
}

// Assessment is a completed (or in-progress) questionnaire run for a
// subject. Assessments are append-only: a new review cycle supersedes
// the previous assessment rather than mutating it.
type Assessment struct {
	ID           string     `json:"id"`
	SubjectID    string     `json:"subject_id"`
	Type         RecordType `json:"record_type"`
	Answers      []Answer   `json:"answers"`
	Total        int        `json:"total"`
	Tier         RiskTier   `json:"tier"`
	CompletedAt  time.Time  `json:"completed_at"`
	NextReviewAt time.Time  `json:"next_review_at"`
	CreatedAt    time.Time  `json:"created_at"`
}
