package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedQuestion is returned when a stored question does not match its type.
var ErrMalformedQuestion = errors.New("malformed question")

// QuestionType tags the question variant.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeCode           QuestionType = "CODE"
)

// Question is a tagged variant: exactly one of Choice or Code is set,
// matching Type. Decode it once with DecodeQuestion.
type Question struct {
	ID     string          `json:"id"`
	Number int             `json:"number"`
	Text   string          `json:"text"`
	Type   QuestionType    `json:"question_type"`
	Choice *ChoiceQuestion `json:"choice,omitempty"`
	Code   *CodeQuestion   `json:"code,omitempty"`
}

// ChoiceQuestion holds the options of a multiple-choice question.
type ChoiceQuestion struct {
	Options []string `json:"options"`
}

// HasOption reports whether value is one of the options.
func (c *ChoiceQuestion) HasOption(value string) bool {
	for _, o := range c.Options {
		if o == value {
			return true
		}
	}
	return false
}

// CodeQuestion holds the problem statement details and hidden test cases.
type CodeQuestion struct {
	Constraints []string      `json:"constraints,omitempty"`
	Examples    []CodeExample `json:"examples,omitempty"`
	TestCases   []TestCase    `json:"test_cases,omitempty"`
}

// CodeExample is a visible input/output sample.
type CodeExample struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// TestCase is an input with its expected output.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output,omitempty"`
}

// ForCandidate strips expected outputs from code test cases.
func (q Question) ForCandidate() Question {
	if q.Code == nil {
		return q
	}
	code := *q.Code
	code.TestCases = make([]TestCase, len(q.Code.TestCases))
	for i, tc := range q.Code.TestCases {
		code.TestCases[i] = TestCase{Input: tc.Input}
	}
	q.Code = &code
	return q
}

// QuestionRow is the persisted shape of a question: a type tag plus a JSON
// payload holding the variant body.
type QuestionRow struct {
	ID           string          `json:"id"`
	SectionID    string          `json:"section_id"`
	OrderNum     int             `json:"order_num"`
	QuestionText string          `json:"question_text"`
	QuestionType QuestionType    `json:"question_type"`
	Payload      json.RawMessage `json:"payload"`
}

// DecodeQuestion resolves a stored row into its variant.
func DecodeQuestion(row QuestionRow) (Question, error) {
	q := Question{
		ID:     row.ID,
		Number: row.OrderNum,
		Text:   row.QuestionText,
		Type:   row.QuestionType,
	}

	switch row.QuestionType {
	case QuestionTypeMultipleChoice:
		var body ChoiceQuestion
		if err := json.Unmarshal(row.Payload, &body); err != nil {
			return Question{}, fmt.Errorf("%w: question %s: %v", ErrMalformedQuestion, row.ID, err)
		}
		if len(body.Options) == 0 {
			return Question{}, fmt.Errorf("%w: question %s has no options", ErrMalformedQuestion, row.ID)
		}
		q.Choice = &body
	case QuestionTypeCode:
		var body CodeQuestion
		if err := json.Unmarshal(row.Payload, &body); err != nil {
			return Question{}, fmt.Errorf("%w: question %s: %v", ErrMalformedQuestion, row.ID, err)
		}
		q.Code = &body
	default:
		return Question{}, fmt.Errorf("%w: question %s has unknown type %q", ErrMalformedQuestion, row.ID, row.QuestionType)
	}

	return q, nil
}

// EncodePayload returns the JSON payload stored next to the type tag.
func (q Question) EncodePayload() (json.RawMessage, error) {
	switch q.Type {
	case QuestionTypeMultipleChoice:
		if q.Choice == nil {
			return nil, fmt.Errorf("%w: choice body missing", ErrMalformedQuestion)
		}
		return json.Marshal(q.Choice)
	case QuestionTypeCode:
		if q.Code == nil {
			return nil, fmt.Errorf("%w: code body missing", ErrMalformedQuestion)
		}
		return json.Marshal(q.Code)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedQuestion, q.Type)
	}
}

// CreateQuestionRequest is one question of a seed file.
type CreateQuestionRequest struct {
	Text        string        `json:"text" binding:"required,min=1,max=4000"`
	Options     []string      `json:"options" binding:"omitempty,dive,min=1"`
	Constraints []string      `json:"constraints"`
	Examples    []CodeExample `json:"examples"`
	TestCases   []TestCase    `json:"test_cases"`
}
