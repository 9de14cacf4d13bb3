package model

import (
	"time"

	"github.com/google/uuid"
)

// Languages accepted by the code execution service.
var SupportedLanguages = []string{"Python", "JavaScript", "Java", "C++", "C"}

// CodeRequest is the payload for running or submitting code.
type CodeRequest struct {
	Code     string `json:"code" binding:"required,max=65536"`
	Language string `json:"language" binding:"required,language"`
}

// CodeSubmission is the final code a candidate submitted for a question.
type CodeSubmission struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	QuestionID  uuid.UUID `json:"question_id"`
	Language    string    `json:"language"`
	Code        string    `json:"code"`
	SubmittedAt time.Time `json:"submitted_at"`
}
