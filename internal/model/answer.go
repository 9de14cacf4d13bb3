package model

import (
	"time"

	"github.com/google/uuid"
)

// SelectAnswerRequest stores an answer for a question of a section.
type SelectAnswerRequest struct {
	SectionID     string `json:"section_id" binding:"required,max=64"`
	QuestionIndex int    `json:"question_index" binding:"min=0"`
	Answer        string `json:"answer" binding:"required,max=65536"`
}

// SessionAnswer is the persisted answer of a session.
type SessionAnswer struct {
	SessionID      uuid.UUID `json:"session_id"`
	QuestionID     string    `json:"question_id"`
	SectionID      string    `json:"section_id"`
	QuestionNumber int       `json:"question_number"`
	Answer         string    `json:"answer"`
	UpdatedAt      time.Time `json:"updated_at"`
}
