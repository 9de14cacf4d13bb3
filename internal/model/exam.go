package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam represents an assessment definition.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationSeconds int        `json:"duration_seconds"`
	WarningSeconds  int        `json:"warning_seconds"`
	MaxTabSwitches  int        `json:"max_tab_switches"`
	Status          ExamStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ExamPaper is the Redis-cached payload of an exam: its sections in order.
// Code test cases keep their expected outputs here; use ForCandidate before
// sending a paper to the browser.
type ExamPaper struct {
	ExamID          uuid.UUID `json:"exam_id"`
	Title           string    `json:"title"`
	DurationSeconds int       `json:"duration_seconds"`
	WarningSeconds  int       `json:"warning_seconds"`
	MaxTabSwitches  int       `json:"max_tab_switches"`
	Sections        []Section `json:"sections"`
}

// ForCandidate returns a copy of the paper with expected outputs removed.
func (p *ExamPaper) ForCandidate() *ExamPaper {
	out := *p
	out.Sections = make([]Section, len(p.Sections))
	for i, s := range p.Sections {
		out.Sections[i] = s.ForCandidate()
	}
	return &out
}
