package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusTerminated SessionStatus = "TERMINATED"
)

// EndReason records why a session was finalized.
type EndReason string

const (
	EndReasonManual    EndReason = "manual"
	EndReasonTimeout   EndReason = "timeout"
	EndReasonViolation EndReason = "violation"
)

// ExamSession represents a candidate's exam attempt.
type ExamSession struct {
	ID            uuid.UUID     `json:"id"`
	ExamID        uuid.UUID     `json:"exam_id"`
	CandidateID   int           `json:"candidate_id"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	Status        SessionStatus `json:"status"`
	EndReason     *EndReason    `json:"end_reason,omitempty"`
	TabSwitches   int           `json:"tab_switches"`
	AnsweredCount int           `json:"answered_count"`
}

// StartSessionRequest is sent when the candidate begins the assessment. The
// browser reports whether camera and microphone were granted.
type StartSessionRequest struct {
	CameraGranted bool   `json:"camera_granted"`
	CameraError   string `json:"camera_error" binding:"omitempty,max=255"`
}

// NavigateAction enumerates navigation commands.
type NavigateAction string

const (
	NavigateNext     NavigateAction = "next"
	NavigatePrevious NavigateAction = "previous"
	NavigateSection  NavigateAction = "section"
	NavigateQuestion NavigateAction = "question"
)

// NavigateRequest moves the candidate's position.
type NavigateRequest struct {
	Action    NavigateAction `json:"action" binding:"required,oneof=next previous section question"`
	SectionID string         `json:"section_id" binding:"required_if=Action section,max=64"`
	Index     int            `json:"index" binding:"min=0"`
}

// VisibilityRequest reports a page visibility transition.
type VisibilityRequest struct {
	Hidden bool `json:"hidden"`
}

// SessionCompletion is queued when a session ends and applied to
// exam_sessions by the completion worker.
type SessionCompletion struct {
	SessionID   string        `json:"session_id"`
	ExamID      string        `json:"exam_id"`
	CandidateID int           `json:"candidate_id"`
	Status      SessionStatus `json:"status"`
	Reason      EndReason     `json:"reason"`
	TabSwitches int           `json:"tab_switches"`
	Answered    int           `json:"answered"`
	FinishedAt  int64         `json:"finished_at"`
}

// MonitorEvent is published on an exam's monitor channel.
type MonitorEvent struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"session_id"`
	CandidateID int       `json:"candidate_id"`
	Reason      EndReason `json:"reason,omitempty"`
	TabSwitches int       `json:"tab_switches"`
	Answered    int       `json:"answered"`
	At          time.Time `json:"at"`
}
