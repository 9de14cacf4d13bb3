package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationKind enumerates proctoring violations.
type ViolationKind string

const (
	ViolationTabSwitch ViolationKind = "TAB_SWITCH"
)

// Violation is a recorded proctoring event.
type Violation struct {
	SessionID  uuid.UUID     `json:"session_id"`
	Kind       ViolationKind `json:"kind"`
	Count      int           `json:"count"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// RecordingChunk describes one stored media chunk of a session.
type RecordingChunk struct {
	SessionID  uuid.UUID `json:"session_id"`
	Seq        int       `json:"seq"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RecordingChunkForm is the multipart metadata sent with a recorded chunk.
type RecordingChunkForm struct {
	Seq int `form:"seq" binding:"min=0"`
}

// ViolationEvent is queued for the violation worker.
type ViolationEvent struct {
	SessionID string        `json:"session_id"`
	Kind      ViolationKind `json:"kind"`
	Count     int           `json:"count"`
	Timestamp int64         `json:"timestamp"`
}
