package engine

import (
	"context"
	"errors"
)

// Collaborator failure taxonomy. Implementations of the collaborator
// interfaces wrap their errors with one of these so the engine can decide
// whether to retry.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNetwork          = errors.New("network failure")
	ErrServer           = errors.New("server error")
	ErrValidation       = errors.New("validation error")
)

// Session state errors.
var (
	ErrNotStarted         = errors.New("session not started")
	ErrSessionCompleted   = errors.New("session already completed")
	ErrSessionClosed      = errors.New("session closed")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnknownSection     = errors.New("unknown section")
	ErrQuestionOutOfRange = errors.New("question index out of range")
	ErrInvalidOption      = errors.New("answer is not one of the options")
	ErrNotCodeQuestion    = errors.New("current question is not a coding question")
	ErrNotOwner           = errors.New("session belongs to another candidate")
)

// Device errors.
var (
	ErrDeviceBusy         = errors.New("device already acquired")
	ErrDeviceNotAcquired  = errors.New("device not acquired")
	ErrDeviceNotRecording = errors.New("device is not recording")
)

// Retryable reports whether a collaborator error is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrSessionCompleted),
		errors.Is(err, ErrNotOwner),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
