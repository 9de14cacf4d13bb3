package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/response"
	"github.com/lnrs/assessment-portal/internal/service"
)

// classify maps a domain error to an HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType, response.ErrUnsupportedFile
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, response.ErrFileTooLarge
	case errors.Is(err, service.ErrExamNotAvailable), errors.Is(err, service.ErrNoQuestions):
		return http.StatusNotFound, response.ErrExamNotAvailable

	case errors.Is(err, engine.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, engine.ErrNotOwner):
		return http.StatusForbidden, response.ErrNotSessionOwner
	case errors.Is(err, engine.ErrNotStarted):
		return http.StatusConflict, response.ErrSessionNotStarted
	case errors.Is(err, engine.ErrSessionCompleted), errors.Is(err, engine.ErrSessionClosed):
		return http.StatusConflict, response.ErrSessionCompleted
	case errors.Is(err, engine.ErrUnknownSection):
		return http.StatusBadRequest, response.ErrUnknownSection
	case errors.Is(err, engine.ErrQuestionOutOfRange):
		return http.StatusBadRequest, response.ErrQuestionOutOfRange
	case errors.Is(err, engine.ErrInvalidOption):
		return http.StatusBadRequest, response.ErrInvalidOption
	case errors.Is(err, engine.ErrNotCodeQuestion):
		return http.StatusConflict, response.ErrNotCodeQuestion
	case errors.Is(err, engine.ErrDeviceNotRecording), errors.Is(err, engine.ErrDeviceNotAcquired):
		return http.StatusConflict, response.ErrRecordingInactive

	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, engine.ErrPermissionDenied):
		return http.StatusForbidden, response.ErrForbidden
	case errors.Is(err, engine.ErrNetwork), errors.Is(err, engine.ErrServer),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, response.ErrUpstreamUnavailable
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failWithError writes the error envelope for err. Server-side failures keep
// their default message.
func failWithError(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		response.Fail(c, status, code)
		return
	}
	response.FailWithMessage(c, status, code, err.Error())
}
