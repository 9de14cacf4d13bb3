package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/middleware"
	"github.com/lnrs/assessment-portal/internal/model"
	"github.com/lnrs/assessment-portal/internal/response"
	"github.com/lnrs/assessment-portal/internal/validator"
)

// SessionHandler handles the candidate-facing session endpoints.
type SessionHandler struct {
	registry *engine.Registry
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(registry *engine.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

// StartSession godoc
// POST /api/v1/candidate/exams/:exam_id/sessions
// Creates or resumes the candidate's session and starts it.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.registry.Open(c.Request.Context(), engine.OpenRequest{
		ExamID:      examID.String(),
		CandidateID: claims.CandidateID,
		Device:      engine.NewClientDevice(req.CameraGranted, req.CameraError),
	})
	if err != nil {
		failWithError(c, err)
		return
	}

	snap, err := session.Snapshot(c.Request.Context())
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

// GetSession godoc
// GET /api/v1/candidate/sessions/:session_id
// Returns the session state, including answers and per-section progress, so
// a reloaded page can rebuild itself.
func (h *SessionHandler) GetSession(c *gin.Context) {
	snap, err := middleware.GetSession(c).Snapshot(c.Request.Context())
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

// GetPaper godoc
// GET /api/v1/candidate/sessions/:session_id/paper
// Returns the sections and questions without hidden test outputs.
func (h *SessionHandler) GetPaper(c *gin.Context) {
	s := middleware.GetSession(c)
	response.Success(c, http.StatusOK, gin.H{
		"exam_id":  s.ExamID(),
		"sections": s.Paper(),
	})
}

// Navigate godoc
// POST /api/v1/candidate/sessions/:session_id/navigate
func (h *SessionHandler) Navigate(c *gin.Context) {
	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	s := middleware.GetSession(c)
	if err := navigate(c.Request.Context(), s, req); err != nil {
		failWithError(c, err)
		return
	}
	h.respondState(c, s)
}

// SaveAnswer godoc
// PUT /api/v1/candidate/sessions/:session_id/answers
func (h *SessionHandler) SaveAnswer(c *gin.Context) {
	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	s := middleware.GetSession(c)
	if err := s.SelectAnswer(c.Request.Context(), req.SectionID, req.QuestionIndex, req.Answer); err != nil {
		failWithError(c, err)
		return
	}
	h.respondState(c, s)
}

// Visibility godoc
// POST /api/v1/candidate/sessions/:session_id/visibility
// Reports the page becoming hidden or visible again.
func (h *SessionHandler) Visibility(c *gin.Context) {
	var req model.VisibilityRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	s := middleware.GetSession(c)
	if err := s.Visibility(c.Request.Context(), req.Hidden); err != nil {
		failWithError(c, err)
		return
	}
	h.respondState(c, s)
}

// Submit godoc
// POST /api/v1/candidate/sessions/:session_id/submit
// Finalizes the session. Teardown runs in the background; the final report
// arrives on the stream.
func (h *SessionHandler) Submit(c *gin.Context) {
	s := middleware.GetSession(c)
	if err := s.Submit(c.Request.Context()); err != nil {
		failWithError(c, err)
		return
	}
	snap, err := s.Snapshot(c.Request.Context())
	if err != nil {
		// The loop already stopped; the session is finished.
		response.Accepted(c, gin.H{"session_id": s.ID(), "completed": true})
		return
	}
	response.Accepted(c, gin.H{"session": snap})
}

func (h *SessionHandler) respondState(c *gin.Context, s *engine.Session) {
	snap, err := s.Snapshot(c.Request.Context())
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

// navigate applies a navigation request to a session.
func navigate(ctx context.Context, s *engine.Session, req model.NavigateRequest) error {
	switch req.Action {
	case model.NavigateNext:
		return s.Next(ctx)
	case model.NavigatePrevious:
		return s.Previous(ctx)
	case model.NavigateSection:
		return s.GoToSection(ctx, req.SectionID)
	case model.NavigateQuestion:
		return s.SelectQuestion(ctx, req.Index)
	}
	return engine.ErrValidation
}
