package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lnrs/assessment-portal/internal/middleware"
	"github.com/lnrs/assessment-portal/internal/model"
	"github.com/lnrs/assessment-portal/internal/response"
	"github.com/lnrs/assessment-portal/internal/validator"
)

// CodeHandler handles running and submitting code for coding questions.
type CodeHandler struct{}

// NewCodeHandler creates a new CodeHandler.
func NewCodeHandler() *CodeHandler {
	return &CodeHandler{}
}

// RunCode godoc
// POST /api/v1/candidate/sessions/:session_id/code/run
// Runs the code against the test cases of the current coding question.
// A failing executor yields a result with status "error", not an error
// response.
func (h *CodeHandler) RunCode(c *gin.Context) {
	var req model.CodeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := middleware.GetSession(c).RunCode(c.Request.Context(), req.Code, req.Language)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// SubmitCode godoc
// POST /api/v1/candidate/sessions/:session_id/code/submit
// Stores the final code of the current coding question.
func (h *CodeHandler) SubmitCode(c *gin.Context) {
	var req model.CodeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	s := middleware.GetSession(c)
	if err := s.SubmitCode(c.Request.Context(), req.Code, req.Language); err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "submitted"})
}
