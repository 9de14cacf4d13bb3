package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lnrs/assessment-portal/internal/middleware"
	"github.com/lnrs/assessment-portal/internal/response"
	"github.com/lnrs/assessment-portal/internal/service"
)

// ExamHandler handles the candidate lobby.
type ExamHandler struct {
	questionService *service.QuestionService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(questionService *service.QuestionService) *ExamHandler {
	return &ExamHandler{questionService: questionService}
}

// GetProfile godoc
// GET /api/v1/candidate/me
// Returns the identity carried by the candidate's token.
func (h *ExamHandler) GetProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"candidate": gin.H{
			"id":   claims.CandidateID,
			"name": claims.Name,
		},
	})
}

// ListExams godoc
// GET /api/v1/candidate/exams
// Returns the published exams.
func (h *ExamHandler) ListExams(c *gin.Context) {
	exams, err := h.questionService.ListExams(c.Request.Context())
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}
