package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lnrs/assessment-portal/internal/middleware"
	"github.com/lnrs/assessment-portal/internal/model"
	"github.com/lnrs/assessment-portal/internal/response"
	"github.com/lnrs/assessment-portal/internal/service"
	"github.com/lnrs/assessment-portal/internal/validator"
)

// RecordingHandler accepts recorded chunks from the candidate's browser.
type RecordingHandler struct {
	recordingService *service.RecordingService
}

// NewRecordingHandler creates a new RecordingHandler.
func NewRecordingHandler(recordingService *service.RecordingService) *RecordingHandler {
	return &RecordingHandler{recordingService: recordingService}
}

// UploadChunk godoc
// POST /api/v1/candidate/sessions/:session_id/recording
// Multipart form: "chunk" (the media blob) and "seq" (its sequence number).
// The chunk is queued on the session's device and uploaded on the next flush.
func (h *RecordingHandler) UploadChunk(c *gin.Context) {
	var form model.RecordingChunkForm
	if fields := validator.BindForm(c, &form); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	file, header, err := c.Request.FormFile("chunk")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := h.recordingService.CheckChunk(contentType, header.Size); err != nil {
		failWithError(c, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	s := middleware.GetSession(c)
	if err := s.RecordChunk(form.Seq, contentType, data); err != nil {
		failWithError(c, err)
		return
	}
	response.Accepted(c, gin.H{"seq": form.Seq})
}
