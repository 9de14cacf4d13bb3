package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lnrs/assessment-portal/internal/config"
	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/model"
)

// Sentinel errors for recording uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// Allowed recording MIME types.
var allowedMIMETypes = map[string]string{
	"video/webm": ".webm",
	"audio/webm": ".webm",
	"video/mp4":  ".mp4",
}

type chunkIndex interface {
	Insert(ctx context.Context, c *model.RecordingChunk, contentType string) (bool, error)
}

// RecordingService stores recorded chunks on local disk and indexes them in
// PostgreSQL.
type RecordingService struct {
	dir      string
	maxBytes int64
	chunks   chunkIndex
	log      zerolog.Logger
}

// NewRecordingService creates a new RecordingService.
func NewRecordingService(cfg *config.Config, chunks chunkIndex, log zerolog.Logger) *RecordingService {
	return &RecordingService{
		dir:      cfg.RecordingDir,
		maxBytes: cfg.MaxUploadBytes,
		chunks:   chunks,
		log:      log.With().Str("component", "recording_service").Logger(),
	}
}

// CheckChunk validates a chunk's content type and size before it is queued.
func (s *RecordingService) CheckChunk(contentType string, size int64) error {
	if _, err := extensionFor(contentType); err != nil {
		return err
	}
	if size > s.maxBytes {
		return fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, size, s.maxBytes)
	}
	return nil
}

// Upload writes a chunk to RECORDING_DIR/{session}/{seq}.{ext}. Uploading the
// same chunk again rewrites the same file and leaves the index unchanged.
func (s *RecordingService) Upload(ctx context.Context, sessionID string, chunk engine.Chunk) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("%w: invalid session id", engine.ErrValidation)
	}
	if err := s.CheckChunk(chunk.ContentType, int64(len(chunk.Data))); err != nil {
		return fmt.Errorf("%w: %w", engine.ErrValidation, err)
	}
	ext, _ := extensionFor(chunk.ContentType)

	dir := filepath.Join(s.dir, id.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create recording dir: %v", engine.ErrServer, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%06d%s", chunk.Seq, ext))
	if err := writeFileAtomic(path, chunk.Data); err != nil {
		return fmt.Errorf("%w: write chunk: %v", engine.ErrServer, err)
	}

	created, err := s.chunks.Insert(ctx, &model.RecordingChunk{
		SessionID:  id,
		Seq:        chunk.Seq,
		Path:       path,
		SizeBytes:  int64(len(chunk.Data)),
		RecordedAt: chunk.RecordedAt,
	}, chunk.ContentType)
	if err != nil {
		return fmt.Errorf("%w: index chunk: %v", engine.ErrNetwork, err)
	}
	if !created {
		s.log.Debug().Str("session_id", sessionID).Int("seq", chunk.Seq).Msg("Chunk already stored")
	}
	return nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chunk-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func extensionFor(contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, contentType)
	}
	ext, ok := allowedMIMETypes[mediaType]
	if !ok {
		return "", fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedFileType, mediaType, strings.Join(allowedTypes(), ", "))
	}
	return ext, nil
}

func allowedTypes() []string {
	types := make([]string, 0, len(allowedMIMETypes))
	for t := range allowedMIMETypes {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
