package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lnrs/assessment-portal/internal/config"
	"github.com/lnrs/assessment-portal/internal/engine"
)

func TestRecordingService_Upload(t *testing.T) {
	dir := t.TempDir()
	index := &fakeChunkIndex{}
	svc := NewRecordingService(&config.Config{RecordingDir: dir, MaxUploadBytes: 1024}, index, zerolog.Nop())

	chunk := engine.Chunk{Seq: 7, ContentType: "video/webm;codecs=vp8,opus", Data: []byte("frame"), RecordedAt: time.Now()}
	if err := svc.Upload(context.Background(), testSessionID.String(), chunk); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	// Same chunk twice is harmless.
	if err := svc.Upload(context.Background(), testSessionID.String(), chunk); err != nil {
		t.Fatalf("repeated Upload() error = %v", err)
	}

	path := filepath.Join(dir, testSessionID.String(), "000007.webm")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read chunk: %v", err)
	}
	if string(data) != "frame" {
		t.Errorf("chunk content = %q", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("files in session dir = %d, want 1", len(entries))
	}
}

func TestRecordingService_Rejects(t *testing.T) {
	svc := NewRecordingService(&config.Config{RecordingDir: t.TempDir(), MaxUploadBytes: 4}, &fakeChunkIndex{}, zerolog.Nop())
	ctx := context.Background()

	tests := []struct {
		name  string
		chunk engine.Chunk
		want  error
	}{
		{"image", engine.Chunk{ContentType: "image/png", Data: []byte("x")}, ErrUnsupportedFileType},
		{"garbage type", engine.Chunk{ContentType: ";;", Data: []byte("x")}, ErrUnsupportedFileType},
		{"too large", engine.Chunk{ContentType: "video/webm", Data: []byte("12345")}, ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Upload(ctx, testSessionID.String(), tt.chunk)
			if !errors.Is(err, tt.want) || !errors.Is(err, engine.ErrValidation) {
				t.Errorf("error = %v, want %v wrapped as validation", err, tt.want)
			}
		})
	}
}
