package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lnrs/assessment-portal/internal/model"
)

// RecordingRepository indexes stored recording chunks.
type RecordingRepository struct {
	pool *pgxpool.Pool
}

// NewRecordingRepository creates a new RecordingRepository.
func NewRecordingRepository(pool *pgxpool.Pool) *RecordingRepository {
	return &RecordingRepository{pool: pool}
}

// Insert records a chunk. It reports false when the chunk was already stored.
func (r *RecordingRepository) Insert(ctx context.Context, c *model.RecordingChunk, contentType string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO recording_chunks (session_id, seq, path, content_type, size_bytes, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_id, seq) DO NOTHING`,
		c.SessionID, c.Seq, c.Path, contentType, c.SizeBytes, c.RecordedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CountBySession returns the number of chunks stored for a session.
func (r *RecordingRepository) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM recording_chunks WHERE session_id = $1`, sessionID,
	).Scan(&n)
	return n, err
}
