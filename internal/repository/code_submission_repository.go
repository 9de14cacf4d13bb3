package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lnrs/assessment-portal/internal/model"
)

// CodeSubmissionRepository stores the final code of coding questions.
type CodeSubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewCodeSubmissionRepository creates a new CodeSubmissionRepository.
func NewCodeSubmissionRepository(pool *pgxpool.Pool) *CodeSubmissionRepository {
	return &CodeSubmissionRepository{pool: pool}
}

// Upsert stores a submission, replacing an earlier one for the same question.
func (r *CodeSubmissionRepository) Upsert(ctx context.Context, s *model.CodeSubmission) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO code_submissions (session_id, question_id, language, code)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET language = EXCLUDED.language, code = EXCLUDED.code, submitted_at = NOW()
		 RETURNING id, submitted_at`,
		s.SessionID, s.QuestionID, s.Language, s.Code,
	).Scan(&s.ID, &s.SubmittedAt)
}
