package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lnrs/assessment-portal/internal/model"
)

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

const sessionColumns = `id, exam_id, candidate_id, started_at, finished_at, status,
		        end_reason, tab_switches, answered_count`

func scanSession(row interface{ Scan(...any) error }) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.ExamID, &s.CandidateID, &s.StartedAt, &s.FinishedAt, &s.Status,
		&s.EndReason, &s.TabSwitches, &s.AnsweredCount)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a session by its UUID.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
}

// GetByExamAndCandidate retrieves the session of a candidate for an exam.
func (r *ExamSessionRepository) GetByExamAndCandidate(ctx context.Context, examID uuid.UUID, candidateID int) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1 AND candidate_id = $2`, examID, candidateID))
}

// Create inserts a new session. It returns pgx.ErrNoRows when the candidate
// already has a session for the exam.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, candidate_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id, candidate_id) DO NOTHING
		 RETURNING id, started_at, status`,
		s.ExamID, s.CandidateID, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.StartedAt, &s.Status)
}

// TabSwitchCount returns the highest tab switch count recorded for a session.
func (r *ExamSessionRepository) TabSwitchCount(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(count), 0)
		 FROM session_violations
		 WHERE session_id = $1 AND kind = $2`, id, model.ViolationTabSwitch,
	).Scan(&count)
	return count, err
}

// Finish stores the outcome of a session that is still in progress.
func (r *ExamSessionRepository) Finish(ctx context.Context, id uuid.UUID, status model.SessionStatus, reason model.EndReason, tabSwitches, answered int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, end_reason = $2, tab_switches = $3, answered_count = $4, finished_at = NOW()
		 WHERE id = $5 AND status = $6`,
		status, reason, tabSwitches, answered, id, model.SessionStatusInProgress)
	return err
}
