package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lnrs/assessment-portal/internal/model"
)

// AnswerRepository reads persisted session answers.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// ListBySession retrieves every answer stored for a session.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.SessionAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, question_id::text, section_id, question_number, answer, updated_at
		 FROM session_answers WHERE session_id = $1
		 ORDER BY section_id, question_number`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.SessionAnswer
	for rows.Next() {
		var a model.SessionAnswer
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.SectionID, &a.QuestionNumber, &a.Answer, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
