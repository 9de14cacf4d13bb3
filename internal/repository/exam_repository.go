package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lnrs/assessment-portal/internal/model"
)

// ExamRepository handles exam, section and question data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, duration_seconds, warning_seconds, max_tab_switches,
		        status, created_at, updated_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.DurationSeconds, &e.WarningSeconds, &e.MaxTabSwitches,
		&e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListPublished retrieves every published exam.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, duration_seconds, warning_seconds, max_tab_switches,
		        status, created_at, updated_at
		 FROM exams WHERE status = $1
		 ORDER BY created_at`, model.ExamStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.DurationSeconds, &e.WarningSeconds, &e.MaxTabSwitches,
			&e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// ListSections retrieves the sections of an exam in display order, without questions.
func (r *ExamRepository) ListSections(ctx context.Context, examID uuid.UUID) ([]model.Section, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, kind, position
		 FROM sections WHERE exam_id = $1
		 ORDER BY position`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.Title, &s.Kind, &s.Position); err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// ListQuestionRows retrieves the stored questions of an exam ordered by section and number.
func (r *ExamRepository) ListQuestionRows(ctx context.Context, examID uuid.UUID) ([]model.QuestionRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, section_id, order_num, question_text, question_type, payload
		 FROM questions WHERE exam_id = $1
		 ORDER BY section_id, order_num`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.QuestionRow
	for rows.Next() {
		var q model.QuestionRow
		if err := rows.Scan(&q.ID, &q.SectionID, &q.OrderNum, &q.QuestionText, &q.QuestionType, &q.Payload); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// LoadPaper assembles the exam with its sections and decoded questions.
func (r *ExamRepository) LoadPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	exam, err := r.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	sections, err := r.ListSections(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	rows, err := r.ListQuestionRows(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	index := make(map[string]int, len(sections))
	for i, s := range sections {
		index[s.ID] = i
	}
	for _, row := range rows {
		i, ok := index[row.SectionID]
		if !ok {
			return nil, fmt.Errorf("%w: question %s references section %q", model.ErrMalformedQuestion, row.ID, row.SectionID)
		}
		q, err := model.DecodeQuestion(row)
		if err != nil {
			return nil, err
		}
		sections[i].Questions = append(sections[i].Questions, q)
	}

	return &model.ExamPaper{
		ExamID:          exam.ID,
		Title:           exam.Title,
		DurationSeconds: exam.DurationSeconds,
		WarningSeconds:  exam.WarningSeconds,
		MaxTabSwitches:  exam.MaxTabSwitches,
		Sections:        sections,
	}, nil
}

// CreatePaper inserts an exam with its sections and questions in one transaction.
func (r *ExamRepository) CreatePaper(ctx context.Context, exam *model.Exam, sections []model.Section) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO exams (title, duration_seconds, warning_seconds, max_tab_switches, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		exam.Title, exam.DurationSeconds, exam.WarningSeconds, exam.MaxTabSwitches, exam.Status,
	).Scan(&exam.ID, &exam.CreatedAt, &exam.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}

	batch := &pgx.Batch{}
	for pos, s := range sections {
		batch.Queue(
			`INSERT INTO sections (exam_id, id, title, kind, position) VALUES ($1, $2, $3, $4, $5)`,
			exam.ID, s.ID, s.Title, s.Kind, pos,
		)
	}
	for _, s := range sections {
		for _, q := range s.Questions {
			payload, err := q.EncodePayload()
			if err != nil {
				return err
			}
			batch.Queue(
				`INSERT INTO questions (exam_id, section_id, order_num, question_text, question_type, payload)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				exam.ID, s.ID, q.Number, q.Text, q.Type, payload,
			)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert sections: %w", err)
	}

	return tx.Commit(ctx)
}
