package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lnrs/assessment-portal/internal/config"
	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/model"
)

// Domain Errors
var (
	ErrExamNotAvailable = errors.New("exam is not available")
	ErrNoQuestions      = errors.New("exam has no questions")
)

// paperStore is the part of the exam repository the question service reads.
type paperStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListPublished(ctx context.Context) ([]model.Exam, error)
	LoadPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error)
}

// QuestionService serves exam papers from the Redis cache, loading them from
// PostgreSQL on a miss.
type QuestionService struct {
	exams paperStore
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(exams paperStore, rdb *redis.Client, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		exams: exams,
		rdb:   rdb,
		log:   log.With().Str("component", "question_service").Logger(),
	}
}

// LoadPaper returns the paper of a published exam.
func (s *QuestionService) LoadPaper(ctx context.Context, examID string) (*model.ExamPaper, error) {
	id, err := uuid.Parse(examID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid exam id", engine.ErrValidation)
	}

	key := config.CacheKey.ExamSectionsKey(id.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var paper model.ExamPaper
		if jsonErr := json.Unmarshal(data, &paper); jsonErr == nil && len(paper.Sections) > 0 {
			return &paper, nil
		}
		// Corrupt entry: drop it and rebuild from the database.
		s.log.Warn().Str("exam_id", examID).Msg("Discarding unreadable cached paper")
		s.rdb.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Paper cache unavailable, reading database")
	}

	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotAvailable
		}
		return nil, fmt.Errorf("%w: get exam: %v", engine.ErrNetwork, err)
	}
	return s.WarmExamCache(ctx, exam)
}

// WarmExamCache loads a published exam's paper from PostgreSQL into Redis.
func (s *QuestionService) WarmExamCache(ctx context.Context, exam *model.Exam) (*model.ExamPaper, error) {
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}

	paper, err := s.exams.LoadPaper(ctx, exam.ID)
	if err != nil {
		if errors.Is(err, model.ErrMalformedQuestion) {
			return nil, fmt.Errorf("%w: %v", engine.ErrServer, err)
		}
		return nil, fmt.Errorf("%w: load paper: %v", engine.ErrNetwork, err)
	}
	if countQuestions(paper) == 0 {
		return nil, ErrNoQuestions
	}

	payload, err := json.Marshal(paper)
	if err != nil {
		return nil, fmt.Errorf("marshal paper: %w", err)
	}
	key := config.CacheKey.ExamSectionsKey(exam.ID.String())
	if err := s.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		// The paper is still usable; the next load retries the cache.
		s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to cache paper")
		return paper, nil
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("sections", len(paper.Sections)).
		Msg("Cache warmed")
	return paper, nil
}

// PrewarmAllCaches loads all published exams into Redis on application startup.
func (s *QuestionService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.exams.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	start := time.Now()
	warmed := 0
	for i := range exams {
		if _, err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Dur("took", time.Since(start)).
		Msg("Prewarming complete")
	return nil
}

func countQuestions(p *model.ExamPaper) int {
	n := 0
	for _, s := range p.Sections {
		n += len(s.Questions)
	}
	return n
}

// ListExams returns the exams a candidate can start.
func (s *QuestionService) ListExams(ctx context.Context) ([]model.Exam, error) {
	exams, err := s.exams.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list exams: %v", engine.ErrNetwork, err)
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, nil
}
