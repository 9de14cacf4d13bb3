package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lnrs/assessment-portal/internal/config"
	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/model"
)

// answerTTL keeps the Redis answer buffer around long enough to resume a session.
const answerTTL = 24 * time.Hour

type answerLister interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.SessionAnswer, error)
}

// AnswerService buffers answers in Redis and queues them for the autosave worker.
type AnswerService struct {
	answers answerLister
	rdb     *redis.Client
	log     zerolog.Logger
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(answers answerLister, rdb *redis.Client, log zerolog.Logger) *AnswerService {
	return &AnswerService{
		answers: answers,
		rdb:     rdb,
		log:     log.With().Str("component", "answer_service").Logger(),
	}
}

// SubmitAnswer stores the latest answer of a question.
func (s *AnswerService) SubmitAnswer(ctx context.Context, a engine.AnswerSubmission) error {
	if _, err := uuid.Parse(a.SessionID); err != nil {
		return fmt.Errorf("%w: invalid session id", engine.ErrValidation)
	}
	if _, err := uuid.Parse(a.QuestionID); err != nil {
		return fmt.Errorf("%w: invalid question id", engine.ErrValidation)
	}

	done, err := s.rdb.Exists(ctx, config.CacheKey.SessionCompletedKey(a.SessionID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrNetwork, err)
	}
	if done > 0 {
		return engine.ErrSessionCompleted
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}

	key := config.CacheKey.SessionAnswersKey(a.SessionID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, a.QuestionID, payload)
	pipe.Expire(ctx, key, answerTTL)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: buffer answer: %v", engine.ErrNetwork, err)
	}
	return nil
}

// LoadAnswers returns the answers stored for a session, from Redis when the
// buffer is still there and from PostgreSQL otherwise.
func (s *AnswerService) LoadAnswers(ctx context.Context, sessionID string) ([]engine.AnswerSubmission, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid session id", engine.ErrValidation)
	}

	buffered, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sessionID)).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Answer buffer unavailable, reading database")
	}
	if len(buffered) > 0 {
		out := make([]engine.AnswerSubmission, 0, len(buffered))
		for qid, raw := range buffered {
			var a engine.AnswerSubmission
			if err := json.Unmarshal([]byte(raw), &a); err != nil {
				s.log.Warn().Err(err).Str("question_id", qid).Msg("Skipping unreadable buffered answer")
				continue
			}
			out = append(out, a)
		}
		return out, nil
	}

	rows, err := s.answers.ListBySession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: list answers: %v", engine.ErrNetwork, err)
	}
	out := make([]engine.AnswerSubmission, len(rows))
	for i, r := range rows {
		out[i] = engine.AnswerSubmission{
			SessionID:      sessionID,
			QuestionID:     r.QuestionID,
			SectionID:      r.SectionID,
			QuestionNumber: r.QuestionNumber,
			Answer:         r.Answer,
		}
	}
	return out, nil
}
