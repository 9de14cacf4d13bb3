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

// completedTTL keeps the completion marker until the worker has persisted the session.
const completedTTL = 24 * time.Hour

type sessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	GetByExamAndCandidate(ctx context.Context, examID uuid.UUID, candidateID int) (*model.ExamSession, error)
	Create(ctx context.Context, s *model.ExamSession) error
	TabSwitchCount(ctx context.Context, id uuid.UUID) (int, error)
}

type examGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// ExamSessionService creates, resumes and ends exam sessions.
type ExamSessionService struct {
	sessions sessionStore
	exams    examGetter
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(sessions sessionStore, exams examGetter, rdb *redis.Client, log zerolog.Logger) *ExamSessionService {
	return &ExamSessionService{
		sessions: sessions,
		exams:    exams,
		rdb:      rdb,
		log:      log.With().Str("component", "exam_session_service").Logger(),
	}
}

// Start returns the candidate's session for the exam, creating it on first
// call. A finished session cannot be started again, including one whose
// completion the worker has not persisted yet.
func (s *ExamSessionService) Start(ctx context.Context, examID string, candidateID int) (engine.SessionInfo, error) {
	eid, err := uuid.Parse(examID)
	if err != nil {
		return engine.SessionInfo{}, fmt.Errorf("%w: invalid exam id", engine.ErrValidation)
	}

	existing, err := s.sessions.GetByExamAndCandidate(ctx, eid, candidateID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return engine.SessionInfo{}, fmt.Errorf("%w: check existing session: %v", engine.ErrNetwork, err)
	}

	// Rejoining (reload, second device) resumes the running session.
	if existing != nil {
		if existing.Status != model.SessionStatusInProgress {
			return engine.SessionInfo{}, engine.ErrSessionCompleted
		}
		ended, err := s.rdb.Exists(ctx, config.CacheKey.SessionCompletedKey(existing.ID.String())).Result()
		if err != nil {
			return engine.SessionInfo{}, fmt.Errorf("%w: check completion: %v", engine.ErrNetwork, err)
		}
		if ended > 0 {
			return engine.SessionInfo{}, engine.ErrSessionCompleted
		}
		switches, err := s.tabSwitches(ctx, existing.ID)
		if err != nil {
			return engine.SessionInfo{}, err
		}

		s.cacheSession(ctx, examID, candidateID, existing.ID)
		return engine.SessionInfo{
			ID:          existing.ID.String(),
			StartedAt:   existing.StartedAt,
			Resumed:     true,
			TabSwitches: switches,
		}, nil
	}

	exam, err := s.exams.GetByID(ctx, eid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.SessionInfo{}, ErrExamNotAvailable
		}
		return engine.SessionInfo{}, fmt.Errorf("%w: get exam: %v", engine.ErrNetwork, err)
	}
	if exam.Status != model.ExamStatusPublished {
		return engine.SessionInfo{}, ErrExamNotAvailable
	}

	session := &model.ExamSession{ExamID: eid, CandidateID: candidateID}
	if err := s.sessions.Create(ctx, session); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return engine.SessionInfo{}, fmt.Errorf("%w: create session: %v", engine.ErrNetwork, err)
		}
		// Concurrent start won the insert.
		existing, fetchErr := s.sessions.GetByExamAndCandidate(ctx, eid, candidateID)
		if fetchErr != nil {
			return engine.SessionInfo{}, fmt.Errorf("%w: concurrent start detected, but fetch failed: %v", engine.ErrNetwork, fetchErr)
		}
		session = existing
	}

	s.cacheSession(ctx, examID, candidateID, session.ID)
	s.publish(ctx, examID, model.MonitorEvent{
		Type:        "session_started",
		SessionID:   session.ID.String(),
		CandidateID: candidateID,
		At:          session.StartedAt,
	})

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("exam_id", examID).
		Int("candidate_id", candidateID).
		Msg("Session created")
	return engine.SessionInfo{ID: session.ID.String(), StartedAt: session.StartedAt}, nil
}

// End marks the session finished and queues its outcome for persistence.
// Ending a session twice is harmless.
func (s *ExamSessionService) End(ctx context.Context, sessionID string, req engine.EndRequest) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("%w: invalid session id", engine.ErrValidation)
	}

	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %v", engine.ErrValidation, engine.ErrSessionNotFound)
		}
		return fmt.Errorf("%w: get session: %v", engine.ErrNetwork, err)
	}
	if session.Status != model.SessionStatusInProgress {
		return nil
	}

	status := model.SessionStatusCompleted
	if req.Reason == model.EndReasonViolation {
		status = model.SessionStatusTerminated
	}
	now := time.Now()
	payload, err := json.Marshal(model.SessionCompletion{
		SessionID:   sessionID,
		ExamID:      session.ExamID.String(),
		CandidateID: session.CandidateID,
		Status:      status,
		Reason:      req.Reason,
		TabSwitches: req.TabSwitches,
		Answered:    req.Answered,
		FinishedAt:  now.Unix(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}

	// SETNX keeps a second End from queueing the completion again.
	first, err := s.rdb.SetNX(ctx, config.CacheKey.SessionCompletedKey(sessionID), string(req.Reason), completedTTL).Result()
	if err != nil {
		return fmt.Errorf("%w: mark completed: %v", engine.ErrNetwork, err)
	}
	if !first {
		return nil
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistCompletionsQueue, payload).Err(); err != nil {
		s.rdb.Del(ctx, config.CacheKey.SessionCompletedKey(sessionID))
		return fmt.Errorf("%w: queue completion: %v", engine.ErrNetwork, err)
	}

	s.publish(ctx, session.ExamID.String(), model.MonitorEvent{
		Type:        "session_completed",
		SessionID:   sessionID,
		CandidateID: session.CandidateID,
		Reason:      req.Reason,
		TabSwitches: req.TabSwitches,
		Answered:    req.Answered,
		At:          now,
	})

	s.log.Info().
		Str("session_id", sessionID).
		Str("reason", string(req.Reason)).
		Int("answered", req.Answered).
		Int("tab_switches", req.TabSwitches).
		Msg("Session ended")
	return nil
}

// tabSwitches returns the violation count a resumed session continues from.
// The Redis counter is written with every report; the table lags behind the
// violation worker and is only read when the counter is gone.
func (s *ExamSessionService) tabSwitches(ctx context.Context, id uuid.UUID) (int, error) {
	count, err := s.rdb.Get(ctx, config.CacheKey.SessionTabSwitchesKey(id.String())).Int()
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Failed to read tab switch count, using database")
	}

	count, err = s.sessions.TabSwitchCount(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("%w: count tab switches: %v", engine.ErrNetwork, err)
	}
	return count, nil
}

func (s *ExamSessionService) cacheSession(ctx context.Context, examID string, candidateID int, id uuid.UUID) {
	key := config.CacheKey.CandidateSessionKey(examID, candidateID)
	if err := s.rdb.Set(ctx, key, id.String(), completedTTL).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Failed to cache session id")
	}
}

// publish sends a monitor event. Monitoring is best-effort.
func (s *ExamSessionService) publish(ctx context.Context, examID string, ev model.MonitorEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID), data).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Failed to publish monitor event")
	}
}
