package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// OpenRequest asks the registry for a candidate's session.
type OpenRequest struct {
	ExamID      string
	CandidateID int
	Device      Device
}

// Registry holds the live sessions of this process keyed by session id.
type Registry struct {
	deps Deps
	cfg  Config
	log  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps, cfg Config) *Registry {
	return &Registry{
		deps:     deps,
		cfg:      cfg.withDefaults(),
		log:      log.With().Str("component", "registry").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Open loads the exam, creates or resumes the remote session and returns the
// started session. A candidate opening the same exam twice gets the same
// session.
func (r *Registry) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	if r.deps.Questions == nil || r.deps.Lifecycle == nil {
		return nil, fmt.Errorf("%w: registry has no question source or lifecycle", ErrServer)
	}

	var info SessionInfo
	err := r.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		info, err = r.deps.Lifecycle.Start(ctx, req.ExamID, req.CandidateID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	if s, ok := r.lookup(info.ID); ok {
		if s.CandidateID() != req.CandidateID {
			return nil, ErrNotOwner
		}
		return s, nil
	}

	paper, err := r.deps.Questions.LoadPaper(ctx, req.ExamID)
	if err != nil {
		return nil, fmt.Errorf("load paper: %w", err)
	}

	var stored []AnswerSubmission
	if loader, ok := r.deps.Answers.(AnswerLoader); ok && info.Resumed {
		stored, err = loader.LoadAnswers(ctx, info.ID)
		if err != nil {
			r.log.Warn().Err(err).Str("session_id", info.ID).Msg("Failed to restore answers")
		}
	}

	s, err := NewSession(SessionParams{
		Info:        info,
		ExamID:      req.ExamID,
		CandidateID: req.CandidateID,
		Paper:       paper,
		Device:      req.Device,
		Answers:     stored,
	}, r.deps, r.cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.sessions[info.ID]; ok {
		r.mu.Unlock()
		s.discard()
		if existing.CandidateID() != req.CandidateID {
			return nil, ErrNotOwner
		}
		return existing, nil
	}
	r.sessions[info.ID] = s
	r.mu.Unlock()

	go s.Run()

	if err := s.Start(ctx); err != nil {
		r.Remove(info.ID)
		return nil, err
	}

	r.log.Info().
		Str("session_id", info.ID).
		Str("exam_id", req.ExamID).
		Int("candidate_id", req.CandidateID).
		Bool("resumed", info.Resumed).
		Msg("Session opened")
	return s, nil
}

func (r *Registry) lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Get returns the session owned by candidateID.
func (r *Registry) Get(id string, candidateID int) (*Session, error) {
	s, ok := r.lookup(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.CandidateID() != candidateID {
		return nil, ErrNotOwner
	}
	return s, nil
}

// Remove closes a session and drops it from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Len returns the number of sessions held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run reaps finished sessions until ctx is done, then closes every session
// still held and waits for their teardown.
func (r *Registry) Run(ctx context.Context) error {
	interval := r.cfg.ReapAfter / 5
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case <-ticker.C:
			r.reap(time.Now())
		}
	}
}

// reap drops sessions whose teardown finished more than ReapAfter ago.
func (r *Registry) reap(now time.Time) int {
	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		select {
		case <-s.Done():
		default:
			continue
		}
		report, ok := s.Report()
		if ok && now.Sub(report.CompletedAt) < r.cfg.ReapAfter {
			continue
		}
		stale = append(stale, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		r.log.Debug().Int("count", len(stale)).Msg("Reaped finished sessions")
	}
	return len(stale)
}

func (r *Registry) shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	timeout := time.After(r.cfg.TeardownTimeout)
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-timeout:
			r.log.Warn().Msg("Timed out waiting for sessions to shut down")
			return
		}
	}
	r.log.Info().Int("count", len(sessions)).Msg("Sessions closed")
}
