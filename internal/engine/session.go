package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lnrs/assessment-portal/internal/model"
)

// SectionProgress is the answered count of one section.
type SectionProgress struct {
	SectionID string `json:"section_id"`
	Answered  int    `json:"answered"`
	Total     int    `json:"total"`
}

// Snapshot is a copy of the session state for the client.
type Snapshot struct {
	ID                   string            `json:"id"`
	ExamID               string            `json:"exam_id"`
	RemainingSeconds     int               `json:"remaining_seconds"`
	Clock                string            `json:"clock"`
	TimeWarning          bool              `json:"time_warning"`
	Started              bool              `json:"started"`
	Completed            bool              `json:"completed"`
	Terminated           bool              `json:"terminated"`
	EndReason            model.EndReason   `json:"end_reason,omitempty"`
	TabSwitchCount       int               `json:"tab_switch_count"`
	MaxTabSwitches       int               `json:"max_tab_switches"`
	CurrentSectionID     string            `json:"current_section_id"`
	CurrentQuestionIndex int               `json:"current_question_index"`
	CameraError          string            `json:"camera_error,omitempty"`
	Recording            bool              `json:"recording"`
	RecordingChunkMs     int64             `json:"recording_chunk_ms"`
	Progress             []SectionProgress `json:"progress"`
	Answers              map[string]string `json:"answers"`
}

// CompletionReport is the outcome of the final submission.
type CompletionReport struct {
	SessionID      string          `json:"session_id"`
	Reason         model.EndReason `json:"reason"`
	TabSwitches    int             `json:"tab_switches"`
	Answered       int             `json:"answered"`
	CompletedAt    time.Time       `json:"completed_at"`
	RecordingError string          `json:"recording_error,omitempty"`
	EndError       string          `json:"end_error,omitempty"`
	// UnsavedAnswers counts answers the answer store has not accepted yet.
	UnsavedAnswers int             `json:"unsaved_answers,omitempty"`
}

// Saved reports whether every answer was stored and the session was closed
// remotely.
func (r CompletionReport) Saved() bool {
	return r.EndError == "" && r.UnsavedAnswers == 0
}

// SessionParams describes the session to build.
type SessionParams struct {
	Info        SessionInfo
	ExamID      string
	CandidateID int
	Paper       *model.ExamPaper
	Device      Device
	// Answers restores answers stored by an earlier run of the session.
	Answers []AnswerSubmission
}

// Session is one candidate's exam. All state changes run on a single loop
// goroutine (Run) in the order the events arrive; timer ticks are delivered
// to the same loop.
type Session struct {
	id          string
	examID      string
	candidateID int
	cfg         Config
	deps        Deps
	log         zerolog.Logger

	timer   *Timer
	nav     *Navigator
	answers *AnswerStore
	proctor *Proctor
	runner  *CodeRunner
	device  Device

	ctx    context.Context
	cancel context.CancelFunc

	events  chan func()
	updates *broadcaster
	out     *outbox

	closed    chan struct{}
	closeOnce sync.Once
	done      chan struct{}
	finished  atomic.Bool

	ticker     Ticker
	ticks      int
	warned     bool
	started    bool
	completed  bool
	terminated bool
	overLimit  bool
	endReason  model.EndReason

	// unsaved holds the latest value of every answer the answer store has
	// not accepted yet. Outbox jobs drain it; teardown and resubmit retry
	// what is left.
	unsavedMu  sync.Mutex
	unsaved    map[AnswerKey]AnswerSubmission
	sendMu     sync.Mutex
	sendQueued atomic.Bool

	mu      sync.Mutex
	report  *CompletionReport
	end     *EndRequest
	retryMu sync.Mutex
}

// NewSession builds a session that has not started yet. Call Run on its own
// goroutine before using it.
func NewSession(p SessionParams, deps Deps, cfg Config) (*Session, error) {
	if p.Info.ID == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrValidation)
	}
	if p.Paper == nil {
		return nil, fmt.Errorf("%w: no exam paper", ErrValidation)
	}

	cfg = cfg.withDefaults().forPaper(p.Paper)

	nav, err := NewNavigator(p.Paper.Sections)
	if err != nil {
		return nil, err
	}

	duration := cfg.DurationSeconds
	if p.Info.Resumed && !p.Info.StartedAt.IsZero() {
		duration -= int(time.Since(p.Info.StartedAt) / time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:          p.Info.ID,
		examID:      p.ExamID,
		candidateID: p.CandidateID,
		cfg:         cfg,
		deps:        deps,
		log:         log.With().Str("component", "session").Str("session_id", p.Info.ID).Logger(),
		timer:       NewTimer(duration, cfg.WarningSeconds),
		nav:         nav,
		answers:     NewAnswerStore(),
		runner:      NewCodeRunner(deps.Executor),
		device:      p.Device,
		ctx:         ctx,
		cancel:      cancel,
		events:      make(chan func()),
		updates:     newBroadcaster(),
		out:         newOutbox(ctx, 256),
		closed:      make(chan struct{}),
		done:        make(chan struct{}),
		unsaved:     make(map[AnswerKey]AnswerSubmission),
	}
	s.proctor = NewProctor(s.id, p.Device, deps.Recordings, ProctorConfig{
		MaxTabSwitches: cfg.MaxTabSwitches,
		ChunkInterval:  cfg.ChunkInterval,
		Retry:          cfg.Retry,
	})
	if p.Info.TabSwitches > 0 {
		s.overLimit = s.proctor.Restore(p.Info.TabSwitches)
	}
	s.restoreAnswers(p.Answers)

	return s, nil
}

func (s *Session) restoreAnswers(stored []AnswerSubmission) {
	if len(stored) == 0 {
		return
	}
	for _, a := range stored {
		for _, sec := range s.nav.Sections() {
			if sec.ID != a.SectionID {
				continue
			}
			for i, q := range sec.Questions {
				if q.ID == a.QuestionID {
					s.answers.Select(sec.ID, i, a.Answer)
				}
			}
		}
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// ExamID returns the exam the session belongs to.
func (s *Session) ExamID() string { return s.examID }

// CandidateID returns the owner of the session.
func (s *Session) CandidateID() int { return s.candidateID }

// Device returns the recording device handle.
func (s *Session) Device() Device { return s.device }

// Completed reports whether the session was finalized. Safe from any
// goroutine.
func (s *Session) Completed() bool { return s.finished.Load() }

// Done is closed once the session finished its teardown.
func (s *Session) Done() <-chan struct{} { return s.done }

// Report returns the completion report once teardown is over.
func (s *Session) Report() (CompletionReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return CompletionReport{}, false
	}
	return *s.report, true
}

// Subscribe returns a channel of updates and a function to stop receiving
// them. The channel is closed when the session shuts down.
func (s *Session) Subscribe() (<-chan Update, func()) {
	return s.updates.subscribe(64)
}

// Close stops the loop. An unfinished session is not submitted; its
// recording is stopped and flushed.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// discard releases a session whose loop never ran.
func (s *Session) discard() {
	s.out.close()
	s.cancel()
}

// Run is the session loop. It returns after Close.
func (s *Session) Run() {
	for {
		var tickC <-chan time.Time
		if s.ticker != nil {
			tickC = s.ticker.C()
		}

		select {
		case fn := <-s.events:
			fn()
		case <-tickC:
			s.onTick()
		case <-s.closed:
			if !s.completed {
				s.abort()
			}
			return
		}
	}
}

// do runs fn on the loop and returns its error.
func (s *Session) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case s.events <- func() { errc <- fn() }:
	case <-s.closed:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-errc
}

// Start begins the countdown and moves to the first question. Starting twice
// is a no-op.
func (s *Session) Start(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.completed {
			return ErrSessionCompleted
		}
		if s.started {
			return nil
		}
		s.started = true
		s.nav.Start()

		s.proctor.Start(s.ctx)
		if msg := s.proctor.CameraError(); msg != "" {
			s.log.Warn().Str("camera_error", msg).Msg("Recording disabled")
			s.updates.publish(Update{Kind: UpdateCameraError, Message: msg})
		}

		// A resumed session may have used up its tab switches already.
		if s.overLimit {
			s.log.Warn().Int("count", s.proctor.Violations()).Msg("Tab switch limit reached before resume")
			s.terminated = true
			s.finalize(model.EndReasonViolation)
			return nil
		}
		if s.timer.Remaining() == 0 {
			s.finalize(model.EndReasonTimeout)
			return nil
		}
		s.timer.Start()
		s.ticker = s.cfg.NewTicker(s.cfg.TickInterval)

		s.log.Info().Int("remaining_seconds", s.timer.Remaining()).Msg("Session started")
		s.publishState()
		return nil
	})
}

// GoToSection moves to the first question of a section, or home.
func (s *Session) GoToSection(ctx context.Context, sectionID string) error {
	return s.do(ctx, func() error {
		if s.completed {
			return ErrSessionCompleted
		}
		if err := s.nav.GoToSection(sectionID); err != nil {
			return err
		}
		s.publishState()
		return nil
	})
}

// SelectQuestion jumps to a question of the current section.
func (s *Session) SelectQuestion(ctx context.Context, index int) error {
	return s.do(ctx, func() error {
		if s.completed {
			return ErrSessionCompleted
		}
		if err := s.nav.SelectQuestion(index); err != nil {
			return err
		}
		s.publishState()
		return nil
	})
}

// Next moves one question forward.
func (s *Session) Next(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.completed {
			return ErrSessionCompleted
		}
		if s.nav.Next() {
			s.publishState()
		}
		return nil
	})
}

// Previous moves one question back.
func (s *Session) Previous(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.completed {
			return ErrSessionCompleted
		}
		if s.nav.Previous() {
			s.publishState()
		}
		return nil
	})
}

// SelectAnswer records an answer. The record changes at once; the remote
// submission happens in the background and only when the value changed.
func (s *Session) SelectAnswer(ctx context.Context, sectionID string, index int, value string) error {
	return s.do(ctx, func() error {
		if s.completed {
			return ErrSessionCompleted
		}
		if !s.started {
			return ErrNotStarted
		}
		q, err := s.nav.Question(sectionID, index)
		if err != nil {
			return err
		}
		if q.Choice != nil && !q.Choice.HasOption(value) {
			return fmt.Errorf("%w: %q", ErrInvalidOption, value)
		}
		s.recordAnswer(sectionID, index, q, value)
		return nil
	})
}

// recordAnswer runs on the loop.
func (s *Session) recordAnswer(sectionID string, index int, q model.Question, value string) {
	if !s.answers.Select(sectionID, index, value) {
		return
	}

	if s.deps.Answers != nil {
		s.unsavedMu.Lock()
		s.unsaved[AnswerKey{SectionID: sectionID, QuestionIndex: index}] = AnswerSubmission{
			SessionID:      s.id,
			QuestionID:     q.ID,
			SectionID:      sectionID,
			QuestionNumber: q.Number,
			Answer:         value,
		}
		s.unsavedMu.Unlock()
		s.queueSend()
	}
	s.publishState()
}

// queueSend schedules one outbox job that sends every unsaved answer. While
// such a job is waiting, further changes ride along with it.
func (s *Session) queueSend() {
	if !s.sendQueued.CompareAndSwap(false, true) {
		return
	}
	ok := s.out.push(func(ctx context.Context) {
		s.sendQueued.Store(false)
		failed, err := s.sendUnsaved(ctx)
		if err == nil {
			return
		}
		s.log.Error().Err(err).Int("unsaved", len(failed)).Msg("Failed to save answers")
		msg := fmt.Sprintf("%d answers could not be saved. They are kept and will be sent again with your next answer or when you submit.", len(failed))
		if len(failed) == 1 {
			msg = fmt.Sprintf("Answer for question %d could not be saved. It is kept and will be sent again with your next answer or when you submit.", failed[0].QuestionNumber)
		}
		s.updates.publish(Update{Kind: UpdateSubmissionFailed, Message: msg})
	})
	if !ok {
		// The answers stay unsaved and go out with the next job or at teardown.
		s.sendQueued.Store(false)
		s.log.Warn().Msg("Outbox full, answer submission deferred")
	}
}

// sendUnsaved submits the unsaved answers in key order and returns the ones
// still unsaved afterwards. An answer changed while it was in flight stays
// unsaved with its new value.
func (s *Session) sendUnsaved(ctx context.Context) ([]AnswerSubmission, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.unsavedMu.Lock()
	keys := make([]AnswerKey, 0, len(s.unsaved))
	for k := range s.unsaved {
		keys = append(keys, k)
	}
	batch := make(map[AnswerKey]AnswerSubmission, len(keys))
	for _, k := range keys {
		batch[k] = s.unsaved[k]
	}
	s.unsavedMu.Unlock()

	slices.SortFunc(keys, func(a, b AnswerKey) int {
		if c := cmp.Compare(a.SectionID, b.SectionID); c != 0 {
			return c
		}
		return cmp.Compare(a.QuestionIndex, b.QuestionIndex)
	})

	var (
		failed  []AnswerSubmission
		lastErr error
	)
	for _, k := range keys {
		sub := batch[k]
		err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
			return s.deps.Answers.SubmitAnswer(ctx, sub)
		})
		if err != nil {
			failed = append(failed, sub)
			lastErr = err
			continue
		}
		s.unsavedMu.Lock()
		if cur, ok := s.unsaved[k]; ok && cur.Answer == sub.Answer {
			delete(s.unsaved, k)
		}
		s.unsavedMu.Unlock()
	}
	if lastErr != nil {
		return failed, fmt.Errorf("%d of %d answers not saved: %w", len(failed), len(keys), lastErr)
	}
	return nil, nil
}


// Visibility reports a page visibility change. Hidden transitions count as
// violations once the exam has started; reaching the limit ends the exam.
func (s *Session) Visibility(ctx context.Context, hidden bool) error {
	return s.do(ctx, func() error {
		if !hidden || !s.started || s.completed {
			return nil
		}

		count, forced := s.proctor.Hidden()
		limit := s.proctor.MaxTabSwitches()
		s.log.Warn().Int("count", count).Int("limit", limit).Msg("Tab switch detected")

		pushed := s.out.push(func(ctx context.Context) {
			if s.deps.Violations == nil {
				return
			}
			err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
				return s.deps.Violations.ReportViolation(ctx, s.id, count)
			})
			if err != nil {
				s.log.Error().Err(err).Int("count", count).Msg("Failed to report violation")
			}
		})
		if !pushed {
			s.log.Error().Int("count", count).Msg("Outbox full, violation report dropped")
		}

		msg := fmt.Sprintf("Tab switching detected (%d/%d). The exam will be submitted automatically at %d.", count, limit, limit)
		if forced {
			msg = "Tab switch limit reached. Your exam has been submitted."
		}
		s.updates.publish(Update{Kind: UpdateViolation, Violations: count, MaxViolations: limit, Message: msg})

		if forced {
			s.terminated = true
			s.finalize(model.EndReasonViolation)
		}
		return nil
	})
}

// Submit ends the exam on the candidate's request. Submitting a finished
// session retries whatever its final submission could not save, and is a
// no-op once everything was saved.
func (s *Session) Submit(ctx context.Context) error {
	var finished bool
	err := s.do(ctx, func() error {
		if s.completed {
			finished = true
			return nil
		}
		if !s.started {
			return ErrNotStarted
		}
		s.finalize(model.EndReasonManual)
		return nil
	})
	if err != nil || !finished {
		return err
	}
	return s.resubmit(ctx)
}

// resubmit sends the answers left unsaved by teardown and closes the session
// remotely if that failed before. It does nothing while teardown runs.
func (s *Session) resubmit(ctx context.Context) error {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()

	s.mu.Lock()
	if s.report == nil || s.report.Saved() {
		s.mu.Unlock()
		return nil
	}
	report, end := *s.report, *s.end
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.report = &report
		s.mu.Unlock()
	}()

	if s.deps.Answers != nil {
		failed, err := s.sendUnsaved(ctx)
		report.UnsavedAnswers = len(failed)
		if err != nil {
			return err
		}
	}

	if report.EndError != "" && s.deps.Lifecycle != nil {
		err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
			return s.deps.Lifecycle.End(ctx, s.id, end)
		})
		if err != nil {
			report.EndError = err.Error()
			return fmt.Errorf("close session: %w", err)
		}
		report.EndError = ""
	}

	s.log.Info().Str("reason", string(end.Reason)).Msg("Final submission saved on retry")
	return nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// Paper returns the sections without expected outputs.
func (s *Session) Paper() []model.Section {
	sections := s.nav.Sections()
	out := make([]model.Section, len(sections))
	for i, sec := range sections {
		out[i] = sec.ForCandidate()
	}
	return out
}

// currentCode resolves the coding question at the current position.
func (s *Session) currentCode(ctx context.Context) (Position, model.Question, error) {
	var (
		pos Position
		q   model.Question
	)
	err := s.do(ctx, func() error {
		if s.completed {
			return ErrSessionCompleted
		}
		if !s.started {
			return ErrNotStarted
		}
		cur, ok := s.nav.Current()
		if !ok || cur.Code == nil {
			return ErrNotCodeQuestion
		}
		pos, q = s.nav.Position(), cur
		return nil
	})
	return pos, q, err
}

// RunCode runs code against the test cases of the current coding question.
// The run happens off the loop; its result is dropped if the session
// finished meanwhile.
func (s *Session) RunCode(ctx context.Context, code, language string) (RunResult, error) {
	_, q, err := s.currentCode(ctx)
	if err != nil {
		return RunResult{}, err
	}
	if s.deps.Executor == nil {
		return RunResult{Status: RunError, Total: len(q.Code.TestCases), Error: "code execution is unavailable"}, nil
	}

	res := s.runner.Run(ctx, code, language, q.Code.TestCases)
	if s.Completed() {
		return RunResult{}, ErrSessionCompleted
	}
	return res, nil
}

// SubmitCode persists the final code of the current coding question and
// records it as the answer.
func (s *Session) SubmitCode(ctx context.Context, code, language string) error {
	pos, q, err := s.currentCode(ctx)
	if err != nil {
		return err
	}
	if s.deps.Executor == nil {
		return fmt.Errorf("%w: code execution is unavailable", ErrServer)
	}

	sub := CodeSubmission{SessionID: s.id, QuestionID: q.ID, Language: language, Code: code}
	err = s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		return s.runner.Submit(ctx, sub)
	})
	if err != nil {
		return err
	}

	return s.do(ctx, func() error {
		if s.completed {
			return ErrSessionCompleted
		}
		s.recordAnswer(pos.SectionID, pos.Index, q, code)
		return nil
	})
}

// RecordChunk hands an uploaded recording chunk to the device.
func (s *Session) RecordChunk(seq int, contentType string, data []byte) error {
	if s.Completed() {
		return ErrSessionCompleted
	}
	d, ok := s.device.(interface {
		Push(seq int, contentType string, data []byte) error
	})
	if !ok {
		return fmt.Errorf("%w: device does not accept uploads", ErrValidation)
	}
	return d.Push(seq, contentType, data)
}

func (s *Session) onTick() {
	if s.completed || !s.timer.Running() {
		return
	}

	expired := s.timer.Tick()
	s.ticks++
	s.updates.publish(Update{Kind: UpdateTick, Remaining: s.timer.Remaining(), Clock: s.timer.Clock()})

	if !s.warned && !expired && s.timer.Warning() {
		s.warned = true
		s.updates.publish(Update{
			Kind:      UpdateWarning,
			Remaining: s.timer.Remaining(),
			Clock:     s.timer.Clock(),
			Message:   fmt.Sprintf("Only %s left. Your exam will be submitted automatically when time runs out.", s.timer.Clock()),
		})
	}

	if s.cfg.FlushEvery > 0 && s.ticks%s.cfg.FlushEvery == 0 && s.proctor.Pending() > 0 {
		s.out.push(func(ctx context.Context) {
			if err := s.proctor.Flush(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Periodic recording flush failed")
			}
		})
	}

	if expired {
		s.finalize(model.EndReasonTimeout)
	}
}

// finalize is the one path that ends an exam, whatever triggered it. It
// runs at most once.
func (s *Session) finalize(reason model.EndReason) {
	if s.completed {
		return
	}
	s.completed = true
	s.finished.Store(true)
	s.endReason = reason

	s.timer.Stop()
	s.stopTicker()
	if err := s.proctor.Halt(s.ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to stop recording")
	}
	s.out.close()

	req := EndRequest{
		Reason:      reason,
		TabSwitches: s.proctor.Violations(),
		Answered:    s.answers.Len(),
	}
	s.log.Info().Str("reason", string(reason)).Int("answered", req.Answered).Msg("Session finalized")
	s.publishState()

	go s.teardown(&req)
}

// abort stops an unfinished session without submitting it.
func (s *Session) abort() {
	s.finished.Store(true)
	s.timer.Stop()
	s.stopTicker()
	if err := s.proctor.Halt(s.ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to stop recording")
	}
	s.out.close()
	s.log.Info().Msg("Session closed before completion")

	go s.teardown(nil)
}

// teardown drains the outbox, flushes the recording and, when end is set,
// closes the session remotely.
func (s *Session) teardown(end *EndRequest) {
	defer close(s.done)
	defer s.cancel()
	defer s.updates.closeAll()

	s.out.wait()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TeardownTimeout)
	defer cancel()

	var unsaved int
	if s.deps.Answers != nil {
		failed, err := s.sendUnsaved(ctx)
		if err != nil {
			unsaved = len(failed)
			s.log.Error().Err(err).Msg("Answers left unsaved at teardown")
		}
	}

	var flushErr error
	if err := s.proctor.Flush(ctx); err != nil {
		flushErr = err
		s.log.Error().Err(err).Int("pending", s.proctor.Pending()).Msg("Failed to upload recording")
	}

	if end == nil {
		return
	}

	report := CompletionReport{
		SessionID:      s.id,
		Reason:         end.Reason,
		TabSwitches:    end.TabSwitches,
		Answered:       end.Answered,
		CompletedAt:    time.Now().UTC(),
		UnsavedAnswers: unsaved,
	}
	if flushErr != nil {
		report.RecordingError = flushErr.Error()
	}

	if s.deps.Lifecycle != nil {
		err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
			return s.deps.Lifecycle.End(ctx, s.id, *end)
		})
		if err != nil {
			report.EndError = err.Error()
			s.log.Error().Err(err).Msg("Failed to close session")
		}
	}

	s.mu.Lock()
	s.report = &report
	s.end = end
	s.mu.Unlock()

	s.updates.publish(Update{Kind: UpdateCompleted, Report: &report, Message: completionMessage(report)})
}

func completionMessage(report CompletionReport) string {
	var msg string
	switch report.Reason {
	case model.EndReasonTimeout:
		msg = "Time is up. Your exam has been submitted."
	case model.EndReasonViolation:
		msg = "Your exam was submitted because the tab switch limit was reached."
	default:
		msg = "Your exam has been submitted."
	}
	if !report.Saved() {
		msg += " Part of it could not be saved yet. Submit again to retry."
	}
	return msg
}

func (s *Session) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *Session) publishState() {
	snap := s.snapshot()
	s.updates.publish(Update{Kind: UpdateState, State: &snap})
}

func (s *Session) snapshot() Snapshot {
	pos := s.nav.Position()
	sections := s.nav.Sections()
	progress := make([]SectionProgress, len(sections))
	for i, sec := range sections {
		progress[i] = SectionProgress{
			SectionID: sec.ID,
			Answered:  s.answers.Progress(sec.ID),
			Total:     len(sec.Questions),
		}
	}

	return Snapshot{
		ID:                   s.id,
		ExamID:               s.examID,
		RemainingSeconds:     s.timer.Remaining(),
		Clock:                s.timer.Clock(),
		TimeWarning:          s.timer.Warning(),
		Started:              s.started,
		Completed:            s.completed,
		Terminated:           s.terminated,
		EndReason:            s.endReason,
		TabSwitchCount:       s.proctor.Violations(),
		MaxTabSwitches:       s.proctor.MaxTabSwitches(),
		CurrentSectionID:     pos.SectionID,
		CurrentQuestionIndex: pos.Index,
		CameraError:          s.proctor.CameraError(),
		Recording:            s.proctor.Recording(),
		RecordingChunkMs:     s.cfg.ChunkInterval.Milliseconds(),
		Progress:             progress,
		Answers:              s.answers.Snapshot(),
	}
}
