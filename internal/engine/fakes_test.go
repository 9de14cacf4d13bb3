package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/model"
)

func testPaper() *model.ExamPaper {
	choice := func(id string, n int, text string, opts ...string) model.Question {
		return model.Question{
			ID: id, Number: n, Text: text,
			Type:   model.QuestionTypeMultipleChoice,
			Choice: &model.ChoiceQuestion{Options: opts},
		}
	}
	return &model.ExamPaper{
		ExamID:          uuid.MustParse("6f1b3c1e-2a4d-4d7e-9d51-0c7f6b2a9e10"),
		Title:           "Graduate Assessment",
		DurationSeconds: 3600,
		WarningSeconds:  300,
		MaxTabSwitches:  3,
		Sections: []model.Section{
			{ID: "mcqs", Title: "MCQs", Kind: model.SectionKindChoice, Questions: []model.Question{
				choice("q-1", 1, "2 + 2?", "3", "4"),
				choice("q-2", 2, "Capital of France?", "Paris", "London", "Rome"),
			}},
			{ID: "aptitude", Title: "Aptitude", Kind: model.SectionKindChoice, Questions: []model.Question{
				choice("q-3", 1, "Next in 2, 4, 8?", "12", "16"),
			}},
			{ID: "coding", Title: "Coding", Kind: model.SectionKindCode, Questions: []model.Question{{
				ID: "q-4", Number: 1, Text: "Double the input",
				Type: model.QuestionTypeCode,
				Code: &model.CodeQuestion{TestCases: []model.TestCase{
					{Input: "2", ExpectedOutput: "4"},
					{Input: "5", ExpectedOutput: "10"},
				}},
			}}},
		},
	}
}

type fakeQuestions struct {
	paper *model.ExamPaper
	err   error
}

func (f *fakeQuestions) LoadPaper(_ context.Context, _ string) (*model.ExamPaper, error) {
	return f.paper, f.err
}

type fakeAnswers struct {
	mu     sync.Mutex
	subs   []engine.AnswerSubmission
	err    error
	stored []engine.AnswerSubmission
	// gate, when set, holds every submission until it is closed.
	gate chan struct{}
}

func (f *fakeAnswers) SubmitAnswer(ctx context.Context, a engine.AnswerSubmission) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subs = append(f.subs, a)
	return nil
}

func (f *fakeAnswers) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// latest returns the last submitted answer per question id.
func (f *fakeAnswers) latest() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for _, a := range f.subs {
		out[a.QuestionID] = a.Answer
	}
	return out
}

func (f *fakeAnswers) LoadAnswers(_ context.Context, _ string) ([]engine.AnswerSubmission, error) {
	return f.stored, nil
}

func (f *fakeAnswers) submissions() []engine.AnswerSubmission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.AnswerSubmission(nil), f.subs...)
}

// fakeExecutor echoes the stdin unless an output is configured for it.
type fakeExecutor struct {
	mu        sync.Mutex
	outputs   map[string]string
	err       error
	calls     int
	persisted []engine.CodeSubmission
}

func (f *fakeExecutor) Execute(_ context.Context, req engine.ExecRequest) (engine.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return engine.ExecResult{}, f.err
	}
	out, ok := f.outputs[req.Stdin]
	if !ok {
		out = req.Stdin
	}
	return engine.ExecResult{Output: out + "\n", ExecutionTimeMs: 3}, nil
}

func (f *fakeExecutor) Persist(_ context.Context, sub engine.CodeSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.persisted = append(f.persisted, sub)
	return nil
}

type fakeUploader struct {
	mu     sync.Mutex
	chunks []engine.Chunk
	failAt int
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, _ string, c engine.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil && c.Seq >= f.failAt {
		return f.err
	}
	f.chunks = append(f.chunks, c)
	return nil
}

func (f *fakeUploader) seqs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.chunks))
	for i, c := range f.chunks {
		out[i] = c.Seq
	}
	return out
}

type fakeViolations struct {
	mu     sync.Mutex
	counts []int
}

func (f *fakeViolations) ReportViolation(_ context.Context, _ string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, count)
	return nil
}

func (f *fakeViolations) reported() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.counts...)
}

type fakeLifecycle struct {
	mu       sync.Mutex
	info     engine.SessionInfo
	starts   int
	ends     []engine.EndRequest
	endErr   error
	endCalls int
}

func (f *fakeLifecycle) Start(_ context.Context, _ string, _ int) (engine.SessionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	info := f.info
	if info.ID == "" {
		info.ID = "session-1"
	}
	return info, nil
}

func (f *fakeLifecycle) End(_ context.Context, _ string, req engine.EndRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endCalls++
	if f.endErr != nil {
		return f.endErr
	}
	f.ends = append(f.ends, req)
	return nil
}

func (f *fakeLifecycle) setEndErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endErr = err
}

func (f *fakeLifecycle) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endCalls
}

func (f *fakeLifecycle) ended() []engine.EndRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.EndRequest(nil), f.ends...)
}

// fakeDevice records the calls made on it.
type fakeDevice struct {
	mu         sync.Mutex
	acquireErr error
	calls      []string
}

func (d *fakeDevice) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *fakeDevice) Acquire(_ context.Context) error {
	d.record("acquire")
	return d.acquireErr
}

func (d *fakeDevice) Release() error {
	d.record("release")
	return nil
}

func (d *fakeDevice) StartRecording(_ context.Context, _ time.Duration, _ func(engine.Chunk)) error {
	d.record("start")
	return nil
}

func (d *fakeDevice) StopRecording(_ context.Context) error {
	d.record("stop")
	return nil
}

func (d *fakeDevice) callList() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// manualTicker delivers ticks only when the test sends them.
type manualTicker struct {
	c chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.c }
func (t *manualTicker) Stop()               {}

// tick delivers one tick and reports whether the session accepted it.
func (t *manualTicker) tick(wait time.Duration) bool {
	select {
	case t.c <- time.Now():
		return true
	case <-time.After(wait):
		return false
	}
}

type fixture struct {
	session    *engine.Session
	ticker     *manualTicker
	answers    *fakeAnswers
	executor   *fakeExecutor
	uploader   *fakeUploader
	violations *fakeViolations
	lifecycle  *fakeLifecycle
	device     engine.Device
}

func (f *fixture) deps() engine.Deps {
	return engine.Deps{
		Questions:  &fakeQuestions{paper: testPaper()},
		Answers:    f.answers,
		Executor:   f.executor,
		Recordings: f.uploader,
		Violations: f.violations,
		Lifecycle:  f.lifecycle,
	}
}

func testConfig(ticker *manualTicker) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Retry = engine.RetryPolicy{Attempts: 2, Delay: time.Millisecond}
	cfg.TeardownTimeout = 5 * time.Second
	cfg.NewTicker = func(time.Duration) engine.Ticker { return ticker }
	return cfg
}

type fixtureOption func(*fixture, *engine.SessionParams, *engine.Config)

func withDevice(d engine.Device) fixtureOption {
	return func(f *fixture, p *engine.SessionParams, _ *engine.Config) {
		f.device = d
		p.Device = d
	}
}

func withInfo(info engine.SessionInfo) fixtureOption {
	return func(_ *fixture, p *engine.SessionParams, _ *engine.Config) { p.Info = info }
}

func withPaper(paper *model.ExamPaper) fixtureOption {
	return func(_ *fixture, p *engine.SessionParams, _ *engine.Config) { p.Paper = paper }
}

// newStartedSession builds, runs and starts a session over fakes.
func newStartedSession(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		ticker:     &manualTicker{c: make(chan time.Time)},
		answers:    &fakeAnswers{},
		executor:   &fakeExecutor{},
		uploader:   &fakeUploader{},
		violations: &fakeViolations{},
		lifecycle:  &fakeLifecycle{},
	}
	cfg := testConfig(f.ticker)
	params := engine.SessionParams{
		Info:        engine.SessionInfo{ID: "session-1", StartedAt: time.Now()},
		ExamID:      "exam-1",
		CandidateID: 42,
		Paper:       testPaper(),
		Device:      engine.NewClientDevice(true, ""),
	}
	f.device = params.Device
	for _, opt := range opts {
		opt(f, &params, &cfg)
	}

	s, err := engine.NewSession(params, f.deps(), cfg)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	go s.Run()
	t.Cleanup(s.Close)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.session = s
	return f
}

func waitDone(t *testing.T, s *engine.Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish teardown")
	}
}

// eventually polls cond until it holds or a few seconds pass.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// waitFor reads updates until one of the given kind arrives.
func waitFor(t *testing.T, updates <-chan engine.Update, kind engine.UpdateKind) engine.Update {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				t.Fatalf("updates closed before %q", kind)
			}
			if u.Kind == kind {
				return u
			}
		case <-timeout:
			t.Fatalf("no %q update", kind)
		}
	}
}

func snapshot(t *testing.T, s *engine.Session) engine.Snapshot {
	t.Helper()
	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	return snap
}
