package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lnrs/assessment-portal/internal/config"
	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/handler"
	"github.com/lnrs/assessment-portal/internal/middleware"
	"github.com/lnrs/assessment-portal/internal/model"
	"github.com/lnrs/assessment-portal/internal/response"
	"github.com/lnrs/assessment-portal/internal/router"
	"github.com/lnrs/assessment-portal/internal/service"
	"github.com/lnrs/assessment-portal/internal/validator"
)

var testExamID = uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f")

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

func testPaper() *model.ExamPaper {
	return &model.ExamPaper{
		ExamID:          testExamID,
		Title:           "Handler Test",
		DurationSeconds: 600,
		Sections: []model.Section{
			{ID: "mcqs", Title: "MCQ", Kind: model.SectionKindChoice, Questions: []model.Question{
				{ID: uuid.NewString(), Number: 1, Text: "2+2?", Type: model.QuestionTypeMultipleChoice,
					Choice: &model.ChoiceQuestion{Options: []string{"3", "4"}}},
				{ID: uuid.NewString(), Number: 2, Text: "3+3?", Type: model.QuestionTypeMultipleChoice,
					Choice: &model.ChoiceQuestion{Options: []string{"6", "7"}}},
			}},
			{ID: "coding", Title: "Code", Kind: model.SectionKindCode, Questions: []model.Question{
				{ID: uuid.NewString(), Number: 1, Text: "echo", Type: model.QuestionTypeCode,
					Code: &model.CodeQuestion{TestCases: []model.TestCase{{Input: "hi", ExpectedOutput: "hi"}}}},
			}},
		},
	}
}

// ─── Fakes ──────────────────────────────────────────────────────────

type fakeQuestions struct{ paper *model.ExamPaper }

func (f *fakeQuestions) LoadPaper(_ context.Context, examID string) (*model.ExamPaper, error) {
	if examID != f.paper.ExamID.String() {
		return nil, service.ErrExamNotAvailable
	}
	return f.paper, nil
}

type fakeLifecycle struct {
	mu       sync.Mutex
	sessions map[string]string
	ended    []string
}

func (f *fakeLifecycle) Start(_ context.Context, examID string, candidateID int) (engine.SessionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%s/%d", examID, candidateID)
	if id, ok := f.sessions[key]; ok {
		return engine.SessionInfo{ID: id, StartedAt: time.Now(), Resumed: true}, nil
	}
	id := uuid.NewString()
	f.sessions[key] = id
	return engine.SessionInfo{ID: id, StartedAt: time.Now()}, nil
}

func (f *fakeLifecycle) End(_ context.Context, sessionID string, _ engine.EndRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, sessionID)
	return nil
}

type nopAnswers struct{}

func (nopAnswers) SubmitAnswer(context.Context, engine.AnswerSubmission) error { return nil }

type nopViolations struct{}

func (nopViolations) ReportViolation(context.Context, string, int) error { return nil }

// echoExecutor prints its stdin back.
type echoExecutor struct{}

func (echoExecutor) Execute(_ context.Context, req engine.ExecRequest) (engine.ExecResult, error) {
	return engine.ExecResult{Output: req.Stdin + "\n", ExecutionTimeMs: 3}, nil
}

func (echoExecutor) Persist(context.Context, engine.CodeSubmission) error { return nil }

type nopChunkIndex struct{}

func (nopChunkIndex) Insert(context.Context, *model.RecordingChunk, string) (bool, error) {
	return true, nil
}

// idleTicker never fires, so the countdown stays put during a test.
type idleTicker struct{ c chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.c }
func (t idleTicker) Stop()               {}

// ─── Harness ────────────────────────────────────────────────────────

type harness struct {
	t        *testing.T
	router   *gin.Engine
	auth     *service.AuthService
	registry *engine.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{
		GinMode:        gin.TestMode,
		JWTSecret:      "handler-test-secret",
		RecordingDir:   t.TempDir(),
		MaxUploadBytes: 1024,
		CodeRunPerMin:  100,
	}
	auth := service.NewAuthService(cfg)
	recordings := service.NewRecordingService(cfg, nopChunkIndex{}, zerolog.Nop())

	ec := engine.DefaultConfig()
	ec.NewTicker = func(time.Duration) engine.Ticker { return idleTicker{c: make(chan time.Time)} }
	ec.Retry = engine.RetryPolicy{Attempts: 1}
	registry := engine.NewRegistry(engine.Deps{
		Questions:  &fakeQuestions{paper: testPaper()},
		Answers:    nopAnswers{},
		Executor:   echoExecutor{},
		Recordings: recordings,
		Violations: nopViolations{},
		Lifecycle:  &fakeLifecycle{sessions: make(map[string]string)},
	}, ec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		registry.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	handlers := &router.Handlers{
		Exam:      handler.NewExamHandler(service.NewQuestionService(nil, nil, zerolog.Nop())),
		Session:   handler.NewSessionHandler(registry),
		Code:      handler.NewCodeHandler(),
		Recording: handler.NewRecordingHandler(recordings),
		WS:        handler.NewWSHandler(zerolog.Nop(), nil),
	}
	limiter := middleware.NewRateLimiter(cfg.CodeRunPerMin, time.Minute).WithKey(middleware.KeyByCandidate)

	return &harness{
		t:        t,
		router:   router.SetupRouter(auth, registry, limiter, handlers, cfg),
		auth:     auth,
		registry: registry,
	}
}

func (h *harness) token(candidateID int) string {
	h.t.Helper()
	tok, err := h.auth.SignCandidateToken(candidateID, "Candidate", time.Hour)
	if err != nil {
		h.t.Fatal(err)
	}
	return tok
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

type sessionBody struct {
	Session engine.Snapshot `json:"session"`
}

func (h *harness) do(method, path, token string, body any) (int, envelope) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		h.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func (h *harness) start(candidateID int, granted bool) engine.Snapshot {
	h.t.Helper()
	code, env := h.do(http.MethodPost, "/api/v1/candidate/exams/"+testExamID.String()+"/sessions",
		h.token(candidateID), model.StartSessionRequest{CameraGranted: granted})
	if code != http.StatusOK {
		h.t.Fatalf("start: status = %d, error = %+v", code, env.Error)
	}
	return decodeSession(h.t, env)
}

func decodeSession(t *testing.T, env envelope) engine.Snapshot {
	t.Helper()
	var body sessionBody
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatal(err)
	}
	return body.Session
}

func sessionPath(id, suffix string) string {
	return "/api/v1/candidate/sessions/" + id + suffix
}

// ─── Tests ──────────────────────────────────────────────────────────

func TestStartSession(t *testing.T) {
	h := newHarness(t)

	snap := h.start(7, true)
	if !snap.Started || snap.CurrentSectionID != "mcqs" || snap.RemainingSeconds != 600 {
		t.Errorf("snapshot = %+v", snap)
	}
	if !snap.Recording || snap.CameraError != "" {
		t.Errorf("recording = %v, camera error = %q", snap.Recording, snap.CameraError)
	}

	again := h.start(7, true)
	if again.ID != snap.ID {
		t.Errorf("second start opened %s, want the same session %s", again.ID, snap.ID)
	}
	if h.registry.Len() != 1 {
		t.Errorf("registry holds %d sessions, want 1", h.registry.Len())
	}
}

func TestStartSession_CameraDeniedStillStarts(t *testing.T) {
	h := newHarness(t)

	snap := h.start(7, false)
	if !snap.Started || snap.Recording || snap.CameraError == "" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestStartSession_Errors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name     string
		path     string
		token    string
		wantCode int
		wantErr  response.ErrCode
	}{
		{"no token", "/api/v1/candidate/exams/" + testExamID.String() + "/sessions", "", http.StatusUnauthorized, response.ErrTokenRequired},
		{"bad exam id", "/api/v1/candidate/exams/nope/sessions", h.token(1), http.StatusBadRequest, response.ErrInvalidID},
		{"unknown exam", "/api/v1/candidate/exams/" + uuid.NewString() + "/sessions", h.token(1), http.StatusNotFound, response.ErrExamNotAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := h.do(http.MethodPost, tt.path, tt.token, model.StartSessionRequest{CameraGranted: true})
			if code != tt.wantCode || env.Error == nil || env.Error.Code != tt.wantErr {
				t.Errorf("status = %d, error = %+v, want %d %s", code, env.Error, tt.wantCode, tt.wantErr)
			}
		})
	}
}

func TestSession_OwnerOnly(t *testing.T) {
	h := newHarness(t)
	snap := h.start(7, true)

	code, env := h.do(http.MethodGet, sessionPath(snap.ID, ""), h.token(8), nil)
	if code != http.StatusForbidden || env.Error.Code != response.ErrNotSessionOwner {
		t.Errorf("other candidate: status = %d, error = %+v", code, env.Error)
	}

	code, env = h.do(http.MethodGet, sessionPath(uuid.NewString(), ""), h.token(7), nil)
	if code != http.StatusNotFound || env.Error.Code != response.ErrSessionNotFound {
		t.Errorf("unknown session: status = %d, error = %+v", code, env.Error)
	}
}

func TestNavigateAndAnswer(t *testing.T) {
	h := newHarness(t)
	tok := h.token(7)
	id := h.start(7, true).ID

	code, env := h.do(http.MethodPut, sessionPath(id, "/answers"), tok,
		model.SelectAnswerRequest{SectionID: "mcqs", QuestionIndex: 0, Answer: "5"})
	if code != http.StatusBadRequest || env.Error.Code != response.ErrInvalidOption {
		t.Errorf("invalid option: status = %d, error = %+v", code, env.Error)
	}

	code, env = h.do(http.MethodPut, sessionPath(id, "/answers"), tok,
		model.SelectAnswerRequest{SectionID: "mcqs", QuestionIndex: 0, Answer: "4"})
	if code != http.StatusOK {
		t.Fatalf("answer: status = %d, error = %+v", code, env.Error)
	}
	if got := decodeSession(t, env).Answers["mcqs-0"]; got != "4" {
		t.Errorf("answers[mcqs-0] = %q, want 4", got)
	}

	code, env = h.do(http.MethodPost, sessionPath(id, "/navigate"), tok, model.NavigateRequest{Action: model.NavigateNext})
	if code != http.StatusOK {
		t.Fatalf("next: status = %d, error = %+v", code, env.Error)
	}
	if snap := decodeSession(t, env); snap.CurrentQuestionIndex != 1 {
		t.Errorf("index after next = %d, want 1", snap.CurrentQuestionIndex)
	}

	code, env = h.do(http.MethodPost, sessionPath(id, "/navigate"), tok,
		model.NavigateRequest{Action: model.NavigateSection, SectionID: "missing"})
	if code != http.StatusBadRequest || env.Error.Code != response.ErrUnknownSection {
		t.Errorf("unknown section: status = %d, error = %+v", code, env.Error)
	}

	code, env = h.do(http.MethodPost, sessionPath(id, "/navigate"), tok, map[string]string{"action": "sideways"})
	if code != http.StatusBadRequest || env.Error.Code != response.ErrValidation {
		t.Errorf("bad action: status = %d, error = %+v", code, env.Error)
	}
}

func TestGetPaper_HidesExpectedOutput(t *testing.T) {
	h := newHarness(t)
	tok := h.token(7)
	id := h.start(7, true).ID

	req := httptest.NewRequest(http.MethodGet, sessionPath(id, "/paper"), nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "expected_output") {
		t.Errorf("paper leaks expected outputs: %s", w.Body.String())
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
}

func TestVisibilityAndSubmit(t *testing.T) {
	h := newHarness(t)
	tok := h.token(7)
	id := h.start(7, true).ID

	code, env := h.do(http.MethodPost, sessionPath(id, "/visibility"), tok, model.VisibilityRequest{Hidden: true})
	if code != http.StatusOK {
		t.Fatalf("visibility: status = %d, error = %+v", code, env.Error)
	}
	if snap := decodeSession(t, env); snap.TabSwitchCount != 1 {
		t.Errorf("tab switches = %d, want 1", snap.TabSwitchCount)
	}

	code, env = h.do(http.MethodPost, sessionPath(id, "/submit"), tok, nil)
	if code != http.StatusAccepted {
		t.Fatalf("submit: status = %d, error = %+v", code, env.Error)
	}

	code, env = h.do(http.MethodPut, sessionPath(id, "/answers"), tok,
		model.SelectAnswerRequest{SectionID: "mcqs", QuestionIndex: 0, Answer: "4"})
	if code != http.StatusConflict || env.Error.Code != response.ErrSessionCompleted {
		t.Errorf("answer after submit: status = %d, error = %+v", code, env.Error)
	}
}

func TestRunCode(t *testing.T) {
	h := newHarness(t)
	tok := h.token(7)
	id := h.start(7, true).ID
	req := model.CodeRequest{Code: "print(input())", Language: "Python"}

	code, env := h.do(http.MethodPost, sessionPath(id, "/code/run"), tok, req)
	if code != http.StatusConflict || env.Error.Code != response.ErrNotCodeQuestion {
		t.Errorf("run on choice question: status = %d, error = %+v", code, env.Error)
	}

	code, env = h.do(http.MethodPost, sessionPath(id, "/code/run"), tok, model.CodeRequest{Code: "x", Language: "Ruby"})
	if code != http.StatusBadRequest || env.Error.Fields["language"] == "" {
		t.Errorf("unsupported language: status = %d, error = %+v", code, env.Error)
	}

	h.do(http.MethodPost, sessionPath(id, "/navigate"), tok, model.NavigateRequest{Action: model.NavigateSection, SectionID: "coding"})
	code, env = h.do(http.MethodPost, sessionPath(id, "/code/run"), tok, req)
	if code != http.StatusOK {
		t.Fatalf("run: status = %d, error = %+v", code, env.Error)
	}
	var body struct {
		Result engine.RunResult `json:"result"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatal(err)
	}
	if body.Result.Status != engine.RunPassed || body.Result.Passed != 1 {
		t.Errorf("result = %+v", body.Result)
	}

	code, env = h.do(http.MethodPost, sessionPath(id, "/code/submit"), tok, req)
	if code != http.StatusOK {
		t.Fatalf("submit code: status = %d, error = %+v", code, env.Error)
	}
	_, env = h.do(http.MethodGet, sessionPath(id, ""), tok, nil)
	if got := decodeSession(t, env).Answers["coding-0"]; got != req.Code {
		t.Errorf("answers[coding-0] = %q", got)
	}
}

func uploadChunk(h *harness, id, token, contentType string, seq int, data []byte) (int, envelope) {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("seq", fmt.Sprint(seq))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="chunk"; filename="chunk.webm"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		h.t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, sessionPath(id, "/recording"), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		h.t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return w.Code, env
}

func TestUploadChunk(t *testing.T) {
	h := newHarness(t)
	tok := h.token(7)
	id := h.start(7, true).ID

	if code, env := uploadChunk(h, id, tok, "video/webm", 0, []byte("frame")); code != http.StatusAccepted {
		t.Errorf("upload: status = %d, error = %+v", code, env.Error)
	}

	code, env := uploadChunk(h, id, tok, "image/png", 1, []byte("frame"))
	if code != http.StatusUnsupportedMediaType || env.Error.Code != response.ErrUnsupportedFile {
		t.Errorf("png: status = %d, error = %+v", code, env.Error)
	}

	code, env = uploadChunk(h, id, tok, "video/webm", 2, bytes.Repeat([]byte("x"), 2048))
	if code != http.StatusRequestEntityTooLarge || env.Error.Code != response.ErrFileTooLarge {
		t.Errorf("oversize: status = %d, error = %+v", code, env.Error)
	}
}

func TestUploadChunk_CameraDenied(t *testing.T) {
	h := newHarness(t)
	tok := h.token(7)
	id := h.start(7, false).ID

	code, env := uploadChunk(h, id, tok, "video/webm", 0, []byte("frame"))
	if code != http.StatusConflict || env.Error.Code != response.ErrRecordingInactive {
		t.Errorf("status = %d, error = %+v", code, env.Error)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	h.start(7, true)

	code, env := h.do(http.MethodGet, "/health", "", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	json.Unmarshal(env.Data, &body)
	if body.Status != "ok" || body.Sessions != 1 {
		t.Errorf("health = %+v", body)
	}
}
