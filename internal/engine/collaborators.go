package engine

import (
	"context"
	"time"

	"github.com/lnrs/assessment-portal/internal/model"
)

// QuestionSource loads the exam paper once, at session start.
type QuestionSource interface {
	LoadPaper(ctx context.Context, examID string) (*model.ExamPaper, error)
}

// AnswerSubmission is one answer sent to the answer store.
type AnswerSubmission struct {
	SessionID      string `json:"session_id"`
	QuestionID     string `json:"question_id"`
	SectionID      string `json:"section"`
	QuestionNumber int    `json:"question_number"`
	Answer         string `json:"answer"`
}

// AnswerSubmitter persists answers remotely.
type AnswerSubmitter interface {
	SubmitAnswer(ctx context.Context, a AnswerSubmission) error
}

// AnswerLoader is implemented by submitters that can return the answers
// already stored for a session, so a resumed session keeps them.
type AnswerLoader interface {
	LoadAnswers(ctx context.Context, sessionID string) ([]AnswerSubmission, error)
}

// ExecRequest is one run of candidate code against a single stdin.
type ExecRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin"`
}

// ExecResult is the output of one run.
type ExecResult struct {
	Output          string `json:"output"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
}

// CodeSubmission is the final code of a coding question.
type CodeSubmission struct {
	SessionID  string `json:"session_id"`
	QuestionID string `json:"question_id"`
	Language   string `json:"language"`
	Code       string `json:"code"`
}

// CodeExecutor runs code and persists final submissions.
type CodeExecutor interface {
	Execute(ctx context.Context, req ExecRequest) (ExecResult, error)
	Persist(ctx context.Context, sub CodeSubmission) error
}

// RecordingUploader stores recorded chunks. Uploading the same chunk twice
// must be harmless.
type RecordingUploader interface {
	Upload(ctx context.Context, sessionID string, chunk Chunk) error
}

// ViolationReporter records proctoring violations.
type ViolationReporter interface {
	ReportViolation(ctx context.Context, sessionID string, count int) error
}

// EndRequest summarizes a finalized session.
type EndRequest struct {
	Reason      model.EndReason `json:"reason"`
	TabSwitches int             `json:"tab_switches"`
	Answered    int             `json:"answered"`
}

// SessionInfo describes a session created or resumed by SessionLifecycle.
type SessionInfo struct {
	ID        string
	StartedAt time.Time
	Resumed   bool
	// TabSwitches is the violation count reached before a resume.
	TabSwitches int
}

// SessionLifecycle creates and closes sessions remotely. Calling Start again
// for the same candidate and exam resumes the same session.
type SessionLifecycle interface {
	Start(ctx context.Context, examID string, candidateID int) (SessionInfo, error)
	End(ctx context.Context, sessionID string, req EndRequest) error
}

// Deps groups the collaborators of a session.
type Deps struct {
	Questions  QuestionSource
	Answers    AnswerSubmitter
	Executor   CodeExecutor
	Recordings RecordingUploader
	Violations ViolationReporter
	Lifecycle  SessionLifecycle
}
