package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/lnrs/assessment-portal/internal/model"
)

// RunStatus is the aggregate outcome of a run.
type RunStatus string

const (
	RunPassed RunStatus = "passed"
	RunFailed RunStatus = "failed"
	RunError  RunStatus = "error"
)

// CaseResult is the outcome of one test case.
type CaseResult struct {
	Index           int    `json:"index"`
	Input           string `json:"input"`
	ActualOutput    string `json:"actual_output"`
	Passed          bool   `json:"passed"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// RunResult aggregates a run over the test cases of a question.
type RunResult struct {
	Status RunStatus    `json:"status"`
	Passed int          `json:"passed"`
	Total  int          `json:"total"`
	Cases  []CaseResult `json:"cases"`
	Error  string       `json:"error,omitempty"`
}

// CodeRunner runs candidate code against test cases through the executor.
type CodeRunner struct {
	exec CodeExecutor
}

// NewCodeRunner creates a CodeRunner.
func NewCodeRunner(exec CodeExecutor) *CodeRunner {
	return &CodeRunner{exec: exec}
}

// Run executes the cases in order and stops at the first failing one.
// Outputs are compared after trimming surrounding whitespace. Executor
// failures produce an error result rather than an error return.
func (r *CodeRunner) Run(ctx context.Context, code, language string, cases []model.TestCase) RunResult {
	res := RunResult{Status: RunPassed, Total: len(cases), Cases: make([]CaseResult, 0, len(cases))}

	for i, tc := range cases {
		out, err := r.exec.Execute(ctx, ExecRequest{Code: code, Language: language, Stdin: tc.Input})
		if err != nil {
			res.Status = RunError
			res.Error = fmt.Sprintf("test case %d: %v", i+1, err)
			return res
		}

		actual := strings.TrimSpace(out.Output)
		passed := actual == strings.TrimSpace(tc.ExpectedOutput)
		res.Cases = append(res.Cases, CaseResult{
			Index:           i,
			Input:           tc.Input,
			ActualOutput:    actual,
			Passed:          passed,
			ExecutionTimeMs: out.ExecutionTimeMs,
		})
		if !passed {
			res.Status = RunFailed
			return res
		}
		res.Passed++
	}
	return res
}

// Submit persists the final code of a question.
func (r *CodeRunner) Submit(ctx context.Context, sub CodeSubmission) error {
	if err := r.exec.Persist(ctx, sub); err != nil {
		return fmt.Errorf("persist submission: %w", err)
	}
	return nil
}
