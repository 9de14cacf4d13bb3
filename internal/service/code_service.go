package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/model"
)

type codeRunner interface {
	Execute(ctx context.Context, req engine.ExecRequest) (engine.ExecResult, error)
}

type submissionStore interface {
	Upsert(ctx context.Context, s *model.CodeSubmission) error
}

// CodeService runs candidate code on the execution service and stores final
// submissions.
type CodeService struct {
	runner      codeRunner
	submissions submissionStore
	log         zerolog.Logger
}

// NewCodeService creates a new CodeService.
func NewCodeService(runner codeRunner, submissions submissionStore, log zerolog.Logger) *CodeService {
	return &CodeService{
		runner:      runner,
		submissions: submissions,
		log:         log.With().Str("component", "code_service").Logger(),
	}
}

// Execute runs code against one stdin.
func (s *CodeService) Execute(ctx context.Context, req engine.ExecRequest) (engine.ExecResult, error) {
	return s.runner.Execute(ctx, req)
}

// Persist stores the final code of a question.
func (s *CodeService) Persist(ctx context.Context, sub engine.CodeSubmission) error {
	sessionID, err := uuid.Parse(sub.SessionID)
	if err != nil {
		return fmt.Errorf("%w: invalid session id", engine.ErrValidation)
	}
	questionID, err := uuid.Parse(sub.QuestionID)
	if err != nil {
		return fmt.Errorf("%w: invalid question id", engine.ErrValidation)
	}

	row := &model.CodeSubmission{
		SessionID:  sessionID,
		QuestionID: questionID,
		Language:   sub.Language,
		Code:       sub.Code,
	}
	if err := s.submissions.Upsert(ctx, row); err != nil {
		return fmt.Errorf("%w: store submission: %v", engine.ErrNetwork, err)
	}

	s.log.Info().
		Str("session_id", sub.SessionID).
		Str("question_id", sub.QuestionID).
		Str("language", sub.Language).
		Msg("Code submitted")
	return nil
}
