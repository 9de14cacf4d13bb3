package worker

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lnrs/assessment-portal/internal/config"
	"github.com/lnrs/assessment-portal/internal/engine"
)

// AutosaveWorker consumes persist_answers_queue and UPSERTs answers to PostgreSQL.
type AutosaveWorker struct {
	pool     *pgxpool.Pool
	consumer *batchConsumer[engine.AnswerSubmission]
	log      zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	w := &AutosaveWorker{
		pool: pool,
		log:  log.With().Str("component", "autosave_worker").Logger(),
	}
	w.consumer = newBatchConsumer(rdb, config.WorkerKey.PersistAnswersQueue, w.log, w.flush)
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")
	w.consumer.run(ctx)
}

type answerKey struct {
	session  string
	question string
}

// latestAnswers keeps the last answer per (session, question) in queue order
// and drops entries whose ids cannot be stored.
func latestAnswers(batch []engine.AnswerSubmission, log zerolog.Logger) []engine.AnswerSubmission {
	index := make(map[answerKey]int, len(batch))
	out := make([]engine.AnswerSubmission, 0, len(batch))
	for _, a := range batch {
		if _, err := uuid.Parse(a.SessionID); err != nil {
			log.Error().Str("session_id", a.SessionID).Msg("Dropping answer with invalid session id")
			continue
		}
		if _, err := uuid.Parse(a.QuestionID); err != nil {
			log.Error().Str("question_id", a.QuestionID).Msg("Dropping answer with invalid question id")
			continue
		}
		k := answerKey{a.SessionID, a.QuestionID}
		if i, ok := index[k]; ok {
			out[i] = a
			continue
		}
		index[k] = len(out)
		out = append(out, a)
	}
	return out
}

func (w *AutosaveWorker) flush(ctx context.Context, batch []engine.AnswerSubmission) []engine.AnswerSubmission {
	answers := latestAnswers(batch, w.log)
	if len(answers) == 0 {
		return nil
	}

	err := w.bulkUpsert(ctx, answers)
	if err == nil {
		w.log.Debug().Int("count", len(answers)).Msg("Answers persisted")
		return nil
	}
	w.log.Warn().Err(err).Int("count", len(answers)).Msg("Bulk upsert failed, attempting row-by-row recovery")

	var failed []engine.AnswerSubmission
	for _, a := range answers {
		if err := w.persistAnswer(ctx, a); err != nil {
			w.log.Error().Err(err).Str("session_id", a.SessionID).Msg("Persist error, requeueing")
			failed = append(failed, a)
		}
	}
	return failed
}

func (w *AutosaveWorker) bulkUpsert(ctx context.Context, answers []engine.AnswerSubmission) error {
	n := len(answers)
	sessions := make([]string, n)
	questions := make([]string, n)
	sections := make([]string, n)
	numbers := make([]int32, n)
	values := make([]string, n)
	for i, a := range answers {
		sessions[i] = a.SessionID
		questions[i] = a.QuestionID
		sections[i] = a.SectionID
		numbers[i] = int32(a.QuestionNumber)
		values[i] = a.Answer
	}

	_, err := w.pool.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, section_id, question_number, answer)
		 SELECT u.session_id::uuid, u.question_id::uuid, u.section_id, u.question_number, u.answer
		 FROM UNNEST($1::text[], $2::text[], $3::text[], $4::int[], $5::text[])
		      AS u (session_id, question_id, section_id, question_number, answer)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = NOW()`,
		sessions, questions, sections, numbers, values,
	)
	return err
}

func (w *AutosaveWorker) persistAnswer(ctx context.Context, a engine.AnswerSubmission) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, section_id, question_number, answer)
		 VALUES ($1::text::uuid, $2::text::uuid, $3, $4, $5)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = NOW()`,
		a.SessionID, a.QuestionID, a.SectionID, a.QuestionNumber, a.Answer,
	)
	return err
}
