package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lnrs/assessment-portal/internal/config"
	"github.com/lnrs/assessment-portal/internal/model"
)

// CompletionWorker consumes persist_completions_queue and writes the outcome
// of finished sessions to exam_sessions.
type CompletionWorker struct {
	pool     *pgxpool.Pool
	rdb      *redis.Client
	consumer *batchConsumer[model.SessionCompletion]
	log      zerolog.Logger
}

// NewCompletionWorker creates a new CompletionWorker.
func NewCompletionWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *CompletionWorker {
	w := &CompletionWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "completion_worker").Logger(),
	}
	w.consumer = newBatchConsumer(rdb, config.WorkerKey.PersistCompletionsQueue, w.log, w.flush)
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *CompletionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("CompletionWorker started")
	w.consumer.run(ctx)
}

// ----------------------------------------------------------------
// Batch update wrapper
// ----------------------------------------------------------------

func (w *CompletionWorker) flush(ctx context.Context, batch []model.SessionCompletion) []model.SessionCompletion {
	valid := batch[:0:0]
	for _, c := range batch {
		if _, err := uuid.Parse(c.SessionID); err != nil {
			w.log.Error().Str("session_id", c.SessionID).Msg("Dropping completion with invalid UUID")
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return nil
	}

	if err := w.bulkComplete(ctx, valid); err != nil {
		w.log.Warn().Err(err).Msg("Bulk completion update failed, using fallback")

		var failed []model.SessionCompletion
		for _, c := range valid {
			if err := w.persistSingle(ctx, c); err != nil {
				w.log.Error().Err(err).Str("session_id", c.SessionID).Msg("persistSingle failed, requeueing")
				failed = append(failed, c)
			}
		}
		w.clearBuffers(ctx, subtract(valid, failed))
		return failed
	}

	w.clearBuffers(ctx, valid)
	return nil
}

// ----------------------------------------------------------------
// Bulk PostgreSQL UPDATE using UNNEST
// ----------------------------------------------------------------

func (w *CompletionWorker) bulkComplete(ctx context.Context, batch []model.SessionCompletion) error {
	n := len(batch)
	ids := make([]uuid.UUID, n)
	statuses := make([]string, n)
	reasons := make([]string, n)
	switches := make([]int32, n)
	answered := make([]int32, n)
	finished := make([]time.Time, n)

	for i, c := range batch {
		ids[i] = uuid.MustParse(c.SessionID)
		statuses[i] = string(c.Status)
		reasons[i] = string(c.Reason)
		switches[i] = int32(c.TabSwitches)
		answered[i] = int32(c.Answered)
		finished[i] = time.Unix(c.FinishedAt, 0)
	}

	_, err := w.pool.Exec(ctx, `
		UPDATE exam_sessions AS s
		SET status = t.status,
		    end_reason = t.reason,
		    tab_switches = t.tab_switches,
		    answered_count = t.answered,
		    finished_at = t.finished_at
		FROM UNNEST(
			$1::uuid[],
			$2::text[],
			$3::text[],
			$4::int[],
			$5::int[],
			$6::timestamptz[]
		) AS t (id, status, reason, tab_switches, answered, finished_at)
		WHERE s.id = t.id
		  AND s.status = 'IN_PROGRESS'`,
		ids, statuses, reasons, switches, answered, finished,
	)
	return err
}

func (w *CompletionWorker) persistSingle(ctx context.Context, c model.SessionCompletion) error {
	_, err := w.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, end_reason = $2, tab_switches = $3, answered_count = $4, finished_at = $5
		 WHERE id = $6 AND status = 'IN_PROGRESS'`,
		c.Status, c.Reason, c.TabSwitches, c.Answered, time.Unix(c.FinishedAt, 0), uuid.MustParse(c.SessionID),
	)
	return err
}

// clearBuffers drops the Redis state of sessions that are now persisted.
// The completion marker stays until it expires so late answers are still
// refused.
func (w *CompletionWorker) clearBuffers(ctx context.Context, batch []model.SessionCompletion) {
	if len(batch) == 0 {
		return
	}
	pipe := w.rdb.Pipeline()
	for _, c := range batch {
		pipe.Del(ctx, config.CacheKey.SessionAnswersKey(c.SessionID))
		pipe.Del(ctx, config.CacheKey.SessionTabSwitchesKey(c.SessionID))
		pipe.Del(ctx, config.CacheKey.CandidateSessionKey(c.ExamID, c.CandidateID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Failed to clear session buffers")
	}
}

func subtract(all, failed []model.SessionCompletion) []model.SessionCompletion {
	if len(failed) == 0 {
		return all
	}
	skip := make(map[string]bool, len(failed))
	for _, f := range failed {
		skip[f.SessionID] = true
	}
	out := make([]model.SessionCompletion, 0, len(all)-len(failed))
	for _, c := range all {
		if !skip[c.SessionID] {
			out = append(out, c)
		}
	}
	return out
}
