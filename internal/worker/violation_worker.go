package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lnrs/assessment-portal/internal/config"
	"github.com/lnrs/assessment-portal/internal/model"
)

// ViolationWorker consumes persist_violations_queue and bulk inserts the
// events into session_violations.
type ViolationWorker struct {
	pool     *pgxpool.Pool
	consumer *batchConsumer[model.ViolationEvent]
	log      zerolog.Logger
}

// NewViolationWorker creates a new ViolationWorker.
func NewViolationWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	w := &ViolationWorker{
		pool: pool,
		log:  log.With().Str("component", "violation_worker").Logger(),
	}
	w.consumer = newBatchConsumer(rdb, config.WorkerKey.PersistViolationsQueue, w.log, w.flush)
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ViolationWorker started")
	w.consumer.run(ctx)
}

// flush attempts a bulk insert, then row-by-row, and returns what to requeue.
func (w *ViolationWorker) flush(ctx context.Context, batch []model.ViolationEvent) []model.ViolationEvent {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		return w.fallbackInsert(ctx, batch)
	}
	return nil
}

func (w *ViolationWorker) bulkInsert(ctx context.Context, batch []model.ViolationEvent) error {
	rows := make([][]any, 0, len(batch))
	for _, v := range batch {
		sessionID, err := uuid.Parse(v.SessionID)
		if err != nil {
			// Let the fallback drop the bad row individually.
			return err
		}
		rows = append(rows, []any{sessionID, string(v.Kind), v.Count, time.Unix(v.Timestamp, 0)})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"session_violations"},
		[]string{"session_id", "kind", "count", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *ViolationWorker) fallbackInsert(ctx context.Context, batch []model.ViolationEvent) []model.ViolationEvent {
	var requeue []model.ViolationEvent

	for _, v := range batch {
		sessionID, err := uuid.Parse(v.SessionID)
		if err != nil {
			w.log.Error().Str("session_id", v.SessionID).Msg("Dropping violation with invalid UUID")
			continue
		}

		_, err = w.pool.Exec(ctx,
			`INSERT INTO session_violations (session_id, kind, count, recorded_at)
			 VALUES ($1, $2, $3, $4)`,
			sessionID, v.Kind, v.Count, time.Unix(v.Timestamp, 0),
		)
		if err != nil {
			w.log.Error().Err(err).Str("session_id", v.SessionID).Msg("Insert failed, requeueing")
			requeue = append(requeue, v)
		}
	}
	return requeue
}
