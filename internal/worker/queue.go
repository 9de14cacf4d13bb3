package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// batchConsumer pops JSON items off a Redis list and hands them to flush in
// batches. flush returns the items that must go back on the queue.
type batchConsumer[T any] struct {
	rdb      *redis.Client
	queue    string
	log      zerolog.Logger
	size     int
	timeout  time.Duration
	backoff  time.Duration
	flush    func(ctx context.Context, batch []T) []T
	shutdown time.Duration
}

func newBatchConsumer[T any](rdb *redis.Client, queue string, log zerolog.Logger, flush func(context.Context, []T) []T) *batchConsumer[T] {
	return &batchConsumer[T]{
		rdb:      rdb,
		queue:    queue,
		log:      log,
		size:     BatchSize,
		timeout:  BatchTimeout,
		backoff:  2 * time.Second,
		flush:    flush,
		shutdown: 5 * time.Second,
	}
}

// run consumes until ctx is done, then flushes what it holds.
func (c *batchConsumer[T]) run(ctx context.Context) {
	buffer := make([]T, 0, c.size)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= c.size || time.Since(lastFlush) >= c.timeout) {
			c.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			c.stop(buffer)
			return
		default:
		}

		result, err := c.rdb.BLPop(ctx, PollTimeout, c.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			c.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleep(ctx, 3*time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var item T
		if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
			// Malformed JSON can never succeed.
			c.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, item)
	}
}

func (c *batchConsumer[T]) flushSafe(ctx context.Context, batch []T) {
	if len(batch) == 0 {
		return
	}
	if failed := c.flush(ctx, batch); len(failed) > 0 {
		c.requeue(ctx, failed)
	}
}

func (c *batchConsumer[T]) requeue(ctx context.Context, items []T) {
	pipe := c.rdb.Pipeline()
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, c.queue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	c.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Avoid thrashing while the database is down.
	sleep(ctx, c.backoff)
}

func (c *batchConsumer[T]) stop(buffer []T) {
	c.log.Info().Int("buffered", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")

	ctx, cancel := context.WithTimeout(context.Background(), c.shutdown)
	defer cancel()
	c.flushSafe(ctx, buffer)
	c.log.Info().Msg("Worker stopped")
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
