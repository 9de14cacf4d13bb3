package engine

import (
	"context"
	"sync"
)

// outbox runs outbound collaborator calls of one session, one at a time and
// in submission order, away from the session loop.
type outbox struct {
	ctx    context.Context
	jobs   chan func(ctx context.Context)
	wg     sync.WaitGroup
	closed bool
}

func newOutbox(ctx context.Context, size int) *outbox {
	o := &outbox{ctx: ctx, jobs: make(chan func(ctx context.Context), size)}
	o.wg.Add(1)
	go o.run()
	return o
}

func (o *outbox) run() {
	defer o.wg.Done()
	for job := range o.jobs {
		job(o.ctx)
	}
}

// push queues a job without blocking. It reports false when the outbox is
// closed or full. It must only be called from the session loop.
func (o *outbox) push(job func(ctx context.Context)) bool {
	if o.closed {
		return false
	}
	select {
	case o.jobs <- job:
		return true
	default:
		return false
	}
}

// close stops accepting jobs. It must only be called from the session loop.
func (o *outbox) close() {
	if o.closed {
		return
	}
	o.closed = true
	close(o.jobs)
}

// wait blocks until every queued job ran.
func (o *outbox) wait() { o.wg.Wait() }
