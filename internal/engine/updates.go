package engine

import "sync"

// UpdateKind tags a server push.
type UpdateKind string

const (
	UpdateState            UpdateKind = "state"
	UpdateTick             UpdateKind = "tick"
	UpdateWarning          UpdateKind = "warning"
	UpdateViolation        UpdateKind = "violation"
	UpdateCameraError      UpdateKind = "camera_error"
	UpdateSubmissionFailed UpdateKind = "submission_failed"
	UpdateCompleted        UpdateKind = "completed"
)

// Update is pushed to subscribers of a session.
type Update struct {
	Kind          UpdateKind        `json:"event"`
	State         *Snapshot         `json:"state,omitempty"`
	Remaining     int               `json:"remaining_seconds,omitempty"`
	Clock         string            `json:"clock,omitempty"`
	Violations    int               `json:"violations,omitempty"`
	MaxViolations int               `json:"max_violations,omitempty"`
	Message       string            `json:"message,omitempty"`
	Report        *CompletionReport `json:"report,omitempty"`
}

// broadcaster fans updates out to subscribers without blocking the session
// loop; a subscriber that falls behind loses updates.
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Update
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Update)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Update, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Update, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *broadcaster) publish(u Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
