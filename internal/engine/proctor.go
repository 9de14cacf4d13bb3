package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Chunk is one piece of recorded media.
type Chunk struct {
	Seq         int
	ContentType string
	Data        []byte
	RecordedAt  time.Time
}

// Device is the camera/microphone capability. The Proctor is its only user.
type Device interface {
	Acquire(ctx context.Context) error
	Release() error
	StartRecording(ctx context.Context, chunkEvery time.Duration, sink func(Chunk)) error
	StopRecording(ctx context.Context) error
}

// ProctorConfig tunes the Proctor.
type ProctorConfig struct {
	MaxTabSwitches int
	ChunkInterval  time.Duration
	Retry          RetryPolicy
}

// Proctor owns the recording device, queues recorded chunks for upload and
// counts tab-switch violations.
type Proctor struct {
	sessionID string
	device    Device
	uploader  RecordingUploader
	cfg       ProctorConfig

	mu        sync.Mutex
	queue     []Chunk
	acquired  bool
	recording bool
	cameraErr string

	flushMu sync.Mutex

	violations int
	forced     bool
}

// NewProctor creates a Proctor for one session.
func NewProctor(sessionID string, device Device, uploader RecordingUploader, cfg ProctorConfig) *Proctor {
	if cfg.MaxTabSwitches < 1 {
		cfg.MaxTabSwitches = 3
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = time.Second
	}
	return &Proctor{
		sessionID: sessionID,
		device:    device,
		uploader:  uploader,
		cfg:       cfg,
	}
}

// Start acquires the device and starts recording. Failures are kept as the
// camera error and never returned: the exam goes on without recording.
func (p *Proctor) Start(ctx context.Context) {
	if p.device == nil {
		p.setCameraError("no recording device available")
		return
	}

	if err := p.device.Acquire(ctx); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			p.setCameraError("Unable to access camera. Please ensure camera permissions are granted.")
		} else {
			p.setCameraError(fmt.Sprintf("Unable to access camera: %v", err))
		}
		return
	}
	p.mu.Lock()
	p.acquired = true
	p.mu.Unlock()

	if err := p.device.StartRecording(ctx, p.cfg.ChunkInterval, p.enqueue); err != nil {
		p.setCameraError("Unable to start recording. Please refresh and try again.")
		return
	}
	p.mu.Lock()
	p.recording = true
	p.mu.Unlock()
}

func (p *Proctor) setCameraError(msg string) {
	p.mu.Lock()
	p.cameraErr = msg
	p.mu.Unlock()
}

func (p *Proctor) enqueue(c Chunk) {
	if len(c.Data) == 0 {
		return
	}
	p.mu.Lock()
	p.queue = append(p.queue, c)
	p.mu.Unlock()
}

// Hidden records one transition to a hidden page. It returns the violation
// count and whether the count just reached the limit.
func (p *Proctor) Hidden() (int, bool) {
	if p.forced {
		return p.violations, false
	}
	p.violations++
	if p.violations >= p.cfg.MaxTabSwitches {
		p.forced = true
		return p.violations, true
	}
	return p.violations, false
}

// Restore carries over the count of an earlier run of the session and
// reports whether it already reached the limit. A lower count is ignored.
func (p *Proctor) Restore(count int) bool {
	if count > p.violations {
		p.violations = count
	}
	if p.violations >= p.cfg.MaxTabSwitches {
		p.forced = true
	}
	return p.forced
}

// Violations returns the tab-switch count.
func (p *Proctor) Violations() int { return p.violations }

// MaxTabSwitches returns the violation limit.
func (p *Proctor) MaxTabSwitches() int { return p.cfg.MaxTabSwitches }

// CameraError returns the persistent camera error, empty when recording works.
func (p *Proctor) CameraError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cameraErr
}

// Recording reports whether the device is recording.
func (p *Proctor) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}

// Pending returns the number of chunks waiting for upload.
func (p *Proctor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Halt stops recording and releases the device. Queued chunks stay queued
// for Flush.
func (p *Proctor) Halt(ctx context.Context) error {
	p.mu.Lock()
	recording, acquired := p.recording, p.acquired
	p.recording, p.acquired = false, false
	p.mu.Unlock()

	var errs []error
	if recording {
		if err := p.device.StopRecording(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop recording: %w", err))
		}
	}
	if acquired {
		if err := p.device.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release device: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Flush uploads queued chunks in order, each with the retry policy. It stops
// at the first chunk that cannot be uploaded; that chunk and the ones after
// it stay queued.
func (p *Proctor) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	batch := p.queue
	if p.uploader != nil {
		p.queue = nil
	}
	p.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if p.uploader == nil {
		return fmt.Errorf("%d chunks queued but no uploader configured", len(batch))
	}

	for i, c := range batch {
		err := p.cfg.Retry.Do(ctx, func(ctx context.Context) error {
			return p.uploader.Upload(ctx, p.sessionID, c)
		})
		if err != nil {
			rest := batch[i:]
			p.mu.Lock()
			p.queue = append(rest, p.queue...)
			p.mu.Unlock()
			return fmt.Errorf("upload chunk %d (%d unsent): %w", c.Seq, len(rest), err)
		}
	}
	return nil
}
