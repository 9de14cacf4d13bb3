package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ClientDevice is the server-side handle of the candidate's browser camera.
// The browser reports whether capture was granted when the session starts
// and then uploads the recorded chunks, which Push hands to the recording
// sink.
type ClientDevice struct {
	mu         sync.Mutex
	granted    bool
	denial     string
	held       bool
	recording  bool
	chunkEvery time.Duration
	sink       func(Chunk)
	lastSeq    int
}

// NewClientDevice creates a device from the browser's capability report.
func NewClientDevice(granted bool, denial string) *ClientDevice {
	return &ClientDevice{granted: granted, denial: denial, lastSeq: -1}
}

// Acquire takes the device. It fails if capture was denied or the device is
// already held.
func (d *ClientDevice) Acquire(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.held {
		return ErrDeviceBusy
	}
	if !d.granted {
		if d.denial == "" {
			return ErrPermissionDenied
		}
		return fmt.Errorf("%w: %s", ErrPermissionDenied, d.denial)
	}
	d.held = true
	return nil
}

// Release frees the device and stops any recording.
func (d *ClientDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.held = false
	d.recording = false
	d.sink = nil
	return nil
}

// StartRecording routes pushed chunks to sink.
func (d *ClientDevice) StartRecording(_ context.Context, chunkEvery time.Duration, sink func(Chunk)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.held {
		return ErrDeviceNotAcquired
	}
	d.recording = true
	d.chunkEvery = chunkEvery
	d.sink = sink
	return nil
}

// StopRecording stops accepting chunks.
func (d *ClientDevice) StopRecording(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.recording = false
	d.sink = nil
	return nil
}

// ChunkInterval is the chunk length the browser should record with.
func (d *ClientDevice) ChunkInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chunkEvery
}

// Push delivers one uploaded chunk. Chunks must arrive with increasing
// sequence numbers; a repeated sequence number is ignored.
func (d *ClientDevice) Push(seq int, contentType string, data []byte) error {
	d.mu.Lock()
	if !d.recording || d.sink == nil {
		d.mu.Unlock()
		return ErrDeviceNotRecording
	}
	if seq <= d.lastSeq {
		d.mu.Unlock()
		return nil
	}
	d.lastSeq = seq
	sink := d.sink
	d.mu.Unlock()

	sink(Chunk{
		Seq:         seq,
		ContentType: contentType,
		Data:        data,
		RecordedAt:  time.Now().UTC(),
	})
	return nil
}
