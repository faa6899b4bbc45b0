package frame

import (
	"image"
	"sync"
)

// A decoded frame positioned on its source clock
type Frame struct {
	Image   *image.RGBA
	TimeSec float64
}

// Buffer provides thread-safe access to the most recent frame of one
// decode session. Stores carry the epoch of the session that produced
// them; after a Reset, stores from older sessions are rejected. It
// implements media.FrameSink.
type Buffer struct {
	mu         sync.RWMutex
	frame      *Frame
	epoch      uint64
	dropped    uint64
	frameCount uint64
	lastError  error
}

// NewBuffer creates an empty buffer at epoch 1
func NewBuffer() *Buffer {
	return &Buffer{epoch: 1}
}

// Reset clears the buffer and increments the epoch, invalidating any
// session still writing against the old one
func (b *Buffer) Reset() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = nil
	b.epoch++
	b.dropped = 0
	b.frameCount = 0
	b.lastError = nil
	return b.epoch
}

// Epoch returns the current epoch
func (b *Buffer) Epoch() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.epoch
}

// Store saves a frame if the epoch still matches
func (b *Buffer) Store(img *image.RGBA, timeSec float64, epoch uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if epoch != b.epoch {
		return false
	}

	b.frame = &Frame{Image: img, TimeSec: timeSec}
	b.frameCount++
	return true
}

// StoreForce saves a frame without an epoch check, used for still
// frames shown while paused
func (b *Buffer) StoreForce(img *image.RGBA, timeSec float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = &Frame{Image: img, TimeSec: timeSec}
	b.frameCount++
}

// Load returns the current frame, nil when none has arrived
func (b *Buffer) Load() *Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frame
}

// Position returns the source time of the current frame
func (b *Buffer) Position() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.frame == nil {
		return 0, false
	}
	return b.frame.TimeSec, true
}

// DroppedFrames returns the count of frames skipped for pacing
func (b *Buffer) DroppedFrames() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// FrameCount returns total frames received
func (b *Buffer) FrameCount() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frameCount
}

// AddDropped increments the dropped frame counter
func (b *Buffer) AddDropped() {
	b.mu.Lock()
	b.dropped++
	b.mu.Unlock()
}

// SetError records a decode error
func (b *Buffer) SetError(err error) {
	b.mu.Lock()
	b.lastError = err
	b.mu.Unlock()
}

// Err returns the last decode error
func (b *Buffer) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastError
}
