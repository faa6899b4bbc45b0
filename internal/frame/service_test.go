package frame

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// blockingExtractor counts extractions and holds them until released
type blockingExtractor struct {
	calls   atomic.Int64
	release chan struct{}
	fail    bool
}

func (e *blockingExtractor) ExtractFrame(ctx context.Context, path string, timeSec float64, width, height int) (*image.RGBA, error) {
	e.calls.Add(1)
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.fail {
		return nil, errors.New("decode error")
	}
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

func newTestService(e Extractor) *Service {
	return NewService(e, ServiceConfig{
		Width:           64,
		Height:          36,
		FPS:             30,
		CacheMaxBytes:   1 << 20,
		PrefetchSec:     1,
		PrefetchMinStep: 0.25,
		Workers:         2,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestGetFrameMissThenFill(t *testing.T) {
	ext := &blockingExtractor{}
	s := newTestService(ext)
	defer s.Close()

	var filled atomic.Bool
	s.SetOnFill(func() { filled.Store(true) })

	if img := s.GetFrame("asset", "/tmp/a.mp4", 1.0); img != nil {
		t.Fatal("first lookup should miss")
	}

	waitFor(t, filled.Load)

	if img := s.GetFrame("asset", "/tmp/a.mp4", 1.0); img == nil {
		t.Fatal("frame should be cached after fill")
	}
}

func TestGetFrameDedup(t *testing.T) {
	ext := &blockingExtractor{release: make(chan struct{})}
	s := newTestService(ext)
	defer s.Close()

	// Same frame requested repeatedly while the first fetch is stuck
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.GetFrame("asset", "/tmp/a.mp4", 2.0)
		}()
	}
	wg.Wait()

	waitFor(t, func() bool { return ext.calls.Load() >= 1 })
	close(ext.release)
	waitFor(t, func() bool { return s.Peek("asset", 2.0) != nil })

	if got := ext.calls.Load(); got != 1 {
		t.Errorf("extractions = %d, want 1 for identical requests", got)
	}
}

func TestGetFrameQuantization(t *testing.T) {
	ext := &blockingExtractor{}
	s := newTestService(ext)
	defer s.Close()

	var fills atomic.Int64
	s.SetOnFill(func() { fills.Add(1) })

	s.GetFrame("asset", "/tmp/a.mp4", 1.0)
	waitFor(t, func() bool { return fills.Load() >= 1 })

	// 1.01s lands in the same 30fps bucket as 1.0s
	if img := s.GetFrame("asset", "/tmp/a.mp4", 1.01); img == nil {
		t.Error("nearby time should hit the same bucket")
	}
	if got := ext.calls.Load(); got != 1 {
		t.Errorf("extractions = %d, want 1", got)
	}
}

func TestGetFrameFailureResolvesNil(t *testing.T) {
	ext := &blockingExtractor{fail: true}
	s := newTestService(ext)
	defer s.Close()

	var filled atomic.Bool
	s.SetOnFill(func() { filled.Store(true) })

	if img := s.GetFrame("asset", "/tmp/bad.mp4", 1.0); img != nil {
		t.Fatal("miss expected")
	}

	waitFor(t, func() bool { return ext.calls.Load() >= 1 })
	time.Sleep(20 * time.Millisecond)

	if filled.Load() {
		t.Error("failed extraction must not report a fill")
	}
	if img := s.Peek("asset", 1.0); img != nil {
		t.Error("failure must not be cached as a frame")
	}
}

func TestPrefetchWindow(t *testing.T) {
	ext := &blockingExtractor{}
	s := newTestService(ext)
	defer s.Close()

	s.Prefetch("asset", "/tmp/a.mp4", 0)

	// 1s window at 30fps: 31 buckets
	waitFor(t, func() bool { return ext.calls.Load() >= 31 })

	// Within the min step the window is not re-issued
	s.Prefetch("asset", "/tmp/a.mp4", 0.1)
	time.Sleep(20 * time.Millisecond)
	if got := ext.calls.Load(); got > 31 {
		t.Errorf("prefetch re-issued inside min step: %d calls", got)
	}

	// Past the min step new buckets are fetched
	s.Prefetch("asset", "/tmp/a.mp4", 0.5)
	waitFor(t, func() bool { return ext.calls.Load() > 31 })
}

func TestPrefetchRateLimitIsPerAsset(t *testing.T) {
	ext := &blockingExtractor{}
	s := newTestService(ext)
	defer s.Close()

	s.Prefetch("a", "/tmp/a.mp4", 0)
	waitFor(t, func() bool { return ext.calls.Load() >= 31 })

	// A second asset at the same playhead gets its own window
	s.Prefetch("b", "/tmp/b.mp4", 0)
	waitFor(t, func() bool { return ext.calls.Load() >= 62 })
}

func TestServiceClose(t *testing.T) {
	ext := &blockingExtractor{release: make(chan struct{})}
	s := newTestService(ext)

	s.GetFrame("asset", "/tmp/a.mp4", 1.0)
	s.Close()

	// After close new requests are ignored
	s.GetFrame("asset", "/tmp/a.mp4", 5.0)
	time.Sleep(20 * time.Millisecond)
	if got := ext.calls.Load(); got > 1 {
		t.Errorf("requests accepted after close: %d", got)
	}
}
