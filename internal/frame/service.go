package frame

import (
	"context"
	"image"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/reelkit/reelkit/internal/logging"
)

// Extractor decodes a single frame. Satisfied by media.Executor.
type Extractor interface {
	ExtractFrame(ctx context.Context, path string, timeSec float64, width, height int) (*image.RGBA, error)
}

// ServiceConfig sizes the extraction service
type ServiceConfig struct {
	Width           int
	Height          int
	FPS             float64
	CacheMaxBytes   int64
	PrefetchSec     float64
	PrefetchMinStep float64
	Workers         int
}

// Service is the asynchronous frame source used for timeline preview.
// Requests are quantized to the sequence frame grid, deduplicated
// while in flight, and resolved into a shared LRU cache. Lookups never
// block: a miss returns nil immediately and the frame arrives later
// through the change callback.
type Service struct {
	extractor Extractor
	logger    zerolog.Logger

	width  int
	height int
	fps    float64

	prefetchSec     float64
	prefetchMinStep float64

	cache *Cache
	sem   chan struct{}

	mu           sync.Mutex
	inflight     map[key]struct{}
	lastPrefetch map[string]float64
	onFill       func()
	closed       bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a frame service drawing through the extractor
func NewService(extractor Extractor, cfg ServiceConfig) *Service {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PrefetchSec <= 0 {
		cfg.PrefetchSec = 2
	}
	if cfg.PrefetchMinStep <= 0 {
		cfg.PrefetchMinStep = 0.25
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		extractor:       extractor,
		logger:          logging.WithComponent("frames"),
		width:           cfg.Width,
		height:          cfg.Height,
		fps:             cfg.FPS,
		prefetchSec:     cfg.PrefetchSec,
		prefetchMinStep: cfg.PrefetchMinStep,
		cache:           NewCache(cfg.CacheMaxBytes),
		sem:             make(chan struct{}, cfg.Workers),
		inflight:        make(map[key]struct{}),
		lastPrefetch:    make(map[string]float64),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// SetOnFill registers a callback invoked whenever a background fetch
// lands a frame, typically to schedule a repaint
func (s *Service) SetOnFill(fn func()) {
	s.mu.Lock()
	s.onFill = fn
	s.mu.Unlock()
}

// bucket quantizes a source time onto the frame grid
func (s *Service) bucket(timeSec float64) int64 {
	return int64(math.Round(timeSec * s.fps))
}

// GetFrame returns the cached frame for (assetID, timeSec) or nil. On
// a miss the fetch starts in the background unless an identical one is
// already in flight.
func (s *Service) GetFrame(assetID, path string, timeSec float64) *image.RGBA {
	if assetID == "" || path == "" || math.IsNaN(timeSec) {
		return nil
	}

	k := key{assetID: assetID, bucket: s.bucket(timeSec)}
	if f := s.cache.Get(k); f != nil {
		return f.Image
	}

	s.request(k, path)
	return nil
}

// Peek returns a cached frame without triggering a fetch
func (s *Service) Peek(assetID string, timeSec float64) *image.RGBA {
	k := key{assetID: assetID, bucket: s.bucket(timeSec)}
	if f := s.cache.Get(k); f != nil {
		return f.Image
	}
	return nil
}

// request starts one background extraction per key
func (s *Service) request(k key, path string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, busy := s.inflight[k]; busy {
		s.mu.Unlock()
		return
	}
	s.inflight[k] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inflight, k)
			s.mu.Unlock()
		}()

		select {
		case s.sem <- struct{}{}:
			defer func() { <-s.sem }()
		case <-s.ctx.Done():
			return
		}

		// A parallel fetch may have landed this bucket while queued
		if s.cache.Contains(k) {
			return
		}

		timeSec := float64(k.bucket) / s.fps
		img, err := s.extractor.ExtractFrame(s.ctx, path, timeSec, s.width, s.height)
		if err != nil {
			if s.ctx.Err() == nil {
				s.logger.Warn().Err(err).Str("asset", k.assetID).Float64("t", timeSec).Msg("frame extraction failed")
			}
			return
		}

		s.cache.Put(k, &Frame{Image: img, TimeSec: timeSec})

		s.mu.Lock()
		fn := s.onFill
		s.mu.Unlock()
		if fn != nil {
			fn()
		}
	}()
}

// Prefetch warms the cache for the look-ahead window starting at
// timeSec. Calls are rate limited per asset by the minimum playhead
// step so a smoothly advancing clock does not re-issue the same
// window.
func (s *Service) Prefetch(assetID, path string, timeSec float64) {
	if assetID == "" || path == "" || math.IsNaN(timeSec) {
		return
	}

	s.mu.Lock()
	if last, ok := s.lastPrefetch[assetID]; ok && math.Abs(timeSec-last) < s.prefetchMinStep {
		s.mu.Unlock()
		return
	}
	s.lastPrefetch[assetID] = timeSec
	s.mu.Unlock()

	start := s.bucket(timeSec)
	steps := int64(s.prefetchSec * s.fps)
	for i := int64(0); i <= steps; i++ {
		k := key{assetID: assetID, bucket: start + i}
		if s.cache.Contains(k) {
			continue
		}
		s.request(k, path)
	}
}

// Invalidate resets the prefetch positions, forcing the next window
// to be issued in full. Cached frames stay valid across seeks.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.lastPrefetch = make(map[string]float64)
	s.mu.Unlock()
}

// Stats returns cache effectiveness counters
func (s *Service) Stats() Stats {
	return s.cache.Stats()
}

// Close cancels outstanding fetches and stops accepting new ones
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.onFill = nil
	s.mu.Unlock()
	s.cancel()
}
