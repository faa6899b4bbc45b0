package preview

import (
	"context"
	"image"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/reelkit/reelkit/internal/frame"
	"github.com/reelkit/reelkit/internal/media"
	"github.com/reelkit/reelkit/internal/timeline"
)

// Element owns one live decode session for one clip: an ffmpeg
// process streaming into a frame buffer. It is the moving part of
// the element strategy; the source above it decides when an element
// exists and where it should be.
//
// Seek discipline: a realignment that is already in flight is never
// interrupted. Targets arriving meanwhile are remembered and applied
// once, after the restart lands, so a burst of seeks costs at most
// two session restarts.
type Element struct {
	exec *media.Executor
	clip timeline.Clip
	path string
	log  zerolog.Logger

	width  int
	height int
	fps    float64

	buffer *frame.Buffer

	mu      sync.Mutex
	session *media.Session
	seeking bool
	pending *pendingSeek
	playing bool
	rate    float64
}

type pendingSeek struct {
	t   float64
	tol float64
}

func NewElement(exec *media.Executor, path string, clip timeline.Clip, width, height int, fps float64, logger zerolog.Logger) *Element {
	return &Element{
		exec:   exec,
		clip:   clip,
		path:   path,
		log:    logger.With().Str("clip", clip.ID).Logger(),
		width:  width,
		height: height,
		fps:    fps,
		buffer: frame.NewBuffer(),
		rate:   1,
	}
}

func (e *Element) ClipID() string {
	return e.clip.ID
}

// Frame returns the most recently decoded frame, nil before the
// first one lands.
func (e *Element) Frame() *image.RGBA {
	f := e.buffer.Load()
	if f == nil {
		return nil
	}
	return f.Image
}

// Position reports the element's playhead mapped back to timeline
// seconds.
func (e *Element) Position() (float64, bool) {
	src, ok := e.buffer.Position()
	if !ok {
		return 0, false
	}
	return timeline.TimelineTimeFor(&e.clip, src), true
}

// SetRate updates the wall-clock pacing. The clip's own speed is
// folded in so a 2x clip at 1x transport still decodes double time.
func (e *Element) SetRate(rate float64) {
	if rate <= 0 {
		rate = 1
	}
	e.mu.Lock()
	e.rate = rate
	sess := e.session
	e.mu.Unlock()
	if sess != nil {
		sess.SetRate(rate * e.clip.SafeSpeed())
	}
}

// Sync drives the element toward timeline time t. Within tol of the
// target the running session is left alone and only its pause flag
// is updated; outside it, a playing element restarts its session at
// the mapped source time and a paused one decodes a single exact
// frame.
func (e *Element) Sync(ctx context.Context, t float64, playing bool, tol float64) {
	target := e.clip.SourceTimeAt(t)

	e.mu.Lock()
	e.playing = playing
	if e.seeking {
		e.pending = &pendingSeek{t: t, tol: tol}
		e.mu.Unlock()
		return
	}

	cur, hasCur := e.buffer.Position()
	inTol := hasCur && math.Abs(cur-target) <= tol
	sess := e.session

	switch {
	case playing && sess != nil && inTol:
		e.mu.Unlock()
		sess.SetPaused(false)

	case playing:
		e.seeking = true
		e.session = nil
		e.mu.Unlock()
		go e.restart(ctx, sess, target)

	case sess != nil && inTol:
		e.mu.Unlock()
		sess.SetPaused(true)

	default:
		// Paused and drifted: the session is stale, replace the
		// visible frame with a one-shot exact extraction
		e.seeking = true
		e.session = nil
		e.mu.Unlock()
		go e.extractOnce(ctx, sess, target)
	}
}

func (e *Element) restart(ctx context.Context, old *media.Session, sourceSec float64) {
	if old != nil {
		old.Stop()
	}

	epoch := e.buffer.Reset()

	e.mu.Lock()
	rate := e.rate * e.clip.SafeSpeed()
	e.mu.Unlock()

	cfg := media.SessionConfig{
		Width:    e.width,
		Height:   e.height,
		StartSec: sourceSec,
		FPS:      e.fps,
		Rate:     rate,
	}
	sess, err := e.exec.StartSession(ctx, e.path, cfg, epoch)
	if err != nil {
		e.log.Warn().Err(err).Float64("source", sourceSec).Msg("element restart failed")
		e.buffer.SetError(err)
		e.finishSeek(ctx)
		return
	}
	go sess.ReadFrames(e.buffer)

	e.mu.Lock()
	e.session = sess
	if !e.playing {
		sess.SetPaused(true)
	}
	e.mu.Unlock()

	e.finishSeek(ctx)
}

func (e *Element) extractOnce(ctx context.Context, old *media.Session, sourceSec float64) {
	if old != nil {
		old.Stop()
	}

	img, err := e.exec.ExtractFrame(ctx, e.path, sourceSec, e.width, e.height)
	if err != nil {
		e.log.Warn().Err(err).Float64("source", sourceSec).Msg("element frame extraction failed")
	} else {
		e.buffer.StoreForce(img, sourceSec)
	}
	e.finishSeek(ctx)
}

// finishSeek clears the in-flight flag and replays the newest target
// that arrived during the seek, if any.
func (e *Element) finishSeek(ctx context.Context) {
	e.mu.Lock()
	e.seeking = false
	p := e.pending
	e.pending = nil
	playing := e.playing
	e.mu.Unlock()

	if p != nil {
		e.Sync(ctx, p.t, playing, p.tol)
	}
}

// Release stops the decode session. The element must not be used
// afterwards.
func (e *Element) Release() {
	e.mu.Lock()
	sess := e.session
	e.session = nil
	e.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
}
