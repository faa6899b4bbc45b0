package preview

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/reelkit/reelkit/internal/asset"
	"github.com/reelkit/reelkit/internal/compositor"
	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/frame"
	"github.com/reelkit/reelkit/internal/media"
	"github.com/reelkit/reelkit/internal/monitor"
	"github.com/reelkit/reelkit/internal/playback"
	"github.com/reelkit/reelkit/internal/timeline"
)

const tickInterval = 33 * time.Millisecond

// Options wires a Player to the engine's shared services. Monitor may
// be nil, in which case the player runs headless and frames are only
// reachable through the snapshot accessors.
type Options struct {
	Monitor  *monitor.Monitor
	Executor *media.Executor
	Frames   *frame.Service
	Library  *asset.Library
	Sequence *timeline.Sequence
	Config   *config.Config
	Logger   zerolog.Logger
}

// Player drives the preview loop for one sequence: it ticks the
// transport clock, keeps the frame source aligned, composites the
// active layer stack and paints the result on the terminal monitor.
// The frame source is swapped live between the extraction and element
// pipelines as proxy availability changes.
type Player struct {
	mon  *monitor.Monitor
	exec *media.Executor
	svc  *frame.Service
	lib  *asset.Library
	seq  *timeline.Sequence
	cfg  *config.Config
	log  zerolog.Logger

	state *playback.State
	clock *playback.Clock
	ctrl  *playback.Controller

	decodeW int
	decodeH int

	comp       atomic.Pointer[compositor.Compositor]
	composeMu  sync.Mutex
	serverComp *compositor.Compositor

	frameMu sync.RWMutex
	front   *image.RGBA
	back    *image.RGBA
	canvasW int
	canvasH int

	srcMu      sync.Mutex
	source     FrameSource
	strategy   Strategy
	onStrategy func(Strategy)

	dirty    atomic.Bool
	hideUI   bool
	dragging bool

	ctx      context.Context
	cancel   context.CancelFunc
	doneChan chan struct{}
}

func NewPlayer(opts Options) *Player {
	log := opts.Logger
	decodeW, decodeH := PreviewDims(opts.Sequence, opts.Config.FFmpeg.ProxyHeight)

	state := playback.NewState(opts.Sequence.Duration())
	clock := playback.NewClock(state, log)
	ctrl := playback.NewController(state, clock, opts.Sequence.Format.FPS.FPS(), log)

	ctx, cancel := context.WithCancel(context.Background())

	p := &Player{
		mon:      opts.Monitor,
		exec:     opts.Executor,
		svc:      opts.Frames,
		lib:      opts.Library,
		seq:      opts.Sequence,
		cfg:      opts.Config,
		log:      log,
		state:    state,
		clock:    clock,
		ctrl:     ctrl,
		decodeW:  decodeW,
		decodeH:  decodeH,
		ctx:      ctx,
		cancel:   cancel,
		doneChan: make(chan struct{}),
	}

	p.strategy = ChooseStrategy(opts.Library, opts.Sequence)
	if p.exec == nil {
		// No ffmpeg means no live decode sessions, whatever the
		// proxy state says.
		p.strategy = StrategyExtraction
	}
	p.source = p.newSource(p.strategy)
	log.Info().Str("strategy", string(p.strategy)).
		Int("decodeWidth", decodeW).Int("decodeHeight", decodeH).
		Float64("duration", state.Duration()).
		Msg("preview player ready")

	clock.SetTimeSource(p.sourcePosition)
	ctrl.SetHardSeekFunc(p.onHardSeek)
	state.Subscribe(func(playback.Snapshot) { p.dirty.Store(true) })
	opts.Frames.SetOnFill(func() { p.dirty.Store(true) })
	opts.Library.OnChange(func(*asset.Asset) { p.dirty.Store(true) })

	if opts.Monitor != nil {
		w, h := opts.Monitor.Size()
		p.rebuildCanvas(w, h)
	} else {
		p.rebuildCanvas(0, 0)
	}
	p.dirty.Store(true)

	return p
}

// PreviewDims returns the decode resolution for the preview pipeline:
// the sequence canvas scaled down to maxH when it is taller, axes
// kept even for the rgb pipe.
func PreviewDims(seq *timeline.Sequence, maxH int) (int, int) {
	w := seq.Format.Canvas.Width
	h := seq.Format.Canvas.Height
	if w <= 0 || h <= 0 {
		w, h = 1280, 720
	}
	if maxH > 0 && h > maxH {
		scale := float64(maxH) / float64(h)
		w = int(math.Round(float64(w) * scale))
		h = maxH
	}
	w = (w / 2) * 2
	h = (h / 2) * 2
	if w < 2 {
		w = 2
	}
	if h < 2 {
		h = 2
	}
	return w, h
}

func (p *Player) State() *playback.State           { return p.state }
func (p *Player) Clock() *playback.Clock           { return p.clock }
func (p *Player) Controller() *playback.Controller { return p.ctrl }
func (p *Player) Sequence() *timeline.Sequence     { return p.seq }
func (p *Player) CacheStats() frame.Stats          { return p.svc.Stats() }

// Strategy reports which frame pipeline is currently active
func (p *Player) Strategy() Strategy {
	p.srcMu.Lock()
	defer p.srcMu.Unlock()
	return p.strategy
}

// SetStrategyFunc registers a hook fired after every pipeline switch.
// Call before Run; the hook runs on the update goroutine.
func (p *Player) SetStrategyFunc(fn func(Strategy)) {
	p.onStrategy = fn
}

// Run blocks until the player quits. With a monitor attached it owns
// the terminal and the keyboard; headless it only ticks the pipeline.
func (p *Player) Run() {
	defer p.cleanup()

	if p.mon == nil {
		p.headlessLoop()
		return
	}

	eventChan := make(chan tcell.Event, 50)
	go p.pollEvents(eventChan)

	time.Sleep(50 * time.Millisecond)
	p.drainInitialEvents(eventChan)

	w, h := p.mon.Size()
	p.rebuildCanvas(w, h)

	p.mainLoop(eventChan)
}

// Stop asks the run loop to exit
func (p *Player) Stop() {
	p.cancel()
}

func (p *Player) mainLoop(eventChan <-chan tcell.Event) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return

		case ev := <-eventChan:
			if ev == nil {
				return
			}
			if p.HandleEvent(ev) == EventQuit {
				return
			}

		case <-ticker.C:
			p.Update()
			p.Render()
		}
	}
}

func (p *Player) headlessLoop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.Update()
		}
	}
}

func (p *Player) pollEvents(eventChan chan<- tcell.Event) {
	screen := p.mon.Screen()
	if screen == nil {
		return
	}

	for {
		ev := screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case eventChan <- ev:
		case <-p.doneChan:
			return
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Player) drainInitialEvents(eventChan <-chan tcell.Event) {
	for {
		select {
		case ev := <-eventChan:
			if ev == nil {
				return
			}
			if _, ok := ev.(*tcell.EventResize); ok {
				continue
			}
		case <-time.After(20 * time.Millisecond):
			return
		}
	}
}

// Update runs one pipeline tick: advance the clock, re-check the
// pipeline strategy, realign decoders and composite when the picture
// may have changed.
func (p *Player) Update() {
	p.clock.Tick(time.Now())
	snap := p.state.Snapshot()

	p.checkStrategy()

	p.srcMu.Lock()
	src := p.source
	p.srcMu.Unlock()
	if src == nil {
		return
	}
	src.Sync(snap.CurrentTime, snap.Playing, snap.Rate)

	if p.dirty.Swap(false) || snap.Playing {
		p.compose(src, snap.CurrentTime)
	}
}

// checkStrategy flips the frame source when proxy availability has
// changed the preferred pipeline
func (p *Player) checkStrategy() {
	want := ChooseStrategy(p.lib, p.seq)
	if p.exec == nil {
		want = StrategyExtraction
	}

	p.srcMu.Lock()
	if want == p.strategy {
		p.srcMu.Unlock()
		return
	}
	old := p.source
	p.source = p.newSource(want)
	prev := p.strategy
	p.strategy = want
	p.srcMu.Unlock()

	if old != nil {
		old.Close()
	}
	if c := p.comp.Load(); c != nil {
		c.Invalidate()
	}
	p.dirty.Store(true)

	p.log.Info().
		Str("from", string(prev)).
		Str("to", string(want)).
		Msg("preview strategy switched")

	if p.onStrategy != nil {
		p.onStrategy(want)
	}
}

func (p *Player) newSource(s Strategy) FrameSource {
	if s == StrategyElements {
		return NewElementSource(p.exec, p.svc, p.lib, p.seq,
			p.decodeW, p.decodeH, p.seq.Format.FPS.FPS(),
			p.cfg.TightToleranceSec(), p.cfg.LooseToleranceSec(), p.log)
	}
	return NewExtractionSource(p.svc, p.lib, p.seq)
}

func (p *Player) sourcePosition() (float64, bool) {
	p.srcMu.Lock()
	src := p.source
	p.srcMu.Unlock()
	if src == nil {
		return 0, false
	}
	return src.Position()
}

// onHardSeek runs on every committed transport jump, from any
// goroutine. Invalidating first guarantees a composite pass that
// straddles the seek can not publish a frame for the old position.
func (p *Player) onHardSeek(t float64) {
	if c := p.comp.Load(); c != nil {
		c.Invalidate()
	}

	snap := p.state.Snapshot()
	p.srcMu.Lock()
	src := p.source
	p.srcMu.Unlock()
	if src != nil {
		src.Sync(t, snap.Playing, snap.Rate)
	}
	p.dirty.Store(true)
}

// compose renders the layer stack at t into the back buffer and, if
// the pass was not invalidated meanwhile, publishes it as the new
// front frame.
func (p *Player) compose(src FrameSource, t float64) {
	c := p.comp.Load()
	if c == nil {
		return
	}

	p.composeMu.Lock()
	defer p.composeMu.Unlock()

	gen := c.Begin()
	layers := src.LayersAt(t)
	if !c.Render(p.back, layers, gen) {
		p.dirty.Store(true)
		return
	}

	p.frameMu.Lock()
	p.front, p.back = p.back, p.front
	p.frameMu.Unlock()
}

// ComposeAt renders the stack at an arbitrary time at decode
// resolution, for the http frame endpoint. Frames still in flight are
// simply missing from the result; calling again shortly after
// returns the filled picture.
func (p *Player) ComposeAt(t float64) *image.RGBA {
	t = timeline.SanitizeTime(t, p.state.Duration())

	p.srcMu.Lock()
	src := p.source
	p.srcMu.Unlock()
	if src == nil {
		return nil
	}

	p.composeMu.Lock()
	defer p.composeMu.Unlock()

	if p.serverComp == nil {
		p.serverComp = compositor.New(p.decodeW, p.decodeH)
	}
	dst := image.NewRGBA(image.Rect(0, 0, p.decodeW, p.decodeH))
	p.serverComp.Composite(dst, src.LayersAt(t))
	return dst
}

// FrameSnapshot copies the most recently published frame, nil before
// the first composite lands
func (p *Player) FrameSnapshot() *image.RGBA {
	p.frameMu.RLock()
	defer p.frameMu.RUnlock()
	if p.front == nil {
		return nil
	}
	cp := image.NewRGBA(p.front.Rect)
	copy(cp.Pix, p.front.Pix)
	return cp
}

// rebuildCanvas resizes the compose surface. With a monitor the
// canvas is aspect-fit into the terminal; headless it sits at decode
// resolution.
func (p *Player) rebuildCanvas(screenW, screenH int) {
	w, h := p.decodeW, p.decodeH
	if p.mon != nil && screenW > 0 && screenH > 0 {
		w, h = monitor.FitCanvas(screenW, screenH,
			p.seq.Format.Canvas.Width, p.seq.Format.Canvas.Height)
	}

	p.composeMu.Lock()
	p.comp.Store(compositor.New(w, h))
	p.back = image.NewRGBA(image.Rect(0, 0, w, h))
	p.composeMu.Unlock()

	p.frameMu.Lock()
	p.front = nil
	p.canvasW = w
	p.canvasH = h
	p.frameMu.Unlock()

	if p.mon != nil {
		p.mon.InvalidateCache()
		p.mon.RequestClear()
	}
	p.dirty.Store(true)
}

type EventResult int

const (
	EventContinue EventResult = iota
	EventQuit
)

func (p *Player) HandleEvent(ev tcell.Event) EventResult {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		return p.handleResize(ev)
	case *tcell.EventKey:
		return p.Apply(Bind(ev))
	case *tcell.EventMouse:
		return p.handleMouse(ev)
	}
	return EventContinue
}

// handleMouse scrubs the transport from the progress bar. Pressing on
// the bar row starts a drag that keeps following the pointer until the
// button is released, even when it strays off the row.
func (p *Player) handleMouse(ev *tcell.EventMouse) EventResult {
	if p.mon == nil || p.hideUI {
		return EventContinue
	}
	w, h := p.mon.Size()
	if w < 2 || h < 5 {
		return EventContinue
	}

	x, y := ev.Position()
	pressed := ev.Buttons()&tcell.Button1 != 0

	switch {
	case pressed && !p.dragging && y == h-2:
		p.dragging = true
	case !pressed:
		p.dragging = false
		return EventContinue
	case !p.dragging:
		return EventContinue
	}

	return p.Apply(Action{Kind: ActSeekFraction, Arg: float64(x) / float64(w-1)})
}

func (p *Player) handleResize(ev *tcell.EventResize) EventResult {
	w, h := ev.Size()

	p.mon.Sync()
	p.mon.Clear()
	p.rebuildCanvas(w, h)

	return EventContinue
}

// Apply executes one transport action against the player
func (p *Player) Apply(act Action) EventResult {
	switch act.Kind {
	case ActQuit:
		return EventQuit
	case ActTogglePlay:
		p.clock.Toggle()
	case ActPlayOrFaster:
		if p.state.Playing() {
			p.ctrl.SpeedUp()
		} else {
			p.clock.Play()
		}
	case ActPauseNormal:
		p.clock.Pause()
		p.ctrl.ResetSpeed()
	case ActStepFrames:
		p.ctrl.StepFrames(int(act.Arg))
	case ActJumpSeconds:
		p.ctrl.StepSeconds(act.Arg)
	case ActSeekFraction:
		p.ctrl.SeekFraction(act.Arg)
	case ActSeekStart:
		p.ctrl.SeekStart()
	case ActSeekEnd:
		p.ctrl.SeekEnd()
	case ActRestart:
		p.ctrl.SeekStart()
		p.clock.Play()
	case ActSpeedUp:
		p.ctrl.SpeedUp()
	case ActSpeedDown:
		p.ctrl.SpeedDown()
	case ActVolumeUp:
		p.ctrl.VolumeUp()
	case ActVolumeDown:
		p.ctrl.VolumeDown()
	case ActToggleMute:
		p.ctrl.ToggleMute()
	case ActToggleUI:
		p.hideUI = !p.hideUI
		if p.mon != nil {
			p.mon.Clear()
		}
		p.dirty.Store(true)
	}
	return EventContinue
}

func (p *Player) Render() {
	if p.mon == nil || p.mon.IsClosed() {
		return
	}

	snap := p.state.Snapshot()
	screenW, screenH := p.mon.Size()

	p.frameMu.RLock()
	front := p.front
	canvasW, canvasH := p.canvasW, p.canvasH
	p.frameMu.RUnlock()

	if p.mon.NeedsClear() {
		p.mon.ClearCanvas()
	}

	if front != nil {
		cellH := canvasH / 2
		reserved := 3
		if p.hideUI {
			reserved = 0
		}
		offsetX := (screenW - canvasW) / 2
		offsetY := (screenH - cellH - reserved) / 2
		if offsetX < 0 {
			offsetX = 0
		}
		if offsetY < 0 {
			offsetY = 0
		}
		p.mon.RenderImage(front, offsetX, offsetY)
	} else {
		p.mon.RenderMessage("Compositing...", tcell.ColorDarkBlue)
	}

	if !p.hideUI {
		p.renderUI(snap, screenW, screenH)
	}
	p.mon.Show()
}

func (p *Player) renderUI(snap playback.Snapshot, w, h int) {
	if w < 10 || h < 5 {
		return
	}

	barY := h - 2
	p.mon.FillLine(barY, tcell.StyleDefault.Background(tcell.ColorBlack))
	if snap.Duration > 0 {
		marks := make([]float64, 0, len(p.seq.Markers))
		for _, mk := range p.seq.Markers {
			marks = append(marks, mk.TimeSec/snap.Duration)
		}
		progress := snap.CurrentTime / snap.Duration
		p.mon.ProgressBar(barY, progress, marks, tcell.ColorGreen, tcell.ColorDarkGray)
	}

	statusY := h - 1
	statusStyle := tcell.StyleDefault.
		Background(tcell.ColorDarkBlue).
		Foreground(tcell.ColorWhite)
	p.mon.FillLine(statusY, statusStyle)

	fps := p.seq.Format.FPS.FPS()
	status := fmt.Sprintf(" %s %s/%s │ %s │ %s",
		transportIcon(snap),
		formatTimecode(snap.CurrentTime, fps),
		formatTimecode(snap.Duration, fps),
		p.pipelineLabel(),
		audioLabel(snap),
	)
	if snap.Rate != 1 {
		status += fmt.Sprintf(" │ %gx", snap.Rate)
	}
	if len(status) > w {
		status = status[:w]
	}
	p.mon.DrawText(0, statusY, status, statusStyle)

	hint := "SPC:play j/k/l ←/→:frame q:quit "
	if len(status)+len(hint) < w {
		p.mon.DrawTextRight(statusY, hint, statusStyle)
	}
}

func (p *Player) pipelineLabel() string {
	if p.Strategy() == StrategyElements {
		return "LIVE"
	}
	return "CACHE"
}

func transportIcon(snap playback.Snapshot) string {
	switch {
	case snap.Playing:
		return "▶"
	case snap.Duration > 0 && snap.CurrentTime >= snap.Duration:
		return "⏹"
	default:
		return "⏸"
	}
}

func audioLabel(snap playback.Snapshot) string {
	if snap.Muted {
		return "muted"
	}
	return fmt.Sprintf("vol %d%%", int(math.Round(snap.Volume*100)))
}

// formatTimecode renders seconds as M:SS:FF on the sequence frame
// grid, growing to H:MM:SS:FF past the hour
func formatTimecode(t, fps float64) string {
	if t < 0 || math.IsNaN(t) {
		t = 0
	}
	totalFrames := int64(math.Round(t * fps))
	framesPerSec := int64(math.Round(fps))
	if framesPerSec <= 0 {
		framesPerSec = 30
	}

	ff := totalFrames % framesPerSec
	totalSec := totalFrames / framesPerSec
	s := totalSec % 60
	m := (totalSec / 60) % 60
	h := totalSec / 3600

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d:%02d", h, m, s, ff)
	}
	return fmt.Sprintf("%d:%02d:%02d", m, s, ff)
}

func (p *Player) cleanup() {
	close(p.doneChan)

	p.srcMu.Lock()
	src := p.source
	p.source = nil
	p.srcMu.Unlock()
	if src != nil {
		src.Close()
	}

	if p.mon != nil {
		p.mon.Close()
	}
	p.log.Info().Msg("preview player stopped")
}
