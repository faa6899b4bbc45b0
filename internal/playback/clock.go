package playback

import (
	"time"

	"github.com/rs/zerolog"
)

// TimeSource reports an authoritative playhead position in timeline
// seconds, typically derived from a live decoder. Returning ok=false
// means the source has no opinion right now and the clock free-runs.
type TimeSource func() (float64, bool)

// Clock advances the playhead while the transport is playing. It is
// driven by Tick calls from the player loop. When a TimeSource is
// installed its position wins over the wall-clock estimate, so the
// playhead follows the frames actually being decoded instead of
// drifting ahead of them.
type Clock struct {
	state   *State
	log     zerolog.Logger
	source  TimeSource
	last    time.Time
	onEnded func()
}

func NewClock(state *State, logger zerolog.Logger) *Clock {
	return &Clock{
		state: state,
		log:   logger,
	}
}

// SetTimeSource installs or clears (nil) the authoritative source.
// Called by the player when it switches preview strategies.
func (c *Clock) SetTimeSource(src TimeSource) {
	c.source = src
}

// SetEndedFunc registers a callback fired once when the playhead
// reaches the end of the sequence.
func (c *Clock) SetEndedFunc(fn func()) {
	c.onEnded = fn
}

func (c *Clock) Play() {
	if c.state.Duration() <= 0 {
		return
	}
	// Restart from the top when play is hit at the very end
	if c.state.CurrentTime() >= c.state.Duration() {
		c.state.SetCurrentTime(0)
	}
	c.last = time.Now()
	c.state.SetPlaying(true)
	c.log.Debug().Float64("at", c.state.CurrentTime()).Msg("play")
}

func (c *Clock) Pause() {
	c.state.SetPlaying(false)
	c.log.Debug().Float64("at", c.state.CurrentTime()).Msg("pause")
}

func (c *Clock) Toggle() {
	if c.state.Playing() {
		c.Pause()
	} else {
		c.Play()
	}
}

// Tick advances the playhead to now. The player loop calls this on
// every ticker fire; it is a no-op while paused.
func (c *Clock) Tick(now time.Time) {
	if !c.state.Playing() {
		c.last = now
		return
	}

	dur := c.state.Duration()

	var t float64
	if c.source != nil {
		if st, ok := c.source(); ok {
			t = st
		} else {
			t = c.advance(now)
		}
	} else {
		t = c.advance(now)
	}
	c.last = now

	if dur > 0 && t >= dur {
		c.state.SetCurrentTime(dur)
		c.state.SetPlaying(false)
		c.log.Debug().Float64("duration", dur).Msg("reached end")
		if c.onEnded != nil {
			c.onEnded()
		}
		return
	}
	c.state.SetCurrentTime(t)
}

func (c *Clock) advance(now time.Time) float64 {
	if c.last.IsZero() {
		return c.state.CurrentTime()
	}
	elapsed := now.Sub(c.last).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return c.state.CurrentTime() + elapsed*c.state.Rate()
}
