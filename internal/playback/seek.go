package playback

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/reelkit/reelkit/internal/timeline"
)

// SpeedLadder holds the selectable playback rates in ascending order.
var SpeedLadder = []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 2, 4}

// Controller turns transport commands (from keys or the HTTP API)
// into state mutations. Hard seeks additionally fire a hook so the
// active preview strategy can re-aim its decoders.
type Controller struct {
	state      *State
	clock      *Clock
	frameSec   float64
	log        zerolog.Logger
	onHardSeek func(t float64)
}

func NewController(state *State, clock *Clock, fps float64, logger zerolog.Logger) *Controller {
	if fps <= 0 {
		fps = 30
	}
	return &Controller{
		state:    state,
		clock:    clock,
		frameSec: 1 / fps,
		log:      logger,
	}
}

// SetHardSeekFunc registers the strategy notification hook. It runs
// after the playhead has moved, on the caller's goroutine.
func (c *Controller) SetHardSeekFunc(fn func(t float64)) {
	c.onHardSeek = fn
}

// HardSeek moves the playhead to t, committing the position before
// any decoder starts chasing it. Out-of-range and non-finite targets
// are pulled back inside the sequence.
func (c *Controller) HardSeek(t float64) {
	t = timeline.SanitizeTime(t, c.state.Duration())
	c.state.SetCurrentTime(t)
	c.log.Debug().Float64("to", t).Msg("hard seek")
	if c.onHardSeek != nil {
		c.onHardSeek(t)
	}
}

// StepFrames pauses playback and nudges the playhead by n frames.
func (c *Controller) StepFrames(n int) {
	c.clock.Pause()
	c.HardSeek(c.state.CurrentTime() + float64(n)*c.frameSec)
}

// StepSeconds pauses playback and nudges the playhead by d seconds.
func (c *Controller) StepSeconds(d float64) {
	c.clock.Pause()
	c.HardSeek(c.state.CurrentTime() + d)
}

// SeekFraction jumps to a fraction of the sequence, 0 through 1.
func (c *Controller) SeekFraction(f float64) {
	if math.IsNaN(f) || f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	c.HardSeek(f * c.state.Duration())
}

func (c *Controller) SeekStart() {
	c.HardSeek(0)
}

func (c *Controller) SeekEnd() {
	c.clock.Pause()
	c.HardSeek(c.state.Duration())
}

// SpeedUp moves one step up the rate ladder and returns the new rate.
func (c *Controller) SpeedUp() float64 {
	i := ladderIndex(c.state.Rate())
	if i < len(SpeedLadder)-1 {
		i++
	}
	c.state.SetRate(SpeedLadder[i])
	c.log.Debug().Float64("rate", SpeedLadder[i]).Msg("speed up")
	return SpeedLadder[i]
}

// SpeedDown moves one step down the rate ladder and returns the new
// rate.
func (c *Controller) SpeedDown() float64 {
	i := ladderIndex(c.state.Rate())
	if i > 0 {
		i--
	}
	c.state.SetRate(SpeedLadder[i])
	c.log.Debug().Float64("rate", SpeedLadder[i]).Msg("speed down")
	return SpeedLadder[i]
}

func (c *Controller) ResetSpeed() {
	c.state.SetRate(1)
}

// ladderIndex finds the ladder entry closest to rate, so a rate set
// directly over the API snaps onto the ladder on the next J/L press.
func ladderIndex(rate float64) int {
	best := 0
	for i, v := range SpeedLadder {
		if math.Abs(v-rate) < math.Abs(SpeedLadder[best]-rate) {
			best = i
		}
	}
	return best
}

func (c *Controller) VolumeUp() {
	c.state.SetVolume(c.state.Volume() + 0.1)
}

func (c *Controller) VolumeDown() {
	c.state.SetVolume(c.state.Volume() - 0.1)
}

func (c *Controller) ToggleMute() {
	c.state.SetMuted(!c.state.Muted())
}
