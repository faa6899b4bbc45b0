package playback

import (
	"sync"
)

// Snapshot is a point-in-time copy of the transport, safe to hand to
// other goroutines and to serialize onto the wire.
type Snapshot struct {
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
	Playing     bool    `json:"playing"`
	Rate        float64 `json:"rate"`
	Volume      float64 `json:"volume"`
	Muted       bool    `json:"muted"`
}

// Listener receives a snapshot after every state change.
type Listener func(Snapshot)

// State is the single source of truth for the playhead and transport
// settings of the open sequence. The clock loop is the only writer of
// the playhead during playback; seeks and setting changes go through
// the same setters, so every mutation lands under the one lock and
// every listener sees a consistent snapshot.
type State struct {
	mu        sync.Mutex
	current   float64
	duration  float64
	playing   bool
	rate      float64
	volume    float64
	muted     bool
	listeners []Listener
}

func NewState(duration float64) *State {
	if duration < 0 {
		duration = 0
	}
	return &State{
		duration: duration,
		rate:     1,
		volume:   1,
	}
}

// Subscribe registers a listener for state changes. Listeners are
// invoked outside the lock, in registration order.
func (s *State) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		CurrentTime: s.current,
		Duration:    s.duration,
		Playing:     s.playing,
		Rate:        s.rate,
		Volume:      s.volume,
		Muted:       s.muted,
	}
}

// mutate runs fn under the lock and notifies listeners afterwards if
// fn reports a change.
func (s *State) mutate(fn func() bool) {
	s.mu.Lock()
	changed := fn()
	snap := s.snapshotLocked()
	listeners := s.listeners
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range listeners {
		l(snap)
	}
}

func (s *State) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *State) SetCurrentTime(t float64) {
	s.mutate(func() bool {
		if t < 0 {
			t = 0
		}
		if t > s.duration {
			t = s.duration
		}
		if t == s.current {
			return false
		}
		s.current = t
		return true
	})
}

func (s *State) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// SetDuration is called when the sequence is edited or replaced. The
// playhead is pulled back inside the new bounds.
func (s *State) SetDuration(d float64) {
	s.mutate(func() bool {
		if d < 0 {
			d = 0
		}
		if d == s.duration && s.current <= d {
			return false
		}
		s.duration = d
		if s.current > d {
			s.current = d
		}
		return true
	})
}

func (s *State) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *State) SetPlaying(playing bool) {
	s.mutate(func() bool {
		if s.playing == playing {
			return false
		}
		s.playing = playing
		return true
	})
}

func (s *State) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

func (s *State) SetRate(rate float64) {
	s.mutate(func() bool {
		if rate <= 0 {
			rate = 1
		}
		if rate == s.rate {
			return false
		}
		s.rate = rate
		return true
	})
}

func (s *State) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *State) SetVolume(v float64) {
	s.mutate(func() bool {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		if v == s.volume {
			return false
		}
		s.volume = v
		return true
	})
}

func (s *State) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *State) SetMuted(muted bool) {
	s.mutate(func() bool {
		if s.muted == muted {
			return false
		}
		s.muted = muted
		return true
	})
}
