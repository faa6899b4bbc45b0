package playback

import (
	"testing"
)

func TestNewStateDefaults(t *testing.T) {
	s := NewState(12.5)
	snap := s.Snapshot()

	if snap.CurrentTime != 0 {
		t.Errorf("CurrentTime = %v, want 0", snap.CurrentTime)
	}
	if snap.Duration != 12.5 {
		t.Errorf("Duration = %v, want 12.5", snap.Duration)
	}
	if snap.Playing {
		t.Error("new state should be paused")
	}
	if snap.Rate != 1 {
		t.Errorf("Rate = %v, want 1", snap.Rate)
	}
	if snap.Volume != 1 {
		t.Errorf("Volume = %v, want 1", snap.Volume)
	}
	if snap.Muted {
		t.Error("new state should be unmuted")
	}
}

func TestSetCurrentTimeClamps(t *testing.T) {
	s := NewState(10)

	s.SetCurrentTime(-3)
	if got := s.CurrentTime(); got != 0 {
		t.Errorf("negative time = %v, want 0", got)
	}

	s.SetCurrentTime(42)
	if got := s.CurrentTime(); got != 10 {
		t.Errorf("past end = %v, want 10", got)
	}

	s.SetCurrentTime(4.5)
	if got := s.CurrentTime(); got != 4.5 {
		t.Errorf("in range = %v, want 4.5", got)
	}
}

func TestSetDurationPullsPlayheadBack(t *testing.T) {
	s := NewState(10)
	s.SetCurrentTime(8)

	s.SetDuration(5)

	if got := s.Duration(); got != 5 {
		t.Errorf("Duration = %v, want 5", got)
	}
	if got := s.CurrentTime(); got != 5 {
		t.Errorf("CurrentTime = %v, want 5", got)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	s := NewState(10)

	s.SetVolume(1.7)
	if got := s.Volume(); got != 1 {
		t.Errorf("over range = %v, want 1", got)
	}

	s.SetVolume(-0.2)
	if got := s.Volume(); got != 0 {
		t.Errorf("under range = %v, want 0", got)
	}
}

func TestSetRateRejectsNonPositive(t *testing.T) {
	s := NewState(10)

	s.SetRate(0)
	if got := s.Rate(); got != 1 {
		t.Errorf("zero rate = %v, want 1", got)
	}

	s.SetRate(-2)
	if got := s.Rate(); got != 1 {
		t.Errorf("negative rate = %v, want 1", got)
	}

	s.SetRate(2)
	if got := s.Rate(); got != 2 {
		t.Errorf("rate = %v, want 2", got)
	}
}

func TestSubscribeNotifiesOnChange(t *testing.T) {
	s := NewState(10)

	var got []Snapshot
	s.Subscribe(func(snap Snapshot) {
		got = append(got, snap)
	})

	s.SetCurrentTime(2)
	s.SetPlaying(true)
	s.SetPlaying(true) // no-op, must not notify
	s.SetMuted(true)

	if len(got) != 3 {
		t.Fatalf("notifications = %d, want 3", len(got))
	}
	if got[0].CurrentTime != 2 || got[0].Playing {
		t.Errorf("first snapshot = %+v", got[0])
	}
	if !got[1].Playing {
		t.Errorf("second snapshot = %+v", got[1])
	}
	if !got[2].Muted || !got[2].Playing {
		t.Errorf("third snapshot = %+v", got[2])
	}
}

func TestNoNotificationOnNoopMutation(t *testing.T) {
	s := NewState(10)

	calls := 0
	s.Subscribe(func(Snapshot) { calls++ })

	s.SetCurrentTime(0)
	s.SetVolume(1)
	s.SetRate(1)
	s.SetMuted(false)

	if calls != 0 {
		t.Errorf("no-op mutations produced %d notifications", calls)
	}
}
