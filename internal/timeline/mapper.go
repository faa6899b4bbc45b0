package timeline

import "math"

// One visual layer resolved at a playhead position. TrackIndex and
// ClipIndex preserve the back-to-front paint order.
type ActiveClip struct {
	Clip       *Clip
	Track      *Track
	TrackIndex int
	ClipIndex  int
	SourceTime float64
}

// ActiveClipsAt resolves the clips that contribute pixels at time t.
// Tracks that are hidden, disabled, or not visual are skipped. Clips
// match on the half-open interval [TimelineInSec, TimelineOutSec), so
// a clip boundary belongs to the later clip. The result is ordered by
// (track index, clip index), which is paint order: later entries draw
// on top.
func ActiveClipsAt(seq *Sequence, t float64) []ActiveClip {
	if seq == nil || !isFiniteTime(t) {
		return nil
	}

	var active []ActiveClip
	for ti := range seq.Tracks {
		track := &seq.Tracks[ti]
		if !track.Kind.IsVisual() || !track.Visible || track.Muted {
			continue
		}
		for ci := range track.Clips {
			clip := &track.Clips[ci]
			if !clip.Place.Contains(t) {
				continue
			}
			active = append(active, ActiveClip{
				Clip:       clip,
				Track:      track,
				TrackIndex: ti,
				ClipIndex:  ci,
				SourceTime: clip.SourceTimeAt(t),
			})
		}
	}
	return active
}

// TopClipAt returns the topmost active clip at t, nil when none
func TopClipAt(seq *Sequence, t float64) *ActiveClip {
	active := ActiveClipsAt(seq, t)
	if len(active) == 0 {
		return nil
	}
	return &active[len(active)-1]
}

// TimelineTimeFor inverts the source mapping for a clip: given a time
// on the source clock it returns the matching timeline time, clamped
// into the clip's placement window.
func TimelineTimeFor(clip *Clip, sourceTime float64) float64 {
	t := clip.Place.TimelineInSec + (sourceTime-clip.Range.SourceInSec)/clip.SafeSpeed()
	if t < clip.Place.TimelineInSec {
		return clip.Place.TimelineInSec
	}
	if out := clip.Place.TimelineOutSec(); t > out {
		return out
	}
	return t
}

// SanitizeTime clamps t into [0, duration] and maps NaN and infinities
// to the nearest bound
func SanitizeTime(t, duration float64) float64 {
	if duration < 0 || math.IsNaN(duration) {
		duration = 0
	}
	if math.IsNaN(t) {
		return 0
	}
	if t < 0 || math.IsInf(t, -1) {
		return 0
	}
	if t > duration || math.IsInf(t, 1) {
		return duration
	}
	return t
}

func isFiniteTime(t float64) bool {
	return !math.IsNaN(t) && !math.IsInf(t, 0)
}
