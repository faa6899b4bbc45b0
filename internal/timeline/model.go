package timeline

import "github.com/google/uuid"

// Track layer categories
type TrackKind string

const (
	TrackVideo   TrackKind = "video"
	TrackAudio   TrackKind = "audio"
	TrackCaption TrackKind = "caption"
	TrackOverlay TrackKind = "overlay"
)

// Reports whether the track carries visual content
func (k TrackKind) IsVisual() bool {
	return k == TrackVideo || k == TrackOverlay
}

// Per-track compositing modes
type BlendMode string

const (
	BlendNormal   BlendMode = "normal"
	BlendMultiply BlendMode = "multiply"
	BlendScreen   BlendMode = "screen"
	BlendOverlay  BlendMode = "overlay"
	BlendAdd      BlendMode = "add"
)

type ClipKind string

const (
	ClipMedia ClipKind = "media"
	ClipText  ClipKind = "text"
)

// Canvas dimensions in pixels
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Output format of a sequence
type SequenceFormat struct {
	Canvas        Canvas `json:"canvas"`
	FPS           Ratio  `json:"fps"`
	AudioRate     int    `json:"audioSampleRate"`
	AudioChannels int    `json:"audioChannels"`
}

// Trim window into the source media, in source seconds
type ClipRange struct {
	SourceInSec  float64 `json:"sourceInSec"`
	SourceOutSec float64 `json:"sourceOutSec"`
}

// Placement of a clip on the timeline, in timeline seconds
type ClipPlace struct {
	TimelineInSec float64 `json:"timelineInSec"`
	DurationSec   float64 `json:"durationSec"`
}

// Returns the exclusive end of the clip on the timeline
func (p ClipPlace) TimelineOutSec() float64 {
	return p.TimelineInSec + p.DurationSec
}

// Reports whether t falls inside the half-open placement interval
func (p ClipPlace) Contains(t float64) bool {
	return t >= p.TimelineInSec && t < p.TimelineOutSec()
}

// Reports whether two placements overlap in time
func (p ClipPlace) Overlaps(other ClipPlace) bool {
	return p.TimelineInSec < other.TimelineOutSec() && other.TimelineInSec < p.TimelineOutSec()
}

// Geometric placement of a clip on the surface
type Transform struct {
	Position    Point2D `json:"position"`
	Scale       Point2D `json:"scale"`
	RotationDeg float64 `json:"rotationDeg"`
	Anchor      Point2D `json:"anchor"`
}

// DefaultTransform centers the clip at full scale with no rotation
func DefaultTransform() Transform {
	return Transform{
		Position: Center(),
		Scale:    Point2D{X: 1, Y: 1},
		Anchor:   Center(),
	}
}

// Audio mix parameters of a clip
type AudioSettings struct {
	VolumeDB float64 `json:"volumeDb"`
	Pan      float64 `json:"pan"`
	Muted    bool    `json:"muted"`
}

// Rendered content of a text clip
type TextData struct {
	Content  string  `json:"content"`
	Color    string  `json:"color"`
	SizeFrac float64 `json:"sizeFrac"`
}

type Clip struct {
	ID        string        `json:"id"`
	AssetID   string        `json:"assetId"`
	Kind      ClipKind      `json:"kind"`
	Range     ClipRange     `json:"range"`
	Place     ClipPlace     `json:"place"`
	Transform Transform     `json:"transform"`
	Opacity   float64       `json:"opacity"`
	Speed     float64       `json:"speed"`
	Text      *TextData     `json:"text,omitempty"`
	Audio     AudioSettings `json:"audio"`
	Label     string        `json:"label,omitempty"`
}

// Returns the playback speed with non-positive values treated as 1
func (c Clip) SafeSpeed() float64 {
	if c.Speed > 0 {
		return c.Speed
	}
	return 1
}

// Maps a timeline time inside the clip to a source time, clamped to the trim window
func (c Clip) SourceTimeAt(t float64) float64 {
	src := c.Range.SourceInSec + (t-c.Place.TimelineInSec)*c.SafeSpeed()
	if src < c.Range.SourceInSec {
		return c.Range.SourceInSec
	}
	if src > c.Range.SourceOutSec {
		return c.Range.SourceOutSec
	}
	return src
}

type Track struct {
	ID        string    `json:"id"`
	Kind      TrackKind `json:"kind"`
	Name      string    `json:"name"`
	Clips     []Clip    `json:"clips"`
	BlendMode BlendMode `json:"blendMode"`
	Muted     bool      `json:"muted"`
	Locked    bool      `json:"locked"`
	Visible   bool      `json:"visible"`
	Volume    float64   `json:"volume"`
}

// Timeline annotations carried on the sequence
type Marker struct {
	ID      string  `json:"id"`
	TimeSec float64 `json:"timeSec"`
	Label   string  `json:"label"`
	Kind    string  `json:"kind"`
}

type Sequence struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Format  SequenceFormat `json:"format"`
	Tracks  []Track        `json:"tracks"`
	Markers []Marker       `json:"markers,omitempty"`
}

// NewSequence creates an empty sequence with a fresh id
func NewSequence(name string, format SequenceFormat) *Sequence {
	return &Sequence{ID: uuid.NewString(), Name: name, Format: format}
}

// NewTrack creates a visible, unlocked track at full volume
func NewTrack(kind TrackKind, name string) Track {
	return Track{
		ID:        uuid.NewString(),
		Kind:      kind,
		Name:      name,
		BlendMode: BlendNormal,
		Visible:   true,
		Volume:    1,
	}
}

// NewClip creates a media clip with neutral transform, opacity and speed
func NewClip(assetID string, rng ClipRange, place ClipPlace) Clip {
	return Clip{
		ID:        uuid.NewString(),
		AssetID:   assetID,
		Kind:      ClipMedia,
		Range:     rng,
		Place:     place,
		Transform: DefaultTransform(),
		Opacity:   1,
		Speed:     1,
	}
}

// Duration returns the furthest clip end across all tracks, zero when empty
func (s *Sequence) Duration() float64 {
	var max float64
	for _, track := range s.Tracks {
		for _, clip := range track.Clips {
			if out := clip.Place.TimelineOutSec(); out > max {
				max = out
			}
		}
	}
	return max
}

// FrameSeconds returns the duration of one frame of the sequence format
func (s *Sequence) FrameSeconds() float64 {
	return s.Format.FPS.FrameSeconds()
}
