package project

import (
	"github.com/reelkit/reelkit/internal/timeline"
)

func textClip(content, color string, sizeFrac, in, dur float64) timeline.Clip {
	clip := timeline.NewClip("", timeline.ClipRange{SourceOutSec: dur}, timeline.ClipPlace{
		TimelineInSec: in,
		DurationSec:   dur,
	})
	clip.Kind = timeline.ClipText
	clip.Text = &timeline.TextData{Content: content, Color: color, SizeFrac: sizeFrac}
	return clip
}

// Demo builds a self-contained project that previews without any
// media on disk: text clips, an overlay watermark and chapter
// markers. Handy for first runs and for exercising the full pipeline
// in development.
func Demo() *Document {
	seq := timeline.NewSequence("Demo", timeline.FormatPreset(timeline.PresetYouTube1080))

	main := timeline.NewTrack(timeline.TrackVideo, "Main")
	main.Clips = []timeline.Clip{
		textClip("REELKIT", "#ffffff", 0.18, 0, 4),
		textClip("FRAME ACCURATE\nPREVIEW", "#7ec8ff", 0.12, 4, 4),
		textClip("MULTI TRACK\nCOMPOSITING", "#ffd166", 0.12, 8, 4),
	}

	overlay := timeline.NewTrack(timeline.TrackOverlay, "Watermark")
	mark := textClip("reelkit", "#888888", 0.05, 0, 12)
	mark.Opacity = 0.4
	mark.Transform.Position = timeline.Point2D{X: 0.85, Y: 0.92}
	overlay.Clips = []timeline.Clip{mark}

	seq.Tracks = []timeline.Track{main, overlay}
	seq.Markers = []timeline.Marker{
		{ID: "m1", TimeSec: 0, Label: "title", Kind: "chapter"},
		{ID: "m2", TimeSec: 4, Label: "accuracy", Kind: "chapter"},
		{ID: "m3", TimeSec: 8, Label: "compositing", Kind: "chapter"},
	}

	doc := NewDocument()
	doc.Sequences = []*timeline.Sequence{seq}
	doc.ActiveSequenceID = seq.ID
	return doc
}
