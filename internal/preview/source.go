package preview

import (
	"github.com/reelkit/reelkit/internal/asset"
	"github.com/reelkit/reelkit/internal/compositor"
	"github.com/reelkit/reelkit/internal/frame"
	"github.com/reelkit/reelkit/internal/timeline"
)

// FrameSource produces the paint-ordered layer stack for an instant
// on the timeline. The two implementations trade accuracy against
// latency: the extraction source composes cached stills, the element
// source reads live decode sessions.
type FrameSource interface {
	// LayersAt never blocks on media io. Frames that are not ready
	// yet are simply absent from the stack and arrive on a later
	// call.
	LayersAt(t float64) []compositor.Layer
	// Sync aligns the source's decode resources with the transport.
	// Called every tick and after every hard seek.
	Sync(t float64, playing bool, rate float64)
	// Position reports an authoritative playhead in timeline seconds
	// when the source has one. The extraction source never does.
	Position() (float64, bool)
	Close()
}

// Strategy names the two preview pipelines.
type Strategy string

const (
	// StrategyExtraction composes still frames pulled through the
	// extraction cache. Always available.
	StrategyExtraction Strategy = "extraction"
	// StrategyElements runs one live decoder per active clip against
	// proxy files. Smooth, but only once every proxy is ready.
	StrategyElements Strategy = "elements"
)

// VideoAssetIDs collects the distinct video assets referenced by
// media clips on visual tracks of the sequence.
func VideoAssetIDs(lib *asset.Library, seq *timeline.Sequence) []string {
	if seq == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var ids []string
	for ti := range seq.Tracks {
		track := &seq.Tracks[ti]
		if !track.Kind.IsVisual() {
			continue
		}
		for ci := range track.Clips {
			clip := &track.Clips[ci]
			if clip.Kind != timeline.ClipMedia || clip.AssetID == "" {
				continue
			}
			if _, ok := seen[clip.AssetID]; ok {
				continue
			}
			seen[clip.AssetID] = struct{}{}
			a := lib.Get(clip.AssetID)
			if a != nil && a.Kind != asset.KindVideo {
				continue
			}
			ids = append(ids, clip.AssetID)
		}
	}
	return ids
}

// ChooseStrategy picks the element pipeline only when every video
// asset the sequence references has a ready proxy. One cold asset
// sends the whole sequence down the extraction path, so the preview
// never mixes live and still frames for overlapping clips.
func ChooseStrategy(lib *asset.Library, seq *timeline.Sequence) Strategy {
	ids := VideoAssetIDs(lib, seq)
	if len(ids) == 0 {
		// Nothing but text and images; stills are exact.
		return StrategyExtraction
	}
	if lib.AllProxiesReady(ids) {
		return StrategyElements
	}
	return StrategyExtraction
}

// ExtractionSource is the still-frame pipeline: every layer image
// comes out of the frame service's cache, misses fill in the
// background and repaint through the service's fill callback.
type ExtractionSource struct {
	svc *frame.Service
	lib *asset.Library
	seq *timeline.Sequence
}

func NewExtractionSource(svc *frame.Service, lib *asset.Library, seq *timeline.Sequence) *ExtractionSource {
	return &ExtractionSource{svc: svc, lib: lib, seq: seq}
}

func (s *ExtractionSource) LayersAt(t float64) []compositor.Layer {
	active := timeline.ActiveClipsAt(s.seq, t)
	layers := make([]compositor.Layer, 0, len(active))

	for _, ac := range active {
		layer := compositor.Layer{
			Opacity:   ac.Clip.Opacity,
			Blend:     ac.Track.BlendMode,
			Transform: ac.Clip.Transform,
		}

		if ac.Clip.Kind == timeline.ClipText {
			if ac.Clip.Text == nil {
				continue
			}
			layer.Text = ac.Clip.Text
			layers = append(layers, layer)
			continue
		}

		a := s.lib.Get(ac.Clip.AssetID)
		if a == nil {
			continue
		}
		switch a.Kind {
		case asset.KindVideo:
			path, ok := a.PreviewPath()
			if !ok {
				continue
			}
			layer.Image = s.svc.GetFrame(a.ID, path, ac.SourceTime)
		case asset.KindImage, asset.KindGraphics:
			path, ok := asset.LocalPath(a.URI)
			if !ok {
				continue
			}
			layer.Image = s.svc.GetFrame(a.ID, path, 0)
		default:
			continue
		}
		if layer.Image == nil {
			// Not decoded yet; the fill callback repaints when it is
			continue
		}
		layers = append(layers, layer)
	}
	return layers
}

// Sync warms the look-ahead window for every active video asset
// while playing. Pausing stops issuing windows; cached frames keep
// serving scrubs.
func (s *ExtractionSource) Sync(t float64, playing bool, rate float64) {
	if !playing {
		return
	}
	for _, ac := range timeline.ActiveClipsAt(s.seq, t) {
		if ac.Clip.Kind != timeline.ClipMedia {
			continue
		}
		a := s.lib.Get(ac.Clip.AssetID)
		if a == nil || a.Kind != asset.KindVideo {
			continue
		}
		path, ok := a.PreviewPath()
		if !ok {
			continue
		}
		s.svc.Prefetch(a.ID, path, ac.SourceTime)
	}
}

// Position always defers to the wall clock.
func (s *ExtractionSource) Position() (float64, bool) {
	return 0, false
}

// Close resets prefetch bookkeeping. The service itself is shared
// and owned by the engine, not by one source.
func (s *ExtractionSource) Close() {
	s.svc.Invalidate()
}
