package preview

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/reelkit/reelkit/internal/asset"
	"github.com/reelkit/reelkit/internal/compositor"
	"github.com/reelkit/reelkit/internal/frame"
	"github.com/reelkit/reelkit/internal/media"
	"github.com/reelkit/reelkit/internal/timeline"
)

// ElementSource is the live pipeline: one Element per active video
// clip, decoding proxies in real time. Image stills and text layers
// ride along through the shared frame service. While playing, the
// bottom video element is the authoritative clock, so the playhead
// follows decoded frames instead of running ahead of them.
type ElementSource struct {
	exec *media.Executor
	svc  *frame.Service
	lib  *asset.Library
	seq  *timeline.Sequence
	log  zerolog.Logger

	width    int
	height   int
	fps      float64
	tightTol float64
	looseTol float64

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	elements map[string]*Element
	baseID   string
	playing  bool
}

func NewElementSource(exec *media.Executor, svc *frame.Service, lib *asset.Library, seq *timeline.Sequence,
	width, height int, fps, tightTol, looseTol float64, logger zerolog.Logger) *ElementSource {

	ctx, cancel := context.WithCancel(context.Background())
	return &ElementSource{
		exec:     exec,
		svc:      svc,
		lib:      lib,
		seq:      seq,
		log:      logger,
		width:    width,
		height:   height,
		fps:      fps,
		tightTol: tightTol,
		looseTol: looseTol,
		ctx:      ctx,
		cancel:   cancel,
		elements: make(map[string]*Element),
	}
}

func (s *ElementSource) LayersAt(t float64) []compositor.Layer {
	active := timeline.ActiveClipsAt(s.seq, t)
	layers := make([]compositor.Layer, 0, len(active))

	s.mu.Lock()
	defer s.mu.Unlock()

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
			el := s.elements[ac.Clip.ID]
			if el == nil {
				continue
			}
			layer.Image = el.Frame()
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
			continue
		}
		layers = append(layers, layer)
	}
	return layers
}

// Sync reconciles the element pool with the clips active at t:
// missing elements are spawned, departed ones released, survivors
// realigned. The tolerance band is tight while paused so steps are
// frame exact, loose while playing so pacing jitter does not thrash
// decoders.
func (s *ElementSource) Sync(t float64, playing bool, rate float64) {
	active := timeline.ActiveClipsAt(s.seq, t)

	tol := s.looseTol
	if !playing {
		tol = s.tightTol
	}

	keep := make(map[string]struct{}, len(active))
	baseID := ""

	s.mu.Lock()
	s.playing = playing
	ctx := s.ctx
	var work []*Element
	for _, ac := range active {
		if ac.Clip.Kind != timeline.ClipMedia {
			continue
		}
		a := s.lib.Get(ac.Clip.AssetID)
		if a == nil || a.Kind != asset.KindVideo {
			continue
		}
		el := s.elements[ac.Clip.ID]
		if el == nil {
			path, ok := a.PreviewPath()
			if !ok {
				continue
			}
			el = NewElement(s.exec, path, *ac.Clip, s.width, s.height, s.fps, s.log)
			s.elements[ac.Clip.ID] = el
		}
		keep[ac.Clip.ID] = struct{}{}
		if baseID == "" {
			baseID = ac.Clip.ID
		}
		work = append(work, el)
	}

	var released []*Element
	for id, el := range s.elements {
		if _, ok := keep[id]; !ok {
			released = append(released, el)
			delete(s.elements, id)
		}
	}
	s.baseID = baseID
	s.mu.Unlock()

	for _, el := range released {
		el.Release()
	}
	for _, el := range work {
		el.SetRate(rate)
		el.Sync(ctx, t, playing, tol)
	}
}

// Position returns the bottom video element's playhead while
// playing. Paused, the committed transport position is already
// exact and the source stays silent.
func (s *ElementSource) Position() (float64, bool) {
	s.mu.Lock()
	playing := s.playing
	el := s.elements[s.baseID]
	s.mu.Unlock()

	if !playing || el == nil {
		return 0, false
	}
	return el.Position()
}

func (s *ElementSource) Close() {
	s.cancel()

	s.mu.Lock()
	els := make([]*Element, 0, len(s.elements))
	for _, el := range s.elements {
		els = append(els, el)
	}
	s.elements = make(map[string]*Element)
	s.mu.Unlock()

	for _, el := range els {
		el.Release()
	}
}
