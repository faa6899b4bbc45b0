package compositor

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/reelkit/reelkit/internal/timeline"
)

// Layer is one resolved clip ready to draw. Image layers carry decoded
// pixels; text layers carry the text payload instead. A nil Image on
// an image layer paints nothing, leaving black behind it.
type Layer struct {
	Image     *image.RGBA
	Text      *timeline.TextData
	Opacity   float64
	Blend     timeline.BlendMode
	Transform timeline.Transform
}

// Compositor draws layer stacks onto a fixed-size surface. Renders
// are gated by a generation counter: any invalidation between capture
// and commit discards the whole result, so a stale async pass can
// never overwrite a newer one.
type Compositor struct {
	width   int
	height  int
	scratch *image.RGBA
	tmp     *image.RGBA
	gen     atomic.Uint64
}

// New creates a compositor for a width x height surface
func New(width, height int) *Compositor {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &Compositor{
		width:   width,
		height:  height,
		scratch: image.NewRGBA(image.Rect(0, 0, width, height)),
		tmp:     image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Size returns the surface dimensions
func (c *Compositor) Size() (int, int) {
	return c.width, c.height
}

// Begin captures the generation for a render pass
func (c *Compositor) Begin() uint64 {
	return c.gen.Load()
}

// Invalidate discards any render pass in flight
func (c *Compositor) Invalidate() {
	c.gen.Add(1)
}

// Render composites layers back to front and, if the generation still
// matches, commits the result to dst. Returns false when the pass was
// invalidated mid-flight and dst was left untouched.
func (c *Compositor) Render(dst *image.RGBA, layers []Layer, gen uint64) bool {
	c.Composite(c.scratch, layers)

	if c.gen.Load() != gen {
		return false
	}
	copy(dst.Pix, c.scratch.Pix)
	return true
}

// Composite draws the layer stack onto dst without generation gating.
// Media layers go down in stack order; text rides above all of them
// no matter which track it came from.
func (c *Compositor) Composite(dst *image.RGBA, layers []Layer) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	for i := range layers {
		layer := &layers[i]
		if layer.Text == nil && layer.Image != nil {
			c.drawImage(dst, layer)
		}
	}
	for i := range layers {
		layer := &layers[i]
		if layer.Text != nil {
			c.drawText(dst, layer)
		}
	}
}

// drawImage places one frame: letterbox fit, then scale, rotation and
// translation from the clip transform, then opacity and blend mode.
func (c *Compositor) drawImage(dst *image.RGBA, layer *Layer) {
	src := layer.Image
	bounds := src.Bounds()
	iw, ih := float64(bounds.Dx()), float64(bounds.Dy())
	if iw <= 0 || ih <= 0 {
		return
	}

	opacity := clampUnit(layer.Opacity)
	if opacity == 0 {
		return
	}

	// Letterbox: fit the frame inside the surface preserving aspect
	fit := math.Min(float64(c.width)/iw, float64(c.height)/ih)

	xf := layer.Transform
	sx := fit * scaleOrOne(xf.Scale.X)
	sy := fit * scaleOrOne(xf.Scale.Y)
	if sx <= 0 || sy <= 0 {
		return
	}

	px := xf.Position.X * float64(c.width)
	py := xf.Position.Y * float64(c.height)
	ax := xf.Anchor.X * iw * sx
	ay := xf.Anchor.Y * ih * sy

	theta := xf.RotationDeg * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)

	m := f64.Aff3{
		cos * sx, -sin * sy, px - cos*ax + sin*ay,
		sin * sx, cos * sy, py - sin*ax - cos*ay,
	}

	if layer.Blend == timeline.BlendNormal || layer.Blend == "" {
		if opacity == 1 {
			xdraw.ApproxBiLinear.Transform(dst, m, src, bounds, xdraw.Over, nil)
			return
		}
		mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
		xdraw.ApproxBiLinear.Transform(dst, m, src, bounds, xdraw.Over, &xdraw.Options{SrcMask: mask})
		return
	}

	// Non-normal blends: project into a clear staging image first,
	// then mix per pixel
	clearRGBA(c.tmp)
	xdraw.ApproxBiLinear.Transform(c.tmp, m, src, bounds, xdraw.Over, nil)
	blendOnto(dst, c.tmp, layer.Blend, opacity)
}

func scaleOrOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clearRGBA(img *image.RGBA) {
	for i := range img.Pix {
		img.Pix[i] = 0
	}
}
