package compositor

import (
	"image"
	"image/color"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// drawText rasterizes a text layer with the builtin bitmap face and
// scales it up to the size fraction of the surface height, positioned
// by the clip transform.
func (c *Compositor) drawText(dst *image.RGBA, layer *Layer) {
	text := layer.Text
	if text == nil || text.Content == "" {
		return
	}

	opacity := clampUnit(layer.Opacity)
	if opacity == 0 {
		return
	}

	face := basicfont.Face7x13
	lines := strings.Split(text.Content, "\n")

	maxWidth := 0
	for _, line := range lines {
		if w := font.MeasureString(face, line).Ceil(); w > maxWidth {
			maxWidth = w
		}
	}
	if maxWidth == 0 {
		return
	}
	lineHeight := face.Metrics().Height.Ceil()
	rasterH := lineHeight * len(lines)

	raster := image.NewRGBA(image.Rect(0, 0, maxWidth, rasterH))
	drawer := &font.Drawer{
		Dst:  raster,
		Src:  image.NewUniform(parseHexColor(text.Color)),
		Face: face,
	}
	ascent := face.Metrics().Ascent.Ceil()
	for i, line := range lines {
		drawer.Dot = fixed.P(0, ascent+i*lineHeight)
		drawer.DrawString(line)
	}

	// Target height from the size fraction, defaulting to 1/10th of
	// the surface
	frac := text.SizeFrac
	if frac <= 0 || frac > 1 {
		frac = 0.1
	}
	targetH := int(frac * float64(c.height))
	if targetH < rasterH {
		targetH = rasterH
	}
	scale := float64(targetH) / float64(rasterH)
	targetW := int(float64(maxWidth) * scale)
	if targetW < 1 || targetH < 1 {
		return
	}

	px := int(layer.Transform.Position.X * float64(c.width))
	py := int(layer.Transform.Position.Y * float64(c.height))
	x0 := px - int(layer.Transform.Anchor.X*float64(targetW))
	y0 := py - int(layer.Transform.Anchor.Y*float64(targetH))
	rect := image.Rect(x0, y0, x0+targetW, y0+targetH)

	var opts *xdraw.Options
	if opacity < 1 {
		mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
		opts = &xdraw.Options{SrcMask: mask}
	}
	xdraw.NearestNeighbor.Scale(dst, rect, raster, raster.Bounds(), xdraw.Over, opts)
}

// parseHexColor reads #RGB or #RRGGBB, defaulting to white
func parseHexColor(s string) color.RGBA {
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		v, err := strconv.ParseUint(s, 16, 32)
		if err != nil {
			return white
		}
		r := uint8(v >> 8 & 0xF)
		g := uint8(v >> 4 & 0xF)
		b := uint8(v & 0xF)
		return color.RGBA{R: r * 17, G: g * 17, B: b * 17, A: 255}
	case 6:
		v, err := strconv.ParseUint(s, 16, 32)
		if err != nil {
			return white
		}
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
	default:
		return white
	}
}
