package compositor

import (
	"image"

	"github.com/reelkit/reelkit/internal/timeline"
)

// blendOnto mixes a staged layer into dst per pixel. The staging image
// is transparent outside the projected frame, so alpha doubles as the
// coverage mask. dst is always opaque.
func blendOnto(dst, src *image.RGBA, mode timeline.BlendMode, opacity float64) {
	op := uint32(opacity*255 + 0.5)
	if op == 0 {
		return
	}

	n := len(dst.Pix)
	for i := 0; i+3 < n; i += 4 {
		sa := uint32(src.Pix[i+3])
		if sa == 0 {
			continue
		}

		a := sa * op / 255
		if a == 0 {
			continue
		}

		for ch := range 3 {
			d := uint32(dst.Pix[i+ch])
			s := uint32(src.Pix[i+ch])
			mixed := blendChannel(mode, d, s)
			dst.Pix[i+ch] = uint8((d*(255-a) + mixed*a) / 255)
		}
		dst.Pix[i+3] = 255
	}
}

// blendChannel applies the blend equation to one 0..255 channel pair
func blendChannel(mode timeline.BlendMode, d, s uint32) uint32 {
	switch mode {
	case timeline.BlendMultiply:
		return d * s / 255
	case timeline.BlendScreen:
		return 255 - (255-d)*(255-s)/255
	case timeline.BlendOverlay:
		if d < 128 {
			return 2 * d * s / 255
		}
		return 255 - 2*(255-d)*(255-s)/255
	case timeline.BlendAdd:
		if sum := d + s; sum < 255 {
			return sum
		}
		return 255
	default:
		return s
	}
}
