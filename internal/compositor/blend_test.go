package compositor

import (
	"image"
	"testing"

	"github.com/reelkit/reelkit/internal/timeline"
)

func TestBlendChannel(t *testing.T) {
	cases := []struct {
		name string
		mode timeline.BlendMode
		d, s uint32
		want uint32
	}{
		{"multiply white identity", timeline.BlendMultiply, 100, 255, 100},
		{"multiply black", timeline.BlendMultiply, 100, 0, 0},
		{"screen black identity", timeline.BlendScreen, 100, 0, 100},
		{"screen white", timeline.BlendScreen, 100, 255, 255},
		{"overlay dark", timeline.BlendOverlay, 64, 255, 128},
		{"overlay light", timeline.BlendOverlay, 200, 255, 255},
		{"add saturates", timeline.BlendAdd, 200, 100, 255},
		{"add partial", timeline.BlendAdd, 100, 50, 150},
		{"normal passes source", timeline.BlendNormal, 10, 77, 77},
	}
	for _, c := range cases {
		if got := blendChannel(c.mode, c.d, c.s); got != c.want {
			t.Errorf("%s: blendChannel(%d, %d) = %d, want %d", c.name, c.d, c.s, got, c.want)
		}
	}
}

func uniformRGBA(w, h int, r, g, b, a uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = a
	}
	return img
}

func TestBlendOntoRespectsAlphaMask(t *testing.T) {
	dst := uniformRGBA(2, 2, 40, 40, 40, 255)
	src := uniformRGBA(2, 2, 200, 200, 200, 255)

	// One transparent staging pixel must leave dst untouched
	src.Pix[3] = 0

	blendOnto(dst, src, timeline.BlendAdd, 1)

	if dst.Pix[0] != 40 {
		t.Errorf("transparent src pixel altered dst: %d", dst.Pix[0])
	}
	if dst.Pix[4] != 240 {
		t.Errorf("add blend = %d, want 240", dst.Pix[4])
	}
}

func TestBlendOntoOpacity(t *testing.T) {
	dst := uniformRGBA(1, 1, 0, 0, 0, 255)
	src := uniformRGBA(1, 1, 200, 200, 200, 255)

	blendOnto(dst, src, timeline.BlendNormal, 0.5)

	// Half of 200 over black, integer math
	got := dst.Pix[0]
	if got < 98 || got > 102 {
		t.Errorf("half opacity over black = %d, want about 100", got)
	}
}

func TestParseHexColor(t *testing.T) {
	cases := []struct {
		in      string
		r, g, b uint8
	}{
		{"#ff0000", 255, 0, 0},
		{"00ff00", 0, 255, 0},
		{"#18c", 17, 136, 204},
		{"", 255, 255, 255},
		{"zzz", 255, 255, 255},
	}
	for _, c := range cases {
		got := parseHexColor(c.in)
		if got.R != c.r || got.G != c.g || got.B != c.b {
			t.Errorf("parseHexColor(%q) = %+v", c.in, got)
		}
	}
}
