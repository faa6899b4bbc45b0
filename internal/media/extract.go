package media

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ExtractFrame decodes the single frame nearest timeSec, scaled to fit
// width x height. Dimensions are snapped even for the pixel formats
// ffmpeg accepts.
func (e *Executor) ExtractFrame(ctx context.Context, path string, timeSec float64, width, height int) (*image.RGBA, error) {
	width = normalizeEven(width, 4, 4096)
	height = normalizeEven(height, 4, 4096)

	if timeSec < 0 {
		timeSec = 0
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-ss", fmt.Sprintf("%.3f", timeSec),
		"-i", path,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"-loglevel", "error",
		"-",
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("extract frame: %w", err)
	}

	expectedSize := width * height * 3
	if len(out) < expectedSize {
		return nil, fmt.Errorf("incomplete frame: got %d bytes, want %d", len(out), expectedSize)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	convertRGB24ToRGBA(out[:expectedSize], img.Pix)
	return img, nil
}

// ExtractThumbnail writes a PNG snapshot of the frame at timeSec
func (e *Executor) ExtractThumbnail(ctx context.Context, path string, timeSec float64, dst string) error {
	img, err := e.ExtractFrame(ctx, path, timeSec, 320, 180)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create thumbnail: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return nil
}

func convertRGB24ToRGBA(src, dst []byte) {
	for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
		dst[j] = src[i]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i+2]
		dst[j+3] = 255
	}
}

func normalizeEven(v, min, max int) int {
	v = (v / 2) * 2
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
