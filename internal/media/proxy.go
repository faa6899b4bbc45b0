package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ProxyOptions configures preview proxy generation
type ProxyOptions struct {
	Height          int
	ProgressHandler func(*Progress)
}

// GenerateProxy transcodes src into a small editing proxy at dst.
// The encode favors decode speed over quality: x264 ultrafast at a
// high CRF, scaled down to the configured height.
func (e *Executor) GenerateProxy(ctx context.Context, src, dst string, opts ProxyOptions) error {
	if src == "" || dst == "" {
		return fmt.Errorf("source and destination are required")
	}

	height := opts.Height
	if height <= 0 {
		height = 720
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create proxy dir: %w", err)
	}

	// Write to a temp name first so the directory watcher only ever
	// sees complete proxies
	tmp := dst + ".partial"
	defer os.Remove(tmp)

	args := []string{
		"-i", src,
		"-vf", fmt.Sprintf("scale=-2:%d", height),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "28",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-f", "mp4",
		tmp,
	}

	if err := e.Run(ctx, RunOptions{Args: args, ProgressHandler: opts.ProgressHandler}); err != nil {
		return fmt.Errorf("generate proxy: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("finalize proxy: %w", err)
	}
	return nil
}

// ProxyFilename returns the canonical proxy name for an asset
func ProxyFilename(assetID string) string {
	return assetID + ".mp4"
}
