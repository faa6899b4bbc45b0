package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var ErrNoVideoStream = errors.New("no video stream found")

// Info describes a probed media file. DurationSec is zero when the
// container does not report one.
type Info struct {
	Width       int
	Height      int
	FPS         float64
	DurationSec float64
	VideoCodec  string
	Bitrate     int64

	HasAudio   bool
	AudioCodec string
	SampleRate int
	Channels   int
}

// HasVideo reports whether a decodeable video stream was found
func (i *Info) HasVideo() bool {
	return i.Width > 0 && i.Height > 0
}

// Probe extracts stream and container metadata from a media file
func (e *Executor) Probe(ctx context.Context, path string) (*Info, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (*Info, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &Info{}

	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil && dur > 0 {
		info.DurationSec = dur
	}
	if br, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = br
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if info.HasVideo() {
				continue
			}
			info.Width = stream.Width
			info.Height = stream.Height
			info.VideoCodec = stream.CodecName
			info.FPS = ParseFrameRate(stream.RFrameRate)
		case "audio":
			info.HasAudio = true
			info.AudioCodec = stream.CodecName
			if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
				info.SampleRate = sr
			}
			info.Channels = stream.Channels
		}
	}

	if info.FPS <= 0 {
		info.FPS = 30
	}

	return info, nil
}

// ParseFrameRate parses an ffprobe rate expression such as "30/1" or
// "30000/1001", returning 0 when it cannot
func ParseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if idx := strings.Index(s, "/"); idx > 0 {
		num, _ := strconv.ParseFloat(s[:idx], 64)
		den, _ := strconv.ParseFloat(s[idx+1:], 64)
		if den > 0 {
			return num / den
		}
		return 0
	}
	fps, _ := strconv.ParseFloat(s, 64)
	return fps
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}
