package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrDecodeFailed = errors.New("decode failed")

// FrameSink receives decoded frames. Stores are gated by an epoch so
// frames from a superseded session are rejected instead of racing a
// newer one.
type FrameSink interface {
	Epoch() uint64
	Store(img *image.RGBA, timeSec float64, epoch uint64) bool
	AddDropped()
	SetError(err error)
}

// SessionConfig holds streaming decode parameters
type SessionConfig struct {
	Width    int
	Height   int
	StartSec float64
	FPS      float64
	Rate     float64
}

// Session manages one continuous ffmpeg decode process. Frames arrive
// on stdout as rawvideo and are paced to the presentation rate.
type Session struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.ReadCloser
	stderr io.ReadCloser
	logger zerolog.Logger

	width     int
	height    int
	frameSize int
	fps       float64
	epoch     uint64
	startSec  float64

	mu      sync.Mutex
	rate    float64
	paused  bool
	stopped bool

	done chan struct{}
}

// StartSession launches the decode process positioned at StartSec
func (e *Executor) StartSession(ctx context.Context, path string, cfg SessionConfig, epoch uint64) (*Session, error) {
	width := normalizeEven(cfg.Width, 4, 4096)
	height := normalizeEven(cfg.Height, 4, 4096)

	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = 1
	}

	args := buildSessionArgs(path, width, height, cfg.StartSec, fps, e.threads)

	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, e.ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		stdout.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("start: %w", err)
	}

	e.logger.Debug().
		Uint64("epoch", epoch).
		Int("pid", cmd.Process.Pid).
		Float64("start", cfg.StartSec).
		Msg("decode session started")

	return &Session{
		cmd:       cmd,
		cancel:    cancel,
		stdout:    stdout,
		stderr:    stderr,
		logger:    e.logger,
		width:     width,
		height:    height,
		frameSize: width * height * 3,
		fps:       fps,
		epoch:     epoch,
		startSec:  cfg.StartSec,
		rate:      rate,
		done:      make(chan struct{}),
	}, nil
}

func buildSessionArgs(path string, width, height int, startSec, fps float64, threads int) []string {
	var args []string
	if threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", threads))
	}
	if startSec > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", startSec))
	}
	args = append(args,
		"-i", path,
		"-vf", fmt.Sprintf("fps=%.2f,scale=%d:%d", fps, width, height),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"-an",
		"-sn",
		"-loglevel", "error",
		"-",
	)
	return args
}

// ReadFrames consumes decoded frames until the session stops or the
// sink's epoch moves on. It blocks and is meant to run on its own
// goroutine.
func (s *Session) ReadFrames(sink FrameSink) {
	defer func() {
		close(s.done)
		s.stdout.Close()
		s.cmd.Wait()
		s.logger.Debug().Uint64("epoch", s.epoch).Msg("decode session exited")
	}()

	go s.drainStderr()

	frameSec := 1 / s.fps
	reader := bufio.NewReaderSize(s.stdout, s.frameSize*4)

	// Double buffer so the sink can hold one frame while the next decodes
	frames := [2]*image.RGBA{
		image.NewRGBA(image.Rect(0, 0, s.width, s.height)),
		image.NewRGBA(image.Rect(0, 0, s.width, s.height)),
	}
	frameIdx := 0

	rgbBuf := make([]byte, s.frameSize)
	currentTime := s.startSec
	frameNum := 0
	nextAt := time.Now()
	wasPaused := false

	for {
		s.mu.Lock()
		stopped := s.stopped
		paused := s.paused
		rate := s.rate
		s.mu.Unlock()

		if stopped {
			return
		}
		if sink.Epoch() != s.epoch {
			return
		}
		if paused {
			time.Sleep(20 * time.Millisecond)
			wasPaused = true
			continue
		}
		if wasPaused {
			nextAt = time.Now()
			wasPaused = false
		}

		if _, err := io.ReadFull(reader, rgbBuf); err != nil {
			if frameNum == 0 {
				sink.SetError(ErrDecodeFailed)
			}
			return
		}

		wallDur := time.Duration(float64(time.Second) * frameSec / rate)
		lag := time.Since(nextAt)

		// Too far behind: skip presenting this frame entirely
		if lag > wallDur*5 {
			sink.AddDropped()
			frameNum++
			currentTime += frameSec
			nextAt = nextAt.Add(wallDur)
			continue
		}

		frame := frames[frameIdx]
		frameIdx = 1 - frameIdx
		convertRGB24ToRGBA(rgbBuf, frame.Pix)

		if !sink.Store(frame, currentTime, s.epoch) {
			return
		}

		frameNum++
		currentTime += frameSec
		nextAt = nextAt.Add(wallDur)

		if sleep := time.Until(nextAt); sleep > 2*time.Millisecond {
			time.Sleep(sleep - 2*time.Millisecond)
		}
	}
}

func (s *Session) drainStderr() {
	buf := make([]byte, 1024)
	for {
		n, err := s.stderr.Read(buf)
		if n > 0 {
			s.logger.Debug().Uint64("epoch", s.epoch).Msg(string(buf[:n]))
		}
		if err != nil {
			break
		}
	}
	s.stderr.Close()
}

// SetRate changes the presentation pace without restarting the decode
func (s *Session) SetRate(rate float64) {
	if rate <= 0 {
		rate = 1
	}
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
}

// SetPaused freezes or resumes frame consumption
func (s *Session) SetPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
}

// Stop terminates the process and waits briefly for the read loop
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}

	select {
	case <-s.done:
	case <-time.After(500 * time.Millisecond):
	}
}

// Done returns a channel closed when the read loop exits
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Epoch returns the sink epoch this session was started against
func (s *Session) Epoch() uint64 {
	return s.epoch
}
