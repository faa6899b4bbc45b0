package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reelkit/reelkit/internal/asset"
	"github.com/reelkit/reelkit/internal/catalog"
	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/frame"
	"github.com/reelkit/reelkit/internal/logging"
	"github.com/reelkit/reelkit/internal/media"
	"github.com/reelkit/reelkit/internal/monitor"
	"github.com/reelkit/reelkit/internal/playback"
	"github.com/reelkit/reelkit/internal/preview"
	"github.com/reelkit/reelkit/internal/project"
	"github.com/reelkit/reelkit/internal/server"
	"github.com/reelkit/reelkit/internal/watcher"
	"github.com/reelkit/reelkit/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reelkit: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "path to reelkit.yaml")
		projectPath = flag.String("project", "", "project file to open")
		sequenceID  = flag.String("sequence", "", "sequence id to open instead of the project's active one")
		demo        = flag.Bool("demo", false, "preview the built-in demo project")
		headless    = flag.Bool("headless", false, "run without the terminal UI")
		logFile     = flag.String("log-file", "", "write logs to this file")
		showVer     = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Printf("reelkit %s (%s)\n", config.Version, config.GitCommit)
		return nil
	}

	startTime := time.Now()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir, cfg.ProxyDir(), cfg.ThumbDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	// With the terminal UI active, stderr belongs to tcell; logs go to
	// a file or nowhere.
	switch {
	case *logFile != "":
		f, err := logging.FileWriter(*logFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logging.Init(cfg.LogLevel, f)
	case *headless:
		logging.Init(cfg.LogLevel, nil)
	default:
		logging.Discard()
	}

	logger := logging.WithComponent("main")
	logger.Info().
		Str("version", config.Version).
		Str("dataDir", cfg.DataDir).
		Int("port", cfg.Port).
		Msg("reelkit starting")

	exec, err := media.NewExecutor(log.Logger, cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath, cfg.FFmpeg.Threads)
	if err != nil {
		logger.Warn().Err(err).Msg("ffmpeg unavailable, media decode disabled")
		exec = nil
	}

	db, err := catalog.Open(cfg.DBPath(), logging.WithComponent("catalog"))
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer db.Close()
	repo := catalog.NewRepository(db.Conn())

	doc, err := loadProject(cfg, *projectPath, *demo)
	if err != nil {
		return err
	}

	seq := doc.ActiveSequence()
	if *sequenceID != "" {
		if seq = doc.FindSequence(*sequenceID); seq == nil {
			return fmt.Errorf("sequence %q not found in project", *sequenceID)
		}
	}
	if seq == nil {
		logger.Info().Msg("project has no sequences, loading the demo")
		doc = project.Demo()
		seq = doc.ActiveSequence()
	}

	bootCtx := context.Background()
	lib := buildLibrary(bootCtx, doc, repo, logger)
	importAssets(bootCtx, exec, lib, repo, cfg.ThumbDir(), logger)

	decodeW, decodeH := preview.PreviewDims(seq, cfg.FFmpeg.ProxyHeight)
	var extractor frame.Extractor
	if exec != nil {
		extractor = exec
	} else {
		extractor = unavailableExtractor{}
	}
	svc := frame.NewService(extractor, frame.ServiceConfig{
		Width:           decodeW,
		Height:          decodeH,
		FPS:             seq.Format.FPS.FPS(),
		CacheMaxBytes:   cfg.Preview.CacheMaxBytes,
		PrefetchSec:     cfg.Preview.PrefetchSec,
		PrefetchMinStep: cfg.Preview.PrefetchMinStep,
	})
	defer svc.Close()

	var mon *monitor.Monitor
	if !*headless {
		mon, err = monitor.New()
		if err != nil {
			return fmt.Errorf("init terminal: %w", err)
		}
	}

	player := preview.NewPlayer(preview.Options{
		Monitor:  mon,
		Executor: exec,
		Frames:   svc,
		Library:  lib,
		Sequence: seq,
		Config:   cfg,
		Logger:   logging.WithComponent("player"),
	})

	hub := server.NewHub(logging.WithComponent("events"))
	defer hub.Close()

	player.State().Subscribe(func(snap playback.Snapshot) {
		hub.Broadcast(server.Event{Type: server.EventPlaybackChanged, Data: snap})
	})
	player.SetStrategyFunc(func(s preview.Strategy) {
		hub.Broadcast(server.Event{
			Type: server.EventStrategyChanged,
			Data: server.StrategyEventPayload{Strategy: string(s)},
		})
	})

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := watcher.New(cfg.ProxyDir(), lib, repo, logging.WithComponent("watcher"))
	if err != nil {
		return fmt.Errorf("watch proxy dir: %w", err)
	}
	defer w.Close()
	w.OnEvent(func(ev watcher.ProxyEvent) {
		if ev.Status != asset.ProxyReady {
			return
		}
		hub.Broadcast(server.Event{
			Type: server.EventProxyReady,
			Data: server.ProxyEventPayload{AssetID: ev.AssetID, Status: string(ev.Status)},
		})
	})
	w.Start(runCtx)

	if exec != nil {
		pw := worker.NewProxyWorker(exec, lib, repo, cfg.ProxyDir(), cfg.FFmpeg.ProxyHeight, log.Logger)
		pw.SetNotifier(func(j *catalog.Job) {
			hub.Broadcast(server.Event{
				Type: server.EventJobProgress,
				Data: server.JobProgressPayload{JobID: j.ID, AssetID: j.AssetID, Progress: j.Progress, Status: j.Status},
			})
		})
		if queued := pw.EnqueuePending(runCtx); queued > 0 {
			logger.Info().Int("queued", queued).Msg("proxy jobs enqueued")
		}
		go pw.Start(runCtx)
	}

	api := server.NewServer(server.Config{
		Port:       cfg.Port,
		Player:     player,
		Library:    lib,
		Repository: repo,
		Hub:        hub,
		ThumbDir:   cfg.ThumbDir(),
		Logger:     logging.WithComponent("api"),
		StartTime:  startTime,
	})
	go func() {
		if err := api.Start(); err != nil {
			logger.Error().Err(err).Msg("api server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal")
		player.Stop()
	}()

	player.Run()

	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("api shutdown")
	}

	return nil
}

// loadProject resolves which document to preview.
func loadProject(cfg *config.Config, path string, demo bool) (*project.Document, error) {
	if demo {
		return project.Demo(), nil
	}
	if path == "" {
		path = filepath.Join(cfg.DataDir, "project.json")
	}
	store := project.NewStore(path, logging.WithComponent("project"))
	return store.Load()
}

// buildLibrary seeds the in-memory library from the project manifest,
// then overlays catalog rows since they carry proxy state learned in
// earlier runs. Proxies whose files have vanished drop back to
// pending.
func buildLibrary(ctx context.Context, doc *project.Document, repo catalog.Repository, logger zerolog.Logger) *asset.Library {
	lib := asset.NewLibrary()

	for _, a := range doc.Assets {
		lib.Put(a)
	}

	rows, err := repo.ListAssets(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("load catalog assets")
	} else {
		for _, a := range rows {
			lib.Put(a)
		}
	}

	for _, a := range lib.List() {
		if !a.HasProxy() {
			continue
		}
		if _, err := os.Stat(a.ProxyURI); err != nil {
			logger.Info().Str("asset", a.ID).Str("proxy", a.ProxyURI).Msg("proxy file missing, back to pending")
			lib.SetProxyStatus(a.ID, asset.ProxyPending, "")
			if err := repo.UpdateProxyStatus(ctx, a.ID, asset.ProxyPending, ""); err != nil {
				logger.Warn().Err(err).Str("asset", a.ID).Msg("persist proxy status")
			}
		}
	}

	logger.Info().Int("assets", lib.Len()).Msg("library ready")
	return lib
}

// importAssets probes media that has not been probed yet, renders a
// missing thumbnail per video, and persists everything to the catalog
// so the next boot starts warm.
func importAssets(ctx context.Context, exec *media.Executor, lib *asset.Library, repo catalog.Repository, thumbDir string, logger zerolog.Logger) {
	for _, a := range lib.List() {
		path, local := asset.LocalPath(a.URI)
		if exec != nil && local && a.Kind == asset.KindVideo && a.Video == nil {
			info, err := exec.Probe(ctx, path)
			if err != nil {
				logger.Warn().Err(err).Str("asset", a.ID).Str("uri", a.URI).Msg("probe failed")
			} else if info.HasVideo() {
				a.DurationSec = info.DurationSec
				a.Video = &asset.VideoInfo{
					Width:    info.Width,
					Height:   info.Height,
					FPS:      info.FPS,
					Codec:    info.VideoCodec,
					HasAudio: info.HasAudio,
				}
				lib.Put(a)
			}
		}
		if exec != nil && local && a.Kind == asset.KindVideo {
			thumb := filepath.Join(thumbDir, a.ID+".png")
			if _, err := os.Stat(thumb); err != nil {
				at := a.DurationSec * 0.25
				if at <= 0 {
					at = 1
				}
				if err := exec.ExtractThumbnail(ctx, path, at, thumb); err != nil {
					logger.Warn().Err(err).Str("asset", a.ID).Msg("thumbnail failed")
				}
			}
		}
		if err := repo.UpsertAsset(ctx, a); err != nil {
			logger.Warn().Err(err).Str("asset", a.ID).Msg("persist asset")
		}
	}
}

// unavailableExtractor stands in for ffmpeg when the binary is not
// installed: every request fails and composes as a missing layer.
type unavailableExtractor struct{}

func (unavailableExtractor) ExtractFrame(context.Context, string, float64, int, int) (*image.RGBA, error) {
	return nil, errors.New("ffmpeg unavailable")
}
