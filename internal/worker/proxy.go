package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelkit/reelkit/internal/asset"
	"github.com/reelkit/reelkit/internal/catalog"
	"github.com/reelkit/reelkit/internal/media"
)

// Notifier receives a copy of the job after every lifecycle change,
// so the event hub can fan progress out to clients.
type Notifier func(job *catalog.Job)

// ProxyWorker drains pending proxy jobs from the catalog and runs
// them through ffmpeg one at a time. The job rows are the queue: they
// survive restarts, and rows left running by a dead process are
// failed during catalog open so their assets re-enqueue cleanly.
type ProxyWorker struct {
	exec   *media.Executor
	lib    *asset.Library
	repo   catalog.Repository
	dir    string
	height int
	log    zerolog.Logger

	pollInterval time.Duration
	running      atomic.Bool
	notify       Notifier
}

func NewProxyWorker(exec *media.Executor, lib *asset.Library, repo catalog.Repository, proxyDir string, height int, logger zerolog.Logger) *ProxyWorker {
	return &ProxyWorker{
		exec:         exec,
		lib:          lib,
		repo:         repo,
		dir:          proxyDir,
		height:       height,
		log:          logger.With().Str("component", "proxyworker").Logger(),
		pollInterval: 2 * time.Second,
	}
}

// SetNotifier registers the job update hook. Call before Start.
func (w *ProxyWorker) SetNotifier(fn Notifier) {
	w.notify = fn
}

// EnqueuePending queues a proxy job for every video asset still
// waiting on one and returns how many were queued.
func (w *ProxyWorker) EnqueuePending(ctx context.Context) int {
	queued := 0
	for _, a := range w.lib.List() {
		if a.Kind != asset.KindVideo || a.ProxyStatus != asset.ProxyPending {
			continue
		}
		if _, err := w.Enqueue(ctx, a.ID); err != nil {
			w.log.Warn().Err(err).Str("asset", a.ID).Msg("enqueue proxy job")
			continue
		}
		queued++
	}
	return queued
}

// Enqueue creates a pending proxy job for the asset. If one is
// already pending or running its id is returned instead.
func (w *ProxyWorker) Enqueue(ctx context.Context, assetID string) (string, error) {
	jobs, err := w.repo.ListJobs(ctx, 100)
	if err != nil {
		return "", fmt.Errorf("scan open jobs: %w", err)
	}
	for _, j := range jobs {
		if j.AssetID == assetID && j.Type == catalog.JobTypeProxy &&
			(j.Status == catalog.JobStatusPending || j.Status == catalog.JobStatusRunning) {
			return j.ID, nil
		}
	}

	now := time.Now().UTC()
	job := &catalog.Job{
		ID:        uuid.NewString(),
		Type:      catalog.JobTypeProxy,
		Status:    catalog.JobStatusPending,
		AssetID:   assetID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.repo.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create proxy job: %w", err)
	}
	w.log.Info().Str("job", job.ID).Str("asset", assetID).Msg("proxy job queued")
	return job.ID, nil
}

// Start polls for pending jobs until ctx is cancelled. One job runs
// at a time; an encode already in flight finishes its current ffmpeg
// call before cancellation is observed.
func (w *ProxyWorker) Start(ctx context.Context) {
	if w.running.Swap(true) {
		return
	}
	defer w.running.Store(false)

	w.log.Info().Str("dir", w.dir).Msg("proxy worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.processNext(ctx)

		select {
		case <-ctx.Done():
			w.log.Info().Msg("proxy worker stopping")
			return
		case <-ticker.C:
		}
	}
}

func (w *ProxyWorker) IsRunning() bool {
	return w.running.Load()
}

func (w *ProxyWorker) processNext(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	jobs, err := w.repo.ListPendingJobs(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending jobs")
		return
	}
	for _, j := range jobs {
		if j.Type != catalog.JobTypeProxy {
			continue
		}
		w.runJob(ctx, j)
		return
	}
}

func (w *ProxyWorker) runJob(ctx context.Context, job *catalog.Job) {
	a := w.lib.Get(job.AssetID)
	if a == nil {
		w.failJob(ctx, job, "asset not in library")
		return
	}

	if err := w.repo.UpdateJobStatus(ctx, job.ID, catalog.JobStatusRunning, ""); err != nil {
		w.log.Warn().Err(err).Str("job", job.ID).Msg("mark job running")
	}
	job.Status = catalog.JobStatusRunning
	w.emit(job)

	src, ok := asset.LocalPath(a.URI)
	if !ok {
		w.lib.SetProxyStatus(a.ID, asset.ProxyFailed, "")
		w.failJob(ctx, job, "source uri is not a local file")
		return
	}

	dst := filepath.Join(w.dir, media.ProxyFilename(a.ID))
	w.log.Info().Str("job", job.ID).Str("asset", a.ID).Str("dst", dst).Msg("generating proxy")

	lastPct := 0
	err := w.exec.GenerateProxy(ctx, src, dst, media.ProxyOptions{
		Height: w.height,
		ProgressHandler: func(p *media.Progress) {
			pct := progressPercent(p.Time, a.DurationSec)
			if pct <= lastPct {
				return
			}
			lastPct = pct
			if err := w.repo.UpdateJobProgress(ctx, job.ID, pct); err != nil {
				w.log.Warn().Err(err).Str("job", job.ID).Msg("persist job progress")
			}
			job.Progress = pct
			w.emit(job)
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown mid-encode. Leave the row running: boot
			// recovery fails it and the asset stays pending.
			return
		}
		w.log.Error().Err(err).Str("job", job.ID).Str("asset", a.ID).Msg("proxy generation failed")
		w.lib.SetProxyStatus(a.ID, asset.ProxyFailed, "")
		w.failJob(ctx, job, err.Error())
		return
	}

	if err := w.repo.UpdateJobProgress(ctx, job.ID, 100); err != nil {
		w.log.Warn().Err(err).Str("job", job.ID).Msg("persist job progress")
	}
	if err := w.repo.UpdateJobStatus(ctx, job.ID, catalog.JobStatusCompleted, ""); err != nil {
		w.log.Warn().Err(err).Str("job", job.ID).Msg("mark job completed")
	}
	job.Status = catalog.JobStatusCompleted
	job.Progress = 100
	w.emit(job)

	// The directory watcher flips the asset when the file lands; do
	// it here as well so readiness does not depend on the watcher.
	w.lib.SetProxyStatus(a.ID, asset.ProxyReady, dst)
	w.log.Info().Str("asset", a.ID).Str("proxy", dst).Msg("proxy ready")
}

func (w *ProxyWorker) failJob(ctx context.Context, job *catalog.Job, msg string) {
	if err := w.repo.UpdateJobStatus(ctx, job.ID, catalog.JobStatusFailed, msg); err != nil {
		w.log.Warn().Err(err).Str("job", job.ID).Msg("persist job failure")
	}
	job.Status = catalog.JobStatusFailed
	job.Error = msg
	w.emit(job)
}

func (w *ProxyWorker) emit(job *catalog.Job) {
	if w.notify == nil {
		return
	}
	cp := *job
	w.notify(&cp)
}

// progressPercent converts an ffmpeg clock like "00:01:23.45" into a
// percentage of the asset duration, capped at 99 until the encode
// actually finishes.
func progressPercent(clock string, durationSec float64) int {
	if durationSec <= 0 {
		return 0
	}
	var h, m int
	var s float64
	if _, err := fmt.Sscanf(clock, "%d:%d:%f", &h, &m, &s); err != nil {
		return 0
	}
	sec := float64(h*3600+m*60) + s
	pct := int(sec / durationSec * 100)
	if pct < 0 {
		pct = 0
	}
	if pct > 99 {
		pct = 99
	}
	return pct
}
