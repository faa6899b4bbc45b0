package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/reelkit/reelkit/internal/asset"
	"github.com/reelkit/reelkit/internal/catalog"
)

// ProxyEvent describes a proxy appearing in or vanishing from the
// proxy directory.
type ProxyEvent struct {
	AssetID string            `json:"assetId"`
	Path    string            `json:"path,omitempty"`
	Status  asset.ProxyStatus `json:"status"`
}

// Watcher monitors the proxy directory and flips asset proxy state
// as transcodes land. Proxies are written to a .partial file and
// renamed into place, so a create event always refers to a complete
// file. Deleting a proxy drops the asset back to pending and the
// preview falls back to the original media.
type Watcher struct {
	dir     string
	lib     *asset.Library
	repo    catalog.Repository
	log     zerolog.Logger
	fsw     *fsnotify.Watcher
	started bool
	done    chan struct{}

	mu      sync.Mutex
	onEvent []func(ProxyEvent)
}

func New(dir string, lib *asset.Library, repo catalog.Repository, logger zerolog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		dir:  dir,
		lib:  lib,
		repo: repo,
		log:  logger,
		fsw:  fsw,
		done: make(chan struct{}),
	}, nil
}

// OnEvent registers a callback invoked on the watcher goroutine for
// every proxy state change.
func (w *Watcher) OnEvent(fn func(ProxyEvent)) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.onEvent = append(w.onEvent, fn)
	w.mu.Unlock()
}

// Start launches the event loop. It runs until ctx is cancelled or
// the watcher is closed.
func (w *Watcher) Start(ctx context.Context) {
	w.started = true
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				w.handle(ctx, ev)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.log.Warn().Err(err).Msg("proxy watcher error")
			}
		}
	}()
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if filepath.Ext(ev.Name) != ".mp4" {
		return
	}
	id := strings.TrimSuffix(filepath.Base(ev.Name), ".mp4")

	switch {
	case ev.Op.Has(fsnotify.Create):
		w.setStatus(ctx, id, asset.ProxyReady, ev.Name)
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.setStatus(ctx, id, asset.ProxyPending, "")
	}
}

func (w *Watcher) setStatus(ctx context.Context, id string, status asset.ProxyStatus, path string) {
	updated := w.lib.SetProxyStatus(id, status, path)
	if updated == nil {
		w.log.Debug().Str("asset", id).Msg("proxy file for unknown asset")
		return
	}

	w.log.Info().Str("asset", id).Str("status", string(status)).Msg("proxy state changed")

	if w.repo != nil {
		if err := w.repo.UpdateProxyStatus(ctx, id, status, path); err != nil {
			w.log.Warn().Err(err).Str("asset", id).Msg("persist proxy status")
		}
	}

	w.mu.Lock()
	fns := w.onEvent
	w.mu.Unlock()
	for _, fn := range fns {
		fn(ProxyEvent{AssetID: id, Path: path, Status: status})
	}
}

// Close stops the underlying fs watcher and waits for the loop to
// drain.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	if w.started {
		<-w.done
	}
	return err
}
