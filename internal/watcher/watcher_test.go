package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelkit/reelkit/internal/asset"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func startWatcher(t *testing.T, lib *asset.Library) (string, *Watcher) {
	t.Helper()
	dir := t.TempDir()

	w, err := New(dir, lib, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w.Start(ctx)
	return dir, w
}

func TestProxyCreateMarksReady(t *testing.T) {
	lib := asset.NewLibrary()
	a := asset.New(asset.KindVideo, "clip.mp4", "/media/clip.mp4")
	lib.Put(a)

	dir, w := startWatcher(t, lib)

	var mu sync.Mutex
	var events []ProxyEvent
	w.OnEvent(func(ev ProxyEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	proxyPath := filepath.Join(dir, a.ID+".mp4")
	if err := os.WriteFile(proxyPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		got := lib.Get(a.ID)
		return got != nil && got.HasProxy()
	}, "asset never marked proxy-ready")

	if got := lib.Get(a.ID); got.ProxyURI != proxyPath {
		t.Errorf("ProxyURI = %s, want %s", got.ProxyURI, proxyPath)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) == 0 || events[0].Status != asset.ProxyReady || events[0].AssetID != a.ID {
		t.Errorf("events = %+v", events)
	}
}

func TestProxyRemoveDropsToPending(t *testing.T) {
	lib := asset.NewLibrary()
	a := asset.New(asset.KindVideo, "clip.mp4", "/media/clip.mp4")
	lib.Put(a)

	dir, _ := startWatcher(t, lib)

	proxyPath := filepath.Join(dir, a.ID+".mp4")
	if err := os.WriteFile(proxyPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		got := lib.Get(a.ID)
		return got != nil && got.HasProxy()
	}, "asset never marked proxy-ready")

	if err := os.Remove(proxyPath); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		return lib.Get(a.ID).ProxyStatus == asset.ProxyPending
	}, "asset never dropped back to pending")
}

func TestPartialFilesIgnored(t *testing.T) {
	lib := asset.NewLibrary()
	a := asset.New(asset.KindVideo, "clip.mp4", "/media/clip.mp4")
	lib.Put(a)

	dir, _ := startWatcher(t, lib)

	partial := filepath.Join(dir, a.ID+".mp4.partial")
	if err := os.WriteFile(partial, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Give the watcher a beat, then confirm nothing changed
	time.Sleep(150 * time.Millisecond)
	if lib.Get(a.ID).HasProxy() {
		t.Error("partial file marked the proxy ready")
	}
}

func TestUnknownAssetIgnored(t *testing.T) {
	lib := asset.NewLibrary()
	dir, w := startWatcher(t, lib)

	var fired atomic.Bool
	w.OnEvent(func(ProxyEvent) { fired.Store(true) })

	if err := os.WriteFile(filepath.Join(dir, "stranger.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(150 * time.Millisecond)
	if fired.Load() {
		t.Error("event fired for an asset the library does not know")
	}
}

func TestPartialRenameLandsProxy(t *testing.T) {
	lib := asset.NewLibrary()
	a := asset.New(asset.KindVideo, "clip.mp4", "/media/clip.mp4")
	lib.Put(a)

	dir, _ := startWatcher(t, lib)

	partial := filepath.Join(dir, a.ID+".mp4.partial")
	final := filepath.Join(dir, a.ID+".mp4")
	if err := os.WriteFile(partial, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(partial, final); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		got := lib.Get(a.ID)
		return got != nil && got.HasProxy()
	}, "renamed proxy never marked ready")
}
