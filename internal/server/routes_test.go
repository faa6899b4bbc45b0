package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/reelkit/reelkit/internal/asset"
	"github.com/reelkit/reelkit/internal/catalog"
	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/frame"
	"github.com/reelkit/reelkit/internal/playback"
	"github.com/reelkit/reelkit/internal/preview"
	"github.com/reelkit/reelkit/internal/timeline"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// grayExtractor satisfies frame requests with an opaque gray image.
type grayExtractor struct{}

func (grayExtractor) ExtractFrame(_ context.Context, _ string, _ float64, width, height int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 128
		img.Pix[i+1] = 128
		img.Pix[i+2] = 128
		img.Pix[i+3] = 255
	}
	return img, nil
}

func titleSequence() *timeline.Sequence {
	seq := timeline.NewSequence("intro", timeline.FormatPreset(timeline.PresetYouTube1080))
	track := timeline.NewTrack(timeline.TrackVideo, "Main")
	clip := timeline.NewClip("", timeline.ClipRange{}, timeline.ClipPlace{TimelineInSec: 0, DurationSec: 10})
	clip.Kind = timeline.ClipText
	clip.Text = &timeline.TextData{Content: "INTRO", Color: "#ffffff", SizeFrac: 0.2}
	track.Clips = append(track.Clips, clip)
	seq.Tracks = []timeline.Track{track}
	return seq
}

func testEngineConfig() *config.Config {
	return &config.Config{
		Port:   7878,
		FFmpeg: config.FFmpegConfig{ProxyHeight: 360},
		Preview: config.PreviewConfig{
			CacheMaxBytes:    4 << 20,
			PrefetchSec:      2,
			PrefetchMinStep:  0.25,
			TightToleranceMs: 1000.0 / 60.0,
			LooseToleranceMs: 100,
		},
	}
}

func testPlayer(t *testing.T, lib *asset.Library) *preview.Player {
	t.Helper()
	svc := frame.NewService(grayExtractor{}, frame.ServiceConfig{
		Width:         64,
		Height:        36,
		FPS:           30,
		CacheMaxBytes: 4 << 20,
	})
	t.Cleanup(svc.Close)

	p := preview.NewPlayer(preview.Options{
		Frames:   svc,
		Library:  lib,
		Sequence: titleSequence(),
		Config:   testEngineConfig(),
		Logger:   testLogger(),
	})
	t.Cleanup(p.Stop)
	return p
}

// testRouter builds a router over a headless player and an empty
// library. mutate tweaks the config before routes are bound.
func testRouter(t *testing.T, mutate func(*Config)) (http.Handler, Config) {
	t.Helper()
	lib := asset.NewLibrary()
	cfg := Config{
		Port:      7878,
		Player:    testPlayer(t, lib),
		Library:   lib,
		Hub:       NewHub(testLogger()),
		Logger:    testLogger(),
		StartTime: time.Now(),
	}
	t.Cleanup(cfg.Hub.Close)
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRouter(cfg), cfg
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) playback.Snapshot {
	t.Helper()
	var snap playback.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := testRouter(t, nil)

	rec := doJSON(t, router, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", rec.Code)
	}

	var body HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.Version == "" {
		t.Error("version missing from health response")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestStatusEndpoint(t *testing.T) {
	router, cfg := testRouter(t, nil)

	ready := asset.New(asset.KindVideo, "a.mp4", "/media/a.mp4")
	cfg.Library.Put(ready)
	cfg.Library.SetProxyStatus(ready.ID, asset.ProxyReady, "/proxies/a.mp4")
	cfg.Library.Put(asset.New(asset.KindVideo, "b.mp4", "/media/b.mp4"))

	rec := doJSON(t, router, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", rec.Code)
	}

	var body StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if body.Sequence.DurationSec != 10 {
		t.Errorf("sequence duration = %v, want 10", body.Sequence.DurationSec)
	}
	if body.Sequence.Width != 1920 || body.Sequence.Height != 1080 {
		t.Errorf("sequence canvas = %dx%d, want 1920x1080", body.Sequence.Width, body.Sequence.Height)
	}
	if body.AssetCount != 2 {
		t.Errorf("assetCount = %d, want 2", body.AssetCount)
	}
	if body.ProxiesReady != 1 {
		t.Errorf("proxiesReady = %d, want 1", body.ProxiesReady)
	}
	if body.Strategy != string(preview.StrategyExtraction) {
		t.Errorf("strategy = %q, want extraction", body.Strategy)
	}
	if body.Playback.Playing || body.Playback.Rate != 1 {
		t.Errorf("unexpected initial transport: %+v", body.Playback)
	}
}

func TestPlaybackTransportEndpoints(t *testing.T) {
	router, cfg := testRouter(t, nil)

	rec := doJSON(t, router, http.MethodPost, "/playback/play", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /playback/play = %d, want 200", rec.Code)
	}
	if snap := decodeSnapshot(t, rec); !snap.Playing {
		t.Error("play should start the transport")
	}

	rec = doJSON(t, router, http.MethodPost, "/playback/pause", "")
	if snap := decodeSnapshot(t, rec); snap.Playing {
		t.Error("pause should stop the transport")
	}

	rec = doJSON(t, router, http.MethodPost, "/playback/toggle", "")
	if snap := decodeSnapshot(t, rec); !snap.Playing {
		t.Error("toggle from paused should start the transport")
	}

	if !cfg.Player.State().Playing() {
		t.Error("player state out of sync with responses")
	}
}

func TestSeekEndpoint(t *testing.T) {
	router, _ := testRouter(t, nil)

	rec := doJSON(t, router, http.MethodPost, "/playback/seek", `{"timeSec": 4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("seek timeSec = %d, want 200", rec.Code)
	}
	if snap := decodeSnapshot(t, rec); snap.CurrentTime != 4 {
		t.Errorf("currentTime = %v, want 4", snap.CurrentTime)
	}

	rec = doJSON(t, router, http.MethodPost, "/playback/seek", `{"fraction": 0.5}`)
	if snap := decodeSnapshot(t, rec); snap.CurrentTime != 5 {
		t.Errorf("currentTime = %v, want 5 for fraction 0.5", snap.CurrentTime)
	}

	rec = doJSON(t, router, http.MethodPost, "/playback/seek", `{"frames": 3}`)
	snap := decodeSnapshot(t, rec)
	if want := 5 + 3.0/30.0; math.Abs(snap.CurrentTime-want) > 1e-9 {
		t.Errorf("currentTime = %v, want %v after stepping 3 frames", snap.CurrentTime, want)
	}

	rec = doJSON(t, router, http.MethodPost, "/playback/seek", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty seek = %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/playback/seek", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed seek = %d, want 400", rec.Code)
	}
}

func TestRateAndVolumeEndpoints(t *testing.T) {
	router, _ := testRouter(t, nil)

	rec := doJSON(t, router, http.MethodPost, "/playback/rate", `{"rate": 1.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /playback/rate = %d, want 200", rec.Code)
	}
	if snap := decodeSnapshot(t, rec); snap.Rate != 1.5 {
		t.Errorf("rate = %v, want 1.5", snap.Rate)
	}

	rec = doJSON(t, router, http.MethodPost, "/playback/rate", `{"rate": -2}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative rate = %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/playback/volume", `{"volume": 0.4, "muted": true}`)
	snap := decodeSnapshot(t, rec)
	if snap.Volume != 0.4 {
		t.Errorf("volume = %v, want 0.4", snap.Volume)
	}
	if !snap.Muted {
		t.Error("muted flag not applied")
	}
}

func TestPreviewFrameEndpoint(t *testing.T) {
	router, _ := testRouter(t, nil)

	rec := doJSON(t, router, http.MethodGet, "/preview/frame", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /preview/frame = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	conf, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("response is not a png: %v", err)
	}
	if conf.Width != 640 || conf.Height != 360 {
		t.Errorf("frame = %dx%d, want 640x360", conf.Width, conf.Height)
	}

	rec = doJSON(t, router, http.MethodGet, "/preview/frame?t=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /preview/frame?t=3 = %d, want 200", rec.Code)
	}
	if _, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Fatalf("timed frame is not a png: %v", err)
	}

	rec = doJSON(t, router, http.MethodGet, "/preview/frame?t=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid t = %d, want 400", rec.Code)
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	router, _ := testRouter(t, nil)

	rec := doJSON(t, router, http.MethodGet, "/cache/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /cache/stats = %d, want 200", rec.Code)
	}
	var stats frame.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Entries < 0 || stats.Bytes < 0 {
		t.Errorf("nonsense stats: %+v", stats)
	}
}

func TestMediaEndpoint(t *testing.T) {
	dir := t.TempDir()
	origPath := filepath.Join(dir, "clip.mp4")
	proxyPath := filepath.Join(dir, "clip_proxy.mp4")
	if err := os.WriteFile(origPath, []byte("original-bytes!!"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(proxyPath, []byte("0123456789abcdef"), 0o644); err != nil {
		t.Fatal(err)
	}

	router, cfg := testRouter(t, nil)
	a := asset.New(asset.KindVideo, "clip.mp4", origPath)
	cfg.Library.Put(a)
	cfg.Library.SetProxyStatus(a.ID, asset.ProxyReady, proxyPath)

	rec := doJSON(t, router, http.MethodGet, "/media/"+a.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /media = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "0123456789abcdef" {
		t.Errorf("body = %q, want the proxy bytes", got)
	}
	if rec.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("Accept-Ranges header missing")
	}

	rec = doJSON(t, router, http.MethodGet, "/media/"+a.ID+"?original=1", "")
	if got := rec.Body.String(); got != "original-bytes!!" {
		t.Errorf("body = %q, want the original bytes", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/media/"+a.ID, nil)
	req.Header.Set("Range", "bytes=2-5")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusPartialContent {
		t.Fatalf("range request = %d, want 206", rr.Code)
	}
	if got := rr.Body.String(); got != "2345" {
		t.Errorf("range body = %q, want 2345", got)
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes 2-5/16" {
		t.Errorf("Content-Range = %q, want bytes 2-5/16", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/media/"+a.ID, nil)
	req.Header.Set("Range", "bytes=99-")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("out of range request = %d, want 416", rr.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/media/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown asset = %d, want 404", rec.Code)
	}
	var er ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&er); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if er.Code != "NOT_FOUND" {
		t.Errorf("error code = %q, want NOT_FOUND", er.Code)
	}
}

func TestThumbEndpoint(t *testing.T) {
	a := asset.New(asset.KindVideo, "clip.mp4", "/media/clip.mp4")
	dir := t.TempDir()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, a.ID+".png"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	router, _ := testRouter(t, func(c *Config) {
		c.Library.Put(a)
		c.ThumbDir = dir
	})

	rec := doJSON(t, router, http.MethodGet, "/assets/"+a.ID+"/thumb", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET thumb = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %s, want image/png", ct)
	}

	rec = doJSON(t, router, http.MethodGet, "/assets/ghost/thumb", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown asset thumb = %d, want 404", rec.Code)
	}

	b := asset.New(asset.KindVideo, "other.mp4", "/media/other.mp4")
	router2, _ := testRouter(t, func(c *Config) {
		c.Library.Put(b)
		c.ThumbDir = dir
	})
	rec = doJSON(t, router2, http.MethodGet, "/assets/"+b.ID+"/thumb", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("ungenerated thumb = %d, want 404", rec.Code)
	}
}

func TestJobsEndpoints(t *testing.T) {
	db, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"), testLogger())
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := catalog.NewRepository(db.Conn())

	ctx := context.Background()
	now := time.Now().UTC()
	running := &catalog.Job{ID: "job-run", Type: catalog.JobTypeProxy, Status: catalog.JobStatusRunning, AssetID: "a1", Progress: 40, CreatedAt: now, UpdatedAt: now}
	failed := &catalog.Job{ID: "job-fail", Type: catalog.JobTypeProxy, Status: catalog.JobStatusFailed, AssetID: "a2", Error: "ffmpeg exited with code 1", CreatedAt: now.Add(-time.Minute), UpdatedAt: now}
	if err := repo.CreateJob(ctx, running); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateJob(ctx, failed); err != nil {
		t.Fatal(err)
	}

	router, _ := testRouter(t, func(c *Config) { c.Repository = repo })

	rec := doJSON(t, router, http.MethodGet, "/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /jobs = %d, want 200", rec.Code)
	}
	var list JobsResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(list.Jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(list.Jobs))
	}

	rec = doJSON(t, router, http.MethodGet, "/jobs/job-run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /jobs/job-run = %d, want 200", rec.Code)
	}
	var job catalog.Job
	if err := json.NewDecoder(rec.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Progress != 40 {
		t.Errorf("progress = %d, want 40", job.Progress)
	}

	rec = doJSON(t, router, http.MethodGet, "/jobs/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job = %d, want 404", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/status", "")
	var status StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.JobsRunning != 1 {
		t.Errorf("jobsRunning = %d, want 1", status.JobsRunning)
	}
	if status.LastError == "" {
		t.Error("lastError should surface the failed job")
	}
}

func TestEventsEndpointStreamsBroadcasts(t *testing.T) {
	router, cfg := testRouter(t, nil)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial events socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cfg.Hub.ClientCount() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if cfg.Hub.ClientCount() != 1 {
		t.Fatal("client never registered with the hub")
	}

	cfg.Hub.Broadcast(Event{
		Type: EventProxyReady,
		Data: ProxyEventPayload{AssetID: "a1", Status: string(asset.ProxyReady)},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}

	var ev struct {
		Type string `json:"type"`
		Data struct {
			AssetID string `json:"assetId"`
			Status  string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode broadcast %q: %v", msg, err)
	}
	if ev.Type != EventProxyReady {
		t.Errorf("event type = %q, want %q", ev.Type, EventProxyReady)
	}
	if ev.Data.AssetID != "a1" || ev.Data.Status != "ready" {
		t.Errorf("payload = %+v, want asset a1 ready", ev.Data)
	}
}
