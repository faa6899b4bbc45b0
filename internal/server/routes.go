package server

import (
	"encoding/json"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reelkit/reelkit/internal/asset"
	"github.com/reelkit/reelkit/internal/catalog"
	"github.com/reelkit/reelkit/internal/config"
)

func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/status", statusHandler(cfg))
	r.Get("/sequence", sequenceHandler(cfg))
	r.Get("/assets", assetsHandler(cfg))
	r.Get("/assets/{assetID}/thumb", thumbHandler(cfg))
	r.Get("/jobs", listJobsHandler(cfg))
	r.Get("/jobs/{id}", getJobHandler(cfg))

	r.Post("/playback/play", playHandler(cfg))
	r.Post("/playback/pause", pauseHandler(cfg))
	r.Post("/playback/toggle", toggleHandler(cfg))
	r.Post("/playback/seek", seekHandler(cfg))
	r.Post("/playback/rate", rateHandler(cfg))
	r.Post("/playback/volume", volumeHandler(cfg))

	r.Get("/preview/frame", previewFrameHandler(cfg))
	r.Get("/cache/stats", cacheStatsHandler(cfg))
	r.Get("/media/{assetID}", mediaHandler(cfg))

	if cfg.Hub != nil {
		r.Get("/events", cfg.Hub.ServeHTTP)
	}

	return r
}

func healthHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func statusHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seq := cfg.Player.Sequence()
		snap := cfg.Player.State().Snapshot()

		proxiesReady := 0
		assets := cfg.Library.List()
		for _, a := range assets {
			if a.HasProxy() {
				proxiesReady++
			}
		}

		jobsRunning := 0
		lastError := ""
		if cfg.Repository != nil {
			jobs, err := cfg.Repository.ListJobs(r.Context(), 20)
			if err == nil {
				for _, j := range jobs {
					if j.Status == catalog.JobStatusRunning {
						jobsRunning++
					}
					if j.Status == catalog.JobStatusFailed && lastError == "" {
						lastError = j.Error
					}
				}
			}
		}

		eventClients := 0
		if cfg.Hub != nil {
			eventClients = cfg.Hub.ClientCount()
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			Sequence: SequenceSummary{
				ID:          seq.ID,
				Name:        seq.Name,
				DurationSec: seq.Duration(),
				Tracks:      len(seq.Tracks),
				Width:       seq.Format.Canvas.Width,
				Height:      seq.Format.Canvas.Height,
				FPS:         seq.Format.FPS.FPS(),
			},
			Playback:     snap,
			Strategy:     string(cfg.Player.Strategy()),
			AssetCount:   len(assets),
			ProxiesReady: proxiesReady,
			JobsRunning:  jobsRunning,
			LastError:    lastError,
			EventClients: eventClients,
		})
	}
}

func sequenceHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Player.Sequence())
	}
}

func assetsHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, AssetsResponse{Assets: cfg.Library.List()})
	}
}

func thumbHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assetID")
		// Asset ids come from project files, so they are not trusted
		// as path material
		if id == "" || filepath.Base(id) != id || cfg.Library.Get(id) == nil {
			WriteError(w, http.StatusNotFound, "asset not found", "NOT_FOUND")
			return
		}
		path := filepath.Join(cfg.ThumbDir, id+".png")
		if _, err := os.Stat(path); err != nil {
			WriteError(w, http.StatusNotFound, "thumbnail not generated", "NOT_FOUND")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		http.ServeFile(w, r, path)
	}
}

func listJobsHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Repository == nil {
			WriteJSON(w, http.StatusOK, JobsResponse{Jobs: []*catalog.Job{}})
			return
		}
		jobs, err := cfg.Repository.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, JobsResponse{Jobs: jobs})
	}
}

func getJobHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if cfg.Repository == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, job)
	}
}

func playHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Player.Clock().Play()
		WriteJSON(w, http.StatusOK, cfg.Player.State().Snapshot())
	}
}

func pauseHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Player.Clock().Pause()
		WriteJSON(w, http.StatusOK, cfg.Player.State().Snapshot())
	}
}

func toggleHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Player.Clock().Toggle()
		WriteJSON(w, http.StatusOK, cfg.Player.State().Snapshot())
	}
}

func seekHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SeekRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		switch {
		case req.TimeSec != nil:
			cfg.Player.Controller().HardSeek(*req.TimeSec)
		case req.Fraction != nil:
			cfg.Player.Controller().SeekFraction(*req.Fraction)
		case req.Frames != nil:
			cfg.Player.Controller().StepFrames(*req.Frames)
		default:
			WriteError(w, http.StatusBadRequest, "timeSec, fraction or frames required", "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusOK, cfg.Player.State().Snapshot())
	}
}

func rateHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Rate <= 0 {
			WriteError(w, http.StatusBadRequest, "rate must be positive", "BAD_REQUEST")
			return
		}
		cfg.Player.State().SetRate(req.Rate)
		WriteJSON(w, http.StatusOK, cfg.Player.State().Snapshot())
	}
}

func volumeHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VolumeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Volume != nil {
			cfg.Player.State().SetVolume(*req.Volume)
		}
		if req.Muted != nil {
			cfg.Player.State().SetMuted(*req.Muted)
		}
		WriteJSON(w, http.StatusOK, cfg.Player.State().Snapshot())
	}
}

// previewFrameHandler returns the composited frame as png. Without a
// t parameter it serves the player's current frame; with one it
// composes on demand, which may come back partially filled until the
// extraction cache warms up.
func previewFrameHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img := cfg.Player.FrameSnapshot()

		if raw := r.URL.Query().Get("t"); raw != "" {
			t, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "invalid time", "BAD_REQUEST")
				return
			}
			img = cfg.Player.ComposeAt(t)
		}

		if img == nil {
			img = cfg.Player.ComposeAt(cfg.Player.State().CurrentTime())
		}
		if img == nil {
			WriteError(w, http.StatusServiceUnavailable, "no frame available", "NO_FRAME")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := png.Encode(w, img); err != nil {
			cfg.Logger.Warn().Err(err).Msg("encode preview frame")
		}
	}
}

func cacheStatsHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Player.CacheStats())
	}
}

func mediaHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assetID")
		a := cfg.Library.Get(id)
		if a == nil {
			WriteError(w, http.StatusNotFound, "asset not found", "NOT_FOUND")
			return
		}

		uri := a.PreviewURI()
		if r.URL.Query().Get("original") == "1" {
			uri = a.URI
		}
		path, ok := asset.LocalPath(uri)
		if !ok {
			WriteError(w, http.StatusNotFound, "asset has no local file", "NOT_FOUND")
			return
		}

		if err := ServeMediaFile(w, r, path); err != nil {
			cfg.Logger.Error().Err(err).Str("assetId", id).Msg("media serve failed")
		}
	}
}
