package server

import (
	"github.com/reelkit/reelkit/internal/asset"
	"github.com/reelkit/reelkit/internal/catalog"
	"github.com/reelkit/reelkit/internal/playback"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptimeS"`
}

type StatusResponse struct {
	Sequence     SequenceSummary   `json:"sequence"`
	Playback     playback.Snapshot `json:"playback"`
	Strategy     string            `json:"strategy"`
	AssetCount   int               `json:"assetCount"`
	ProxiesReady int               `json:"proxiesReady"`
	JobsRunning  int               `json:"jobsRunning"`
	LastError    string            `json:"lastError,omitempty"`
	EventClients int               `json:"eventClients"`
}

type SequenceSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	DurationSec float64 `json:"durationSec"`
	Tracks      int     `json:"tracks"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
}

type AssetsResponse struct {
	Assets []*asset.Asset `json:"assets"`
}

type JobsResponse struct {
	Jobs []*catalog.Job `json:"jobs"`
}

type SeekRequest struct {
	TimeSec  *float64 `json:"timeSec,omitempty"`
	Fraction *float64 `json:"fraction,omitempty"`
	Frames   *int     `json:"frames,omitempty"`
}

type RateRequest struct {
	Rate float64 `json:"rate"`
}

type VolumeRequest struct {
	Volume *float64 `json:"volume,omitempty"`
	Muted  *bool    `json:"muted,omitempty"`
}

type ProxyEventPayload struct {
	AssetID string `json:"assetId"`
	Status  string `json:"status"`
}

type JobProgressPayload struct {
	JobID    string `json:"jobId"`
	AssetID  string `json:"assetId"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
}

type StrategyEventPayload struct {
	Strategy string `json:"strategy"`
}
