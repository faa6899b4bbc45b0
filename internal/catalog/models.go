package catalog

import (
	"time"
)

const (
	JobTypeProxy     = "proxy"
	JobTypeThumbnail = "thumbnail"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job tracks one background media task, proxy transcodes mostly, so
// progress survives restarts and shows up in the status API.
type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	AssetID   string    `json:"assetId,omitempty"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
