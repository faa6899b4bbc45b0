package asset

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindVideo    Kind = "video"
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindGraphics Kind = "graphics"
)

// ProxyStatus tracks the preview proxy lifecycle for one asset.
type ProxyStatus string

const (
	ProxyNotNeeded ProxyStatus = "notNeeded"
	ProxyPending   ProxyStatus = "pending"
	ProxyReady     ProxyStatus = "ready"
	ProxyFailed    ProxyStatus = "failed"
)

// VideoInfo holds the probed stream parameters of a video asset.
type VideoInfo struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Codec    string  `json:"codec,omitempty"`
	HasAudio bool    `json:"hasAudio"`
}

// Asset is one imported piece of media. URI points at the original
// file; ProxyURI, once the proxy is ready, at the preview-friendly
// transcode.
type Asset struct {
	ID          string      `json:"id"`
	Kind        Kind        `json:"kind"`
	Name        string      `json:"name"`
	URI         string      `json:"uri"`
	ProxyURI    string      `json:"proxyUri,omitempty"`
	ProxyStatus ProxyStatus `json:"proxyStatus"`
	DurationSec float64     `json:"durationSec"`
	Video       *VideoInfo  `json:"video,omitempty"`
	Hash        string      `json:"hash,omitempty"`
	FileSize    int64       `json:"fileSize,omitempty"`
	ImportedAt  time.Time   `json:"importedAt"`
}

// New creates an asset for a media file. Video assets start with a
// pending proxy; images and audio never get one.
func New(kind Kind, name, uri string) *Asset {
	status := ProxyNotNeeded
	if kind == KindVideo {
		status = ProxyPending
	}
	return &Asset{
		ID:          uuid.NewString(),
		Kind:        kind,
		Name:        name,
		URI:         uri,
		ProxyStatus: status,
		ImportedAt:  time.Now().UTC(),
	}
}

// HasProxy reports whether a ready proxy exists for this asset.
func (a *Asset) HasProxy() bool {
	return a.ProxyStatus == ProxyReady && a.ProxyURI != ""
}

// PreviewURI returns the path decoders should read: the proxy when
// ready, the original otherwise.
func (a *Asset) PreviewURI() string {
	if a.HasProxy() {
		return a.ProxyURI
	}
	return a.URI
}

// LocalPath resolves uri to a filesystem path. Plain paths pass
// through and file:// URIs are unwrapped. Any other scheme has no
// local file behind it, so decoding and serving skip the asset.
func LocalPath(uri string) (string, bool) {
	if uri == "" {
		return "", false
	}
	if rest, ok := strings.CutPrefix(uri, "file://"); ok {
		return rest, rest != ""
	}
	if strings.Contains(uri, "://") {
		return "", false
	}
	return uri, true
}

// PreviewPath resolves PreviewURI to a local file for decoders.
func (a *Asset) PreviewPath() (string, bool) {
	return LocalPath(a.PreviewURI())
}

var extKinds = map[string]Kind{
	".mp4":  KindVideo,
	".mov":  KindVideo,
	".mkv":  KindVideo,
	".webm": KindVideo,
	".avi":  KindVideo,
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".gif":  KindImage,
	".webp": KindImage,
	".mp3":  KindAudio,
	".wav":  KindAudio,
	".aac":  KindAudio,
	".flac": KindAudio,
	".ogg":  KindAudio,
}

// KindForPath guesses the asset kind from the file extension,
// defaulting to video for anything unknown.
func KindForPath(path string) Kind {
	if k, ok := extKinds[strings.ToLower(filepath.Ext(path))]; ok {
		return k
	}
	return KindVideo
}
