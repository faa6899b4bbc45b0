package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/reelkit/reelkit/internal/asset"
)

// Repository is the persistence surface for assets and media jobs.
type Repository interface {
	UpsertAsset(ctx context.Context, a *asset.Asset) error
	GetAsset(ctx context.Context, id string) (*asset.Asset, error)
	ListAssets(ctx context.Context) ([]*asset.Asset, error)
	DeleteAsset(ctx context.Context, id string) error
	UpdateProxyStatus(ctx context.Context, id string, status asset.ProxyStatus, proxyURI string) error

	CreateJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const assetColumns = `id, kind, name, uri, proxy_uri, proxy_status, duration_sec,
	width, height, fps, video_codec, has_audio, hash, file_size, imported_at`

func (r *SQLiteRepository) UpsertAsset(ctx context.Context, a *asset.Asset) error {
	var width, height sql.NullInt64
	var fps sql.NullFloat64
	var codec sql.NullString
	hasAudio := 0
	if a.Video != nil {
		width = sql.NullInt64{Int64: int64(a.Video.Width), Valid: true}
		height = sql.NullInt64{Int64: int64(a.Video.Height), Valid: true}
		fps = sql.NullFloat64{Float64: a.Video.FPS, Valid: true}
		codec = nullString(a.Video.Codec)
		hasAudio = boolToInt(a.Video.HasAudio)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			uri = excluded.uri,
			proxy_uri = excluded.proxy_uri,
			proxy_status = excluded.proxy_status,
			duration_sec = excluded.duration_sec,
			width = excluded.width,
			height = excluded.height,
			fps = excluded.fps,
			video_codec = excluded.video_codec,
			has_audio = excluded.has_audio,
			hash = excluded.hash,
			file_size = excluded.file_size
	`, a.ID, string(a.Kind), a.Name, a.URI, nullString(a.ProxyURI), string(a.ProxyStatus),
		a.DurationSec, width, height, fps, codec, hasAudio, nullString(a.Hash),
		a.FileSize, a.ImportedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetAsset(ctx context.Context, id string) (*asset.Asset, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+assetColumns+` FROM assets WHERE id = ?
	`, id)
	return scanAsset(row)
}

func (r *SQLiteRepository) ListAssets(ctx context.Context) ([]*asset.Asset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+assetColumns+` FROM assets ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*asset.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *SQLiteRepository) DeleteAsset(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) UpdateProxyStatus(ctx context.Context, id string, status asset.ProxyStatus, proxyURI string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE assets SET proxy_status = ?, proxy_uri = ? WHERE id = ?
	`, string(status), nullString(proxyURI), id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*asset.Asset, error) {
	var a asset.Asset
	var kind, status, importedAt string
	var proxyURI, codec, hash sql.NullString
	var width, height sql.NullInt64
	var fps sql.NullFloat64
	var hasAudio int

	err := row.Scan(&a.ID, &kind, &a.Name, &a.URI, &proxyURI, &status, &a.DurationSec,
		&width, &height, &fps, &codec, &hasAudio, &hash, &a.FileSize, &importedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a.Kind = asset.Kind(kind)
	a.ProxyStatus = asset.ProxyStatus(status)
	a.ProxyURI = proxyURI.String
	a.Hash = hash.String
	a.ImportedAt, _ = time.Parse(time.RFC3339, importedAt)

	if width.Valid || height.Valid || fps.Valid {
		a.Video = &asset.VideoInfo{
			Width:    int(width.Int64),
			Height:   int(height.Int64),
			FPS:      fps.Float64,
			Codec:    codec.String,
			HasAudio: hasAudio == 1,
		}
	}
	return &a, nil
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, asset_id, progress, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.AssetID), j.Progress, nullString(j.Error),
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, status, asset_id, progress, error, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)

	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, asset_id, progress, error, created_at, updated_at
		FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, asset_id, progress, error, created_at, updated_at
		FROM jobs WHERE status = 'pending' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var assetID, errMsg sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&j.ID, &j.Type, &j.Status, &assetID, &j.Progress, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.AssetID = assetID.String
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = datetime('now') WHERE id = ?
	`, progress, id)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
