// CLAUDE:SUMMARY Content-addressable media cache: sqlite index over sha256-named payload files.
// Package mediacache stores downloaded ad media (images and videos) together
// with the analysis results attached to them.
//
// The index lives in SQLite; payloads live on disk under sha256-derived
// names, so two URLs serving identical bytes share one payload file while
// keeping separate entries. Separating Put (raw bytes, always available)
// from AttachAnalysis (best-effort, quota-gated) lets the pipeline keep an
// asset cached even when the analysis call fails, avoiding repeat downloads
// on retry.
package mediacache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cache is the media cache handle.
type Cache struct {
	db     *sql.DB
	dir    string
	logger *slog.Logger
	now    func() time.Time // injectable clock for cleanup tests
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the clock used for entry timestamps (tests only).
func WithClock(fn func() time.Time) Option {
	return func(c *Cache) { c.now = fn }
}

// New creates a Cache over an opened database and a payload directory.
// The schema is applied and the directory created if missing.
func New(db *sql.DB, dir string, logger *slog.Logger, opts ...Option) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ApplySchema(db); err != nil {
		return nil, fmt.Errorf("mediacache: apply schema: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mediacache: mkdir %s: %w", dir, err)
	}
	c := &Cache{db: db, dir: dir, logger: logger, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Get returns the entry for a trimmed URL, or nil when absent.
func (c *Cache) Get(ctx context.Context, url string) (*Entry, error) {
	url = strings.TrimSpace(url)
	row := c.db.QueryRowContext(ctx, `
		SELECT url, file_path, content_type, media_type, brand_name, ad_id,
		       size_bytes, analysis_json, created_at
		FROM media_entries WHERE url = ?`, url)
	return scanEntry(row)
}

// Put stores media bytes under a URL key. Idempotent: when an entry for the
// URL already exists it is returned unchanged and nothing is written.
func (c *Cache) Put(ctx context.Context, url string, data []byte, contentType string, meta Meta) (*Entry, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("mediacache: empty URL key")
	}

	if existing, err := c.Get(ctx, url); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	mediaType := meta.MediaType
	if mediaType == "" {
		mediaType = mediaTypeFor(contentType)
	}

	path, err := c.writePayload(data)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		URL:         url,
		FilePath:    path,
		ContentType: contentType,
		MediaType:   mediaType,
		BrandName:   meta.BrandName,
		AdID:        meta.AdID,
		SizeBytes:   int64(len(data)),
		CreatedAt:   c.now().UTC(),
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO media_entries
			(url, file_path, content_type, media_type, brand_name, ad_id, size_bytes, created_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(url) DO NOTHING`,
		entry.URL, entry.FilePath, entry.ContentType, entry.MediaType,
		entry.BrandName, entry.AdID, entry.SizeBytes, entry.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("mediacache: insert entry: %w", err)
	}
	return entry, nil
}

// AttachAnalysis updates the entry for a URL with analysis output. Entries
// are updated in place, never replaced. A missing entry is a silent no-op:
// callers are expected to Put before AttachAnalysis.
func (c *Cache) AttachAnalysis(ctx context.Context, url string, analysis any) error {
	url = strings.TrimSpace(url)
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("mediacache: marshal analysis: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`UPDATE media_entries SET analysis_json = ? WHERE url = ?`, string(data), url)
	if err != nil {
		return fmt.Errorf("mediacache: attach analysis: %w", err)
	}
	return nil
}

// writePayload stores data content-addressed under dir. An existing payload
// file is reused untouched.
func (c *Cache) writePayload(data []byte) (string, error) {
	sum := fmt.Sprintf("%x", sha256.Sum256(data))
	sub := filepath.Join(c.dir, sum[:2])
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return "", fmt.Errorf("mediacache: mkdir payload dir: %w", err)
	}
	path := filepath.Join(sub, sum)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("mediacache: stat payload: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("mediacache: write payload: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("mediacache: rename payload: %w", err)
	}
	return path, nil
}

func mediaTypeFor(contentType string) string {
	if strings.HasPrefix(strings.ToLower(contentType), "video") {
		return MediaVideo
	}
	return MediaImage
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var analysis sql.NullString
	var created int64
	err := row.Scan(&e.URL, &e.FilePath, &e.ContentType, &e.MediaType,
		&e.BrandName, &e.AdID, &e.SizeBytes, &analysis, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mediacache: scan entry: %w", err)
	}
	e.CreatedAt = time.Unix(created, 0).UTC()
	if analysis.Valid && analysis.String != "" {
		e.Analysis = json.RawMessage(analysis.String)
	}
	return &e, nil
}
