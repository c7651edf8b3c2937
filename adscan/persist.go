// CLAUDE:SUMMARY Results persistence: atomic JSON array writes with append-mode URL dedup.
package adscan

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adveille/adveille/safeurl"
)

// ResultStore persists deduplicated ad records as UTF-8 JSON arrays under a
// results directory. The union of destination URLs across a file only grows:
// append mode admits a record only when its primary URL has never been seen,
// and nothing in the ingestion path ever removes a record.
type ResultStore struct {
	dir    string
	logger *slog.Logger
}

// NewResultStore creates the results directory if needed.
func NewResultStore(dir string, logger *slog.Logger) (*ResultStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("adscan: mkdir results dir: %w", err)
	}
	return &ResultStore{dir: dir, logger: logger}, nil
}

// DefaultFilename returns the per-country consolidated results filename.
func DefaultFilename(country string) string {
	if strings.TrimSpace(country) == "" {
		country = "ALL"
	}
	return fmt.Sprintf("ads_found_%s.json", country)
}

func (s *ResultStore) path(filename string) (string, error) {
	return safeurl.SafePath(s.dir, filepath.Base(filename))
}

// Save overwrites the target file with exactly records, via a temp-file plus
// rename swap so a crash mid-write cannot leave a truncated store.
func (s *ResultStore) Save(records []*FileRecord, filename string) (string, error) {
	path, err := s.path(filename)
	if err != nil {
		return "", err
	}
	if records == nil {
		records = []*FileRecord{}
	}

	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return "", fmt.Errorf("adscan: encode results: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0o644); err != nil {
		return "", fmt.Errorf("adscan: write results: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("adscan: rename results: %w", err)
	}
	return path, nil
}

// LoadExisting reads a results file and collects the set of all trimmed
// destination URLs it records. A missing file yields an empty store.
func (s *ResultStore) LoadExisting(filename string) ([]*FileRecord, map[string]struct{}, error) {
	urls := map[string]struct{}{}
	path, err := s.path(filename)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, urls, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("adscan: read results: %w", err)
	}

	var records []*FileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("adscan: parse results %s: %w", filename, err)
	}
	for _, rec := range records {
		for _, u := range rec.ExternalURLs {
			if t := trimmed(u); t != "" {
				urls[t] = struct{}{}
			}
		}
	}
	return records, urls, nil
}

// Append merges records into an existing file, first-seen-wins by primary
// URL across the lifetime of the file and within the batch. maxAds > 0 caps
// the number of newly admitted records. The returned count is the number of
// records admitted by this call.
func (s *ResultStore) Append(records []*FileRecord, filename string, maxAds int) (string, int, error) {
	existing, seen, err := s.LoadExisting(filename)
	if err != nil {
		return "", 0, err
	}

	var admitted []*FileRecord
	for _, rec := range records {
		url := rec.PrimaryURL()
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		admitted = append(admitted, rec)
		if maxAds > 0 && len(admitted) >= maxAds {
			break
		}
	}

	path, err := s.Save(append(existing, admitted...), filename)
	if err != nil {
		return "", 0, err
	}
	return path, len(admitted), nil
}

// List returns the result filenames present in the store, sorted.
func (s *ResultStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("adscan: list results: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
