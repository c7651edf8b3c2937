// CLAUDE:SUMMARY Entry, Meta, Stats, Query, and CleanupResult types for the media cache.
package mediacache

import (
	"encoding/json"
	"time"
)

// MediaType classifies a cached asset.
const (
	MediaImage = "image"
	MediaVideo = "video"
)

// Entry is one cached media asset. The key is the trimmed, verbatim source
// URL — two URLs differing only in query string are distinct entries. Brand
// and ad identifiers are metadata, not part of the key.
type Entry struct {
	URL         string          `json:"url"`
	FilePath    string          `json:"file_path"`
	ContentType string          `json:"content_type"`
	MediaType   string          `json:"media_type"`
	BrandName   string          `json:"brand_name,omitempty"`
	AdID        string          `json:"ad_id,omitempty"`
	SizeBytes   int64           `json:"size_bytes"`
	CreatedAt   time.Time       `json:"created_at"`
	Analysis    json.RawMessage `json:"analysis_results,omitempty"`
}

// Meta carries optional metadata attached on Put.
type Meta struct {
	MediaType string // derived from content type when empty
	BrandName string
	AdID      string
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries     int            `json:"total_entries"`
	Analyzed    int            `json:"analyzed_entries"`
	TotalBytes  int64          `json:"total_bytes"`
	ByMediaType map[string]int `json:"by_media_type"`
	Oldest      *time.Time     `json:"oldest,omitempty"`
	Newest      *time.Time     `json:"newest,omitempty"`
}

// Query filters a cache search. All set predicates are ANDed; zero values
// are wildcards. HasPeople and ColorContains are matched against the
// attached analysis; entries without analysis never match those two.
type Query struct {
	BrandName     string
	HasPeople     *bool
	ColorContains string
	MediaType     string
	Limit         int
}

// CleanupResult reports what an age-based cleanup removed.
type CleanupResult struct {
	Removed        int   `json:"removed_entries"`
	BytesReclaimed int64 `json:"bytes_reclaimed"`
}
