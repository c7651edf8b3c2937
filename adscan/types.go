// CLAUDE:SUMMARY Core ad pipeline types: Ad aliases, persisted file projection, collaborator interfaces.
// Package adscan is the ad ingestion, filtering, deduplication and media
// analysis pipeline. It consumes raw ads from an ad-library source, drops
// excluded content through a two-phase filter, optionally enriches ads with
// generative media analysis, collapses near-duplicate creatives by
// destination URL and persists the result as an incrementally growing JSON
// corpus.
package adscan

import (
	"context"

	"github.com/adveille/adveille/adsource"
	"github.com/adveille/adveille/genai"
	"github.com/adveille/adveille/mediacache"
)

// Re-exported ad model. The wire shape is owned by adsource; the pipeline
// annotates ads in place and never mutates them after persistence.
type (
	Ad             = adsource.Ad
	ExternalURL    = adsource.ExternalURL
	MediaAnalysis  = adsource.MediaAnalysis
	AnalysisResult = adsource.AnalysisResult
)

// FileRecord is the persisted projection of an ad, one element of the JSON
// array written to the results file.
type FileRecord struct {
	AdID          string         `json:"ad_id"`
	AdText        string         `json:"ad_text"`
	ExternalURLs  []string       `json:"external_urls"`
	FanpageURL    string         `json:"fanpage_url,omitempty"`
	AdURL         string         `json:"ad_url,omitempty"`
	StartDate     string         `json:"start_date,omitempty"`
	EndDate       string         `json:"end_date,omitempty"`
	MediaType     string         `json:"media_type,omitempty"`
	MediaURL      string         `json:"media_url,omitempty"`
	SearchQuery   string         `json:"search_query,omitempty"`
	URLOccur      int            `json:"url_occurrences"`
	MediaAnalysis *MediaAnalysis `json:"media_analysis,omitempty"`
	Title         string         `json:"title,omitempty"`
}

// ToFileRecord converts a pipeline ad into its file projection.
func ToFileRecord(ad *Ad) *FileRecord {
	urls := make([]string, 0, len(ad.ExternalURLs))
	for _, u := range ad.ExternalURLs {
		urls = append(urls, u.FullURL)
	}
	rec := &FileRecord{
		AdID:          ad.AdID,
		AdText:        ad.Body,
		ExternalURLs:  urls,
		StartDate:     ad.StartDate,
		EndDate:       ad.EndDate,
		MediaType:     ad.MediaType,
		MediaURL:      ad.MediaURL,
		SearchQuery:   ad.SearchQuery,
		URLOccur:      ad.URLOccurrences,
		MediaAnalysis: ad.MediaAnalysis,
		Title:         ad.Title,
	}
	if rec.URLOccur == 0 {
		rec.URLOccur = 1
	}
	if ad.PageID != "" {
		rec.FanpageURL = "https://www.facebook.com/" + ad.PageID
	}
	if ad.AdID != "" {
		rec.AdURL = "https://www.facebook.com/ads/library/?id=" + ad.AdID
	}
	return rec
}

// PrimaryURL returns the record's trimmed first destination URL.
func (r *FileRecord) PrimaryURL() string {
	for _, u := range r.ExternalURLs {
		if t := trimmed(u); t != "" {
			return t
		}
	}
	return ""
}

// SourceClient is the narrow slice of the ad-library client the pipeline
// depends on.
type SourceClient interface {
	SearchAds(ctx context.Context, q adsource.SearchQuery) ([]*Ad, error)
	Ads(ctx context.Context, platformID string, q adsource.AdsQuery) ([]*Ad, error)
	AdsBatch(ctx context.Context, platformIDs []string, q adsource.AdsQuery) (map[string][]*Ad, error)
	PlatformIDs(ctx context.Context, name string) ([]string, error)
	PlatformIDsBatch(ctx context.Context, names []string) (map[string][]string, error)
}

// AnalysisClient is the generative backend used for media analysis and
// contextual text classification.
type AnalysisClient interface {
	ClassifyText(ctx context.Context, prompt string) (string, error)
	AnalyzeImage(ctx context.Context, data []byte, mimeType, prompt string) (string, error)
	UploadVideo(ctx context.Context, data []byte, mimeType string) (*genai.FileHandle, error)
	AnalyzeVideo(ctx context.Context, handle *genai.FileHandle, mimeType, prompt string) (string, error)
	DeleteVideo(ctx context.Context, handle *genai.FileHandle) error
}

// MediaStore is the cache surface the analyzer and the direct tools use.
type MediaStore interface {
	Get(ctx context.Context, url string) (*mediacache.Entry, error)
	Put(ctx context.Context, url string, data []byte, contentType string, meta mediacache.Meta) (*mediacache.Entry, error)
	AttachAnalysis(ctx context.Context, url string, analysis any) error
	Stats(ctx context.Context) (*mediacache.Stats, error)
	Search(ctx context.Context, q mediacache.Query) ([]*mediacache.Entry, error)
	Cleanup(ctx context.Context, maxAgeDays int) (*mediacache.CleanupResult, error)
}
