// CLAUDE:SUMMARY Ad record model as returned by the ad-library API, plus analysis payload.
package adsource

import "strings"

// ExternalURL is one destination link attached to an ad creative.
type ExternalURL struct {
	Domain  string `json:"domain"`
	FullURL string `json:"full_url"`
}

// AnalysisResult is the raw textual output of one generative analysis call.
type AnalysisResult struct {
	RawAnalysis string `json:"raw_analysis"`
}

// MediaAnalysis carries the per-ad analysis outcome. At most one of the two
// analysis slots is populated, depending on the ad's media type. Errors are
// recorded in AnalysisError instead of propagating — a failed asset never
// stops the batch.
type MediaAnalysis struct {
	ImageAnalysis *AnalysisResult `json:"image_analysis"`
	VideoAnalysis *AnalysisResult `json:"video_analysis"`
	AnalysisError string          `json:"analysis_error,omitempty"`
}

// Ad is one scraped advertisement from the ad library.
//
// Created when fetched from the upstream API; annotated in place by the
// filtering/analysis stages; never mutated after persistence.
type Ad struct {
	AdID             string        `json:"ad_id"`
	Title            string        `json:"title,omitempty"`
	Body             string        `json:"body,omitempty"`
	PageID           string        `json:"page_id,omitempty"`
	HasExternalLinks bool          `json:"has_external_links"`
	ExternalURLs     []ExternalURL `json:"external_urls,omitempty"`
	MediaType        string        `json:"media_type,omitempty"` // IMAGE, VIDEO, DCO
	MediaURL         string        `json:"media_url,omitempty"`
	StartDate        string        `json:"start_date,omitempty"`
	EndDate          string        `json:"end_date,omitempty"`

	// SearchQuery tags the ad with the query that surfaced it.
	SearchQuery string `json:"search_query,omitempty"`

	// URLOccurrences counts how many ads shared this ad's primary URL when a
	// 3+ group was collapsed during deduplication. Zero means "not collapsed".
	URLOccurrences int `json:"url_occurrences,omitempty"`

	MediaAnalysis *MediaAnalysis `json:"media_analysis,omitempty"`
}

// PrimaryURL returns the trimmed first destination URL, or "" when the ad has
// no external destinations. It is the grouping key for deduplication.
func (a *Ad) PrimaryURL() string {
	if len(a.ExternalURLs) == 0 {
		return ""
	}
	return strings.TrimSpace(a.ExternalURLs[0].FullURL)
}

// PrimaryDomain returns the domain of the first destination URL, or "".
func (a *Ad) PrimaryDomain() string {
	if len(a.ExternalURLs) == 0 {
		return ""
	}
	return a.ExternalURLs[0].Domain
}
