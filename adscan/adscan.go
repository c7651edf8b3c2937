// CLAUDE:SUMMARY Pipeline orchestrator: search, platform ID resolution, direct analysis tools, cache ops.
package adscan

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/adveille/adveille/adsource"
	"github.com/adveille/adveille/idgen"
	"github.com/adveille/adveille/kit"
	"github.com/adveille/adveille/mediacache"
)

// Service ties the pipeline together: ad source, filter, analyzer, media
// cache and result store. One Service serves the whole process; each Search
// call is a session with a fresh quota state.
type Service struct {
	source   SourceClient
	cache    MediaStore
	store    *ResultStore
	cfg      *Config
	quota    *QuotaTracker
	filter   *Filter
	analyzer *Analyzer
	logger   *slog.Logger
	newID    idgen.Generator
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithIDGenerator overrides the request-ID generator.
func WithIDGenerator(g idgen.Generator) ServiceOption {
	return func(s *Service) { s.newID = g }
}

// WithAnalyzer replaces the built analyzer (tests inject fake fetchers).
func WithAnalyzer(a *Analyzer) ServiceOption {
	return func(s *Service) { s.analyzer = a }
}

// NewService wires the pipeline. ai may be nil, which disables both media
// analysis and the contextual filter phase.
func NewService(source SourceClient, ai AnalysisClient, cache MediaStore, store *ResultStore, cfg *Config, logger *slog.Logger, opts ...ServiceOption) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	quota := NewQuotaTracker(logger)
	var classifier TextClassifier
	if ai != nil {
		classifier = ai
	}
	s := &Service{
		source:   source,
		cache:    cache,
		store:    store,
		cfg:      cfg,
		quota:    quota,
		filter:   NewFilter(cfg, classifier, quota, logger),
		analyzer: NewAnalyzer(cache, ai, quota, logger),
		logger:   logger,
		newID:    idgen.Default,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SearchRequest is a fully resolved search invocation. Boolean defaults
// (analysis and filtering on, append off) are resolved at the tool boundary.
type SearchRequest struct {
	Query          string
	Limit          int
	Country        string
	ActiveStatus   string // "ACTIVE", "ALL"
	MediaType      string // "ALL", "IMAGE", "VIDEO"
	AnalyzeMedia   bool
	ApplyFiltering bool
	TargetFile     string
	AppendMode     bool
	MaxAds         int
}

// SearchResult is the structured outcome of one search session. Upstream,
// validation and persistence failures all land here rather than as call
// errors: the tool surface never tears down on a bad batch.
type SearchResult struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	Results    []*FileRecord `json:"results"`
	Count      int           `json:"count"`
	TotalFound int           `json:"total_found,omitempty"`
	SavedFile  string        `json:"saved_file,omitempty"`
	SavedCount int           `json:"saved_count,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func searchFailure(msg string) *SearchResult {
	return &SearchResult{Success: false, Message: msg, Results: []*FileRecord{}, Error: msg}
}

// Search runs one full ingestion session: fetch, filter, analyze, re-filter,
// dedup, persist. The quota flag resets at session start so a topped-up
// quota gets a fresh chance.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return searchFailure(ErrMissingQuery.Error()), nil
	}
	s.quota.Reset()

	requestID := s.newID()
	ctx = kit.WithRequestID(ctx, requestID)
	log := s.logger.With("request_id", requestID, "query", req.Query)

	// One upstream credit covers up to MinFetchLimit ads, so fetching below
	// the floor wastes credit.
	reqLimit := req.Limit
	if reqLimit <= 0 {
		reqLimit = s.cfg.DefaultFetchLimit
	}
	if req.MaxAds > reqLimit {
		reqLimit = req.MaxAds
	}
	fetchLimit := reqLimit
	if fetchLimit < s.cfg.MinFetchLimit {
		fetchLimit = s.cfg.MinFetchLimit
	}
	log.Info("search session starting", "fetch_limit", fetchLimit, "analyze_media", req.AnalyzeMedia, "apply_filtering", req.ApplyFiltering)

	ads, err := s.source.SearchAds(ctx, adsource.SearchQuery{
		Query:        req.Query,
		Limit:        fetchLimit,
		Country:      req.Country,
		ActiveStatus: req.ActiveStatus,
		MediaType:    req.MediaType,
	})
	if err != nil {
		log.Error("upstream search failed", "error", err)
		return searchFailure(err.Error()), nil
	}
	if len(ads) == 0 {
		return &SearchResult{
			Success: true,
			Message: fmt.Sprintf("No ads found for query: %s", req.Query),
			Results: []*FileRecord{},
		}, nil
	}

	for _, ad := range ads {
		ad.SearchQuery = req.Query
	}

	var accepted []*Ad
	for _, ad := range ads {
		if req.ApplyFiltering && !s.filter.Evaluate(ctx, ad, false) {
			continue
		}
		if req.AnalyzeMedia {
			ad.MediaAnalysis = s.analyzer.Analyze(ctx, ad)
			if req.ApplyFiltering && !s.filter.Evaluate(ctx, ad, true) {
				continue
			}
		}
		accepted = append(accepted, ad)
		if req.MaxAds > 0 && len(accepted) >= req.MaxAds {
			break
		}
	}

	deduped := Deduplicate(GroupByPrimaryURL(accepted))
	records := make([]*FileRecord, 0, len(deduped))
	for _, ad := range deduped {
		records = append(records, ToFileRecord(ad))
	}

	res := &SearchResult{
		Success:    true,
		Results:    records,
		Count:      len(records),
		TotalFound: len(ads),
	}

	if len(records) > 0 {
		filename := req.TargetFile
		appendMode := req.AppendMode
		if filename == "" {
			// Defaulting consolidates per country and implies append.
			filename = DefaultFilename(req.Country)
			appendMode = true
		} else {
			filename = filepath.Base(filename)
		}

		var path string
		var savedCount int
		if appendMode {
			path, savedCount, err = s.store.Append(records, filename, req.MaxAds)
		} else {
			path, err = s.store.Save(records, filename)
			savedCount = len(records)
		}
		if err != nil {
			// Persistence failures ride back inside the payload; the caller
			// still gets the in-memory result set.
			log.Error("saving results failed", "file", filename, "error", err)
			res.SavedFile = fmt.Sprintf("ERROR_SAVING: %v", err)
		} else {
			log.Info("results saved", "file", path, "saved_count", savedCount)
			res.SavedFile = path
			res.SavedCount = savedCount
		}
	}

	res.Message = fmt.Sprintf("Found %d ads. Saved to %s.", len(records), res.SavedFile)
	return res, nil
}

// BatchInfo summarizes a multi-key upstream batch.
type BatchInfo struct {
	TotalRequested int `json:"total_requested"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
	APICallsUsed   int `json:"api_calls_used"`
}

// PlatformIDResult is the structured outcome of platform ID resolution.
type PlatformIDResult struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	Results      map[string][]string `json:"results"`
	BatchInfo    *BatchInfo          `json:"batch_info,omitempty"`
	TotalResults int                 `json:"total_results"`
	Error        string              `json:"error,omitempty"`
}

// PlatformIDs resolves brand names to ad-library platform IDs. Single and
// multi-name calls share one path: the name list is resolved at the tool
// boundary, and multi-name calls additionally report batch bookkeeping.
func (s *Service) PlatformIDs(ctx context.Context, names []string) (*PlatformIDResult, error) {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if t := strings.TrimSpace(n); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return &PlatformIDResult{
			Success: false,
			Message: ErrInvalidInput.Error() + ": empty brand name list",
			Results: map[string][]string{},
		}, nil
	}

	if len(cleaned) == 1 {
		ids, err := s.source.PlatformIDs(ctx, cleaned[0])
		if err != nil {
			return &PlatformIDResult{Success: false, Message: err.Error(), Results: map[string][]string{}, Error: err.Error()}, nil
		}
		return &PlatformIDResult{
			Success:      true,
			Message:      fmt.Sprintf("Found %d platform IDs.", len(ids)),
			Results:      map[string][]string{cleaned[0]: ids},
			TotalResults: len(ids),
		}, nil
	}

	batch, err := s.source.PlatformIDsBatch(ctx, cleaned)
	if err != nil {
		return &PlatformIDResult{Success: false, Message: err.Error(), Results: map[string][]string{}, Error: err.Error()}, nil
	}
	total, successful := 0, 0
	for _, ids := range batch {
		total += len(ids)
		if len(ids) > 0 {
			successful++
		}
	}
	return &PlatformIDResult{
		Success:      true,
		Message:      fmt.Sprintf("Found %d platform IDs.", total),
		Results:      batch,
		TotalResults: total,
		BatchInfo: &BatchInfo{
			TotalRequested: len(cleaned),
			Successful:     successful,
			Failed:         len(cleaned) - successful,
			APICallsUsed:   len(cleaned),
		},
	}, nil
}

// ExternalAdsResult maps each platform ID to its ads with external links.
type ExternalAdsResult struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Results map[string][]*Ad `json:"results"`
	Count   int              `json:"count"`
	Error   string           `json:"error,omitempty"`
}

// ExternalAds fetches ads for the given platform IDs and keeps only those
// with external destination links. minResults widens the fetch (capped) when
// heavy filtering is expected.
func (s *Service) ExternalAds(ctx context.Context, platformIDs []string, limit int, country string, minResults int) (*ExternalAdsResult, error) {
	cleaned := make([]string, 0, len(platformIDs))
	for _, id := range platformIDs {
		if t := strings.TrimSpace(id); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return &ExternalAdsResult{Success: false, Message: ErrInvalidInput.Error() + ": empty platform ID list", Results: map[string][]*Ad{}}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	fetchLimit := limit
	if minResults > fetchLimit {
		fetchLimit = minResults * 2
		if fetchLimit > 500 {
			fetchLimit = 500
		}
	}

	batch, err := s.source.AdsBatch(ctx, cleaned, adsource.AdsQuery{Limit: fetchLimit, Country: country})
	if err != nil {
		return &ExternalAdsResult{Success: false, Message: err.Error(), Results: map[string][]*Ad{}, Error: err.Error()}, nil
	}

	results := make(map[string][]*Ad, len(batch))
	count := 0
	for id, ads := range batch {
		kept := make([]*Ad, 0, len(ads))
		for _, ad := range ads {
			if ad.HasExternalLinks {
				kept = append(kept, ad)
			}
			if len(kept) >= limit {
				break
			}
		}
		results[id] = kept
		count += len(kept)
	}
	return &ExternalAdsResult{Success: true, Results: results, Count: count}, nil
}

// MediaToolResult is the structured outcome of the direct analysis tools.
type MediaToolResult struct {
	Success  bool            `json:"success"`
	Cached   bool            `json:"cached"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// AnalyzeImage is the direct image analysis tool path: cache check,
// download, cache, analyze, attach. Unlike Search, it does not reset the
// session quota flag.
func (s *Service) AnalyzeImage(ctx context.Context, mediaURL, brandName, adID string) (*MediaToolResult, error) {
	res, cached, err := s.analyzer.AnalyzeImageURL(ctx, mediaURL, mediacache.Meta{BrandName: brandName, AdID: adID})
	if err != nil {
		return &MediaToolResult{Success: false, Error: err.Error(), Message: err.Error()}, nil
	}
	return &MediaToolResult{Success: true, Cached: cached, Analysis: res}, nil
}

// AnalyzeVideo is the direct video analysis tool path.
func (s *Service) AnalyzeVideo(ctx context.Context, mediaURL, brandName, adID string) (*MediaToolResult, error) {
	res, cached, err := s.analyzer.AnalyzeVideoURL(ctx, mediaURL, mediacache.Meta{BrandName: brandName, AdID: adID})
	if err != nil {
		return &MediaToolResult{Success: false, Error: err.Error(), Message: err.Error()}, nil
	}
	return &MediaToolResult{Success: true, Cached: cached, Analysis: res}, nil
}

// CacheStatsResult wraps cache statistics for the tool surface.
type CacheStatsResult struct {
	Success bool              `json:"success"`
	Stats   *mediacache.Stats `json:"stats,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// CacheStats reports aggregate media cache statistics.
func (s *Service) CacheStats(ctx context.Context) (*CacheStatsResult, error) {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return &CacheStatsResult{Success: false, Error: err.Error()}, nil
	}
	return &CacheStatsResult{Success: true, Stats: stats}, nil
}

// CachedMediaResult wraps a cache search for the tool surface.
type CachedMediaResult struct {
	Success bool                `json:"success"`
	Results []*mediacache.Entry `json:"results"`
	Error   string              `json:"error,omitempty"`
}

// SearchCachedMedia runs a predicate search over the media cache.
func (s *Service) SearchCachedMedia(ctx context.Context, q mediacache.Query) (*CachedMediaResult, error) {
	entries, err := s.cache.Search(ctx, q)
	if err != nil {
		return &CachedMediaResult{Success: false, Results: []*mediacache.Entry{}, Error: err.Error()}, nil
	}
	if entries == nil {
		entries = []*mediacache.Entry{}
	}
	return &CachedMediaResult{Success: true, Results: entries}, nil
}

// CleanupResult wraps a cache cleanup for the tool surface.
type CleanupResult struct {
	Success        bool   `json:"success"`
	Removed        int    `json:"removed"`
	BytesReclaimed int64  `json:"bytes_reclaimed"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// CleanupCache evicts cache entries older than maxAgeDays (default 30).
func (s *Service) CleanupCache(ctx context.Context, maxAgeDays int) (*CleanupResult, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	res, err := s.cache.Cleanup(ctx, maxAgeDays)
	if err != nil {
		return &CleanupResult{Success: false, Error: err.Error()}, nil
	}
	return &CleanupResult{
		Success:        true,
		Removed:        res.Removed,
		BytesReclaimed: res.BytesReclaimed,
		Message:        fmt.Sprintf("Removed %d entries, reclaimed %d bytes.", res.Removed, res.BytesReclaimed),
	}, nil
}

// Quota exposes the session quota tracker (tests and diagnostics).
func (s *Service) Quota() *QuotaTracker { return s.quota }
