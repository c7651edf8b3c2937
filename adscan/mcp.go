// CLAUDE:SUMMARY MCP tool surface: search, platform IDs, external ads, analysis and cache tools.
package adscan

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adveille/adveille/kit"
	"github.com/adveille/adveille/mediacache"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers all pipeline tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerPlatformID(srv)
	s.registerSearchAds(srv)
	s.registerExternalAds(srv)
	s.registerAnalyzeImage(srv)
	s.registerAnalyzeVideo(srv)
	s.registerCacheStats(srv)
	s.registerSearchCachedMedia(srv)
	s.registerCleanupCache(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// stringOrList accepts a JSON string or array of strings and resolves it to
// a string slice, so callers may pass either form while the pipeline only
// ever sees the list form.
func stringOrList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	return nil, fmt.Errorf("expected string or array of strings, got %s", string(raw))
}

func stringOrListSchema(description string) map[string]any {
	return map[string]any{
		"description": description,
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}
}

func (s *Service) registerPlatformID(srv *mcp.Server) {
	type req struct {
		BrandNames json.RawMessage `json:"brand_names"`
	}

	tool := &mcp.Tool{
		Name:        "get_meta_platform_id",
		Description: "Resolve one or more brand names to their ad-library platform IDs",
		InputSchema: inputSchema(map[string]any{
			"brand_names": stringOrListSchema("Brand name or list of brand names"),
		}, []string{"brand_names"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.PlatformIDs(ctx, r.([]string))
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		names, err := stringOrList(p.BrandNames)
		if err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: names}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerSearchAds(srv *mcp.Server) {
	type req struct {
		Query          string `json:"query"`
		Limit          int    `json:"limit"`
		Country        string `json:"country"`
		ActiveStatus   string `json:"active_status"`
		MediaType      string `json:"media_type"`
		AnalyzeMedia   *bool  `json:"analyze_media"`
		TargetFile     string `json:"target_file"`
		AppendMode     bool   `json:"append_mode"`
		MaxAds         int    `json:"max_ads"`
		ApplyFiltering *bool  `json:"apply_filtering"`
	}

	tool := &mcp.Tool{
		Name:        "search_ads_final",
		Description: "Search the ad library by keyword with filtering, media analysis, dedup and file saving",
		InputSchema: inputSchema(map[string]any{
			"query":           map[string]any{"type": "string", "description": "Search keywords"},
			"limit":           map[string]any{"type": "integer", "description": "Max ads to fetch upstream"},
			"country":         map[string]any{"type": "string", "description": "Country code"},
			"active_status":   map[string]any{"type": "string", "description": "ACTIVE or ALL"},
			"media_type":      map[string]any{"type": "string", "description": "ALL, IMAGE or VIDEO"},
			"analyze_media":   map[string]any{"type": "boolean", "description": "Enable media analysis (default true)"},
			"target_file":     map[string]any{"type": "string", "description": "Results filename; defaults to a per-country consolidated file"},
			"append_mode":     map[string]any{"type": "boolean", "description": "Append to target file instead of overwriting"},
			"max_ads":         map[string]any{"type": "integer", "description": "Cap on accepted ads"},
			"apply_filtering": map[string]any{"type": "boolean", "description": "Enable exclusion filtering (default true)"},
		}, []string{"query"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.Search(ctx, r.(SearchRequest))
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		sr := SearchRequest{
			Query:          p.Query,
			Limit:          p.Limit,
			Country:        p.Country,
			ActiveStatus:   p.ActiveStatus,
			MediaType:      p.MediaType,
			AnalyzeMedia:   p.AnalyzeMedia == nil || *p.AnalyzeMedia,
			ApplyFiltering: p.ApplyFiltering == nil || *p.ApplyFiltering,
			TargetFile:     p.TargetFile,
			AppendMode:     p.AppendMode,
			MaxAds:         p.MaxAds,
		}
		return &kit.MCPDecodeResult{Request: sr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerExternalAds(srv *mcp.Server) {
	type req struct {
		PlatformIDs json.RawMessage `json:"platform_ids"`
		Limit       int             `json:"limit"`
		Country     string          `json:"country"`
		MinResults  int             `json:"min_results"`
	}
	type resolved struct {
		ids        []string
		limit      int
		country    string
		minResults int
	}

	tool := &mcp.Tool{
		Name:        "get_meta_ads_external_only",
		Description: "Fetch ads for platform IDs, keeping only ads with external destination links",
		InputSchema: inputSchema(map[string]any{
			"platform_ids": stringOrListSchema("Platform ID or list of platform IDs"),
			"limit":        map[string]any{"type": "integer", "description": "Max ads per platform ID"},
			"country":      map[string]any{"type": "string", "description": "Country code"},
			"min_results":  map[string]any{"type": "integer", "description": "Widen the fetch until this many results are likely"},
		}, []string{"platform_ids"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*resolved)
		return s.ExternalAds(ctx, p.ids, p.limit, p.country, p.minResults)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		ids, err := stringOrList(p.PlatformIDs)
		if err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &resolved{
			ids: ids, limit: p.Limit, country: p.Country, minResults: p.MinResults,
		}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerAnalyzeImage(srv *mcp.Server) {
	type req struct {
		MediaURLs json.RawMessage `json:"media_urls"`
		BrandName string          `json:"brand_name"`
		AdID      string          `json:"ad_id"`
	}
	type resolved struct {
		url   string
		brand string
		adID  string
	}

	tool := &mcp.Tool{
		Name:        "analyze_ad_image",
		Description: "Download, cache and analyze an ad image",
		InputSchema: inputSchema(map[string]any{
			"media_urls": stringOrListSchema("Image URL or list of URLs (first is analyzed)"),
			"brand_name": map[string]any{"type": "string", "description": "Brand name for cache metadata"},
			"ad_id":      map[string]any{"type": "string", "description": "Ad ID for cache metadata"},
		}, []string{"media_urls"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*resolved)
		return s.AnalyzeImage(ctx, p.url, p.brand, p.adID)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		urls, err := stringOrList(p.MediaURLs)
		if err != nil {
			return nil, err
		}
		if len(urls) == 0 {
			return nil, ErrNoMediaURL
		}
		return &kit.MCPDecodeResult{Request: &resolved{url: urls[0], brand: p.BrandName, adID: p.AdID}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerAnalyzeVideo(srv *mcp.Server) {
	type req struct {
		MediaURL  string `json:"media_url"`
		BrandName string `json:"brand_name"`
		AdID      string `json:"ad_id"`
	}

	tool := &mcp.Tool{
		Name:        "analyze_ad_video",
		Description: "Download, cache and analyze an ad video",
		InputSchema: inputSchema(map[string]any{
			"media_url":  map[string]any{"type": "string", "description": "Video URL"},
			"brand_name": map[string]any{"type": "string", "description": "Brand name for cache metadata"},
			"ad_id":      map[string]any{"type": "string", "description": "Ad ID for cache metadata"},
		}, []string{"media_url"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.AnalyzeVideo(ctx, p.MediaURL, p.BrandName, p.AdID)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerCacheStats(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "get_cache_stats",
		Description: "Report media cache statistics",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.CacheStats(ctx)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: struct{}{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerSearchCachedMedia(srv *mcp.Server) {
	type req struct {
		BrandName     string `json:"brand_name"`
		HasPeople     *bool  `json:"has_people"`
		ColorContains string `json:"color_contains"`
		MediaType     string `json:"media_type"`
		Limit         int    `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "search_cached_media",
		Description: "Search cached media by brand, analysis fields and media type",
		InputSchema: inputSchema(map[string]any{
			"brand_name":     map[string]any{"type": "string", "description": "Brand name substring"},
			"has_people":     map[string]any{"type": "boolean", "description": "Match the analysis has_people field"},
			"color_contains": map[string]any{"type": "string", "description": "Substring matched against analysis color fields"},
			"media_type":     map[string]any{"type": "string", "description": "image or video"},
			"limit":          map[string]any{"type": "integer", "description": "Max results (default 20)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		limit := p.Limit
		if limit <= 0 {
			limit = 20
		}
		return s.SearchCachedMedia(ctx, mediacache.Query{
			BrandName:     p.BrandName,
			HasPeople:     p.HasPeople,
			ColorContains: p.ColorContains,
			MediaType:     p.MediaType,
			Limit:         limit,
		})
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerCleanupCache(srv *mcp.Server) {
	type req struct {
		MaxAgeDays int `json:"max_age_days"`
	}

	tool := &mcp.Tool{
		Name:        "cleanup_media_cache",
		Description: "Delete cached media older than max_age_days (default 30)",
		InputSchema: inputSchema(map[string]any{
			"max_age_days": map[string]any{"type": "integer", "description": "Age cutoff in days"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.CleanupCache(ctx, r.(*req).MaxAgeDays)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
