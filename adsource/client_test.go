package adsource

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, nil)
}

func TestSearchAds_DecodesAndNormalizes(t *testing.T) {
	// WHAT: SearchAds decodes the ads payload, trims URLs, and backfills the
	// external-link flag from the URL list.
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("api key header: got %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "vitamins" {
			t.Errorf("query param: got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ads": []map[string]any{
				{
					"ad_id":      "a1",
					"body":       "Buy vitamins",
					"media_type": "IMAGE",
					"external_urls": []map[string]string{
						{"domain": "vitashop.com", "full_url": " https://vitashop.com/offer "},
					},
				},
			},
		})
	})

	ads, err := c.SearchAds(context.Background(), SearchQuery{Query: "vitamins", Limit: 10})
	if err != nil {
		t.Fatalf("SearchAds: %v", err)
	}
	if len(ads) != 1 {
		t.Fatalf("ads: got %d, want 1", len(ads))
	}
	if got := ads[0].PrimaryURL(); got != "https://vitashop.com/offer" {
		t.Errorf("primary URL not trimmed: %q", got)
	}
	if !ads[0].HasExternalLinks {
		t.Error("HasExternalLinks not backfilled")
	}
}

func TestSearchAds_Pagination(t *testing.T) {
	// WHAT: the client follows cursors until the limit is met.
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		page := map[string]any{
			"ads":    []map[string]any{{"ad_id": "a" + r.URL.Query().Get("cursor")}},
			"cursor": "next",
		}
		if calls >= 3 {
			page["cursor"] = ""
		}
		json.NewEncoder(w).Encode(page)
	})

	ads, err := c.SearchAds(context.Background(), SearchQuery{Query: "x", Limit: 10})
	if err != nil {
		t.Fatalf("SearchAds: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	if len(ads) != 3 {
		t.Errorf("ads: got %d, want 3", len(ads))
	}
}

func TestSearchAds_LimitStopsPagination(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ads":    []map[string]any{{"ad_id": "1"}, {"ad_id": "2"}, {"ad_id": "3"}},
			"cursor": "more",
		})
	})

	ads, err := c.SearchAds(context.Background(), SearchQuery{Query: "x", Limit: 2})
	if err != nil {
		t.Fatalf("SearchAds: %v", err)
	}
	if len(ads) != 2 {
		t.Errorf("ads: got %d, want 2", len(ads))
	}
}

func TestGet_CreditExhausted(t *testing.T) {
	// WHAT: HTTP 402 maps to ErrCreditExhausted without retrying.
	// WHY: retrying a drained account wastes time and hides the real problem.
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":"credits exhausted"}`))
	})

	_, err := c.SearchAds(context.Background(), SearchQuery{Query: "x"})
	if !errors.Is(err, ErrCreditExhausted) {
		t.Fatalf("got %v, want ErrCreditExhausted", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1 (no retry)", calls)
	}
}

func TestGet_RateLimitedRetriesThenFails(t *testing.T) {
	// WHAT: 429 is retried with backoff up to MaxRetries, then surfaces
	// ErrRateLimited.
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL:    srv.URL,
		APIKey:     "k",
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	}, nil)

	_, err := c.SearchAds(context.Background(), SearchQuery{Query: "x"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestGet_RateLimitedRecovers(t *testing.T) {
	// WHAT: a 429 followed by a 200 succeeds transparently.
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"ads": []map[string]any{{"ad_id": "a1"}}})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", MaxRetries: 2, Backoff: time.Millisecond}, nil)
	ads, err := c.SearchAds(context.Background(), SearchQuery{Query: "x"})
	if err != nil {
		t.Fatalf("SearchAds after retry: %v", err)
	}
	if len(ads) != 1 {
		t.Errorf("ads: got %d, want 1", len(ads))
	}
}

func TestPlatformIDs(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"searchResults": []map[string]string{
				{"page_id": "111"},
				{"page_id": "222"},
				{"page_id": ""},
			},
		})
	})

	ids, err := c.PlatformIDs(context.Background(), " BrandX ")
	if err != nil {
		t.Fatalf("PlatformIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "111" || ids[1] != "222" {
		t.Errorf("ids: got %v", ids)
	}
}

func TestPlatformIDsBatch_PartialFailure(t *testing.T) {
	// WHAT: a 404 for one brand leaves the others intact; the failed brand
	// maps to an empty result.
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"searchResults": []map[string]string{{"page_id": "9"}},
		})
	})

	results, err := c.PlatformIDsBatch(context.Background(), []string{"good", "missing"})
	if err != nil {
		t.Fatalf("PlatformIDsBatch: %v", err)
	}
	if len(results["good"]) != 1 {
		t.Errorf("good: got %v", results["good"])
	}
	if len(results["missing"]) != 0 {
		t.Errorf("missing: got %v", results["missing"])
	}
}

func TestMissingAPIKey(t *testing.T) {
	// WHAT: every operation refuses to touch the network without a key.
	c := New(Config{BaseURL: "http://unused.invalid"}, nil)
	ctx := context.Background()

	if _, err := c.SearchAds(ctx, SearchQuery{Query: "x"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("SearchAds: got %v", err)
	}
	if _, err := c.PlatformIDs(ctx, "x"); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("PlatformIDs: got %v", err)
	}
	if _, err := c.Ads(ctx, "1", AdsQuery{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Ads: got %v", err)
	}
}
