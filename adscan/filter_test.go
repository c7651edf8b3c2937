package adscan

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type fakeClassifier struct {
	reply      string
	err        error
	calls      int
	lastPrompt string
}

func (f *fakeClassifier) ClassifyText(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	return f.reply, f.err
}

func filterAd(domain, url string) *Ad {
	return &Ad{
		AdID:             "ad1",
		HasExternalLinks: true,
		ExternalURLs:     []ExternalURL{{Domain: domain, FullURL: url}},
	}
}

// WHAT: structural exclusions fire regardless of text content.
func TestFilterStructural(t *testing.T) {
	f := NewFilter(nil, nil, NewQuotaTracker(nil), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		ad   *Ad
		keep bool
	}{
		{"no external links", &Ad{AdID: "x"}, false},
		{"flag set but empty URL list", &Ad{AdID: "x", HasExternalLinks: true}, false},
		{"denylisted domain", filterAd("gymshark.com", "https://gymshark.com/sale"), false},
		{"denylisted domain substring", filterAd("shop.amazon.de", "https://shop.amazon.de/x"), false},
		{"denylisted path fragment", filterAd("brandq.net", "https://brandq.net/shop/item1"), false},
		{"course path", filterAd("brandq.net", "https://brandq.net/curso/intro"), false},
		{"clean medical ad", filterAd("brandq.net", "https://brandq.net/offer"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Evaluate(ctx, tt.ad, false); got != tt.keep {
				t.Errorf("Evaluate = %v, want %v", got, tt.keep)
			}
		})
	}
}

// WHAT: combined title+body above the ceiling is excluded as non-ad/spam.
func TestFilterTextCeiling(t *testing.T) {
	f := NewFilter(nil, nil, NewQuotaTracker(nil), nil)
	ad := filterAd("brandq.net", "https://brandq.net/offer")

	long := make([]byte, 4001)
	for i := range long {
		long[i] = 'a'
	}
	ad.Body = string(long)
	if f.Evaluate(context.Background(), ad, false) {
		t.Error("4001-char ad kept, want excluded")
	}

	ad.Body = string(long[:4000])
	// Exactly at the ceiling stays in.
	if !f.Evaluate(context.Background(), ad, false) {
		t.Error("4000-char ad excluded, want kept")
	}
}

// WHAT: the text ceiling counts characters, not bytes.
// WHY: Cyrillic is two bytes per rune in UTF-8; a byte-based ceiling would
// exclude Russian ads at half the intended length.
func TestFilterTextCeilingCyrillic(t *testing.T) {
	f := NewFilter(nil, nil, NewQuotaTracker(nil), nil)
	ad := filterAd("brandq.net", "https://brandq.net/offer")

	// 2500 characters, 5000 bytes.
	ad.Body = strings.Repeat("п", 2500)
	if !f.Evaluate(context.Background(), ad, false) {
		t.Error("2500-char Cyrillic ad excluded, want kept")
	}

	ad.Body = strings.Repeat("п", 4001)
	if f.Evaluate(context.Background(), ad, false) {
		t.Error("4001-char Cyrillic ad kept, want excluded")
	}
}

// WHAT: classifier input is capped by rune count and never splits a rune.
func TestFilterClassifierCapRuneSafe(t *testing.T) {
	cl := &fakeClassifier{reply: "KEEP"}
	cfg := DefaultConfig()
	cfg.ClassifierTextCap = 10
	f := NewFilter(cfg, cl, NewQuotaTracker(nil), nil)

	ad := filterAd("brandq.net", "https://brandq.net/offer")
	ad.Body = strings.Repeat("д", 25)
	if !f.Evaluate(context.Background(), ad, false) {
		t.Fatal("KEEP verdict not honored")
	}
	if !utf8.ValidString(cl.lastPrompt) {
		t.Error("classifier prompt contains a split rune")
	}
	if want := strings.Repeat("д", 10); !strings.Contains(cl.lastPrompt, want) ||
		strings.Contains(cl.lastPrompt, want+"д") {
		t.Errorf("prompt not capped at 10 characters: %q", cl.lastPrompt)
	}
}

// WHAT: the contextual phase excludes on an EXCLUDE verdict and keeps on
// KEEP; media analysis text feeds the classifier only when requested.
func TestFilterContextual(t *testing.T) {
	ctx := context.Background()

	cl := &fakeClassifier{reply: "EXCLUDE"}
	f := NewFilter(nil, cl, NewQuotaTracker(nil), nil)
	ad := filterAd("brandq.net", "https://brandq.net/offer")
	ad.Body = "Online course in marketing"
	if f.Evaluate(ctx, ad, false) {
		t.Error("EXCLUDE verdict not honored")
	}

	cl.reply = "KEEP"
	if !f.Evaluate(ctx, ad, false) {
		t.Error("KEEP verdict not honored")
	}

	// Analysis text only reaches the classifier with useMediaAnalysis.
	cl.reply = "EXCLUDE"
	ad.Body = ""
	ad.MediaAnalysis = &MediaAnalysis{ImageAnalysis: &AnalysisResult{RawAnalysis: "реклама фитнес-зала"}}
	if !f.Evaluate(ctx, ad, false) {
		t.Error("analysis text classified without useMediaAnalysis")
	}
	if f.Evaluate(ctx, ad, true) {
		t.Error("EXCLUDE on analysis text not honored with useMediaAnalysis")
	}
}

// WHAT: the classifier fails open: quota-exhausted sessions, classifier
// errors and a nil classifier all default to keep.
// WHY: the filter must never block solely because classification was
// unavailable.
func TestFilterFailOpen(t *testing.T) {
	ctx := context.Background()
	ad := filterAd("brandq.net", "https://brandq.net/offer")
	ad.Body = "some ad text"

	// Exhausted quota skips the call entirely.
	quota := NewQuotaTracker(nil)
	quota.Trip("quota exceeded")
	cl := &fakeClassifier{reply: "EXCLUDE"}
	f := NewFilter(nil, cl, quota, nil)
	if !f.Evaluate(ctx, ad, false) {
		t.Error("excluded while quota exhausted, want fail-open keep")
	}
	if cl.calls != 0 {
		t.Errorf("classifier called %d times while exhausted, want 0", cl.calls)
	}

	// A quota-shaped classifier error trips the tracker and keeps the ad.
	quota = NewQuotaTracker(nil)
	cl = &fakeClassifier{err: errors.New("429 resource exhausted")}
	f = NewFilter(nil, cl, quota, nil)
	if !f.Evaluate(ctx, ad, false) {
		t.Error("excluded on classifier error, want fail-open keep")
	}
	if !quota.Exhausted() {
		t.Error("quota-shaped classifier error did not trip the tracker")
	}

	// Non-quota errors also fail open without tripping.
	quota = NewQuotaTracker(nil)
	cl = &fakeClassifier{err: errors.New("connection reset")}
	f = NewFilter(nil, cl, quota, nil)
	if !f.Evaluate(ctx, ad, false) {
		t.Error("excluded on transient classifier error")
	}
	if quota.Exhausted() {
		t.Error("transient error tripped the quota tracker")
	}
}
