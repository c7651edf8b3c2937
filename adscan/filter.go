// CLAUDE:SUMMARY Two-phase exclusion filter: structural denylist checks, then contextual classification.
package adscan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// classifyRubric is the fixed contextual classification prompt. The
// classifier answers with a single word, EXCLUDE or KEEP.
const classifyRubric = `Analyze the following Facebook ad content analysis and determine if this ad promotes:

1. Online courses, training programs, educational courses (NOT medical treatment courses)
2. Reading applications, e-book apps, or similar applications
3. Educational platforms (Udemy, Coursera, Hotmart, Teachable, etc.)
4. Marketplaces (Amazon, eBay, AliExpress, Mercado Libre, general e-commerce platforms)
5. Psychology services (психология, психотерапия, консультации психолога, психологические тренинги, коучинг)
6. Hypnosis services (гипноз, гипнотерапия, hypnotherapy)
7. Sports, fitness, or gym (фитнес, спорт, тренажерный зал, спортивное питание, gym, workout equipment, athletic training)
8. General wellness or self-help not related to specific medical treatment (мотивация, личностный рост, саморазвитие)
9. Information products (инфо-продукты, инфо-курсы, вебинары, мастер-классы)
10. Physical consumer goods NOT related to medical treatment (watches, jewelry, clothing, shoes, general electronics, gadgets, automotive, real estate)

IMPORTANT CONTEXT:
- "Course of treatment" or "medical course" (курс лечения) = ACCEPTABLE (medical treatment)
- "Training course" or "online course" = EXCLUDE (educational content)
- Medical devices like tonometer or glucometer  in medical product ads = ACCEPTABLE
- Medical supplements, vitamins, medicines for specific conditions = ACCEPTABLE
- Reading apps, e-book apps = EXCLUDE
- Sports equipment, gym memberships, fitness coaching = EXCLUDE
- Psychological counseling, therapy sessions, mental wellness coaching = EXCLUDE
- Hypnosis for any purpose = EXCLUDE
- General marketplace ads (selling variety of products) = EXCLUDE
- Watches (smart or classic), Jewelry, Clothing, Fashion = EXCLUDE

Respond with ONLY one word: "EXCLUDE" if the ad should be excluded, or "KEEP" if it should be kept.

Content analysis:
%s
`

// TextClassifier is the generative text classification dependency. A nil
// classifier disables the contextual phase entirely.
type TextClassifier interface {
	ClassifyText(ctx context.Context, prompt string) (string, error)
}

// Filter applies the two-phase exclusion logic: cheap structural checks
// first, then an AI-assisted contextual classification of the ad text. The
// same filter is re-applied after media analysis, using the richer analysis
// text as additional classification input.
type Filter struct {
	domains    []string
	paths      []string
	maxText    int
	textCap    int
	classifier TextClassifier
	quota      *QuotaTracker
	logger     *slog.Logger
}

// NewFilter builds a Filter over the config's denylists. classifier may be
// nil; quota must be the session tracker shared with the analyzer.
func NewFilter(cfg *Config, classifier TextClassifier, quota *QuotaTracker, logger *slog.Logger) *Filter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	domains := make([]string, 0, len(cfg.ExcludedDomains))
	for _, d := range cfg.ExcludedDomains {
		domains = append(domains, strings.ToLower(strings.ReplaceAll(d, "*", "")))
	}
	return &Filter{
		domains:    domains,
		paths:      cfg.ExcludedPaths,
		maxText:    cfg.MaxTextLength,
		textCap:    cfg.ClassifierTextCap,
		classifier: classifier,
		quota:      quota,
		logger:     logger,
	}
}

// Evaluate reports whether the ad should be kept. When useMediaAnalysis is
// true, attached image/video analysis text is also submitted to the
// contextual classifier.
func (f *Filter) Evaluate(ctx context.Context, ad *Ad, useMediaAnalysis bool) bool {
	if !ad.HasExternalLinks || len(ad.ExternalURLs) == 0 {
		return false
	}
	primary := ad.PrimaryURL()
	if primary == "" {
		return false
	}
	if f.excludedDomain(ad.PrimaryDomain()) {
		return false
	}
	if f.excludedPath(primary) {
		return false
	}

	// Length ceiling is a heuristic proxy for non-ad/spam content. The
	// ceiling counts characters, not bytes: Cyrillic ad text would hit a
	// byte-based ceiling at half the intended length.
	if utf8.RuneCountInString(ad.Title)+utf8.RuneCountInString(ad.Body) > f.maxText {
		return false
	}

	text := strings.TrimSpace(ad.Title + "\n" + ad.Body)
	if text != "" && f.classifyExcluded(ctx, text) {
		return false
	}

	if useMediaAnalysis && ad.MediaAnalysis != nil {
		if ia := ad.MediaAnalysis.ImageAnalysis; ia != nil && ia.RawAnalysis != "" {
			if f.classifyExcluded(ctx, ia.RawAnalysis) {
				return false
			}
		}
		if va := ad.MediaAnalysis.VideoAnalysis; va != nil && va.RawAnalysis != "" {
			if f.classifyExcluded(ctx, va.RawAnalysis) {
				return false
			}
		}
	}
	return true
}

func (f *Filter) excludedDomain(domain string) bool {
	if domain == "" {
		return false
	}
	low := strings.ToLower(domain)
	for _, d := range f.domains {
		if strings.Contains(low, d) {
			return true
		}
	}
	return false
}

func (f *Filter) excludedPath(rawURL string) bool {
	low := strings.ToLower(rawURL)
	for _, p := range f.paths {
		if strings.Contains(low, p) {
			return true
		}
	}
	return false
}

// classifyExcluded asks the contextual classifier whether the text describes
// excluded content. Fail-open: an absent classifier, exhausted quota or any
// classification error means keep. The filter never blocks solely because
// the classifier was unavailable.
func (f *Filter) classifyExcluded(ctx context.Context, text string) bool {
	if f.classifier == nil || text == "" {
		return false
	}
	if f.quota != nil && f.quota.Exhausted() {
		return false
	}
	text = truncateRunes(text, f.textCap)

	reply, err := f.classifier.ClassifyText(ctx, fmt.Sprintf(classifyRubric, text))
	if err != nil {
		if f.quota != nil && f.quota.TripOnSignature(err.Error()) {
			return false
		}
		f.logger.Warn("contextual classification failed", "error", err)
		return false
	}
	return strings.Contains(strings.ToUpper(strings.TrimSpace(reply)), "EXCLUDE")
}

// truncateRunes caps s at max characters without splitting a rune.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
