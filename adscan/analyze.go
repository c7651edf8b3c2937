// CLAUDE:SUMMARY Media analyzer adapter: cache-first download and generative image/video analysis.
package adscan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/adveille/adveille/mediacache"
	"github.com/adveille/adveille/safeurl"
)

// imageAnalysisPrompt is the fixed instruction for image creatives. The
// analysis output is Russian-language structured text consumed verbatim by
// the contextual filter.
const imageAnalysisPrompt = `
Проанализируй это изображение из рекламы Facebook и извлеки ВСЮ фактическую информацию. ОТВЕЧАЙ СТРОГО НА РУССКОМ ЯЗЫКЕ без воды.

**Общее визуальное описание:**
- Полное описание того, что показано на изображении

**Текстовые элементы:**
- Определи и транскрибируй ВЕСЬ текст, присутствующий на изображении
- Классифицируй каждый текстовый элемент как:
  * "Заголовок-хук"
  * "Ценностное предложение"
  * "Призыв к действию (CTA)"
  * "Реферальная программа"
  * "Отказ от ответственности"
  * "Название бренда"
  * "Другое"

**Описание людей:**
- Для каждого видимого человека: возрастной диапазон, пол, внешность, одежда, поза, выражение лица, обстановка

**Элементы бренда:**
- Присутствующие логотипы
- Снимки продуктов
- Цвета бренда

**Композиция и макет:**
- Структура макета
- Визуальная иерархия
- Позиционирование элементов
- Наложение текста vs отдельные текстовые области

**Цвета и визуальный стиль:**
- Доминирующие цвета
- Цвет/тип фона
- Стиль фотографии

**Технические и индикаторы целевой аудитории:**
- Формат изображения
- Читаемость текста
- Визуальные подсказки о целевой аудитории
- Детали обстановки/окружения

**Сообщение и тема:**
- Какую историю или сообщение передает визуал
- Эмоциональный тон и настроение
- Индикаторы маркетинговой стратегии

Извлеки ВСЮ эту информацию комплексно.
`

// videoAnalysisPrompt is the fixed instruction for video creatives.
const videoAnalysisPrompt = `
Проанализируй это видео из рекламы Facebook и предоставь подробный структурированный анализ в следующем формате. ОТВЕЧАЙ СТРОГО НА РУССКОМ ЯЗЫКЕ.

**АНАЛИЗ СЦЕН:**
Проанализируй видео по сценам.

**ОБЩИЙ АНАЛИЗ ВИДЕО:**

**Формат рекламы:**
- Формат, соотношение сторон, длительность

**Примечательные ракурсы:**
- Ракурсы камеры

**Общее сообщение:**
- Основное сообщение, целевая аудитория

**Анализ хука:**
- Тип хука, описание

**Аудио и Музыка:**
- Транскрипция, стиль музыки

**Элементы бренда:**
- Логотипы, продукты

Выведи полный подробный отчет.
`

// imageContentMarkers define the accepted image content-type family.
var imageContentMarkers = []string{"image/", "jpeg", "jpg", "png", "gif", "webp"}

// MediaFetcher downloads a media asset, returning its bytes and content type.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// httpFetcher is the production fetcher: SSRF-validated GET with a bounded
// body read.
type httpFetcher struct {
	client *http.Client
}

func newHTTPFetcher(timeout time.Duration) *httpFetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *httpFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := safeurl.ValidateURL(rawURL); err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("adscan: new media request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("adscan: fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("adscan: fetch media: http %d", resp.StatusCode)
	}
	data, err := safeurl.LimitedReadAll(resp.Body, safeurl.MaxResponseBody)
	if err != nil {
		return nil, "", fmt.Errorf("adscan: read media body: %w", err)
	}
	return data, strings.ToLower(resp.Header.Get("Content-Type")), nil
}

// Analyzer routes an ad's media to the image or video analysis pipeline.
// Downloaded assets always land in the cache, even when the generative call
// is skipped or fails, so a retry never re-downloads.
type Analyzer struct {
	fetcher MediaFetcher
	cache   MediaStore
	ai      AnalysisClient
	quota   *QuotaTracker
	logger  *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithFetcher overrides the media fetcher (tests).
func WithFetcher(f MediaFetcher) AnalyzerOption {
	return func(a *Analyzer) { a.fetcher = f }
}

// NewAnalyzer wires the analyzer. ai may be nil: assets are then cached but
// never analyzed.
func NewAnalyzer(cache MediaStore, ai AnalysisClient, quota *QuotaTracker, logger *slog.Logger, opts ...AnalyzerOption) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if quota == nil {
		quota = NewQuotaTracker(logger)
	}
	a := &Analyzer{
		fetcher: newHTTPFetcher(0),
		cache:   cache,
		ai:      ai,
		quota:   quota,
		logger:  logger,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze runs the media pipeline for one ad. Every failure is captured into
// AnalysisError rather than returned, so one broken asset never stops the
// batch. Quota-shaped error text trips the session tracker as a side effect.
func (a *Analyzer) Analyze(ctx context.Context, ad *Ad) *MediaAnalysis {
	out := &MediaAnalysis{}

	if a.quota.Exhausted() {
		out.AnalysisError = "analysis skipped: quota previously exhausted in this session"
		return out
	}
	if strings.TrimSpace(ad.MediaURL) == "" {
		out.AnalysisError = "no media URL provided"
		return out
	}

	meta := mediacache.Meta{AdID: ad.AdID}
	switch strings.ToUpper(ad.MediaType) {
	case "IMAGE", "DCO":
		res, _, err := a.AnalyzeImageURL(ctx, ad.MediaURL, meta)
		if err != nil {
			out.AnalysisError = err.Error()
			a.quota.TripOnSignature(err.Error())
			return out
		}
		out.ImageAnalysis = res
	case "VIDEO":
		res, _, err := a.AnalyzeVideoURL(ctx, ad.MediaURL, meta)
		if err != nil {
			out.AnalysisError = err.Error()
			a.quota.TripOnSignature(err.Error())
			return out
		}
		out.VideoAnalysis = res
	}
	return out
}

// AnalyzeImageURL analyzes one image asset: cache hit with attached analysis
// short-circuits; otherwise the asset is downloaded (or re-read from the
// cached payload), cached, and submitted for analysis. The cached flag is
// true when the analysis itself came from the cache.
func (a *Analyzer) AnalyzeImageURL(ctx context.Context, rawURL string, meta mediacache.Meta) (*AnalysisResult, bool, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, false, ErrNoMediaURL
	}

	if res, ok, err := a.cachedAnalysis(ctx, rawURL); err != nil {
		return nil, false, err
	} else if ok {
		return res, true, nil
	}

	meta.MediaType = mediacache.MediaImage
	data, contentType, err := a.loadAsset(ctx, rawURL, meta, true)
	if err != nil {
		return nil, false, err
	}

	if a.quota.Exhausted() {
		return nil, false, fmt.Errorf("adscan: quota exhausted, image analysis skipped")
	}
	if a.ai == nil {
		return nil, false, fmt.Errorf("adscan: analysis backend not configured")
	}

	raw, err := a.ai.AnalyzeImage(ctx, data, contentType, imageAnalysisPrompt)
	if err != nil {
		a.quota.TripOnSignature(err.Error())
		return nil, false, err
	}
	res := &AnalysisResult{RawAnalysis: raw}
	if err := a.cache.AttachAnalysis(ctx, rawURL, res); err != nil {
		a.logger.Warn("attach image analysis failed", "url", rawURL, "error", err)
	}
	return res, false, nil
}

// AnalyzeVideoURL analyzes one video asset: cache-first, then download,
// upload to a remote handle, analyze, and delete the handle best-effort.
func (a *Analyzer) AnalyzeVideoURL(ctx context.Context, rawURL string, meta mediacache.Meta) (*AnalysisResult, bool, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, false, ErrNoMediaURL
	}

	if res, ok, err := a.cachedAnalysis(ctx, rawURL); err != nil {
		return nil, false, err
	} else if ok {
		return res, true, nil
	}

	meta.MediaType = mediacache.MediaVideo
	data, contentType, err := a.loadAsset(ctx, rawURL, meta, false)
	if err != nil {
		return nil, false, err
	}

	if a.quota.Exhausted() {
		return nil, false, fmt.Errorf("adscan: quota exhausted, video analysis skipped")
	}
	if a.ai == nil {
		return nil, false, fmt.Errorf("adscan: analysis backend not configured")
	}

	handle, err := a.ai.UploadVideo(ctx, data, contentType)
	if err != nil {
		a.quota.TripOnSignature(err.Error())
		return nil, false, err
	}
	raw, err := a.ai.AnalyzeVideo(ctx, handle, contentType, videoAnalysisPrompt)
	if delErr := a.ai.DeleteVideo(ctx, handle); delErr != nil {
		a.logger.Warn("remote video cleanup failed", "handle", handle.Name, "error", delErr)
	}
	if err != nil {
		a.quota.TripOnSignature(err.Error())
		return nil, false, err
	}
	res := &AnalysisResult{RawAnalysis: raw}
	if err := a.cache.AttachAnalysis(ctx, rawURL, res); err != nil {
		a.logger.Warn("attach video analysis failed", "url", rawURL, "error", err)
	}
	return res, false, nil
}

// cachedAnalysis returns a previously attached analysis for the URL, if any.
func (a *Analyzer) cachedAnalysis(ctx context.Context, url string) (*AnalysisResult, bool, error) {
	entry, err := a.cache.Get(ctx, url)
	if err != nil {
		return nil, false, err
	}
	if entry == nil || len(entry.Analysis) == 0 {
		return nil, false, nil
	}
	var res AnalysisResult
	if err := json.Unmarshal(entry.Analysis, &res); err != nil {
		return nil, false, fmt.Errorf("adscan: cached analysis corrupt for %s: %w", url, err)
	}
	return &res, true, nil
}

// loadAsset returns the asset bytes: from the cached payload when present,
// otherwise downloaded and put into the cache. checkImage enforces the image
// content-type family on fresh downloads.
func (a *Analyzer) loadAsset(ctx context.Context, url string, meta mediacache.Meta, checkImage bool) ([]byte, string, error) {
	if entry, err := a.cache.Get(ctx, url); err != nil {
		return nil, "", err
	} else if entry != nil {
		data, err := os.ReadFile(entry.FilePath)
		if err != nil {
			return nil, "", fmt.Errorf("adscan: read cached payload: %w", err)
		}
		return data, entry.ContentType, nil
	}

	data, contentType, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, "", err
	}
	if checkImage && !isImageContentType(contentType) {
		return nil, "", fmt.Errorf("%w: content type %q is not an image", ErrUnsupportedMedia, contentType)
	}
	if _, err := a.cache.Put(ctx, url, data, contentType, meta); err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

func isImageContentType(contentType string) bool {
	low := strings.ToLower(contentType)
	for _, marker := range imageContentMarkers {
		if strings.Contains(low, marker) {
			return true
		}
	}
	return false
}
