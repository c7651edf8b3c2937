// CLAUDE:SUMMARY HTTP client for the generative-analysis API: text, inline images, uploaded videos.
// Package genai implements the client for the generative analysis backend.
//
// The backend is treated as a black box with three capabilities: classify a
// text prompt, describe an image passed inline, and describe a video that was
// first uploaded to the provider's file store. Error messages keep the
// upstream body text intact so quota signatures stay matchable upstream.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/adveille/adveille/safeurl"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// DefaultModel is the model used for all analysis calls.
const DefaultModel = "gemini-2.0-flash"

// ErrMissingAPIKey is returned before any network call when no key is set.
var ErrMissingAPIKey = errors.New("genai: API key is not configured")

// ErrEmptyResponse is returned when the backend answers without any text.
var ErrEmptyResponse = errors.New("genai: empty response")

// Config configures the Client.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"-"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`

	// UploadPoll bounds the wait for an uploaded video to become ACTIVE.
	UploadPollInterval time.Duration `yaml:"upload_poll_interval"`
	UploadPollMax      int           `yaml:"upload_poll_max"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.UploadPollInterval <= 0 {
		c.UploadPollInterval = 2 * time.Second
	}
	if c.UploadPollMax <= 0 {
		c.UploadPollMax = 30
	}
}

// FileHandle references a video uploaded to the provider's file store.
type FileHandle struct {
	Name string `json:"name"` // "files/abc123"
	URI  string `json:"uri"`
}

// Client talks to the generative analysis API.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a Client. A nil logger falls back to slog.Default().
func New(cfg Config, logger *slog.Logger) *Client {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// --- wire types ---

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
	FileData   *fileData   `json:"file_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// --- operations ---

// ClassifyText submits a text prompt and returns the model's textual answer.
func (c *Client) ClassifyText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, []part{{Text: prompt}})
}

// AnalyzeImage submits image bytes inline with an analysis prompt.
func (c *Client) AnalyzeImage(ctx context.Context, data []byte, mimeType, prompt string) (string, error) {
	return c.generate(ctx, []part{
		{InlineData: &inlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		}},
		{Text: prompt},
	})
}

// UploadVideo pushes video bytes to the provider's file store and waits for
// the file to become ACTIVE (video processing is asynchronous server-side).
func (c *Client) UploadVideo(ctx context.Context, data []byte, mimeType string) (*FileHandle, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	uploadURL := fmt.Sprintf("%s/upload/v1beta/files?key=%s", c.config.BaseURL, c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("genai: new upload request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		File struct {
			Name  string `json:"name"`
			URI   string `json:"uri"`
			State string `json:"state"`
		} `json:"file"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("genai: decode upload: %w", err)
	}
	handle := &FileHandle{Name: resp.File.Name, URI: resp.File.URI}

	state := resp.File.State
	for i := 0; state == "PROCESSING" && i < c.config.UploadPollMax; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.config.UploadPollInterval):
		}
		state, err = c.fileState(ctx, handle.Name)
		if err != nil {
			return nil, err
		}
	}
	if state != "" && state != "ACTIVE" {
		return nil, fmt.Errorf("genai: uploaded file in state %s", state)
	}
	return handle, nil
}

// AnalyzeVideo submits a previously uploaded video with an analysis prompt.
func (c *Client) AnalyzeVideo(ctx context.Context, handle *FileHandle, mimeType, prompt string) (string, error) {
	if handle == nil || handle.URI == "" {
		return "", fmt.Errorf("genai: nil or empty file handle")
	}
	return c.generate(ctx, []part{
		{FileData: &fileData{MimeType: mimeType, FileURI: handle.URI}},
		{Text: prompt},
	})
}

// DeleteVideo removes an uploaded file from the provider's store.
func (c *Client) DeleteVideo(ctx context.Context, handle *FileHandle) error {
	if c.config.APIKey == "" {
		return ErrMissingAPIKey
	}
	if handle == nil || handle.Name == "" {
		return nil
	}
	deleteURL := fmt.Sprintf("%s/v1beta/%s?key=%s", c.config.BaseURL, handle.Name, c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return fmt.Errorf("genai: new delete request: %w", err)
	}
	_, err = c.do(req)
	return err
}

// --- internals ---

func (c *Client) generate(ctx context.Context, parts []part) (string, error) {
	if c.config.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	payload, err := json.Marshal(generateRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("genai: marshal request: %w", err)
	}

	genURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.config.BaseURL, c.config.Model, c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, genURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("genai: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("genai: decode response: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *Client) fileState(ctx context.Context, name string) (string, error) {
	stateURL := fmt.Sprintf("%s/v1beta/%s?key=%s", c.config.BaseURL, name, c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stateURL, nil)
	if err != nil {
		return "", fmt.Errorf("genai: new state request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	var resp struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("genai: decode file state: %w", err)
	}
	return resp.State, nil
}

// do executes a request and maps non-2xx statuses to errors that carry the
// status code and upstream body text.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("genai: http: %w", err)
	}
	defer resp.Body.Close()

	body, err := safeurl.LimitedReadAll(resp.Body, safeurl.MaxResponseBody)
	if err != nil {
		return nil, fmt.Errorf("genai: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s := strings.TrimSpace(string(body))
		if len(s) > 300 {
			s = s[:300]
		}
		return nil, fmt.Errorf("genai: http %d: %s", resp.StatusCode, s)
	}
	return body, nil
}
