package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gfearing/fearings-services/internal/logger"
	"github.com/gfearing/fearings-services/internal/model"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBaseURL is the public generative-language endpoint
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultModel is the model used when none is configured
	DefaultModel = "gemini-2.0-flash"

	// DefaultTimeout applies when no timeout is configured
	DefaultTimeout = 60 * time.Second

	// candidateTextPath locates the first candidate's text in a reply
	candidateTextPath = "candidates.0.content.parts.0.text"

	// maxErrorBody bounds how much of an error body is kept for logs
	maxErrorBody = 2048
)

// Config configures the Gemini client
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Client is the HTTP client for the Gemini generateContent API
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

// NewClient creates a Gemini client; empty fields fall back to defaults
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		tracer: otel.Tracer("gemini-client"),
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
}

// GenerateContent sends prompt once and returns the first candidate's text.
// Without an API key it fails with model.ErrMissingAPIKey before any I/O.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", model.ErrMissingAPIKey
	}

	ctx, span := c.tracer.Start(ctx, "gemini.generate_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", c.model),
		attribute.Int("gemini.prompt_length", len(prompt)),
	)

	text, status, err := c.doRequest(ctx, prompt)
	if status > 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetStatus(codes.Ok, "")
	return text, nil
}

// doRequest executes the POST and extracts the candidate text
func (c *Client) doRequest(ctx context.Context, prompt string) (string, int, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	})
	if err != nil {
		return "", 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, fmt.Errorf("%w: %v", model.ErrTimeout, err)
		}
		return "", 0, fmt.Errorf("%w: %v", model.ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("%w: read body: %v", model.ErrTransport, err)
	}

	logger.Get(ctx).Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(respBody)).
		Dur("latency", time.Since(start)).
		Str("model", c.model).
		Msg("Gemini response received")

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// OK
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", resp.StatusCode, fmt.Errorf("%w (status %d)", model.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", resp.StatusCode, model.ErrRateLimited
	default:
		return "", resp.StatusCode, fmt.Errorf("%w: status %d: %s",
			model.ErrTransport, resp.StatusCode, truncate(string(respBody), maxErrorBody))
	}

	text, err := ExtractCandidateText(respBody)
	return text, resp.StatusCode, err
}

// ExtractCandidateText pulls the first candidate's text out of a generateContent reply
func ExtractCandidateText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: reply is not valid JSON", model.ErrMalformedResponse)
	}

	if n := gjson.GetBytes(body, "candidates.#").Int(); n == 0 {
		reason := gjson.GetBytes(body, "promptFeedback.blockReason").String()
		if reason != "" {
			return "", fmt.Errorf("%w (blocked: %s)", model.ErrEmptyResponse, reason)
		}
		return "", model.ErrEmptyResponse
	}

	text := gjson.GetBytes(body, candidateTextPath)
	if !text.Exists() || text.Type != gjson.String {
		return "", model.ErrEmptyResponse
	}
	return text.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
