// Package ai is the client for the generative content-description service.
// The service proposes clip boundaries from segment content; this client
// owns retry and backoff around the call, not the service.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"clipforge/config"
)

// APIError represents a non-2xx response from the description service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("content description failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors and throttling. Other client
// errors are considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Result is the outcome delivered by the asynchronous call form.
type Result struct {
	Text string
	Err  error
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Media  string `json:"media"`
	Model  string `json:"model"`
}

type generateResponse struct {
	Text string `json:"text"`
}

type Client struct {
	baseURL     string
	token       string
	model       string
	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration
	httpClient  *http.Client
}

func NewClient(cfg *config.Config) *Client {
	c := &Client{
		baseURL:     cfg.AIBaseURL,
		token:       cfg.AIToken,
		model:       cfg.AIModel,
		maxAttempts: cfg.AIMaxAttempts,
		backoffMin:  cfg.AIBackoffMin,
		backoffMax:  cfg.AIBackoffMax,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 5
	}
	if c.backoffMin <= 0 {
		c.backoffMin = 5 * time.Second
	}
	if c.backoffMax <= 0 {
		c.backoffMax = 60 * time.Second
	}
	return c
}

// Model returns the configured default model name.
func (c *Client) Model() string {
	return c.model
}

// Generate performs one synchronous call. An empty model falls back to the
// configured default; an empty response text is an error.
func (c *Client) Generate(ctx context.Context, prompt, mediaRef, model string) (string, error) {
	if c.baseURL == "" {
		return "", errors.New("content-description service is not configured")
	}
	if model == "" {
		model = c.model
	}

	body, err := json.Marshal(generateRequest{Prompt: prompt, Media: mediaRef, Model: model})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/describe", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: firstChars(string(respBody), 512)}
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if result.Text == "" {
		return "", errors.New("content-description response was empty")
	}
	return result.Text, nil
}

// GenerateWithRetry wraps Generate with exponential backoff. Only retryable
// service errors and transport failures are retried; a permanent error
// returns immediately.
func (c *Client) GenerateWithRetry(ctx context.Context, prompt, mediaRef, model string) (string, error) {
	var lastErr error
	delay := c.backoffMin

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		text, err := c.Generate(ctx, prompt, mediaRef, model)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
			return "", err
		}
		if ctx.Err() != nil {
			return "", err
		}
		if attempt == c.maxAttempts {
			break
		}

		log.Printf("Content description attempt %d/%d failed: %v, retrying in %s", attempt, c.maxAttempts, err, delay)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.backoffMax {
			delay = c.backoffMax
		}
	}
	return "", fmt.Errorf("content description failed after %d attempts: %w", c.maxAttempts, lastErr)
}

// GenerateAsync is the asynchronous call form: it runs the retrying call in
// the background and delivers exactly one Result.
func (c *Client) GenerateAsync(ctx context.Context, prompt, mediaRef, model string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		text, err := c.GenerateWithRetry(ctx, prompt, mediaRef, model)
		out <- Result{Text: text, Err: err}
		close(out)
	}()
	return out
}

func firstChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
