package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"book-companion/internal/domain"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	defaultTimeout = 30 * time.Second
	retryBackoff   = 500 * time.Millisecond
)

// messagesRequest is the request shape for the Messages endpoint.
type messagesRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	System    string           `json:"system"`
	Messages  []domain.RawTurn `json:"messages"`
}

// messagesResponse is the subset of the Messages response the relay consumes.
type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// CompletionRequest is a single upstream completion call.
type CompletionRequest struct {
	Model     string
	MaxTokens int
	System    string
	Messages  []domain.RawTurn
}

// Completion is the first generated text segment plus token accounting.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("anthropic: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused client for the Anthropic Messages API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithRetries sets how many extra attempts are made after a retryable failure
// (transport error, 429 or 5xx). Zero disables retries.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		if n < 0 {
			n = 0
		}
		c.maxRetries = n
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		backoff:    retryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func messagesURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/messages"
	}
	return base + "/v1/messages"
}

// Complete sends one Messages request and returns the first text segment.
func (c *Client) Complete(ctx context.Context, apiKey string, in CompletionRequest) (Completion, error) {
	if strings.TrimSpace(apiKey) == "" {
		return Completion{}, errors.New("anthropic: api key must not be empty")
	}
	if in.Model == "" {
		return Completion{}, errors.New("anthropic: model must not be empty")
	}
	messages := in.Messages
	if messages == nil {
		messages = []domain.RawTurn{}
	}

	body, err := json.Marshal(messagesRequest{
		Model:     in.Model,
		MaxTokens: in.MaxTokens,
		System:    in.System,
		Messages:  messages,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	url := messagesURL(c.baseURL)

	var raw []byte
	for attempt := 0; ; attempt++ {
		raw, err = c.post(ctx, url, apiKey, body)
		if err == nil || attempt >= c.maxRetries || !retryable(err) {
			break
		}
		select {
		case <-ctx.Done():
			return Completion{}, fmt.Errorf("anthropic: request failed: %w", ctx.Err())
		case <-time.After(time.Duration(attempt+1) * c.backoff):
		}
	}
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic: request failed: %w", err)
	}

	var payload messagesResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return Completion{}, fmt.Errorf("anthropic: decode response: %w", decErr)
	}
	if len(payload.Content) == 0 {
		return Completion{}, errors.New("anthropic: no content in response")
	}

	return Completion{
		Text:         payload.Content[0].Text,
		InputTokens:  payload.Usage.InputTokens,
		OutputTokens: payload.Usage.OutputTokens,
	}, nil
}

func (c *Client) post(ctx context.Context, url, apiKey string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return true
}
