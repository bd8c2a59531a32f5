package client

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

const defaultRelayTimeout = 60 * time.Second

// Reply is the relay's answer: either Message or a relay-reported Error.
type Reply struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Relay sends the full conversation and returns the relay's reply. A non-nil
// error means the relay could not be reached or did not answer with JSON.
type Relay interface {
	Send(ctx context.Context, turns []domain.Turn) (Reply, error)
}

type relayRequest struct {
	Messages []domain.Turn `json:"messages"`
}

// HTTPRelay calls the chat relay endpoint over HTTP.
type HTTPRelay struct {
	url        string
	httpClient *http.Client
}

type HTTPOption func(*HTTPRelay)

func WithHTTPClient(httpClient *http.Client) HTTPOption {
	return func(r *HTTPRelay) {
		r.httpClient = httpClient
	}
}

func NewHTTPRelay(url string, opts ...HTTPOption) (*HTTPRelay, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("client: relay url must not be empty")
	}
	r := &HTTPRelay{
		url:        url,
		httpClient: &http.Client{Timeout: defaultRelayTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Send posts {messages} and decodes the JSON reply whatever the status code;
// the relay reports failures in the body.
func (r *HTTPRelay) Send(ctx context.Context, turns []domain.Turn) (Reply, error) {
	if turns == nil {
		turns = []domain.Turn{}
	}
	body, err := json.Marshal(relayRequest{Messages: turns})
	if err != nil {
		return Reply{}, fmt.Errorf("client: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("client: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.httpClient.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("client: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Reply{}, fmt.Errorf("client: read response body: %w", err)
	}

	var reply Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return Reply{}, fmt.Errorf("client: decode response (status %d): %w", res.StatusCode, err)
	}
	return reply, nil
}
