package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"book-companion/internal/domain"
	"book-companion/internal/integrations/anthropic"
	"book-companion/internal/repository"
)

const (
	DefaultModel     = "claude-3-5-sonnet-20241022"
	DefaultMaxTokens = 2048
)

type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

type LLMClient interface {
	Complete(ctx context.Context, apiKey string, in anthropic.CompletionRequest) (anthropic.Completion, error)
}

type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec domain.UsageRecord) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// RelayService forwards a caller's conversation to the completion API with
// the fixed system instruction attached. It holds no per-request state.
type RelayService struct {
	keys      KeySource
	llm       LLMClient
	usage     UsageRecorder
	logger    *slog.Logger
	model     string
	maxTokens int
}

type RelayInput struct {
	Body          []byte
	CorrelationID string
}

type RelayOutput struct {
	Message string
}

// relayRequest is the body shape accepted from callers.
type relayRequest struct {
	Messages json.RawMessage `json:"messages"`
}

func NewRelayService(keys KeySource, llm LLMClient, usage UsageRecorder, logger *slog.Logger, model string, maxTokens int) (*RelayService, error) {
	if keys == nil {
		return nil, errors.New("usecase: key source must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if usage == nil {
		usage = repository.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &RelayService{
		keys:      keys,
		llm:       llm,
		usage:     usage,
		logger:    logger,
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (s *RelayService) Relay(ctx context.Context, in RelayInput) (RelayOutput, error) {
	log := s.logger.With("correlation_id", in.CorrelationID)

	req, err := decodeRelayRequest(in.Body)
	if err != nil {
		log.Error("chat request decode failed", "err", err)
		return RelayOutput{}, newError(ErrorInternal, "invalid_body", err)
	}

	apiKey, err := s.keys.APIKey(ctx)
	if err != nil {
		log.Error("api key lookup failed", "err", err)
		return RelayOutput{}, newError(ErrorNotConfigured, "api_key_lookup_error", err)
	}
	if apiKey == "" {
		log.Error("api key not configured")
		return RelayOutput{}, newError(ErrorNotConfigured, "api_key_missing", nil)
	}

	turns, err := coerceTurns(req.Messages)
	if err != nil {
		log.Error("chat request messages invalid", "err", err)
		return RelayOutput{}, newError(ErrorInternal, "invalid_messages", err)
	}

	started := now()
	completion, err := s.llm.Complete(ctx, apiKey, anthropic.CompletionRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    SystemPrompt(),
		Messages:  turns,
	})
	latency := now().Sub(started)

	if err != nil {
		if status, ok := upstreamStatusCode(err); ok {
			log.Error("upstream completion error", "status", status, "err", err)
			s.recordUsage(ctx, log, in.CorrelationID, status, anthropic.Completion{}, started, latency)
			return RelayOutput{}, &Error{Code: ErrorUpstream, Reason: "upstream_status", Status: status, Err: err}
		}
		log.Error("upstream completion failed", "err", err)
		s.recordUsage(ctx, log, in.CorrelationID, http.StatusInternalServerError, anthropic.Completion{}, started, latency)
		return RelayOutput{}, newError(ErrorInternal, "upstream_call_failed", err)
	}

	s.recordUsage(ctx, log, in.CorrelationID, http.StatusOK, completion, started, latency)
	return RelayOutput{Message: completion.Text}, nil
}

func (s *RelayService) recordUsage(ctx context.Context, log *slog.Logger, correlationID string, status int, c anthropic.Completion, started time.Time, latency time.Duration) {
	rec := repository.NewUsageRecord(started, correlationID, s.model, status, c.InputTokens, c.OutputTokens, latency)
	if err := s.usage.RecordUsage(ctx, rec); err != nil {
		log.Error("usage record failed", "err", err)
	}
}

func decodeRelayRequest(body []byte) (relayRequest, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return relayRequest{}, fmt.Errorf("usecase: decode body: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return relayRequest{}, errors.New("usecase: body is null")
	}
	var req relayRequest
	if raw[0] != '{' {
		return req, nil
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return relayRequest{}, fmt.Errorf("usecase: decode body: %w", err)
	}
	return req, nil
}

// coerceTurns maps every element of messages to {role, content} without
// validating either value. Non-object elements carry neither field.
func coerceTurns(messages json.RawMessage) ([]domain.RawTurn, error) {
	messages = bytes.TrimSpace(messages)
	if len(messages) == 0 || messages[0] != '[' {
		return nil, errors.New("usecase: messages must be an array")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(messages, &elems); err != nil {
		return nil, fmt.Errorf("usecase: decode messages: %w", err)
	}

	turns := make([]domain.RawTurn, 0, len(elems))
	for i, elem := range elems {
		elem = bytes.TrimSpace(elem)
		if isNull(elem) {
			return nil, fmt.Errorf("usecase: message %d is null", i)
		}
		var turn domain.RawTurn
		if elem[0] == '{' {
			if err := json.Unmarshal(elem, &turn); err != nil {
				return nil, fmt.Errorf("usecase: decode message %d: %w", i, err)
			}
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var now = time.Now
