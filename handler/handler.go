package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"book-companion/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type Relayer interface {
	Relay(ctx context.Context, in usecase.RelayInput) (usecase.RelayOutput, error)
}

type chatResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the chat relay endpoint for API Gateway proxy events.
type Handler struct {
	relay  Relayer
	logger *slog.Logger
}

func NewHandler(relay Relayer, logger *slog.Logger) (*Handler, error) {
	if relay == nil {
		return nil, errors.New("handler: relay must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{relay: relay, logger: logger}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	corrID := correlationID(req.Headers)

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("chat relay panic", "correlation_id", corrID, "panic", fmt.Sprint(r))
			resp = jsonResponse(http.StatusInternalServerError, corrID, errorResponse{Error: usecase.MessageInternal})
			err = nil
		}
	}()

	if req.HTTPMethod != http.MethodPost {
		return jsonResponse(http.StatusMethodNotAllowed, corrID, errorResponse{Error: usecase.MessageMethodNotAllowed}), nil
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, decErr := base64.StdEncoding.DecodeString(req.Body)
		if decErr != nil {
			h.logger.Error("chat request body not base64", "correlation_id", corrID, "err", decErr)
			return jsonResponse(http.StatusInternalServerError, corrID, errorResponse{Error: usecase.MessageInternal}), nil
		}
		body = decoded
	}

	out, relayErr := h.relay.Relay(ctx, usecase.RelayInput{Body: body, CorrelationID: corrID})
	if relayErr != nil {
		var ucErr *usecase.Error
		if errors.As(relayErr, &ucErr) {
			return jsonResponse(ucErr.HTTPStatus(), corrID, errorResponse{Error: ucErr.PublicMessage()}), nil
		}
		h.logger.Error("chat relay failed", "correlation_id", corrID, "err", relayErr)
		return jsonResponse(http.StatusInternalServerError, corrID, errorResponse{Error: usecase.MessageInternal}), nil
	}

	return jsonResponse(http.StatusOK, corrID, chatResponse{Message: out.Message}), nil
}

func jsonResponse(status int, corrID string, payload any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"` + usecase.MessageInternal + `"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}
}

// correlationID returns the caller's correlation header, matched
// case-insensitively, or a fresh ID.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return newCorrelationID()
}

var newCorrelationID = func() string {
	return uuid.NewString()
}
