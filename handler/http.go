package handler

import (
	"io"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"book-companion/internal/usecase"
)

const maxBodyBytes = 1 << 20

// ServeHTTP adapts a plain HTTP request into the same path the Lambda runtime uses.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("read chat request body", "err", err)
		writeResponse(w, jsonResponse(http.StatusInternalServerError, correlationID(flatHeaders(r.Header)), errorResponse{Error: usecase.MessageInternal}))
		return
	}

	resp, _ := h.Handle(r.Context(), events.APIGatewayProxyRequest{
		HTTPMethod: r.Method,
		Path:       r.URL.Path,
		Headers:    flatHeaders(r.Header),
		Body:       string(body),
	})
	writeResponse(w, resp)
}

// Router exposes the relay for local runs outside Lambda.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/api/chat", h)
	return r
}

func flatHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func writeResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
