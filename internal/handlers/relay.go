package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/benvon/kanban-assistant/internal/api"
	logpkg "github.com/benvon/kanban-assistant/internal/logger"
	"github.com/benvon/kanban-assistant/internal/request"
	"github.com/benvon/kanban-assistant/internal/services/ai"
	"github.com/benvon/kanban-assistant/internal/stream"
	"github.com/benvon/kanban-assistant/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RelayPath is the chat relay endpoint
const RelayPath = "/functions/v1/kanban-chat"

// RelayHandler forwards a chat turn to the gateway with the tool schema and
// board prompt attached. It keeps no state between calls.
type RelayHandler struct {
	provider ai.Provider
	logger   *zap.Logger
}

// NewRelayHandler creates a new relay handler
func NewRelayHandler(provider ai.Provider, logger *zap.Logger) *RelayHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayHandler{provider: provider, logger: logger}
}

// RegisterRoutes registers the relay route
func (h *RelayHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc(RelayPath, h.Relay).Methods("POST")
}

// Relay answers with a chat-completion shaped JSON body, or with an event
// stream when the request asks for one. Gateway failures map to 429, 402 or
// 500 with an {"error": "..."} body.
func (h *RelayHandler) Relay(w http.ResponseWriter, r *http.Request) {
	var req api.RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status := http.StatusBadRequest
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
		}
		respondRelayError(w, status, "invalid request body")
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondRelayError(w, http.StatusBadRequest, "validation failed: "+validation.FirstError(err))
		return
	}

	ctx := h.logContext(r)
	if req.Stream {
		h.relayStream(ctx, w, req)
		return
	}

	completion, err := h.provider.Complete(ctx, req.AIMessages(), req.BoardContext)
	if err != nil {
		h.logFailure(ctx, err)
		respondRelayError(w, ai.StatusCode(err), relayErrorMessage(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(api.NewRelayResponse(completion)); err != nil {
		h.logger.Warn("relay_response_write_failed", zap.Error(err))
	}
}

func (h *RelayHandler) relayStream(ctx context.Context, w http.ResponseWriter, req api.RelayRequest) {
	sw := stream.NewWriter(w)
	completion, err := h.provider.Stream(ctx, req.AIMessages(), req.BoardContext, sw.WriteDelta)
	if err != nil {
		h.logFailure(ctx, err)
		if !sw.Started() {
			respondRelayError(w, ai.StatusCode(err), relayErrorMessage(err))
			return
		}
		// headers are gone; report in-band and terminate
		_ = sw.WriteError(ai.StatusCode(err), relayErrorMessage(err))
		_ = sw.Done()
		return
	}

	if err := sw.WriteToolCalls(completion.ToolCalls); err != nil {
		h.logger.Warn("relay_stream_write_failed", zap.Error(err))
		return
	}
	if err := sw.Done(); err != nil {
		h.logger.Warn("relay_stream_write_failed", zap.Error(err))
	}
}

func (h *RelayHandler) logContext(r *http.Request) context.Context {
	ctx := r.Context()
	if user := request.UserFromContext(r); user != nil {
		ctx = ai.WithUserID(ctx, user.ID.String())
	}
	if id := request.RequestID(ctx); id != "" {
		ctx = ai.WithRequestID(ctx, id)
	}
	return ctx
}

func (h *RelayHandler) logFailure(ctx context.Context, err error) {
	h.logger.Warn("relay_request_failed",
		zap.String("user_id", ai.ExtractUserID(ctx)),
		zap.Int("status_code", ai.StatusCode(err)),
		logpkg.Error(err),
	)
}

// relayErrorMessage is the client-facing text for a gateway failure. Upstream
// detail stays in the logs.
func relayErrorMessage(err error) string {
	switch {
	case errors.Is(err, ai.ErrRateLimited):
		return ai.ErrRateLimited.Error()
	case errors.Is(err, ai.ErrQuotaExhausted):
		return ai.ErrQuotaExhausted.Error()
	case ai.IsContextError(err):
		return "gateway timed out"
	default:
		return "gateway error"
	}
}

func respondRelayError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.RelayErrorResponse{Error: message})
}
