package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/benvon/kanban-assistant/internal/api"
	logpkg "github.com/benvon/kanban-assistant/internal/logger"
	"github.com/benvon/kanban-assistant/internal/services/ai"
	"github.com/benvon/kanban-assistant/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ChatSessions owns the per-user chat sessions
type ChatSessions interface {
	GetOrCreateSession(ctx context.Context, userID uuid.UUID) (*session.Session, error)
	Session(userID uuid.UUID) (*session.Session, bool)
}

// ChatHandler runs assistant turns against the caller's board
type ChatHandler struct {
	sessions ChatSessions
	logger   *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(sessions ChatSessions, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/chat", h.GetHistory).Methods("GET")
	r.HandleFunc("/chat", h.ResetChat).Methods("DELETE")
	r.HandleFunc("/chat/messages", h.SendMessage).Methods("POST")
}

// GetHistory returns the conversation, opening a session if needed
func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	sess, err := h.sessions.GetOrCreateSession(r.Context(), user.ID)
	if err != nil {
		h.respondTurnError(w, user.ID, err)
		return
	}

	respondJSON(w, http.StatusOK, api.ChatHistoryResponse{
		Messages: sess.History(),
		Busy:     sess.Busy(),
	})
}

// SendMessage runs one turn: relay, tool execution, then board reconciliation
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req api.ChatMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := ai.WithUserID(r.Context(), user.ID.String())
	sess, err := h.sessions.GetOrCreateSession(ctx, user.ID)
	if err != nil {
		h.respondTurnError(w, user.ID, err)
		return
	}

	turn, err := sess.Send(ctx, req.Content)
	if err != nil {
		h.respondTurnError(w, user.ID, err)
		return
	}

	respondJSON(w, http.StatusOK, api.ChatTurnResponse{
		Reply:   turn.Reply,
		Notices: turn.Notices,
		Board:   sess.State().Summary(),
	})
}

// ResetChat drops the conversation back to the greeting
func (h *ChatHandler) ResetChat(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	if sess, ok := h.sessions.Session(user.ID); ok {
		if err := sess.Reset(); err != nil {
			h.respondTurnError(w, user.ID, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) respondTurnError(w http.ResponseWriter, userID uuid.UUID, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Message cannot be empty")
	case errors.Is(err, session.ErrTurnInFlight):
		respondJSONError(w, http.StatusConflict, "Conflict", "A chat turn is already in progress")
	case errors.Is(err, ai.ErrRateLimited):
		respondJSONError(w, http.StatusTooManyRequests, "Too Many Requests", ai.UserMessage(err))
	case errors.Is(err, ai.ErrQuotaExhausted):
		respondJSONError(w, http.StatusPaymentRequired, "Payment Required", ai.UserMessage(err))
	case errors.Is(err, ai.ErrUpstream), ai.IsContextError(err):
		h.logger.Warn("chat_turn_failed",
			zap.String("user_id", userID.String()),
			logpkg.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", ai.UserMessage(err))
	default:
		h.logger.Error("chat_board_unavailable",
			zap.String("user_id", userID.String()),
			logpkg.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load board")
	}
}
