package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/benvon/kanban-assistant/internal/board"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/services/ai"
	"github.com/benvon/kanban-assistant/internal/services/executor"
	"go.uber.org/zap"
)

// Greeting opens every session. Sessions are never rebuilt from the chat log.
const Greeting = "Hi! I'm your board assistant. Ask me about your tasks, or tell me what to add, change or remove."

const fallbackReply = "Sorry, I didn't get an answer. Please try again."

var (
	// ErrTurnInFlight is returned when a turn is sent while another one runs
	ErrTurnInFlight = errors.New("a chat turn is already in progress")
	// ErrEmptyMessage is returned for a blank user message
	ErrEmptyMessage = errors.New("message is empty")
)

// ChatLogger receives every message appended to a session
type ChatLogger interface {
	Record(ctx context.Context, entry models.ChatLogEntry) error
}

// Turn is the outcome of one completed chat turn
type Turn struct {
	Reply   models.ChatMessage
	Report  executor.Report
	Notices []string
}

// Session holds one user's conversation and board state. Turns run one at a
// time; a tool-call batch is executed in order and the board is reconciled
// before the turn returns, so the next prompt embeds the current listing.
type Session struct {
	busy sync.Mutex

	mu             sync.RWMutex
	history        []models.ChatMessage
	quotaExhausted bool
	stale          bool
	staleGen       uint64

	state    *board.State
	relay    ai.Provider
	executor *executor.Executor
	chatLog  ChatLogger
	logger   *zap.Logger
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithChatLogger records every appended message
func WithChatLogger(chatLog ChatLogger) Option {
	return func(s *Session) {
		s.chatLog = chatLog
	}
}

// New creates a session starting with the greeting
func New(state *board.State, relay ai.Provider, exec *executor.Executor, opts ...Option) *Session {
	s := &Session{
		history:  []models.ChatMessage{{Role: models.ChatRoleAssistant, Content: Greeting}},
		state:    state,
		relay:    relay,
		executor: exec,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the board state the session reads and reconciles
func (s *Session) State() *board.State {
	return s.state
}

// History returns a copy of the conversation
func (s *Session) History() []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ChatMessage(nil), s.history...)
}

// Busy reports whether a turn is running
func (s *Session) Busy() bool {
	if s.busy.TryLock() {
		s.busy.Unlock()
		return false
	}
	return true
}

// Reset drops the conversation back to the greeting. It fails while a turn runs.
func (s *Session) Reset() error {
	if !s.busy.TryLock() {
		return ErrTurnInFlight
	}
	defer s.busy.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = []models.ChatMessage{{Role: models.ChatRoleAssistant, Content: Greeting}}
	s.quotaExhausted = false
	return nil
}

// Reconcile refreshes the board from the store. It waits for a running turn.
func (s *Session) Reconcile(ctx context.Context) error {
	s.busy.Lock()
	defer s.busy.Unlock()
	return s.reconcile(ctx)
}

// ApplyDelta patches the board with a mutation made outside the chat. While
// a turn runs the delta is not applied; the board is marked stale and
// reconciled before the next turn instead.
func (s *Session) ApplyDelta(delta board.Delta) {
	if !s.busy.TryLock() {
		s.markStale()
		return
	}
	defer s.busy.Unlock()
	s.state.Apply(delta)
}

// Stale reports whether the board must be reloaded before the next turn
func (s *Session) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

func (s *Session) markStale() {
	s.mu.Lock()
	s.stale = true
	s.staleGen++
	s.mu.Unlock()
}

func (s *Session) reconcile(ctx context.Context) error {
	s.mu.RLock()
	gen := s.staleGen
	s.mu.RUnlock()

	if err := s.state.Reconcile(ctx); err != nil {
		s.markStale()
		return err
	}

	s.mu.Lock()
	// a delta that arrived during the reload may not be in it
	if s.staleGen == gen {
		s.stale = false
	}
	s.mu.Unlock()
	return nil
}

// Send runs one non-streaming turn
func (s *Session) Send(ctx context.Context, text string) (*Turn, error) {
	return s.run(ctx, text, func(ctx context.Context, msgs []ai.Message, bc models.BoardContext) (*ai.Completion, error) {
		return s.relay.Complete(ctx, msgs, bc)
	})
}

// SendStream runs one streaming turn, passing text fragments to onDelta as
// they arrive
func (s *Session) SendStream(ctx context.Context, text string, onDelta ai.DeltaFunc) (*Turn, error) {
	return s.run(ctx, text, func(ctx context.Context, msgs []ai.Message, bc models.BoardContext) (*ai.Completion, error) {
		return s.relay.Stream(ctx, msgs, bc, onDelta)
	})
}

type relayFunc func(ctx context.Context, msgs []ai.Message, bc models.BoardContext) (*ai.Completion, error)

func (s *Session) run(ctx context.Context, text string, call relayFunc) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if !s.busy.TryLock() {
		return nil, ErrTurnInFlight
	}
	defer s.busy.Unlock()

	s.mu.RLock()
	quotaExhausted, stale := s.quotaExhausted, s.stale
	s.mu.RUnlock()

	if quotaExhausted {
		return nil, ai.ErrQuotaExhausted
	}
	if stale {
		if err := s.reconcile(ctx); err != nil {
			return nil, err
		}
	}

	s.append(ctx, models.ChatMessage{Role: models.ChatRoleUser, Content: text})

	completion, err := call(ctx, s.outbound(), s.state.Context())
	if err != nil {
		if ai.IsQuotaError(err) {
			s.mu.Lock()
			s.quotaExhausted = true
			s.mu.Unlock()
		}
		s.logger.Warn("chat_turn_failed",
			zap.String("user_id", s.state.Owner().String()),
			zap.Error(err),
		)
		return nil, err
	}

	turn := &Turn{}
	if len(completion.ToolCalls) > 0 {
		turn.Report = s.executor.Execute(ctx, s.state, completion.ToolCalls)
		for _, failed := range turn.Report.Failures() {
			turn.Notices = append(turn.Notices, failed.Notice())
		}
		if turn.Report.Mutated() {
			if err := s.reconcile(ctx); err != nil {
				s.logger.Warn("board_reconcile_failed",
					zap.String("user_id", s.state.Owner().String()),
					zap.Error(err),
				)
				turn.Notices = append(turn.Notices, "Could not refresh the board. It will be reloaded before your next message.")
			}
		}
	}

	turn.Reply = models.ChatMessage{
		Role:    models.ChatRoleAssistant,
		Content: replyContent(completion.Content, turn),
		Action:  turn.Report.LastAction(),
	}
	s.append(ctx, turn.Reply)

	return turn, nil
}

func replyContent(content string, turn *Turn) string {
	if strings.TrimSpace(content) != "" {
		return content
	}
	if action := turn.Report.LastAction(); action != nil {
		return executor.Confirmation(*action)
	}
	if len(turn.Notices) > 0 {
		return strings.Join(turn.Notices, " ")
	}
	return fallbackReply
}

// outbound converts the most recent history into relay messages. The
// greeting is local and not sent, and the window starts at a user message.
func (s *Session) outbound() []ai.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.history
	if len(history) > 0 && history[0].Role == models.ChatRoleAssistant && history[0].Content == Greeting {
		history = history[1:]
	}
	if len(history) > ai.MaxMessages {
		history = history[len(history)-ai.MaxMessages:]
	}
	for len(history) > 0 && history[0].Role != models.ChatRoleUser {
		history = history[1:]
	}

	msgs := make([]ai.Message, 0, len(history))
	for _, msg := range history {
		msgs = append(msgs, ai.Message{Role: msg.Role, Content: msg.Content})
	}
	return msgs
}

func (s *Session) append(ctx context.Context, msg models.ChatMessage) {
	s.mu.Lock()
	s.history = append(s.history, msg)
	s.mu.Unlock()

	if s.chatLog == nil {
		return
	}
	entry := models.ChatLogEntry{
		UserID:  s.state.Owner(),
		Role:    msg.Role,
		Content: msg.Content,
		Action:  msg.Action,
	}
	if err := s.chatLog.Record(ctx, entry); err != nil {
		s.logger.Warn("chat_log_record_failed",
			zap.String("user_id", s.state.Owner().String()),
			zap.Error(fmt.Errorf("failed to record chat message: %w", err)),
		)
	}
}
