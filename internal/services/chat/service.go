package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/kanban-assistant/internal/board"
	"github.com/benvon/kanban-assistant/internal/database"
	"github.com/benvon/kanban-assistant/internal/services/ai"
	"github.com/benvon/kanban-assistant/internal/services/executor"
	"github.com/benvon/kanban-assistant/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxIdle is how long an untouched session is kept in memory
const DefaultMaxIdle = 30 * time.Minute

// Service manages the server-side chat session of each user. Sessions live
// in memory only and start over with the greeting after eviction or restart.
type Service struct {
	store    database.TaskStore
	provider ai.Provider
	executor *executor.Executor
	chatLog  session.ChatLogger
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
	now      func() time.Time
}

type entry struct {
	session      *session.Session
	lastActivity time.Time
}

// NewService creates a chat service. chatLog may be nil.
func NewService(store database.TaskStore, provider ai.Provider, chatLog session.ChatLogger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		provider: provider,
		executor: executor.New(store, logger),
		chatLog:  chatLog,
		logger:   logger,
		sessions: make(map[uuid.UUID]*entry),
		now:      time.Now,
	}
}

// GetOrCreateSession returns the user's session, loading the board on first use
func (s *Service) GetOrCreateSession(ctx context.Context, userID uuid.UUID) (*session.Session, error) {
	if sess := s.lookup(userID); sess != nil {
		return sess, nil
	}

	state := board.NewState(s.store, userID)
	if err := state.Reconcile(ctx); err != nil {
		return nil, fmt.Errorf("failed to load board: %w", err)
	}
	opts := []session.Option{session.WithLogger(s.logger)}
	if s.chatLog != nil {
		opts = append(opts, session.WithChatLogger(s.chatLog))
	}
	created := session.New(state, s.provider, s.executor, opts...)

	s.mu.Lock()
	defer s.mu.Unlock()
	// another request may have created it while the board loaded
	if e, ok := s.sessions[userID]; ok {
		e.lastActivity = s.now()
		return e.session, nil
	}
	s.sessions[userID] = &entry{session: created, lastActivity: s.now()}
	return created, nil
}

// Session returns the user's session if one is open
func (s *Service) Session(userID uuid.UUID) (*session.Session, bool) {
	sess := s.lookup(userID)
	return sess, sess != nil
}

func (s *Service) lookup(userID uuid.UUID) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	e.lastActivity = s.now()
	return e.session
}

// ApplyDelta forwards a mutation made outside the chat to the user's open
// session. It is a no-op when the user has no session.
func (s *Service) ApplyDelta(userID uuid.UUID, delta board.Delta) {
	s.mu.RLock()
	e, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		e.session.ApplyDelta(delta)
	}
}

// CloseSession drops the user's session
func (s *Service) CloseSession(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// EvictIdle drops sessions untouched for longer than maxIdle, skipping any
// with a turn in flight. It returns the number evicted.
func (s *Service) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for userID, e := range s.sessions {
		if e.lastActivity.After(cutoff) || e.session.Busy() {
			continue
		}
		delete(s.sessions, userID)
		evicted++
	}
	return evicted
}

// Len returns the number of open sessions
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RunJanitor evicts idle sessions every interval until ctx is cancelled
func (s *Service) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 {
		return
	}
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(maxIdle); n > 0 {
				s.logger.Info("chat_sessions_evicted", zap.Int("count", n), zap.Int("remaining", s.Len()))
			}
		}
	}
}
