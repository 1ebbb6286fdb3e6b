package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/google/uuid"
)

// ChatLogRepository appends chat messages to the audit log
type ChatLogRepository struct {
	db *DB
}

// NewChatLogRepository creates a new chat log repository
func NewChatLogRepository(db *DB) *ChatLogRepository {
	return &ChatLogRepository{db: db}
}

// Append stores one chat message
func (r *ChatLogRepository) Append(ctx context.Context, entry *models.ChatLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var actionJSON []byte
	if entry.Action != nil {
		var err error
		actionJSON, err = json.Marshal(entry.Action)
		if err != nil {
			return fmt.Errorf("failed to marshal action: %w", err)
		}
	}

	query := `
		INSERT INTO chat_messages (id, user_id, role, content, action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Role,
		entry.Content,
		actionJSON,
		entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}

	return nil
}
