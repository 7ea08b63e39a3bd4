package store

import (
	"context"
	"fmt"

	"cryptosight-backend/internal/db"
)

// DatabaseStore keeps transcripts in the chat_messages table.
type DatabaseStore struct {
	db          *db.DB
	maxMessages int
}

func NewDatabaseStore(database *db.DB, maxMessages int) *DatabaseStore {
	return &DatabaseStore{db: database, maxMessages: maxMessages}
}

func (ds *DatabaseStore) Append(ctx context.Context, sessionID string, msg Message) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	msg = stamp(msg)
	query := `
		INSERT INTO chat_messages (session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := ds.db.ExecContext(ctx, query, sessionID, msg.Role, msg.Content, msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

// Get returns the newest maxMessages lines, oldest first.
func (ds *DatabaseStore) Get(ctx context.Context, sessionID string) ([]Message, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	limit := ds.maxMessages
	if limit <= 0 {
		limit = 1000
	}
	query := `
		SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at
			FROM chat_messages
			WHERE session_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC
	`
	rows, err := ds.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
