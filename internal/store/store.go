// Package store keeps the per-session chat transcript served by /chat/history.
package store

import (
	"context"
	"errors"
	"time"
)

const (
	RoleUser = "user"
	RoleBot  = "bot"
)

var ErrInvalidSession = errors.New("invalid session id")

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptStore appends chat lines per session and returns them oldest
// first. Implementations keep at most their configured number of lines.
type TranscriptStore interface {
	Append(ctx context.Context, sessionID string, msg Message) error
	Get(ctx context.Context, sessionID string) ([]Message, error)
}

func stamp(msg Message) Message {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return msg
}

func lastN(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
