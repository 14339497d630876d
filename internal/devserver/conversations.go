package devserver

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionRequired is returned when a turn arrives without a session id.
var ErrSessionRequired = errors.New("session id is required")

// Turn is one exchange stored per chat call.
type Turn struct {
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Intent    string    `json:"intent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversations keeps per-session chat history in memory.
type Conversations struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

// NewConversations 创建内存会话存储
func NewConversations() *Conversations {
	return &Conversations{turns: make(map[string][]Turn)}
}

// Record appends a turn to the session history.
func (c *Conversations) Record(_ context.Context, sessionID string, turn Turn) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	c.mu.Lock()
	c.turns[sessionID] = append(c.turns[sessionID], turn)
	c.mu.Unlock()
	return nil
}

// History returns the most recent turns of a session, oldest first.
func (c *Conversations) History(_ context.Context, sessionID string, limit int) []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	turns := c.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	copied := make([]Turn, len(turns))
	copy(copied, turns)
	return copied
}
