package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/chat"
)

// ArchivedConversation is what the save endpoint stores.
type ArchivedConversation struct {
	SessionID string              `json:"session_id"`
	Timestamp string              `json:"timestamp"`
	Messages  []chat.SavedMessage `json:"messages"`
}

// Archive persists finished conversations.
type Archive interface {
	Store(ctx context.Context, conv ArchivedConversation) error
}

// MemoryArchive keeps conversations in memory.
type MemoryArchive struct {
	mu    sync.Mutex
	items []ArchivedConversation
}

// Store appends conv.
func (a *MemoryArchive) Store(_ context.Context, conv ArchivedConversation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, conv)
	return nil
}

// List returns stored conversations in arrival order.
func (a *MemoryArchive) List() []ArchivedConversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ArchivedConversation, len(a.items))
	copy(out, a.items)
	return out
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// DirArchive writes each conversation to its own JSON file, laid out like the
// object keys of the hosted store: <dir>/<session>/<timestamp>.json.
type DirArchive struct {
	Dir string
}

// Store writes conv under Dir.
func (a DirArchive) Store(_ context.Context, conv ArchivedConversation) error {
	session := unsafeName.ReplaceAllString(conv.SessionID, "_")
	if session == "" {
		session = "unknown"
	}
	dir := filepath.Join(a.Dir, session)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	name := time.Now().UTC().Format("20060102T150405.000000000") + ".json"
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write conversation: %w", err)
	}
	return nil
}
