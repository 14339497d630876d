package session

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// StorageKey is the fixed key the session token is persisted under.
const StorageKey = "dental_chat_session"

// Manager owns the session token of the widget.
//
// The token is generated on the client and only reported to the backend.
// Persistence is best-effort: store failures are logged and otherwise ignored.
type Manager struct {
	mu       sync.RWMutex
	store    Store
	token    string
	newToken func() string
	log      *slog.Logger
}

// NewManager creates a Manager backed by store. Call Activate before use.
func NewManager(store Store) *Manager {
	return &Manager{
		store:    store,
		newToken: uuid.NewString,
		log:      slog.Default().With("component", "session"),
	}
}

// Activate restores the persisted token or generates and persists a new one.
// Calling it again is a no-op.
func (m *Manager) Activate() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" {
		return m.token
	}

	stored, ok, err := m.store.Get(StorageKey)
	if err != nil {
		m.log.Warn("failed to read stored session", "error", err)
	}
	if ok && stored != "" {
		m.token = stored
		return m.token
	}

	m.token = m.newToken()
	m.persistLocked()
	return m.token
}

// Current returns the active token, activating the manager if needed.
func (m *Manager) Current() string {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()

	if token == "" {
		return m.Activate()
	}
	return token
}

// Adopt switches to a token handed out by the backend. Empty or unchanged
// tokens are ignored. It reports whether the token changed.
func (m *Manager) Adopt(token string) bool {
	if token == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if token == m.token {
		return false
	}
	m.log.Info("adopting server session", "previous", m.token, "session_id", token)
	m.token = token
	m.persistLocked()
	return true
}

// Rotate replaces the token with a fresh one and returns it.
func (m *Manager) Rotate() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.newToken()
	for next == m.token {
		next = m.newToken()
	}
	m.token = next
	m.persistLocked()
	return m.token
}

func (m *Manager) persistLocked() {
	if err := m.store.Set(StorageKey, m.token); err != nil {
		m.log.Warn("failed to persist session", "error", err)
	}
}
