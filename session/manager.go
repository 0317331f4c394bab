package session

import (
	"sync"

	"go.uber.org/zap"
)

// Manager maintains the registry of all connected viewer sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session // userID → session
	logger   *zap.Logger
}

// NewManager creates a session Manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[int64]*Session),
		logger:   logger,
	}
}

// Register adds a session. If a previous session exists for the same user,
// it is closed first (handles duplicate login / reconnect).
func (m *Manager) Register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.sessions[s.UserID]; ok {
		old.Close()
		m.logger.Info("duplicate session displaced", zap.Int64("user_id", s.UserID))
	}
	m.sessions[s.UserID] = s
	m.logger.Info("viewer session registered", zap.Int64("user_id", s.UserID))
}

// Unregister removes the session for a user.
func (m *Manager) Unregister(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	m.logger.Info("viewer session unregistered", zap.Int64("user_id", userID))
}

// Get returns the session for a user, or nil if not connected.
func (m *Manager) Get(userID int64) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[userID]
}

// IsOnline reports whether a user has a live session.
func (m *Manager) IsOnline(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[userID]
	return ok
}

// Count returns the number of connected sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
