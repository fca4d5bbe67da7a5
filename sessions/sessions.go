// Package sessions tracks live editing sessions. Each session owns exactly
// one editor, and all mutating calls on it run under the session lock, so
// operations on one canvas are atomic with respect to each other.
package sessions

import (
	"fmt"
	"sync"
	"time"

	"drawdeck/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Session is one user's live editing state for one canvas.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	mu         sync.Mutex
	editor     *core.Editor
	lastActive time.Time
}

// Do runs fn against the session's editor while holding the session lock.
// The editor must not escape fn.
func (s *Session) Do(fn func(*core.Editor) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	return fn(s.editor)
}

// LastActive returns the time of the most recent operation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Manager is the registry of open sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Open starts a session for a user on the given canvas and returns it.
// The editor takes its own copy of the canvas.
func (m *Manager) Open(userID string, canvas *core.Canvas, historyDepth int) *Session {
	now := time.Now()
	session := &Session{
		ID:         ulid.Make().String(),
		UserID:     userID,
		CreatedAt:  now,
		editor:     core.NewEditorWithDepth(canvas, historyDepth),
		lastActive: now,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"session_id": session.ID,
		"user_id":    userID,
		"canvas_id":  canvas.ID,
	}).Info("Editing session opened")
	return session
}

// Get returns the session with the given ID, scoped to its owner.
func (m *Manager) Get(id, userID string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok || session.UserID != userID {
		return nil, fmt.Errorf("session with id %s not found", id)
	}
	return session, nil
}

// Close ends a session. The canvas it edited is discarded; persistence
// happens through an explicit save before closing.
func (m *Manager) Close(id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok || session.UserID != userID {
		return fmt.Errorf("session with id %s not found", id)
	}

	delete(m.sessions, id)
	logrus.WithFields(logrus.Fields{
		"session_id": id,
		"user_id":    userID,
	}).Info("Editing session closed")
	return nil
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
