package quiz

import (
	"sync"

	"github.com/openlearn-labs/quizengine/internal/grading"
	"github.com/openlearn-labs/quizengine/internal/warn"
)

// SessionManager hands out one Session per user for the life of the process.
// Sessions are the only cross-request state the engine keeps; everything else
// lives in the store.
type SessionManager struct {
	store  Store
	grader grading.Grader
	warns  warn.Recorder

	mu     sync.Mutex
	byUser map[string]*Session
}

func NewSessionManager(store Store, grader grading.Grader, warns warn.Recorder) *SessionManager {
	return &SessionManager{
		store:  store,
		grader: grader,
		warns:  warns,
		byUser: map[string]*Session{},
	}
}

// For returns the user's session, creating it on first use.
func (m *SessionManager) For(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUser[userID]
	if !ok {
		s = NewSession(m.store, m.grader, m.warns, userID)
		m.byUser[userID] = s
	}
	return s
}
