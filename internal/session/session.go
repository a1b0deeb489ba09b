// Package session holds the acting identity for the process. The manager is
// an explicit dependency with a defined lifecycle: set on login, cleared on
// logout. It outlives any single submission.
package session

import "sync"

// Session is the acting user: a wallet address and the profile it publishes as.
type Session struct {
	Address   string `json:"address"`
	ProfileID string `json:"profile_id"`
	Handle    string `json:"handle,omitempty"`
}

// Manager owns the current session. Safe for concurrent use; the publish
// workflow only ever reads it.
type Manager struct {
	mu      sync.RWMutex
	current *Session
}

// NewManager creates an empty session manager (logged out).
func NewManager() *Manager {
	return &Manager{}
}

// Login replaces the current session.
func (m *Manager) Login(address, profileID, handle string) Session {
	s := Session{Address: address, ProfileID: profileID, Handle: handle}
	m.mu.Lock()
	m.current = &s
	m.mu.Unlock()
	return s
}

// Logout clears the current session.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

// Current returns the active session, or false when logged out.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}
