// Package session holds the authenticated user for the orchestration layer.
// Sign-in itself happens elsewhere; this only records the outcome.
package session

import (
	"sync"

	"github.com/adstudio/studio/internal/domain"
)

var _ domain.Identity = (*Session)(nil)

// Session is the current user context. The zero value is signed out.
type Session struct {
	mu     sync.RWMutex
	userID string
}

// New returns a session for userID. An empty id is signed out.
func New(userID string) *Session {
	return &Session{userID: userID}
}

// UserID returns the authenticated user id, or "" when signed out.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SignIn records the authenticated user.
func (s *Session) SignIn(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

// SignOut clears the user.
func (s *Session) SignOut() {
	s.SignIn("")
}

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool {
	return s.UserID() != ""
}
