// Package session carries the signed-in user through the core.
//
// Auth itself lives in the hosted backend; this package only holds the
// "current user" handle and notifies subscribers on auth-state transitions.
// Managers receive a *Session at construction instead of reading ambient
// global state, so a signed-out session is always an explicit, observable
// condition.
package session

import (
	"sync"
)

// User is the minimal identity the core needs.
type User struct {
	ID string `json:"id"`
}

// Session is a shared, mutable auth-state handle. Safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	user      *User
	nextToken int
	listeners map[int]func(*User)
}

// New returns a signed-out session.
func New() *Session {
	return &Session{listeners: make(map[int]func(*User))}
}

// NewSignedIn returns a session for the given user id. Handy in tools and
// tests where the auth handshake already happened elsewhere.
func NewSignedIn(userID string) *Session {
	s := New()
	s.SetUser(&User{ID: userID})
	return s
}

// User returns the current user, or ok=false when signed out.
func (s *Session) User() (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, false
	}
	u := *s.user
	return &u, true
}

// UserID returns the current user id, or ok=false when signed out.
func (s *Session) UserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return "", false
	}
	return s.user.ID, true
}

// SetUser installs the signed-in user (nil signs out) and notifies
// subscribers of the transition.
func (s *Session) SetUser(u *User) {
	s.mu.Lock()
	if u != nil {
		cp := *u
		s.user = &cp
	} else {
		s.user = nil
	}
	listeners := make([]func(*User), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(u)
	}
}

// SignOut clears the current user.
func (s *Session) SignOut() {
	s.SetUser(nil)
}

// OnChange subscribes to auth-state transitions. The returned cancel func
// removes the subscription.
func (s *Session) OnChange(fn func(*User)) func() {
	s.mu.Lock()
	token := s.nextToken
	s.nextToken++
	s.listeners[token] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, token)
		s.mu.Unlock()
	}
}
