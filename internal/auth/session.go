package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoSession is returned for an unknown or ended session token
var ErrNoSession = errors.New("no such session")

// Session is an authenticated user's access to their data partition
type Session struct {
	Token   string    `json:"token"`
	Email   string    `json:"email"`
	Started time.Time `json:"started"`
}

// Sessions issues tokens after a successful verification
type Sessions struct {
	mu       sync.RWMutex
	verifier Verifier
	sessions map[string]Session
	now      func() time.Time
}

// NewSessions creates a session registry backed by verifier
func NewSessions(verifier Verifier) *Sessions {
	return &Sessions{
		verifier: verifier,
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// Login verifies the credentials and starts a session
func (s *Sessions) Login(email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if err := s.verifier.Verify(email, password); err != nil {
		return Session{}, err
	}

	sess := Session{Token: uuid.NewString(), Email: email, Started: s.now()}

	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
	return sess, nil
}

// Get returns the session for token
func (s *Sessions) Get(token string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// Logout ends the session for token
func (s *Sessions) Logout(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return ErrNoSession
	}
	delete(s.sessions, token)
	return nil
}
