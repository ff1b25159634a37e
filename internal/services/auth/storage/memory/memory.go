// Package memory provides an in-process store for single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/storage"
)

// Store keeps challenges and sessions in process memory.
//
// It is the default backend for development and for applications that
// run a single middleware instance; state does not survive restarts.
type Store struct {
	mu         sync.RWMutex
	challenges map[string]storage.Challenge
	sessions   map[string]storage.Session
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		challenges: make(map[string]storage.Challenge),
		sessions:   make(map[string]storage.Session),
	}
}

// PutChallenge stores a pending challenge.
func (s *Store) PutChallenge(ctx context.Context, challenge storage.Challenge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(challenge.ID) == "" {
		return fmt.Errorf("challenge id is required")
	}
	if strings.TrimSpace(challenge.Value) == "" {
		return fmt.Errorf("challenge value is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challenge.ID] = challenge
	return nil
}

// GetChallenge fetches a pending challenge.
func (s *Store) GetChallenge(ctx context.Context, id string) (storage.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return storage.Challenge{}, err
	}
	if strings.TrimSpace(id) == "" {
		return storage.Challenge{}, fmt.Errorf("challenge id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	challenge, ok := s.challenges[id]
	if !ok {
		return storage.Challenge{}, storage.ErrNotFound
	}
	return challenge, nil
}

// DeleteChallenge removes a challenge, reporting ErrNotFound when it is
// already gone so callers observe at-most-once consumption.
func (s *Store) DeleteChallenge(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("challenge id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.challenges[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.challenges, id)
	return nil
}

// DeleteExpiredChallenges removes challenges whose window has closed.
func (s *Store) DeleteExpiredChallenges(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, challenge := range s.challenges {
		if !challenge.ExpiresAt.After(now) {
			delete(s.challenges, id)
		}
	}
	return nil
}

// PutSession stores an issued token session.
func (s *Store) PutSession(ctx context.Context, session storage.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(session.Pubkey) == "" {
		return fmt.Errorf("session pubkey is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

// GetSession fetches a session by jti.
func (s *Store) GetSession(ctx context.Context, id string) (storage.Session, error) {
	if err := ctx.Err(); err != nil {
		return storage.Session{}, err
	}
	if strings.TrimSpace(id) == "" {
		return storage.Session{}, fmt.Errorf("session id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return storage.Session{}, storage.ErrNotFound
	}
	return session, nil
}

// RevokeSession marks a session revoked. Revoking twice keeps the first
// revocation time.
func (s *Store) RevokeSession(ctx context.Context, id string, revokedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	if session.RevokedAt == nil {
		value := revokedAt
		session.RevokedAt = &value
		s.sessions[id] = session
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if !session.ExpiresAt.After(now) {
			delete(s.sessions, id)
		}
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
