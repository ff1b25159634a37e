// Package redis implements challenge and session persistence over Redis,
// for deployments running more than one middleware instance.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/storage"
)

const (
	challengeKeyPrefix = "nostr-auth:challenge:"
	sessionKeyPrefix   = "nostr-auth:session:"
)

// Store persists challenges and sessions as JSON values with TTLs.
//
// Redis expiry does the cleanup work; DeleteExpiredChallenges and
// DeleteExpiredSessions are therefore no-ops.
type Store struct {
	client *redis.Client
}

// NewStore creates a store over an existing Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Open connects to Redis at addr and verifies the connection.
func Open(ctx context.Context, addr string) (*Store, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying Redis client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) ensureClient() error {
	if s == nil || s.client == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

type challengeRecord struct {
	ID        string    `json:"id"`
	Pubkey    string    `json:"pubkey"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionRecord struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// PutChallenge stores a pending challenge with a TTL matching its expiry.
func (s *Store) PutChallenge(ctx context.Context, challenge storage.Challenge) error {
	if err := s.ensureClient(); err != nil {
		return err
	}
	if strings.TrimSpace(challenge.ID) == "" {
		return fmt.Errorf("challenge id is required")
	}
	if strings.TrimSpace(challenge.Value) == "" {
		return fmt.Errorf("challenge value is required")
	}

	ttl := time.Until(challenge.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("challenge is already expired")
	}
	payload, err := json.Marshal(challengeRecord(challenge))
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}
	if err := s.client.Set(ctx, challengeKeyPrefix+challenge.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

// GetChallenge fetches a pending challenge.
func (s *Store) GetChallenge(ctx context.Context, id string) (storage.Challenge, error) {
	if err := s.ensureClient(); err != nil {
		return storage.Challenge{}, err
	}
	if strings.TrimSpace(id) == "" {
		return storage.Challenge{}, fmt.Errorf("challenge id is required")
	}

	payload, err := s.client.Get(ctx, challengeKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storage.Challenge{}, storage.ErrNotFound
		}
		return storage.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	var record challengeRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return storage.Challenge{}, fmt.Errorf("decode challenge: %w", err)
	}
	return storage.Challenge(record), nil
}

// DeleteChallenge removes a challenge. DEL's removed-key count makes the
// consume-once check atomic across instances.
func (s *Store) DeleteChallenge(ctx context.Context, id string) error {
	if err := s.ensureClient(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("challenge id is required")
	}

	removed, err := s.client.Del(ctx, challengeKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	if removed == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteExpiredChallenges is a no-op; Redis TTLs expire challenge keys.
func (s *Store) DeleteExpiredChallenges(ctx context.Context, now time.Time) error {
	return s.ensureClient()
}

// PutSession stores an issued token session with a TTL matching its expiry.
func (s *Store) PutSession(ctx context.Context, session storage.Session) error {
	if err := s.ensureClient(); err != nil {
		return err
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(session.Pubkey) == "" {
		return fmt.Errorf("session pubkey is required")
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session is already expired")
	}
	payload, err := json.Marshal(sessionRecord(session))
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession fetches a session by jti.
func (s *Store) GetSession(ctx context.Context, id string) (storage.Session, error) {
	if err := s.ensureClient(); err != nil {
		return storage.Session{}, err
	}
	if strings.TrimSpace(id) == "" {
		return storage.Session{}, fmt.Errorf("session id is required")
	}

	payload, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storage.Session{}, storage.ErrNotFound
		}
		return storage.Session{}, fmt.Errorf("get session: %w", err)
	}
	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return storage.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return storage.Session(record), nil
}

// RevokeSession marks a session revoked, keeping the first revocation
// time and the key's remaining TTL.
func (s *Store) RevokeSession(ctx context.Context, id string, revokedAt time.Time) error {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session.RevokedAt != nil {
		return nil
	}
	value := revokedAt
	session.RevokedAt = &value

	payload, err := json.Marshal(sessionRecord(session))
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+id, payload, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions is a no-op; Redis TTLs expire session keys.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	return s.ensureClient()
}

var _ storage.Store = (*Store)(nil)
