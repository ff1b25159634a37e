// Package storage defines persistence contracts for challenges and sessions.
package storage

import (
	"context"
	"time"

	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// Challenge is a single-use authentication challenge bound to a pubkey.
type Challenge struct {
	ID        string
	Pubkey    string
	Value     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Session records an issued token so it can be introspected and revoked.
// ID is the token's jti claim.
type Session struct {
	ID        string
	Pubkey    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// ChallengeStore persists pending authentication challenges.
//
// DeleteChallenge must return ErrNotFound when the record is already
// gone; verification relies on that to consume a challenge at most once
// under concurrent submissions.
type ChallengeStore interface {
	PutChallenge(ctx context.Context, challenge Challenge) error
	GetChallenge(ctx context.Context, id string) (Challenge, error)
	DeleteChallenge(ctx context.Context, id string) error
	DeleteExpiredChallenges(ctx context.Context, now time.Time) error
}

// SessionStore persists issued token sessions.
type SessionStore interface {
	PutSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	RevokeSession(ctx context.Context, id string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

// Store combines the per-record stores a backend must provide.
type Store interface {
	ChallengeStore
	SessionStore
}
