// Package auth orchestrates the Nostr challenge-response handshake:
// issuing challenges, verifying signed authentication events, and
// minting the session tokens that result.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/platform/errors"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/platform/id"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/event"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/serverkey"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/storage"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/token"
)

// Config carries the handshake timing knobs.
type Config struct {
	// ChallengeTTL is how long an issued challenge stays redeemable.
	ChallengeTTL time.Duration `env:"NOSTR_AUTH_CHALLENGE_TTL" envDefault:"5m"`
	// MaxSkew bounds how far an event's created_at may drift from server time.
	MaxSkew time.Duration `env:"NOSTR_AUTH_TIMESTAMP_SKEW" envDefault:"5m"`
}

// IssuedChallenge is a pending challenge handed to a client.
type IssuedChallenge struct {
	// ID names the challenge for the verify call.
	ID string
	// Value is the random challenge the client must echo in a signed event.
	Value string
	// Event is the server-signed kind-22242 event carrying the challenge,
	// so clients can verify who they are authenticating against.
	Event *nostr.Event
	// ExpiresAt closes the redemption window.
	ExpiresAt time.Time
}

// VerifiedSession is the result of a successful handshake.
type VerifiedSession struct {
	Token     string
	Pubkey    string
	Npub      string
	ExpiresAt time.Time
}

// SessionInfo describes an authenticated session for introspection.
type SessionInfo struct {
	Pubkey    string
	Npub      string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service implements the challenge-response handshake.
type Service struct {
	store    storage.Store
	tokens   *token.Issuer
	identity *serverkey.Identity
	config   Config

	clock       func() time.Time
	idGenerator func() (string, error)
	tracer      trace.Tracer
}

// NewService wires the handshake over its storage, token issuer, and
// server identity.
func NewService(store storage.Store, tokens *token.Issuer, identity *serverkey.Identity, config Config) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if identity == nil {
		return nil, fmt.Errorf("server identity is required")
	}
	if config.ChallengeTTL <= 0 {
		config.ChallengeTTL = 5 * time.Minute
	}
	if config.MaxSkew <= 0 {
		config.MaxSkew = event.DefaultMaxSkew
	}
	return &Service{
		store:       store,
		tokens:      tokens,
		identity:    identity,
		config:      config,
		clock:       time.Now,
		idGenerator: id.NewID,
		tracer:      otel.Tracer("services/auth"),
	}, nil
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	if s.tokens != nil {
		s.tokens.WithClock(clock)
	}
	return s
}

// ServerPubkey reports the pubkey the service signs challenge events with.
func (s *Service) ServerPubkey() string {
	return s.identity.PublicKey()
}

// CreateChallenge issues a fresh challenge bound to pubkey.
//
// The pubkey may be 64 hex characters or an npub string; the stored
// binding is always hex.
func (s *Service) CreateChallenge(ctx context.Context, pubkey string) (IssuedChallenge, error) {
	ctx, span := s.tracer.Start(ctx, "auth.CreateChallenge")
	defer span.End()

	normalized, err := NormalizePubkey(pubkey)
	if err != nil {
		return IssuedChallenge{}, err
	}
	span.SetAttributes(attribute.String("auth.pubkey", normalized))

	challengeID, err := s.idGenerator()
	if err != nil {
		return IssuedChallenge{}, fmt.Errorf("generate challenge id: %w", err)
	}
	value, err := randomChallengeValue()
	if err != nil {
		return IssuedChallenge{}, err
	}

	now := s.clock().UTC()
	expiresAt := now.Add(s.config.ChallengeTTL)

	evt := &nostr.Event{
		CreatedAt: nostr.Timestamp(now.Unix()),
		Kind:      nostr.KindClientAuthentication,
		Tags:      nostr.Tags{nostr.Tag{event.ChallengeTagName, value}},
	}
	if err := s.identity.Sign(evt); err != nil {
		return IssuedChallenge{}, err
	}

	err = s.store.PutChallenge(ctx, storage.Challenge{
		ID:        challengeID,
		Pubkey:    normalized,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return IssuedChallenge{}, fmt.Errorf("store challenge: %w", err)
	}

	return IssuedChallenge{
		ID:        challengeID,
		Value:     value,
		Event:     evt,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyChallenge redeems a challenge with a signed authentication event
// and mints a session token.
//
// Consumption is at most once: the challenge row is deleted before the
// token is minted, and a concurrent redeemer losing that delete observes
// CodeChallengeNotFound.
func (s *Service) VerifyChallenge(ctx context.Context, challengeID string, evt *nostr.Event) (VerifiedSession, error) {
	ctx, span := s.tracer.Start(ctx, "auth.VerifyChallenge")
	defer span.End()

	if strings.TrimSpace(challengeID) == "" {
		return VerifiedSession{}, apperrors.New(apperrors.CodeChallengeNotFound, "challenge id is required")
	}

	challenge, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return VerifiedSession{}, apperrors.New(apperrors.CodeChallengeNotFound, "challenge not found")
		}
		return VerifiedSession{}, fmt.Errorf("load challenge: %w", err)
	}

	now := s.clock().UTC()
	if !now.Before(challenge.ExpiresAt) {
		// The row is dead either way; best-effort removal keeps the table small.
		_ = s.store.DeleteChallenge(ctx, challengeID)
		return VerifiedSession{}, apperrors.New(apperrors.CodeChallengeExpired, "challenge is expired")
	}

	pubkey, err := event.Validate(evt, event.Options{
		Challenge: challenge.Value,
		MaxSkew:   s.config.MaxSkew,
		Now:       s.clock,
	})
	if err != nil {
		return VerifiedSession{}, err
	}
	if pubkey != challenge.Pubkey {
		return VerifiedSession{}, apperrors.New(apperrors.CodePubkeyMismatch, "event pubkey does not match the challenged pubkey")
	}

	if err := s.store.DeleteChallenge(ctx, challengeID); err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return VerifiedSession{}, apperrors.New(apperrors.CodeChallengeNotFound, "challenge was already consumed")
		}
		return VerifiedSession{}, fmt.Errorf("consume challenge: %w", err)
	}

	sessionID, err := s.idGenerator()
	if err != nil {
		return VerifiedSession{}, fmt.Errorf("generate session id: %w", err)
	}
	signed, expiresAt, err := s.tokens.Issue(pubkey, sessionID)
	if err != nil {
		return VerifiedSession{}, fmt.Errorf("issue token: %w", err)
	}

	err = s.store.PutSession(ctx, storage.Session{
		ID:        sessionID,
		Pubkey:    pubkey,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return VerifiedSession{}, fmt.Errorf("store session: %w", err)
	}

	npub, err := nip19.EncodePublicKey(pubkey)
	if err != nil {
		return VerifiedSession{}, fmt.Errorf("encode npub: %w", err)
	}

	span.SetAttributes(attribute.String("auth.pubkey", pubkey))
	return VerifiedSession{
		Token:     signed,
		Pubkey:    pubkey,
		Npub:      npub,
		ExpiresAt: expiresAt,
	}, nil
}

// Authenticate validates a session token and returns its session info.
//
// Beyond signature and expiry, the token's jti must name a live,
// unrevoked session row.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (SessionInfo, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Authenticate")
	defer span.End()

	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return SessionInfo{}, err
	}

	session, err := s.store.GetSession(ctx, claims.ID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return SessionInfo{}, apperrors.New(apperrors.CodeTokenInvalid, "token does not name a known session")
		}
		return SessionInfo{}, fmt.Errorf("load session: %w", err)
	}
	if session.RevokedAt != nil {
		return SessionInfo{}, apperrors.New(apperrors.CodeSessionRevoked, "session has been revoked")
	}
	if session.Pubkey != claims.Pubkey {
		return SessionInfo{}, apperrors.New(apperrors.CodeTokenInvalid, "token pubkey does not match its session")
	}

	npub, err := nip19.EncodePublicKey(session.Pubkey)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("encode npub: %w", err)
	}

	return SessionInfo{
		Pubkey:    session.Pubkey,
		Npub:      npub,
		SessionID: session.ID,
		IssuedAt:  session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Revoke invalidates the session behind a token. Revocation is
// idempotent; a second call succeeds without moving the revocation time.
func (s *Service) Revoke(ctx context.Context, tokenString string) error {
	ctx, span := s.tracer.Start(ctx, "auth.Revoke")
	defer span.End()

	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return err
	}
	if err := s.store.RevokeSession(ctx, claims.ID, s.clock().UTC()); err != nil {
		// A session already purged by cleanup has nothing left to revoke.
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return nil
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// StartCleanup purges expired challenges and sessions every interval
// until ctx is canceled.
func (s *Service) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := s.clock().UTC()
				_ = s.store.DeleteExpiredChallenges(ctx, now)
				_ = s.store.DeleteExpiredSessions(ctx, now)
			}
		}
	}()
}

// NormalizePubkey accepts a pubkey as 64 hex characters or an npub
// string and returns the hex form.
func NormalizePubkey(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", apperrors.New(apperrors.CodePubkeyInvalid, "pubkey is required")
	}

	if strings.HasPrefix(trimmed, "npub1") {
		prefix, value, err := nip19.Decode(trimmed)
		if err != nil || prefix != "npub" {
			return "", apperrors.New(apperrors.CodePubkeyInvalid, "pubkey npub form is invalid")
		}
		return value.(string), nil
	}

	lowered := strings.ToLower(trimmed)
	if len(lowered) != 64 {
		return "", apperrors.New(apperrors.CodePubkeyInvalid, "pubkey must be 64 hex characters or npub")
	}
	if _, err := hex.DecodeString(lowered); err != nil {
		return "", apperrors.New(apperrors.CodePubkeyInvalid, "pubkey must be 64 hex characters or npub")
	}
	return lowered, nil
}

// randomChallengeValue draws 32 random bytes and encodes them as hex.
func randomChallengeValue() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate challenge value: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
