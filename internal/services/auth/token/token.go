// Package token issues and verifies the signed session tokens handed to
// clients after a successful challenge handshake.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/platform/errors"
)

// DefaultIssuer identifies tokens minted by this service.
const DefaultIssuer = "nostr-auth-middleware"

// Config carries the signing material and token lifetime.
type Config struct {
	Secret string        `env:"NOSTR_AUTH_JWT_SECRET"`
	Issuer string        `env:"NOSTR_AUTH_JWT_ISSUER" envDefault:"nostr-auth-middleware"`
	TTL    time.Duration `env:"NOSTR_AUTH_TOKEN_TTL" envDefault:"1h"`
}

// Claims are the registered JWT claims plus the authenticated pubkey.
type Claims struct {
	jwt.RegisteredClaims
	Pubkey string `json:"pubkey"`
}

// Issuer mints and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  func() time.Time
}

// NewIssuer builds an Issuer from config. The signing secret is required.
func NewIssuer(config Config) (*Issuer, error) {
	if strings.TrimSpace(config.Secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	issuer := strings.TrimSpace(config.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{
		secret: []byte(config.Secret),
		issuer: issuer,
		ttl:    ttl,
		clock:  time.Now,
	}, nil
}

// WithClock overrides the issuer's clock, for tests.
func (i *Issuer) WithClock(clock func() time.Time) *Issuer {
	i.clock = clock
	return i
}

// TTL reports the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a token for pubkey with the given jti and returns it with
// its expiry.
func (i *Issuer) Issue(pubkey, jti string) (string, time.Time, error) {
	if strings.TrimSpace(pubkey) == "" {
		return "", time.Time{}, fmt.Errorf("pubkey is required")
	}
	if strings.TrimSpace(jti) == "" {
		return "", time.Time{}, fmt.Errorf("jti is required")
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   pubkey,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Pubkey: pubkey,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token, returning its claims.
//
// Expired tokens map to CodeTokenExpired; every other failure maps to
// CodeTokenInvalid so callers never leak parser detail to clients.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, apperrors.New(apperrors.CodeTokenInvalid, "token is required")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return i.clock() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Wrap(apperrors.CodeTokenExpired, "token is expired", err)
		}
		return nil, apperrors.Wrap(apperrors.CodeTokenInvalid, "token is invalid", err)
	}
	if claims.Pubkey == "" || claims.ID == "" {
		return nil, apperrors.New(apperrors.CodeTokenInvalid, "token is missing required claims")
	}
	return claims, nil
}
