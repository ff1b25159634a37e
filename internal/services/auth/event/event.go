// Package event validates signed Nostr authentication events.
//
// An authentication event is a kind-22242 (NIP-42 client authentication)
// event whose tags carry the challenge issued by the server. Validation
// checks shape, challenge binding, and timestamp drift before recomputing
// the canonical event hash and verifying the Schnorr signature.
package event

import (
	"strconv"
	"time"

	"github.com/nbd-wtf/go-nostr"

	apperrors "github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/platform/errors"
)

// DefaultMaxSkew bounds how far an event's created_at may drift from
// server time in either direction.
const DefaultMaxSkew = 5 * time.Minute

// ChallengeTagName is the tag carrying the issued challenge value.
const ChallengeTagName = "challenge"

// Options controls validation of an authentication event.
type Options struct {
	// Challenge is the expected challenge tag value.
	Challenge string
	// MaxSkew overrides DefaultMaxSkew when positive.
	MaxSkew time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Validate checks evt against the issued challenge and returns the
// authenticated pubkey.
//
// The signature check runs last: it is the most expensive step, so cheap
// shape and binding failures short-circuit first.
func Validate(evt *nostr.Event, opts Options) (pubkey string, err error) {
	if evt == nil {
		return "", apperrors.New(apperrors.CodeEventMalformed, "event is required")
	}
	if evt.Kind != nostr.KindClientAuthentication {
		return "", apperrors.WithMetadata(
			apperrors.CodeEventKindInvalid,
			"event kind must be client authentication",
			map[string]string{"Kind": strconv.Itoa(evt.Kind)},
		)
	}
	if !isLowerHex(evt.PubKey, 64) {
		return "", apperrors.New(apperrors.CodeEventMalformed, "event pubkey must be 64 lowercase hex characters")
	}
	if !isLowerHex(evt.ID, 64) {
		return "", apperrors.New(apperrors.CodeEventMalformed, "event id must be 64 lowercase hex characters")
	}
	if !isLowerHex(evt.Sig, 128) {
		return "", apperrors.New(apperrors.CodeEventMalformed, "event sig must be 128 lowercase hex characters")
	}

	tag := evt.Tags.Find(ChallengeTagName)
	if len(tag) < 2 || tag[1] == "" {
		return "", apperrors.New(apperrors.CodeEventMalformed, "challenge tag is required")
	}
	if tag[1] != opts.Challenge {
		return "", apperrors.New(apperrors.CodeChallengeMismatch, "challenge tag does not match the issued challenge")
	}

	maxSkew := opts.MaxSkew
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}
	now := clock()
	createdAt := evt.CreatedAt.Time()
	if createdAt.After(now.Add(maxSkew)) || createdAt.Before(now.Add(-maxSkew)) {
		return "", apperrors.New(apperrors.CodeEventTimestampOut, "event created_at is outside the accepted window")
	}

	if evt.GetID() != evt.ID {
		return "", apperrors.New(apperrors.CodeEventIDMismatch, "event id does not match the canonical event hash")
	}

	ok, err := evt.CheckSignature()
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeSignatureInvalid, "signature verification failed", err)
	}
	if !ok {
		return "", apperrors.New(apperrors.CodeSignatureInvalid, "signature does not verify against the event pubkey")
	}

	return evt.PubKey, nil
}

func isLowerHex(value string, length int) bool {
	if len(value) != length {
		return false
	}
	for _, r := range value {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
