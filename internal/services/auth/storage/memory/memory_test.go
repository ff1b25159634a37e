package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/storage"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testChallenge(id string) storage.Challenge {
	return storage.Challenge{
		ID:        id,
		Pubkey:    "dd81a8bacbab0b5c3007d1672fb8301383b4e9583d431835985057223eb298a5",
		Value:     "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		CreatedAt: testTime,
		ExpiresAt: testTime.Add(5 * time.Minute),
	}
}

func TestChallengeRoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	want := testChallenge("ch1")
	if err := store.PutChallenge(ctx, want); err != nil {
		t.Fatalf("put challenge: %v", err)
	}

	got, err := store.GetChallenge(ctx, "ch1")
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestGetChallengeMissing(t *testing.T) {
	store := NewStore()

	_, err := store.GetChallenge(context.Background(), "absent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteChallengeConsumesOnce(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.PutChallenge(ctx, testChallenge("ch1")); err != nil {
		t.Fatalf("put challenge: %v", err)
	}
	if err := store.DeleteChallenge(ctx, "ch1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.DeleteChallenge(ctx, "ch1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteExpiredChallenges(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	expired := testChallenge("old")
	expired.ExpiresAt = testTime.Add(-time.Minute)
	live := testChallenge("live")

	if err := store.PutChallenge(ctx, expired); err != nil {
		t.Fatalf("put expired: %v", err)
	}
	if err := store.PutChallenge(ctx, live); err != nil {
		t.Fatalf("put live: %v", err)
	}

	if err := store.DeleteExpiredChallenges(ctx, testTime); err != nil {
		t.Fatalf("delete expired: %v", err)
	}

	if _, err := store.GetChallenge(ctx, "old"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected expired challenge to be gone, got %v", err)
	}
	if _, err := store.GetChallenge(ctx, "live"); err != nil {
		t.Errorf("expected live challenge to remain, got %v", err)
	}
}

func TestSessionRevocation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	session := storage.Session{
		ID:        "jti1",
		Pubkey:    "dd81a8bacbab0b5c3007d1672fb8301383b4e9583d431835985057223eb298a5",
		CreatedAt: testTime,
		ExpiresAt: testTime.Add(time.Hour),
	}
	if err := store.PutSession(ctx, session); err != nil {
		t.Fatalf("put session: %v", err)
	}

	first := testTime.Add(time.Minute)
	if err := store.RevokeSession(ctx, "jti1", first); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// A second revocation must not move the timestamp.
	if err := store.RevokeSession(ctx, "jti1", testTime.Add(2*time.Minute)); err != nil {
		t.Fatalf("second revoke: %v", err)
	}

	got, err := store.GetSession(ctx, "jti1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.RevokedAt == nil || !got.RevokedAt.Equal(first) {
		t.Errorf("RevokedAt = %v, want %v", got.RevokedAt, first)
	}
}

func TestRevokeMissingSession(t *testing.T) {
	store := NewStore()

	err := store.RevokeSession(context.Background(), "absent", testTime)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.PutSession(ctx, storage.Session{
		ID:        "old",
		Pubkey:    "ab",
		ExpiresAt: testTime.Add(-time.Second),
	}); err != nil {
		t.Fatalf("put session: %v", err)
	}

	if err := store.DeleteExpiredSessions(ctx, testTime); err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if _, err := store.GetSession(ctx, "old"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected expired session to be gone, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.PutChallenge(ctx, testChallenge("ch1")); err == nil {
		t.Error("expected error from cancelled context")
	}
}
