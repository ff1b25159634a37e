package token

import (
	"testing"
	"time"

	apperrors "github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/platform/errors"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const testPubkey = "dd81a8bacbab0b5c3007d1672fb8301383b4e9583d431835985057223eb298a5"

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(Config{Secret: "test-secret", TTL: time.Hour})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer.WithClock(func() time.Time { return testTime })
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer(Config{Secret: " "}); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestIssueAndVerify(t *testing.T) {
	issuer := newTestIssuer(t)

	signed, expiresAt, err := issuer.Issue(testPubkey, "jti1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if want := testTime.Add(time.Hour); !expiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", expiresAt, want)
	}

	claims, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Pubkey != testPubkey {
		t.Errorf("Pubkey = %q, want %q", claims.Pubkey, testPubkey)
	}
	if claims.Subject != testPubkey {
		t.Errorf("Subject = %q, want %q", claims.Subject, testPubkey)
	}
	if claims.ID != "jti1" {
		t.Errorf("ID = %q, want %q", claims.ID, "jti1")
	}
	if claims.Issuer != DefaultIssuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, DefaultIssuer)
	}
}

func TestIssueRequiresArguments(t *testing.T) {
	issuer := newTestIssuer(t)

	if _, _, err := issuer.Issue("", "jti1"); err == nil {
		t.Error("expected error for missing pubkey")
	}
	if _, _, err := issuer.Issue(testPubkey, ""); err == nil {
		t.Error("expected error for missing jti")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t)

	signed, _, err := issuer.Issue(testPubkey, "jti1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	issuer.WithClock(func() time.Time { return testTime.Add(2 * time.Hour) })
	_, err = issuer.Verify(signed)
	if apperrors.GetCode(err) != apperrors.CodeTokenExpired {
		t.Errorf("code = %v, want %v", apperrors.GetCode(err), apperrors.CodeTokenExpired)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := newTestIssuer(t)
	signed, _, err := issuer.Issue(testPubkey, "jti1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, err := NewIssuer(Config{Secret: "other-secret", TTL: time.Hour})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	other.WithClock(func() time.Time { return testTime })

	_, err = other.Verify(signed)
	if apperrors.GetCode(err) != apperrors.CodeTokenInvalid {
		t.Errorf("code = %v, want %v", apperrors.GetCode(err), apperrors.CodeTokenInvalid)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	minted, err := NewIssuer(Config{Secret: "test-secret", Issuer: "someone-else", TTL: time.Hour})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	minted.WithClock(func() time.Time { return testTime })

	signed, _, err := minted.Issue(testPubkey, "jti1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = newTestIssuer(t).Verify(signed)
	if apperrors.GetCode(err) != apperrors.CodeTokenInvalid {
		t.Errorf("code = %v, want %v", apperrors.GetCode(err), apperrors.CodeTokenInvalid)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := newTestIssuer(t)

	for _, tokenString := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := issuer.Verify(tokenString); apperrors.GetCode(err) != apperrors.CodeTokenInvalid {
			t.Errorf("Verify(%q): code = %v, want %v", tokenString, apperrors.GetCode(err), apperrors.CodeTokenInvalid)
		}
	}
}
