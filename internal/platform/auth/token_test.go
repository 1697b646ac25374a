package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestIssueVerify_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testKey, "emsops")
	verifier := NewTokenVerifier(testKey, "emsops")

	principal := uuid.New()
	jti := uuid.NewString()

	token, err := issuer.Issue(principal, "metro_ems", "medic", jti, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != principal.String() {
		t.Errorf("subject = %q, want %q", claims.Subject, principal)
	}
	if claims.TenantID != "metro_ems" {
		t.Errorf("tenant = %q", claims.TenantID)
	}
	if claims.ID != jti {
		t.Errorf("jti = %q, want %q", claims.ID, jti)
	}
	if claims.Role != "medic" {
		t.Errorf("role = %q", claims.Role)
	}
}

func TestVerify_Expired(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	issuer := NewTokenIssuer(testKey, "emsops").WithClock(func() time.Time { return past })
	verifier := NewTokenVerifier(testKey, "emsops")

	token, err := issuer.Issue(uuid.New(), "t1", "", uuid.NewString(), time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerify_BadSignature(t *testing.T) {
	issuer := NewTokenIssuer(testKey, "emsops")
	otherKey := []byte("ffffffffffffffffffffffffffffffff")
	verifier := NewTokenVerifier(otherKey, "emsops")

	token, err := issuer.Issue(uuid.New(), "t1", "", uuid.NewString(), time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrTokenBadSignature) {
		t.Errorf("expected ErrTokenBadSignature, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	verifier := NewTokenVerifier(testKey, "emsops")

	for _, tok := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		if _, err := verifier.Verify(tok); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("Verify(%q): expected ErrTokenMalformed, got %v", tok, err)
		}
	}
}

func TestVerify_WrongIssuer(t *testing.T) {
	issuer := NewTokenIssuer(testKey, "someone-else")
	verifier := NewTokenVerifier(testKey, "emsops")

	token, _ := issuer.Issue(uuid.New(), "t1", "", uuid.NewString(), time.Hour)
	if _, err := verifier.Verify(token); err == nil {
		t.Error("expected rejection for wrong issuer")
	}
}

func TestVerify_MissingSessionLink(t *testing.T) {
	issuer := NewTokenIssuer(testKey, "emsops")
	verifier := NewTokenVerifier(testKey, "emsops")

	// Empty jti: a token that cannot be joined to a session row.
	token, err := issuer.Issue(uuid.New(), "t1", "", "", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("expected ErrTokenMalformed for empty jti, got %v", err)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	issuer := NewTokenIssuer(testKey, "emsops")
	verifier := NewTokenVerifier(testKey, "emsops")

	token, _ := issuer.Issue(uuid.New(), "t1", "", uuid.NewString(), time.Hour)
	parts := strings.Split(token, ".")
	tampered := parts[0] + ".eyJzdWIiOiJhdHRhY2tlciJ9." + parts[2]

	if _, err := verifier.Verify(tampered); err == nil {
		t.Error("expected rejection for tampered payload")
	}
}
