package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// fakeDirectory is an in-memory PrincipalDirectory.
type fakeDirectory struct {
	byUsername map[string]*PrincipalRecord // tenant + "/" + username
	bySubject  map[string]*PrincipalRecord // tenant + "/" + subject
	err        error
}

func (d *fakeDirectory) LookupByUsername(_ context.Context, tenantID, username string) (*PrincipalRecord, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.byUsername[tenantID+"/"+username], nil
}

func (d *fakeDirectory) LookupByOIDCSubject(_ context.Context, tenantID, subject string) (*PrincipalRecord, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.bySubject[tenantID+"/"+subject], nil
}

func hashPassword(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}

func TestVerifyPassword_Success(t *testing.T) {
	rec := &PrincipalRecord{
		ID:           uuid.New(),
		TenantID:     "metro_ems",
		Username:     "jdoe",
		Role:         "medic",
		PasswordHash: hashPassword(t, "hunter2"),
	}
	dir := &fakeDirectory{byUsername: map[string]*PrincipalRecord{"metro_ems/jdoe": rec}}
	v := NewCredentialVerifier(dir, nil)

	got, err := v.Verify(context.Background(), "metro_ems", PasswordCredential{Username: "jdoe", Password: "hunter2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("principal = %s, want %s", got.ID, rec.ID)
	}
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	rec := &PrincipalRecord{ID: uuid.New(), PasswordHash: hashPassword(t, "hunter2")}
	dir := &fakeDirectory{byUsername: map[string]*PrincipalRecord{"t1/jdoe": rec}}
	v := NewCredentialVerifier(dir, nil)

	_, err := v.Verify(context.Background(), "t1", PasswordCredential{Username: "jdoe", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyPassword_UnknownPrincipal(t *testing.T) {
	dir := &fakeDirectory{byUsername: map[string]*PrincipalRecord{}}
	v := NewCredentialVerifier(dir, nil)

	_, err := v.Verify(context.Background(), "t1", PasswordCredential{Username: "ghost", Password: "x"})
	if !errors.Is(err, ErrPrincipalNotFound) {
		t.Errorf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestVerifyPassword_DisabledPrincipal(t *testing.T) {
	rec := &PrincipalRecord{
		ID:           uuid.New(),
		PasswordHash: hashPassword(t, "hunter2"),
		Disabled:     true,
	}
	dir := &fakeDirectory{byUsername: map[string]*PrincipalRecord{"t1/jdoe": rec}}
	v := NewCredentialVerifier(dir, nil)

	_, err := v.Verify(context.Background(), "t1", PasswordCredential{Username: "jdoe", Password: "hunter2"})
	if !errors.Is(err, ErrPrincipalDisabled) {
		t.Errorf("expected ErrPrincipalDisabled, got %v", err)
	}
}

func TestVerifyPassword_TenantScoped(t *testing.T) {
	// Same username in another tenant must not resolve.
	rec := &PrincipalRecord{ID: uuid.New(), PasswordHash: hashPassword(t, "hunter2")}
	dir := &fakeDirectory{byUsername: map[string]*PrincipalRecord{"tenant_a/jdoe": rec}}
	v := NewCredentialVerifier(dir, nil)

	_, err := v.Verify(context.Background(), "tenant_b", PasswordCredential{Username: "jdoe", Password: "hunter2"})
	if !errors.Is(err, ErrPrincipalNotFound) {
		t.Errorf("expected ErrPrincipalNotFound across tenants, got %v", err)
	}
}

func TestVerifyAssertion_NoVerifierConfigured(t *testing.T) {
	dir := &fakeDirectory{}
	v := NewCredentialVerifier(dir, nil)

	_, err := v.Verify(context.Background(), "t1", DelegatedAssertion{IDToken: "anything"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerify_Idempotent(t *testing.T) {
	rec := &PrincipalRecord{ID: uuid.New(), PasswordHash: hashPassword(t, "hunter2")}
	dir := &fakeDirectory{byUsername: map[string]*PrincipalRecord{"t1/jdoe": rec}}
	v := NewCredentialVerifier(dir, nil)

	creds := PasswordCredential{Username: "jdoe", Password: "hunter2"}
	for i := 0; i < 3; i++ {
		got, err := v.Verify(context.Background(), "t1", creds)
		if err != nil || got.ID != rec.ID {
			t.Fatalf("call %d: got %v, %v", i, got, err)
		}
	}
}
