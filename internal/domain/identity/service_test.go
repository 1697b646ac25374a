package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func TestCreatePrincipalHashesPassword(t *testing.T) {
	svc := NewService(NewMemRepo(), bcrypt.MinCost)
	p := &Principal{
		TenantID: "acme",
		Username: "dispatcher1",
		Role:     "dispatcher",
	}
	if err := svc.CreatePrincipal(context.Background(), p, "hunter2-hunter2"); err != nil {
		t.Fatalf("CreatePrincipal: %v", err)
	}
	if p.PasswordHash == "" || p.PasswordHash == "hunter2-hunter2" {
		t.Fatalf("password not hashed: %q", p.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte("hunter2-hunter2")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
}

func TestCreatePrincipalValidation(t *testing.T) {
	svc := NewService(NewMemRepo(), bcrypt.MinCost)
	cases := []struct {
		name string
		p    Principal
		pw   string
	}{
		{"missing tenant", Principal{Username: "u", Role: "medic"}, "pw"},
		{"missing username", Principal{TenantID: "acme", Role: "medic"}, "pw"},
		{"missing role", Principal{TenantID: "acme", Username: "u"}, "pw"},
		{"no password and no oidc subject", Principal{TenantID: "acme", Username: "u", Role: "medic"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.p
			if err := svc.CreatePrincipal(context.Background(), &p, tc.pw); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestCreatePrincipalOIDCOnly(t *testing.T) {
	svc := NewService(NewMemRepo(), bcrypt.MinCost)
	sub := "oidc|abc123"
	p := &Principal{
		TenantID:    "acme",
		Username:    "federated",
		Role:        "medic",
		OIDCSubject: &sub,
	}
	if err := svc.CreatePrincipal(context.Background(), p, ""); err != nil {
		t.Fatalf("CreatePrincipal: %v", err)
	}
	if p.PasswordHash != "" {
		t.Errorf("expected empty password hash, got %q", p.PasswordHash)
	}
}

func TestExists(t *testing.T) {
	repo := NewMemRepo()
	svc := NewService(repo, bcrypt.MinCost)
	p := &Principal{TenantID: "acme", Username: "u1", Role: "medic"}
	if err := svc.CreatePrincipal(context.Background(), p, "password1"); err != nil {
		t.Fatalf("CreatePrincipal: %v", err)
	}

	ok, err := svc.Exists(context.Background(), "acme", p.ID)
	if err != nil || !ok {
		t.Errorf("Exists(acme, %s) = %v, %v; want true", p.ID, ok, err)
	}
	ok, err = svc.Exists(context.Background(), "other", p.ID)
	if err != nil || ok {
		t.Errorf("Exists(other tenant) = %v, %v; want false", ok, err)
	}
	ok, err = svc.Exists(context.Background(), "acme", uuid.New())
	if err != nil || ok {
		t.Errorf("Exists(random id) = %v, %v; want false", ok, err)
	}
}

func TestRecordLogin(t *testing.T) {
	repo := NewMemRepo()
	svc := NewService(repo, bcrypt.MinCost)
	p := &Principal{TenantID: "acme", Username: "u1", Role: "medic"}
	if err := svc.CreatePrincipal(context.Background(), p, "password1"); err != nil {
		t.Fatalf("CreatePrincipal: %v", err)
	}

	if err := svc.RecordLogin(context.Background(), "acme", p.ID); err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	got, err := repo.GetByID(context.Background(), "acme", p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LastLogin == nil {
		t.Error("last login not set after RecordLogin")
	}

	// Wrong tenant never touches the principal.
	fresh := &Principal{TenantID: "acme", Username: "u2", Role: "medic"}
	if err := svc.CreatePrincipal(context.Background(), fresh, "password1"); err != nil {
		t.Fatalf("CreatePrincipal: %v", err)
	}
	if err := svc.RecordLogin(context.Background(), "other", fresh.ID); err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	got, err = repo.GetByID(context.Background(), "acme", fresh.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LastLogin != nil {
		t.Error("cross-tenant RecordLogin must not stamp last login")
	}
}

func TestDirectoryLookups(t *testing.T) {
	repo := NewMemRepo()
	svc := NewService(repo, bcrypt.MinCost)
	sub := "oidc|xyz"
	p := &Principal{TenantID: "acme", Username: "u1", Role: "supervisor", OIDCSubject: &sub}
	if err := svc.CreatePrincipal(context.Background(), p, "password1"); err != nil {
		t.Fatalf("CreatePrincipal: %v", err)
	}

	rec, err := svc.LookupByUsername(context.Background(), "acme", "u1")
	if err != nil {
		t.Fatalf("LookupByUsername: %v", err)
	}
	if rec == nil || rec.ID != p.ID || rec.Role != "supervisor" || rec.Disabled {
		t.Errorf("unexpected record: %+v", rec)
	}

	rec, err = svc.LookupByOIDCSubject(context.Background(), "acme", sub)
	if err != nil {
		t.Fatalf("LookupByOIDCSubject: %v", err)
	}
	if rec == nil || rec.ID != p.ID {
		t.Errorf("unexpected record: %+v", rec)
	}

	rec, err = svc.LookupByUsername(context.Background(), "acme", "nobody")
	if err != nil || rec != nil {
		t.Errorf("miss should be nil, nil; got %+v, %v", rec, err)
	}
}

func TestDisabledPrincipalRecord(t *testing.T) {
	repo := NewMemRepo()
	svc := NewService(repo, bcrypt.MinCost)
	p := &Principal{TenantID: "acme", Username: "u1", Role: "medic"}
	if err := svc.CreatePrincipal(context.Background(), p, "password1"); err != nil {
		t.Fatalf("CreatePrincipal: %v", err)
	}
	if err := svc.Disable(context.Background(), "acme", p.ID); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	rec, err := svc.LookupByUsername(context.Background(), "acme", "u1")
	if err != nil {
		t.Fatalf("LookupByUsername: %v", err)
	}
	if rec == nil || !rec.Disabled {
		t.Errorf("expected disabled record, got %+v", rec)
	}
}
