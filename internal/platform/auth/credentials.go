package auth

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Credentials is a closed set of ways a principal can authenticate: a
// password pair or a delegated OIDC assertion. The sealed interface keeps
// the dispatch in CredentialVerifier.Verify exhaustive.
type Credentials interface {
	credentialKind() string
}

// PasswordCredential is a username/password pair scoped to a tenant.
type PasswordCredential struct {
	Username string
	Password string
}

func (PasswordCredential) credentialKind() string { return "password" }

// DelegatedAssertion is a provider-signed OIDC ID token.
type DelegatedAssertion struct {
	IDToken string
}

func (DelegatedAssertion) credentialKind() string { return "oidc" }

// PrincipalRecord is what the credential verifier needs to know about a
// principal: identity, authorization role, stored secret and status.
type PrincipalRecord struct {
	ID           uuid.UUID
	TenantID     string
	Username     string
	Role         string
	PasswordHash string
	Disabled     bool
}

// PrincipalDirectory resolves principals within a tenant. Lookups return
// (nil, nil) when no principal matches; cross-tenant matches must never be
// returned.
type PrincipalDirectory interface {
	LookupByUsername(ctx context.Context, tenantID, username string) (*PrincipalRecord, error)
	LookupByOIDCSubject(ctx context.Context, tenantID, subject string) (*PrincipalRecord, error)
}

// dummyHash is a bcrypt hash compared against when the principal does not
// exist, so that lookup misses cost the same as password mismatches and
// response timing cannot confirm which usernames are registered.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("emsops-timing-pad"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// CredentialVerifier checks submitted credentials against the principal
// directory. It is side-effect free and idempotent: callers own retry and
// lockout policy, and session creation is the login flow's job, not this
// type's.
type CredentialVerifier struct {
	dir        PrincipalDirectory
	assertions *AssertionVerifier // nil when OIDC is not configured
}

func NewCredentialVerifier(dir PrincipalDirectory, assertions *AssertionVerifier) *CredentialVerifier {
	return &CredentialVerifier{dir: dir, assertions: assertions}
}

// Verify resolves the submitted credentials to exactly one principal within
// the tenant. Failures are ErrInvalidCredentials, ErrPrincipalDisabled or
// ErrPrincipalNotFound; the HTTP boundary collapses all three to one
// generic 401.
func (v *CredentialVerifier) Verify(ctx context.Context, tenantID string, creds Credentials) (*PrincipalRecord, error) {
	switch c := creds.(type) {
	case PasswordCredential:
		return v.verifyPassword(ctx, tenantID, c)
	case *PasswordCredential:
		return v.verifyPassword(ctx, tenantID, *c)
	case DelegatedAssertion:
		return v.verifyAssertion(ctx, tenantID, c)
	case *DelegatedAssertion:
		return v.verifyAssertion(ctx, tenantID, *c)
	default:
		return nil, ErrInvalidCredentials
	}
}

func (v *CredentialVerifier) verifyPassword(ctx context.Context, tenantID string, c PasswordCredential) (*PrincipalRecord, error) {
	rec, err := v.dir.LookupByUsername(ctx, tenantID, c.Username)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// Equalize cost with the real comparison below.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(c.Password))
		return nil, ErrPrincipalNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(c.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if rec.Disabled {
		return nil, ErrPrincipalDisabled
	}
	return rec, nil
}

func (v *CredentialVerifier) verifyAssertion(ctx context.Context, tenantID string, c DelegatedAssertion) (*PrincipalRecord, error) {
	if v.assertions == nil {
		return nil, ErrInvalidCredentials
	}

	subject, err := v.assertions.VerifySubject(c.IDToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	rec, err := v.dir.LookupByOIDCSubject(ctx, tenantID, subject)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrPrincipalNotFound
	}
	if rec.Disabled {
		return nil, ErrPrincipalDisabled
	}
	return rec, nil
}
