package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the bearer token payload. The registered claims carry subject
// (principal id), jti (the session link) and the time bounds; TenantID and
// Role are custom claims.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tid"`
	Role     string `json:"role,omitempty"`
}

// TokenIssuer mints signed HS256 bearer tokens. Pure: the output depends
// only on the inputs, the signing key and the clock.
type TokenIssuer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(key []byte, issuer string) *TokenIssuer {
	return &TokenIssuer{key: key, issuer: issuer, now: time.Now}
}

// WithClock substitutes the clock. For tests.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}

// Issue mints a token for the given principal embedding tokenID as the jti
// claim. The tokenID is the join key to the backing session row; without a
// matching active session the token is worthless regardless of its own TTL.
func (i *TokenIssuer) Issue(principalID uuid.UUID, tenantID, role, tokenID string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID.String(),
			ID:        tokenID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID: tenantID,
		Role:     role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// TokenVerifier checks signature and expiry of presented tokens. It never
// touches the session store: it is the cheap stateless gate in front of the
// authoritative store lookup.
type TokenVerifier struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewTokenVerifier(key []byte, issuer string) *TokenVerifier {
	return &TokenVerifier{key: key, issuer: issuer, now: time.Now}
}

// WithClock substitutes the clock. For tests.
func (v *TokenVerifier) WithClock(now func() time.Time) *TokenVerifier {
	v.now = now
	return v
}

// Verify parses and validates a token string, returning its claims. Failures
// map onto the closed set ErrTokenMalformed, ErrTokenBadSignature,
// ErrTokenExpired.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, opts...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenBadSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			// Wrong issuer, not-yet-valid, unexpected method: none of these
			// deserve their own externally visible category.
			return nil, ErrTokenMalformed
		}
	}
	if !token.Valid {
		return nil, ErrTokenBadSignature
	}

	// A token without a session link or subject cannot be authorized.
	if claims.ID == "" || claims.Subject == "" || claims.TenantID == "" {
		return nil, ErrTokenMalformed
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
