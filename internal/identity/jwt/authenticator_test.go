package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/bissquit/storefront-auth/internal/domain"
	"github.com/bissquit/storefront-auth/internal/identity"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = domain.Identity{ID: "user-1", Email: "a@x.com", Role: domain.RoleUser}

var _ identity.Authenticator = (*Authenticator)(nil)

func newTestAuthenticator(t *testing.T, secret string) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(Config{
		SecretKey:           secret,
		Issuer:              "storefront-auth",
		AccessTokenDuration: 15 * time.Minute,
	})
	require.NoError(t, err)
	return a
}

func TestNewAuthenticator_RequiresSecret(t *testing.T) {
	a, err := NewAuthenticator(Config{})
	require.Error(t, err)
	assert.Nil(t, a)
}

func TestIssueAndVerify(t *testing.T) {
	a := newTestAuthenticator(t, "test-secret")

	token, expiresAt, err := a.Issue(testIdentity)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	got, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, testIdentity, got)
}

func TestVerify_Expired(t *testing.T) {
	a := newTestAuthenticator(t, "test-secret")

	token, _, err := a.Issue(testIdentity)
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, identity.ErrTokenExpired)
	assert.NotErrorIs(t, err, identity.ErrTokenInvalid)
}

func TestVerify_Invalid(t *testing.T) {
	a := newTestAuthenticator(t, "test-secret")
	other := newTestAuthenticator(t, "other-secret")

	foreign, _, err := other.Issue(testIdentity)
	require.NoError(t, err)

	valid, _, err := a.Issue(testIdentity)
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	noneToken, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, Claims{
		Role: domain.RoleAdmin,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, Claims{
		Role:             domain.RoleUser,
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "user-1", Issuer: "storefront-auth"},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	wrongIssuer, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, Claims{
		Role: domain.RoleUser,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "someone-else",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	unknownRole, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, Claims{
		Role: domain.Role("Root"),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "storefront-auth",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "malformed", token: "not.a.jwt"},
		{name: "wrong secret", token: foreign},
		{name: "tampered payload", token: tampered},
		{name: "alg none", token: noneToken},
		{name: "missing expiry", token: noExpiry},
		{name: "wrong issuer", token: wrongIssuer},
		{name: "unknown role", token: unknownRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Verify(tt.token)
			assert.ErrorIs(t, err, identity.ErrTokenInvalid)
		})
	}
}
