// Package jwt issues and verifies HS256 session tokens.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/storefront-auth/internal/domain"
	"github.com/bissquit/storefront-auth/internal/identity"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Config contains token settings.
type Config struct {
	SecretKey           string
	Issuer              string
	AccessTokenDuration time.Duration
}

// Claims is the signed claim set carried by a session token.
type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwtlib.RegisteredClaims
}

// Authenticator mints and checks session tokens. It holds no mutable state.
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthenticator creates a token authenticator.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("jwt: secret key is required")
	}
	if cfg.AccessTokenDuration <= 0 {
		cfg.AccessTokenDuration = time.Hour
	}
	return &Authenticator{
		secret: []byte(cfg.SecretKey),
		issuer: cfg.Issuer,
		ttl:    cfg.AccessTokenDuration,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the given identity.
func (a *Authenticator) Issue(id domain.Identity) (string, time.Time, error) {
	issuedAt := a.now()
	expiresAt := issuedAt.Add(a.ttl)

	claims := Claims{
		Email: id.Email,
		Role:  id.Role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwtlib.NewNumericDate(issuedAt),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, issuer and expiry, returning the embedded identity.
// Expired tokens yield identity.ErrTokenExpired; all other failures
// identity.ErrTokenInvalid.
func (a *Authenticator) Verify(token string) (domain.Identity, error) {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(*jwtlib.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return domain.Identity{}, identity.ErrTokenExpired
		}
		return domain.Identity{}, fmt.Errorf("%w: %v", identity.ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return domain.Identity{}, identity.ErrTokenInvalid
	}

	return domain.Identity{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}
