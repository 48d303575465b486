package identity

import (
	"errors"

	"github.com/bissquit/storefront-auth/internal/domain"
)

// Input and credential errors.
var (
	ErrValidation         = errors.New("validation error")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// Token errors, shared with the HTTP access guard.
var (
	ErrTokenExpired = domain.ErrTokenExpired
	ErrTokenInvalid = domain.ErrTokenInvalid
)

// ErrStoreUnavailable is returned when the credential store cannot be reached
// or fails for reasons unrelated to the request.
var ErrStoreUnavailable = errors.New("credential store unavailable")
