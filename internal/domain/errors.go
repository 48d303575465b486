package domain

import "errors"

// Token verification errors. Callers usually treat both as unauthenticated;
// the distinction is kept for logging and metrics.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)
