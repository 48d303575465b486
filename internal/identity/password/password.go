// Package password hashes and verifies account passwords with bcrypt.
package password

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// MaxLength is the longest password bcrypt accepts, in bytes.
const MaxLength = 72

// Errors returned by the hasher.
var (
	ErrInvalidHash     = errors.New("invalid password hash")
	ErrPasswordTooLong = errors.New("password too long")
)

// Config controls hashing cost and how many hashes may run at once.
type Config struct {
	Cost          int
	MaxConcurrent int
}

// Hasher produces salted one-way password hashes.
type Hasher struct {
	cost  int
	sem   *semaphore.Weighted
	dummy []byte
}

// NewHasher validates cfg and returns a ready hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Cost == 0 {
		cfg.Cost = bcrypt.DefaultCost
	}
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("password: bcrypt cost %d out of range [%d..%d]", cfg.Cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = runtime.NumCPU()
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("storefront-auth/timing-equalizer"), cfg.Cost)
	if err != nil {
		return nil, fmt.Errorf("password: build dummy hash: %w", err)
	}

	return &Hasher{
		cost:  cfg.Cost,
		sem:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		dummy: dummy,
	}, nil
}

// Cost returns the bcrypt cost used for new hashes.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns a bcrypt hash of plain. Each call uses a fresh random salt.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if len(plain) > MaxLength {
		return "", ErrPasswordTooLong
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("generate hash: %w", err)
	}
	return string(hashed), nil
}

// Verify compares plain against an encoded hash in constant time.
// It returns (true, nil) on match, (false, nil) on mismatch and
// (false, ErrInvalidHash) when the stored hash cannot be parsed.
func (h *Hasher) Verify(ctx context.Context, plain, hashed string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}

// Dummy performs a comparison against an internal hash of the same cost.
// It keeps the unknown-account login path as slow as the wrong-password path.
func (h *Hasher) Dummy(ctx context.Context, plain string) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer h.sem.Release(1)
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
}
