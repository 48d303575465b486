package password

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(Config{Cost: bcrypt.MinCost, MaxConcurrent: 2})
	require.NoError(t, err)
	return h
}

func TestNewHasher_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{name: "cost below minimum", config: Config{Cost: 2}, wantErr: "out of range"},
		{name: "cost above maximum", config: Config{Cost: 40}, wantErr: "out of range"},
		{name: "minimum cost", config: Config{Cost: bcrypt.MinCost}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHasher(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.config.Cost, h.Cost())
		})
	}
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	hashed, err := h.Hash(ctx, "Secr3t!")
	require.NoError(t, err)
	assert.NotEqual(t, "Secr3t!", hashed)

	ok, err := h.Verify(ctx, "Secr3t!", hashed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(ctx, "secr3t!", hashed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHash_UsesFreshSalt(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	first, err := h.Hash(ctx, "same-password")
	require.NoError(t, err)
	second, err := h.Hash(ctx, "same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHash_TooLong(t *testing.T) {
	h := newTestHasher(t)

	_, err := h.Hash(context.Background(), strings.Repeat("a", MaxLength+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestVerify_InvalidHash(t *testing.T) {
	h := newTestHasher(t)

	tests := []struct {
		name   string
		hashed string
	}{
		{name: "empty", hashed: ""},
		{name: "plaintext", hashed: "Secr3t!"},
		{name: "bad prefix", hashed: "$9z$04$abcdefghijklmnopqrstuuABCDEFGHIJKLMNOPQRSTUVWXYZ01234"},
		{name: "truncated", hashed: "$2a$04$short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify(context.Background(), "Secr3t!", tt.hashed)
			assert.ErrorIs(t, err, ErrInvalidHash)
			assert.False(t, ok)
		})
	}
}

func TestHash_RespectsContextWhileSaturated(t *testing.T) {
	h, err := NewHasher(Config{Cost: bcrypt.MinCost, MaxConcurrent: 1})
	require.NoError(t, err)

	require.NoError(t, h.sem.Acquire(context.Background(), 1))
	defer h.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = h.Hash(ctx, "Secr3t!")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
