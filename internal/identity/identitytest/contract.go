// Package identitytest holds a behavioural suite every identity.Repository must pass.
package identitytest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bissquit/storefront-auth/internal/domain"
	"github.com/bissquit/storefront-auth/internal/identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRepositoryContract runs the suite against repositories built by newRepo.
// Each subtest uses unique emails so a shared backing store is fine.
func RunRepositoryContract(t *testing.T, newRepo func(t *testing.T) identity.Repository) {
	t.Run("create then read back", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		age := 30

		user := &domain.User{
			Email:        uniqueEmail(),
			PasswordHash: "$2a$04$hash",
			Role:         domain.RoleUser,
			Name:         "Ada",
			Age:          &age,
			IsActive:     true,
		}
		require.NoError(t, repo.CreateUser(ctx, user))
		require.NotEmpty(t, user.ID)
		assert.False(t, user.CreatedAt.IsZero())
		assert.False(t, user.UpdatedAt.IsZero())

		byEmail, err := repo.GetUserByEmail(ctx, user.Email)
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)
		assert.Equal(t, "$2a$04$hash", byEmail.PasswordHash)
		assert.Equal(t, domain.RoleUser, byEmail.Role)
		assert.True(t, byEmail.IsActive)
		assert.False(t, byEmail.IsDeleted)
		assert.False(t, byEmail.IsEmailVerified)
		require.NotNil(t, byEmail.Age)
		assert.Equal(t, 30, *byEmail.Age)

		byID, err := repo.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, byID.Email)
	})

	t.Run("missing records", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.GetUserByEmail(ctx, uniqueEmail())
		assert.ErrorIs(t, err, identity.ErrUserNotFound)

		_, err = repo.GetUserByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, identity.ErrUserNotFound)

		_, err = repo.GetUserByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, identity.ErrUserNotFound)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		email := uniqueEmail()

		require.NoError(t, repo.CreateUser(ctx, &domain.User{Email: email, PasswordHash: "h", Role: domain.RoleUser, IsActive: true}))
		err := repo.CreateUser(ctx, &domain.User{Email: email, PasswordHash: "h2", Role: domain.RoleUser, IsActive: true})
		assert.ErrorIs(t, err, identity.ErrEmailExists)

		stored, err := repo.GetUserByEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, "h", stored.PasswordHash)
	})

	t.Run("concurrent duplicate email", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		email := uniqueEmail()

		const attempts = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		var created, conflicts int

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.CreateUser(ctx, &domain.User{Email: email, PasswordHash: "h", Role: domain.RoleUser, IsActive: true})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case errors.Is(err, identity.ErrEmailExists):
					conflicts++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, created)
		assert.Equal(t, attempts-1, conflicts)
	})

	t.Run("update status", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		user := &domain.User{Email: uniqueEmail(), PasswordHash: "h", Role: domain.RoleUser, IsActive: true}
		require.NoError(t, repo.CreateUser(ctx, user))

		inactive := false
		updated, err := repo.UpdateUserStatus(ctx, user.ID, identity.StatusUpdate{IsActive: &inactive})
		require.NoError(t, err)
		assert.False(t, updated.IsActive)
		assert.False(t, updated.IsDeleted)

		deleted := true
		updated, err = repo.UpdateUserStatus(ctx, user.ID, identity.StatusUpdate{IsDeleted: &deleted})
		require.NoError(t, err)
		assert.False(t, updated.IsActive, "unset flag must be preserved")
		assert.True(t, updated.IsDeleted)

		_, err = repo.UpdateUserStatus(ctx, uuid.NewString(), identity.StatusUpdate{IsDeleted: &deleted})
		assert.ErrorIs(t, err, identity.ErrUserNotFound)

		_, err = repo.UpdateUserStatus(ctx, "not-a-uuid", identity.StatusUpdate{IsDeleted: &deleted})
		assert.ErrorIs(t, err, identity.ErrUserNotFound)
	})
}

func uniqueEmail() string {
	return uuid.NewString() + "@example.com"
}
