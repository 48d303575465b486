// Package memory provides an in-process implementation of the identity repository.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bissquit/storefront-auth/internal/domain"
	"github.com/bissquit/storefront-auth/internal/identity"
	"github.com/google/uuid"
)

// Repository keeps accounts in memory. The email index is updated under the
// same lock as the insert, so uniqueness holds under concurrent registration.
type Repository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
	now     func() time.Time
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// CreateUser stores user, assigning ID and timestamps.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return identity.ErrEmailExists
	}

	now := r.now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.byID[user.ID] = clone(user)
	r.byEmail[user.Email] = user.ID
	return nil
}

// GetUserByID returns the account with the given ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return clone(u), nil
}

// GetUserByEmail returns the account with the given normalized email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return clone(r.byID[id]), nil
}

// UpdateUserStatus applies the non-nil flags of update.
func (r *Repository) UpdateUserStatus(ctx context.Context, id string, update identity.StatusUpdate) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	if update.IsActive != nil {
		u.IsActive = *update.IsActive
	}
	if update.IsDeleted != nil {
		u.IsDeleted = *update.IsDeleted
	}
	u.UpdatedAt = r.now().UTC()
	return clone(u), nil
}

// Count returns the number of stored accounts.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func clone(u *domain.User) *domain.User {
	c := *u
	if u.Age != nil {
		age := *u.Age
		c.Age = &age
	}
	return &c
}
