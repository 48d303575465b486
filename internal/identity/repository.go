package identity

import (
	"context"

	"github.com/bissquit/storefront-auth/internal/domain"
)

// Repository persists user accounts.
//
// Implementations enforce email uniqueness at the storage layer and report a
// conflicting insert as ErrEmailExists. Missing records are ErrUserNotFound.
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUserStatus(ctx context.Context, id string, update StatusUpdate) (*domain.User, error)
}

// StatusUpdate carries the lifecycle flags an admin may change. Nil fields are left as is.
type StatusUpdate struct {
	IsActive  *bool
	IsDeleted *bool
}

// Empty reports whether the update changes nothing.
func (u StatusUpdate) Empty() bool {
	return u.IsActive == nil && u.IsDeleted == nil
}
