// Package identity implements account registration, login and token validation.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/storefront-auth/internal/domain"
	"github.com/bissquit/storefront-auth/internal/identity/password"
	"github.com/bissquit/storefront-auth/internal/pkg/ctxlog"
)

// ErrInvalidHash means a stored credential is corrupt.
var ErrInvalidHash = password.ErrInvalidHash

// DefaultStoreTimeout bounds every credential store call.
const DefaultStoreTimeout = 5 * time.Second

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, hashed string) (bool, error)
	Dummy(ctx context.Context, plain string)
}

// Authenticator issues and verifies session tokens.
type Authenticator interface {
	Issue(id domain.Identity) (token string, expiresAt time.Time, err error)
	Verify(token string) (domain.Identity, error)
}

// UserCreatedHandler is notified after a successful registration.
// Errors are logged and never fail the registration.
type UserCreatedHandler interface {
	OnUserCreated(ctx context.Context, user *domain.User) error
}

// Config contains service settings.
type Config struct {
	StoreTimeout time.Duration
}

// Service orchestrates the credential store, hasher and token authenticator.
type Service struct {
	repo          Repository
	hasher        PasswordHasher
	authenticator Authenticator
	onUserCreated UserCreatedHandler
	storeTimeout  time.Duration
}

// NewService creates a new identity service. onUserCreated may be nil.
func NewService(repo Repository, hasher PasswordHasher, authenticator Authenticator, onUserCreated UserCreatedHandler, cfg Config) *Service {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	return &Service{
		repo:          repo,
		hasher:        hasher,
		authenticator: authenticator,
		onUserCreated: onUserCreated,
		storeTimeout:  cfg.StoreTimeout,
	}
}

// RegisterInput contains data for account registration.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Image    string
	Age      *int
	Gender   string
}

// LoginInput contains login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Register creates a new User-role account.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := NormalizeEmail(input.Email)
	if err := validateCredentials(email, input.Password); err != nil {
		recordRegistration("invalid")
		return nil, err
	}

	_, err := s.getUserByEmail(ctx, email)
	switch {
	case err == nil:
		recordRegistration("duplicate")
		return nil, ErrEmailExists
	case !errors.Is(err, ErrUserNotFound):
		recordRegistration("error")
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		recordRegistration("error")
		if errors.Is(err, password.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password too long", ErrValidation)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Name:         input.Name,
		Image:        input.Image,
		Age:          input.Age,
		Gender:       input.Gender,
		IsActive:     true,
	}

	if err := s.write(ctx, "create user", func(ctx context.Context) error {
		return s.repo.CreateUser(ctx, user)
	}); err != nil {
		if errors.Is(err, ErrEmailExists) {
			recordRegistration("duplicate")
			return nil, ErrEmailExists
		}
		recordRegistration("error")
		return nil, err
	}

	recordRegistration("success")
	ctxlog.FromContext(ctx).Info("user registered", "user_id", user.ID)

	if s.onUserCreated != nil {
		if err := s.onUserCreated.OnUserCreated(ctx, user.Sanitized()); err != nil {
			ctxlog.FromContext(ctx).Warn("user created hook failed", "user_id", user.ID, "error", err)
		}
	}

	return user.Sanitized(), nil
}

// Login verifies credentials and issues a session token.
// Unknown emails, wrong passwords and disabled accounts are indistinguishable.
func (s *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := NormalizeEmail(input.Email)
	if err := validateLogin(email, input.Password); err != nil {
		recordLogin("invalid")
		return nil, err
	}

	user, err := s.getUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.hasher.Dummy(ctx, input.Password)
			recordLogin("rejected")
			return nil, ErrInvalidCredentials
		}
		recordLogin("error")
		return nil, err
	}

	ok, err := s.hasher.Verify(ctx, input.Password, user.PasswordHash)
	if err != nil {
		recordLogin("error")
		if errors.Is(err, password.ErrInvalidHash) {
			invalidHashTotal.Inc()
			ctxlog.FromContext(ctx).Error("stored password hash is corrupt", "user_id", user.ID, "alert", true)
			return nil, ErrInvalidHash
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok || !user.CanLogin() {
		recordLogin("rejected")
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.authenticator.Issue(domain.Identity{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
	})
	if err != nil {
		recordLogin("error")
		return nil, fmt.Errorf("issue token: %w", err)
	}

	recordLogin("success")
	return &LoginResult{
		User:      user.Sanitized(),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken resolves the identity carried by a session token.
func (s *Service) ValidateToken(_ context.Context, token string) (domain.Identity, error) {
	return s.authenticator.Verify(token)
}

// GetUserByID returns an account without credential material.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user *domain.User
	err := s.read(ctx, "get user by id", func(ctx context.Context) error {
		var err error
		user, err = s.repo.GetUserByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

// SetUserStatus flips lifecycle flags (deactivate, soft delete, restore).
func (s *Service) SetUserStatus(ctx context.Context, id string, update StatusUpdate) (*domain.User, error) {
	if update.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}

	var user *domain.User
	err := s.write(ctx, "update user status", func(ctx context.Context) error {
		var err error
		user, err = s.repo.UpdateUserStatus(ctx, id, update)
		return err
	})
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("user status updated",
		"user_id", user.ID,
		"is_active", user.IsActive,
		"is_deleted", user.IsDeleted,
	)
	return user.Sanitized(), nil
}

// EnsureAdmin creates an Admin account for email unless one already exists.
// It returns true when an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, plain string) (bool, error) {
	email = NormalizeEmail(email)
	if err := validateCredentials(email, plain); err != nil {
		return false, err
	}

	existing, err := s.getUserByEmail(ctx, email)
	if err == nil {
		if existing.Role != domain.RoleAdmin {
			ctxlog.FromContext(ctx).Warn("bootstrap admin email belongs to a non-admin account", "user_id", existing.ID)
		}
		return false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return false, err
	}

	hash, err := s.hasher.Hash(ctx, plain)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	admin := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		IsActive:     true,
	}
	err = s.write(ctx, "create admin", func(ctx context.Context) error {
		return s.repo.CreateUser(ctx, admin)
	})
	if errors.Is(err, ErrEmailExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) getUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user *domain.User
	err := s.read(ctx, "get user by email", func(ctx context.Context) error {
		var err error
		user, err = s.repo.GetUserByEmail(ctx, email)
		return err
	})
	return user, err
}

// read runs a store read under the store timeout, retrying once on
// infrastructure failures.
func (s *Service) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := s.call(ctx, fn)
	if err == nil || isDomainError(err) || ctx.Err() != nil {
		return s.storeError(ctx, op, err)
	}
	ctxlog.FromContext(ctx).Warn("credential store read failed, retrying", "op", op, "error", err)
	return s.storeError(ctx, op, s.call(ctx, fn))
}

// write runs a store write under the store timeout. Writes are not retried.
func (s *Service) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return s.storeError(ctx, op, s.call(ctx, fn))
}

func (s *Service) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *Service) storeError(ctx context.Context, op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	ctxlog.FromContext(ctx).Error("credential store failure", "op", op, "error", err)
	return fmt.Errorf("%w: %s", ErrStoreUnavailable, op)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrEmailExists)
}

// validateLogin only rejects absent fields; policy violations on login are
// reported as invalid credentials by the hasher comparison.
func validateLogin(email, plain string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if plain == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	return nil
}

func validateCredentials(email, plain string) error {
	if err := validateLogin(email, plain); err != nil {
		return err
	}
	if len(plain) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}
	if len(plain) > password.MaxLength {
		return fmt.Errorf("%w: password too long", ErrValidation)
	}
	return nil
}
