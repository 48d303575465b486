// Package domain contains the core types shared across storefront-auth modules.
package domain

import "time"

// Role is the authorization role carried by an account and its tokens.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// User is a storefront account. Email is stored in normalized form.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	Role            Role      `json:"role"`
	Name            string    `json:"name,omitempty"`
	Image           string    `json:"image,omitempty"`
	Age             *int      `json:"age,omitempty"`
	Gender          string    `json:"gender,omitempty"`
	IsEmailVerified bool      `json:"is_email_verified"`
	IsActive        bool      `json:"is_active"`
	IsDeleted       bool      `json:"is_deleted"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Sanitized returns a copy of the user without credential material.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	if u.Age != nil {
		age := *u.Age
		c.Age = &age
	}
	return &c
}

// CanLogin reports whether the account lifecycle flags permit authentication.
func (u *User) CanLogin() bool {
	return u.IsActive && !u.IsDeleted
}

// Identity is the verified caller resolved from a session token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
