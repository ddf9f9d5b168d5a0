package auth

import (
	"context"
	"time"
)

// User is an account record. PasswordHash never leaves the service.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public strips the password hash.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}

// PublicUser is the projection returned to callers.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthResult is returned by a successful login.
type AuthResult struct {
	AccessToken string     `json:"access_token"`
	User        PublicUser `json:"user"`
}

// UserStore is the persistence contract for users.
type UserStore interface {
	// FindByEmail returns ErrNotFound when no user has the email.
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	// CreateUser returns ErrConflict when the email is taken.
	CreateUser(ctx context.Context, u User) (User, error)
}
