package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"tms.dev/internal/obs"
)

// Service authenticates users and issues access tokens. It keeps no
// session state; a token is valid purely by signature and expiry.
type Service struct {
	users  UserStore
	tokens *Tokens
	now    func() time.Time
	log    logrus.FieldLogger
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithLogger overrides the default obs logger.
func WithLogger(l logrus.FieldLogger) ServiceOption {
	return func(s *Service) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(users UserStore, secret string, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	svc := &Service{
		users: users,
		now:   time.Now,
		log:   obs.Logger().WithField("component", "auth"),
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	tokens, err := NewTokens(secret, func() time.Time { return svc.now() })
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	svc.tokens = tokens
	return svc, nil
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password both return ErrInvalidCredentials; store failures are returned as is.
func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = normalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		burnCompare(password)
		return AuthResult{}, s.rejectLogin("unknown_email")
	}
	if err != nil {
		obs.ObserveLogin("error")
		return AuthResult{}, fmt.Errorf("find user by email: %w", err)
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return AuthResult{}, s.rejectLogin("wrong_password")
		}
		obs.ObserveLogin("error")
		return AuthResult{}, fmt.Errorf("verify password for user %s: %w", user.ID, err)
	}
	token, _, err := s.tokens.Issue(user)
	if err != nil {
		obs.ObserveLogin("error")
		return AuthResult{}, err
	}
	obs.ObserveLogin("success")
	s.log.WithField("user_id", user.ID).Info("login succeeded")
	return AuthResult{AccessToken: token, User: user.Public()}, nil
}

func (s *Service) rejectLogin(reason string) error {
	obs.ObserveLogin("invalid_credentials")
	s.log.WithFields(logrus.Fields{"outcome": "invalid_credentials", "reason": reason}).Warn("login rejected")
	return ErrInvalidCredentials
}

// ValidateUser re-hydrates the caller from a verified token subject.
func (s *Service) ValidateUser(ctx context.Context, userID string) (PublicUser, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return PublicUser{}, ErrNotFound
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return PublicUser{}, err
	}
	return user.Public(), nil
}

// VerifyToken returns the claims of a valid, unexpired token.
func (s *Service) VerifyToken(token string) (*Claims, error) {
	return s.tokens.Verify(token)
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, name, email, password string) (PublicUser, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return PublicUser{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return PublicUser{}, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if password == "" {
		return PublicUser{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return PublicUser{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	created, err := s.users.CreateUser(ctx, User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return PublicUser{}, err
	}
	s.log.WithField("user_id", created.ID).Info("user registered")
	return created.Public(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
