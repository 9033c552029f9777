package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/readoai/readoai-go/internal/model"
	"github.com/readoai/readoai-go/internal/repository"
)

const (
	msgRegistered   = "User registered successfully"
	msgLoggedIn     = "Login successful"
	dummyPassword   = "readoai-dummy-password"
	maxPasswordSize = 1024
)

var (
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrEmailTaken         = errors.New("Email already exists")
	ErrUnauthorized       = errors.New("Not authorized")
	ErrNameRequired       = errors.New("Name is required")
	ErrEmailRequired      = errors.New("Email is required")
	ErrPasswordRequired   = errors.New("Password is required")
	ErrInvalidEmail       = errors.New("Invalid email address")
	ErrPasswordTooLong    = errors.New("Password is too long")
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) bool
	NeedsUpgrade(encodedHash string) bool
}

// TokenIssuer issues and verifies signed session tokens.
type TokenIssuer interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}

// AuthService handles authentication business logic.
type AuthService struct {
	users  repository.UserStore
	hasher PasswordHasher
	tokens TokenIssuer

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(users repository.UserStore, hasher PasswordHasher, tokens TokenIssuer) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

// IsValidationError reports whether err was caused by a malformed request.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrEmailRequired) ||
		errors.Is(err, ErrPasswordRequired) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrPasswordTooLong)
}

// NormalizeEmail trims and lower-cases an address so registration and
// lookup agree on case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.MessageResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := NormalizeEmail(req.Email)

	if name == "" {
		return model.MessageResponse{}, ErrNameRequired
	}
	if email == "" {
		return model.MessageResponse{}, ErrEmailRequired
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return model.MessageResponse{}, ErrInvalidEmail
	}
	if req.Password == "" {
		return model.MessageResponse{}, ErrPasswordRequired
	}
	if len(req.Password) > maxPasswordSize {
		return model.MessageResponse{}, ErrPasswordTooLong
	}

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return model.MessageResponse{}, ErrEmailTaken
	case !errors.Is(err, repository.ErrUserNotFound):
		return model.MessageResponse{}, oops.Code("AUTH_STORE_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.MessageResponse{}, oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.MessageResponse{}, ErrEmailTaken
		}
		return model.MessageResponse{}, oops.Code("AUTH_STORE_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	slog.Info("user registered", "user_id", user.ID)
	return model.MessageResponse{Message: msgRegistered}, nil
}

// Login authenticates a user and returns a session token.
// Unknown emails and wrong passwords fail identically, and both paths run a
// password verification so response timing does not reveal which it was.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" || len(req.Password) > maxPasswordSize {
		return model.LoginResponse{}, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.Verify(req.Password, s.dummy())
			return model.LoginResponse{}, ErrInvalidCredentials
		}
		return model.LoginResponse{}, oops.Code("AUTH_STORE_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return model.LoginResponse{}, ErrInvalidCredentials
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		slog.Info("password hash uses outdated parameters", "user_id", user.ID)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return model.LoginResponse{}, oops.Code("AUTH_SIGN_FAILED").Wrap(err)
	}

	return model.LoginResponse{
		Message: msgLoggedIn,
		Token:   token,
		User:    user.Summary(),
	}, nil
}

// Authenticate verifies a session token and returns the user ID it carries.
// Every verification failure is reported as ErrUnauthorized.
func (s *AuthService) Authenticate(token string) (string, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return "", ErrUnauthorized
	}
	return userID, nil
}

// Me verifies token and returns the identity of its holder.
func (s *AuthService) Me(ctx context.Context, token string) (model.MeResponse, error) {
	userID, err := s.Authenticate(token)
	if err != nil {
		return model.MeResponse{}, err
	}
	return s.CurrentUser(ctx, userID)
}

// CurrentUser returns the identity of an already authenticated user.
// A user deleted after the token was issued is ErrUnauthorized.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (model.MeResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.MeResponse{}, ErrUnauthorized
		}
		return model.MeResponse{}, oops.Code("AUTH_STORE_FAILED").
			With("operation", "find user by id").
			Wrap(err)
	}

	return model.MeResponse{User: user.Summary()}, nil
}

// dummy returns a hash that no real password matches, computed on first use.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			slog.Warn("computing dummy password hash failed", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
