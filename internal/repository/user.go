package repository

import (
	"context"
	"errors"

	"github.com/readoai/readoai-go/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserStore persists user records. Implementations must enforce email
// uniqueness themselves; callers may check FindByEmail first, but only
// Create's ErrDuplicateEmail is authoritative.
type UserStore interface {
	// Create assigns user.ID and user.CreatedAt and inserts the record.
	Create(ctx context.Context, user *model.User) error
	// FindByEmail returns the full record, password hash included.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// FindByID returns the identity projection; PasswordHash is left empty.
	FindByID(ctx context.Context, id string) (*model.User, error)
	Close(ctx context.Context) error
}
