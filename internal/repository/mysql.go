package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/readoai/readoai-go/internal/model"
)

// mysqlErrDuplicateEntry is ER_DUP_ENTRY.
const mysqlErrDuplicateEntry = 1062

// MySQLUserStore handles user persistence in MySQL.
type MySQLUserStore struct {
	db *sql.DB
}

// NewMySQLUserStore creates a new MySQLUserStore.
func NewMySQLUserStore(db *sql.DB) *MySQLUserStore {
	return &MySQLUserStore{db: db}
}

// Create inserts a new user. The unique index on email rejects concurrent
// registrations of the same address.
func (s *MySQLUserStore) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`

	id := uuid.NewString()
	createdAt := time.Now().UTC().Truncate(time.Second)

	_, err := s.db.ExecContext(ctx, query, id, user.Name, user.Email, user.PasswordHash, createdAt)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	user.ID = id
	user.CreatedAt = createdAt
	return nil
}

// FindByEmail retrieves a user by their email address.
func (s *MySQLUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`

	user := &model.User{}
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// FindByID retrieves a user by their ID without the password hash.
func (s *MySQLUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT id, name, email, created_at FROM users WHERE id = ?`

	user := &model.User{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// Close closes the underlying connection pool.
func (s *MySQLUserStore) Close(context.Context) error {
	return s.db.Close()
}

// isDuplicateEntryError checks if a MySQL error is a duplicate entry error (code 1062).
func isDuplicateEntryError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry
}
