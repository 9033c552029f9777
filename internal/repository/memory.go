package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/readoai/readoai-go/internal/model"
)

// MemoryUserStore keeps users in process memory. Data is lost on restart.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]model.User
	byEmail map[string]string
}

// NewMemoryUserStore creates an empty MemoryUserStore.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]model.User),
		byEmail: make(map[string]string),
	}
}

// Create inserts user; the email check and the insert share one critical section.
func (s *MemoryUserStore) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return ErrDuplicateEmail
	}

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()

	s.byID[user.ID] = *user
	s.byEmail[user.Email] = user.ID
	return nil
}

// FindByEmail retrieves a user by their email address.
func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	user := s.byID[id]
	return &user, nil
}

// FindByID retrieves a user by ID without the password hash.
func (s *MemoryUserStore) FindByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	user.PasswordHash = ""
	return &user, nil
}

// Delete removes the user with the given ID. It is not part of UserStore.
func (s *MemoryUserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(s.byID, id)
	delete(s.byEmail, user.Email)
	return nil
}

// Close is a no-op.
func (s *MemoryUserStore) Close(context.Context) error {
	return nil
}
