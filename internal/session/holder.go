// Package session keeps the signed-in user's token and identity on the
// client and tells interested parts of the program when they change.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/readoai/readoai-go/internal/model"
)

const (
	keyToken = "token"
	keyUser  = "user"
)

var ErrEmptyToken = errors.New("session token is empty")

// State is the client-side view of a login. The zero value means logged out.
type State struct {
	Token string
	User  model.UserResponse
}

// LoggedIn reports whether s carries a session.
func (s State) LoggedIn() bool {
	return s.Token != ""
}

// Holder reads and writes the session through a Storage and notifies
// subscribers after every change.
type Holder struct {
	storage Storage

	// mu serializes writes so the token and the user always come from the
	// same Set or Clear.
	mu sync.Mutex

	obsMu     sync.Mutex
	observers map[int]func(State)
	nextID    int
}

func NewHolder(storage Storage) *Holder {
	return &Holder{
		storage:   storage,
		observers: make(map[int]func(State)),
	}
}

// Get returns the stored session. A store holding only one of the two
// keys, or an unreadable user record, counts as logged out.
func (h *Holder) Get() (State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.read()
}

func (h *Holder) read() (State, bool) {
	token, err := h.storage.Get(keyToken)
	if err != nil || token == "" {
		return State{}, false
	}
	rawUser, err := h.storage.Get(keyUser)
	if err != nil {
		return State{}, false
	}

	var user model.UserResponse
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		slog.Warn("stored session user is unreadable", "error", err)
		return State{}, false
	}
	return State{Token: token, User: user}, true
}

// Set stores both parts of s, then notifies subscribers.
func (h *Holder) Set(s State) error {
	if s.Token == "" {
		return ErrEmptyToken
	}
	rawUser, err := json.Marshal(s.User)
	if err != nil {
		return err
	}

	h.mu.Lock()
	err = h.write(s.Token, string(rawUser))
	h.mu.Unlock()
	if err != nil {
		return err
	}

	h.notify(s)
	return nil
}

func (h *Holder) write(token, rawUser string) error {
	// The user goes first: a crash between the writes leaves a user
	// without a token, which reads as logged out.
	if err := h.storage.Set(keyUser, rawUser); err != nil {
		return fmt.Errorf("storing session user: %w", err)
	}
	if err := h.storage.Set(keyToken, token); err != nil {
		return fmt.Errorf("storing session token: %w", err)
	}
	return nil
}

// Clear removes the session, then notifies subscribers with the zero State.
func (h *Holder) Clear() error {
	h.mu.Lock()
	err := errors.Join(h.storage.Delete(keyToken), h.storage.Delete(keyUser))
	h.mu.Unlock()
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	h.notify(State{})
	return nil
}

// Subscribe registers fn to be called after every Set and Clear. The
// returned function removes the subscription and is safe to call twice.
func (h *Holder) Subscribe(fn func(State)) (unsubscribe func()) {
	h.obsMu.Lock()
	id := h.nextID
	h.nextID++
	h.observers[id] = fn
	h.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.obsMu.Lock()
			delete(h.observers, id)
			h.obsMu.Unlock()
		})
	}
}

// notify runs observers without holding any lock, so they may call back
// into the Holder.
func (h *Holder) notify(s State) {
	h.obsMu.Lock()
	fns := make([]func(State), 0, len(h.observers))
	for _, fn := range h.observers {
		fns = append(fns, fn)
	}
	h.obsMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
