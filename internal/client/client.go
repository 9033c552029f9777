// Package client calls the ReadoAI auth API and keeps the resulting
// session in a session.Holder.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/readoai/readoai-go/internal/model"
	"github.com/readoai/readoai-go/internal/session"
)

const defaultTimeout = 15 * time.Second

// ErrNotLoggedIn is returned by Me when no session is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client talks to one API server.
type Client struct {
	baseURL string
	http    *http.Client
	session *session.Holder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for the server at baseURL, e.g. http://localhost:5000.
func New(baseURL string, holder *session.Holder, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		session: holder,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (model.MessageResponse, error) {
	var resp model.MessageResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/register", "", req, &resp)
	return resp, err
}

// Login authenticates and stores the returned session.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	var resp model.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", req, &resp); err != nil {
		return model.LoginResponse{}, err
	}

	if err := c.session.Set(session.State{Token: resp.Token, User: resp.User}); err != nil {
		return model.LoginResponse{}, err
	}
	return resp, nil
}

// Me fetches the identity behind the stored session. A session the server
// rejects is cleared.
func (c *Client) Me(ctx context.Context) (model.MeResponse, error) {
	state, ok := c.session.Get()
	if !ok {
		return model.MeResponse{}, ErrNotLoggedIn
	}

	var resp model.MeResponse
	err := c.do(ctx, http.MethodGet, "/api/auth/me", state.Token, nil, &resp)
	if IsUnauthorized(err) {
		if clearErr := c.session.Clear(); clearErr != nil {
			return model.MeResponse{}, errors.Join(err, clearErr)
		}
	}
	if err != nil {
		return model.MeResponse{}, err
	}
	return resp, nil
}

// Logout forgets the stored session. The server keeps no session state.
func (c *Client) Logout() error {
	return c.session.Clear()
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body model.MessageResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		apiErr.Message = body.Message
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
