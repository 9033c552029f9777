package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readoai/readoai-go/internal/crypto"
	"github.com/readoai/readoai-go/internal/handler"
	"github.com/readoai/readoai-go/internal/repository"
	"github.com/readoai/readoai-go/internal/service"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	hasher := crypto.NewPasswordHasher(crypto.HashParams{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	tokens, err := crypto.NewTokenIssuer("cli-test-secret", time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := httptest.NewServer(handler.NewRouter(ctx, handler.RouterConfig{
		Auth: service.NewAuthService(repository.NewMemoryUserStore(), hasher, tokens),
	}))
	t.Cleanup(srv.Close)
	return srv
}

// stubPasswords makes readPassword return passwords in order.
func stubPasswords(t *testing.T, passwords ...string) {
	t.Helper()

	orig := readPassword
	t.Cleanup(func() { readPassword = orig })

	readPassword = func() ([]byte, error) {
		if len(passwords) == 0 {
			return nil, errors.New("no more passwords")
		}
		pw := passwords[0]
		passwords = passwords[1:]
		return []byte(pw), nil
	}
}

type cliEnv struct {
	server      string
	sessionFile string
}

func newCLIEnv(t *testing.T) cliEnv {
	return cliEnv{
		server:      newAPIServer(t).URL,
		sessionFile: filepath.Join(t.TempDir(), "session.json"),
	}
}

// run executes readoctl with stdin and returns stdout, stderr and the error.
func (e cliEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--server", e.server, "--session-file", e.sessionFile}, args...))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCmdProperties(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "readoctl", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"register", "login", "me", "logout", "status"} {
		assert.Contains(t, names, want)
	}

	assert.NotNil(t, cmd.PersistentFlags().Lookup("server"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("session-file"))
}

func TestServerFlagDefaultsFromEnv(t *testing.T) {
	t.Setenv("READOAI_SERVER", "https://api.readoai.example")
	flag := NewRootCmd().PersistentFlags().Lookup("server")
	assert.Equal(t, "https://api.readoai.example", flag.DefValue)

	t.Setenv("READOAI_SERVER", "")
	flag = NewRootCmd().PersistentFlags().Lookup("server")
	assert.Equal(t, defaultServer, flag.DefValue)
}

func TestSessionLifecycle(t *testing.T) {
	env := newCLIEnv(t)

	stubPasswords(t, "pw1", "pw1")
	out, _, err := env.run(t, "", "register", "--name", "Ana", "--email", "ana@x.io")
	require.NoError(t, err)
	assert.Contains(t, out, "User registered successfully")

	out, _, err = env.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	stubPasswords(t, "pw1")
	out, stderr, err := env.run(t, "ana@x.io\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome back, Ana!")
	assert.Contains(t, stderr, "session stored")
	assert.NotContains(t, out, "pw1")

	out, _, err = env.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in")
	assert.Contains(t, out, "ana@x.io")

	out, _, err = env.run(t, "", "me")
	require.NoError(t, err)
	assert.Contains(t, out, "Name:  Ana")

	out, stderr, err = env.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	assert.Contains(t, stderr, "session cleared")

	_, _, err = env.run(t, "", "me")
	assert.ErrorContains(t, err, "not logged in")
}

func TestRegisterPasswordMismatch(t *testing.T) {
	env := newCLIEnv(t)

	stubPasswords(t, "pw1", "pw2")
	_, _, err := env.run(t, "Ana\nana@x.io\n", "register")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
	assert.EqualError(t, err, "passwords do not match")
}

func TestLoginWrongPassword(t *testing.T) {
	env := newCLIEnv(t)

	stubPasswords(t, "pw1", "pw1")
	_, _, err := env.run(t, "", "register", "--name", "Ana", "--email", "ana@x.io")
	require.NoError(t, err)

	stubPasswords(t, "nope")
	_, _, err = env.run(t, "", "login", "--email", "ana@x.io")
	assert.ErrorContains(t, err, "Invalid credentials")

	out, _, err := env.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}
