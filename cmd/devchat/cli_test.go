package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"devnet/internal/config"
	"devnet/internal/httpjson"
	"devnet/internal/messenger"
	"devnet/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLoginStoresToken(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		httpjson.Write(w, http.StatusOK, user.LoginResponse{AccessToken: "jwt", ID: 1, Username: "alice"})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "devchat.yaml")
	out, err := executeCommand(t, "--config", path, "--server", srv.URL, "login", "alice", "password123")
	require.NoError(t, err)
	assert.Contains(t, out, "signed in as alice")

	saved, err := config.LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "jwt", saved.Token)
	assert.Equal(t, "alice", saved.Username)
	assert.Equal(t, srv.URL, saved.Server)

	_, err = executeCommand(t, "--config", path, "logout")
	require.NoError(t, err)
	saved, err = config.LoadClient(path)
	require.NoError(t, err)
	assert.Empty(t, saved.Token)
}

func TestChatWithoutLoginAsksToSignIn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devchat.yaml")
	out, err := executeCommand(t, "--config", path, "chat")
	require.NoError(t, err)
	assert.Contains(t, out, messenger.TextUnauthenticated)
}

func TestLoginErrorShowsServerMessage(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		httpjson.Error(w, http.StatusUnauthorized, "invalid username or password")
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "devchat.yaml")
	_, err := executeCommand(t, "--config", path, "--server", srv.URL, "login", "alice", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid username or password")
}
