package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/portal/internal/adapters/filestore"
	domainauth "github.com/schoolhub/portal/internal/domain/auth"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var adminUser = map[string]any{"id": "u1", "email": "admin@school.edu", "role": "Admin", "username": "admin"}

func fakeGateway(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["email"] != "admin@school.edu" || in["password"] != "admin123" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": "tok-admin", "user": adminUser})
	})
	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "tok-new",
			"user":  map[string]any{"id": "u2", "email": in["email"], "username": in["username"], "role": "Student"},
		})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer tok-admin", "Bearer tok-stale":
			writeJSON(w, http.StatusOK, adminUser)
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid token"})
		}
	})
	mux.HandleFunc("GET /api/admin/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-admin" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"total_students": 42})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	gateway string
	creds   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	pterm.DisableStyling()
	return &harness{
		gateway: fakeGateway(t).URL + "/api",
		creds:   filepath.Join(t.TempDir(), "credentials.json"),
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--gateway", h.gateway, "--credentials", h.creds}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) stored(t *testing.T) (domainauth.Credential, bool) {
	t.Helper()
	store, err := filestore.New(h.creds)
	require.NoError(t, err)
	cred, err := store.Get(context.Background())
	if err != nil {
		require.ErrorIs(t, err, domainauth.ErrNoCredential)
		return "", false
	}
	return cred, true
}

func (h *harness) store(t *testing.T, cred domainauth.Credential) {
	t.Helper()
	store, err := filestore.New(h.creds)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), cred))
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	_, err := h.run(t, "login", "--email", "admin@school.edu", "--password", "admin123")
	require.NoError(t, err)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "login", "--email", "admin@school.edu", "--password", "admin123")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as admin (Admin)")
	assert.Contains(t, out, "/admin/dashboard")

	cred, ok := h.stored(t)
	require.True(t, ok)
	assert.Equal(t, domainauth.Credential("tok-admin"), cred)
}

func TestLogin_Rejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "login", "--email", "admin@school.edu", "--password", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")
	_, ok := h.stored(t)
	assert.False(t, ok)
}

func TestPasswordOrPrompt_KeepsSurroundingSpaces(t *testing.T) {
	orig := promptPassword
	t.Cleanup(func() { promptPassword = orig })
	promptPassword = func() (string, error) { return "  s3cret  ", nil }

	got, err := passwordOrPrompt("")
	require.NoError(t, err)
	assert.Equal(t, "  s3cret  ", got)

	got, err = passwordOrPrompt(" flag ")
	require.NoError(t, err)
	assert.Equal(t, " flag ", got)
}

func TestLogin_PromptsForMissingPassword(t *testing.T) {
	orig := promptPassword
	t.Cleanup(func() { promptPassword = orig })
	promptPassword = func() (string, error) { return "admin123", nil }

	h := newHarness(t)
	out, err := h.run(t, "login", "--email", "admin@school.edu")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as admin (Admin)")
}

func TestLogin_RequiresEmail(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "login", "--password", "admin123")
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "register",
		"--email", "new@school.edu", "--username", "newbie", "--password", "secret1",
		"--first-name", "New", "--last-name", "Student", "--year-level", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as newbie (Student)")
	assert.Contains(t, out, "/student/dashboard")

	cred, ok := h.stored(t)
	require.True(t, ok)
	assert.Equal(t, domainauth.Credential("tok-new"), cred)
}

func TestRegister_LocalValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "register",
		"--email", "new@school.edu", "--username", "newbie", "--password", "secret1",
		"--first-name", "New", "--last-name", "Student", "--year-level", "9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registration failed")
	_, ok := h.stored(t)
	assert.False(t, ok)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	h.login(t)
	out, err = h.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "admin@school.edu")
	assert.Contains(t, out, "Admin")
}

func TestStatus_RejectedCredentialIsForgotten(t *testing.T) {
	h := newHarness(t)
	h.store(t, "tok-revoked")

	out, err := h.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
	_, ok := h.stored(t)
	assert.False(t, ok)
}

func TestMenu(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "menu")
	require.ErrorIs(t, err, errNotLoggedIn)

	h.login(t)
	out, err := h.run(t, "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "/admin/users")
	assert.Contains(t, out, "/profile")
	assert.NotContains(t, out, "/student/")
}

func TestOpen(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "open", "/admin/users")
	require.NoError(t, err)
	assert.Contains(t, out, "redirect_login -> /login")

	h.login(t)
	tests := []struct {
		path string
		want string
	}{
		{"/admin/users", "/admin/users: render"},
		{"profile", "/profile: render"},
		{"/student/grades", "redirect_root -> /"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			out, err := h.run(t, "open", tt.path)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}

	_, err = h.run(t, "open", "/nowhere")
	assert.Error(t, err)
}

func TestGet(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "get", "/admin/stats")
	require.ErrorIs(t, err, errNotLoggedIn)

	h.login(t)
	out, err := h.run(t, "get", "/admin/stats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_students":42}`, out)
}

func TestGet_RejectedCredentialSignsOut(t *testing.T) {
	h := newHarness(t)
	h.store(t, "tok-stale")

	_, err := h.run(t, "get", "/admin/stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signed out")
	_, ok := h.stored(t)
	assert.False(t, ok)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	_, ok := h.stored(t)
	assert.False(t, ok)

	_, err = h.run(t, "logout")
	assert.NoError(t, err, "logout is idempotent")
}

func TestInvalidGatewayURL(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--gateway", "ftp://gateway", "status"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
