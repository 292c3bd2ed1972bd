package httpx

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
)

func TestRouter_RootAnonymousShowsLanding(t *testing.T) {
	p := newTestPortal(t)

	resp, body := p.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Create a student account")

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == DefaultClientCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "client cookie issued")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	_, err := uuid.Parse(cookie.Value)
	assert.NoError(t, err)
}

func TestRouter_HealthzHasNoClientContext(t *testing.T) {
	p := newTestPortal(t)

	resp, body := p.get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","clients":0}`, body)
	assert.Empty(t, resp.Cookies())
	assert.Equal(t, 0, p.reg.Len())
}

func TestRouter_GuardRedirectsAnonymousToLogin(t *testing.T) {
	p := newTestPortal(t)

	resp, _ := p.get("/admin/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?redirect_uri=%2Fadmin%2Fdashboard", resp.Header.Get("Location"))

	var errBody map[string]string
	resp = p.getJSON("/admin/dashboard", &errBody)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "not_authenticated", errBody["error"])
}

func TestRouter_LoginFlow(t *testing.T) {
	p := newTestPortal(t)

	p.get("/")
	before := p.clientID()
	require.NotEmpty(t, before)

	resp := p.login("admin@school.edu", "admin123")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/dashboard", resp.Header.Get("Location"))

	after := p.clientID()
	assert.NotEqual(t, before, after, "login moves the browser to a new client context")
	_, stillThere := p.reg.Lookup(before)
	assert.False(t, stillThere)
	assert.NotEmpty(t, p.stores.Get(after).Peek(), "credential persisted for the new context")

	resp, body := p.get("/admin/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Pending requests")
	assert.Contains(t, body, `<span class="value">3</span>`)
	assert.Contains(t, body, `href="/admin/users"`)
	assert.Contains(t, body, `aria-current="page"`)

	resp, _ = p.get("/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/dashboard", resp.Header.Get("Location"))

	resp, _ = p.get("/login")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "signed-in visitors skip the login form")
}

func TestRouter_LoginRedirectTargets(t *testing.T) {
	tests := []struct {
		name     string
		redirect string
		want     string
	}{
		{"permitted", "/admin/users", "/admin/users"},
		{"other role's page", "/student/grades", "/admin/dashboard"},
		{"protocol relative", "//evil.example/admin/users", "/admin/dashboard"},
		{"absolute", "https://evil.example/", "/admin/dashboard"},
		{"unknown page", "/nowhere", "/admin/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPortal(t)
			resp, _ := p.postForm("/login", url.Values{
				"email":        {"admin@school.edu"},
				"password":     {"admin123"},
				"redirect_uri": {tt.redirect},
			})
			assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
			assert.Equal(t, tt.want, resp.Header.Get("Location"))
		})
	}
}

func TestRouter_LoginFailureRendersError(t *testing.T) {
	p := newTestPortal(t)
	p.get("/")
	before := p.clientID()

	resp, body := p.postForm("/login", url.Values{"email": {"admin@school.edu"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Invalid credentials")
	assert.Contains(t, body, `value="admin@school.edu"`, "email is echoed back")
	assert.Equal(t, before, p.clientID(), "client context unchanged on failure")
	assert.Equal(t, 1, p.reg.Len(), "the fresh context was discarded")
	assert.Equal(t, "anonymous", p.status().State)
}

func TestRouter_LoginValidation(t *testing.T) {
	p := newTestPortal(t)

	resp, body := p.postForm("/login", url.Values{"email": {"not-an-email"}, "password": {""}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "email must be a valid email address")
}

func TestRouter_CSRFRequired(t *testing.T) {
	p := newTestPortal(t)
	p.get("/")

	req, err := http.NewRequest(http.MethodPost, p.srv.URL+"/login", nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, _ := p.do(req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRouter_JSONLogin(t *testing.T) {
	p := newTestPortal(t)
	oldToken := p.status().CSRFToken

	var st statusResponse
	resp := p.postJSON("/login", map[string]string{"email": "teacher@school.edu", "password": "teach123"}, &st)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "authenticated", st.State)
	assert.Equal(t, "/teacher/dashboard", st.Landing)
	assert.Equal(t, "/teacher/dashboard", st.Redirect)
	require.NotNil(t, st.User)
	assert.Equal(t, domainauth.RoleTeacher, st.User.Role)
	assert.Len(t, st.Menu, 5)
	assert.NotEqual(t, oldToken, st.CSRFToken)

	current := p.status()
	assert.Equal(t, "authenticated", current.State)
	assert.Equal(t, st.CSRFToken, current.CSRFToken)

	var errBody map[string]string
	resp = p.postJSON("/login", map[string]string{"email": "teacher@school.edu", "password": "nope"}, &errBody)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credential", errBody["error"])
	assert.Equal(t, "Invalid credentials", errBody["message"])
	assert.Equal(t, "authenticated", p.status().State, "a failed login keeps the existing session")
}

func TestRouter_WrongRoleRedirectsToRoot(t *testing.T) {
	p := newTestPortal(t)
	require.Equal(t, http.StatusSeeOther, p.login("teacher@school.edu", "teach123").StatusCode)

	resp, _ := p.get("/admin/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	var errBody map[string]string
	resp = p.getJSON("/admin/dashboard", &errBody)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := p.get("/teacher/dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Courses")
}

func TestRouter_Logout(t *testing.T) {
	p := newTestPortal(t)
	require.Equal(t, http.StatusSeeOther, p.login("admin@school.edu", "admin123").StatusCode)
	id := p.clientID()

	resp, _ := p.postForm("/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Empty(t, p.stores.Get(id).Peek())

	resp, _ = p.get("/admin/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, _ = p.postForm("/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "logout is idempotent")
}

func TestRouter_Register(t *testing.T) {
	p := newTestPortal(t)

	resp, _ := p.postForm("/register", url.Values{
		"email":      {"new@school.edu"},
		"username":   {"newbie"},
		"password":   {"secret1"},
		"first_name": {"New"},
		"last_name":  {"Student"},
		"year_level": {"1"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/student/dashboard", resp.Header.Get("Location"))

	resp, body := p.get("/student/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Average score")
	assert.Contains(t, body, "91.50")
}

func TestRouter_RegisterErrors(t *testing.T) {
	p := newTestPortal(t)

	resp, body := p.postForm("/register", url.Values{
		"email": {"new@school.edu"}, "username": {"newbie"}, "password": {"secret1"},
		"first_name": {"New"}, "last_name": {"Student"}, "year_level": {"first"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "year_level must be a number")
	assert.Contains(t, body, `value="newbie"`)

	resp, body = p.postForm("/register", url.Values{
		"email": {"admin@school.edu"}, "username": {"dupe"}, "password": {"secret1"},
		"first_name": {"A"}, "last_name": {"B"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Email already registered")
	assert.Equal(t, "anonymous", p.status().State)
}

func TestRouter_PendingWhileBootstrapIsSlow(t *testing.T) {
	p := newTestPortal(t, withBootstrapWait(20*time.Millisecond))

	release := make(chan struct{})
	var released bool
	t.Cleanup(func() {
		if !released {
			close(release)
		}
	})
	p.gw.ResolveFunc = func(ctx context.Context, _ domainauth.Credential) (domainauth.Identity, error) {
		select {
		case <-release:
			return adminIdentity, nil
		case <-ctx.Done():
			return domainauth.Identity{}, ctx.Err()
		}
	}

	id := uuid.NewString()
	require.NoError(t, p.stores.Get(id).Set(context.Background(), "t-stored"))
	p.setClientID(id)

	resp, body := p.get("/admin/dashboard")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode, "never bounced to login while unresolved")
	assert.Contains(t, body, "Checking your session")
	assert.Contains(t, body, `http-equiv="refresh"`)

	var st map[string]string
	resp = p.getJSON("/admin/users", &st)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "unresolved", st["state"])

	released = true
	close(release)
	m, ok := p.reg.Lookup(id)
	require.True(t, ok)
	<-m.Ready()

	resp, _ = p.get("/admin/dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_RejectedCredentialSignsOut(t *testing.T) {
	p := newTestPortal(t)
	require.Equal(t, http.StatusSeeOther, p.login("admin@school.edu", "admin123").StatusCode)
	id := p.clientID()

	p.gw.Revoke(p.stores.Get(id).Peek())

	resp, _ := p.get("/admin/users")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?redirect_uri=%2Fadmin%2Fusers", resp.Header.Get("Location"))
	assert.Equal(t, "anonymous", p.status().State)
	assert.Empty(t, p.stores.Get(id).Peek())
}

func TestRouter_FetchFailureKeepsSession(t *testing.T) {
	p := newTestPortal(t)
	require.Equal(t, http.StatusSeeOther, p.login("admin@school.edu", "admin123").StatusCode)

	p.gw.FetchFunc = func(context.Context, domainauth.Credential, string, any) error {
		return &domainauth.AuthError{Kind: domainauth.KindNetworkFailure}
	}

	resp, body := p.get("/admin/dashboard")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, domainauth.GenericFailureMessage)
	assert.Equal(t, "authenticated", p.status().State)
}

func TestRouter_ProfileAndNotFound(t *testing.T) {
	p := newTestPortal(t)
	require.Equal(t, http.StatusSeeOther, p.login("teacher@school.edu", "teach123").StatusCode)

	resp, body := p.get("/profile")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "mrsmith")
	assert.Contains(t, body, "Teacher")

	resp, body = p.get("/does-not-exist")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "does not exist")
}

func TestNewRouter_RequiresServices(t *testing.T) {
	_, err := NewRouter(RouterServices{})
	assert.Error(t, err)
}
