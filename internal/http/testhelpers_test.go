package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	authmocks "github.com/schoolhub/portal/internal/mocks/auth"
	"github.com/schoolhub/portal/internal/ports"
	"github.com/schoolhub/portal/internal/service"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// RequireTemplateRenderer creates a TemplateRenderer for tests, skipping the test if templates are not available.
func RequireTemplateRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: os.DirFS(TemplatePathFromTest),
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Skipf("Templates not available, skipping: %v", err)
		return nil
	}
	return tr
}

// storeSet hands out one memory store per client id and lets tests inspect them.
type storeSet struct {
	mu sync.Mutex
	m  map[string]*authmocks.MemoryCredentialStore
}

func newStoreSet() *storeSet {
	return &storeSet{m: make(map[string]*authmocks.MemoryCredentialStore)}
}

func (s *storeSet) For(clientID string) ports.CredentialStore {
	return s.Get(clientID)
}

func (s *storeSet) Get(clientID string) *authmocks.MemoryCredentialStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[clientID]
	if !ok {
		st = authmocks.NewMemoryCredentialStore("")
		s.m[clientID] = st
	}
	return st
}

func newTestRegistry(t *testing.T, gw *authmocks.StubGateway) *service.SessionRegistry {
	t.Helper()
	if gw == nil {
		gw = authmocks.NewStubGateway()
	}
	reg := service.NewSessionRegistry(service.SessionRegistryOptions{
		Stores:   newStoreSet().For,
		Resolver: gw,
		Gateway:  gw,
		Logger:   quietLogger(),
	})
	t.Cleanup(reg.Close)
	return reg
}

//nolint:gochecknoglobals // test fixtures
var (
	teacherIdentity = domainauth.Identity{ID: "teacher-1", Username: "mrsmith", Email: "teacher@school.edu", Role: domainauth.RoleTeacher}
	adminIdentity   = domainauth.Identity{ID: "admin-1", Username: "admin", Email: "admin@school.edu", Role: domainauth.RoleAdmin}

	resourceFixtures = map[string]any{
		"/admin/stats": map[string]any{
			"total_students": float64(3), "total_teachers": float64(2),
			"total_subjects": float64(5), "pending_requests": float64(1),
		},
		"/admin/users": []any{
			map[string]any{"username": "admin", "email": "admin@school.edu", "role": "Admin", "status": "active"},
		},
		"/teacher/stats":   map[string]any{"total_courses": float64(2), "total_students": float64(40)},
		"/teacher/courses": []any{},
		"/subjects":        []any{},
		"/student/grades": []any{
			map[string]any{"subject": map[string]any{"subject_name": "Algebra"}, "section": "A", "grading_period": "Prelim", "score": 91.5},
		},
	}
)

// testPortal is a running router backed by the stub gateway and memory stores.
type testPortal struct {
	t      *testing.T
	srv    *httptest.Server
	gw     *authmocks.StubGateway
	reg    *service.SessionRegistry
	stores *storeSet
	client *http.Client
}

type portalOption func(*RouterServices)

func withBootstrapWait(d time.Duration) portalOption {
	return func(s *RouterServices) { s.BootstrapWait = d }
}

func newTestPortal(t *testing.T, opts ...portalOption) *testPortal {
	t.Helper()
	if _, err := os.Stat(TemplatePathFromTest); os.IsNotExist(err) {
		t.Skip("Templates not available, skipping integration test")
	}

	gw := authmocks.NewStubGateway()
	gw.AddAccount(teacherIdentity.Email, "teach123", teacherIdentity)
	gw.FetchFunc = func(ctx context.Context, cred domainauth.Credential, path string, dst any) error {
		if _, err := gw.Resolve(ctx, cred); err != nil {
			return err
		}
		if p, ok := dst.(*any); ok {
			*p = resourceFixtures[path]
		}
		return nil
	}

	stores := newStoreSet()
	reg := service.NewSessionRegistry(service.SessionRegistryOptions{
		Stores:   stores.For,
		Resolver: gw,
		Gateway:  gw,
		Logger:   quietLogger(),
	})
	t.Cleanup(reg.Close)

	services := RouterServices{
		Registry:      reg,
		Fetcher:       gw,
		TemplateFS:    os.DirFS(TemplatePathFromTest),
		CSRFKey:       []byte("test-csrf-key-0123456789abcdef!!"),
		BootstrapWait: time.Second,
		Logger:        quietLogger(),
	}
	for _, o := range opts {
		o(&services)
	}
	handler, err := NewRouter(services)
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testPortal{t: t, srv: srv, gw: gw, reg: reg, stores: stores, client: client}
}

func (p *testPortal) do(req *http.Request) (*http.Response, string) {
	p.t.Helper()
	resp, err := p.client.Do(req)
	require.NoError(p.t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(p.t, err)
	_ = resp.Body.Close()
	return resp, string(body)
}

func (p *testPortal) get(path string) (*http.Response, string) {
	p.t.Helper()
	req, err := http.NewRequest(http.MethodGet, p.srv.URL+path, nil)
	require.NoError(p.t, err)
	return p.do(req)
}

func (p *testPortal) getJSON(path string, dst any) *http.Response {
	p.t.Helper()
	req, err := http.NewRequest(http.MethodGet, p.srv.URL+path, nil)
	require.NoError(p.t, err)
	req.Header.Set("Accept", "application/json")
	resp, body := p.do(req)
	if dst != nil {
		require.NoError(p.t, json.Unmarshal([]byte(body), dst), body)
	}
	return resp
}

// status fetches /auth/status, which also reveals the client's CSRF token.
func (p *testPortal) status() statusResponse {
	p.t.Helper()
	var st statusResponse
	resp := p.getJSON("/auth/status", &st)
	require.Equal(p.t, http.StatusOK, resp.StatusCode)
	return st
}

// postForm submits a form with the client's current CSRF token.
func (p *testPortal) postForm(path string, form url.Values) (*http.Response, string) {
	p.t.Helper()
	form.Set("csrf_token", p.status().CSRFToken)
	req, err := http.NewRequest(http.MethodPost, p.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(p.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.do(req)
}

func (p *testPortal) postJSON(path string, payload any, dst any) *http.Response {
	p.t.Helper()
	token := p.status().CSRFToken
	b, err := json.Marshal(payload)
	require.NoError(p.t, err)
	req, err := http.NewRequest(http.MethodPost, p.srv.URL+path, strings.NewReader(string(b)))
	require.NoError(p.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DefaultCSRFHeaderName, token)
	resp, body := p.do(req)
	if dst != nil {
		require.NoError(p.t, json.Unmarshal([]byte(body), dst), body)
	}
	return resp
}

func (p *testPortal) login(email, password string) *http.Response {
	p.t.Helper()
	resp, _ := p.postForm("/login", url.Values{"email": {email}, "password": {password}})
	return resp
}

// clientID returns the client context cookie currently held by the browser.
func (p *testPortal) clientID() string {
	p.t.Helper()
	u, err := url.Parse(p.srv.URL)
	require.NoError(p.t, err)
	for _, c := range p.client.Jar.Cookies(u) {
		if c.Name == DefaultClientCookieName {
			return c.Value
		}
	}
	return ""
}

func (p *testPortal) setClientID(id string) {
	p.t.Helper()
	u, err := url.Parse(p.srv.URL)
	require.NoError(p.t, err)
	p.client.Jar.SetCookies(u, []*http.Cookie{{Name: DefaultClientCookieName, Value: id, Path: "/"}})
}
