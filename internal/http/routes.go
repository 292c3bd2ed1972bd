package httpx

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/schoolhub/portal/internal/ports"
	"github.com/schoolhub/portal/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Registry *service.SessionRegistry
	Fetcher  ports.ResourceFetcher
	// TemplateFS holds layout.tmpl, partials/ and pages/ (required).
	TemplateFS fs.FS
	// StaticFS is served under /static/ (optional).
	StaticFS fs.FS
	// StorePing backs the health check (optional).
	StorePing func(ctx context.Context) error

	CookieDomain  string
	SecureCookies bool
	// CSRFKey signs CSRF tokens; a random key is generated when empty.
	CSRFKey       []byte
	BootstrapWait time.Duration
	IsDev         bool         // Reparse templates on every request
	Logger        *slog.Logger // Logger for template and HTTP errors (optional)
}

// NewRouter creates and configures the portal's HTTP router.
//
// Every route except /healthz and /static/ runs inside a client context: the request carries
// the browser's SessionManager, and state-changing requests must present its CSRF token.
func NewRouter(services RouterServices) (http.Handler, error) {
	if services.Registry == nil || services.Fetcher == nil {
		return nil, errors.New("router requires a session registry and a resource fetcher")
	}
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := validateViews(views); err != nil {
		return nil, err
	}

	renderer, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: services.TemplateFS,
		DevMode:    services.IsDev,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	csrfKey := services.CSRFKey
	if len(csrfKey) == 0 {
		if csrfKey, err = NewCSRFKey(); err != nil {
			return nil, err
		}
	}
	csrf := CSRFConfig{Key: csrfKey}

	clients := &ClientContexts{
		Registry:     services.Registry,
		CookieDomain: services.CookieDomain,
		Secure:       services.SecureCookies,
	}
	pages := &PageHandlers{
		Fetcher:       services.Fetcher,
		Renderer:      renderer,
		BootstrapWait: services.BootstrapWait,
		Logger:        logger,
	}
	auth := &AuthHandlers{
		Clients:       clients,
		Renderer:      renderer,
		CSRF:          csrf,
		BootstrapWait: services.BootstrapWait,
		Logger:        logger,
	}
	guard := &Guard{BootstrapWait: services.BootstrapWait, Pending: pages.Pending}

	app := http.NewServeMux()
	registerAuthRoutes(app, auth)
	registerPageRoutes(app, pages, guard)

	mux := http.NewServeMux()
	health := &HealthHandler{Registry: services.Registry, Ping: services.StorePing, Logger: logger}
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	if services.StaticFS != nil {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(services.StaticFS)))
	}
	mux.Handle("/", clients.Middleware(CSRFProtection(csrf)(app)))
	return mux, nil
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /login", h.LoginForm)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("GET /register", h.RegisterForm)
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}

func registerPageRoutes(mux *http.ServeMux, h *PageHandlers, guard *Guard) {
	mux.HandleFunc("GET /{$}", h.Root)
	for _, v := range views {
		mux.Handle("GET "+v.Path, guard.Require(v.requirement(), h.View(v)))
	}
	mux.HandleFunc("/", h.NotFound)
}
