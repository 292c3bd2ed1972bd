package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	portal "github.com/schoolhub/portal"
	"github.com/schoolhub/portal/config"
	httpx "github.com/schoolhub/portal/internal/http"
	"github.com/schoolhub/portal/internal/ports"
	"github.com/schoolhub/portal/internal/service"
)

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 10 * time.Second

	staticPathFromRoot = "frontend/static"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Registry *service.SessionRegistry
	Fetcher  ports.ResourceFetcher
	Stores   *CredentialStores
	Logger   *slog.Logger
}

// NewHTTPServer builds the portal router wrapped in logging and panic recovery.
func NewHTTPServer(cfg HTTPServerConfig) (*http.Server, error) {
	if cfg.Config == nil {
		return nil, errors.New("http server requires an app config")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	templates, static, err := frontendFS(cfg.Config.IsDev)
	if err != nil {
		return nil, err
	}

	services := httpx.RouterServices{
		Registry:      cfg.Registry,
		Fetcher:       cfg.Fetcher,
		TemplateFS:    templates,
		StaticFS:      static,
		CookieDomain:  cfg.Config.HTTP.CookieDomain,
		SecureCookies: cfg.Config.HTTP.SecureCookies(),
		CSRFKey:       []byte(cfg.Config.HTTP.CSRFKey),
		BootstrapWait: cfg.Config.Session.BootstrapWait,
		IsDev:         cfg.Config.IsDev,
		Logger:        logger,
	}
	if cfg.Stores != nil {
		services.StorePing = cfg.Stores.Ping
	}
	if len(services.CSRFKey) == 0 {
		logger.Warn("APP_CSRF_KEY not set; using a random key, open forms break on restart")
	}

	router, err := httpx.NewRouter(services)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	// Order: Recover -> Logging -> Router
	h := httpx.Logging(logger)(router)
	h = httpx.Recover(logger)(h)

	addr := cfg.Config.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

// frontendFS serves the embedded templates, or the working tree in dev mode so edits show up
// without a rebuild.
func frontendFS(isDev bool) (fs.FS, fs.FS, error) {
	if isDev {
		if _, err := os.Stat(httpx.TemplatePathFromRoot); err == nil {
			return os.DirFS(httpx.TemplatePathFromRoot), os.DirFS(staticPathFromRoot), nil
		}
	}
	templates, err := fs.Sub(portal.TemplateFS, "frontend/templates")
	if err != nil {
		return nil, nil, fmt.Errorf("open embedded templates: %w", err)
	}
	static, err := fs.Sub(portal.StaticFS, "frontend/static")
	if err != nil {
		return nil, nil, fmt.Errorf("open embedded static files: %w", err)
	}
	return templates, static, nil
}

// ServeHTTP runs server until ctx is done, then shuts it down gracefully.
func ServeHTTP(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
