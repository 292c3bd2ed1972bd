package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schoolhub/portal/internal/domain/access"
	"github.com/schoolhub/portal/internal/domain/nav"
	"github.com/schoolhub/portal/internal/service"
)

// Logging logs one line per request.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			}
			if ww.ctx != nil {
				attrs = append(attrs, slog.String("client", shortClientID(GetClientIDFromContext(ww.ctx))))
			}
			logger.Info("http", attrs...)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
	// ctx is the innermost request context seen by setClientFor; Logging reads the client id from it.
	ctx context.Context
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// setClientFor lets ClientContexts.Middleware report the client id back to Logging.
func setClientFor(ctx context.Context, w http.ResponseWriter) {
	if rw, ok := w.(*respWriter); ok {
		rw.ctx = ctx
	}
}

func shortClientID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Recover turns panics into 500s.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

const (
	// DefaultClientCookieName names the cookie carrying the client context id.
	DefaultClientCookieName = "portal_client"
	clientCookieMaxAge      = 30 * 24 * 3600
)

// ClientContexts binds each browser to its own SessionManager through a long-lived cookie.
// The cookie holds only a random id; the credential itself never leaves the server.
type ClientContexts struct {
	Registry     *service.SessionRegistry
	CookieName   string
	CookieDomain string
	Secure       bool
}

func (c *ClientContexts) cookieName() string {
	if c.CookieName == "" {
		return DefaultClientCookieName
	}
	return c.CookieName
}

// Middleware resolves the request's client context, minting a new one when the cookie is
// missing or malformed, and stores the manager and id in the request context.
func (c *ClientContexts) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := c.clientIDFromRequest(r)
		if !ok {
			id = uuid.NewString()
			c.setCookie(w, id)
		}
		m := c.Registry.Acquire(id)
		ctx := SetClientIDInContext(SetSessionInContext(r.Context(), m), id)
		setClientFor(ctx, w)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Fresh creates a client context that is not yet bound to any browser.
func (c *ClientContexts) Fresh() (string, *service.SessionManager) {
	id := uuid.NewString()
	return id, c.Registry.Acquire(id)
}

// Adopt binds the browser to newID. The previous context is signed out and discarded so a
// credential issued to one id is never reachable through another.
func (c *ClientContexts) Adopt(ctx context.Context, w http.ResponseWriter, oldID, newID string) {
	if oldID != "" && oldID != newID {
		if old, ok := c.Registry.Lookup(oldID); ok {
			old.Logout(ctx)
		}
		c.Registry.Discard(oldID)
	}
	c.setCookie(w, newID)
}

func (c *ClientContexts) clientIDFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.cookieName())
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func (c *ClientContexts) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName(),
		Value:    id,
		Path:     "/",
		Domain:   c.CookieDomain,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   clientCookieMaxAge,
	})
}

// Guard applies the access control decision to role-restricted handlers.
type Guard struct {
	// BootstrapWait is how long a request waits for an in-flight bootstrap before the
	// pending placeholder is shown.
	BootstrapWait time.Duration
	// Pending renders the placeholder for browser requests.
	Pending http.HandlerFunc
}

// Require wraps next so it only runs when the session satisfies req.
func (g *Guard) Require(req access.Requirement, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, ok := GetSessionFromContext(r.Context())
		if !ok {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		awaitReady(r.Context(), m, g.BootstrapWait)

		d := access.Decide(m.State(), req)
		switch d.Outcome {
		case access.OutcomeRender:
			next.ServeHTTP(w, r)
		case access.OutcomeRedirectLogin:
			if wantsJSON(r) {
				WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "not_authenticated", Err: service.ErrNotAuthenticated})
				return
			}
			redirect(w, r, loginURL(d.Location, redirectPathForRequest(r)))
		case access.OutcomeRedirectRoot:
			if wantsJSON(r) {
				WriteJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden", "message": "Your role cannot open this page."})
				return
			}
			redirect(w, r, d.Location)
		default:
			g.pending(w, r)
		}
	})
}

func (g *Guard) pending(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	if wantsJSON(r) || g.Pending == nil {
		WriteJSON(w, http.StatusAccepted, map[string]string{"state": "unresolved"})
		return
	}
	g.Pending(w, r)
}

// awaitReady blocks until bootstrap finished, wait elapsed or ctx ended, whichever comes first.
func awaitReady(ctx context.Context, m *service.SessionManager, wait time.Duration) {
	select {
	case <-m.Ready():
		return
	default:
	}
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-m.Ready():
	case <-timer.C:
	case <-ctx.Done():
	}
}

// loginURL appends redirect_uri to the login path when there is somewhere to come back to.
func loginURL(loginPath, back string) string {
	if back == "" || back == nav.RootPath {
		return loginPath
	}
	return loginPath + "?redirect_uri=" + url.QueryEscape(back)
}

// redirectPathForRequest returns the path a visitor should come back to after signing in.
// Only safe methods are remembered.
func redirectPathForRequest(r *http.Request) string {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return ""
	}
	return safeRedirectPath(r.URL.RequestURI())
}

// safeRedirectPath keeps candidate only when it is a local absolute path, falling back to "/".
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return nav.RootPath
	}
	if strings.HasPrefix(candidate, "//") || strings.HasPrefix(candidate, "/\\") {
		return nav.RootPath
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return nav.RootPath
	}
	return candidate
}
