package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/domain/nav"
	"github.com/schoolhub/portal/internal/ports"
	"github.com/schoolhub/portal/internal/service"
)

// PageHandlers serves the public landing page and the role dashboards.
type PageHandlers struct {
	Fetcher       ports.ResourceFetcher
	Renderer      *TemplateRenderer
	BootstrapWait time.Duration
	Logger        *slog.Logger
}

// Root sends signed-in visitors to their landing route and shows everyone else the public page.
// While bootstrap is still running the pending placeholder is shown instead of either.
func (h *PageHandlers) Root(w http.ResponseWriter, r *http.Request) {
	m, ok := GetSessionFromContext(r.Context())
	if !ok {
		h.Pending(w, r)
		return
	}
	awaitReady(r.Context(), m, h.BootstrapWait)

	st := m.State()
	switch st.Phase() {
	case domainauth.PhaseAuthenticated:
		id, _ := st.Identity()
		redirect(w, r, nav.LandingRouteFor(id.Role))
	case domainauth.PhaseAnonymous:
		h.render(w, http.StatusOK, newPageData(r, PageLanding, "SchoolHub"))
	default:
		h.Pending(w, r)
	}
}

// Pending renders the neutral placeholder shown while the session is unresolved. The page
// reloads itself so the visitor lands on the right view once bootstrap completes.
func (h *PageHandlers) Pending(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	data := newPageData(r, PagePending, "Loading")
	data.RefreshAfter = pendingRefreshSeconds
	h.render(w, http.StatusAccepted, data)
}

// NotFound renders the error page with 404.
func (h *PageHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("page not found")})
		return
	}
	data := newPageData(r, PageError, "Not found")
	data.Error = "The page you are looking for does not exist."
	h.render(w, http.StatusNotFound, data)
}

// View serves one role-restricted page. It must be wrapped by Guard.Require.
func (h *PageHandlers) View(v view) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := GetSessionFromContext(r.Context())
		if !ok {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		data := newPageData(r, PageDashboard, v.Title)
		if v.Resource == "" {
			data.Page = PageProfile
			data.Fields = profileFields(data.Identity)
			if wantsJSON(r) {
				WriteJSON(w, http.StatusOK, data.Identity)
				return
			}
			h.render(w, http.StatusOK, data)
			return
		}

		var doc any
		err := m.Authorized(r.Context(), func(ctx context.Context, cred domainauth.Credential) error {
			return h.Fetcher.Fetch(ctx, cred, v.Resource, &doc)
		})
		if err != nil {
			h.fetchFailed(w, r, data, err)
			return
		}

		if wantsJSON(r) {
			WriteJSON(w, http.StatusOK, doc)
			return
		}
		data.Stats = evalStats(v.Stats, doc)
		if len(v.Columns) > 0 {
			data.Columns = columnLabels(v.Columns)
			data.Rows = evalRows(v.Columns, doc)
		}
		h.render(w, http.StatusOK, data)
	}
}

// fetchFailed handles a resource error. A rejected credential has already signed the session
// out, so the visitor is sent to log in again; anything else is shown on the page.
func (h *PageHandlers) fetchFailed(w http.ResponseWriter, r *http.Request, data PageData, err error) {
	if errors.Is(err, service.ErrNotAuthenticated) || domainauth.IsKind(err, domainauth.KindInvalidCredential) {
		if wantsJSON(r) {
			WriteAuthError(w, err)
			return
		}
		redirect(w, r, loginURL(nav.LoginPath, redirectPathForRequest(r)))
		return
	}

	h.Logger.WarnContext(r.Context(), "resource fetch failed", "path", r.URL.Path, "error", err)
	code := fetchErrorStatus(err)
	if wantsJSON(r) {
		WriteJSON(w, code, map[string]string{"error": "fetch_failed", "message": domainauth.UserMessage(err)})
		return
	}
	data.Error = domainauth.UserMessage(err)
	h.render(w, code, data)
}

// fetchErrorStatus passes through 4xx statuses reported by the gateway and maps everything
// else to 502.
func fetchErrorStatus(err error) int {
	var ae *domainauth.AuthError
	if errors.As(err, &ae) && ae.Status >= 400 && ae.Status < 500 {
		return ae.Status
	}
	return http.StatusBadGateway
}

func (h *PageHandlers) render(w http.ResponseWriter, code int, data PageData) {
	if err := h.Renderer.Render(w, code, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
