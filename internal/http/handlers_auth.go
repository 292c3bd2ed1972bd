package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/domain/nav"
	"github.com/schoolhub/portal/internal/ports"
	"github.com/schoolhub/portal/internal/service"
)

// AuthHandlers serves sign-in, registration, sign-out and the session status endpoint.
//
// A successful login or registration always runs on a freshly minted client context, which
// the browser adopts only once the gateway has accepted the secrets. The previous context is
// signed out and discarded.
type AuthHandlers struct {
	Clients       *ClientContexts
	Renderer      *TemplateRenderer
	CSRF          CSRFConfig
	BootstrapWait time.Duration
	Logger        *slog.Logger
}

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Program     string `json:"program,omitempty"`
	YearLevel   int    `json:"year_level,omitempty"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// statusResponse is the JSON view of a session.
type statusResponse struct {
	State     string               `json:"state"`
	User      *domainauth.Identity `json:"user,omitempty"`
	Landing   string               `json:"landing,omitempty"`
	Redirect  string               `json:"redirect,omitempty"`
	Menu      []nav.Entry          `json:"menu,omitempty"`
	CSRFToken string               `json:"csrf_token,omitempty"`
}

// LoginForm renders the sign-in page. Signed-in visitors go straight to their landing route.
func (h *AuthHandlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.form(w, r, PageLogin, "Sign in")
}

// RegisterForm renders the self-registration page.
func (h *AuthHandlers) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.form(w, r, PageRegister, "Create account")
}

func (h *AuthHandlers) form(w http.ResponseWriter, r *http.Request, page, title string) {
	back := r.URL.Query().Get("redirect_uri")
	if m, ok := GetSessionFromContext(r.Context()); ok {
		awaitReady(r.Context(), m, h.BootstrapWait)
		if id, authed := m.State().Identity(); authed {
			redirect(w, r, destinationFor(id.Role, back))
			return
		}
	}
	data := newPageData(r, page, title)
	data.Redirect = redirectValue(back)
	h.render(w, http.StatusOK, data)
}

// Login exchanges email and password for a session.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if wantsJSON(r) {
		if !DecodeJSON(w, r, &req) {
			return
		}
	} else {
		req = loginRequest{
			Email:       strings.TrimSpace(r.PostFormValue("email")),
			Password:    r.PostFormValue("password"),
			RedirectURI: r.PostFormValue("redirect_uri"),
		}
	}

	in := ports.LoginInput{Email: strings.TrimSpace(req.Email), Password: req.Password}
	h.establish(w, r, establishParams{
		page:  PageLogin,
		title: "Sign in",
		back:  req.RedirectURI,
		form:  map[string]string{"email": in.Email},
		run: func(m *service.SessionManager) (domainauth.State, error) {
			return m.Login(r.Context(), in)
		},
	})
}

// Register creates a Student account and signs it in.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if wantsJSON(r) {
		if !DecodeJSON(w, r, &req) {
			return
		}
	} else {
		req = registerRequest{
			Email:       strings.TrimSpace(r.PostFormValue("email")),
			Username:    strings.TrimSpace(r.PostFormValue("username")),
			Password:    r.PostFormValue("password"),
			FirstName:   strings.TrimSpace(r.PostFormValue("first_name")),
			LastName:    strings.TrimSpace(r.PostFormValue("last_name")),
			Program:     strings.TrimSpace(r.PostFormValue("program")),
			RedirectURI: r.PostFormValue("redirect_uri"),
		}
		year, err := parseYearLevel(r.PostFormValue("year_level"))
		if err != nil {
			h.fail(w, r, failParams{page: PageRegister, title: "Create account", back: req.RedirectURI, form: registerForm(req), err: err})
			return
		}
		req.YearLevel = year
	}

	in := ports.RegisterInput{
		Email:     strings.TrimSpace(req.Email),
		Username:  strings.TrimSpace(req.Username),
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Program:   strings.TrimSpace(req.Program),
		YearLevel: req.YearLevel,
	}
	h.establish(w, r, establishParams{
		page:  PageRegister,
		title: "Create account",
		back:  req.RedirectURI,
		form:  registerForm(req),
		run: func(m *service.SessionManager) (domainauth.State, error) {
			return m.Register(r.Context(), in)
		},
	})
}

// Logout ends the session. It always succeeds.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if m, ok := GetSessionFromContext(r.Context()); ok {
		m.Logout(r.Context())
	}
	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, statusResponse{
			State:     domainauth.PhaseAnonymous.String(),
			CSRFToken: GetCSRFToken(r),
		})
		return
	}
	redirect(w, r, nav.LoginPath)
}

// Status reports the session state as JSON. It waits for bootstrap like a guarded page does,
// and reports "unresolved" if that wait runs out.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	m, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteJSON(w, http.StatusOK, statusResponse{State: domainauth.PhaseUnresolved.String()})
		return
	}
	awaitReady(r.Context(), m, h.BootstrapWait)
	WriteJSON(w, http.StatusOK, h.status(m.State(), GetCSRFToken(r), ""))
}

func (h *AuthHandlers) status(st domainauth.State, csrfToken, dest string) statusResponse {
	resp := statusResponse{State: st.Phase().String(), CSRFToken: csrfToken}
	if id, ok := st.Identity(); ok {
		resp.User = &id
		resp.Landing = nav.LandingRouteFor(id.Role)
		resp.Menu = nav.MenuFor(id.Role)
		resp.Redirect = dest
	}
	return resp
}

type establishParams struct {
	page  string
	title string
	back  string
	form  map[string]string
	run   func(m *service.SessionManager) (domainauth.State, error)
}

func (h *AuthHandlers) establish(w http.ResponseWriter, r *http.Request, p establishParams) {
	newID, m := h.Clients.Fresh()
	st, err := p.run(m)
	if err != nil {
		h.Clients.Registry.Discard(newID)
		h.fail(w, r, failParams{page: p.page, title: p.title, back: p.back, form: p.form, err: err})
		return
	}

	h.Clients.Adopt(r.Context(), w, GetClientIDFromContext(r.Context()), newID)
	id, _ := st.Identity()
	dest := destinationFor(id.Role, p.back)
	h.Logger.InfoContext(r.Context(), "signed in", "role", id.Role.String(), "client", shortClientID(newID))

	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, h.status(st, h.CSRF.TokenFor(newID), dest))
		return
	}
	redirect(w, r, dest)
}

type failParams struct {
	page  string
	title string
	back  string
	form  map[string]string
	err   error
}

func (h *AuthHandlers) fail(w http.ResponseWriter, r *http.Request, p failParams) {
	code, _ := authErrorStatus(p.err)
	if code >= http.StatusInternalServerError || errors.Is(p.err, service.ErrSuperseded) {
		h.Logger.WarnContext(r.Context(), "sign-in failed", "page", p.page, "error", p.err)
	}
	if wantsJSON(r) {
		WriteAuthError(w, p.err)
		return
	}
	data := newPageData(r, p.page, p.title)
	data.Error = domainauth.UserMessage(p.err)
	data.Form = p.form
	data.Redirect = redirectValue(p.back)
	h.render(w, code, data)
}

func (h *AuthHandlers) render(w http.ResponseWriter, code int, data PageData) {
	if err := h.Renderer.Render(w, code, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// destinationFor returns back when role may open it, else the role's landing route.
func destinationFor(role domainauth.Role, back string) string {
	landing := nav.LandingRouteFor(role)
	target := safeRedirectPath(back)
	if target == nav.RootPath {
		return landing
	}
	u, err := url.Parse(target)
	if err != nil {
		return landing
	}
	v, ok := findView(u.Path)
	if !ok || !v.requirement().Permits(role) {
		return landing
	}
	return target
}

// redirectValue keeps only safe, non-root redirect targets for the hidden form field.
func redirectValue(back string) string {
	if p := safeRedirectPath(back); p != nav.RootPath {
		return p
	}
	return ""
}

func parseYearLevel(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domainauth.AuthError{Kind: domainauth.KindValidationFailure, Detail: "year_level must be a number", Err: err}
	}
	return n, nil
}

func registerForm(req registerRequest) map[string]string {
	form := map[string]string{
		"email":      req.Email,
		"username":   req.Username,
		"first_name": req.FirstName,
		"last_name":  req.LastName,
		"program":    req.Program,
	}
	if req.YearLevel != 0 {
		form["year_level"] = strconv.Itoa(req.YearLevel)
	}
	return form
}
