// Package gateway is the HTTP/JSON client of the authentication gateway and its
// bearer-authenticated resource endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/ports"
)

// Compile-time conformance.
var (
	_ ports.AuthGateway      = (*Client)(nil)
	_ ports.IdentityResolver = (*Client)(nil)
	_ ports.ResourceFetcher  = (*Client)(nil)
)

const (
	loginPath    = "/auth/login"
	registerPath = "/auth/register"
	mePath       = "/auth/me"

	// registerRole is the only role self-registration may request.
	registerRole = "Student"

	maxBodyBytes = 4 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient is optional; its Transport is reused underneath bearer authentication.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the gateway. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// NewClient validates cfg and constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("gateway base URL is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse gateway base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gateway base URL: unsupported scheme %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, errors.New("gateway base URL: missing host")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if cfg.Timeout > 0 {
		clone := *hc
		clone.Timeout = cfg.Timeout
		hc = &clone
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{base: base, http: hc, logger: logger}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Program   string `json:"program,omitempty"`
	YearLevel int    `json:"year_level,omitempty"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  *userPayload `json:"user"`
}

type userPayload struct {
	ID       string          `json:"id"`
	Email    string          `json:"email"`
	Username string          `json:"username"`
	Role     string          `json:"role"`
	Profile  json.RawMessage `json:"profile"`
}

// Login posts the login form.
func (c *Client) Login(ctx context.Context, in ports.LoginInput) (ports.AuthResult, error) {
	var out tokenResponse
	req := loginRequest{Email: in.Email, Password: in.Password}
	if err := c.do(ctx, c.http, http.MethodPost, loginPath, req, &out, authEndpoint); err != nil {
		return ports.AuthResult{}, err
	}
	return out.result("")
}

// Register creates a Student account and returns its credential.
func (c *Client) Register(ctx context.Context, in ports.RegisterInput) (ports.AuthResult, error) {
	var out tokenResponse
	req := registerRequest{
		Email:     in.Email,
		Username:  in.Username,
		Password:  in.Password,
		Role:      registerRole,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Program:   in.Program,
		YearLevel: in.YearLevel,
	}
	if err := c.do(ctx, c.http, http.MethodPost, registerPath, req, &out, authEndpoint); err != nil {
		return ports.AuthResult{}, err
	}
	return out.result(in.Username)
}

// Resolve asks the gateway who holds cred.
func (c *Client) Resolve(ctx context.Context, cred domainauth.Credential) (domainauth.Identity, error) {
	hc, err := c.bearer(cred)
	if err != nil {
		return domainauth.Identity{}, err
	}
	var out userPayload
	if err := c.do(ctx, hc, http.MethodGet, mePath, nil, &out, authEndpoint); err != nil {
		return domainauth.Identity{}, err
	}
	return out.identity()
}

// Fetch GETs path with cred and decodes the JSON body into dst. A nil dst discards the body.
func (c *Client) Fetch(ctx context.Context, cred domainauth.Credential, path string, dst any) error {
	hc, err := c.bearer(cred)
	if err != nil {
		return err
	}
	return c.do(ctx, hc, http.MethodGet, path, nil, dst, resourceEndpoint)
}

func (c *Client) bearer(cred domainauth.Credential) (*http.Client, error) {
	if cred.IsZero() {
		return nil, &domainauth.AuthError{Kind: domainauth.KindInvalidCredential, Err: errors.New("empty credential")}
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.Token(), TokenType: "Bearer"})
	return &http.Client{
		Timeout:   c.http.Timeout,
		Transport: &oauth2.Transport{Source: src, Base: c.http.Transport},
	}, nil
}

func (c *Client) endpoint(path string) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", fmt.Errorf("path %q must be relative to the gateway", path)
	}
	u := c.base.JoinPath(ref.Path)
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

func (c *Client) do(
	ctx context.Context,
	hc *http.Client,
	method, path string,
	payload, dst any,
	kind endpointKind,
) error {
	target, err := c.endpoint(path)
	if err != nil {
		return &domainauth.AuthError{Kind: domainauth.KindValidationFailure, Err: err}
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return &domainauth.AuthError{Kind: domainauth.KindValidationFailure, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &domainauth.AuthError{Kind: domainauth.KindNetworkFailure, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "gateway request failed", "method", method, "path", path, "error", err)
		return &domainauth.AuthError{Kind: domainauth.KindNetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.logger.DebugContext(ctx, "gateway request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		return &domainauth.AuthError{Kind: domainauth.KindNetworkFailure, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, raw, kind)
	}
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &domainauth.AuthError{
			Kind:   domainauth.KindMalformedResponse,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("decode %s response: %w", path, err),
		}
	}
	return nil
}

func (r tokenResponse) result(fallbackUsername string) (ports.AuthResult, error) {
	if strings.TrimSpace(r.Token) == "" {
		return ports.AuthResult{}, malformed(errors.New("response has no token"))
	}
	if r.User == nil {
		return ports.AuthResult{}, malformed(errors.New("response has no user"))
	}
	id, err := r.User.identity()
	if err != nil {
		return ports.AuthResult{}, err
	}
	if id.Username == "" {
		id.Username = fallbackUsername
	}
	return ports.AuthResult{Credential: domainauth.Credential(r.Token), Identity: id}, nil
}

func (p userPayload) identity() (domainauth.Identity, error) {
	if strings.TrimSpace(p.ID) == "" {
		return domainauth.Identity{}, malformed(errors.New("user has no id"))
	}
	role, err := domainauth.ParseRole(p.Role)
	if err != nil {
		return domainauth.Identity{}, malformed(err)
	}
	id := domainauth.Identity{
		ID:       p.ID,
		Username: p.Username,
		Email:    p.Email,
		Role:     role,
	}
	if len(p.Profile) > 0 && !bytes.Equal(bytes.TrimSpace(p.Profile), []byte("null")) {
		id.Profile = p.Profile
	}
	return id, nil
}

func malformed(err error) error {
	return &domainauth.AuthError{Kind: domainauth.KindMalformedResponse, Status: http.StatusOK, Err: err}
}
