package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/schoolhub/portal/internal/service"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler serves readiness/liveness checks.
type HealthHandler struct {
	Registry *service.SessionRegistry
	// Ping checks the credential store backend; nil skips the check.
	Ping   func(ctx context.Context) error
	Logger *slog.Logger
}

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Store   string `json:"store,omitempty"`
}

// ServeHTTP reports 200 while the store answers, 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.Registry != nil {
		resp.Clients = h.Registry.Len()
	}
	code := http.StatusOK

	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			if h.Logger != nil {
				h.Logger.WarnContext(ctx, "health check: credential store unreachable", "error", err)
			}
			resp.Status = "degraded"
			resp.Store = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		return
	}
	WriteJSON(w, code, resp)
}
