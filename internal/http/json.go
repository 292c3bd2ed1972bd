package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/service"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError to adhere to the ≤3 params guideline.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}

// WriteAuthError writes err as JSON, with the status and code of its kind and the message a
// user should see.
func WriteAuthError(w http.ResponseWriter, err error) {
	code, errCode := authErrorStatus(err)
	WriteJSON(w, code, map[string]string{"error": errCode, "message": domainauth.UserMessage(err)})
}

// authErrorStatus maps a session or gateway error to an HTTP status and error code.
func authErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not_authenticated"
	case errors.Is(err, service.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, service.ErrClosed):
		return http.StatusServiceUnavailable, "session_closed"
	}

	var ae *domainauth.AuthError
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError, "internal_error"
	}
	switch ae.Kind {
	case domainauth.KindInvalidCredential:
		return http.StatusUnauthorized, "invalid_credential"
	case domainauth.KindValidationFailure:
		return http.StatusUnprocessableEntity, "validation_failed"
	default:
		return http.StatusBadGateway, "gateway_error"
	}
}

// wantsJSON reports whether the client sent or asked for JSON rather than HTML.
func wantsJSON(r *http.Request) bool {
	if ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && ct == "application/json" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
