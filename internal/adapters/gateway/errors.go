package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
)

type endpointKind uint8

const (
	authEndpoint endpointKind = iota
	resourceEndpoint
)

// Error bodies are {"detail": "..."} or, for request validation, {"detail": [{"msg": "..."}, ...]}.
var detailExpressions = []string{"detail", "detail[0].msg", "message"}

func statusError(status int, body []byte, kind endpointKind) error {
	return &domainauth.AuthError{
		Kind:   classify(status, kind),
		Status: status,
		Detail: extractDetail(body),
	}
}

func classify(status int, kind endpointKind) domainauth.ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return domainauth.KindInvalidCredential
	case status == http.StatusForbidden:
		if kind == resourceEndpoint {
			return domainauth.KindValidationFailure
		}
		return domainauth.KindInvalidCredential
	case status >= 400 && status < 500:
		return domainauth.KindValidationFailure
	default:
		return domainauth.KindNetworkFailure
	}
}

// extractDetail returns the first non-empty string detail in body, or "".
func extractDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	for _, expr := range detailExpressions {
		v, err := jmespath.Search(expr, doc)
		if err != nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
