package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/reportkeeper/pkg/telemetry/logging"
)

// errNoKey is returned when no configured source carries a key.
var errNoKey = errors.New("no API key found")

// APIKeySource defines where to extract API keys from
type APIKeySource struct {
	Type   string // header, query
	Name   string // Header name or query param
	Scheme string // "Bearer", etc. (optional)
}

// DefaultSources accepts "Authorization: Bearer <key>" and "X-API-Key".
func DefaultSources() []APIKeySource {
	return []APIKeySource{
		{Type: "header", Name: "Authorization", Scheme: "Bearer"},
		{Type: "header", Name: "X-API-Key"},
	}
}

// extract returns the key this source carries in r, or "".
func (s APIKeySource) extract(r *http.Request) string {
	var value string
	switch s.Type {
	case "header":
		value = r.Header.Get(s.Name)
	case "query":
		value = r.URL.Query().Get(s.Name)
	}
	if value == "" || s.Scheme == "" {
		return value
	}
	key, ok := strings.CutPrefix(value, s.Scheme+" ")
	if !ok {
		return ""
	}
	return key
}

// APIKeyMiddleware authenticates requests and stores the caller's Principal
// in the request context. Rejections are 401 with the API's JSON error body.
type APIKeyMiddleware struct {
	validator APIKeyStore
	sources   []APIKeySource
	logger    *slog.Logger
}

// NewAPIKeyMiddleware creates the middleware. With no sources it uses
// DefaultSources.
func NewAPIKeyMiddleware(validator APIKeyStore, sources []APIKeySource) *APIKeyMiddleware {
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	return &APIKeyMiddleware{
		validator: validator,
		sources:   sources,
		logger:    slog.Default().With("component", "security.auth"),
	}
}

// Handle wraps next with API key authentication.
func (m *APIKeyMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := m.extractAPIKey(r)
		if err != nil {
			m.reject(w, r, "missing API key", err)
			return
		}

		info, err := m.validator.Validate(key)
		if err != nil {
			m.reject(w, r, "invalid API key", err)
			return
		}

		m.logger.DebugContext(r.Context(), "API key authenticated",
			"user_id", info.UserID,
			"role", info.Role,
			"path", r.URL.Path,
		)

		ctx := context.WithValue(r.Context(), apiKeyInfoKey, info)
		ctx = WithPrincipal(ctx, info.Principal())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractAPIKey returns the key from the first source that carries one.
func (m *APIKeyMiddleware) extractAPIKey(r *http.Request) (string, error) {
	for _, source := range m.sources {
		if key := source.extract(r); key != "" {
			return key, nil
		}
	}
	return "", errNoKey
}

type unauthorizedBody struct {
	Error struct {
		Type      string `json:"type"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func (m *APIKeyMiddleware) reject(w http.ResponseWriter, r *http.Request, msg string, cause error) {
	m.logger.WarnContext(r.Context(), msg,
		"error", cause,
		"remote_addr", r.RemoteAddr,
		"path", r.URL.Path,
	)

	var body unauthorizedBody
	body.Error.Type = "unauthorized"
	body.Error.Message = msg
	body.Error.RequestID = logging.GetRequestID(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="reportkeeper"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(body)
}

type contextKey string

const (
	// #nosec G101 - This is a context key constant, not a credential
	apiKeyInfoKey contextKey = "api_key_info"
	principalKey  contextKey = "principal"
)

// GetAPIKeyInfo returns the key info of the authenticated caller.
func GetAPIKeyInfo(ctx context.Context) (*APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyInfoKey).(*APIKeyInfo)
	return info, ok
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal stored in ctx.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
