package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"quarry/internal/config"
	"quarry/internal/domain"
)

// APIKeyAuthenticator resolves a raw API key to its stored record.
type APIKeyAuthenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*domain.APIKey, error)
}

// Authenticator authenticates requests via JWT Bearer tokens or API keys
// and stores the resulting principal in the request context.
type Authenticator struct {
	validators []JWTValidator
	apiKeys    APIKeyAuthenticator
	cfg        config.AuthConfig
	logger     *slog.Logger
}

// NewAuthenticator builds an Authenticator. Validators are tried in order;
// the first that accepts the token wins. apiKeys may be nil, which disables
// API key auth regardless of configuration.
func NewAuthenticator(validators []JWTValidator, apiKeys APIKeyAuthenticator, cfg config.AuthConfig, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		validators: validators,
		apiKeys:    apiKeys,
		cfg:        cfg,
		logger:     logger.With("component", "auth"),
	}
}

// Middleware tries JWT Bearer auth first, then the API key header.
// Requests that fail both get a 401 with a JSON body.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return a.MiddlewareWithFailure(func(w http.ResponseWriter, r *http.Request) {
		writeAuthError(w, http.StatusUnauthorized, "unauthorized: provide a valid JWT Bearer token or API key")
	})
}

// MiddlewareWithFailure is Middleware with a custom handler for requests
// that fail authentication. The UI passes a redirect-to-login handler here.
func (a *Authenticator) MiddlewareWithFailure(onFail http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token := strings.TrimPrefix(auth, "Bearer ")
				if cp, ok := a.authenticateJWT(r.Context(), token); ok {
					next.ServeHTTP(w, r.WithContext(domain.WithPrincipal(r.Context(), cp)))
					return
				}
			}

			if a.cfg.APIKeyEnabled && a.apiKeys != nil {
				if rawKey := r.Header.Get(a.apiKeyHeader()); rawKey != "" {
					if key, err := a.apiKeys.Authenticate(r.Context(), rawKey); err == nil {
						cp := domain.ContextPrincipal{Name: key.PrincipalName, IsAdmin: key.IsAdmin, Type: "api_key"}
						next.ServeHTTP(w, r.WithContext(domain.WithPrincipal(r.Context(), cp)))
						return
					}
				}
			}

			onFail(w, r)
		})
	}
}

// authenticateJWT runs the token through the validator chain and maps the
// claims to a principal. A token that verifies but yields no usable name
// is rejected.
func (a *Authenticator) authenticateJWT(ctx context.Context, token string) (domain.ContextPrincipal, bool) {
	var lastErr error
	for _, v := range a.validators {
		claims, err := v.Validate(ctx, token)
		if err != nil {
			lastErr = err
			continue
		}
		name := a.resolveDisplayName(claims)
		if name == "" {
			a.logger.Warn("token verified but carries no usable name claim", "issuer", claims.Issuer)
			return domain.ContextPrincipal{}, false
		}
		return domain.ContextPrincipal{
			Name:    name,
			IsAdmin: a.grantsAdmin(name, claims),
			Type:    "user",
		}, true
	}
	if lastErr != nil {
		a.logger.Debug("jwt validation failed", "error", lastErr)
	}
	return domain.ContextPrincipal{}, false
}

// resolveDisplayName picks the principal name from token claims: the
// configured claim first, then email, preferred_username and sub.
func (a *Authenticator) resolveDisplayName(claims *JWTClaims) string {
	for _, claim := range []string{a.cfg.NameClaim, "email", "preferred_username", "sub"} {
		if claim == "" {
			continue
		}
		if v, ok := claims.Raw[claim].(string); ok {
			if name := sanitizeName(v); name != "" {
				return name
			}
		}
	}
	return sanitizeName(claims.Subject)
}

// grantsAdmin reports whether the token grants admin rights: an
// `admin: true` claim, or a name listed in AdminClaims.
func (a *Authenticator) grantsAdmin(name string, claims *JWTClaims) bool {
	if v, ok := claims.Raw["admin"].(bool); ok && v {
		return true
	}
	return slices.Contains(a.cfg.AdminClaims, name)
}

func (a *Authenticator) apiKeyHeader() string {
	if a.cfg.APIKeyHeader != "" {
		return a.cfg.APIKeyHeader
	}
	return "X-API-Key"
}

// sanitizeName normalises a principal name: trimmed and lowercased.
func sanitizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RequireAdmin rejects requests whose principal lacks the admin flag.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cp, ok := domain.PrincipalFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !cp.IsAdmin {
			writeAuthError(w, http.StatusForbidden, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    code,
		"message": message,
	})
}
