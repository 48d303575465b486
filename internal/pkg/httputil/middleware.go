package httputil

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/bissquit/storefront-auth/internal/domain"
	"github.com/bissquit/storefront-auth/internal/pkg/ctxlog"
	"github.com/bissquit/storefront-auth/internal/pkg/metrics"
)

// CORSMiddleware answers preflight requests and sets CORS headers for
// allowed origins. "*" allows any origin.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAny := slices.Contains(allowedOrigins, "*")
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if _, ok := origins[origin]; origin != "" && (ok || allowAny) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type contextKey struct{}

// TokenValidator resolves a bearer token into the caller identity.
// Implementations return domain.ErrTokenExpired or domain.ErrTokenInvalid.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (domain.Identity, error)
}

// AuthMiddleware rejects requests without a valid bearer token with 401 and
// stores the resolved identity in the request context otherwise.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, reason := bearerToken(r.Header.Get("Authorization"))
			if reason != "" {
				reject(r.Context(), w, reason)
				return
			}

			id, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				reason := "invalid"
				if errors.Is(err, domain.ErrTokenExpired) {
					reason = "expired"
				}
				reject(r.Context(), w, reason)
				return
			}

			ctx := WithIdentity(r.Context(), id)
			ctx = ctxlog.With(ctx, "user_id", id.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets the request through only when the caller's role is one
// of allowed. It must run after AuthMiddleware.
func RequireRole(allowed ...domain.Role) func(http.Handler) http.Handler {
	set := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		set[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				reject(r.Context(), w, "missing")
				return
			}

			if _, ok := set[id.Role]; !ok {
				metrics.TokenRejections.WithLabelValues("forbidden").Inc()
				ctxlog.FromContext(r.Context()).Info("access denied", "role", id.Role)
				Error(w, http.StatusForbidden, "forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext returns the identity stored by AuthMiddleware.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(domain.Identity)
	return id, ok
}

// bearerToken extracts the token from an Authorization header value. A
// non-empty reason explains why the header was rejected.
func bearerToken(header string) (token, reason string) {
	if header == "" {
		return "", "missing"
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", "malformed"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "malformed"
	}
	return token, ""
}

func reject(ctx context.Context, w http.ResponseWriter, reason string) {
	metrics.TokenRejections.WithLabelValues(reason).Inc()
	ctxlog.FromContext(ctx).Info("request not authenticated", "reason", reason)
	Error(w, http.StatusUnauthorized, "unauthorized")
}
