package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lodestone-data/lodestone/internal/log"
	"github.com/lodestone-data/lodestone/internal/tenant"
)

type ctxKey int

const (
	ctxKeyTenantID ctxKey = iota
	ctxKeyRequestID
)

// TenantFromContext returns the authenticated tenant id set by the auth
// middleware, or empty when the request was not authenticated.
func TenantFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyTenantID).(string)
	return id
}

// RequestIDFromContext returns the request id assigned by the middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// TenantResolver resolves API keys to tenants.
type TenantResolver interface {
	ValidateAPIKey(ctx context.Context, key string) (*tenant.Tenant, error)
}

// authMiddleware resolves the tenant for each /api request from the
// X-API-Key header. When auth is not required, requests without a key run
// as the default tenant, matching local-dev behavior.
type authMiddleware struct {
	tenants TenantResolver
	require bool
	logger  log.Logger
}

func newAuthMiddleware(tenants TenantResolver, require bool, logger log.Logger) *authMiddleware {
	return &authMiddleware{tenants: tenants, require: require, logger: logger}
}

func (m *authMiddleware) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health probes are unauthenticated.
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-API-Key")
		if key != "" {
			t, err := m.tenants.ValidateAPIKey(r.Context(), key)
			if err != nil {
				m.logger.Warn("rejected API key", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), t.ID)))
			return
		}

		if m.require {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Missing X-API-Key header")
			return
		}
		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), tenant.DefaultID)))
	})
}

func withTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKeyTenantID, tenantID)
}

// requestIDMiddleware assigns each request a uuid, echoed in the
// X-Request-ID response header.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs all HTTP requests with method, path, and duration.
func loggingMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", RequestIDFromContext(r.Context()),
				"duration", time.Since(start))
		})
	}
}

// recoveryMiddleware recovers from panics and returns 500 Internal Server Error.
func recoveryMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", "error", err, "path", r.URL.Path)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// chain applies middleware in order: first middleware wraps outermost.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
