package middleware

import (
	"log/slog"
	"net/http"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/logging"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/services/iam"
)

// Authenticate verifies the bearer token and stores the resulting
// RequestAuthState in the request context. Failures end the request with 401.
func Authenticate(svc iam.Service, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logging.WithComponent(logger, "authn")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, err := svc.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				WriteError(w, r, logger, err)
				return
			}
			ctx := auth.SetAuthState(r.Context(), state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Impersonate applies the delegation target from header. It must run after
// Authenticate. Requests without the header pass through unchanged.
func Impersonate(svc iam.Service, header string, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logging.WithComponent(logger, "impersonation")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			target := r.Header.Get(header)
			if target == "" {
				next.ServeHTTP(w, r)
				return
			}

			state, ok := auth.GetAuthState(r.Context())
			if !ok {
				WriteError(w, r, logger, auth.Unauthenticated("authentication required", nil))
				return
			}

			state, err := svc.Impersonate(r.Context(), state, target)
			if err != nil {
				WriteError(w, r, logger, err)
				return
			}
			ctx := auth.SetAuthState(r.Context(), state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePolicy enforces policy against the effective identity.
func RequirePolicy(svc iam.Service, policy auth.RoutePolicy, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logging.WithComponent(logger, "authz")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, ok := auth.GetAuthState(r.Context())
			if !ok && !policy.IsOpen() {
				WriteError(w, r, logger, auth.Unauthenticated("authentication required", nil))
				return
			}
			if err := svc.Authorize(r.Context(), state, policy); err != nil {
				WriteError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
