package server

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/config"
)

// Identity headers set on proxied requests. Client-supplied copies are removed.
const (
	HeaderAuthenticatedUserID = "X-Authenticated-User-Id"
	HeaderEffectiveUserID     = "X-Effective-User-Id"
	HeaderImpersonating       = "X-Impersonating"
	HeaderTenantID            = "X-Tenant-Id"
)

var identityHeaders = []string{
	HeaderAuthenticatedUserID,
	HeaderEffectiveUserID,
	HeaderImpersonating,
	HeaderTenantID,
}

// ProtectedRoute binds a method and chi pattern to a route policy.
type ProtectedRoute struct {
	Method  string
	Pattern string
	Policy  auth.RoutePolicy
}

// RoutesFromConfig converts declarative route config.
func RoutesFromConfig(routes []config.RouteConfig) []ProtectedRoute {
	out := make([]ProtectedRoute, 0, len(routes))
	for _, rc := range routes {
		out = append(out, ProtectedRoute{
			Method:  strings.ToUpper(rc.Method),
			Pattern: rc.Pattern,
			Policy:  auth.Require(rc.RequiredPermissions...),
		})
	}
	return out
}

// Policies returns the policy of every route, for startup validation.
func Policies(routes []ProtectedRoute) []auth.RoutePolicy {
	out := make([]auth.RoutePolicy, 0, len(routes))
	for _, r := range routes {
		out = append(out, r.Policy)
	}
	return out
}

// NewPolicyProxy forwards authorized requests to upstream, annotated with
// the resolved identities.
func NewPolicyProxy(upstream *url.URL, logger *slog.Logger) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()

			for _, h := range identityHeaders {
				pr.Out.Header.Del(h)
			}
			state, ok := auth.GetAuthState(pr.In.Context())
			if !ok {
				return
			}
			effective := state.Effective()
			pr.Out.Header.Set(HeaderAuthenticatedUserID, state.Current().ID)
			pr.Out.Header.Set(HeaderEffectiveUserID, effective.ID)
			pr.Out.Header.Set(HeaderImpersonating, strconv.FormatBool(state.IsImpersonating()))
			if tenant := effective.Tenant(); tenant != "" {
				pr.Out.Header.Set(HeaderTenantID, tenant)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "upstream request failed",
				"method", r.Method, "path", r.URL.Path, "error", err.Error())
			writeJSON(w, http.StatusBadGateway, errorBody{Error: "bad_gateway", Message: "upstream unavailable"})
		},
	}
}
