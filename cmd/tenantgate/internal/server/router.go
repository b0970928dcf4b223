package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/logging"
	tgmiddleware "github.com/tenantgate/tenantgate/cmd/tenantgate/internal/middleware"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/services/iam"
)

// DefaultImpersonationHeader is used when RouterOptions leaves it empty.
const DefaultImpersonationHeader = "X-Impersonate-User-Id"

// RouterOptions controls the construction of the HTTP router.
// The zero value is valid apart from IAMService; routes needing it are skipped
// when it is nil.
type RouterOptions struct {
	IAMService          iam.Service
	Logger              *slog.Logger
	ImpersonationHeader string
	Routes              []ProtectedRoute
	Upstream            *url.URL
	AllowedOrigins      []string
}

var defaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

// CORSOptions returns the CORS policy for the given origins. The
// impersonation header must be allowed for browsers to send it.
func CORSOptions(impersonationHeader string, origins []string) cors.Options {
	if len(origins) == 0 {
		origins = defaultAllowedOrigins
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			impersonationHeader,
		},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware, the auth context
// endpoints and the policy-protected upstream routes.
func NewRouter(opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithComponent(logger, "http")
	header := opts.ImpersonationHeader
	if header == "" {
		header = DefaultImpersonationHeader
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(CORSOptions(header, opts.AllowedOrigins)))

	r.Get("/health", healthHandler)

	if opts.IAMService == nil {
		logger.Warn("IAM service not available; skipping auth and protected routes")
		return r
	}

	authn := tgmiddleware.Authenticate(opts.IAMService, logger)
	impersonate := tgmiddleware.Impersonate(opts.IAMService, header, logger)

	// Context endpoints act for the authenticated identity, never the impersonated one.
	r.With(authn).Post("/auth/refresh-with-context", HandleRefreshWithContext(opts.IAMService, logger))
	r.With(authn).Post("/auth/clear-context", HandleClearContext(opts.IAMService, logger))
	r.With(authn, impersonate).Get("/api/auth/whoami", HandleWhoAmI(opts.IAMService, logger))

	if len(opts.Routes) > 0 {
		if opts.Upstream == nil {
			logger.Warn("protected routes declared without an upstream; skipping", "routes", len(opts.Routes))
		} else {
			proxy := NewPolicyProxy(opts.Upstream, logger)
			for _, route := range opts.Routes {
				r.With(
					authn,
					impersonate,
					tgmiddleware.RequirePolicy(opts.IAMService, route.Policy, logger),
				).Method(route.Method, route.Pattern, proxy)
			}
		}
	}

	return r
}

// NewH2CHandler wraps the router with an h2c server to serve HTTP/2 over cleartext.
func NewH2CHandler(opts RouterOptions) http.Handler {
	return h2c.NewHandler(NewRouter(opts), &http2.Server{})
}

// requestLogger installs a request-scoped logger carrying the chi request id
// and logs one line per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.With("request_id", middleware.GetReqID(r.Context()))
			ctx := logging.NewContext(r.Context(), reqLogger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.InfoContext(ctx, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
