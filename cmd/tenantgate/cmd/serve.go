package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/audit"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/config"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/bunx"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/logging"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/repository"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/server"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/services/iam"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Starts the HTTP server: auth context endpoints, whoami and the
permission-checked reverse proxy for declared routes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateServe(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := shutdownTelemetry(sctx); err != nil {
				logging.LogError(logger, "telemetry shutdown failed", err)
			}
		}()

		metrics, err := telemetry.NewAuthMetrics()
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}

		db, err := bunx.NewDB(cfg.DatabaseURL, bunx.WithMaxOpenConns(cfg.MaxDBConnections))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)
		logger.Info("connected to database", "type", bunx.DetectDatabaseType(cfg.DatabaseURL))

		identityRepo := repository.NewBunIdentityRepository(db)
		roleRepo := repository.NewCachedRoleRepository(
			repository.NewBunRoleRepository(db), cfg.Authz.RoleCacheSize, cfg.Authz.RoleCacheTTL)
		tenantRepo := repository.NewBunTenantRepository(db)

		claimsStore, closeClaimsStore, err := newClaimsStore(ctx, db, cfg)
		if err != nil {
			return err
		}
		defer closeClaimsStore()

		publisher, closePublisher, err := newAuditPublisher(cfg)
		if err != nil {
			return err
		}
		defer closePublisher()

		iamService, err := iam.NewIAMService(
			iam.IAMServiceDependencies{
				Identities: identityRepo,
				Roles:      roleRepo,
				Tenants:    tenantRepo,
				Claims:     claimsStore,
				Audit:      publisher,
				Metrics:    metrics,
				Logger:     logger,
			},
			iam.IAMServiceConfig{Config: cfg},
		)
		if err != nil {
			return fmt.Errorf("failed to initialize IAM service: %w", err)
		}

		routes := server.RoutesFromConfig(cfg.Routes)
		if err := iamService.ValidatePolicies(ctx, server.Policies(routes)); err != nil {
			return fmt.Errorf("invalid route policies: %w", err)
		}

		var upstream *url.URL
		if cfg.UpstreamURL != "" {
			upstream, err = url.Parse(cfg.UpstreamURL)
			if err != nil {
				return fmt.Errorf("invalid upstream_url: %w", err)
			}
		}

		handler := server.NewH2CHandler(server.RouterOptions{
			IAMService:          iamService,
			Logger:              logger,
			ImpersonationHeader: cfg.Auth.ImpersonationHeader,
			Routes:              routes,
			Upstream:            upstream,
			AllowedOrigins:      cfg.CORSAllowedOrigins,
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server", "addr", cfg.ServerAddr, "routes", len(routes))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrors <- err
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigChan)

		for {
			select {
			case err := <-serverErrors:
				return fmt.Errorf("server error: %w", err)
			case sig := <-sigChan:
				if sig == syscall.SIGHUP {
					roleRepo.Purge()
					logger.Info("role permission cache purged")
					continue
				}

				logger.Info("shutting down", "signal", sig.String())
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				err := srv.Shutdown(shutdownCtx)
				shutdownCancel()
				if err != nil {
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}
				logger.Info("server stopped")
				return nil
			}
		}
	},
}

func newClaimsStore(ctx context.Context, db *bun.DB, cfg *config.Config) (repository.ClaimsStore, func(), error) {
	if cfg.Claims.Store != "redis" {
		return repository.NewBunClaimsStore(db), func() {}, nil
	}
	client, err := repository.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("using redis claims store", "addr", cfg.Redis.Addr)
	return repository.NewRedisClaimsStore(client, ""), func() {
		if err := client.Close(); err != nil {
			logging.LogError(logger, "failed to close redis client", err)
		}
	}, nil
}

func newAuditPublisher(cfg *config.Config) (audit.Publisher, func(), error) {
	if cfg.Audit.NATSURL == "" {
		return audit.NewLogPublisher(logger), func() {}, nil
	}
	conn, err := audit.ConnectNATS(cfg.Audit.NATSURL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	publisher := audit.NewNATSPublisher(conn, cfg.Audit.SubjectPrefix, logger)
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			logging.LogError(logger, "failed to close audit publisher", err)
		}
	}, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
