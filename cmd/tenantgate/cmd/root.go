package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/config"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/logging"
)

var (
	cfg     *config.Config
	logger  *slog.Logger
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "tenantgate",
	Short: "Authorization gateway for multi-tenant applications",
	Long: `tenantgate verifies bearer tokens, resolves the caller and any impersonated
identity, enforces route permissions and proxies authorized requests upstream.
It also owns the persisted identity claims behind the auth context endpoints.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger = logging.NewLogger(logging.Options{
			Format: cfg.Log.Format,
			Level:  cfg.Log.Level,
			Debug:  cfg.Debug,
		})
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	flags.String("db-url", "", "Database connection URL (env: TENANTGATE_DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: TENANTGATE_SERVER_ADDR)")
	flags.String("upstream-url", "", "Upstream base URL for protected routes (env: TENANTGATE_UPSTREAM_URL)")
	flags.Bool("debug", false, "Enable debug logging (env: TENANTGATE_DEBUG)")

	_ = viper.BindPFlag("database_url", flags.Lookup("db-url"))
	_ = viper.BindPFlag("server_addr", flags.Lookup("server-addr"))
	_ = viper.BindPFlag("upstream_url", flags.Lookup("upstream-url"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
