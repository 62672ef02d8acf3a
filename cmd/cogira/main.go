// Package main is the entry point for the cogira binary.
// It serves the request pipeline over HTTP and manages the user store schema.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hayden74/cogira-frontend/pkg/app"
	"github.com/hayden74/cogira-frontend/pkg/config"
	"github.com/hayden74/cogira-frontend/pkg/gateway"
	"github.com/hayden74/cogira-frontend/pkg/logging"
	"github.com/hayden74/cogira-frontend/pkg/storage/postgres"
	"github.com/hayden74/cogira-frontend/pkg/telemetry"
)

// CLIConfig holds the parsed CLI configuration
type CLIConfig struct {
	Config   string
	Addr     string
	LogLevel string
}

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cogira",
		Short:         "Cogira request pipeline backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level (debug, info, warn, error)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the API over HTTP",
		Long: `Serve the users API and its documentation over HTTP.

Example:
  cogira serve --addr :8080 --config cogira.yaml`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	serveCmd.Flags().StringP("addr", "a", "", "Listen address, overriding the configuration")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the users table and its listing index",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)
	return rootCmd
}

// parseCLIConfig reads the flags common to every command plus --addr when defined.
func parseCLIConfig(cmd *cobra.Command) (*CLIConfig, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}

	cli := &CLIConfig{Config: configPath, LogLevel: logLevel}
	if cmd.Flags().Lookup("addr") != nil {
		if cli.Addr, err = cmd.Flags().GetString("addr"); err != nil {
			return nil, fmt.Errorf("failed to get addr flag: %w", err)
		}
	}
	return cli, nil
}

// buildConfig loads the configuration file and applies CLI overrides on top.
func buildConfig(cli *CLIConfig) (*config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.Addr != "" {
		cfg.Server.Address = cli.Addr
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	return cfg, cfg.Validate()
}

func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cli, err := parseCLIConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := buildConfig(cli)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.OutOrStdout(),
	})
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("Failed to flush traces", "error", err)
		}
	}()

	application, err := app.New(ctx, cfg, app.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("Failed to close application", "error", err)
		}
	}()
	if err := application.Start(ctx); err != nil {
		return err
	}

	logger.Info("Starting cogira",
		"addr", cfg.Server.Address,
		"storage", cfg.Storage.Driver,
		"metrics", cfg.Telemetry.Metrics,
		"policy", cfg.Policy.File,
		"domains", application.Domains(),
	)

	srv := gateway.NewServer(cfg.Server.Address, application.HTTPHandler())
	if err := gateway.Serve(ctx, srv, cfg.Server.ShutdownTimeout, logger); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Info("Memory storage needs no migration")
		return nil
	}

	store, err := postgres.Open(cmd.Context(), cfg.Storage.Driver, cfg.Storage.DSN,
		postgres.WithTableName(cfg.Storage.Table),
		postgres.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.EnsureSchema(cmd.Context()); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("Schema ready", "table", store.TableName())
	return nil
}
