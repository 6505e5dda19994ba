package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"chariblock/internal/platform/config"
	"chariblock/internal/platform/logger"
	"chariblock/internal/platform/postgres"
)

const programName = "chariblock"

var configFile string

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel).With("component", programName)
	slog.SetDefault(log)
	return cfg, log, nil
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return serveRun(cmd.Context(), cfg, log)
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("database url is not configured")
			}
			ctx := cmd.Context()
			db, err := postgres.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(ctx, db, log); err != nil {
				return err
			}
			log.InfoContext(ctx, "migrations applied")
			return nil
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Charity donation bookkeeping API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return serveRun(cmd.Context(), cfg, log)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	rootCmd.AddCommand(serveCommand(), migrateCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error(err.Error(), "component", programName)
		os.Exit(1)
	}
}
