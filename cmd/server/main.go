package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ragapi/config"
	"ragapi/database"
	"ragapi/pkg/logger"
	"ragapi/server"
)

var (
	flagPort   string
	flagDB     string
	flagConfig string
)

var rootCmd = &cobra.Command{
	Use:          "ragapi",
	Short:        "Serve the collection, document and search API",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		srv, err := server.New(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := srv.Close(); err != nil {
				log.Warn("release resources", zap.Error(err))
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the collections database and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		db, err := database.OpenSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		log.Info("database migrated", zap.String("path", cfg.DBPath))
		return database.Close(db)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPort, "port", "", "listen port (overrides PORT)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "collections database path (overrides DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file (overrides CONFIG_FILE)")
	rootCmd.AddCommand(migrateCmd)
}

// setup loads configuration with flags applied last and builds the logger.
func setup(cmd *cobra.Command) (config.AppConfig, *zap.Logger, error) {
	if flagConfig != "" {
		if err := os.Setenv("CONFIG_FILE", flagConfig); err != nil {
			return config.AppConfig{}, nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = flagPort
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = flagDB
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
