package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/milanbella/storyboard/config"
	"github.com/milanbella/storyboard/db"
	"github.com/milanbella/storyboard/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error(err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newApp(configPath)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), configPath)
		},
	}

	rootCmd := &cobra.Command{
		Use:           "storyboard",
		Short:         "Storyboard task tracker API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serveCmd.RunE,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)

	return rootCmd
}

func runMigrations(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, err := newLogger(cfg); err != nil {
		return err
	}

	conn, err := db.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.LogErr(fmt.Errorf("close db: %w", err))
		}
	}()

	return db.Migrate(ctx, conn, cfg.Database.Driver)
}
