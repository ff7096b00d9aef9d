// Package main is the entry point for the Phoenix Discord bot.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/phoenix/internal/config"
	"github.com/parsascontentcorner/phoenix/internal/database"
	"github.com/parsascontentcorner/phoenix/pkg/logger"
)

var (
	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "phoenix",
	Short: "Phoenix - team and role management bot for Discord",
	Long: `Phoenix manages teams and self-assignable role buttons for Discord servers.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		log, err = logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			logger.Sync(log)
		}
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.NewDB(&cfg.Database, log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer closeDB(db)

		return db.RunMigrations()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&syncCommands, "sync-commands", true, "overwrite the application commands on startup")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func closeDB(db *database.DB) {
	if err := db.Close(); err != nil {
		log.Error("failed to close database connection", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
