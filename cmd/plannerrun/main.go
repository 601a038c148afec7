// cmd/plannerrun/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"plannerrun/internal/config"
	"plannerrun/internal/db"
	"plannerrun/pkg/logger"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "plannerrun",
		Short:   "PlannerRun checkout API and plan fulfillment",
		Version: Version,
		// serve is the default so the container entrypoint needs no arguments
		RunE: runServe,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(fulfillCmd())
	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(countCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by every command.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	var l *logger.Logger
	if cfg.Log.Development {
		l = logger.NewDevelopment()
	} else {
		l = logger.New(cfg.Log.Level)
	}
	return cfg, l, nil
}

// connectDB opens the pool, retrying a few times while the database starts.
func connectDB(ctx context.Context, cfg config.DB, l *logger.Logger) (*db.PostgresDB, error) {
	var (
		database *db.PostgresDB
		err      error
	)
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		database, err = db.NewPostgresDB(ctx, cfg)
		if err == nil {
			return database, nil
		}
		l.Errorw("Failed to connect to database, retrying...", "error", err, "attempt", i+1)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * time.Second):
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
}
