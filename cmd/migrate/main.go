// Command migrate manages the proctor schema: sessions, evidence_log and the
// webhook retry queue.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	action := flag.String("action", "up", "up, down, version or force")
	version := flag.Int("version", 0, "Target version for -action force")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	logger := config.NewLogger(cfg)

	db, err := database.NewPool(database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	dbName := database.DatabaseName(cfg.DatabaseURL)
	migrator, err := database.NewMigrator(db, dbName, database.WithMigrationLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	logger = logger.With("database", dbName, "action", *action)

	switch *action {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "force":
		if *version <= 0 {
			return errors.New("-version is required for force")
		}
		err = migrator.Force(*version)
	case "version":
	default:
		return fmt.Errorf("invalid action %q (use: up, down, version, force)", *action)
	}
	if err != nil {
		return err
	}

	v, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	if dirty {
		logger.Warn("schema is dirty, fix the failed migration and run -action force", "version", v)
		return nil
	}
	logger.Info("schema version", "version", v)
	return nil
}
