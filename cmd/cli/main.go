package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/akeren/go-waitlist/config"
	"github.com/akeren/go-waitlist/domain/waitlist"
	"github.com/akeren/go-waitlist/internal/log"
	"github.com/akeren/go-waitlist/pkg/migrations"
	"github.com/akeren/go-waitlist/pkg/utils"
	"gorm.io/gorm"
)

func main() {
	logger := log.NewLoggerWithJSONOutput()

	config.InitializeEnvFile(logger) // Load envs early for CLI consistency

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "migrate":
		if err := runMigrate(logger); err != nil {
			logger.Error("Database migration failed", "error", err.Error())
			os.Exit(1)
		}
		logger.Info("Database migrations completed")

	case "status":
		if err := runStatus(logger); err != nil {
			logger.Error("Failed to read migration status", "error", err.Error())
			os.Exit(1)
		}

	case "list":
		if err := runList(logger); err != nil {
			logger.Error("Failed to list waitlist", "error", err.Error())
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func openDatabase(logger *log.Logger) (*gorm.DB, *config.DBConfig, func(), error) {
	dbCfg := config.NewDBConfigFromEnv()

	db, err := config.NewDatabase(logger, dbCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	return db, dbCfg, func() { config.CloseDatabase(db, logger) }, nil
}

// openMigrationTarget hands the connection over to golang-migrate, which
// closes it when done.
func openMigrationTarget(logger *log.Logger) (*sql.DB, migrations.Config, error) {
	db, dbCfg, _, err := openDatabase(logger)
	if err != nil {
		return nil, migrations.Config{}, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, migrations.Config{}, fmt.Errorf("get SQL DB instance: %w", err)
	}

	return sqlDB, migrations.Config{
		Driver: dbCfg.Driver,
		Dir:    utils.GetEnvTrimmed("MIGRATIONS_DIR"),
		Logger: logger,
	}, nil
}

func runMigrate(logger *log.Logger) error {
	sqlDB, cfg, err := openMigrationTarget(logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	return migrations.Up(ctx, sqlDB, cfg)
}

func runStatus(logger *log.Logger) error {
	sqlDB, cfg, err := openMigrationTarget(logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status, err := migrations.CurrentStatus(ctx, sqlDB, cfg)
	if err != nil {
		return err
	}

	switch {
	case !status.Applied:
		fmt.Println("no migrations applied")
	case status.Dirty:
		fmt.Printf("version %d (dirty: a migration failed part way, fix it and force the version)\n", status.Version)
	default:
		fmt.Printf("version %d\n", status.Version)
	}
	return nil
}

// runList prints the waitlist as the admin endpoint would return it.
func runList(logger *log.Logger) error {
	db, _, closeDB, err := openDatabase(logger)
	if err != nil {
		return err
	}
	defer closeDB()

	service := waitlist.NewWaitlistServiceFactory(db, logger, nil, "", nil).CreateService()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := service.List(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func printUsage() {
	fmt.Println("Usage: cli <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate  Apply the SQL migrations for DB_DRIVER (postgres or sqlite) and exit")
	fmt.Println("  status   Print the applied migration version")
	fmt.Println("  list     Print every waitlist entry as JSON, newest first")
}
