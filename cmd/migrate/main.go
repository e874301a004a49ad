package main

import (
	"flag"
	"fmt"
	"log"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agora-social/agora/internal/migrations"
	"github.com/agora-social/agora/pkg/config"
	"github.com/agora-social/agora/pkg/database"
	"github.com/agora-social/agora/pkg/logger"
)

func main() {
	var (
		service = flag.String("service", "migrate", "Service whose configuration is loaded (env prefix and config file)")
		status  = flag.Bool("status", false, "Show migration status")
		dryRun  = flag.Bool("dry-run", false, "Show pending migrations without applying them")
	)
	flag.Parse()

	cfg := config.MustLoadServiceConfig(*service, config.ForService(*service))

	zl, err := logger.ForService(cfg.Service.Name, cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.Development).Build()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	// Connect to database
	db, closeDB, err := database.NewGormDB(cfg.Database.ToDatabaseConfig(), zl.Zap())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB()

	migrator := migrations.NewMigrator(db, zl.Zap())

	// Handle different commands
	switch {
	case *status:
		showMigrationStatus(migrator)
	case *dryRun:
		showPendingMigrations(migrator)
	default:
		runMigrations(db, zl.Zap())
	}
}

// runMigrations applies all pending migrations
func runMigrations(db *gorm.DB, zl *zap.Logger) {
	fmt.Println("Running database migrations...")

	if err := migrations.Run(db, zl); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	fmt.Println("Migrations completed successfully!")
}

// showMigrationStatus displays the current migration status
func showMigrationStatus(m *database.Migrator) {
	applied, err := m.Applied()
	if err != nil {
		log.Fatalf("Failed to get migrations: %v", err)
	}

	if len(applied) == 0 {
		fmt.Println("No migrations have been applied yet.")
	} else {
		fmt.Println("Applied migrations:")
		fmt.Println("==================")
		for _, a := range applied {
			fmt.Printf("%s | %s | Applied at: %s\n", a.Version, a.Name, a.AppliedAt.Format("2006-01-02 15:04:05"))
		}
	}

	pending, err := m.Pending()
	if err != nil {
		log.Fatalf("Failed to get pending migrations: %v", err)
	}

	if len(pending) > 0 {
		fmt.Println("\nPending migrations:")
		fmt.Println("==================")
		for _, p := range pending {
			fmt.Printf("%s | %s\n", p.Version, p.Name)
		}
	} else {
		fmt.Println("\nAll migrations are up to date!")
	}
}

// showPendingMigrations displays migrations that would be applied
func showPendingMigrations(m *database.Migrator) {
	pending, err := m.Pending()
	if err != nil {
		log.Fatalf("Failed to get pending migrations: %v", err)
	}

	if len(pending) == 0 {
		fmt.Println("No pending migrations.")
		return
	}

	fmt.Println("Pending migrations that would be applied:")
	fmt.Println("========================================")
	for _, p := range pending {
		fmt.Printf("%s | %s\n", p.Version, p.Name)
	}
}
