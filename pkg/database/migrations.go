package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migration records an applied schema version.
type Migration struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// MigrationFunc is a function that performs a migration
type MigrationFunc func(*gorm.DB) error

// MigrationEntry represents a single migration
type MigrationEntry struct {
	Version string
	Name    string
	Up      MigrationFunc
}

// Migrator applies versioned migrations in order, each inside a transaction.
type Migrator struct {
	db         *gorm.DB
	migrations []MigrationEntry
	logger     *zap.Logger
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *gorm.DB, logger *zap.Logger, migrations ...MigrationEntry) *Migrator {
	return &Migrator{
		db:         db,
		migrations: migrations,
		logger:     logger.Named("migrator"),
	}
}

// Migrate runs all pending migrations
func (m *Migrator) Migrate() error {
	pending, err := m.Pending()
	if err != nil {
		return err
	}

	for _, migration := range pending {
		m.logger.Info("running migration",
			zap.String("version", migration.Version),
			zap.String("name", migration.Name))

		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&Migration{
				Version:   migration.Version,
				Name:      migration.Name,
				AppliedAt: time.Now(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("failed to run migration %s: %w", migration.Version, err)
		}
	}

	return nil
}

// Pending returns migrations that have not been applied yet
func (m *Migrator) Pending() ([]MigrationEntry, error) {
	if err := m.db.AutoMigrate(&Migration{}); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var applied []Migration
	if err := m.db.Find(&applied).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	done := make(map[string]bool, len(applied))
	for _, migration := range applied {
		done[migration.Version] = true
	}

	var pending []MigrationEntry
	for _, migration := range m.migrations {
		if !done[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// Applied returns the applied migrations, newest first.
func (m *Migrator) Applied() ([]Migration, error) {
	if err := m.db.AutoMigrate(&Migration{}); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	var applied []Migration
	if err := m.db.Order("applied_at DESC").Find(&applied).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	return applied, nil
}

// AutoMigrateEntry builds a migration that auto-migrates the given models.
func AutoMigrateEntry(version, name string, models ...interface{}) MigrationEntry {
	return MigrationEntry{
		Version: version,
		Name:    name,
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(models...)
		},
	}
}
