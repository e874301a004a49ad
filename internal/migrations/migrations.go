// Package migrations lists the schema versions of every service table.
package migrations

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	postdomain "github.com/agora-social/agora/internal/post/domain"
	topicdomain "github.com/agora-social/agora/internal/topic/domain"
	userdomain "github.com/agora-social/agora/internal/user/domain"
	"github.com/agora-social/agora/pkg/database"
)

// All returns the migrations in the order they must be applied.
func All() []database.MigrationEntry {
	return []database.MigrationEntry{
		database.AutoMigrateEntry("20250301000001", "create_topics", &topicdomain.Topic{}),
		database.AutoMigrateEntry("20250301000002", "create_posts", &postdomain.Post{}),
		database.AutoMigrateEntry("20250301000003", "create_users", &userdomain.User{}),
	}
}

// NewMigrator returns a migrator over All.
func NewMigrator(db *gorm.DB, logger *zap.Logger) *database.Migrator {
	return database.NewMigrator(db, logger, All()...)
}

// Run applies every pending migration.
func Run(db *gorm.DB, logger *zap.Logger) error {
	return NewMigrator(db, logger).Migrate()
}
