package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type widget struct {
	ID   string `gorm:"primaryKey"`
	Name string
}

func TestMigratorAppliesOnce(t *testing.T) {
	log := zaptest.NewLogger(t)
	db, cleanup, err := NewGormDB(&Config{Driver: "sqlite", Path: "file::memory:"}, log)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	runs := 0
	migrations := []MigrationEntry{
		AutoMigrateEntry("001", "widgets", &widget{}),
		{Version: "002", Name: "seed", Up: func(tx *gorm.DB) error {
			runs++
			return tx.Create(&widget{ID: "w1", Name: "first"}).Error
		}},
	}

	m := NewMigrator(db, log, migrations...)
	require.NoError(t, m.Migrate())
	require.NoError(t, m.Migrate())
	assert.Equal(t, 1, runs)

	pending, err := m.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	applied, err := m.Applied()
	require.NoError(t, err)
	assert.Len(t, applied, 2)

	var count int64
	require.NoError(t, db.Model(&widget{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
