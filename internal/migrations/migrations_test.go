package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/agora-social/agora/test/testutil"
)

func TestRunCreatesEveryTable(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	logger := zaptest.NewLogger(t)

	require.NoError(t, Run(db, logger))
	require.NoError(t, Run(db, logger), "applied migrations are skipped")

	for _, table := range []string{"topics", "posts", "users"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	applied, err := NewMigrator(db, logger).Applied()
	require.NoError(t, err)
	assert.Len(t, applied, len(All()))

	pending, err := NewMigrator(db, logger).Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMigratedSchemaStoresEntities(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	require.NoError(t, Run(db, zaptest.NewLogger(t)))

	topic := testutil.CreateTestTopic("Golang")
	user := testutil.CreateTestUser("gopher")
	post := testutil.CreateTestPost(user.ID, topic.ID)

	require.NoError(t, db.Create(topic).Error)
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(post).Error)

	assert.Error(t, db.Create(testutil.CreateTestTopic("Golang")).Error, "topic names are unique")

	var count int64
	require.NoError(t, db.Model(post).Where("topic_id = ?", topic.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
