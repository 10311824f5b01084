package persistence

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-chat/internal/config"
)

func TestMigrationNamesAreOrdered(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_parties_and_context.sql", "0002_chat.sql"}, names)
}

func TestChatMigrationDeclaresUniqueness(t *testing.T) {
	content, err := fs.ReadFile(migrationFiles, migrationsDir+"/0002_chat.sql")
	require.NoError(t, err)
	sql := string(content)
	assert.Contains(t, sql, "UNIQUE (dedup_key)")
	assert.Contains(t, sql, "ON DELETE CASCADE")
}

func TestRunMigrationsWithoutPoolIsNoop(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil, zap.NewNop()))
}

func TestPostgresWithoutDSNIsDisabled(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, pg.Enabled())
	assert.Nil(t, pg.PoolHandle())
	assert.Error(t, pg.Ping(context.Background()))
	pg.Close()
}
