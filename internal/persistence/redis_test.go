package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-crm/internal/config"
)

func TestRedisPing(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	t.Cleanup(r.Close)

	require.NoError(t, r.Ping(context.Background()))

	mr.Close()
	assert.Error(t, r.Ping(context.Background()))
}

func TestNilHandles(t *testing.T) {
	var r *Redis
	assert.Error(t, r.Ping(context.Background()))

	pg := &Postgres{}
	assert.False(t, pg.Enabled())
	assert.ErrorIs(t, pg.Ping(context.Background()), ErrPostgresDisabled)
	assert.NotPanics(t, pg.Close)
}

func TestMigrationFilesAreSorted(t *testing.T) {
	files, err := migrationFiles("../../migrations")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_init.sql", files[0])
}
