package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/clinic-crm/internal/domain"
)

type countingSource struct {
	calls int
	perms []domain.Permission
}

func (s *countingSource) EffectivePermissions(context.Context, int64) ([]domain.Permission, error) {
	s.calls++
	return s.perms, nil
}

func TestCachedPermissionSource(t *testing.T) {
	ctx := context.Background()
	next := &countingSource{perms: []domain.Permission{{Name: "pharmacy.view"}}}
	cache := NewCachedPermissionSource(next, 8, time.Minute)

	for i := 0; i < 3; i++ {
		perms, err := cache.EffectivePermissions(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, perms, 1)
	}
	assert.Equal(t, 1, next.calls)

	cache.Forget(1)
	_, err := cache.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)

	_, err = cache.EffectivePermissions(ctx, 2)
	require.NoError(t, err)
	cache.Flush()
	_, err = cache.EffectivePermissions(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, next.calls)
}

func TestCachedPermissionSourceDisabled(t *testing.T) {
	next := &countingSource{}
	cache := NewCachedPermissionSource(next, 8, 0)

	_, _ = cache.EffectivePermissions(context.Background(), 1)
	_, _ = cache.EffectivePermissions(context.Background(), 1)
	assert.Equal(t, 2, next.calls)
	assert.NotPanics(t, func() { cache.Forget(1); cache.Flush() })
}
