package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/spec-kit/clinic-crm/internal/domain"
)

// CachedPermissionSource memoizes effective permission sets per identity.
type CachedPermissionSource struct {
	next  PermissionSource
	cache *expirable.LRU[int64, []domain.Permission]
}

// NewCachedPermissionSource wraps next with an LRU bounded by size whose entries expire
// after ttl. A non-positive ttl disables caching.
func NewCachedPermissionSource(next PermissionSource, size int, ttl time.Duration) *CachedPermissionSource {
	src := &CachedPermissionSource{next: next}
	if ttl > 0 {
		if size <= 0 {
			size = 1024
		}
		src.cache = expirable.NewLRU[int64, []domain.Permission](size, nil, ttl)
	}
	return src
}

func (s *CachedPermissionSource) EffectivePermissions(ctx context.Context, identityID int64) ([]domain.Permission, error) {
	if s.cache != nil {
		if perms, ok := s.cache.Get(identityID); ok {
			return perms, nil
		}
	}
	perms, err := s.next.EffectivePermissions(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(identityID, perms)
	}
	return perms, nil
}

// Forget drops the cached set of one identity.
func (s *CachedPermissionSource) Forget(identityID int64) {
	if s.cache != nil {
		s.cache.Remove(identityID)
	}
}

// Flush drops every cached set.
func (s *CachedPermissionSource) Flush() {
	if s.cache != nil {
		s.cache.Purge()
	}
}
