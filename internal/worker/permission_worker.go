package worker

import (
	"context"

	"github.com/spec-kit/clinic-crm/internal/events"
)

// PermissionCache is the part of the effective-permission cache the worker flushes.
type PermissionCache interface {
	Forget(identityID int64)
}

// StartPermissionCacheWorker drops cached permission sets whenever an identity's
// credentials change.
func StartPermissionCacheWorker(dispatcher events.Dispatcher, cache PermissionCache) {
	if dispatcher == nil || cache == nil {
		return
	}
	forget := func(_ context.Context, event events.Event) error {
		if event.IdentityID != 0 {
			cache.Forget(event.IdentityID)
		}
		return nil
	}
	dispatcher.Subscribe(events.EventTokenIssued, forget)
	dispatcher.Subscribe(events.EventTokensRevoked, forget)
}
