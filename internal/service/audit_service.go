package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-crm/internal/events"
)

// AuditService writes an audit trail of lifecycle and record events to the log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventIdentityRegistered, a.handleIdentityRegistered)
	a.dispatcher.Subscribe(events.EventTokenIssued, a.handleTokenIssued)
	a.dispatcher.Subscribe(events.EventTokensRevoked, a.handleTokensRevoked)
	a.dispatcher.Subscribe(events.EventRecordWritten, a.handleRecordWritten)
	a.dispatcher.Subscribe(events.EventIncentiveSynced, a.handleIncentiveSynced)
}

func (a *AuditService) handleIdentityRegistered(_ context.Context, event events.Event) error {
	a.logger.Info("IdentityRegistered", a.base(event)...)
	return nil
}

func (a *AuditService) handleTokenIssued(_ context.Context, event events.Event) error {
	fields := a.base(event)
	if p, ok := event.Payload.(events.TokenIssuedPayload); ok {
		fields = append(fields, zap.Int64("token_id", p.TokenID), zap.String("token_name", p.Name))
		if p.ExpiresAt != nil {
			fields = append(fields, zap.Time("expires_at", *p.ExpiresAt))
		}
	}
	a.logger.Info("TokenIssued", fields...)
	return nil
}

func (a *AuditService) handleTokensRevoked(_ context.Context, event events.Event) error {
	fields := a.base(event)
	if p, ok := event.Payload.(events.TokensRevokedPayload); ok {
		fields = append(fields, zap.Int64("revoked", p.Revoked), zap.String("reason", p.Reason))
	}
	a.logger.Info("TokensRevoked", fields...)
	return nil
}

func (a *AuditService) handleRecordWritten(_ context.Context, event events.Event) error {
	fields := a.base(event)
	if p, ok := event.Payload.(events.RecordWrittenPayload); ok {
		fields = append(fields,
			zap.String("source_type", string(p.Source.Type)),
			zap.Int64("source_id", p.Source.ID),
			zap.String("action", p.Action))
	}
	a.logger.Info("RecordWritten", fields...)
	return nil
}

func (a *AuditService) handleIncentiveSynced(_ context.Context, event events.Event) error {
	fields := a.base(event)
	if p, ok := event.Payload.(events.IncentiveSyncedPayload); ok {
		fields = append(fields,
			zap.String("source_type", string(p.Source.Type)),
			zap.Int64("source_id", p.Source.ID),
			zap.String("outcome", p.Outcome))
	}
	a.logger.Info("IncentiveSynced", fields...)
	return nil
}

func (a *AuditService) base(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int64("identity_id", event.IdentityID),
	}
}
