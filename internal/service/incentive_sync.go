package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/events"
	"github.com/spec-kit/clinic-crm/internal/incentive"
	"github.com/spec-kit/clinic-crm/internal/observability"
	"github.com/spec-kit/clinic-crm/internal/repository"
)

const outcomeFailed incentive.Outcome = "failed"

// incentiveSync runs the engine inside a savepoint of the source write. A failure rolls
// back only the incentive work; the source write still commits.
type incentiveSync struct {
	engine  *incentive.Engine
	logger  *zap.Logger
	metrics *observability.Metrics
}

func (s incentiveSync) run(
	ctx context.Context,
	store repository.Store,
	ref domain.SourceRef,
	fn func(ctx context.Context, repo incentive.Repository) (incentive.Outcome, error),
) incentive.Outcome {
	var outcome incentive.Outcome
	err := store.Savepoint(ctx, func(sp repository.Store) error {
		var err error
		outcome, err = fn(ctx, sp.Incentives())
		return err
	})
	if err != nil {
		s.logger.Warn("incentive sync failed",
			zap.String("source_type", string(ref.Type)),
			zap.Int64("source_id", ref.ID),
			zap.Error(err))
		s.metrics.RecordIncentive(string(ref.Type), string(outcomeFailed))
		return outcomeFailed
	}
	s.metrics.RecordIncentive(string(ref.Type), string(outcome))
	return outcome
}

func (s incentiveSync) created(ctx context.Context, store repository.Store, src domain.CommissionSource) incentive.Outcome {
	return s.run(ctx, store, src.Ref, func(ctx context.Context, repo incentive.Repository) (incentive.Outcome, error) {
		return s.engine.OnCreate(ctx, repo, src)
	})
}

func (s incentiveSync) updated(ctx context.Context, store repository.Store, before, after domain.CommissionSource) incentive.Outcome {
	return s.run(ctx, store, after.Ref, func(ctx context.Context, repo incentive.Repository) (incentive.Outcome, error) {
		return s.engine.OnUpdate(ctx, repo, before, after)
	})
}

func (s incentiveSync) deleted(ctx context.Context, store repository.Store, ref domain.SourceRef) incentive.Outcome {
	return s.run(ctx, store, ref, func(ctx context.Context, repo incentive.Repository) (incentive.Outcome, error) {
		return s.engine.OnDelete(ctx, repo, ref)
	})
}

// recordEvents publishes the post-commit events of one source write.
func recordEvents(ctx context.Context, dispatcher events.Dispatcher, actorID int64, ref domain.SourceRef, action string, outcome incentive.Outcome) {
	if dispatcher == nil {
		return
	}
	_ = dispatcher.Publish(ctx, events.New(events.EventRecordWritten, actorID,
		events.RecordWrittenPayload{Source: ref, Action: action}))
	if outcome == incentive.OutcomeUntouched || outcome == incentive.OutcomeNotEligible {
		return
	}
	_ = dispatcher.Publish(ctx, events.New(events.EventIncentiveSynced, actorID,
		events.IncentiveSyncedPayload{Source: ref, Outcome: string(outcome)}))
}
