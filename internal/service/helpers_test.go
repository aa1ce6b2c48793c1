package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/clinic-crm/internal/auth"
	"github.com/spec-kit/clinic-crm/internal/config"
	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/events"
	"github.com/spec-kit/clinic-crm/internal/incentive"
	"github.com/spec-kit/clinic-crm/internal/observability"
	"github.com/spec-kit/clinic-crm/internal/repository"
	"github.com/spec-kit/clinic-crm/internal/repository/memory"
	"github.com/spec-kit/clinic-crm/internal/session"
)

// recorder captures every published event.
type recorder struct {
	events.Dispatcher
	published []events.Event
}

func newRecorder() *recorder {
	return &recorder{Dispatcher: events.NewInMemoryDispatcher(zap.NewNop())}
}

func (r *recorder) Publish(ctx context.Context, event events.Event) error {
	r.published = append(r.published, event)
	return r.Dispatcher.Publish(ctx, event)
}

func (r *recorder) types() []events.EventType {
	out := make([]events.EventType, 0, len(r.published))
	for _, e := range r.published {
		out = append(out, e.Type)
	}
	return out
}

func newAuthService(t *testing.T, store *memory.Store, dispatcher events.Dispatcher) (*AuthService, *session.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := session.NewStore(client, time.Hour)
	lifecycle := auth.NewLifecycle(auth.LifecycleConfig{Tx: store, Sessions: sessions, LoginTTL: 24 * time.Hour})
	svc := NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, AuthDependencies{
		Backend:    store,
		Lifecycle:  lifecycle,
		Dispatcher: dispatcher,
	})
	return svc, sessions
}

func newRecordDeps(backend repository.Backend, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) RecordDependencies {
	return RecordDependencies{
		Backend:    backend,
		Engine:     incentive.NewEngine(incentive.DefaultPercentage),
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	}
}

// brokenIncentives is a backend whose incentive writes always fail.
type brokenIncentives struct {
	*memory.Store
}

type failingIncentiveRepo struct {
	repository.IncentiveRepository
}

var errIncentivesDown = errors.New("incentives table unavailable")

func (failingIncentiveRepo) Upsert(context.Context, *domain.Incentive) error {
	return errIncentivesDown
}

func (failingIncentiveRepo) DeleteBySource(context.Context, domain.SourceRef) (bool, error) {
	return false, errIncentivesDown
}

func (b brokenIncentives) Incentives() repository.IncentiveRepository {
	return failingIncentiveRepo{b.Store.Incentives()}
}

func (b brokenIncentives) WithinTx(ctx context.Context, fn func(ctx context.Context, store repository.Store) error) error {
	return b.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(ctx, brokenTx{tx})
	})
}

// brokenTx is the transaction view of brokenIncentives.
type brokenTx struct {
	repository.Store
}

func (b brokenTx) Incentives() repository.IncentiveRepository {
	return failingIncentiveRepo{b.Store.Incentives()}
}

func (b brokenTx) Savepoint(ctx context.Context, fn func(repository.Store) error) error {
	return b.Store.Savepoint(ctx, func(sp repository.Store) error { return fn(brokenTx{sp}) })
}

// incentiveFamily renders the expected incentive_sync_total exposition.
func incentiveFamily(lines ...string) string {
	return "# HELP incentive_sync_total Incentive synchronisation outcomes by source type.\n" +
		"# TYPE incentive_sync_total counter\n" + strings.Join(lines, "\n") + "\n"
}

// newAgent stores an identity records can be assigned to.
func newAgent(t *testing.T, store *memory.Store, email string) *int64 {
	t.Helper()
	identity := &domain.Identity{Name: "Agent", Email: email, PasswordHash: "x"}
	require.NoError(t, store.Identities().Create(context.Background(), identity))
	return &identity.ID
}

func ptr[T any](v T) *T { return &v }
