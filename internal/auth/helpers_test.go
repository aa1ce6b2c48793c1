package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/repository/memory"
	"github.com/spec-kit/clinic-crm/internal/session"
	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store     *memory.Store
	sessions  *session.Store
	codec     *session.Codec
	clock     *clock
	guard     *Guard
	lifecycle *Lifecycle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := newClock()
	store := memory.New().WithClock(clk.Now)
	sessions := session.NewStore(client, time.Hour)
	codec := session.NewCodec("test-key").WithClock(clk.Now)

	return &fixture{
		store:    store,
		sessions: sessions,
		codec:    codec,
		clock:    clk,
		guard: NewGuard(GuardConfig{
			Identities: store.Identities(),
			Tokens:     store.Tokens(),
			Sessions:   sessions,
			Codec:      codec,
			CookieName: "clinic_session",
			Cookie: &SessionCookie{
				Name:  "clinic_session",
				TTL:   time.Hour,
				Codec: codec,
				Now:   clk.Now,
			},
			LoginPath: "/login",
			Now:       clk.Now,
		}),
		lifecycle: NewLifecycle(LifecycleConfig{
			Tx:       store,
			Sessions: sessions,
			LoginTTL: 24 * time.Hour,
			Now:      clk.Now,
		}),
	}
}

func (f *fixture) identity(t *testing.T, email string, accountType *int64) *domain.Identity {
	t.Helper()
	identity := &domain.Identity{Name: email, Email: email, PasswordHash: "x", AccountTypeID: accountType}
	require.NoError(t, f.store.Identities().Create(context.Background(), identity))
	return identity
}

// testApp renders errors the way the HTTP layer does, reduced to code and status.
func testApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(fiber.Map{"code": apperrors.FromStatus(fe.Code, fe.Message).Code})
			}
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{
				"code":    de.Code,
				"message": de.Message,
				"details": de.Details,
			})
		},
	})
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, errorBody) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body errorBody
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp, body
}

func ptr[T any](v T) *T { return &v }
