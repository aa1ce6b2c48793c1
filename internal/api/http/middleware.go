package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/clinic-crm/internal/ids"
	"github.com/spec-kit/clinic-crm/internal/observability"
	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
// The request logger wraps the error middleware so it sees the final status.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(requestid.New(requestid.Config{Generator: ids.New}))
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				var fe *fiber.Error
				if errors.As(err, &fe) && fe.Code == fiber.StatusNotFound {
					observability.MarkUnmatched(c)
				}
				domainErr := toDomainError(err)
				metrics.RecordError(observability.RouteLabel(c), c.Method(), domainErr.Code)
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.Error(domainErr))
				}
				err = writeError(c, domainErr)
			}
		}()
		return c.Next()
	}
}

func toDomainError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return apperrors.FromStatus(fe.Code, fe.Message)
	}
	return apperrors.ToDomainError(err)
}

// writeError renders the error envelope.
func writeError(c *fiber.Ctx, domainErr *apperrors.DomainError) error {
	response := fiber.Map{
		"status":  "error",
		"message": domainErr.Message,
		"error":   http.StatusText(domainErr.HTTPStatus),
		"code":    domainErr.Code,
	}
	if len(domainErr.Details) > 0 {
		response["details"] = domainErr.Details
	}
	return c.Status(domainErr.HTTPStatus).JSON(response)
}

// ErrorHandler is the fiber fallback for errors raised outside the middleware chain.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return writeError(c, toDomainError(err))
}

const throttleClients = 10_000

// Throttle limits requests per client IP with a token bucket refilled perMinute times
// a minute. Idle buckets are evicted after ten minutes.
func Throttle(perMinute, burst int) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	every := time.Minute / time.Duration(perMinute)
	retryAfter := strconv.Itoa(int(math.Ceil(every.Seconds())))
	buckets := expirable.NewLRU[string, *rate.Limiter](throttleClients, nil, 10*time.Minute)

	return func(c *fiber.Ctx) error {
		key := c.IP()
		limiter, ok := buckets.Get(key)
		if !ok {
			limiter = rate.NewLimiter(rate.Every(every), burst)
			buckets.Add(key, limiter)
		}
		if !limiter.Allow() {
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return apperrors.NewTooManyAttempts()
		}
		return c.Next()
	}
}
