package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-crm/internal/observability"
	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

const (
	bearerPrefix = "Bearer "
	bearerKey    = "auth_bearer"
)

// GateOutcome classifies the shape of an Authorization header.
type GateOutcome int

const (
	GateAbsent GateOutcome = iota
	GateMalformedScheme
	GateEmptyToken
	GateWellFormed
)

// Code returns the error code reported for a rejected header.
func (o GateOutcome) Code() string {
	switch o {
	case GateAbsent:
		return apperrors.CodeMissingToken
	case GateMalformedScheme:
		return apperrors.CodeInvalidFormat
	case GateEmptyToken:
		return apperrors.CodeEmptyToken
	default:
		return ""
	}
}

func (o GateOutcome) message() string {
	switch o {
	case GateAbsent:
		return "Authorization token is missing."
	case GateMalformedScheme:
		return "Authorization header must use the Bearer scheme."
	default:
		return "Bearer token is empty."
	}
}

// GateResult is the classification of one header. Token is set only when WellFormed.
type GateResult struct {
	Outcome GateOutcome
	Token   string
}

// Classify inspects a raw Authorization header without touching any store.
// The scheme is matched case-sensitively. Only an empty header is absent; a present
// header of blanks is malformed.
func Classify(header string) GateResult {
	if header == "" {
		return GateResult{Outcome: GateAbsent}
	}
	// Trailing whitespace is stripped by HTTP parsers, so a bare scheme counts as empty.
	if strings.TrimRight(header, " \t") == strings.TrimSpace(bearerPrefix) {
		return GateResult{Outcome: GateEmptyToken}
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return GateResult{Outcome: GateMalformedScheme}
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return GateResult{Outcome: GateEmptyToken}
	}
	return GateResult{Outcome: GateWellFormed, Token: token}
}

// TokenGate rejects requests whose credentials are absent or malformed before any
// store lookup happens.
type TokenGate struct {
	sessionCookie string
	metrics       *observability.Metrics
}

// NewTokenGate builds the gate. Requests with no header but a sessionCookie cookie are
// passed through so the guard can resolve the session.
func NewTokenGate(sessionCookie string, metrics *observability.Metrics) *TokenGate {
	return &TokenGate{sessionCookie: sessionCookie, metrics: metrics}
}

// Handle is the fiber middleware.
func (g *TokenGate) Handle(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" && g.sessionCookie != "" && c.Cookies(g.sessionCookie) != "" {
		g.metrics.RecordAuth(observability.StageGate, "session")
		return c.Next()
	}

	result := Classify(header)
	if result.Outcome != GateWellFormed {
		code := result.Outcome.Code()
		g.metrics.RecordAuth(observability.StageGate, code)
		return apperrors.NewTokenRejected(code, result.Outcome.message())
	}

	g.metrics.RecordAuth(observability.StageGate, "well_formed")
	c.Locals(bearerKey, result.Token)
	return c.Next()
}

func bearerFromContext(c *fiber.Ctx) (string, bool) {
	if token, ok := c.Locals(bearerKey).(string); ok && token != "" {
		return token, true
	}
	result := Classify(c.Get(fiber.HeaderAuthorization))
	return result.Token, result.Outcome == GateWellFormed
}
