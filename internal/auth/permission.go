package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/observability"
	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

// ErrNotLoggedIn is returned when a permission check runs without an identity.
var ErrNotLoggedIn = errors.New("user is not logged in")

// ForbiddenError lists the permissions of a requirement nobody granted.
type ForbiddenError struct {
	Required []string
}

func (e *ForbiddenError) Error() string {
	return "missing permission: " + strings.Join(e.Required, "|")
}

// Requirement is a parsed route permission spec. Empty Module or Guard match anything.
type Requirement struct {
	Permissions []string
	Module      string
	Guard       string
}

func (r Requirement) String() string {
	parts := []string{strings.Join(r.Permissions, "|")}
	if r.Module != "" || r.Guard != "" {
		parts = append(parts, r.Module)
	}
	if r.Guard != "" {
		parts = append(parts, r.Guard)
	}
	return strings.Join(parts, ",")
}

// ParseRequirement reads "perm1|perm2[,module[,guard]]".
func ParseRequirement(spec string) (Requirement, error) {
	fields := strings.Split(spec, ",")
	if len(fields) > 3 {
		return Requirement{}, fmt.Errorf("permission spec %q: too many fields", spec)
	}

	var req Requirement
	for _, name := range strings.Split(fields[0], "|") {
		name = strings.TrimSpace(name)
		if name == "" {
			return Requirement{}, fmt.Errorf("permission spec %q: empty permission name", spec)
		}
		req.Permissions = append(req.Permissions, name)
	}
	if len(fields) > 1 {
		req.Module = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		req.Guard = strings.TrimSpace(fields[2])
	}
	return req, nil
}

// MustParseRequirement panics on malformed specs; route tables are static.
func MustParseRequirement(spec string) Requirement {
	req, err := ParseRequirement(spec)
	if err != nil {
		panic(err)
	}
	return req
}

// Evaluate decides a requirement against an identity's effective permissions. Required
// names are tried in order and the first granted one allows access.
func Evaluate(identity *domain.Identity, effective []domain.Permission, req Requirement) error {
	if identity == nil {
		return ErrNotLoggedIn
	}
	accountType, hasAccountType := identity.AccountType()

	for _, name := range req.Permissions {
		for _, perm := range effective {
			if perm.Name != name {
				continue
			}
			if req.Module != "" {
				if module, ok := perm.ModuleName(); !ok || module != req.Module {
					continue
				}
			}
			if req.Guard != "" && perm.GuardName != req.Guard {
				continue
			}
			if scope, ok := perm.AccountTypeScope(); ok && (!hasAccountType || scope != accountType) {
				continue
			}
			return nil
		}
	}
	return &ForbiddenError{Required: append([]string(nil), req.Permissions...)}
}

// PermissionSource loads the effective permission set of an identity.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, identityID int64) ([]domain.Permission, error)
}

// PermissionEvaluator enforces requirements for authenticated principals.
type PermissionEvaluator struct {
	source  PermissionSource
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewPermissionEvaluator(source PermissionSource, logger *zap.Logger, metrics *observability.Metrics) *PermissionEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionEvaluator{source: source, logger: logger, metrics: metrics}
}

// Authorize loads the identity's permissions and evaluates req.
func (e *PermissionEvaluator) Authorize(ctx context.Context, identity *domain.Identity, req Requirement) error {
	if identity == nil {
		return ErrNotLoggedIn
	}
	effective, err := e.source.EffectivePermissions(ctx, identity.ID)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	return Evaluate(identity, effective, req)
}

// Require returns middleware enforcing spec. It must run after the guard.
func (e *PermissionEvaluator) Require(spec string) fiber.Handler {
	req := MustParseRequirement(spec)

	return func(c *fiber.Ctx) error {
		var identity *domain.Identity
		if principal, ok := PrincipalFromContext(c); ok {
			identity = principal.Identity
		}

		err := e.Authorize(c.UserContext(), identity, req)
		var forbidden *ForbiddenError
		switch {
		case err == nil:
			e.metrics.RecordPermission("granted")
			return c.Next()
		case errors.Is(err, ErrNotLoggedIn):
			e.metrics.RecordPermission("not_logged_in")
			return apperrors.NewNotLoggedIn()
		case errors.As(err, &forbidden):
			e.metrics.RecordPermission("denied")
			e.logger.Info("permission denied",
				zap.Int64("identity_id", identity.ID),
				zap.String("requirement", req.String()))
			return apperrors.NewForbidden(forbidden.Required)
		default:
			e.metrics.RecordPermission("error")
			return apperrors.NewInternalError(err)
		}
	}
}
