// Package incentive keeps commission rows in step with the records they derive from.
package incentive

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spec-kit/clinic-crm/internal/domain"
)

// DefaultPercentage is the commission rate applied when none is configured.
const DefaultPercentage = 1.00

// MaxPercentage bounds the commission rate.
const MaxPercentage = 100.00

// ErrOutOfRange is returned for inputs outside [0, domain.MaxAmount) and
// [0, MaxPercentage]; the integer arithmetic is exact only inside them.
var ErrOutOfRange = errors.New("incentive input out of range")

// Outcome reports what a sync did to the incentive of a source.
type Outcome string

const (
	OutcomeSynced      Outcome = "synced"
	OutcomeRemoved     Outcome = "removed"
	OutcomeUntouched   Outcome = "untouched"
	OutcomeNotEligible Outcome = "not_eligible"
)

// Repository is the persistence the engine writes through.
type Repository interface {
	Upsert(ctx context.Context, inc *domain.Incentive) error
	DeleteBySource(ctx context.Context, ref domain.SourceRef) (bool, error)
}

// Engine derives incentives at a fixed percentage.
type Engine struct {
	percentage float64
}

func NewEngine(percentage float64) *Engine {
	if percentage <= 0 {
		percentage = DefaultPercentage
	}
	return &Engine{percentage: percentage}
}

// Percentage returns the configured rate.
func (e *Engine) Percentage() float64 { return e.percentage }

// Eligible reports whether src earns a commission.
func Eligible(src domain.CommissionSource) bool {
	return src.Amount > 0 && src.AgentID != nil
}

// Compute returns amount * percentage / 100 rounded half-up to cents. The arithmetic is
// done on integer cents and basis points so 2-decimal inputs round exactly.
func Compute(amount, percentage float64) (float64, error) {
	if !(amount >= 0 && amount < domain.MaxAmount) || !(percentage >= 0 && percentage <= MaxPercentage) {
		return 0, fmt.Errorf("%w: amount %v at %v%%", ErrOutOfRange, amount, percentage)
	}
	cents := int64(math.Round(amount * 100))
	basis := int64(math.Round(percentage * 100))
	return float64((cents*basis+5000)/10000) / 100, nil
}

// Build returns the incentive src should carry.
func (e *Engine) Build(src domain.CommissionSource) (*domain.Incentive, error) {
	amount, err := Compute(src.Amount, e.percentage)
	if err != nil {
		return nil, err
	}
	return &domain.Incentive{
		SourceType:      src.Ref.Type,
		SourceID:        src.Ref.ID,
		AgentID:         *src.AgentID,
		Amount:          src.Amount,
		Percentage:      e.percentage,
		IncentiveAmount: amount,
	}, nil
}

func (e *Engine) upsert(ctx context.Context, repo Repository, src domain.CommissionSource) (Outcome, error) {
	inc, err := e.Build(src)
	if err != nil {
		return "", err
	}
	if err := repo.Upsert(ctx, inc); err != nil {
		return "", fmt.Errorf("upsert incentive: %w", err)
	}
	return OutcomeSynced, nil
}

// OnCreate creates the incentive of a new source when it is eligible.
func (e *Engine) OnCreate(ctx context.Context, repo Repository, src domain.CommissionSource) (Outcome, error) {
	if !Eligible(src) {
		return OutcomeNotEligible, nil
	}
	return e.upsert(ctx, repo, src)
}

// OnUpdate re-evaluates only when amount or agent changed. An ineligible source loses
// its incentive.
func (e *Engine) OnUpdate(ctx context.Context, repo Repository, before, after domain.CommissionSource) (Outcome, error) {
	if !commissionChanged(before, after) {
		return OutcomeUntouched, nil
	}
	if Eligible(after) {
		return e.upsert(ctx, repo, after)
	}
	return e.remove(ctx, repo, after.Ref)
}

// OnDelete removes the incentive of a deleted source.
func (e *Engine) OnDelete(ctx context.Context, repo Repository, ref domain.SourceRef) (Outcome, error) {
	return e.remove(ctx, repo, ref)
}

func (e *Engine) remove(ctx context.Context, repo Repository, ref domain.SourceRef) (Outcome, error) {
	removed, err := repo.DeleteBySource(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("delete incentive: %w", err)
	}
	if removed {
		return OutcomeRemoved, nil
	}
	return OutcomeNotEligible, nil
}

func commissionChanged(before, after domain.CommissionSource) bool {
	if before.Amount != after.Amount {
		return true
	}
	switch {
	case before.AgentID == nil && after.AgentID == nil:
		return false
	case before.AgentID == nil || after.AgentID == nil:
		return true
	default:
		return *before.AgentID != *after.AgentID
	}
}
