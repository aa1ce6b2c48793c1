package domain

import "time"

// MaxAmount is the exclusive upper bound of monetary amounts, the range of a
// NUMERIC(12,2) column. Amount tags spell it as lt=1e10.
const MaxAmount = 1e10

// SourceType names the kind of record an incentive is derived from.
type SourceType string

const (
	SourcePharmacy    SourceType = "pharmacy"
	SourceAppointment SourceType = "appointment"
)

// Valid reports whether the source type is known.
func (s SourceType) Valid() bool {
	return s == SourcePharmacy || s == SourceAppointment
}

// SourceRef identifies a commission-bearing record.
type SourceRef struct {
	Type SourceType
	ID   int64
}

// CommissionSource is the part of a source record the incentive rule depends on.
type CommissionSource struct {
	Ref     SourceRef
	Amount  float64
	AgentID *int64
}

// Incentive is the commission derived from exactly one source record.
type Incentive struct {
	ID              int64
	SourceType      SourceType
	SourceID        int64
	AgentID         int64
	Amount          float64
	Percentage      float64
	IncentiveAmount float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Ref returns the source the incentive belongs to.
func (i *Incentive) Ref() SourceRef {
	return SourceRef{Type: i.SourceType, ID: i.SourceID}
}
