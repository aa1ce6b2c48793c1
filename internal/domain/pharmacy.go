package domain

import "time"

// PharmacyStatus tracks dispensing progress.
type PharmacyStatus string

const (
	PharmacyStatusPending   PharmacyStatus = "PENDING"
	PharmacyStatusDispensed PharmacyStatus = "DISPENSED"
	PharmacyStatusCancelled PharmacyStatus = "CANCELLED"
)

// PharmacyRecord is a billed pharmacy entry.
type PharmacyRecord struct {
	ID          int64
	PatientName string         `validate:"required,max=255"`
	Medicine    string         `validate:"required,max=255"`
	Amount      float64        `validate:"gte=0,lt=1e10,cents"`
	AgentID     *int64         `validate:"omitempty,gt=0"`
	Status      PharmacyStatus `validate:"oneof=PENDING DISPENSED CANCELLED"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CommissionSource exposes the commission-relevant fields.
func (p *PharmacyRecord) CommissionSource() CommissionSource {
	return CommissionSource{
		Ref:     SourceRef{Type: SourcePharmacy, ID: p.ID},
		Amount:  p.Amount,
		AgentID: p.AgentID,
	}
}
