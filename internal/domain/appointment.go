package domain

import "time"

// AppointmentStatus enumerates booking states.
type AppointmentStatus string

const (
	AppointmentStatusBooked    AppointmentStatus = "BOOKED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
)

// Appointment is a booked consultation or procedure.
type Appointment struct {
	ID          int64
	PatientName string            `validate:"required,max=255"`
	DoctorID    *int64            `validate:"omitempty,gt=0"`
	ScheduledAt time.Time         `validate:"required"`
	Amount      float64           `validate:"gte=0,lt=1e10,cents"`
	AgentID     *int64            `validate:"omitempty,gt=0"`
	Status      AppointmentStatus `validate:"oneof=BOOKED COMPLETED CANCELLED"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CommissionSource exposes the commission-relevant fields.
func (a *Appointment) CommissionSource() CommissionSource {
	return CommissionSource{
		Ref:     SourceRef{Type: SourceAppointment, ID: a.ID},
		Amount:  a.Amount,
		AgentID: a.AgentID,
	}
}
