package dto

import "time"

// PharmacyRequest is used for create and partial update. Absent fields are left alone
// on update; unassign_agent clears the agent.
type PharmacyRequest struct {
	PatientName   *string  `json:"patient_name" validate:"omitempty,max=255"`
	Medicine      *string  `json:"medicine" validate:"omitempty,max=255"`
	Amount        *float64 `json:"amount" validate:"omitempty,gte=0,lt=1e10,cents"`
	AgentID       *int64   `json:"agent_id" validate:"omitempty,gt=0"`
	UnassignAgent bool     `json:"unassign_agent"`
	Status        *string  `json:"status"`
}

// PharmacyResponse is the public view of a pharmacy record.
type PharmacyResponse struct {
	ID          int64     `json:"id"`
	PatientName string    `json:"patient_name"`
	Medicine    string    `json:"medicine"`
	Amount      float64   `json:"amount"`
	AgentID     *int64    `json:"agent_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AppointmentRequest is used for create and partial update.
type AppointmentRequest struct {
	PatientName   *string    `json:"patient_name" validate:"omitempty,max=255"`
	DoctorID      *int64     `json:"doctor_id" validate:"omitempty,gt=0"`
	ScheduledAt   *time.Time `json:"scheduled_at"`
	Amount        *float64   `json:"amount" validate:"omitempty,gte=0,lt=1e10,cents"`
	AgentID       *int64     `json:"agent_id" validate:"omitempty,gt=0"`
	UnassignAgent bool       `json:"unassign_agent"`
	Status        *string    `json:"status"`
}

// AppointmentResponse is the public view of an appointment.
type AppointmentResponse struct {
	ID          int64     `json:"id"`
	PatientName string    `json:"patient_name"`
	DoctorID    *int64    `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Amount      float64   `json:"amount"`
	AgentID     *int64    `json:"agent_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IncentiveResponse is the commission derived from one source record.
type IncentiveResponse struct {
	ID              int64     `json:"id"`
	SourceType      string    `json:"source_type"`
	SourceID        int64     `json:"source_id"`
	AgentID         int64     `json:"agent_id"`
	Amount          float64   `json:"amount"`
	Percentage      float64   `json:"percentage"`
	IncentiveAmount float64   `json:"incentive_amount"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
