package repository

import (
	"context"
	"fmt"

	"github.com/spec-kit/clinic-crm/internal/domain"
)

// AppointmentRepository handles persistence for appointments.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) error
	Update(ctx context.Context, appt *domain.Appointment) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Appointment, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Appointment, error)
	List(ctx context.Context, limit, offset int) ([]domain.Appointment, error)
}

type appointmentRepository struct {
	db DBTX
}

// NewAppointmentRepository instantiates the repository.
func NewAppointmentRepository(db DBTX) AppointmentRepository {
	return &appointmentRepository{db: db}
}

const appointmentColumns = `id, patient_name, doctor_id, scheduled_at, amount, agent_id, status, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	const query = `
        INSERT INTO appointments (patient_name, doctor_id, scheduled_at, amount, agent_id, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		appt.PatientName,
		appt.DoctorID,
		appt.ScheduledAt,
		appt.Amount,
		appt.AgentID,
		appt.Status,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
}

func (r *appointmentRepository) Update(ctx context.Context, appt *domain.Appointment) error {
	const query = `
        UPDATE appointments
        SET patient_name=$1, doctor_id=$2, scheduled_at=$3, amount=$4, agent_id=$5, status=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		appt.PatientName,
		appt.DoctorID,
		appt.ScheduledAt,
		appt.Amount,
		appt.AgentID,
		appt.Status,
		appt.ID,
	).Scan(&appt.UpdatedAt)
	return notFound(err)
}

func (r *appointmentRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepository) GetByID(ctx context.Context, id int64) (*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id=$1`
	return r.scanOne(ctx, query, id)
}

func (r *appointmentRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id=$1 FOR UPDATE`
	return r.scanOne(ctx, query, id)
}

func (r *appointmentRepository) List(ctx context.Context, limit, offset int) ([]domain.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments ORDER BY scheduled_at DESC` +
		fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Appointment
	for rows.Next() {
		var appt domain.Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.PatientName,
			&appt.DoctorID,
			&appt.ScheduledAt,
			&appt.Amount,
			&appt.AgentID,
			&appt.Status,
			&appt.CreatedAt,
			&appt.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, appt)
	}
	return result, rows.Err()
}

func (r *appointmentRepository) scanOne(ctx context.Context, query string, id int64) (*domain.Appointment, error) {
	var appt domain.Appointment
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&appt.ID,
		&appt.PatientName,
		&appt.DoctorID,
		&appt.ScheduledAt,
		&appt.Amount,
		&appt.AgentID,
		&appt.Status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &appt, nil
}
