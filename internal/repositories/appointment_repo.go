package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/therapyflow/calsync/internal/models"
)

var ErrNotFound = errors.New("not found")

const appointmentColumns = `id, client_id, therapist_id, start_time, end_time, type, status,
	       location, notes, video_link, reminder_minutes, reminder_sent,
	       recurrence_rule, recurrence_id, external_event_id, external_calendar_id,
	       last_external_sync, cancel_reason, created_at, updated_at`

type PostgresAppointmentRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAppointmentRepository(pool *pgxpool.Pool) *PostgresAppointmentRepository {
	return &PostgresAppointmentRepository{pool: pool}
}

func (r *PostgresAppointmentRepository) Create(ctx context.Context, appt *models.Appointment) error {
	query := `INSERT INTO appointments
	          (client_id, therapist_id, start_time, end_time, type, status, location, notes,
	           video_link, reminder_minutes, reminder_sent, recurrence_rule, recurrence_id,
	           external_event_id, external_calendar_id, last_external_sync)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	          RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		appt.ClientID,
		appt.TherapistID,
		appt.StartTime,
		appt.EndTime,
		appt.Type,
		appt.Status,
		appt.Location,
		appt.Notes,
		appt.VideoLink,
		appt.ReminderMinutes,
		appt.ReminderSent,
		appt.RecurrenceRule,
		appt.RecurrenceID,
		appt.ExternalEventID,
		appt.ExternalCalendarID,
		appt.LastExternalSync,
	).Scan(&appt.ID, &appt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *PostgresAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return appt, nil
}

func (r *PostgresAppointmentRepository) GetByExternalEventID(ctx context.Context, externalEventID string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE external_event_id = $1`

	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, externalEventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment by external id: %w", err)
	}
	return appt, nil
}

func (r *PostgresAppointmentRepository) ListByTherapist(ctx context.Context, therapistID uuid.UUID, since *time.Time) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE therapist_id = $1`
	args := []interface{}{therapistID}
	if since != nil {
		query += ` AND start_time >= $2`
		args = append(args, *since)
	}
	query += ` ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PostgresAppointmentRepository) ListForDay(ctx context.Context, therapistID uuid.UUID, day time.Time) ([]*models.Appointment, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `SELECT ` + appointmentColumns + `
	          FROM appointments
	          WHERE therapist_id = $1 AND start_time >= $2 AND start_time < $3
	          ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, query, therapistID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query day appointments: %w", err)
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PostgresAppointmentRepository) ListLinkedInWindow(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
	          FROM appointments
	          WHERE therapist_id = $1
	            AND external_event_id IS NOT NULL
	            AND start_time BETWEEN $2 AND $3
	            AND status != 'cancelled'
	          ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, query, therapistID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked appointments: %w", err)
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PostgresAppointmentRepository) Update(ctx context.Context, appt *models.Appointment) error {
	query := `UPDATE appointments
	          SET client_id = $1, start_time = $2, end_time = $3, type = $4, status = $5,
	              location = $6, notes = $7, video_link = $8, reminder_minutes = $9,
	              reminder_sent = $10, recurrence_rule = $11, recurrence_id = $12,
	              external_event_id = $13, external_calendar_id = $14,
	              last_external_sync = $15, cancel_reason = $16, updated_at = NOW()
	          WHERE id = $17`

	result, err := r.pool.Exec(ctx, query,
		appt.ClientID,
		appt.StartTime,
		appt.EndTime,
		appt.Type,
		appt.Status,
		appt.Location,
		appt.Notes,
		appt.VideoLink,
		appt.ReminderMinutes,
		appt.ReminderSent,
		appt.RecurrenceRule,
		appt.RecurrenceID,
		appt.ExternalEventID,
		appt.ExternalCalendarID,
		appt.LastExternalSync,
		appt.CancelReason,
		appt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresAppointmentRepository) Cancel(ctx context.Context, id uuid.UUID, reason models.CancelReason) error {
	query := `UPDATE appointments
	          SET status = 'cancelled', cancel_reason = $1, updated_at = NOW()
	          WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, reason, id)
	if err != nil {
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresAppointmentRepository) SetExternalLink(ctx context.Context, id uuid.UUID, externalEventID, externalCalendarID string, syncedAt time.Time) error {
	query := `UPDATE appointments
	          SET external_event_id = $1, external_calendar_id = $2,
	              last_external_sync = $3, updated_at = NOW()
	          WHERE id = $4`

	result, err := r.pool.Exec(ctx, query, externalEventID, externalCalendarID, syncedAt, id)
	if err != nil {
		return fmt.Errorf("failed to set external link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresAppointmentRepository) SetLastExternalSync(ctx context.Context, id uuid.UUID, syncedAt time.Time) error {
	query := `UPDATE appointments
	          SET last_external_sync = $1, updated_at = NOW()
	          WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, syncedAt, id)
	if err != nil {
		return fmt.Errorf("failed to set last external sync: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var appt models.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.ClientID,
		&appt.TherapistID,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Type,
		&appt.Status,
		&appt.Location,
		&appt.Notes,
		&appt.VideoLink,
		&appt.ReminderMinutes,
		&appt.ReminderSent,
		&appt.RecurrenceRule,
		&appt.RecurrenceID,
		&appt.ExternalEventID,
		&appt.ExternalCalendarID,
		&appt.LastExternalSync,
		&appt.CancelReason,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func collectAppointments(rows pgx.Rows) ([]*models.Appointment, error) {
	var appts []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating appointments: %w", err)
	}
	return appts, nil
}
