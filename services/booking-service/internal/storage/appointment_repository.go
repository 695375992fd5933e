package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/slotbookhq/slotbook/libs/db"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// ListUpcomingBooked feeds the busy aggregator: booked appointments whose
// start lies strictly after the given instant, most recent start first.
func (r *AppointmentRepository) ListUpcomingBooked(ctx context.Context, providerID string, after time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, appointment_type_id, booker_name, booker_email,
			COALESCE(booker_phone, ''), booker_timezone, start_time, end_time, status, cancelled_at, created_at
		FROM appointments
		WHERE provider_id = $1
			AND status = 'booked'
			AND start_time > $2
		ORDER BY start_time DESC
	`, providerID, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// Create inserts the appointment inside the caller's transaction so the
// booking row and its outbox event commit atomically.
func (r *AppointmentRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	return tx.QueryRow(ctx, `
		INSERT INTO appointments
			(provider_id, appointment_type_id, booker_name, booker_email, booker_phone, booker_timezone, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, appt.ProviderID, appt.AppointmentTypeID, appt.BookerName, appt.BookerEmail, appt.BookerPhone,
		appt.BookerTimezone, appt.StartTime, appt.EndTime, appt.Status).Scan(&appt.ID, &appt.CreatedAt)
}

// ListFilter narrows ListByProvider. Zero values mean "no constraint".
type ListFilter struct {
	TypeID string
	Status string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

func (r *AppointmentRepository) ListByProvider(ctx context.Context, providerID string, f ListFilter) ([]model.Appointment, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, appointment_type_id, booker_name, booker_email,
			COALESCE(booker_phone, ''), booker_timezone, start_time, end_time, status, cancelled_at, created_at
		FROM appointments
		WHERE provider_id = $1
			AND ($2 = '' OR status = $2)
			AND ($3 = '' OR appointment_type_id::text = $3)
			AND ($4::timestamptz IS NULL OR start_time >= $4)
			AND ($5::timestamptz IS NULL OR start_time < $5)
		ORDER BY start_time ASC
		LIMIT $6 OFFSET $7
	`, providerID, f.Status, f.TypeID, nullableTime(f.From), nullableTime(f.To), f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *AppointmentRepository) Get(ctx context.Context, providerID, id string) (model.Appointment, error) {
	var appt model.Appointment
	err := r.pool.QueryRow(ctx, `
		SELECT id, provider_id, appointment_type_id, booker_name, booker_email,
			COALESCE(booker_phone, ''), booker_timezone, start_time, end_time, status, cancelled_at, created_at
		FROM appointments
		WHERE id = $1 AND provider_id = $2
	`, id, providerID).Scan(
		&appt.ID, &appt.ProviderID, &appt.AppointmentTypeID,
		&appt.BookerName, &appt.BookerEmail, &appt.BookerPhone, &appt.BookerTimezone,
		&appt.StartTime, &appt.EndTime, &appt.Status, &appt.CancelledAt, &appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Cancel marks a booked appointment cancelled inside the caller's
// transaction. Cancelling an already cancelled appointment scans no row.
func (r *AppointmentRepository) Cancel(ctx context.Context, tx pgx.Tx, providerID, id string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now()
		WHERE id = $1 AND provider_id = $2 AND status = 'booked'
		RETURNING cancelled_at
	`, id, providerID).Scan(&cancelledAt)
	return cancelledAt, err
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		if err := rows.Scan(
			&appt.ID, &appt.ProviderID, &appt.AppointmentTypeID,
			&appt.BookerName, &appt.BookerEmail, &appt.BookerPhone, &appt.BookerTimezone,
			&appt.StartTime, &appt.EndTime, &appt.Status, &appt.CancelledAt, &appt.CreatedAt,
		); err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
