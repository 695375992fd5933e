package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/slotbookhq/slotbook/libs/db"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

type AppointmentTypeRepository struct {
	pool *db.Pool
}

func NewAppointmentTypeRepository(pool *db.Pool) *AppointmentTypeRepository {
	return &AppointmentTypeRepository{pool: pool}
}

func (r *AppointmentTypeRepository) Create(ctx context.Context, t *model.AppointmentType) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO appointment_types (provider_id, name, display_name, duration_minutes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, t.ProviderID, t.Name, t.DisplayName, t.DurationMinutes).Scan(&t.ID, &t.CreatedAt)
}

func (r *AppointmentTypeRepository) Update(ctx context.Context, t *model.AppointmentType) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointment_types
		SET name = $3,
			display_name = $4,
			duration_minutes = $5
		WHERE id = $1 AND provider_id = $2
	`, t.ID, t.ProviderID, t.Name, t.DisplayName, t.DurationMinutes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AppointmentTypeRepository) Get(ctx context.Context, providerID, id string) (model.AppointmentType, error) {
	var t model.AppointmentType
	err := r.pool.QueryRow(ctx, `
		SELECT id, provider_id, name, display_name, duration_minutes, created_at
		FROM appointment_types
		WHERE id = $1 AND provider_id = $2
	`, id, providerID).Scan(&t.ID, &t.ProviderID, &t.Name, &t.DisplayName, &t.DurationMinutes, &t.CreatedAt)
	if err != nil {
		return model.AppointmentType{}, err
	}
	return t, nil
}

// GetByName resolves the public booking path: types are addressed by their
// kebab-case name in public URLs.
func (r *AppointmentTypeRepository) GetByName(ctx context.Context, providerID, name string) (model.AppointmentType, error) {
	var t model.AppointmentType
	err := r.pool.QueryRow(ctx, `
		SELECT id, provider_id, name, display_name, duration_minutes, created_at
		FROM appointment_types
		WHERE provider_id = $1 AND name = $2
	`, providerID, name).Scan(&t.ID, &t.ProviderID, &t.Name, &t.DisplayName, &t.DurationMinutes, &t.CreatedAt)
	if err != nil {
		return model.AppointmentType{}, err
	}
	return t, nil
}

func (r *AppointmentTypeRepository) ListByProvider(ctx context.Context, providerID string) ([]model.AppointmentType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, name, display_name, duration_minutes, created_at
		FROM appointment_types
		WHERE provider_id = $1
		ORDER BY name ASC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []model.AppointmentType
	for rows.Next() {
		var t model.AppointmentType
		if err := rows.Scan(&t.ID, &t.ProviderID, &t.Name, &t.DisplayName, &t.DurationMinutes, &t.CreatedAt); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return types, nil
}

func (r *AppointmentTypeRepository) Delete(ctx context.Context, providerID, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointment_types
		WHERE id = $1 AND provider_id = $2
	`, id, providerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
