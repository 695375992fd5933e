package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/slotbookhq/slotbook/libs/db"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

type SettingsRepository struct {
	pool *db.Pool
}

func NewSettingsRepository(pool *db.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Get falls back to the default horizon when the provider has no row,
// which can happen for accounts created before settings existed.
func (r *SettingsRepository) Get(ctx context.Context, providerID string) (model.Settings, error) {
	var s model.Settings
	err := r.pool.QueryRow(ctx, `
		SELECT provider_id, start_offset_minutes, end_offset_minutes
		FROM provider_settings
		WHERE provider_id = $1
	`, providerID).Scan(&s.ProviderID, &s.StartOffsetMinutes, &s.EndOffsetMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DefaultSettings(providerID), nil
	}
	if err != nil {
		return model.Settings{}, err
	}
	return s, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, s model.Settings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider_settings (provider_id, start_offset_minutes, end_offset_minutes)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_id) DO UPDATE
		SET start_offset_minutes = EXCLUDED.start_offset_minutes,
			end_offset_minutes = EXCLUDED.end_offset_minutes,
			updated_at = now()
	`, s.ProviderID, s.StartOffsetMinutes, s.EndOffsetMinutes)
	return err
}
