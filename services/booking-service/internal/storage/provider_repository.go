package storage

import (
	"context"

	"github.com/slotbookhq/slotbook/libs/db"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

type ProviderRepository struct {
	pool *db.Pool
}

func NewProviderRepository(pool *db.Pool) *ProviderRepository {
	return &ProviderRepository{pool: pool}
}

// Create inserts the provider and its default settings row together so a
// fresh account always has a usable public availability horizon.
func (r *ProviderRepository) Create(ctx context.Context, p *model.Provider) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO providers (email, name, password_hash, timezone, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.Email, p.Name, p.PasswordHash, p.Timezone, p.Role).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return err
	}

	defaults := model.DefaultSettings(p.ID)
	_, err = tx.Exec(ctx, `
		INSERT INTO provider_settings (provider_id, start_offset_minutes, end_offset_minutes)
		VALUES ($1, $2, $3)
	`, p.ID, defaults.StartOffsetMinutes, defaults.EndOffsetMinutes)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ProviderRepository) GetByEmail(ctx context.Context, email string) (model.Provider, error) {
	var p model.Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, timezone, role, created_at
		FROM providers
		WHERE email = $1
	`, email).Scan(&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.Timezone, &p.Role, &p.CreatedAt)
	if err != nil {
		return model.Provider{}, err
	}
	return p, nil
}

func (r *ProviderRepository) GetByID(ctx context.Context, id string) (model.Provider, error) {
	var p model.Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, timezone, role, created_at
		FROM providers
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.Timezone, &p.Role, &p.CreatedAt)
	if err != nil {
		return model.Provider{}, err
	}
	return p, nil
}

// Count backs the first-account-becomes-admin rule.
func (r *ProviderRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM providers`).Scan(&n)
	return n, err
}
