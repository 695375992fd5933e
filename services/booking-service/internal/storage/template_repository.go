package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/slotbookhq/slotbook/libs/db"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/schedule"
)

// TemplateRepository implements schedule.TemplateStore on Postgres.
// InTransaction takes a per-provider advisory lock so concurrent template
// writers for the same provider serialize and the overlap check inside
// the transaction cannot race.
type TemplateRepository struct {
	pool *db.Pool
}

func NewTemplateRepository(pool *db.Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

func (r *TemplateRepository) ListByOwner(ctx context.Context, providerID string, exclude []string) ([]model.Template, error) {
	return listTemplates(ctx, r.pool, providerID, exclude)
}

func (r *TemplateRepository) Get(ctx context.Context, providerID, id string) (model.Template, error) {
	var t model.Template
	err := r.pool.QueryRow(ctx, `
		SELECT id, provider_id, from_minute, to_minute, created_at, updated_at
		FROM availability_templates
		WHERE id = $1 AND provider_id = $2
	`, id, providerID).Scan(&t.ID, &t.ProviderID, &t.FromMinute, &t.ToMinute, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.Template{}, err
	}
	return t, nil
}

func (r *TemplateRepository) Delete(ctx context.Context, providerID, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_templates
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

func (r *TemplateRepository) InTransaction(ctx context.Context, providerID string, fn func(tx schedule.TemplateTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('availability_templates:' || $1, 0))`, providerID)
	if err != nil {
		return err
	}

	if err := fn(&templateTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type templateTx struct {
	tx pgx.Tx
}

func (t *templateTx) ListByOwner(ctx context.Context, providerID string, exclude []string) ([]model.Template, error) {
	return listTemplates(ctx, t.tx, providerID, exclude)
}

func (t *templateTx) Insert(ctx context.Context, tmpl *model.Template) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO availability_templates (provider_id, from_minute, to_minute)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, tmpl.ProviderID, tmpl.FromMinute, tmpl.ToMinute).Scan(&tmpl.ID, &tmpl.CreatedAt, &tmpl.UpdatedAt)
}

func (t *templateTx) Update(ctx context.Context, tmpl *model.Template) error {
	return t.tx.QueryRow(ctx, `
		UPDATE availability_templates
		SET from_minute = $3,
			to_minute = $4,
			updated_at = now()
		WHERE id = $1 AND provider_id = $2
		RETURNING updated_at
	`, tmpl.ID, tmpl.ProviderID, tmpl.FromMinute, tmpl.ToMinute).Scan(&tmpl.UpdatedAt)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listTemplates(ctx context.Context, q querier, providerID string, exclude []string) ([]model.Template, error) {
	if exclude == nil {
		exclude = []string{}
	}
	rows, err := q.Query(ctx, `
		SELECT id, provider_id, from_minute, to_minute, created_at, updated_at
		FROM availability_templates
		WHERE provider_id = $1
			AND NOT (id::text = ANY($2::text[]))
		ORDER BY from_minute ASC
	`, providerID, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []model.Template
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.ProviderID, &t.FromMinute, &t.ToMinute, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return templates, nil
}
