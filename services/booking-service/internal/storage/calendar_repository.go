package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/slotbookhq/slotbook/libs/db"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/gcal"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

// CalendarRepository persists per-provider Google Calendar credentials and
// the set of calendar ids consulted for free/busy. Implements
// gcal.CredentialStore.
type CalendarRepository struct {
	pool *db.Pool
}

func NewCalendarRepository(pool *db.Pool) *CalendarRepository {
	return &CalendarRepository{pool: pool}
}

func (r *CalendarRepository) Get(ctx context.Context, providerID string) (model.CalendarAccount, error) {
	var a model.CalendarAccount
	err := r.pool.QueryRow(ctx, `
		SELECT provider_id, access_token, COALESCE(refresh_token, ''), token_expiry,
			COALESCE(scope, ''), checked_calendars, created_at, updated_at
		FROM calendar_accounts
		WHERE provider_id = $1
	`, providerID).Scan(
		&a.ProviderID, &a.AccessToken, &a.RefreshToken, &a.TokenExpiry,
		&a.Scope, &a.CheckedCalendars, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CalendarAccount{}, gcal.ErrNotConnected
	}
	if err != nil {
		return model.CalendarAccount{}, err
	}
	return a, nil
}

// Upsert stores a freshly exchanged credential set, replacing any previous
// connection. Checked calendars reset to empty on reconnect.
func (r *CalendarRepository) Upsert(ctx context.Context, a model.CalendarAccount) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO calendar_accounts (provider_id, access_token, refresh_token, token_expiry, scope, checked_calendars)
		VALUES ($1, $2, $3, $4, $5, '{}')
		ON CONFLICT (provider_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expiry = EXCLUDED.token_expiry,
			scope = EXCLUDED.scope,
			checked_calendars = '{}',
			updated_at = now()
	`, a.ProviderID, a.AccessToken, a.RefreshToken, a.TokenExpiry, a.Scope)
	return err
}

func (r *CalendarRepository) UpdateAccessToken(ctx context.Context, providerID string, accessToken string, expiry time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calendar_accounts
		SET access_token = $2,
			token_expiry = $3,
			updated_at = now()
		WHERE provider_id = $1
	`, providerID, accessToken, expiry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *CalendarRepository) AddCheckedCalendar(ctx context.Context, providerID, calendarID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calendar_accounts
		SET checked_calendars = array_append(checked_calendars, $2),
			updated_at = now()
		WHERE provider_id = $1
			AND NOT ($2 = ANY(checked_calendars))
	`, providerID, calendarID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either not connected or the id is already tracked. Distinguish
		// so callers can 404 the former and no-op the latter.
		var exists bool
		if err := r.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM calendar_accounts WHERE provider_id = $1)
		`, providerID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
	}
	return nil
}

func (r *CalendarRepository) RemoveCheckedCalendar(ctx context.Context, providerID, calendarID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calendar_accounts
		SET checked_calendars = array_remove(checked_calendars, $2),
			updated_at = now()
		WHERE provider_id = $1
	`, providerID, calendarID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *CalendarRepository) Delete(ctx context.Context, providerID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM calendar_accounts
		WHERE provider_id = $1
	`, providerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
