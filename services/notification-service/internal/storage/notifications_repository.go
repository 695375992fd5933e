package storage

import (
	"context"

	"github.com/slotbookhq/slotbook/libs/db"
)

// Notification is the delivery log row for one outbound email.
type Notification struct {
	AppointmentID string
	ProviderID    string
	EventType     string
	Recipient     string
	Subject       string
	Status        string
	FailureReason string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, provider_id, event_type, recipient, subject, status, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	`, n.AppointmentID, n.ProviderID, n.EventType, n.Recipient, n.Subject, n.Status, n.FailureReason)
	return err
}
