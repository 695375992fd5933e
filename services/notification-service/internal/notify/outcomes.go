package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/slotbookhq/slotbook/libs/db"
	"github.com/slotbookhq/slotbook/services/notification-service/internal/outbox"
)

// OutboxSink writes delivery outcomes through the transactional outbox.
type OutboxSink struct {
	pool *db.Pool
	repo *outbox.Repository
}

func NewOutboxSink(pool *db.Pool, repo *outbox.Repository) *OutboxSink {
	return &OutboxSink{pool: pool, repo: repo}
}

func (s *OutboxSink) NotificationSent(ctx context.Context, p BookingPayload, eventType string, recipients []string) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": p.AppointmentID,
		"provider_id":    p.ProviderID,
		"source_event":   eventType,
		"recipients":     recipients,
		"sent_at":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.insert(ctx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   p.AppointmentID,
		EventType:     outbox.TopicNotificationSent,
		Payload:       payload,
	})
}

func (s *OutboxSink) NotificationFailed(ctx context.Context, p BookingPayload, eventType string, reason string) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": p.AppointmentID,
		"provider_id":    p.ProviderID,
		"source_event":   eventType,
		"error_reason":   reason,
		"failed_at":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.insert(ctx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   p.AppointmentID,
		EventType:     outbox.TopicNotificationFailed,
		Payload:       payload,
	})
}

func (s *OutboxSink) insert(ctx context.Context, evt outbox.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.repo.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
