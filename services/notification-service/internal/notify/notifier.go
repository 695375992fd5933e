package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slotbookhq/slotbook/services/notification-service/internal/email"
	"github.com/slotbookhq/slotbook/services/notification-service/internal/storage"
)

// BookingPayload mirrors the booking-service's booking.created.v1 and
// booking.cancelled.v1 wire shape.
type BookingPayload struct {
	AppointmentID      string    `json:"appointment_id"`
	ProviderID         string    `json:"provider_id"`
	ProviderName       string    `json:"provider_name"`
	ProviderEmail      string    `json:"provider_email"`
	ProviderTimezone   string    `json:"provider_timezone"`
	AppointmentType    string    `json:"appointment_type"`
	AppointmentDisplay string    `json:"appointment_display"`
	BookerName         string    `json:"booker_name"`
	BookerEmail        string    `json:"booker_email"`
	BookerTimezone     string    `json:"booker_timezone"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
}

func (p BookingPayload) valid() bool {
	return p.AppointmentID != "" && p.ProviderEmail != "" && p.BookerEmail != "" && !p.StartTime.IsZero()
}

// MessageLog records each delivery attempt.
type MessageLog interface {
	Insert(ctx context.Context, n storage.Notification) error
}

// OutcomeSink publishes the aggregate delivery outcome downstream.
type OutcomeSink interface {
	NotificationSent(ctx context.Context, p BookingPayload, eventType string, recipients []string) error
	NotificationFailed(ctx context.Context, p BookingPayload, eventType string, reason string) error
}

// Notifier turns booking events into a pair of emails: one to the provider,
// one to the booker.
type Notifier struct {
	sender   email.Sender
	log      MessageLog
	outcomes OutcomeSink
	logger   *slog.Logger
}

func New(sender email.Sender, log MessageLog, outcomes OutcomeSink, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		log:      log,
		outcomes: outcomes,
		logger:   logger,
	}
}

// HandleEvent dispatches a consumed booking event. Malformed payloads are
// logged and dropped; they would never succeed on redelivery.
func (n *Notifier) HandleEvent(ctx context.Context, eventType string, raw []byte) error {
	var payload BookingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		n.logger.Error("invalid booking event payload", "err", err, "event_type", eventType)
		return nil
	}
	if !payload.valid() {
		n.logger.Error("missing booking event fields", "event_type", eventType)
		return nil
	}

	providerMsg, bookerMsg := composeMessages(eventType, payload)

	var sent []string
	var failures []string
	for _, msg := range []message{providerMsg, bookerMsg} {
		status := "sent"
		reason := ""
		if err := n.sender.Send(msg.to, msg.subject, msg.body); err != nil {
			status = "failed"
			reason = err.Error()
			failures = append(failures, fmt.Sprintf("%s: %s", msg.to, reason))
			n.logger.Error("email send failed", "err", err, "recipient", msg.to)
		} else {
			sent = append(sent, msg.to)
		}

		if err := n.log.Insert(ctx, storage.Notification{
			AppointmentID: payload.AppointmentID,
			ProviderID:    payload.ProviderID,
			EventType:     eventType,
			Recipient:     msg.to,
			Subject:       msg.subject,
			Status:        status,
			FailureReason: reason,
		}); err != nil {
			n.logger.Error("failed to persist notification", "err", err)
			return err
		}
	}

	if len(failures) > 0 {
		if err := n.outcomes.NotificationFailed(ctx, payload, eventType, strings.Join(failures, "; ")); err != nil {
			n.logger.Error("failed to enqueue notification.failed", "err", err)
			return err
		}
		return nil
	}
	if err := n.outcomes.NotificationSent(ctx, payload, eventType, sent); err != nil {
		n.logger.Error("failed to enqueue notification.sent", "err", err)
		return err
	}

	n.logger.Info("booking event processed", "appointment_id", payload.AppointmentID, "event_type", eventType)
	return nil
}

type message struct {
	to      string
	subject string
	body    string
}

// composeMessages builds the provider and booker emails. Times are rendered
// in each recipient's own timezone, falling back to UTC for bad zone names.
func composeMessages(eventType string, p BookingPayload) (message, message) {
	title := fmt.Sprintf("%s with %s", p.AppointmentDisplay, p.BookerName)

	var providerSubject, bookerSubject string
	switch eventType {
	case "booking.cancelled.v1":
		providerSubject = "Cancelled: " + title
		bookerSubject = fmt.Sprintf("Cancelled: %s with %s", p.AppointmentDisplay, p.ProviderName)
	default:
		providerSubject = "New booking: " + title
		bookerSubject = fmt.Sprintf("Confirmed: %s with %s", p.AppointmentDisplay, p.ProviderName)
	}

	providerMsg := message{
		to:      p.ProviderEmail,
		subject: providerSubject,
		body: fmt.Sprintf("%s\n\nWhen: %s\nBooker: %s <%s>\n",
			title, formatWindow(p.StartTime, p.EndTime, p.ProviderTimezone), p.BookerName, p.BookerEmail),
	}
	bookerMsg := message{
		to:      p.BookerEmail,
		subject: bookerSubject,
		body: fmt.Sprintf("%s\n\nWhen: %s\nProvider: %s\n",
			title, formatWindow(p.StartTime, p.EndTime, p.BookerTimezone), p.ProviderName),
	}
	return providerMsg, bookerMsg
}

func formatWindow(start, end time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	s := start.In(loc)
	e := end.In(loc)
	return fmt.Sprintf("%s to %s (%s)",
		s.Format("Mon, 02 Jan 2006 15:04"), e.Format("15:04"), loc.String())
}
