package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/slotbookhq/slotbook/services/notification-service/internal/storage"
)

type fakeSender struct {
	sent    []sentEmail
	failFor string
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

func (f *fakeSender) Send(to, subject, body string) error {
	if f.failFor != "" && to == f.failFor {
		return errors.New("smtp unreachable")
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

type memLog struct {
	rows []storage.Notification
}

func (m *memLog) Insert(_ context.Context, n storage.Notification) error {
	m.rows = append(m.rows, n)
	return nil
}

type memOutcomes struct {
	sentEvents   int
	failedEvents int
	lastReason   string
}

func (m *memOutcomes) NotificationSent(_ context.Context, _ BookingPayload, _ string, _ []string) error {
	m.sentEvents++
	return nil
}

func (m *memOutcomes) NotificationFailed(_ context.Context, _ BookingPayload, _ string, reason string) error {
	m.failedEvents++
	m.lastReason = reason
	return nil
}

func testPayload(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(BookingPayload{
		AppointmentID:      "appt-1",
		ProviderID:         "prov-1",
		ProviderName:       "Dana Kim",
		ProviderEmail:      "dana@example.com",
		ProviderTimezone:   "America/New_York",
		AppointmentType:    "intro-call",
		AppointmentDisplay: "Intro Call",
		BookerName:         "Sam Ortiz",
		BookerEmail:        "sam@example.com",
		BookerTimezone:     "Europe/Berlin",
		StartTime:          time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
		EndTime:            time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleEventSendsProviderAndBookerEmails(t *testing.T) {
	sender := &fakeSender{}
	log := &memLog{}
	outcomes := &memOutcomes{}
	n := New(sender, log, outcomes, discardLogger())

	if err := n.HandleEvent(context.Background(), "booking.created.v1", testPayload(t)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(sender.sent))
	}
	provider, booker := sender.sent[0], sender.sent[1]
	if provider.to != "dana@example.com" || booker.to != "sam@example.com" {
		t.Fatalf("unexpected recipients: %s, %s", provider.to, booker.to)
	}
	if provider.subject != "New booking: Intro Call with Sam Ortiz" {
		t.Fatalf("unexpected provider subject: %q", provider.subject)
	}
	if booker.subject != "Confirmed: Intro Call with Dana Kim" {
		t.Fatalf("unexpected booker subject: %q", booker.subject)
	}
	// Provider sees their local time, booker theirs.
	if !strings.Contains(provider.body, "09:00") {
		t.Fatalf("provider body missing New York time: %q", provider.body)
	}
	if !strings.Contains(booker.body, "15:00") {
		t.Fatalf("booker body missing Berlin time: %q", booker.body)
	}

	if len(log.rows) != 2 {
		t.Fatalf("expected 2 log rows, got %d", len(log.rows))
	}
	if outcomes.sentEvents != 1 || outcomes.failedEvents != 0 {
		t.Fatalf("expected one sent outcome, got sent=%d failed=%d", outcomes.sentEvents, outcomes.failedEvents)
	}
}

func TestHandleEventCancelledSubjects(t *testing.T) {
	sender := &fakeSender{}
	n := New(sender, &memLog{}, &memOutcomes{}, discardLogger())

	if err := n.HandleEvent(context.Background(), "booking.cancelled.v1", testPayload(t)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(sender.sent))
	}
	if sender.sent[0].subject != "Cancelled: Intro Call with Sam Ortiz" {
		t.Fatalf("unexpected provider subject: %q", sender.sent[0].subject)
	}
	if sender.sent[1].subject != "Cancelled: Intro Call with Dana Kim" {
		t.Fatalf("unexpected booker subject: %q", sender.sent[1].subject)
	}
}

func TestHandleEventPartialFailureRecordsFailedOutcome(t *testing.T) {
	sender := &fakeSender{failFor: "sam@example.com"}
	log := &memLog{}
	outcomes := &memOutcomes{}
	n := New(sender, log, outcomes, discardLogger())

	if err := n.HandleEvent(context.Background(), "booking.created.v1", testPayload(t)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected provider email to go out, got %d", len(sender.sent))
	}
	if outcomes.failedEvents != 1 || outcomes.sentEvents != 0 {
		t.Fatalf("expected one failed outcome, got sent=%d failed=%d", outcomes.sentEvents, outcomes.failedEvents)
	}
	if !strings.Contains(outcomes.lastReason, "sam@example.com") {
		t.Fatalf("reason should name the failed recipient: %q", outcomes.lastReason)
	}

	var statuses []string
	for _, row := range log.rows {
		statuses = append(statuses, row.Status)
	}
	if len(log.rows) != 2 || statuses[0] != "sent" || statuses[1] != "failed" {
		t.Fatalf("unexpected log rows: %v", statuses)
	}
}

func TestHandleEventDropsMalformedPayload(t *testing.T) {
	sender := &fakeSender{}
	n := New(sender, &memLog{}, &memOutcomes{}, discardLogger())

	if err := n.HandleEvent(context.Background(), "booking.created.v1", []byte("{not json")); err != nil {
		t.Fatalf("malformed payload should be dropped, got %v", err)
	}
	if err := n.HandleEvent(context.Background(), "booking.created.v1", []byte(`{"appointment_id":""}`)); err != nil {
		t.Fatalf("incomplete payload should be dropped, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("no emails expected, got %d", len(sender.sent))
	}
}
