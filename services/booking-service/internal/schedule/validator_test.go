package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

func newValidator(templates []model.Template, appts *fakeAppointments, now time.Time) *BookingValidator {
	gen := newGenerator(templates, appts, &fakeFreeBusy{}, now)
	return NewBookingValidator(gen, FixedClock{T: now})
}

func TestValidateAcceptsExactWindow(t *testing.T) {
	v := newValidator(
		[]model.Template{{ProviderID: "prov-1", FromMinute: 480, ToMinute: 600}},
		&fakeAppointments{}, monday,
	)

	from := monday.Add(8 * time.Hour)
	to := monday.Add(9 * time.Hour)
	if err := v.Validate(context.Background(), utcProvider(), hourType(60), from, to); err != nil {
		t.Fatalf("expected window to validate, got %v", err)
	}
}

func TestValidateRejectsDurationMismatch(t *testing.T) {
	v := newValidator(
		[]model.Template{{ProviderID: "prov-1", FromMinute: 480, ToMinute: 600}},
		&fakeAppointments{}, monday,
	)

	from := monday.Add(8 * time.Hour)
	to := monday.Add(8*time.Hour + 30*time.Minute)
	err := v.Validate(context.Background(), utcProvider(), hourType(60), from, to)
	if !errors.Is(err, ErrDurationMismatch) {
		t.Fatalf("expected duration mismatch, got %v", err)
	}
}

func TestValidateRejectsMisalignedWindow(t *testing.T) {
	v := newValidator(
		[]model.Template{{ProviderID: "prov-1", FromMinute: 480, ToMinute: 600}},
		&fakeAppointments{}, monday,
	)

	// Correct duration, but 8:30 is off the 8:00-based grid: the first
	// generated slot is 9:00, which does not match the request.
	from := monday.Add(8*time.Hour + 30*time.Minute)
	to := monday.Add(9*time.Hour + 30*time.Minute)
	err := v.Validate(context.Background(), utcProvider(), hourType(60), from, to)
	if !errors.Is(err, ErrNoOpenWindow) {
		t.Fatalf("expected no-open-window, got %v", err)
	}
}

func TestValidateRejectsBookedWindow(t *testing.T) {
	appts := &fakeAppointments{appts: []model.Appointment{{
		ProviderID: "prov-1",
		StartTime:  monday.Add(8 * time.Hour),
		EndTime:    monday.Add(9 * time.Hour),
		Status:     model.StatusBooked,
	}}}
	v := newValidator(
		[]model.Template{{ProviderID: "prov-1", FromMinute: 480, ToMinute: 600}},
		appts, monday,
	)

	from := monday.Add(8 * time.Hour)
	to := monday.Add(9 * time.Hour)
	err := v.Validate(context.Background(), utcProvider(), hourType(60), from, to)
	if !errors.Is(err, ErrNoOpenWindow) {
		t.Fatalf("expected no-open-window for booked slot, got %v", err)
	}
}

func TestValidateRejectsOutsideTemplates(t *testing.T) {
	v := newValidator(
		[]model.Template{{ProviderID: "prov-1", FromMinute: 480, ToMinute: 600}},
		&fakeAppointments{}, monday,
	)

	from := monday.Add(12 * time.Hour)
	to := monday.Add(13 * time.Hour)
	err := v.Validate(context.Background(), utcProvider(), hourType(60), from, to)
	if !errors.Is(err, ErrNoOpenWindow) {
		t.Fatalf("expected no-open-window outside templates, got %v", err)
	}
}
