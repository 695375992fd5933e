package schedule

import (
	"context"
	"time"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

// BookingValidator gates booking requests: the requested window must match
// the appointment type's duration and coincide exactly with the first slot
// the generator produces for that window. It performs no writes.
type BookingValidator struct {
	generator *SlotGenerator
	clock     Clock
}

func NewBookingValidator(generator *SlotGenerator, clock Clock) *BookingValidator {
	return &BookingValidator{generator: generator, clock: clock}
}

// Validate returns nil when [from, to) is a bookable window for the
// provider and appointment type, ErrDurationMismatch or ErrNoOpenWindow
// otherwise.
func (v *BookingValidator) Validate(ctx context.Context, provider model.Provider, apptType model.AppointmentType, from, to time.Time) error {
	if to.Sub(from) != time.Duration(apptType.DurationMinutes)*time.Minute {
		return ErrDurationMismatch
	}

	now := v.clock.Now()
	windows, err := v.generator.Generate(ctx, provider, apptType, from.Sub(now), to.Sub(now))
	if err != nil {
		return err
	}
	if len(windows) == 0 {
		return ErrNoOpenWindow
	}

	first := windows[0]
	if !first.Start.Equal(from) || !first.End.Equal(to) {
		return ErrNoOpenWindow
	}
	return nil
}
