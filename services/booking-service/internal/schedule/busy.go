package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/interval"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

// AppointmentSource yields the provider's upcoming booked appointments
// (status booked, start strictly after the given instant).
type AppointmentSource interface {
	ListUpcomingBooked(ctx context.Context, providerID string, after time.Time) ([]model.Appointment, error)
}

// FreeBusySource queries the external calendar for busy windows over
// [rangeStart, rangeEnd). Implementations refresh credentials as needed.
type FreeBusySource interface {
	FreeBusy(ctx context.Context, providerID string, rangeStart, rangeEnd time.Time) ([]interval.Span, error)
}

// BusyAggregator merges internal booked appointments with externally
// reported busy windows into one unordered list.
//
// External failures are absorbed: the calendar is advisory, and a broken
// integration must not take the booking flow down with it. Internal store
// failures propagate.
type BusyAggregator struct {
	appointments AppointmentSource
	external     FreeBusySource
	clock        Clock
	logger       *slog.Logger
	timeout      time.Duration
}

func NewBusyAggregator(appointments AppointmentSource, external FreeBusySource, clock Clock, logger *slog.Logger) *BusyAggregator {
	return &BusyAggregator{
		appointments: appointments,
		external:     external,
		clock:        clock,
		logger:       logger,
		timeout:      5 * time.Second,
	}
}

// Collect gathers every busy interval for the provider relevant to
// [rangeStart, rangeEnd). Booked appointments are filtered by "upcoming"
// (start > now) rather than strictly range-clipped.
func (a *BusyAggregator) Collect(ctx context.Context, providerID string, rangeStart, rangeEnd time.Time) ([]interval.Span, error) {
	booked, err := a.appointments.ListUpcomingBooked(ctx, providerID, a.clock.Now())
	if err != nil {
		return nil, err
	}

	busy := make([]interval.Span, 0, len(booked))
	for _, appt := range booked {
		busy = append(busy, interval.Span{Start: appt.IntervalStart(), End: appt.IntervalEnd()})
	}

	if a.external != nil {
		extCtx, cancel := context.WithTimeout(ctx, a.timeout)
		external, err := a.external.FreeBusy(extCtx, providerID, rangeStart, rangeEnd)
		cancel()
		if err != nil {
			// Fail open: generation proceeds without external busy data.
			a.logger.Warn("external free/busy lookup failed, continuing without it",
				"provider_id", providerID, "err", err)
		} else {
			busy = append(busy, external...)
		}
	}

	return busy, nil
}
