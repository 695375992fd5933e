package schedule

import (
	"context"
	"time"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/interval"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

// TemplateSource yields a provider's templates ascending by FromMinute.
type TemplateSource interface {
	ListByOwner(ctx context.Context, providerID string, exclude []string) ([]model.Template, error)
}

// SlotGenerator walks a requested horizon and emits the provider's open
// booking windows: fixed-duration slots cut from the weekly templates,
// aligned to the template start, minus anything busy.
type SlotGenerator struct {
	templates TemplateSource
	busy      *BusyAggregator
	clock     Clock
}

func NewSlotGenerator(templates TemplateSource, busy *BusyAggregator, clock Clock) *SlotGenerator {
	return &SlotGenerator{
		templates: templates,
		busy:      busy,
		clock:     clock,
	}
}

// Generate computes the chronological open windows for the provider and
// appointment type over [now+startOffset, now+endOffset). Every window is
// exactly the appointment type's duration long, lies inside one weekly
// template and clashes with no busy interval. The result depends on "now"
// at the time of the call; a later call recomputes from a new baseline.
func (g *SlotGenerator) Generate(ctx context.Context, provider model.Provider, apptType model.AppointmentType, startOffset, endOffset time.Duration) ([]interval.Span, error) {
	if startOffset >= endOffset {
		return nil, validationf("start offset must be less than end offset")
	}
	if apptType.DurationMinutes <= 0 {
		return nil, validationf("appointment type duration must be positive")
	}

	loc, err := time.LoadLocation(provider.Timezone)
	if err != nil {
		return nil, validationf("invalid timezone %q", provider.Timezone)
	}

	now := g.clock.Now()

	busy, err := g.busy.Collect(ctx, provider.ID, now.Add(startOffset), now.Add(endOffset))
	if err != nil {
		return nil, err
	}

	templates, err := g.templates.ListByOwner(ctx, provider.ID, nil)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(apptType.DurationMinutes) * time.Minute
	cursor := now.In(loc).Add(startOffset).Round(time.Minute)
	limit := now.In(loc).Add(endOffset).Round(time.Minute)

	var windows []interval.Span
	for cursor.Before(limit) {
		monday := beginningOfWeek(cursor)
		elapsed := int(cursor.Sub(monday) / time.Minute)

		tmpl, found := firstTemplateEndingAfter(templates, elapsed)
		switch {
		case !found:
			// Nothing left this week; resume at next Monday 00:00.
			cursor = nextMonday(cursor)

		case tmpl.FromMinute > elapsed:
			// Ahead of the template window; jump to its start.
			cursor = cursor.Add(time.Duration(tmpl.FromMinute-elapsed) * time.Minute)

		case (elapsed-tmpl.FromMinute)%apptType.DurationMinutes != 0:
			// Inside the window but off the slot grid; align to the next
			// boundary measured from the template start.
			remainder := (elapsed - tmpl.FromMinute) % apptType.DurationMinutes
			cursor = cursor.Add(time.Duration(apptType.DurationMinutes-remainder) * time.Minute)

		default:
			if elapsed >= tmpl.FromMinute && elapsed+apptType.DurationMinutes <= tmpl.ToMinute {
				candidate := interval.Span{Start: cursor.UTC(), End: cursor.Add(duration).UTC()}
				if !interval.ClashesAny(candidate, busy) {
					windows = append(windows, candidate)
				}
			}
			cursor = cursor.Add(duration)
		}
	}

	return windows, nil
}

func firstTemplateEndingAfter(templates []model.Template, elapsed int) (model.Template, bool) {
	for _, t := range templates {
		if t.ToMinute > elapsed {
			return t, true
		}
	}
	return model.Template{}, false
}

// beginningOfWeek returns Monday 00:00 of t's week in t's location.
func beginningOfWeek(t time.Time) time.Time {
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -daysSinceMonday).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func nextMonday(t time.Time) time.Time {
	y, m, d := beginningOfWeek(t).AddDate(0, 0, 7).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
