package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/interval"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

type fakeAppointments struct {
	appts []model.Appointment
	err   error
}

func (f *fakeAppointments) ListUpcomingBooked(_ context.Context, _ string, _ time.Time) ([]model.Appointment, error) {
	return f.appts, f.err
}

type fakeFreeBusy struct {
	spans []interval.Span
	err   error
	calls int
}

func (f *fakeFreeBusy) FreeBusy(_ context.Context, _ string, _, _ time.Time) ([]interval.Span, error) {
	f.calls++
	return f.spans, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// monday is a Monday 00:00 UTC used as the reference week.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newGenerator(templates []model.Template, appts *fakeAppointments, ext *fakeFreeBusy, now time.Time) *SlotGenerator {
	store := newMemTemplateStore()
	for i := range templates {
		tmpl := templates[i]
		_ = store.Insert(context.Background(), &tmpl)
	}
	clock := FixedClock{T: now}
	agg := NewBusyAggregator(appts, ext, clock, discardLogger())
	return NewSlotGenerator(store, agg, clock)
}

func utcProvider() model.Provider {
	return model.Provider{ID: "prov-1", Timezone: "UTC"}
}

func hourType(minutes int) model.AppointmentType {
	return model.AppointmentType{ID: "type-1", ProviderID: "prov-1", DurationMinutes: minutes}
}

func TestGenerateSingleTemplateTwoSlots(t *testing.T) {
	// 8:00-10:00 Monday-relative, 60-minute slots.
	gen := newGenerator(
		[]model.Template{{ProviderID: "prov-1", FromMinute: 480, ToMinute: 600}},
		&fakeAppointments{}, &fakeFreeBusy{}, monday,
	)

	windows, err := gen.Generate(context.Background(), utcProvider(), hourType(60), 0, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	want := []interval.Span{
		{Start: monday.Add(8 * time.Hour), End: monday.Add(9 * time.Hour)},
		{Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)},
	}
	assertWindows(t, windows, want)
}

func TestGenerateSubtractsBookedAppointments(t *testing.T) {
	appts := &fakeAppointments{appts: []model.Appointment{{
		ProviderID: "prov-1",
		StartTime:  monday.Add(8 * time.Hour),
		EndTime:    monday.Add(9 * time.Hour),
		Status:     model.StatusBooked,
	}}}
	gen := newGenerator(
		[]model.Template{{ProviderID: "prov-1", FromMinute: 480, ToMinute: 600}},
		appts, &fakeFreeBusy{}, monday,
	)

	windows, err := gen.Generate(context.Background(), utcProvider(), hourType(60), 0, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	want := []interval.Span{
		{Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)},
	}
	assertWindows(t, windows, want)
}

func TestGenerateFailsOpenOnExternalError(t *testing.T) {
	ext := &fakeFreeBusy{err: errors.New("calendar provider unreachable")}
	gen := newGenerator(
		[]model.Template{{ProviderID: "prov-1", FromMinute: 480, ToMinute: 600}},
		&fakeAppointments{}, ext, monday,
	)

	windows, err := gen.Generate(context.Background(), utcProvider(), hourType(60), 0, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Generate must not propagate external errors, got: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows despite provider failure, got %d", len(windows))
	}
	if ext.calls != 1 {
		t.Fatalf("expected exactly one free/busy call, got %d", ext.calls)
	}
}

func TestGeneratePropagatesInternalStoreError(t *testing.T) {
	appts := &fakeAppointments{err: errors.New("db down")}
	gen := newGenerator(nil, appts, &fakeFreeBusy{}, monday)

	if _, err := gen.Generate(context.Background(), utcProvider(), hourType(60), 0, time.Hour); err == nil {
		t.Fatal("internal appointment store errors must propagate")
	}
}

func TestGenerateSubtractsExternalBusy(t *testing.T) {
	ext := &fakeFreeBusy{spans: []interval.Span{
		{Start: monday.Add(9 * time.Hour), End: monday.Add(9*time.Hour + 30*time.Minute)},
	}}
	gen := newGenerator(
		[]model.Template{{ProviderID: "prov-1", FromMinute: 480, ToMinute: 600}},
		&fakeAppointments{}, ext, monday,
	)

	windows, err := gen.Generate(context.Background(), utcProvider(), hourType(60), 0, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	// The 9:00 slot overlaps the external busy window; only 8:00 survives.
	want := []interval.Span{
		{Start: monday.Add(8 * time.Hour), End: monday.Add(9 * time.Hour)},
	}
	assertWindows(t, windows, want)
}

func TestGenerateAlignsToTemplateStart(t *testing.T) {
	// Horizon starts mid-window at 8:20; slots stay on the 8:00-based grid.
	gen := newGenerator(
		[]model.Template{{ProviderID: "prov-1", FromMinute: 480, ToMinute: 600}},
		&fakeAppointments{}, &fakeFreeBusy{}, monday,
	)

	windows, err := gen.Generate(context.Background(), utcProvider(), hourType(60),
		8*time.Hour+20*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	want := []interval.Span{
		{Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)},
	}
	assertWindows(t, windows, want)
}

func TestGenerateHonorsOwnerTimezone(t *testing.T) {
	gen := newGenerator(
		[]model.Template{{ProviderID: "prov-1", FromMinute: 480, ToMinute: 600}},
		&fakeAppointments{}, &fakeFreeBusy{}, monday,
	)
	provider := model.Provider{ID: "prov-1", Timezone: "America/New_York"}

	windows, err := gen.Generate(context.Background(), provider, hourType(60), 0, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	// 8:00 Monday in New York (EST, UTC-5) is 13:00 UTC.
	want := []interval.Span{
		{Start: monday.Add(13 * time.Hour), End: monday.Add(14 * time.Hour)},
		{Start: monday.Add(14 * time.Hour), End: monday.Add(15 * time.Hour)},
	}
	assertWindows(t, windows, want)
}

func TestGenerateSpansMultipleWeeks(t *testing.T) {
	gen := newGenerator(
		[]model.Template{{ProviderID: "prov-1", FromMinute: 480, ToMinute: 600}},
		&fakeAppointments{}, &fakeFreeBusy{}, monday,
	)

	windows, err := gen.Generate(context.Background(), utcProvider(), hourType(60), 0, 14*24*time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(windows) != 4 {
		t.Fatalf("expected 4 windows across two weeks, got %d", len(windows))
	}
	nextWeek := monday.AddDate(0, 0, 7)
	if !windows[2].Start.Equal(nextWeek.Add(8 * time.Hour)) {
		t.Fatalf("third window should open week two at 8:00, got %s", windows[2].Start)
	}
}

func TestGenerateRejectsInvertedHorizon(t *testing.T) {
	gen := newGenerator(nil, &fakeAppointments{}, &fakeFreeBusy{}, monday)
	_, err := gen.Generate(context.Background(), utcProvider(), hourType(60), 2*time.Hour, time.Hour)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerateRejectsUnknownTimezone(t *testing.T) {
	gen := newGenerator(nil, &fakeAppointments{}, &fakeFreeBusy{}, monday)
	provider := model.Provider{ID: "prov-1", Timezone: "Mars/Olympus_Mons"}
	_, err := gen.Generate(context.Background(), provider, hourType(60), 0, time.Hour)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerateWindowProperties(t *testing.T) {
	templates := []model.Template{
		{ProviderID: "prov-1", FromMinute: 480, ToMinute: 615},  // Monday 8:00-10:15
		{ProviderID: "prov-1", FromMinute: 2000, ToMinute: 2300},
		{ProviderID: "prov-1", FromMinute: 9900, ToMinute: 10080},
	}
	ext := &fakeFreeBusy{spans: []interval.Span{
		{Start: monday.Add(34 * time.Hour), End: monday.Add(36 * time.Hour)},
	}}
	gen := newGenerator(templates, &fakeAppointments{}, ext, monday)

	windows, err := gen.Generate(context.Background(), utcProvider(), hourType(45), 0, 14*24*time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(windows) == 0 {
		t.Fatal("expected windows")
	}

	prev := time.Time{}
	for _, w := range windows {
		if w.End.Sub(w.Start) != 45*time.Minute {
			t.Fatalf("window %v is not exactly 45 minutes", w)
		}
		if !w.Start.After(prev) && !prev.IsZero() {
			t.Fatalf("windows not strictly ascending at %v", w)
		}
		prev = w.Start

		if interval.ClashesAny(w, ext.spans) {
			t.Fatalf("window %v clashes with busy interval", w)
		}

		// Containment in some template, mapped to minutes since Monday.
		start := int(w.Start.Sub(beginningOfWeek(w.Start.UTC())) / time.Minute)
		end := start + 45
		contained := false
		for _, tmpl := range templates {
			if start >= tmpl.FromMinute && end <= tmpl.ToMinute {
				contained = true
				break
			}
		}
		if !contained {
			t.Fatalf("window %v (minutes %d-%d) lies in no template", w, start, end)
		}
	}
}

func TestGenerateIsDeterministicForFixedClock(t *testing.T) {
	templates := []model.Template{{ProviderID: "prov-1", FromMinute: 480, ToMinute: 600}}
	a := newGenerator(templates, &fakeAppointments{}, &fakeFreeBusy{}, monday.Add(3*time.Hour+17*time.Second))
	b := newGenerator(templates, &fakeAppointments{}, &fakeFreeBusy{}, monday.Add(3*time.Hour+17*time.Second))

	first, err := a.Generate(context.Background(), utcProvider(), hourType(60), 0, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	second, err := b.Generate(context.Background(), utcProvider(), hourType(60), 0, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	assertWindows(t, second, first)
}

func assertWindows(t *testing.T, got, want []interval.Span) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d windows, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Fatalf("window %d = [%s, %s), want [%s, %s)",
				i, got[i].Start, got[i].End, want[i].Start, want[i].End)
		}
	}
}
