package model

import "time"

// Provider is a service provider account. Timezone is a validated IANA name;
// all recurring availability is interpreted in this zone.
type Provider struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Timezone     string
	Role         string
	CreatedAt    time.Time
}

const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

// Template is a recurring weekly availability window expressed as minutes
// since Monday 00:00 in the owner's timezone, half-open [FromMinute, ToMinute).
type Template struct {
	ID         string
	ProviderID string
	FromMinute int
	ToMinute   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (t Template) MinuteStart() int { return t.FromMinute }
func (t Template) MinuteEnd() int   { return t.ToMinute }

// MinutesPerWeek bounds template offsets: [0, 10080].
const MinutesPerWeek = 7 * 24 * 60

type AppointmentType struct {
	ID              string
	ProviderID      string
	Name            string
	DisplayName     string
	DurationMinutes int
	CreatedAt       time.Time
}

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

type Appointment struct {
	ID                string
	ProviderID        string
	AppointmentTypeID string
	BookerName        string
	BookerEmail       string
	BookerPhone       string
	BookerTimezone    string
	StartTime         time.Time
	EndTime           time.Time
	Status            string
	CancelledAt       *time.Time
	CreatedAt         time.Time
}

func (a Appointment) IntervalStart() time.Time { return a.StartTime.UTC() }
func (a Appointment) IntervalEnd() time.Time   { return a.EndTime.UTC() }

// Settings hold the provider's default public availability horizon,
// as offsets from "now".
type Settings struct {
	ProviderID         string
	StartOffsetMinutes int
	EndOffsetMinutes   int
}

const (
	DefaultStartOffsetMinutes = 60
	DefaultEndOffsetMinutes   = 14 * 24 * 60
)

func DefaultSettings(providerID string) Settings {
	return Settings{
		ProviderID:         providerID,
		StartOffsetMinutes: DefaultStartOffsetMinutes,
		EndOffsetMinutes:   DefaultEndOffsetMinutes,
	}
}

// CalendarAccount stores the Google Calendar credential set for a provider.
// CheckedCalendars lists the calendar ids queried for free/busy collisions.
type CalendarAccount struct {
	ProviderID       string
	AccessToken      string
	RefreshToken     string
	TokenExpiry      time.Time
	Scope            string
	CheckedCalendars []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
