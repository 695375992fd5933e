package outbox

import (
	"encoding/json"
	"time"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

// Topic names double as event types: one event per topic.
const (
	TopicBookingCreated   = "booking.created.v1"
	TopicBookingCancelled = "booking.cancelled.v1"
)

// Event is the domain event envelope written to the outbox table inside
// the same transaction as the state change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// BookingCreatedPayload is the wire shape of booking.created.v1 and
// booking.cancelled.v1. Times are RFC 3339 UTC.
type BookingCreatedPayload struct {
	AppointmentID       string    `json:"appointment_id"`
	ProviderID          string    `json:"provider_id"`
	ProviderName        string    `json:"provider_name"`
	ProviderEmail       string    `json:"provider_email"`
	ProviderTimezone    string    `json:"provider_timezone"`
	AppointmentType     string    `json:"appointment_type"`
	AppointmentDisplay  string    `json:"appointment_display"`
	BookerName          string    `json:"booker_name"`
	BookerEmail         string    `json:"booker_email"`
	BookerTimezone      string    `json:"booker_timezone"`
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
}

func NewBookingCreated(provider model.Provider, apptType model.AppointmentType, appt model.Appointment) (Event, error) {
	return newBookingEvent(TopicBookingCreated, provider, apptType, appt)
}

func NewBookingCancelled(provider model.Provider, apptType model.AppointmentType, appt model.Appointment) (Event, error) {
	return newBookingEvent(TopicBookingCancelled, provider, apptType, appt)
}

func newBookingEvent(eventType string, provider model.Provider, apptType model.AppointmentType, appt model.Appointment) (Event, error) {
	payload, err := json.Marshal(BookingCreatedPayload{
		AppointmentID:      appt.ID,
		ProviderID:         provider.ID,
		ProviderName:       provider.Name,
		ProviderEmail:      provider.Email,
		ProviderTimezone:   provider.Timezone,
		AppointmentType:    apptType.Name,
		AppointmentDisplay: apptType.DisplayName,
		BookerName:         appt.BookerName,
		BookerEmail:        appt.BookerEmail,
		BookerTimezone:     appt.BookerTimezone,
		StartTime:          appt.StartTime.UTC(),
		EndTime:            appt.EndTime.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
