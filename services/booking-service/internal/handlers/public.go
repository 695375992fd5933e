package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slotbookhq/slotbook/libs/db"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/interval"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/outbox"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/schedule"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/storage"
)

// PublicHandler serves the unauthenticated booking surface: availability
// lookup and booking creation for a provider's appointment type.
type PublicHandler struct {
	pool         *db.Pool
	providers    *storage.ProviderRepository
	types        *storage.AppointmentTypeRepository
	settings     *storage.SettingsRepository
	appointments *storage.AppointmentRepository
	outboxRepo   *outbox.Repository
	generator    *schedule.SlotGenerator
	validator    *schedule.BookingValidator
	logger       *slog.Logger
}

func NewPublicHandler(
	pool *db.Pool,
	providers *storage.ProviderRepository,
	types *storage.AppointmentTypeRepository,
	settings *storage.SettingsRepository,
	appointments *storage.AppointmentRepository,
	outboxRepo *outbox.Repository,
	generator *schedule.SlotGenerator,
	validator *schedule.BookingValidator,
	logger *slog.Logger,
) *PublicHandler {
	return &PublicHandler{
		pool:         pool,
		providers:    providers,
		types:        types,
		settings:     settings,
		appointments: appointments,
		outboxRepo:   outboxRepo,
		generator:    generator,
		validator:    validator,
		logger:       logger,
	}
}

type publicTypeItem struct {
	Name            string `json:"name"`
	DisplayName     string `json:"display_name"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Types lists a provider's bookable appointment types.
func (h *PublicHandler) Types(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID := strings.TrimSpace(r.PathValue("provider"))
	if providerID == "" {
		http.Error(w, "provider required", http.StatusBadRequest)
		return
	}
	provider, err := h.providers.GetByID(r.Context(), providerID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "provider not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load provider", http.StatusInternalServerError)
		return
	}

	types, err := h.types.ListByProvider(r.Context(), provider.ID)
	if err != nil {
		http.Error(w, "failed to list appointment types", http.StatusInternalServerError)
		return
	}
	items := make([]publicTypeItem, 0, len(types))
	for _, t := range types {
		items = append(items, publicTypeItem{
			Name:            t.Name,
			DisplayName:     t.DisplayName,
			DurationMinutes: t.DurationMinutes,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

type availabilityDay struct {
	Date  string     `json:"date"`
	Slots []slotItem `json:"slots"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type availabilityResponse struct {
	Provider        string            `json:"provider"`
	AppointmentType string            `json:"appointment_type"`
	DurationMinutes int               `json:"duration_minutes"`
	Timezone        string            `json:"timezone"`
	Days            []availabilityDay `json:"days"`
}

// Availability returns the provider's open slots for one appointment type,
// bucketed by calendar day. Days follow the owner's timezone unless the
// caller overrides it with ?tz=.
func (h *PublicHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	provider, apptType, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}

	tz := strings.TrimSpace(r.URL.Query().Get("tz"))
	if tz == "" {
		tz = provider.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		http.Error(w, "invalid tz", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	settings, err := h.settings.Get(ctx, provider.ID)
	if err != nil {
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	windows, err := h.generator.Generate(ctx, provider, apptType,
		time.Duration(settings.StartOffsetMinutes)*time.Minute,
		time.Duration(settings.EndOffsetMinutes)*time.Minute)
	if err != nil {
		if errors.Is(err, schedule.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to compute availability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(availabilityResponse{
		Provider:        provider.Name,
		AppointmentType: apptType.Name,
		DurationMinutes: apptType.DurationMinutes,
		Timezone:        loc.String(),
		Days:            bucketByDay(windows, loc),
	})
}

// bucketByDay groups ascending windows by their start date in loc.
func bucketByDay(windows []interval.Span, loc *time.Location) []availabilityDay {
	days := []availabilityDay{}
	for _, win := range windows {
		date := win.Start.In(loc).Format("2006-01-02")
		slot := slotItem{
			StartTime: win.Start.UTC().Format(time.RFC3339),
			EndTime:   win.End.UTC().Format(time.RFC3339),
		}
		if n := len(days); n > 0 && days[n-1].Date == date {
			days[n-1].Slots = append(days[n-1].Slots, slot)
			continue
		}
		days = append(days, availabilityDay{Date: date, Slots: []slotItem{slot}})
	}
	return days
}

type publicBookingRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Timezone  string `json:"timezone"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type publicBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
}

func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	provider, apptType, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}

	var req publicBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Name == "" || req.Email == "" {
		http.Error(w, "name and email required", http.StatusBadRequest)
		return
	}
	if req.Timezone == "" {
		req.Timezone = provider.Timezone
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		http.Error(w, "invalid timezone", http.StatusBadRequest)
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := h.validator.Validate(ctx, provider, apptType, startTime, endTime); err != nil {
		switch {
		case errors.Is(err, schedule.ErrDurationMismatch):
			http.Error(w, "requested window does not match the appointment duration", http.StatusUnprocessableEntity)
		case errors.Is(err, schedule.ErrNoOpenWindow):
			http.Error(w, "requested time is not available", http.StatusConflict)
		case errors.Is(err, schedule.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, "failed to validate booking", http.StatusInternalServerError)
		}
		return
	}

	appt := model.Appointment{
		ProviderID:        provider.ID,
		AppointmentTypeID: apptType.ID,
		BookerName:        req.Name,
		BookerEmail:       req.Email,
		BookerPhone:       strings.TrimSpace(req.Phone),
		BookerTimezone:    req.Timezone,
		StartTime:         startTime.UTC(),
		EndTime:           endTime.UTC(),
		Status:            model.StatusBooked,
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.appointments.Create(ctx, tx, &appt); err != nil {
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	evt, err := outbox.NewBookingCreated(provider, apptType, appt)
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(publicBookingResponse{
		AppointmentID: appt.ID,
		StartTime:     appt.StartTime.Format(time.RFC3339),
		EndTime:       appt.EndTime.Format(time.RFC3339),
		Status:        appt.Status,
	})
}

// resolveTarget loads the provider and appointment type addressed by the
// {provider} and {type} path segments, writing the error response itself.
func (h *PublicHandler) resolveTarget(w http.ResponseWriter, r *http.Request) (model.Provider, model.AppointmentType, bool) {
	providerID := strings.TrimSpace(r.PathValue("provider"))
	typeName := strings.TrimSpace(r.PathValue("type"))
	if providerID == "" || typeName == "" {
		http.Error(w, "provider and appointment type required", http.StatusBadRequest)
		return model.Provider{}, model.AppointmentType{}, false
	}

	provider, err := h.providers.GetByID(r.Context(), providerID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "provider not found", http.StatusNotFound)
			return model.Provider{}, model.AppointmentType{}, false
		}
		http.Error(w, "failed to load provider", http.StatusInternalServerError)
		return model.Provider{}, model.AppointmentType{}, false
	}

	apptType, err := h.types.GetByName(r.Context(), provider.ID, typeName)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment type not found", http.StatusNotFound)
			return model.Provider{}, model.AppointmentType{}, false
		}
		http.Error(w, "failed to load appointment type", http.StatusInternalServerError)
		return model.Provider{}, model.AppointmentType{}, false
	}
	return provider, apptType, true
}
