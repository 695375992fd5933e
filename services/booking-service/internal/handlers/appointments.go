package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slotbookhq/slotbook/libs/db"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/outbox"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/storage"
)

type AppointmentHandler struct {
	pool         *db.Pool
	appointments *storage.AppointmentRepository
	providers    *storage.ProviderRepository
	types        *storage.AppointmentTypeRepository
	outboxRepo   *outbox.Repository
	logger       *slog.Logger
}

func NewAppointmentHandler(
	pool *db.Pool,
	appointments *storage.AppointmentRepository,
	providers *storage.ProviderRepository,
	types *storage.AppointmentTypeRepository,
	outboxRepo *outbox.Repository,
	logger *slog.Logger,
) *AppointmentHandler {
	return &AppointmentHandler{
		pool:         pool,
		appointments: appointments,
		providers:    providers,
		types:        types,
		outboxRepo:   outboxRepo,
		logger:       logger,
	}
}

type appointmentItem struct {
	ID                string `json:"id"`
	AppointmentTypeID string `json:"appointment_type_id"`
	BookerName        string `json:"booker_name"`
	BookerEmail       string `json:"booker_email"`
	BookerPhone       string `json:"booker_phone,omitempty"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	Status            string `json:"status"`
	CancelledAt       string `json:"cancelled_at,omitempty"`
	CreatedAt         string `json:"created_at"`
}

func appointmentToItem(a model.Appointment) appointmentItem {
	item := appointmentItem{
		ID:                a.ID,
		AppointmentTypeID: a.AppointmentTypeID,
		BookerName:        a.BookerName,
		BookerEmail:       a.BookerEmail,
		BookerPhone:       a.BookerPhone,
		StartTime:         a.StartTime.UTC().Format(time.RFC3339),
		EndTime:           a.EndTime.UTC().Format(time.RFC3339),
		Status:            a.Status,
		CreatedAt:         a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.CancelledAt != nil {
		item.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var filter storage.ListFilter
	q := r.URL.Query()
	filter.TypeID = strings.TrimSpace(q.Get("type"))
	if status := strings.TrimSpace(q.Get("status")); status != "" {
		if status != model.StatusBooked && status != model.StatusCancelled {
			http.Error(w, "invalid status filter", http.StatusBadRequest)
			return
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		filter.From = t
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		filter.To = t
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	appts, err := h.appointments.ListByProvider(r.Context(), providerIDFromContext(r.Context()), filter)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, appointmentToItem(a))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "appointment id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	providerID := providerIDFromContext(ctx)

	appt, err := h.appointments.Get(ctx, providerID, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if appt.Status == model.StatusCancelled {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(appointmentToItem(appt))
		return
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cancelledAt, err := h.appointments.Cancel(ctx, tx, providerID, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment cannot be cancelled", http.StatusConflict)
			return
		}
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}
	appt.Status = model.StatusCancelled
	appt.CancelledAt = &cancelledAt

	provider, err := h.providers.GetByID(ctx, providerID)
	if err != nil {
		http.Error(w, "failed to load provider", http.StatusInternalServerError)
		return
	}
	apptType, err := h.types.Get(ctx, providerID, appt.AppointmentTypeID)
	if err != nil {
		http.Error(w, "failed to load appointment type", http.StatusInternalServerError)
		return
	}

	evt, err := outbox.NewBookingCancelled(provider, apptType, appt)
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
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(appointmentToItem(appt))
}
