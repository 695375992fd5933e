package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/storage"
)

// Public booking URLs address types by name, so names are restricted to
// kebab-case and durations to a day at most.
var kebabCaseName = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

const maxDurationMinutes = 24 * 60

type AppointmentTypeHandler struct {
	types *storage.AppointmentTypeRepository
}

func NewAppointmentTypeHandler(types *storage.AppointmentTypeRepository) *AppointmentTypeHandler {
	return &AppointmentTypeHandler{types: types}
}

type appointmentTypeRequest struct {
	Name            string `json:"name"`
	DisplayName     string `json:"display_name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type appointmentTypeItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DisplayName     string `json:"display_name"`
	DurationMinutes int    `json:"duration_minutes"`
}

func typeToItem(t model.AppointmentType) appointmentTypeItem {
	return appointmentTypeItem{
		ID:              t.ID,
		Name:            t.Name,
		DisplayName:     t.DisplayName,
		DurationMinutes: t.DurationMinutes,
	}
}

func validateTypeRequest(req *appointmentTypeRequest) string {
	req.Name = strings.TrimSpace(req.Name)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if !kebabCaseName.MatchString(req.Name) {
		return "name must be kebab-case (lowercase letters, digits, hyphens)"
	}
	if req.DisplayName == "" {
		return "display_name required"
	}
	if req.DurationMinutes < 1 || req.DurationMinutes > maxDurationMinutes {
		return "duration_minutes must be within [1, 1440]"
	}
	return ""
}

func (h *AppointmentTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	types, err := h.types.ListByProvider(r.Context(), providerIDFromContext(r.Context()))
	if err != nil {
		http.Error(w, "failed to list appointment types", http.StatusInternalServerError)
		return
	}

	items := make([]appointmentTypeItem, 0, len(types))
	for _, t := range types {
		items = append(items, typeToItem(t))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

func (h *AppointmentTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req appointmentTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if msg := validateTypeRequest(&req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	t := model.AppointmentType{
		ProviderID:      providerIDFromContext(r.Context()),
		Name:            req.Name,
		DisplayName:     req.DisplayName,
		DurationMinutes: req.DurationMinutes,
	}
	if err := h.types.Create(r.Context(), &t); err != nil {
		if storage.IsUniqueViolation(err) {
			http.Error(w, "an appointment type with this name already exists", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create appointment type", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(typeToItem(t))
}

func (h *AppointmentTypeHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "appointment type id required", http.StatusBadRequest)
		return
	}

	var req appointmentTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if msg := validateTypeRequest(&req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	t := model.AppointmentType{
		ID:              id,
		ProviderID:      providerIDFromContext(r.Context()),
		Name:            req.Name,
		DisplayName:     req.DisplayName,
		DurationMinutes: req.DurationMinutes,
	}
	if err := h.types.Update(r.Context(), &t); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment type not found", http.StatusNotFound)
			return
		}
		if storage.IsUniqueViolation(err) {
			http.Error(w, "an appointment type with this name already exists", http.StatusConflict)
			return
		}
		http.Error(w, "failed to update appointment type", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(typeToItem(t))
}

func (h *AppointmentTypeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "appointment type id required", http.StatusBadRequest)
		return
	}

	if err := h.types.Delete(r.Context(), providerIDFromContext(r.Context()), id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment type not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete appointment type", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
