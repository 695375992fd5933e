package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/gcal"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/storage"
)

// CalendarHandler manages the provider's Google Calendar connection. The
// OAuth consent flow happens client-side; Connect receives the already
// exchanged token set.
type CalendarHandler struct {
	calendars *storage.CalendarRepository
}

func NewCalendarHandler(calendars *storage.CalendarRepository) *CalendarHandler {
	return &CalendarHandler{calendars: calendars}
}

type connectCalendarRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

type calendarStatusResponse struct {
	Connected        bool     `json:"connected"`
	Scope            string   `json:"scope,omitempty"`
	CheckedCalendars []string `json:"checked_calendars"`
}

type checkedCalendarRequest struct {
	CalendarID string `json:"calendar_id"`
}

func (h *CalendarHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	account, err := h.calendars.Get(r.Context(), providerIDFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, gcal.ErrNotConnected) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(calendarStatusResponse{Connected: false, CheckedCalendars: []string{}})
			return
		}
		http.Error(w, "failed to load calendar connection", http.StatusInternalServerError)
		return
	}

	checked := account.CheckedCalendars
	if checked == nil {
		checked = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(calendarStatusResponse{
		Connected:        true,
		Scope:            account.Scope,
		CheckedCalendars: checked,
	})
}

func (h *CalendarHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req connectCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AccessToken = strings.TrimSpace(req.AccessToken)
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.AccessToken == "" {
		http.Error(w, "access_token required", http.StatusBadRequest)
		return
	}
	if req.ExpiresIn <= 0 {
		req.ExpiresIn = 3600
	}

	account := model.CalendarAccount{
		ProviderID:   providerIDFromContext(r.Context()),
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenExpiry:  time.Now().Add(time.Duration(req.ExpiresIn) * time.Second),
		Scope:        strings.TrimSpace(req.Scope),
	}
	if err := h.calendars.Upsert(r.Context(), account); err != nil {
		http.Error(w, "failed to store calendar connection", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalendarHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.calendars.Delete(r.Context(), providerIDFromContext(r.Context())); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "no calendar connected", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to disconnect calendar", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalendarHandler) AddChecked(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req checkedCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CalendarID = strings.TrimSpace(req.CalendarID)
	if req.CalendarID == "" {
		http.Error(w, "calendar_id required", http.StatusBadRequest)
		return
	}

	if err := h.calendars.AddCheckedCalendar(r.Context(), providerIDFromContext(r.Context()), req.CalendarID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "no calendar connected", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to add calendar", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalendarHandler) RemoveChecked(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req checkedCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CalendarID = strings.TrimSpace(req.CalendarID)
	if req.CalendarID == "" {
		http.Error(w, "calendar_id required", http.StatusBadRequest)
		return
	}

	if err := h.calendars.RemoveCheckedCalendar(r.Context(), providerIDFromContext(r.Context()), req.CalendarID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "no calendar connected", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to remove calendar", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
