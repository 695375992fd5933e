package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/storage"
)

type SettingsHandler struct {
	settings *storage.SettingsRepository
}

func NewSettingsHandler(settings *storage.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

type settingsPayload struct {
	StartOffsetMinutes int `json:"start_offset_minutes"`
	EndOffsetMinutes   int `json:"end_offset_minutes"`
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s, err := h.settings.Get(r.Context(), providerIDFromContext(r.Context()))
	if err != nil {
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(settingsPayload{
		StartOffsetMinutes: s.StartOffsetMinutes,
		EndOffsetMinutes:   s.EndOffsetMinutes,
	})
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.StartOffsetMinutes < 0 {
		http.Error(w, "start_offset_minutes must be >= 0", http.StatusBadRequest)
		return
	}
	if req.EndOffsetMinutes < 1 {
		http.Error(w, "end_offset_minutes must be >= 1", http.StatusBadRequest)
		return
	}
	if req.StartOffsetMinutes >= req.EndOffsetMinutes {
		http.Error(w, "start_offset_minutes must be less than end_offset_minutes", http.StatusBadRequest)
		return
	}

	s := model.Settings{
		ProviderID:         providerIDFromContext(r.Context()),
		StartOffsetMinutes: req.StartOffsetMinutes,
		EndOffsetMinutes:   req.EndOffsetMinutes,
	}
	if err := h.settings.Upsert(r.Context(), s); err != nil {
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(req)
}
