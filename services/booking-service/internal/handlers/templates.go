package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/schedule"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/storage"
)

type TemplateHandler struct {
	service *schedule.TemplateService
}

func NewTemplateHandler(service *schedule.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

type templateRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type templateItem struct {
	ID   string `json:"id"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

type templateConflictResponse struct {
	Error       string       `json:"error"`
	Template    templateItem `json:"template"`
	Conflicting templateItem `json:"conflicting"`
}

func templateToItem(t model.Template) templateItem {
	return templateItem{ID: t.ID, From: t.FromMinute, To: t.ToMinute}
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	templates, err := h.service.ListByOwner(r.Context(), providerIDFromContext(r.Context()))
	if err != nil {
		http.Error(w, "failed to list templates", http.StatusInternalServerError)
		return
	}

	items := make([]templateItem, 0, len(templates))
	for _, t := range templates {
		items = append(items, templateToItem(t))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	created, err := h.service.Create(r.Context(), providerIDFromContext(r.Context()), req.From, req.To)
	if err != nil {
		var overlap *schedule.OverlapError
		if errors.As(err, &overlap) {
			writeTemplateConflict(w, model.Template{FromMinute: req.From, ToMinute: req.To}, overlap.Conflicting)
			return
		}
		if errors.Is(err, schedule.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to create template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(templateToItem(created))
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "template id required", http.StatusBadRequest)
		return
	}

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Update(r.Context(), providerIDFromContext(r.Context()), id, req.From, req.To)
	if err != nil {
		if errors.Is(err, schedule.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if storage.IsNotFound(err) {
			http.Error(w, "template not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update template", http.StatusInternalServerError)
		return
	}
	if result.Clashed {
		// 409 carries the stored (unmodified) row so clients can resync.
		writeTemplateConflict(w, result.Template, result.Conflicting)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(templateToItem(result.Template))
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "template id required", http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(r.Context(), providerIDFromContext(r.Context()), id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "template not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete template", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeTemplateConflict(w http.ResponseWriter, current, conflicting model.Template) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	_ = json.NewEncoder(w).Encode(templateConflictResponse{
		Error:       "template overlaps an existing availability window",
		Template:    templateToItem(current),
		Conflicting: templateToItem(conflicting),
	})
}
