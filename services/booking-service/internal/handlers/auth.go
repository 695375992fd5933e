package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/slotbookhq/slotbook/libs/auth"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	providers           *storage.ProviderRepository
	jwtSecret           string
	tokenTTL            time.Duration
	registrationEnabled bool
}

func NewAuthHandler(providers *storage.ProviderRepository, jwtSecret string, registrationEnabled bool) *AuthHandler {
	return &AuthHandler{
		providers:           providers,
		jwtSecret:           jwtSecret,
		tokenTTL:            1 * time.Hour,
		registrationEnabled: registrationEnabled,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type meResponse struct {
	ProviderID string `json:"provider_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Timezone   string `json:"timezone"`
	Role       string `json:"role"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.registrationEnabled {
		http.Error(w, "registration is disabled", http.StatusForbidden)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	req.Name = strings.TrimSpace(req.Name)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Email == "" || req.Password == "" || req.Name == "" {
		http.Error(w, "email, password and name required", http.StatusBadRequest)
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		http.Error(w, "invalid timezone", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	// The first account on a fresh install becomes the admin.
	count, err := h.providers.Count(ctx)
	if err != nil {
		http.Error(w, "failed to check accounts", http.StatusInternalServerError)
		return
	}
	role := model.RoleOwner
	if count == 0 {
		role = model.RoleAdmin
	}

	provider := model.Provider{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		Timezone:     req.Timezone,
		Role:         role,
	}
	if err := h.providers.Create(ctx, &provider); err != nil {
		if storage.IsUniqueViolation(err) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create account", http.StatusInternalServerError)
		return
	}

	token, err := h.issueToken(provider)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: token, TokenType: "Bearer"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password required", http.StatusBadRequest)
		return
	}

	provider, err := h.providers.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, "failed to lookup account", http.StatusInternalServerError)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(provider.PasswordHash), []byte(req.Password)); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.issueToken(provider)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: token, TokenType: "Bearer"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	provider, err := h.providers.GetByID(r.Context(), providerIDFromContext(r.Context()))
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "account not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load account", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(meResponse{
		ProviderID: provider.ID,
		Email:      provider.Email,
		Name:       provider.Name,
		Timezone:   provider.Timezone,
		Role:       provider.Role,
	})
}

func (h *AuthHandler) issueToken(p model.Provider) (string, error) {
	now := time.Now()
	return auth.SignHS256(auth.Claims{
		Sub:        p.ID,
		ProviderID: p.ID,
		Role:       p.Role,
		Iat:        now.Unix(),
		Exp:        now.Add(h.tokenTTL).Unix(),
	}, h.jwtSecret)
}
