package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/printhub-backend/internal/domain"
	"github.com/xela07ax/printhub-backend/internal/infra/auth"
)

// StaffProvider Описываем, что нам нужно от сервиса
type StaffProvider interface {
	List(ctx context.Context) ([]*domain.User, error)
	CreateAdministrator(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	ChangeRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
	Remove(ctx context.Context, callerID, id string) error
}

// StaffHandler — управление staff-учетками, маршруты закрыты гейтом Owner.
type StaffHandler struct {
	service StaffProvider
}

func NewStaffHandler(s StaffProvider) *StaffHandler {
	return &StaffHandler{service: s}
}

func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", members)
}

func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member, err := h.service.CreateAdministrator(r.Context(), req)
	if err != nil {
		if err == domain.ErrEmailTaken {
			respondDomainError(w, err)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, "staff member created", member)
}

type changeRoleRequest struct {
	Role domain.Role `json:"role"`
}

func (h *StaffHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member, err := h.service.ChangeRole(r.Context(), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		if err == domain.ErrNotFound {
			respondDomainError(w, err)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, "role updated", member)
}

func (h *StaffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrMissingToken.Error())
		return
	}

	if err := h.service.Remove(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		if err == domain.ErrNotFound {
			respondDomainError(w, err)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, "staff member removed", nil)
}
