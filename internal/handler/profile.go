package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/printhub-backend/internal/domain"
	"github.com/xela07ax/printhub-backend/internal/infra/auth"
)

// ProfileProvider Описываем, что нам нужно от сервиса
type ProfileProvider interface {
	Profile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.User, error)
}

type ProfileHandler struct {
	service ProfileProvider
}

func NewProfileHandler(s ProfileProvider) *ProfileHandler {
	return &ProfileHandler{service: s}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrMissingToken.Error())
		return
	}

	user, err := h.service.Profile(r.Context(), claims.UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, "ok", user)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrMissingToken.Error())
		return
	}

	var upd domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), claims.UserID, upd)
	if err != nil {
		if err == domain.ErrNotFound {
			respondDomainError(w, err)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, "profile updated", user)
}
