package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/printhub-backend/internal/domain"
)

// Единый конверт ответа: {"success", "message", "data"}.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: status < 400, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, message, nil)
}

// respondDomainError мапит сигнальные ошибки ядра на HTTP-коды.
// Всё неопознанное — 500 с текстом ошибки: это внутренний инструмент,
// прятать причину от оператора вреднее, чем показать.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, domain.ErrNotFound.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, domain.ErrEmailTaken):
		respondError(w, http.StatusConflict, domain.ErrEmailTaken.Error())
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, domain.ErrForbidden.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrDriveNotConnected):
		respondError(w, http.StatusServiceUnavailable, domain.ErrDriveNotConnected.Error())
	case errors.Is(err, domain.ErrTokenExchange):
		respondError(w, http.StatusInternalServerError, "Authentication failed")
	case errors.Is(err, domain.ErrConfigMissing), errors.Is(err, domain.ErrPersist):
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
