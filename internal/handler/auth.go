package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/xela07ax/printhub-backend/internal/domain"
	"go.uber.org/zap"
)

// AuthProvider Описываем, что нам нужно от сервиса
type AuthProvider interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.TokenResponse, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.TokenResponse, error)
}

// LoginThrottle — лимит попыток логина (Redis fixed window).
type LoginThrottle interface {
	Allow(ctx context.Context, key string) bool
}

type AuthHandler struct {
	service  AuthProvider
	throttle LoginThrottle
	logger   *zap.Logger
}

func NewAuthHandler(s AuthProvider, throttle LoginThrottle, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{service: s, throttle: throttle, logger: logger}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		if err == domain.ErrEmailTaken {
			respondDomainError(w, err)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, "registered", resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Окно считается по паре email+IP, чтобы перебор одной учетки с одного
	// адреса упирался в лимит, не задевая остальных
	if h.throttle != nil {
		key := req.Email + "|" + clientIP(r)
		if !h.throttle.Allow(r.Context(), key) {
			h.logger.Warn("login throttled", zap.String("ip", clientIP(r)))
			respondError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
			return
		}
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, "ok", resp)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
