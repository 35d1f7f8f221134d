package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ConsentStore — то, что нужно от Credential Store для consent-флоу.
type ConsentStore interface {
	ConsentURL(state string) string
	CompleteConsent(ctx context.Context, code string) (*http.Client, error)
}

// OAuthHandler обслуживает интерактивный consent-флоу оператора.
// Это разовая ручная процедура привязки общего аккаунта диска.
type OAuthHandler struct {
	store  ConsentStore
	logger *zap.Logger
}

func NewOAuthHandler(store ConsentStore, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{store: store, logger: logger}
}

const stateCookie = "oauth_state"

// Login генерирует state, запоминает его в короткоживущей cookie и
// редиректит оператора на страницу согласия провайдера.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.store.ConsentURL(state), http.StatusFound)
}

// Callback завершает consent: сверяет state, обменивает код, персистит credential.
// Код одноразовый — повторный вызов с тем же кодом отклонит сам провайдер.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "authorization code is required")
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		respondError(w, http.StatusBadRequest, "oauth state mismatch")
		return
	}

	if _, err := h.store.CompleteConsent(r.Context(), code); err != nil {
		h.logger.Error("consent completion failed", zap.Error(err))
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, "drive account connected", nil)
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
