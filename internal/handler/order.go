package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/printhub-backend/internal/domain"
	"github.com/xela07ax/printhub-backend/internal/infra/auth"
	"github.com/xela07ax/printhub-backend/internal/service"
	"go.uber.org/zap"
)

// Максимальный размер multipart-формы с архивом (64 MiB).
const maxSubmitFormSize = 64 << 20

// OrderProvider Описываем, что нам нужно от сервиса
type OrderProvider interface {
	Catalogue() domain.Catalogue
	Submit(ctx context.Context, userID string, req domain.SubmitProjectRequest, archive *service.ArchiveInput) (*domain.Order, error)
	ListMine(ctx context.Context, userID string) ([]*domain.Order, error)
	PatchMine(ctx context.Context, userID, orderID string, patch domain.UserOrderPatch) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	Search(ctx context.Context, f domain.OrderFilter) ([]*domain.Order, error)
	SetStatus(ctx context.Context, id string, to domain.OrderStatus) (*domain.Order, error)
	RecordPayment(ctx context.Context, orderID, method string, amount int64) (*domain.Payment, error)
}

type OrderHandler struct {
	service OrderProvider
	logger  *zap.Logger
}

func NewOrderHandler(s OrderProvider, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{service: s, logger: logger}
}

// Catalogue — GET /user/book: прайс для построения формы заказа.
func (h *OrderHandler) Catalogue(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, "ok", h.service.Catalogue())
}

// Submit — POST /user/book: multipart-форма с JSON-частью `project` и
// необязательной zip-частью `archive`.
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrMissingToken.Error())
		return
	}

	if err := r.ParseMultipartForm(maxSubmitFormSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	var req domain.SubmitProjectRequest
	projectField := r.FormValue("project")
	if projectField == "" {
		respondError(w, http.StatusBadRequest, "project part is required")
		return
	}
	if err := json.Unmarshal([]byte(projectField), &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid project json")
		return
	}

	var archive *service.ArchiveInput
	file, header, err := r.FormFile("archive")
	if err == nil {
		defer file.Close()
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".zip") {
			respondError(w, http.StatusBadRequest, "archive must be a zip file")
			return
		}
		archive = &service.ArchiveInput{
			Name:      header.Filename,
			SizeBytes: header.Size,
			Content:   file,
		}
	} else if err != http.ErrMissingFile {
		respondError(w, http.StatusBadRequest, "invalid archive part")
		return
	}

	order, err := h.service.Submit(r.Context(), claims.UserID, req, archive)
	if err != nil {
		h.logger.Warn("project submit failed", zap.Error(err))
		respondSubmitError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, "project submitted", order)
}

// respondSubmitError: инфраструктурные отказы — через общий маппинг,
// всё остальное здесь — ошибки валидации.
func respondSubmitError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrDriveNotConnected) || errors.Is(err, domain.ErrPersist) {
		respondDomainError(w, err)
		return
	}
	respondError(w, http.StatusBadRequest, err.Error())
}

// ListMine — GET /user/orders.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrMissingToken.Error())
		return
	}

	orders, err := h.service.ListMine(r.Context(), claims.UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", orders)
}

// PatchMine — PATCH /user/orders/{id}.
func (h *OrderHandler) PatchMine(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrMissingToken.Error())
		return
	}

	var patch domain.UserOrderPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.PatchMine(r.Context(), claims.UserID, chi.URLParam(r, "id"), patch)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "order updated", order)
}

// Search — GET /staff/orders?status=&email=&q=
func (h *OrderHandler) Search(w http.ResponseWriter, r *http.Request) {
	f := domain.OrderFilter{
		Status: domain.OrderStatus(r.URL.Query().Get("status")),
		Email:  r.URL.Query().Get("email"),
		Query:  r.URL.Query().Get("q"),
	}

	orders, err := h.service.Search(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, "ok", orders)
}

// Get — GET /staff/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", order)
}

type setStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// SetStatus — PATCH /staff/orders/{id}/status.
func (h *OrderHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "status updated", order)
}

type recordPaymentRequest struct {
	Method string `json:"method"`
	Amount int64  `json:"amount"`
}

// RecordPayment — POST /staff/orders/{id}/payment.
func (h *OrderHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payment, err := h.service.RecordPayment(r.Context(), chi.URLParam(r, "id"), req.Method, req.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondDomainError(w, err)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, "payment recorded", payment)
}
