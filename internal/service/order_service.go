package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/xela07ax/printhub-backend/internal/domain"
	"github.com/xela07ax/printhub-backend/internal/drive"
	"go.uber.org/zap"
)

// OrderProvider — что OrderService нужно от хранилища заказов.
type OrderProvider interface {
	Create(ctx context.Context, o *domain.Order) error
	AttachFile(ctx context.Context, f *domain.ProjectFile) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	Search(ctx context.Context, f domain.OrderFilter) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
	UpdateUserNote(ctx context.Context, id, userID, note string) error
	CancelUserOrder(ctx context.Context, id, userID string) error
	CreatePayment(ctx context.Context, p *domain.Payment) error
}

// Uploader — загрузка архива на общий диск.
type Uploader interface {
	Upload(ctx context.Context, name, folderID string, r io.Reader) (*drive.UploadResult, error)
}

// ArchiveInput — zip-часть multipart-формы.
type ArchiveInput struct {
	Name      string
	SizeBytes int64
	Content   io.Reader
}

type OrderService struct {
	repo      OrderProvider
	uploader  Uploader
	folderID  string
	catalogue domain.Catalogue
	logger    *zap.Logger
}

func NewOrderService(repo OrderProvider, uploader Uploader, folderID string, logger *zap.Logger) *OrderService {
	return &OrderService{
		repo:      repo,
		uploader:  uploader,
		folderID:  folderID,
		catalogue: domain.DefaultCatalogue(),
		logger:    logger.Named("order-service"),
	}
}

// Catalogue — прайс для формы заказа (GET /user/book).
func (s *OrderService) Catalogue() domain.Catalogue {
	return s.catalogue
}

// Submit создает проект-заказ. Если приложен архив, он СНАЧАЛА уезжает на
// диск и только потом создается заказ: неудачная загрузка валит весь запрос,
// полузаписанных заказов с битой ссылкой не бывает.
func (s *OrderService) Submit(ctx context.Context, userID string, req domain.SubmitProjectRequest, archive *ArchiveInput) (*domain.Order, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("at least one item is required")
	}

	orderID := uuid.New().String()
	items := make([]domain.OrderItem, 0, len(req.Items))
	var total int64
	for _, spec := range req.Items {
		item, err := s.priceItem(orderID, spec)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
		total += item.UnitPrice * int64(item.Copies)
	}

	var file *domain.ProjectFile
	if archive != nil {
		res, err := s.uploader.Upload(ctx, archive.Name, s.folderID, archive.Content)
		if err != nil {
			return nil, err
		}
		file = &domain.ProjectFile{
			ID:          uuid.New().String(),
			OrderID:     orderID,
			Name:        archive.Name,
			DriveFileID: res.ID,
			ViewLink:    res.ViewLink,
			SizeBytes:   archive.SizeBytes,
		}
	}

	order := &domain.Order{
		ID:         orderID,
		UserID:     userID,
		Title:      strings.TrimSpace(req.Title),
		Status:     domain.StatusSubmitted,
		TotalPrice: total,
		Items:      items,
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		order.Note = &note
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	if file != nil {
		if err := s.repo.AttachFile(ctx, file); err != nil {
			// Файл на диске уже есть, а метаданных нет — оставляем след в логе
			s.logger.Error("uploaded archive left unattached",
				zap.String("order_id", orderID),
				zap.String("drive_file_id", file.DriveFileID),
				zap.Error(err),
			)
			return nil, err
		}
		order.Files = []domain.ProjectFile{*file}
	}

	s.logger.Info("project submitted",
		zap.String("order_id", orderID),
		zap.String("user_id", userID),
		zap.Int64("total_price", total),
	)
	return order, nil
}

// priceItem считает цену позиции по прайсу: страницы * цена_страницы + переплет.
func (s *OrderService) priceItem(orderID string, spec domain.SubmitItemSpec) (*domain.OrderItem, error) {
	if spec.Copies <= 0 || spec.PageCount <= 0 {
		return nil, fmt.Errorf("item %q: copies and page_count must be positive", spec.Name)
	}
	perPage, ok := s.catalogue.PricePerPage(spec.Paper, spec.Color)
	if !ok {
		return nil, fmt.Errorf("item %q: unknown paper/color combination %s/%s", spec.Name, spec.Paper, spec.Color)
	}
	bindingPrice, ok := s.catalogue.BindingPrice(spec.Binding)
	if !ok {
		return nil, fmt.Errorf("item %q: unknown binding %s", spec.Name, spec.Binding)
	}

	return &domain.OrderItem{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Name:      spec.Name,
		Paper:     spec.Paper,
		Color:     spec.Color,
		Binding:   spec.Binding,
		Copies:    spec.Copies,
		PageCount: spec.PageCount,
		UnitPrice: perPage*int64(spec.PageCount) + bindingPrice,
	}, nil
}

// ListMine — заказы владельца токена.
func (s *OrderService) ListMine(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// PatchMine применяет пользовательский патч: заметка и/или отмена.
// Чужой заказ выглядит как отсутствующий — без утечки существования.
func (s *OrderService) PatchMine(ctx context.Context, userID, orderID string, patch domain.UserOrderPatch) (*domain.Order, error) {
	if patch.Note != nil {
		if err := s.repo.UpdateUserNote(ctx, orderID, userID, *patch.Note); err != nil {
			return nil, err
		}
	}
	if patch.Cancel {
		if err := s.repo.CancelUserOrder(ctx, orderID, userID); err != nil {
			return nil, err
		}
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

// Get — деталка заказа для staff.
func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

// Search — staff-поиск по статусу/email/подстроке названия.
func (s *OrderService) Search(ctx context.Context, f domain.OrderFilter) ([]*domain.Order, error) {
	if f.Status != "" {
		switch f.Status {
		case domain.StatusSubmitted, domain.StatusInProgress, domain.StatusReady,
			domain.StatusCompleted, domain.StatusCancelled:
		default:
			return nil, fmt.Errorf("unknown status %q", f.Status)
		}
	}
	return s.repo.Search(ctx, f)
}

// SetStatus переводит заказ по графу статусов; недопустимый переход — ошибка.
func (s *OrderService) SetStatus(ctx context.Context, id string, to domain.OrderStatus) (*domain.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(order.Status, to) {
		return nil, fmt.Errorf("%w: %s → %s", domain.ErrInvalidTransition, order.Status, to)
	}

	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	order.Status = to
	return order, nil
}

// RecordPayment фиксирует оплату по заказу.
func (s *OrderService) RecordPayment(ctx context.Context, orderID, method string, amount int64) (*domain.Payment, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if _, err := s.Get(ctx, orderID); err != nil {
		return nil, err
	}

	p := &domain.Payment{
		ID:      uuid.New().String(),
		OrderID: orderID,
		Method:  method,
		Amount:  amount,
		Status:  "PAID",
	}
	now := nowUTC()
	p.PaidAt = &now

	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
