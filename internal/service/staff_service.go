package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/printhub-backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

// StaffProvider — что StaffService нужно от хранилища пользователей.
type StaffProvider interface {
	ListStaff(ctx context.Context) ([]*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	Delete(ctx context.Context, id string) error
}

// StaffService — управление staff-учетками. Все операции доступны только
// Owner; гейт стоит на роутере, сервис этому доверяет.
type StaffService struct {
	repo       StaffProvider
	bcryptCost int
}

func NewStaffService(repo StaffProvider, bcryptCost int) *StaffService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &StaffService{repo: repo, bcryptCost: bcryptCost}
}

func (s *StaffService) List(ctx context.Context) ([]*domain.User, error) {
	return s.repo.ListStaff(ctx)
}

// CreateAdministrator заводит новую staff-учетку с ролью Administrator.
// Второго Owner через API создать нельзя — только сменой роли существующей учетки.
func (s *StaffService) CreateAdministrator(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email")
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("password must be at least 6 characters")
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		return nil, fmt.Errorf("display_name is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: string(hash),
		Role:         domain.RoleAdministrator,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangeRole меняет роль учетки на любую из закрытого набора.
func (s *StaffService) ChangeRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

// Remove удаляет staff-учетку. Самоудаление запрещено: иначе можно
// остаться без единого Owner.
func (s *StaffService) Remove(ctx context.Context, callerID, id string) error {
	if callerID == id {
		return fmt.Errorf("cannot remove own account")
	}
	return s.repo.Delete(ctx, id)
}
