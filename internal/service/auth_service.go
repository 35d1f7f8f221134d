package service

import (
	"context"
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/xela07ax/printhub-backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// UserProvider — что AuthService нужно от хранилища пользователей.
type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) error
}

type AuthService struct {
	repo        UserProvider
	privateKey  *rsa.PrivateKey
	tokenTTL    time.Duration
	rememberTTL time.Duration
	bcryptCost  int
}

func NewAuthService(repo UserProvider, privateKey *rsa.PrivateKey, tokenTTL, rememberTTL time.Duration, bcryptCost int) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	if rememberTTL <= 0 {
		rememberTTL = 7 * 24 * time.Hour
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		repo:        repo,
		privateKey:  privateKey,
		tokenTTL:    tokenTTL,
		rememberTTL: rememberTTL,
		bcryptCost:  bcryptCost,
	}
}

// Register создает пользователя с ролью User и сразу выдает токен.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.TokenResponse, error) {
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
		Role:         domain.RoleUser,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issueToken(user, s.tokenTTL)
}

// Login проверяет пароль и выдает токен: 1 час, либо 7 дней с remember.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.TokenResponse, error) {
	// Аутентификация (источник правды — Postgres)
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || user == nil {
		return nil, domain.ErrInvalidCredentials
	}

	// не уточняем, что именно неверно (логин или пароль) для защиты от перебора
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	ttl := s.tokenTTL
	if req.Remember {
		ttl = s.rememberTTL
	}
	return s.issueToken(user, ttl)
}

// issueToken — ЕДИНСТВЕННАЯ точка формирования Claims: register и login
// проходят через нее, поэтому форма Identity Claim всегда одна и та же.
func (s *AuthService) issueToken(user *domain.User, ttl time.Duration) (*domain.TokenResponse, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := &domain.Claims{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "printhub-api",
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	// Подпись токена закрытым ключом (RS256)
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &domain.TokenResponse{
		AccessToken: signedToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
	}, nil
}

// Profile возвращает профиль владельца токена.
func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

// UpdateProfile меняет отображаемое имя и телефон.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.User, error) {
	if strings.TrimSpace(upd.DisplayName) == "" {
		return nil, fmt.Errorf("display_name is required")
	}
	upd.DisplayName = strings.TrimSpace(upd.DisplayName)
	upd.Phone = strings.TrimSpace(upd.Phone)

	if err := s.repo.UpdateProfile(ctx, userID, upd); err != nil {
		return nil, err
	}
	return s.Profile(ctx, userID)
}
