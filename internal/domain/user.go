package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role — закрытый набор ролей. Проверки ролей — это независимые предикаты
// по точному совпадению, БЕЗ иерархии: Owner не проходит Administrator-гейт
// автоматически, маршрут перечисляет все допустимые роли явно.
type Role string

const (
	RoleUser          Role = "User"
	RoleAdministrator Role = "Administrator"
	RoleOwner         Role = "Owner"
)

// Valid сообщает, входит ли значение в закрытый набор ролей.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdministrator, RoleOwner:
		return true
	}
	return false
}

// Claims — единая форма Identity Claim для ВСЕХ точек выпуска токена.
// Восстанавливается из подписанного токена на каждом запросе, нигде не хранится.
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	jwt.RegisteredClaims
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"` // Никогда не отправляем на фронт
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Secure Token Issuing
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"` // true → токен живет 7 дней вместо 1 часа
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}

type ProfileUpdate struct {
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
}
