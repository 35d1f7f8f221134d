package domain

import "errors"

// Сигнальные ошибки ядра. Хендлеры мапят их на HTTP-коды и JSON-конверт,
// всё остальное — 500 с текстом исходной ошибки (внутренний инструмент).
var (
	// ErrConfigMissing — конфигурация OAuth-клиента отсутствует или неполна.
	ErrConfigMissing = errors.New("oauth client configuration missing")

	// ErrPersist — не удалось записать Credential Set на диск.
	ErrPersist = errors.New("credential persist failed")

	// ErrTokenExchange — провайдер отклонил authorization code
	// (просрочен, повторно использован или невалиден).
	ErrTokenExchange = errors.New("authorization code exchange failed")

	// ErrDriveNotConnected — нет сохраненного credential, загрузка невозможна.
	ErrDriveNotConnected = errors.New("drive account is not connected")

	// ErrMissingToken — в запросе нет заголовка Authorization.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken — подпись, формат или срок действия токена не прошли проверку.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrForbidden — роль вызывающего не входит в allowlist маршрута.
	ErrForbidden = errors.New("forbidden")

	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidTransition  = errors.New("order status transition not allowed")
)
