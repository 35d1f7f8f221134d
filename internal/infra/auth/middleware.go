package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/printhub-backend/internal/domain"
	"github.com/xela07ax/printhub-backend/internal/infra"
	"go.uber.org/zap"
)

// TokenValidator — интерфейс проверки bearer-токена.
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.Claims, error)
}

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey string

const claimsKey ctxKey = "claims"

// Машина состояний запроса: Unauthenticated → Authenticated → (Authorized | Rejected).
// Authenticate закрывает первый переход, RequireRole — второй.
// Оба гейта stateless и перевычисляются на каждом запросе.

// Authenticate проверяет Authorization: Bearer <token> и кладет Claims в контекст.
// Отсутствие заголовка и любая ошибка верификации — это 401, хендлер не запускается.
func Authenticate(v TokenValidator, logger *zap.Logger, m *infra.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				countRejection(m, "missing_token")
				writeReject(w, http.StatusUnauthorized, domain.ErrMissingToken.Error())
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				countRejection(m, "invalid_token")
				writeReject(w, http.StatusUnauthorized, domain.ErrInvalidToken.Error())
				return
			}

			// Прокидываем identity в контекст
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole пропускает запрос, только если роль из Claims входит в явный allowlist.
// Точное совпадение, без иерархии: Owner НЕ проходит гейт "Administrator",
// маршрут обязан перечислить обе роли, если обе допустимы.
func RequireRole(logger *zap.Logger, m *infra.Metrics, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				// RequireRole без Authenticate выше по цепочке — ошибка маршрутизации
				countRejection(m, "missing_token")
				writeReject(w, http.StatusUnauthorized, domain.ErrMissingToken.Error())
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("role check failed",
				zap.String("user_id", claims.UserID),
				zap.String("role", string(claims.Role)),
			)
			countRejection(m, "forbidden")
			writeReject(w, http.StatusForbidden, domain.ErrForbidden.Error())
		})
	}
}

// ClaimsFromContext достает Identity Claim в любом месте ниже по цепочке.
func ClaimsFromContext(ctx context.Context) (*domain.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*domain.Claims)
	return claims, ok
}

// WithClaims используется тестами и сервисным кодом для сборки контекста.
func WithClaims(ctx context.Context, claims *domain.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func countRejection(m *infra.Metrics, reason string) {
	if m != nil {
		m.AuthRejections.WithLabelValues(reason).Inc()
	}
}

// writeReject пишет отказ в том же конверте, что и хендлеры.
func writeReject(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}
