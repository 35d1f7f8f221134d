package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/printhub-backend/internal/domain"
	"github.com/xela07ax/printhub-backend/internal/handler"
	"github.com/xela07ax/printhub-backend/internal/infra"
	"github.com/xela07ax/printhub-backend/internal/infra/auth"
	"go.uber.org/zap"
)

type Server struct {
	router *chi.Mux
	logger *zap.Logger

	// Проверка RS256-токенов для guard-цепочки
	validator auth.TokenValidator
	metrics   *infra.Metrics

	// Обработчики бизнес-доменов
	authHandler    *handler.AuthHandler    // /register, /login
	oauthHandler   *handler.OAuthHandler   // /auth/google/*
	profileHandler *handler.ProfileHandler // /user/profile
	orderHandler   *handler.OrderHandler   // /user/book, /user/orders, /staff/orders
	staffHandler   *handler.StaffHandler   // /staff/members
}

// NewServer инициализирует роутер API со всеми зависимостями
func NewServer(
	logger *zap.Logger,
	validator auth.TokenValidator,
	metrics *infra.Metrics,
	authH *handler.AuthHandler,
	oauthH *handler.OAuthHandler,
	profileH *handler.ProfileHandler,
	orderH *handler.OrderHandler,
	staffH *handler.StaffHandler,
) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger.Named("api"),
		validator:      validator,
		metrics:        metrics,
		authHandler:    authH,
		oauthHandler:   oauthH,
		profileHandler: profileH,
		orderHandler:   orderH,
		staffHandler:   staffH,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TracingMiddleware)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(MetricsMiddleware(s.metrics))
	}

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (открыты для всех) ---
	r.Group(func(r chi.Router) {
		r.Post("/register", s.authHandler.Register)
		r.Post("/login", s.authHandler.Login)

		// Разовая привязка общего аккаунта диска (consent-флоу оператора)
		r.Get("/auth/google/login", s.oauthHandler.Login)
		r.Get("/auth/google/oauth2callback", s.oauthHandler.Callback)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (требуется валидный токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(s.validator, s.logger, s.metrics))

		// Личный кабинет — доступен любой аутентифицированной роли
		r.Route("/user", func(r chi.Router) {
			r.Get("/profile", s.profileHandler.Get)
			r.Put("/profile", s.profileHandler.Update)
			r.Get("/book", s.orderHandler.Catalogue) // прайс для формы заказа
			r.Post("/book", s.orderHandler.Submit)   // создание проекта (multipart)
			r.Get("/orders", s.orderHandler.ListMine)
			r.Patch("/orders/{id}", s.orderHandler.PatchMine)
		})

		// Staff-операции: роли перечислены явно, иерархии нет
		r.Route("/staff", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(s.logger, s.metrics, domain.RoleAdministrator, domain.RoleOwner))
				r.Get("/orders", s.orderHandler.Search)
				r.Get("/orders/{id}", s.orderHandler.Get)
				r.Patch("/orders/{id}/status", s.orderHandler.SetStatus)
				r.Post("/orders/{id}/payment", s.orderHandler.RecordPayment)
			})

			// Управление staff-учетками — ТОЛЬКО Owner
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(s.logger, s.metrics, domain.RoleOwner))
				r.Get("/members", s.staffHandler.List)
				r.Post("/members", s.staffHandler.Create)
				r.Patch("/members/{id}/role", s.staffHandler.ChangeRole)
				r.Delete("/members/{id}", s.staffHandler.Delete)
			})
		})
	})
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
