// Package forexsignals предоставляет маршруты для основного приложения.
package forexsignals

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/forex-signals/internal/config"
	"github.com/magabrotheeeer/forex-signals/internal/http/handlers/auth/forgot"
	"github.com/magabrotheeeer/forex-signals/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/forex-signals/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/forex-signals/internal/http/handlers/auth/reset"
	"github.com/magabrotheeeer/forex-signals/internal/http/handlers/auth/walletchallenge"
	"github.com/magabrotheeeer/forex-signals/internal/http/handlers/auth/walletverify"
	debugusers "github.com/magabrotheeeer/forex-signals/internal/http/handlers/debug/users"
	"github.com/magabrotheeeer/forex-signals/internal/http/handlers/health"
	profileupdate "github.com/magabrotheeeer/forex-signals/internal/http/handlers/profile/update"
	signalslist "github.com/magabrotheeeer/forex-signals/internal/http/handlers/signals/list"
	"github.com/magabrotheeeer/forex-signals/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/forex-signals/internal/http/handlers/subscription/checkout"
	"github.com/magabrotheeeer/forex-signals/internal/http/handlers/subscription/verify"
	"github.com/magabrotheeeer/forex-signals/internal/http/handlers/subscription/webhook"
	"github.com/magabrotheeeer/forex-signals/internal/http/middlewarectx"
	"github.com/magabrotheeeer/forex-signals/internal/paymentprovider"
	authservice "github.com/magabrotheeeer/forex-signals/internal/services/auth"
	reconcilerservice "github.com/magabrotheeeer/forex-signals/internal/services/reconciler"
	signalsservice "github.com/magabrotheeeer/forex-signals/internal/services/signals"
	"github.com/magabrotheeeer/forex-signals/internal/session"
	"github.com/magabrotheeeer/forex-signals/internal/storage/repository"
)

// Services — зависимости маршрутов приложения.
type Services struct {
	Auth       *authservice.Service
	Reconciler *reconcilerservice.Service
	Signals    *signalsservice.Service
	Sessions   *session.Store
	Provider   *paymentprovider.Client
	Storage    *repository.Storage
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svc *Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Конечные точки с учётными данными под ограничением частоты
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, rate.Limit(1), 5))
			r.Post("/auth/login", login.New(logger, svc.Auth, svc.Sessions).ServeHTTP)
			r.Post("/auth/forgot-password", forgot.New(logger, svc.Auth).ServeHTTP)
			r.Post("/auth/reset-password", reset.New(logger, svc.Auth).ServeHTTP)
			r.Post("/auth/wallet/challenge", walletchallenge.New(logger, svc.Auth).ServeHTTP)
			r.Post("/auth/wallet/verify", walletverify.New(logger, svc.Auth, svc.Sessions).ServeHTTP)
		})

		// Открытые конечные точки оплаты
		r.Post("/checkout/create-session", checkout.New(logger, svc.Provider, cfg.PriceID, cfg.AppURL).ServeHTTP)
		r.Post("/verify-subscription", verify.New(logger, svc.Reconciler, svc.Sessions).ServeHTTP)

		// Вебхук провайдера: аутентификация — подпись тела
		r.Post("/webhooks/payment", webhook.New(logger, svc.Reconciler, cfg.WebhookSecret, cfg.WebhookReplayWindow).ServeHTTP)

		// Группа с аутентификацией сессии
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.AuthMiddleware(logger, svc.Sessions))
			r.Post("/auth/logout", logout.New(logger, svc.Sessions).ServeHTTP)
			r.Post("/profile", profileupdate.New(logger, svc.Auth).ServeHTTP)
			r.Post("/cancel-subscription", cancel.New(logger, svc.Reconciler).ServeHTTP)

			// Закрытый контент: дополнительно требуется действующая подписка
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.EntitlementMiddleware(logger, svc.Storage, svc.Sessions))
				r.Get("/signals", signalslist.New(logger, svc.Signals).ServeHTTP)
			})
		})

		if cfg.IsDevelopment() {
			r.Get("/debug/users", debugusers.New(logger, svc.Storage, cfg.IsDevelopment()).ServeHTTP)
		}
	})

	r.Get("/health", health.New(logger, svc.Storage).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
