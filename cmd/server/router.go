package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aiagenz/billing/internal/config"
	"github.com/aiagenz/billing/internal/handler"
	appMiddleware "github.com/aiagenz/billing/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type routerDeps struct {
	cfg      *config.Config
	log      *slog.Logger
	tokens   appMiddleware.TokenVerifier
	subs     *handler.SubscriptionHandler
	payments *handler.PaymentHandler
	admin    *handler.AdminHandler
	health   *handler.HealthHandler
}

func newRouter(ctx context.Context, d routerDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.RequestID)
	r.Use(appMiddleware.Recovery(d.log))
	r.Use(appMiddleware.Logger(d.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appMiddleware.RequestIDHeader},
		ExposedHeaders:   []string{appMiddleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public, unthrottled: the gateway posts from a few shared addresses.
	r.Get("/health", d.health.Check)
	r.Post("/api/payment/webhook", d.payments.Webhook)

	rl := appMiddleware.NewRateLimiter(ctx, d.cfg.RateLimitRPS, d.cfg.RateLimitBurst)

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(rl.Middleware())
		r.Use(appMiddleware.Auth(d.tokens))

		r.Post("/api/subscriptions", d.subs.Create)
		r.Get("/api/subscriptions", d.subs.List)
		r.Get("/api/subscriptions/current", d.subs.Current)
		r.Get("/api/subscriptions/{id}", d.subs.Get)
		r.Get("/api/subscriptions/{id}/qr", d.subs.QR)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AdminOnly)
			r.Get("/api/admin/subscriptions/stats", d.admin.GetStats)
			r.Post("/api/admin/subscriptions/expire", d.admin.Expire)
		})
	})

	return r
}
