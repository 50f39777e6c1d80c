package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aiagenz/billing/internal/config"
	"github.com/aiagenz/billing/internal/contextkeys"
	"github.com/aiagenz/billing/internal/handler"
	"github.com/aiagenz/billing/internal/lock"
	"github.com/aiagenz/billing/internal/repository"
	"github.com/aiagenz/billing/internal/service"
	"github.com/aiagenz/billing/pkg/logger"
	"github.com/aiagenz/billing/pkg/payment"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, "billing"),
		logger.WithContextValue("request_id", contextkeys.RequestID),
	)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	defer db.Close()

	if err := repository.RunMigrations(ctx, db, log); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	log.Info("database connected and migrated")

	// Webhook lock: Redis when configured so replicas serialize with each other.
	var locker lock.Locker = lock.NewLocal()
	var redisPing handler.Pinger
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis error: %w", err)
		}
		locker = lock.NewRedis(rdb, "billing:webhook:", 30*time.Second, log)
		redisPing = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		log.Info("redis connected")
	} else {
		log.Warn("REDIS_URL not set, webhook lock is process-local")
	}

	codes, err := payment.NewOrderCodeGenerator(cfg.OrderNodeID)
	if err != nil {
		return fmt.Errorf("order code generator: %w", err)
	}

	gateway, err := newGateway(cfg, codes)
	if err != nil {
		return fmt.Errorf("gateway error: %w", err)
	}
	log.Info("payment gateway ready", slog.String("provider", gateway.Name()), slog.String("mode", cfg.GatewayMode))

	subRepo := repository.NewSubscriptionRepository(db)
	pkgRepo := repository.NewPackageRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)

	subSvc := service.NewSubscriptionService(subRepo, pkgRepo, gateway, locker, log,
		service.WithTimeLocation(cfg.TimeLocation()),
	)
	tokens := service.NewTokenService(cfg.JWTSecret)

	sweeper := service.NewSweeper(subRepo, cfg.SweepInterval, log)
	sweeper.Start(ctx)

	router := newRouter(ctx, routerDeps{
		cfg:      cfg,
		log:      log,
		tokens:   tokens,
		subs:     handler.NewSubscriptionHandler(subSvc),
		payments: handler.NewPaymentHandler(subSvc, gateway, eventRepo, log),
		admin:    handler.NewAdminHandler(sweeper, subRepo),
		health:   handler.NewHealthHandler(db, redisPing),
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("billing service listening", slog.String("addr", addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newGateway(cfg *config.Config, codes *payment.OrderCodeGenerator) (payment.Gateway, error) {
	if cfg.GatewayMode == config.GatewayModeMock {
		return payment.NewMockGateway(cfg.GatewayChecksumKey, cfg.GatewayBaseURL, codes), nil
	}
	return payment.NewClient(payment.Config{
		ClientID:    cfg.GatewayClientID,
		APIKey:      cfg.GatewayAPIKey,
		ChecksumKey: cfg.GatewayChecksumKey,
		BaseURL:     cfg.GatewayBaseURL,
		Timeout:     cfg.GatewayTimeout,
	}, codes, nil)
}
