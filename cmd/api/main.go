package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	handler "github.com/talkspace/payment-gateway/internal/adapter/primary/http"
	"github.com/talkspace/payment-gateway/internal/adapter/secondary/database"
	"github.com/talkspace/payment-gateway/internal/adapter/secondary/messaging"
	"github.com/talkspace/payment-gateway/internal/adapter/secondary/provider"
	"github.com/talkspace/payment-gateway/internal/config"
	"github.com/talkspace/payment-gateway/internal/constant/model/db"
	"github.com/talkspace/payment-gateway/internal/core/service"
	"github.com/talkspace/payment-gateway/internal/core/webhook"
	"github.com/talkspace/payment-gateway/internal/port/output"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize secondary adapter: Database
	dbConn, err := db.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbConn.Close()

	// Initialize secondary adapters implementing the output ports
	paymentRepo := database.NewGormPaymentRepository(dbConn.DB)
	idempotencyStore := database.NewGormIdempotencyStore(dbConn.DB)
	stripeClient := provider.NewStripeClient(cfg.StripeSecretKey)
	notifier, err := messaging.NewRabbitMQClient(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer notifier.Close()

	// Initialize core services (implement the input ports)
	verifier := webhook.NewVerifier([]byte(cfg.StripeWebhookSecret), cfg.SignatureTolerance)
	reconciler := service.NewReconciler(paymentRepo, notifier, logger)
	checkoutService := service.NewCheckoutService(stripeClient, paymentRepo, logger)
	webhookService := service.NewWebhookService(verifier, idempotencyStore, reconciler, logger)

	// Initialize primary adapter: HTTP handler (uses the input ports)
	paymentHandler := handler.NewPaymentHandler(checkoutService, webhookService, logger)

	// Retention pruning: entries outlive the provider's maximum redelivery
	// window before removal.
	go pruneLoop(idempotencyStore, cfg.IdempotencyRetention, logger)

	// Initialize Echo
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Routes
	api := e.Group("/api/v1")
	api.POST("/checkout", paymentHandler.Checkout)
	api.POST("/webhook", paymentHandler.Webhook)
	api.GET("/payments/:id", paymentHandler.GetPayment)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("starting API server", zap.String("addr", addr))
	if err := e.Start(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func pruneLoop(store output.IdempotencyStore, retention time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		pruned, err := store.Prune(context.Background(), time.Now().Add(-retention))
		if err != nil {
			logger.Error("failed to prune idempotency records", zap.Error(err))
			continue
		}
		if pruned > 0 {
			logger.Info("pruned idempotency records", zap.Int64("count", pruned))
		}
	}
}
