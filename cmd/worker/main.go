package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/talkspace/payment-gateway/internal/adapter/secondary/messaging"
	"github.com/talkspace/payment-gateway/internal/config"
	"github.com/talkspace/payment-gateway/internal/core"
	"go.uber.org/zap"
)

// The worker consumes booking outcome messages published by the webhook
// pipeline and performs the fulfillment side of confirmation (here:
// structured notification). Handling is idempotent per booking reference, so
// redelivered messages are safe.
func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	msgClient, err := messaging.NewRabbitMQClientConcrete(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer msgClient.Close()

	err = msgClient.ConsumeOutcomes(func(msg messaging.BookingOutcomeMessage) error {
		switch msg.Status {
		case core.PaymentStatusSucceeded:
			logger.Info("booking confirmed",
				zap.String("booking_ref", msg.BookingRef))
		case core.PaymentStatusFailed:
			logger.Warn("booking payment failed",
				zap.String("booking_ref", msg.BookingRef))
		default:
			logger.Warn("unexpected booking outcome status",
				zap.String("booking_ref", msg.BookingRef),
				zap.String("status", string(msg.Status)))
		}
		return nil
	})
	if err != nil {
		logger.Fatal("failed to start consuming messages", zap.Error(err))
	}

	logger.Info("booking outcome worker started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
