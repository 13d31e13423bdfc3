package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"

	"github.com/kos-conf/stock-market-application/cmd/server/internal/api"
	"github.com/kos-conf/stock-market-application/cmd/server/internal/cache"
	"github.com/kos-conf/stock-market-application/cmd/server/internal/consumer"
	"github.com/kos-conf/stock-market-application/cmd/server/internal/publisher"
	"github.com/kos-conf/stock-market-application/cmd/server/internal/store"
	"github.com/kos-conf/stock-market-application/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	st, err := store.Open(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}

	// Optional live-price mirror for dashboard consumers.
	var mirror consumer.PriceMirror
	var live *cache.LivePrices
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		live = cache.New(rdb)
		mirror = live
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.PricesTopic,
		GroupID:     cfg.Kafka.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
		Dialer:      newDialer(cfg.Kafka),
		// CommitInterval stays zero: the loop commits synchronously via
		// CommitMessages only after the store transaction is durable.
	})

	cons := consumer.New(cfg.Consumer, logger, reader, st, mirror)
	runner := consumer.NewRunner(cons, logger, cfg.Consumer.ShutdownTimeout)
	runner.Start()

	orderWriter := publisher.NewOrderWriter(cfg.Kafka, logger)
	pub := publisher.New(orderWriter, logger)

	handler := api.NewHandler(st, pub, runner, logger)
	srv := &http.Server{Addr: cfg.App.Port, Handler: handler.Router()}

	go func() {
		logger.Info("Server started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	if err := runner.Stop(); err != nil {
		logger.Error("Consumer shutdown incomplete", zap.Error(err))
	}

	// Flushes buffered order events.
	if err := orderWriter.Close(); err != nil {
		logger.Error("Error closing order writer", zap.Error(err))
	}

	if live != nil {
		live.Close()
	}
	if err := st.Close(); err != nil {
		logger.Error("Error closing store", zap.Error(err))
	}
	logger.Info("Server exited cleanly")
}

// newDialer returns a SASL/TLS dialer when broker credentials are configured,
// otherwise the default plaintext dialer.
func newDialer(cfg config.KafkaConfig) *kafka.Dialer {
	if cfg.APIKey == "" {
		return kafka.DefaultDialer
	}
	return &kafka.Dialer{
		Timeout:       10 * time.Second,
		DualStack:     true,
		SASLMechanism: plain.Mechanism{Username: cfg.APIKey, Password: cfg.APISecret},
		TLS:           &tls.Config{},
	}
}
