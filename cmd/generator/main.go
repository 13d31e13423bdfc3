package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kos-conf/stock-market-application/cmd/generator/internal/generator"
	"github.com/kos-conf/stock-market-application/pkg/config"
)

// Local seed universe; stock ids must match rows created through the API.
var seeds = []generator.Seed{
	{StockID: 1, BasePrice: 150.0},
	{StockID: 2, BasePrice: 2800.0},
	{StockID: 3, BasePrice: 700.0},
	{StockID: 4, BasePrice: 3400.0},
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	clock := generator.RealClock{}
	creator := generator.NewTopicCreator(logger, &generator.RealKafkaDialer{Dialer: kafka.DefaultDialer}, clock)
	creator.Create(cfg.Kafka.Brokers, cfg.Kafka.PricesTopic, 4)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.PricesTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	rnd := generator.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
	feed := generator.NewPriceFeed(logger, writer, seeds, rnd, clock, 100*time.Millisecond)

	go feed.Run(ctx)

	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()

	// Flushes the async write buffer.
	if err := writer.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
}
