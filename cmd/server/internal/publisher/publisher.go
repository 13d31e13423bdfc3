// Package publisher hands order-placement events to the orders topic.
// Delivery is fire-and-forget: the order row is already durable in the store
// before Publish is called, so broker failures are logged, never surfaced to
// the caller.
package publisher

import (
	"context"
	"crypto/tls"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"

	"github.com/kos-conf/stock-market-application/pkg/config"
	"github.com/kos-conf/stock-market-application/pkg/envelope"
	"github.com/kos-conf/stock-market-application/pkg/models"
)

// KafkaWriter abstracts the producer client. The concrete *kafka.Writer is
// safe for concurrent use by multiple request handlers.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderPublisher serializes orders and enqueues them for async delivery.
type OrderPublisher struct {
	writer KafkaWriter
	logger *zap.Logger
}

func New(writer KafkaWriter, logger *zap.Logger) *OrderPublisher {
	return &OrderPublisher{writer: writer, logger: logger}
}

// NewOrderWriter builds the async writer for the orders topic. The Completion
// callback is the delivery report: it runs on a writer-owned goroutine and
// only feeds observability.
func NewOrderWriter(cfg config.KafkaConfig, logger *zap.Logger) *kafka.Writer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.OrdersTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Order delivery failed", zap.Error(err), zap.Int("messages", len(messages)))
				return
			}
			for _, m := range messages {
				logger.Debug("Order delivered",
					zap.String("topic", m.Topic),
					zap.Int("partition", m.Partition),
					zap.Int64("offset", m.Offset))
			}
		},
	}
	if cfg.APIKey != "" {
		w.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.APIKey, Password: cfg.APISecret},
			TLS:  &tls.Config{},
		}
	}
	return w
}

// Publish snapshots the order into an event and hands it to the writer.
// With an async writer WriteMessages only enqueues, so this returns quickly;
// enqueue errors are logged and swallowed by contract.
func (p *OrderPublisher) Publish(ctx context.Context, event models.OrderEvent) {
	payload, err := envelope.EncodeOrder(event)
	if err != nil {
		p.logger.Error("Failed to encode order event", zap.Error(err), zap.Uint("order_id", event.OrderID))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.StockID), 10)),
		Value: payload,
	})
	if err != nil {
		p.logger.Error("Failed to enqueue order event",
			zap.Error(err), zap.Uint("order_id", event.OrderID))
		return
	}

	p.logger.Info("Order event published", zap.Uint("order_id", event.OrderID))
}
