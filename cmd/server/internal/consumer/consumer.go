package consumer

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kos-conf/stock-market-application/pkg/config"
	"github.com/kos-conf/stock-market-application/pkg/envelope"
	"github.com/kos-conf/stock-market-application/pkg/models"
)

// Consumer is the price-update consumer loop. It owns its reader exclusively:
// no other goroutine may fetch or commit on it. Offsets are committed only
// after the applier's transaction has committed, giving at-least-once
// delivery; a crash between the two causes redelivery, which the store
// tolerates.
type Consumer struct {
	cfg    config.ConsumerConfig
	logger *zap.Logger
	reader KafkaReader
	store  PriceApplier
	mirror PriceMirror // nil when the live-price cache is disabled
	state  atomic.Int32
}

func New(cfg config.ConsumerConfig, logger *zap.Logger, reader KafkaReader, store PriceApplier, mirror PriceMirror) *Consumer {
	c := &Consumer{
		cfg:    cfg,
		logger: logger,
		reader: reader,
		store:  store,
		mirror: mirror,
	}
	c.state.Store(int32(StateIdle))
	return c
}

// State reports the loop's current lifecycle state.
func (c *Consumer) State() State { return State(c.state.Load()) }

func (c *Consumer) setState(s State) { c.state.Store(int32(s)) }

// Run executes the loop until ctx is cancelled or the reader fails fatally.
// It closes the reader before returning.
func (c *Consumer) Run(ctx context.Context) error {
	c.setState(StateRunning)
	c.logger.Info("Price consumer started",
		zap.Duration("poll_timeout", c.cfg.PollTimeout),
		zap.String("missing_stock_policy", c.cfg.MissingStockPolicy))

	pollTimeout := c.cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}

loop:
	for {
		// Stop condition is checked only at iteration boundaries; a poll or
		// apply already in flight completes before the loop drains.
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		pollCtx, cancel := context.WithTimeout(ctx, pollTimeout)
		msg, err := c.reader.FetchMessage(pollCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				break loop
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue // empty poll
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				c.logger.Error("Kafka reader closed, stopping consumer", zap.Error(err))
				break loop
			}
			c.logger.Error("Kafka fetch error", zap.Error(err))
			continue
		}

		c.handle(ctx, msg.Value, func() {
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("Offset commit failed, update will be redelivered",
					zap.Error(err),
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset))
			}
		})
	}

	c.setState(StateDraining)
	c.logger.Info("Price consumer draining")

	err := c.reader.Close()
	c.setState(StateStopped)
	c.logger.Info("Price consumer stopped")
	return err
}

// handle processes one message. commit is invoked only on the paths that are
// allowed to advance the offset.
func (c *Consumer) handle(ctx context.Context, payload []byte, commit func()) {
	update, err := envelope.DecodePriceUpdate(payload)
	if err != nil {
		// Malformed message: skipped, offset not advanced.
		c.logger.Warn("Skipping undecodable price update", zap.Error(err))
		return
	}

	applied, err := c.store.ApplyPriceUpdate(ctx, update.StockID, update.Price, update.Timestamp)
	if err != nil {
		// Store failure: offset stays put so the update is redelivered.
		c.logger.Error("Failed to apply price update",
			zap.Error(err), zap.Uint("stock_id", update.StockID))
		return
	}

	if !applied {
		if c.cfg.MissingStockPolicy == config.MissingStockDrop {
			c.logger.Warn("Dropping price update for unknown stock",
				zap.Uint("stock_id", update.StockID))
			commit()
			return
		}
		c.logger.Debug("Unknown stock, leaving offset for redelivery",
			zap.Uint("stock_id", update.StockID))
		return
	}

	c.logger.Info("Updated price",
		zap.Uint("stock_id", update.StockID), zap.Float64("price", update.Price))
	commit()

	c.publishMirror(ctx, update)
}

func (c *Consumer) publishMirror(ctx context.Context, update models.PriceUpdate) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.Mirror(ctx, update); err != nil {
		c.logger.Warn("Live-price mirror failed",
			zap.Error(err), zap.Uint("stock_id", update.StockID))
	}
}
