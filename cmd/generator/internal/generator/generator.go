// Package generator produces synthetic price-update events for local runs,
// shaped exactly like the upstream pipeline's output: framed payloads keyed
// by stock id on the prices topic.
package generator

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kos-conf/stock-market-application/pkg/envelope"
	"github.com/kos-conf/stock-market-application/pkg/models"
)

// Seed is the base price for a stock id the generator walks around.
type Seed struct {
	StockID   uint
	BasePrice float64
}

type PriceFeed struct {
	logger *zap.Logger
	writer KafkaWriter
	seeds  []Seed
	rand   Rand
	clock  Clock
	tick   time.Duration
}

func NewPriceFeed(logger *zap.Logger, writer KafkaWriter, seeds []Seed, rnd Rand, clock Clock, tick time.Duration) *PriceFeed {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return &PriceFeed{
		logger: logger,
		writer: writer,
		seeds:  seeds,
		rand:   rnd,
		clock:  clock,
		tick:   tick,
	}
}

// Run emits updates until ctx is cancelled.
func (pf *PriceFeed) Run(ctx context.Context) {
	pf.logger.Info("Price feed started", zap.Int("stocks", len(pf.seeds)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if len(pf.seeds) == 0 {
				pf.clock.Sleep(time.Second)
				continue
			}

			seed := pf.seeds[pf.rand.Intn(len(pf.seeds))]
			fluctuation := (pf.rand.Float64() * 10) - 5
			update := models.PriceUpdate{
				StockID:   seed.StockID,
				Price:     seed.BasePrice + fluctuation,
				Timestamp: pf.clock.Now().UnixMilli(),
			}

			payload, err := envelope.EncodePriceUpdate(update)
			if err != nil {
				pf.logger.Error("Encode error", zap.Error(err))
				continue
			}

			// Key by stock id so a stock's updates stay on one partition.
			err = pf.writer.WriteMessages(ctx, kafka.Message{
				Key:   []byte(strconv.FormatUint(uint64(update.StockID), 10)),
				Value: payload,
			})
			if err != nil {
				pf.logger.Error("Kafka write error", zap.Error(err))
			} else {
				pf.logger.Debug("Sent update",
					zap.Uint("stock_id", update.StockID), zap.Float64("price", update.Price))
			}

			pf.clock.Sleep(pf.tick)
		}
	}
}
