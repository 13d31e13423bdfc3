// Package cache mirrors committed price updates into Redis for dashboard
// consumers: latest value under stock:<id>, fan-out on prices.<id>.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kos-conf/stock-market-application/pkg/models"
)

// snapshotTTL bounds memory growth for stocks that stop ticking.
const snapshotTTL = time.Hour

type LivePrices struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *LivePrices {
	return &LivePrices{rdb: rdb}
}

// Mirror stores the latest payload and publishes it in a single pipeline.
func (l *LivePrices) Mirror(ctx context.Context, update models.PriceUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("stock:%d", update.StockID)
	channel := fmt.Sprintf("prices.%d", update.StockID)

	pipe := l.rdb.Pipeline()
	pipe.Set(ctx, key, payload, snapshotTTL)
	pipe.Publish(ctx, channel, payload)
	_, err = pipe.Exec(ctx)
	return err
}

func (l *LivePrices) Close() error { return l.rdb.Close() }
