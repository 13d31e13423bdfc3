package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kos-conf/stock-market-application/pkg/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "stock_prices", cfg.Kafka.PricesTopic)
	assert.Equal(t, "orders", cfg.Kafka.OrdersTopic)
	assert.Equal(t, time.Second, cfg.Consumer.PollTimeout)
	assert.Equal(t, 5*time.Second, cfg.Consumer.ShutdownTimeout)
	assert.Equal(t, config.MissingStockRetry, cfg.Consumer.MissingStockPolicy)
	assert.Empty(t, cfg.Redis.Addr, "live-price mirror is off by default")
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_PRICES_TOPIC", "stock_prices1")
	t.Setenv("KAFKA_GROUP_ID", "order_processor_group_stock_price1")
	t.Setenv("CONSUMER_MISSING_STOCK_POLICY", "drop")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "stock_prices1", cfg.Kafka.PricesTopic)
	assert.Equal(t, "order_processor_group_stock_price1", cfg.Kafka.GroupID)
	assert.Equal(t, config.MissingStockDrop, cfg.Consumer.MissingStockPolicy)
}

func TestLoadConfig_RejectsUnknownPolicy(t *testing.T) {
	t.Setenv("CONSUMER_MISSING_STOCK_POLICY", "dead-letter")

	_, err := config.LoadConfig()
	require.Error(t, err)
}

func TestDBConfig_DSN(t *testing.T) {
	dsn := config.DBConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "app",
		Password: "secret",
		Name:     "stock_market",
		SSLMode:  "require",
	}.DSN()

	assert.Equal(t, "host=db.internal port=5433 user=app password=secret dbname=stock_market sslmode=require", dsn)
}
