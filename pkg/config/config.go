package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Missing-stock policies for the price consumer (see ConsumerConfig).
const (
	// MissingStockRetry leaves the offset uncommitted so the event is
	// redelivered, matching the historical pipeline behavior. A stock that
	// is never created stalls its partition.
	MissingStockRetry = "retry"
	// MissingStockDrop commits the offset and drops the event.
	MissingStockDrop = "drop"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	DB       DBConfig       `mapstructure:"db"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	PricesTopic string   `mapstructure:"prices_topic"`
	OrdersTopic string   `mapstructure:"orders_topic"`
	GroupID     string   `mapstructure:"group_id"`
	// SASL/PLAIN over TLS credentials; both empty means plaintext (local).
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

type ConsumerConfig struct {
	PollTimeout        time.Duration `mapstructure:"poll_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MissingStockPolicy string        `mapstructure:"missing_stock_policy"`
}

// RedisConfig configures the optional live-price mirror. An empty Addr
// disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DSN renders the postgres connection string for the relational store.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Load .env file into System Environment (if it exists)
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	// 2. Set Defaults (12-Factor App: Dev/Prod Parity)
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "stock_market")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.prices_topic", "stock_prices")
	v.SetDefault("kafka.orders_topic", "orders")
	v.SetDefault("kafka.group_id", "order_processor_group_stock_price")
	v.SetDefault("kafka.api_key", "")
	v.SetDefault("kafka.api_secret", "")

	v.SetDefault("consumer.poll_timeout", time.Second)
	v.SetDefault("consumer.shutdown_timeout", 5*time.Second)
	v.SetDefault("consumer.missing_stock_policy", MissingStockRetry)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// 3. Configure Viper to read Environment Variables
	// Maps dot-notation to underscores (e.g., "kafka.group_id" -> "KAFKA_GROUP_ID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Explicitly Bind Env Vars to Keys
	// Crucial for Viper to map flat Env Vars to nested structs
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "db.host", "db.port", "db.user", "db.password", "db.name", "db.sslmode")
	bindEnv(v, "kafka.brokers", "kafka.prices_topic", "kafka.orders_topic", "kafka.group_id", "kafka.api_key", "kafka.api_secret")
	bindEnv(v, "consumer.poll_timeout", "consumer.shutdown_timeout", "consumer.missing_stock_policy")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")

	// 5. Unmarshal into Struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	// 6. Basic Validation
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if cfg.Kafka.PricesTopic == "" || cfg.Kafka.OrdersTopic == "" {
		return nil, fmt.Errorf("kafka topics cannot be empty")
	}
	switch cfg.Consumer.MissingStockPolicy {
	case MissingStockRetry, MissingStockDrop:
	default:
		return nil, fmt.Errorf("unknown missing_stock_policy %q", cfg.Consumer.MissingStockPolicy)
	}

	return &cfg, nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
