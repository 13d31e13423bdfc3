package store

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kos-conf/stock-market-application/pkg/config"
	"github.com/kos-conf/stock-market-application/pkg/envelope"
)

// ErrStockNotFound is returned by order creation when the referenced stock
// does not exist.
var ErrStockNotFound = errors.New("stock not found")

// Store wraps the relational database.
type Store struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the schema.
func Open(cfg config.DBConfig) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}
	if err := db.AutoMigrate(&Stock{}, &Order{}, &Transaction{}, &StockPriceHistory{}); err != nil {
		return nil, errors.Wrap(err, "migrate schema")
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing gorm connection (tests).
func NewWithDB(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ApplyPriceUpdate sets the stock's current price and appends the matching
// history row in a single transaction: both commit or neither does. A missing
// stock is reported as (false, nil) so the caller can treat it as a skip.
// Re-applying the same update is harmless: the price overwrite is idempotent
// and the duplicate history row is an accepted at-least-once artifact.
func (s *Store) ApplyPriceUpdate(ctx context.Context, stockID uint, price float64, tsMillis int64) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stock Stock
		if err := tx.First(&stock, stockID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return errors.Wrapf(err, "lookup stock %d", stockID)
		}

		if err := tx.Model(&Stock{}).Where("id = ?", stockID).Update("price", price).Error; err != nil {
			return errors.Wrapf(err, "update price for stock %d", stockID)
		}

		history := StockPriceHistory{
			StockID:   stockID,
			Price:     price,
			Timestamp: envelope.EventTime(tsMillis),
		}
		if err := tx.Create(&history).Error; err != nil {
			return errors.Wrapf(err, "insert price history for stock %d", stockID)
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *Store) ListStocks(ctx context.Context) ([]Stock, error) {
	var stocks []Stock
	if err := s.db.WithContext(ctx).Find(&stocks).Error; err != nil {
		return nil, errors.Wrap(err, "list stocks")
	}
	return stocks, nil
}

func (s *Store) CreateStock(ctx context.Context, symbol, name string, price float64) (*Stock, error) {
	stock := Stock{Symbol: symbol, Name: name, Price: price}
	if err := s.db.WithContext(ctx).Create(&stock).Error; err != nil {
		return nil, errors.Wrapf(err, "create stock %s", symbol)
	}
	return &stock, nil
}

// PriceHistory returns the history rows for a stock, newest first.
func (s *Store) PriceHistory(ctx context.Context, stockID uint) ([]StockPriceHistory, error) {
	var history []StockPriceHistory
	err := s.db.WithContext(ctx).
		Where("stock_id = ?", stockID).
		Order("timestamp DESC").
		Find(&history).Error
	if err != nil {
		return nil, errors.Wrapf(err, "price history for stock %d", stockID)
	}
	return history, nil
}

// CreateOrder persists a PENDING order after verifying the stock exists.
// The order row is durable before any broker publish is attempted.
func (s *Store) CreateOrder(ctx context.Context, stockID uint, orderType OrderType, quantity int, price float64) (*Order, error) {
	var order *Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stock Stock
		if err := tx.First(&stock, stockID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStockNotFound
			}
			return errors.Wrapf(err, "lookup stock %d", stockID)
		}

		order = &Order{
			StockID:   stockID,
			OrderType: orderType,
			Quantity:  quantity,
			Price:     price,
			Status:    OrderStatusPending,
		}
		return errors.Wrap(tx.Create(order).Error, "create order")
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) GetOrder(ctx context.Context, id uint) (*Order, error) {
	var order Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	return &order, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]Transaction, error) {
	var txs []Transaction
	if err := s.db.WithContext(ctx).Find(&txs).Error; err != nil {
		return nil, errors.Wrap(err, "list transactions")
	}
	return txs, nil
}
