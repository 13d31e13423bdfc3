package store

import "time"

type OrderType string

const (
	OrderTypeBuy  OrderType = "BUY"
	OrderTypeSell OrderType = "SELL"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Stock is a listed instrument. Price is the last committed price and is
// mutated only by the price-update applier.
type Stock struct {
	ID     uint    `gorm:"primaryKey" json:"id"`
	Symbol string  `gorm:"uniqueIndex;not null" json:"symbol"`
	Name   string  `gorm:"not null" json:"name"`
	Price  float64 `gorm:"not null" json:"price"`
}

func (Stock) TableName() string { return "stocks" }

// Order is created PENDING by the API layer; status transitions belong to the
// (external) settlement system, nothing here performs them.
type Order struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	StockID   uint        `gorm:"not null;index" json:"stock_id"`
	OrderType OrderType   `gorm:"not null" json:"order_type"`
	Quantity  int         `gorm:"not null" json:"quantity"`
	Price     float64     `gorm:"not null" json:"price"`
	Status    OrderStatus `gorm:"not null;default:PENDING" json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

func (Order) TableName() string { return "orders" }

// Transaction is a matched trade written by the external settlement system.
// This service only lists them.
type Transaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	BuyOrderID  uint      `gorm:"not null" json:"buy_order_id"`
	SellOrderID uint      `gorm:"not null" json:"sell_order_id"`
	StockID     uint      `gorm:"not null" json:"stock_id"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	Price       float64   `gorm:"not null" json:"price"`
	Timestamp   time.Time `json:"timestamp"`
}

func (Transaction) TableName() string { return "transactions" }

// StockPriceHistory is append-only: one row per applied price update, stamped
// with the event time carried by the update, not receipt time.
type StockPriceHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StockID   uint      `gorm:"not null;index" json:"stock_id"`
	Price     float64   `gorm:"not null" json:"price"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
}

func (StockPriceHistory) TableName() string { return "stock_price_history" }
