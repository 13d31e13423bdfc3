package models

// PriceUpdate is a single price tick for a stock, as published by the
// upstream market data pipeline on the prices topic.
type PriceUpdate struct {
	StockID   uint    `json:"stock_id"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"ts"` // epoch millis, event time (not receipt time)
}

// OrderEvent is the snapshot of a placed order published on the orders topic
// for downstream processing.
type OrderEvent struct {
	OrderID   uint    `json:"order_id"`
	StockID   uint    `json:"stock_id"`
	OrderType string  `json:"order_type"` // BUY | SELL
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	CreatedAt string  `json:"created_at"` // YYYY-MM-DD HH:MM:SS
}
