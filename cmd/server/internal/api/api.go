// Package api exposes the REST surface: stock listing and creation, price
// history, order placement and transaction listing, plus readiness driven by
// the consumer loop state.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kos-conf/stock-market-application/cmd/server/internal/consumer"
	"github.com/kos-conf/stock-market-application/cmd/server/internal/store"
	"github.com/kos-conf/stock-market-application/pkg/envelope"
	"github.com/kos-conf/stock-market-application/pkg/models"
)

// StockStore is the slice of the relational store the API needs.
type StockStore interface {
	ListStocks(ctx context.Context) ([]store.Stock, error)
	CreateStock(ctx context.Context, symbol, name string, price float64) (*store.Stock, error)
	PriceHistory(ctx context.Context, stockID uint) ([]store.StockPriceHistory, error)
	CreateOrder(ctx context.Context, stockID uint, orderType store.OrderType, quantity int, price float64) (*store.Order, error)
	ListTransactions(ctx context.Context) ([]store.Transaction, error)
}

// OrderPublisher enqueues an order event for async delivery.
type OrderPublisher interface {
	Publish(ctx context.Context, event models.OrderEvent)
}

// ConsumerHealth reports the price consumer's lifecycle state.
type ConsumerHealth interface {
	Ready() bool
	State() consumer.State
}

type Handler struct {
	store     StockStore
	publisher OrderPublisher
	health    ConsumerHealth
	logger    *zap.Logger
}

func NewHandler(st StockStore, pub OrderPublisher, health ConsumerHealth, logger *zap.Logger) *Handler {
	return &Handler{store: st, publisher: pub, health: health, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)

	stocks := r.Group("/stocks")
	{
		stocks.GET("", h.ListStocks)
		stocks.POST("", h.CreateStock)
		stocks.GET("/:id/history", h.PriceHistory)
	}

	trades := r.Group("/trades")
	{
		trades.POST("/orders", h.PlaceOrder)
		trades.GET("/transactions", h.ListTransactions)
	}

	return r
}

func (h *Handler) Health(c *gin.Context) {
	state := h.health.State()
	status := http.StatusOK
	if !h.health.Ready() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "consumer": state.String()})
}

func (h *Handler) ListStocks(c *gin.Context) {
	stocks, err := h.store.ListStocks(c.Request.Context())
	if err != nil {
		h.logger.Error("Stock list error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to fetch stocks"})
		return
	}
	c.JSON(http.StatusOK, stocks)
}

type createStockRequest struct {
	Symbol string  `json:"symbol" binding:"required"`
	Name   string  `json:"name" binding:"required"`
	Price  float64 `json:"price" binding:"required,gt=0"`
}

func (h *Handler) CreateStock(c *gin.Context) {
	var req createStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	stock, err := h.store.CreateStock(c.Request.Context(), req.Symbol, req.Name, req.Price)
	if err != nil {
		h.logger.Error("Add stock error", zap.Error(err), zap.String("symbol", req.Symbol))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to add stock"})
		return
	}
	c.JSON(http.StatusCreated, stock)
}

func (h *Handler) PriceHistory(c *gin.Context) {
	var uri struct {
		ID uint `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid stock id"})
		return
	}

	history, err := h.store.PriceHistory(c.Request.Context(), uri.ID)
	if err != nil {
		h.logger.Error("Stock price history fetch error", zap.Error(err), zap.Uint("stock_id", uri.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to fetch stock price history"})
		return
	}
	c.JSON(http.StatusOK, history)
}

type placeOrderRequest struct {
	StockID   uint    `json:"stock_id" binding:"required"`
	OrderType string  `json:"order_type" binding:"required,oneof=BUY SELL"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	Price     float64 `json:"price" binding:"required,gt=0"`
}

// PlaceOrder persists the order and then publishes its snapshot. The publish
// is fire-and-forget: a broker outage never fails or rolls back the order.
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	order, err := h.store.CreateOrder(c.Request.Context(), req.StockID, store.OrderType(req.OrderType), req.Quantity, req.Price)
	if err != nil {
		if errors.Is(err, store.ErrStockNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Stock not found"})
			return
		}
		h.logger.Error("Order placement error", zap.Error(err), zap.Uint("stock_id", req.StockID))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to place order"})
		return
	}

	h.publisher.Publish(c.Request.Context(), models.OrderEvent{
		OrderID:   order.ID,
		StockID:   order.StockID,
		OrderType: string(order.OrderType),
		Quantity:  order.Quantity,
		Price:     order.Price,
		CreatedAt: order.CreatedAt.UTC().Format(envelope.CreatedAtLayout),
	})

	h.logger.Info("Order placed", zap.Uint("order_id", order.ID))
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	txs, err := h.store.ListTransactions(c.Request.Context())
	if err != nil {
		h.logger.Error("Transaction fetch error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to fetch transactions"})
		return
	}
	c.JSON(http.StatusOK, txs)
}
