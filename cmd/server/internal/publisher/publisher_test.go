package publisher_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kos-conf/stock-market-application/cmd/server/internal/publisher"
	"github.com/kos-conf/stock-market-application/cmd/server/internal/testutils"
	"github.com/kos-conf/stock-market-application/pkg/models"
)

func TestPublish_EncodesOrderEvent(t *testing.T) {
	writer := &testutils.MockKafkaWriter{}
	pub := publisher.New(writer, zap.NewNop())

	pub.Publish(context.Background(), models.OrderEvent{
		OrderID:   3,
		StockID:   7,
		OrderType: "BUY",
		Quantity:  10,
		Price:     12.50,
		CreatedAt: "2023-11-14 22:13:20",
	})

	require.Len(t, writer.Messages, 1)
	msg := writer.Messages[0]
	assert.Equal(t, "7", string(msg.Key))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, float64(3), got["order_id"])
	assert.Equal(t, float64(7), got["stock_id"])
	assert.Equal(t, "BUY", got["order_type"])
	assert.Equal(t, float64(10), got["quantity"])
	assert.Equal(t, 12.50, got["price"])
	assert.Equal(t, "2023-11-14 22:13:20", got["created_at"])
}

func TestPublish_WriterErrorIsSwallowed(t *testing.T) {
	writer := &testutils.MockKafkaWriter{Err: assert.AnError}
	pub := publisher.New(writer, zap.NewNop())

	// Must not panic or surface the error: the order row is already durable.
	pub.Publish(context.Background(), models.OrderEvent{OrderID: 1, StockID: 7, OrderType: "SELL", Quantity: 1, Price: 1})
	assert.Empty(t, writer.Messages)
}
