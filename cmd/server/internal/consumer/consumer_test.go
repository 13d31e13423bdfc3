package consumer_test

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kos-conf/stock-market-application/cmd/server/internal/consumer"
	"github.com/kos-conf/stock-market-application/cmd/server/internal/testutils"
	"github.com/kos-conf/stock-market-application/pkg/config"
	"github.com/kos-conf/stock-market-application/pkg/envelope"
	"github.com/kos-conf/stock-market-application/pkg/models"
)

func testConfig() config.ConsumerConfig {
	return config.ConsumerConfig{
		PollTimeout:        20 * time.Millisecond,
		ShutdownTimeout:    time.Second,
		MissingStockPolicy: config.MissingStockRetry,
	}
}

func priceMessage(t *testing.T, u models.PriceUpdate) kafka.Message {
	t.Helper()
	payload, err := envelope.EncodePriceUpdate(u)
	require.NoError(t, err)
	return kafka.Message{Value: payload}
}

// runUntilIdle runs the consumer until the test context expires.
func runUntilIdle(t *testing.T, c *consumer.Consumer, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	c.Run(ctx)
	assert.Equal(t, consumer.StateStopped, c.State())
}

func TestConsumer_AppliesAndCommits(t *testing.T) {
	update := models.PriceUpdate{StockID: 7, Price: 12.50, Timestamp: 1700000000000}
	reader := &testutils.MockKafkaReader{Messages: []kafka.Message{priceMessage(t, update)}}
	applier := &testutils.MockApplier{}
	mirror := &testutils.MockMirror{}

	c := consumer.New(testConfig(), zap.NewNop(), reader, applier, mirror)
	runUntilIdle(t, c, 200*time.Millisecond)

	require.Equal(t, 1, applier.AppliedCount())
	assert.Equal(t, testutils.AppliedUpdate{StockID: 7, Price: 12.50, TSMillis: 1700000000000}, applier.Applied[0])
	assert.Equal(t, 1, reader.CommittedCount())

	require.Len(t, mirror.Updates, 1)
	assert.Equal(t, update, mirror.Updates[0])
}

func TestConsumer_MalformedPayloadSkippedWithoutCommit(t *testing.T) {
	reader := &testutils.MockKafkaReader{Messages: []kafka.Message{
		{Value: []byte{0x00, 0x01}}, // shorter than the framing prefix
		{Value: append(make([]byte, envelope.FramePrefixLen), []byte(`{broken`)...)},
	}}
	applier := &testutils.MockApplier{}

	c := consumer.New(testConfig(), zap.NewNop(), reader, applier, nil)
	runUntilIdle(t, c, 200*time.Millisecond)

	assert.Equal(t, 0, applier.AppliedCount())
	assert.Equal(t, 0, reader.CommittedCount())
}

func TestConsumer_MissingStockRetryLeavesOffset(t *testing.T) {
	reader := &testutils.MockKafkaReader{Messages: []kafka.Message{
		priceMessage(t, models.PriceUpdate{StockID: 999, Price: 5.00, Timestamp: 1700000000000}),
	}}
	applier := &testutils.MockApplier{MissingStocks: map[uint]bool{999: true}}

	c := consumer.New(testConfig(), zap.NewNop(), reader, applier, nil)
	runUntilIdle(t, c, 200*time.Millisecond)

	assert.Equal(t, 0, applier.AppliedCount())
	assert.Equal(t, 0, reader.CommittedCount())
}

func TestConsumer_MissingStockDropCommits(t *testing.T) {
	reader := &testutils.MockKafkaReader{Messages: []kafka.Message{
		priceMessage(t, models.PriceUpdate{StockID: 999, Price: 5.00, Timestamp: 1700000000000}),
	}}
	applier := &testutils.MockApplier{MissingStocks: map[uint]bool{999: true}}
	mirror := &testutils.MockMirror{}

	cfg := testConfig()
	cfg.MissingStockPolicy = config.MissingStockDrop
	c := consumer.New(cfg, zap.NewNop(), reader, applier, mirror)
	runUntilIdle(t, c, 200*time.Millisecond)

	assert.Equal(t, 0, applier.AppliedCount())
	assert.Equal(t, 1, reader.CommittedCount(), "dropped event must advance the offset")
	assert.Empty(t, mirror.Updates, "dropped event must not be mirrored")
}

func TestConsumer_StoreErrorLeavesOffset(t *testing.T) {
	reader := &testutils.MockKafkaReader{Messages: []kafka.Message{
		priceMessage(t, models.PriceUpdate{StockID: 7, Price: 12.50, Timestamp: 1700000000000}),
	}}
	applier := &testutils.MockApplier{Err: assert.AnError}

	c := consumer.New(testConfig(), zap.NewNop(), reader, applier, nil)
	runUntilIdle(t, c, 200*time.Millisecond)

	assert.Equal(t, 0, reader.CommittedCount())
}

func TestConsumer_CommitFailureDoesNotStopLoop(t *testing.T) {
	reader := &testutils.MockKafkaReader{
		Messages: []kafka.Message{
			priceMessage(t, models.PriceUpdate{StockID: 7, Price: 12.50, Timestamp: 1700000000000}),
			priceMessage(t, models.PriceUpdate{StockID: 7, Price: 13.00, Timestamp: 1700000001000}),
		},
		CommitErr: assert.AnError,
	}
	applier := &testutils.MockApplier{}

	c := consumer.New(testConfig(), zap.NewNop(), reader, applier, nil)
	runUntilIdle(t, c, 200*time.Millisecond)

	// Both updates applied even though commits kept failing.
	assert.Equal(t, 2, applier.AppliedCount())
}

func TestConsumer_RedeliveryIsIdempotentOnPrice(t *testing.T) {
	msg := priceMessage(t, models.PriceUpdate{StockID: 7, Price: 12.50, Timestamp: 1700000000000})
	reader := &testutils.MockKafkaReader{Messages: []kafka.Message{msg, msg}}
	applier := &testutils.MockApplier{}

	c := consumer.New(testConfig(), zap.NewNop(), reader, applier, nil)
	runUntilIdle(t, c, 200*time.Millisecond)

	// The duplicate is re-applied (two history appends), final price unchanged.
	require.Equal(t, 2, applier.AppliedCount())
	assert.Equal(t, applier.Applied[0], applier.Applied[1])
	assert.Equal(t, 2, reader.CommittedCount())
}

func TestConsumer_StopSignalObservedBetweenPolls(t *testing.T) {
	reader := &testutils.MockKafkaReader{Messages: []kafka.Message{
		priceMessage(t, models.PriceUpdate{StockID: 7, Price: 12.50, Timestamp: 1700000000000}),
	}}
	applier := &testutils.MockApplier{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // stop already signalled before the first poll

	c := consumer.New(testConfig(), zap.NewNop(), reader, applier, nil)
	err := c.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, consumer.StateStopped, c.State())
	assert.Equal(t, 0, applier.AppliedCount(), "no message may be processed after the stop signal")
}

func TestConsumer_FatalReaderErrorStopsLoop(t *testing.T) {
	reader := &testutils.MockKafkaReader{}
	reader.Close() // next fetch returns io.EOF

	c := consumer.New(testConfig(), zap.NewNop(), reader, &testutils.MockApplier{}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after fatal reader error")
	}
	assert.Equal(t, consumer.StateStopped, c.State())
}

func TestConsumer_MirrorFailureIsNonFatal(t *testing.T) {
	reader := &testutils.MockKafkaReader{Messages: []kafka.Message{
		priceMessage(t, models.PriceUpdate{StockID: 7, Price: 12.50, Timestamp: 1700000000000}),
	}}
	applier := &testutils.MockApplier{}
	mirror := &testutils.MockMirror{Err: assert.AnError}

	c := consumer.New(testConfig(), zap.NewNop(), reader, applier, mirror)
	runUntilIdle(t, c, 200*time.Millisecond)

	assert.Equal(t, 1, applier.AppliedCount())
	assert.Equal(t, 1, reader.CommittedCount(), "mirror failure must not affect the offset")
}
