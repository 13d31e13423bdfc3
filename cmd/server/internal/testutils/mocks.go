package testutils

import (
	"context"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/kos-conf/stock-market-application/pkg/models"
)

// MockKafkaReader feeds a fixed message slice to the consumer loop and
// records commits. Once drained it blocks until the poll context expires,
// mimicking an idle broker.
type MockKafkaReader struct {
	Messages  []kafka.Message
	CommitErr error

	Mu        sync.Mutex
	Index     int
	Committed []kafka.Message
	Closed    bool
}

func (m *MockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.Mu.Lock()
	if m.Closed {
		m.Mu.Unlock()
		return kafka.Message{}, io.EOF
	}
	if m.Index < len(m.Messages) {
		msg := m.Messages[m.Index]
		m.Index++
		m.Mu.Unlock()
		return msg, nil
	}
	m.Mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *MockKafkaReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.CommitErr != nil {
		return m.CommitErr
	}
	m.Committed = append(m.Committed, msgs...)
	return nil
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockKafkaReader) CommittedCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Committed)
}

// AppliedUpdate records one ApplyPriceUpdate call.
type AppliedUpdate struct {
	StockID  uint
	Price    float64
	TSMillis int64
}

// MockApplier is a stand-in for the store's price applier.
type MockApplier struct {
	// MissingStocks marks stock ids that should report applied=false.
	MissingStocks map[uint]bool
	Err           error

	Mu      sync.Mutex
	Applied []AppliedUpdate
}

func (m *MockApplier) ApplyPriceUpdate(ctx context.Context, stockID uint, price float64, tsMillis int64) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	if m.MissingStocks[stockID] {
		return false, nil
	}
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Applied = append(m.Applied, AppliedUpdate{StockID: stockID, Price: price, TSMillis: tsMillis})
	return true, nil
}

func (m *MockApplier) AppliedCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Applied)
}

// MockMirror records mirrored updates.
type MockMirror struct {
	Err error

	Mu      sync.Mutex
	Updates []models.PriceUpdate
}

func (m *MockMirror) Mirror(ctx context.Context, update models.PriceUpdate) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Updates = append(m.Updates, update)
	return m.Err
}

// MockKafkaWriter captures produced messages.
type MockKafkaWriter struct {
	Err error

	Mu       sync.Mutex
	Messages []kafka.Message
	Closed   bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}
