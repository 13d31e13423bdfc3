package consumer

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/kos-conf/stock-market-application/pkg/models"
)

// State of the consumer loop. Transitions are strictly
// Idle -> Running -> Draining -> Stopped; a stopped consumer is not
// restartable.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// KafkaReader abstracts the group consumer. FetchMessage must not advance
// committed offsets; the loop owns commit timing via CommitMessages.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PriceApplier applies a decoded price update to the relational store.
// applied=false means the referenced stock does not exist.
type PriceApplier interface {
	ApplyPriceUpdate(ctx context.Context, stockID uint, price float64, tsMillis int64) (bool, error)
}

// PriceMirror receives successfully committed updates for fan-out. Best
// effort: errors are logged and never affect store or offset state.
type PriceMirror interface {
	Mirror(ctx context.Context, update models.PriceUpdate) error
}
