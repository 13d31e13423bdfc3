// Package envelope encodes and decodes the wire payloads exchanged over the
// prices and orders topics. Price updates arrive framed: a fixed-length
// format-identification prefix followed by a JSON object. The prefix is
// stripped before decoding and its content is not validated here.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kos-conf/stock-market-application/pkg/models"
)

// FramePrefixLen is the length of the format-identification prefix on
// price-update payloads (magic byte + 4-byte schema id).
const FramePrefixLen = 5

// CreatedAtLayout is the timestamp format used for order events.
const CreatedAtLayout = "2006-01-02 15:04:05"

// DecodeError reports a payload that could not be decoded. Messages failing
// with a DecodeError are skipped by the consumer, never retried.
type DecodeError struct {
	Reason string
	cause  error
}

func (e *DecodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("decode price update: %s: %v", e.Reason, e.cause)
	}
	return "decode price update: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.cause }

// priceUpdateWire mirrors models.PriceUpdate with pointer fields so that
// absent keys are distinguishable from zero values.
type priceUpdateWire struct {
	StockID   *uint    `json:"stock_id"`
	Price     *float64 `json:"price"`
	Timestamp *int64   `json:"ts"`
}

// DecodePriceUpdate strips the framing prefix from raw and parses the
// remainder as a price update. stock_id, price and ts are all required.
func DecodePriceUpdate(raw []byte) (models.PriceUpdate, error) {
	if len(raw) < FramePrefixLen {
		return models.PriceUpdate{}, &DecodeError{
			Reason: fmt.Sprintf("payload shorter than %d-byte framing prefix", FramePrefixLen),
		}
	}

	var wire priceUpdateWire
	if err := json.Unmarshal(raw[FramePrefixLen:], &wire); err != nil {
		return models.PriceUpdate{}, &DecodeError{Reason: "malformed payload", cause: err}
	}

	switch {
	case wire.StockID == nil:
		return models.PriceUpdate{}, &DecodeError{Reason: "missing required field stock_id"}
	case wire.Price == nil:
		return models.PriceUpdate{}, &DecodeError{Reason: "missing required field price"}
	case wire.Timestamp == nil:
		return models.PriceUpdate{}, &DecodeError{Reason: "missing required field ts"}
	}

	return models.PriceUpdate{
		StockID:   *wire.StockID,
		Price:     *wire.Price,
		Timestamp: *wire.Timestamp,
	}, nil
}

// EncodePriceUpdate serializes a price update and attaches the framing
// prefix, producing a payload equivalent to what the upstream pipeline
// publishes. Used by the generator; the server only decodes.
func EncodePriceUpdate(u models.PriceUpdate) ([]byte, error) {
	payload, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	framed := make([]byte, FramePrefixLen, FramePrefixLen+len(payload))
	return append(framed, payload...), nil
}

// EncodeOrder serializes an order event for the orders topic. Outbound order
// events carry no framing prefix.
func EncodeOrder(e models.OrderEvent) ([]byte, error) {
	return json.Marshal(e)
}

// EventTime converts an epoch-millisecond event timestamp to UTC wall time.
func EventTime(millis int64) time.Time {
	return time.UnixMilli(millis).UTC()
}
