package domain

import (
	"context"
	"time"
)

// RawTelegram represents an unprocessed message from the source topic.
// Value holds the telegram text exactly as received.
type RawTelegram struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
