package kafka

import (
	"context"
	"time"
)

// Message is one record read from a trigger topic.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string][]byte
	Timestamp time.Time
}

// EmitFunc handles one message synchronously. The offset is marked only
// after it returns nil; an error stops the driver.
type EmitFunc func(context.Context, Message) error

type Adapter interface {
	Configure(Config) error
	Run(context.Context, EmitFunc) error
	Close() error
}
