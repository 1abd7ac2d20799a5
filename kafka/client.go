package kafka

import (
	// Go Internal Packages
	"context"
	"time"
)

const (
	// OffsetBeginning asks the client to start from the first offset still
	// retained in the partition.
	OffsetBeginning int64 = -2
	// OffsetStored leaves the choice to the broker: the committed group offset,
	// or the client's reset policy when there is none.
	OffsetStored int64 = -1000
)

// TopicPartition is one element of a partition assignment. Offset is mutable
// so the assignment callback can rewrite it before handing it back.
type TopicPartition struct {
	Topic     string
	Partition int32
	Offset    int64
}

// AssignFunc is invoked by the broker client every time partitions are
// (re)assigned to this consumer.
type AssignFunc func(ctx context.Context, partitions []TopicPartition)

// BrokerMessage is what a single poll hands back. Error is non-nil when the poll
// surfaced a broker level failure instead of a record.
type BrokerMessage interface {
	Key() []byte
	Value() []byte
	Error() error
	Topic() string
	Partition() int32
	Offset() int64
	Timestamp() time.Time
}

// BrokerClient is the capability the subscription manager needs from a Kafka
// client. A single instance must not be polled from multiple goroutines.
type BrokerClient interface {
	Subscribe(pattern string, onAssign AssignFunc) error
	// Poll returns nil when nothing arrived within timeout.
	Poll(ctx context.Context, timeout time.Duration) BrokerMessage
	Assign(ctx context.Context, partitions []TopicPartition) error
	Close()
}
