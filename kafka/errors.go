package kafka

import (
	// Go Internal Packages
	"errors"
	"fmt"
)

var (
	ErrNotSubscribed = errors.New("kafka: client is not subscribed")
	ErrClientClosed  = errors.New("kafka: client closed")
	ErrLoopClosed    = errors.New("kafka: poll loop is running or already stopped")
)

// ConnectionConfigError is returned when the consumer cannot be built from
// its configuration. It is never retried.
type ConnectionConfigError struct {
	Err error
}

func (e *ConnectionConfigError) Error() string {
	return fmt.Sprintf("kafka: invalid connection config: %v", e.Err)
}

func (e *ConnectionConfigError) Unwrap() error { return e.Err }

// PollTransportError is a transient broker failure seen while polling.
type PollTransportError struct {
	Topic     string
	Partition int32
	Err       error
}

func (e *PollTransportError) Error() string {
	if e.Topic == "" {
		return fmt.Sprintf("kafka: poll failed: %v", e.Err)
	}
	return fmt.Sprintf("kafka: poll failed for %s[%d]: %v", e.Topic, e.Partition, e.Err)
}

func (e *PollTransportError) Unwrap() error { return e.Err }

// DecodeError means a record arrived but its payload could not be decoded in
// the configured mode. The record is dropped.
type DecodeError struct {
	Topic     string
	Partition int32
	Offset    int64
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("kafka: cannot decode %s[%d]@%d: %v", e.Topic, e.Partition, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err came from payload decoding rather than
// from the broker.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
