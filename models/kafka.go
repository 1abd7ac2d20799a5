package models

import (
	// Go Internal Packages
	"time"
)

// DecodeMode selects how record payloads are interpreted.
type DecodeMode string

const (
	DecodeRaw  DecodeMode = "raw"
	DecodeAvro DecodeMode = "avro"
)

// OffsetReset selects where a freshly assigned partition starts reading.
type OffsetReset string

const (
	OffsetEarliest OffsetReset = "earliest"
	OffsetDefault  OffsetReset = "default"
)

// Record is a single consumed message. Decoded and DecodedKey hold the
// structured payloads in avro mode and are nil in raw mode.
type Record struct {
	Key        []byte    `json:"key"`
	Value      []byte    `json:"value"`
	DecodedKey any       `json:"decoded_key,omitempty"`
	Decoded    any       `json:"decoded,omitempty"`
	Topic      string    `json:"topic"`
	Partition  int32     `json:"partition"`
	Offset     int64     `json:"offset"`
	Timestamp  time.Time `json:"timestamp"`
}

type ConsumerConfig struct {
	Brokers        []string
	SchemaRegistry string
	GroupID        string
	DecodeMode     DecodeMode
	PollTimeout    time.Duration
	SleepInterval  time.Duration
	OffsetReset    OffsetReset
}
