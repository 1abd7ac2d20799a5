package config

import (
	// Go Internal Packages
	"time"

	// Local Packages
	errors "station-stream/errors"
	models "station-stream/models"
)

var DefaultConfig = []byte(`
application: "station-stream"

logger:
  level: "debug"

is_prod_mode: false

metrics:
  addr: ":9100"

mongo:
  uri: "mongodb://localhost:27017"
  database: "cta"

redis:
  uri: "localhost:6379"
  password: ""
  dead_letter_list: "stations:dead-letter"

kafka:
  brokers:
    - "localhost:9092"
    - "localhost:9093"
    - "localhost:9094"
  schema_registry: "http://localhost:8081"
  group_id: "station-stream"
  topic_pattern: "org.chicago.cta.stations"
  decode_mode: "raw"
  offset_reset: "earliest"
  poll_timeout: "100ms"
  sleep: "1s"

connect:
  url: "http://localhost:8083"
  connector_name: "stations"
  jdbc_url: "jdbc:postgresql://postgres:5432/cta"
  jdbc_user: "cta_admin"
  jdbc_password: "chicago"
  table: "stations"
  incrementing_column: "stop_id"
  topic_prefix: "org.chicago.cta."
  batch_max_rows: 500
  poll_interval: "24h"
  timeout: "10s"
`)

type Config struct {
	Application string  `koanf:"application"`
	Logger      Logger  `koanf:"logger"`
	IsProdMode  bool    `koanf:"is_prod_mode"`
	Metrics     Metrics `koanf:"metrics"`
	Mongo       Mongo   `koanf:"mongo"`
	Redis       Redis   `koanf:"redis"`
	Kafka       Kafka   `koanf:"kafka"`
	Connect     Connect `koanf:"connect"`
}

type Logger struct {
	Level string `koanf:"level"`
}

type Metrics struct {
	Addr string `koanf:"addr"`
}

type Mongo struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type Redis struct {
	URI            string `koanf:"uri"`
	Password       string `koanf:"password"`
	DeadLetterList string `koanf:"dead_letter_list"`
}

type Kafka struct {
	Brokers        []string      `koanf:"brokers"`
	SchemaRegistry string        `koanf:"schema_registry"`
	GroupID        string        `koanf:"group_id"`
	TopicPattern   string        `koanf:"topic_pattern"`
	DecodeMode     string        `koanf:"decode_mode"`
	OffsetReset    string        `koanf:"offset_reset"`
	PollTimeout    time.Duration `koanf:"poll_timeout"`
	Sleep          time.Duration `koanf:"sleep"`
}

type Connect struct {
	URL                string        `koanf:"url"`
	ConnectorName      string        `koanf:"connector_name"`
	JDBCURL            string        `koanf:"jdbc_url"`
	JDBCUser           string        `koanf:"jdbc_user"`
	JDBCPassword       string        `koanf:"jdbc_password"`
	Table              string        `koanf:"table"`
	IncrementingColumn string        `koanf:"incrementing_column"`
	TopicPrefix        string        `koanf:"topic_prefix"`
	BatchMaxRows       int           `koanf:"batch_max_rows"`
	PollInterval       time.Duration `koanf:"poll_interval"`
	Timeout            time.Duration `koanf:"timeout"`
}

// ConsumerConfig builds the immutable consumer settings from the kafka section.
func (k Kafka) ConsumerConfig() models.ConsumerConfig {
	brokers := make([]string, len(k.Brokers))
	copy(brokers, k.Brokers)
	return models.ConsumerConfig{
		Brokers:        brokers,
		SchemaRegistry: k.SchemaRegistry,
		GroupID:        k.GroupID,
		DecodeMode:     models.DecodeMode(k.DecodeMode),
		PollTimeout:    k.PollTimeout,
		SleepInterval:  k.Sleep,
		OffsetReset:    models.OffsetReset(k.OffsetReset),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	ve := errors.ValidationErrs()

	if c.Application == "" {
		ve.Add("application", "cannot be empty")
	}
	if c.Logger.Level == "" {
		ve.Add("logger.level", "cannot be empty")
	}
	if c.Mongo.URI == "" {
		ve.Add("mongo.uri", "cannot be empty")
	}
	if c.Mongo.Database == "" {
		ve.Add("mongo.database", "cannot be empty")
	}
	if c.Redis.URI == "" {
		ve.Add("redis.uri", "cannot be empty")
	}
	if len(c.Kafka.Brokers) == 0 {
		ve.Add("kafka.brokers", "cannot be empty")
	}
	if c.Kafka.TopicPattern == "" {
		ve.Add("kafka.topic_pattern", "cannot be empty")
	}
	if c.Kafka.GroupID == "" {
		ve.Add("kafka.group_id", "cannot be empty")
	}
	switch models.DecodeMode(c.Kafka.DecodeMode) {
	case models.DecodeRaw:
	case models.DecodeAvro:
		if c.Kafka.SchemaRegistry == "" {
			ve.Add("kafka.schema_registry", "cannot be empty in avro mode")
		}
	default:
		ve.Add("kafka.decode_mode", "must be raw or avro")
	}
	switch models.OffsetReset(c.Kafka.OffsetReset) {
	case models.OffsetEarliest, models.OffsetDefault:
	default:
		ve.Add("kafka.offset_reset", "must be earliest or default")
	}
	if c.Kafka.PollTimeout <= 0 {
		ve.Add("kafka.poll_timeout", "must be positive")
	}
	if c.Kafka.Sleep <= 0 {
		ve.Add("kafka.sleep", "must be positive")
	}
	if c.Connect.URL == "" {
		ve.Add("connect.url", "cannot be empty")
	}
	if c.Connect.ConnectorName == "" {
		ve.Add("connect.connector_name", "cannot be empty")
	}

	return ve.Err()
}
