package kafka

import (
	// Go Internal Packages
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	// Local Packages
	errors "station-stream/errors"
	models "station-stream/models"
	utils "station-stream/utils"

	// External Packages
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

// ResultKind tags the outcome of a single poll.
type ResultKind uint8

const (
	NoMessage ResultKind = iota
	Message
	PollError
)

func (k ResultKind) String() string {
	switch k {
	case Message:
		return "message"
	case PollError:
		return "poll_error"
	}
	return "no_message"
}

// PollResult is the tagged outcome of PollOnce. Record is set for Message,
// Err (a *PollTransportError or *DecodeError) for PollError.
type PollResult struct {
	Kind   ResultKind
	Record models.Record
	Err    error
}

// SubscriptionManager owns one broker connection, subscribes it to a topic
// pattern and enforces the offset reset policy whenever partitions are
// assigned.
type SubscriptionManager struct {
	Config  *models.ConsumerConfig
	Pattern string
	Client  BrokerClient
	Decoder Decoder
	Logger  *zap.Logger

	closeOnce sync.Once
}

type managerOptions struct {
	client  BrokerClient
	decoder Decoder
	metrics *kprom.Metrics
	httpc   *http.Client
}

type Option func(*managerOptions)

// WithBrokerClient replaces the franz-go client, mostly for tests.
func WithBrokerClient(c BrokerClient) Option {
	return func(o *managerOptions) { o.client = c }
}

// WithDecoder replaces the decoder chosen from the decode mode.
func WithDecoder(d Decoder) Option {
	return func(o *managerOptions) { o.decoder = d }
}

// WithMetrics attaches kprom hooks to the franz-go client.
func WithMetrics(m *kprom.Metrics) Option {
	return func(o *managerOptions) { o.metrics = m }
}

// WithRegistryHTTPClient sets the HTTP client used for schema lookups.
func WithRegistryHTTPClient(c *http.Client) Option {
	return func(o *managerOptions) { o.httpc = c }
}

// NewSubscriptionManager validates conf, builds the decoder and the broker
// client and subscribes to pattern. Configuration problems are returned as
// *ConnectionConfigError.
func NewSubscriptionManager(conf *models.ConsumerConfig, pattern string, logger *zap.Logger, opts ...Option) (*SubscriptionManager, error) {
	if err := ValidateConsumerConfig(conf, pattern); err != nil {
		return nil, &ConnectionConfigError{Err: err}
	}

	var o managerOptions
	for _, opt := range opts {
		opt(&o)
	}

	m := &SubscriptionManager{
		Config:  conf,
		Pattern: pattern,
		Logger:  logger.With(zap.String("pattern", pattern)),
	}

	m.Decoder = o.decoder
	if m.Decoder == nil {
		switch conf.DecodeMode {
		case models.DecodeAvro:
			registry, err := NewSchemaRegistry(conf.SchemaRegistry, o.httpc)
			if err != nil {
				return nil, &ConnectionConfigError{Err: err}
			}
			m.Decoder = NewAvroDecoder(registry)
		default:
			m.Decoder = RawDecoder{}
		}
	}

	m.Client = o.client
	if m.Client == nil {
		m.Client = NewFranzClient(conf, o.metrics, logger)
	}

	if err := m.Subscribe(); err != nil {
		return nil, &ConnectionConfigError{Err: err}
	}
	return m, nil
}

// Subscribe registers the pattern and installs OnAssign as the assignment
// callback.
func (m *SubscriptionManager) Subscribe() error {
	if err := m.Client.Subscribe(m.Pattern, m.OnAssign); err != nil {
		return fmt.Errorf("subscribing to %q: %w", m.Pattern, err)
	}
	m.Logger.Info("subscribed",
		zap.Strings("brokers", m.Config.Brokers),
		zap.String("group", m.Config.GroupID),
		zap.String("decode_mode", string(m.Config.DecodeMode)),
		zap.String("offset_reset", string(m.Config.OffsetReset)))
	return nil
}

// OnAssign is called by the broker client on every (re)assignment. Under the
// earliest policy every partition is rewound to the beginning; the result is
// always handed back to the client. Running it again yields the same offsets.
func (m *SubscriptionManager) OnAssign(ctx context.Context, partitions []TopicPartition) {
	loopMetrics.Assignments.WithLabelValues(m.Pattern).Inc()

	if m.Config.OffsetReset == models.OffsetEarliest {
		for i := range partitions {
			partitions[i].Offset = OffsetBeginning
		}
	}

	if err := m.Client.Assign(ctx, partitions); err != nil {
		m.Logger.Error("cannot apply partition assignment", zap.Error(err))
		return
	}
	m.Logger.Info("partitions assigned", zap.String("partitions", describeAssignment(partitions)))
}

// PollOnce performs exactly one bounded poll. It never fails out of band:
// broker and decode problems come back as a PollError result.
func (m *SubscriptionManager) PollOnce(ctx context.Context, timeout time.Duration) PollResult {
	msg := m.Client.Poll(ctx, timeout)
	if msg == nil {
		return PollResult{Kind: NoMessage}
	}

	if err := msg.Error(); err != nil {
		perr := &PollTransportError{Topic: msg.Topic(), Partition: msg.Partition(), Err: err}
		loopMetrics.PollErrors.WithLabelValues(m.Pattern, "transport").Inc()
		m.Logger.Warn("poll failed", zap.Error(perr))
		return PollResult{Kind: PollError, Err: perr}
	}

	record := models.Record{
		Key:       msg.Key(),
		Value:     msg.Value(),
		Topic:     msg.Topic(),
		Partition: msg.Partition(),
		Offset:    msg.Offset(),
		Timestamp: msg.Timestamp(),
	}

	if err := m.decode(&record); err != nil {
		derr := &DecodeError{Topic: record.Topic, Partition: record.Partition, Offset: record.Offset, Err: err}
		loopMetrics.PollErrors.WithLabelValues(m.Pattern, "decode").Inc()
		m.Logger.Warn("dropping undecodable record", zap.Error(derr))
		return PollResult{Kind: PollError, Err: derr}
	}

	m.Logger.Debug("record received",
		zap.String("topic", record.Topic),
		zap.Int32("partition", record.Partition),
		zap.Int64("offset", record.Offset))
	return PollResult{Kind: Message, Record: record}
}

// Close releases the connection. Only call it once polling has stopped;
// further calls are no-ops.
func (m *SubscriptionManager) Close() {
	m.closeOnce.Do(func() {
		m.Client.Close()
		m.Logger.Info("consumer closed")
	})
}

func (m *SubscriptionManager) decode(record *models.Record) error {
	key, err := m.Decoder.DecodeKey(record.Topic, record.Key)
	if err != nil {
		return fmt.Errorf("key: %w", err)
	}
	value, err := m.Decoder.DecodeValue(record.Topic, record.Value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	record.DecodedKey, record.Decoded = key, value
	return nil
}

// ValidateConsumerConfig checks everything needed to reach the cluster.
func ValidateConsumerConfig(conf *models.ConsumerConfig, pattern string) error {
	if conf == nil {
		return errors.EmptyParamErr("config")
	}
	ve := errors.ValidationErrs()

	if pattern == "" {
		ve.Add("topic_pattern", "cannot be empty")
	}
	if len(conf.Brokers) == 0 {
		ve.Add("brokers", "cannot be empty")
	}
	for _, b := range seedBrokers(conf.Brokers) {
		if _, port, err := net.SplitHostPort(b); err != nil || port == "" {
			ve.Add("brokers", fmt.Sprintf("%q is not host:port", b))
		}
	}
	if conf.GroupID == "" {
		ve.Add("group_id", "cannot be empty")
	}
	switch conf.DecodeMode {
	case models.DecodeRaw:
	case models.DecodeAvro:
		u, err := url.Parse(conf.SchemaRegistry)
		if conf.SchemaRegistry == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			ve.Add("schema_registry", "must be an http(s) URL in avro mode")
		}
	default:
		ve.Add("decode_mode", fmt.Sprintf("unknown mode %q", conf.DecodeMode))
	}
	switch conf.OffsetReset {
	case models.OffsetEarliest, models.OffsetDefault:
	default:
		ve.Add("offset_reset", fmt.Sprintf("unknown policy %q", conf.OffsetReset))
	}
	if conf.PollTimeout <= 0 {
		ve.Add("poll_timeout", "must be positive")
	}
	if conf.SleepInterval <= 0 {
		ve.Add("sleep_interval", "must be positive")
	}

	if err := ve.Err(); err != nil {
		return errors.ValidationFailedErr(err)
	}
	return nil
}

// describeAssignment renders "topic:[0,1,2]" pairs in a stable order.
func describeAssignment(partitions []TopicPartition) string {
	byTopic := make(map[string][]int32)
	for _, tp := range partitions {
		byTopic[tp.Topic] = append(byTopic[tp.Topic], tp.Partition)
	}
	topics := make([]string, 0, len(byTopic))
	for t := range byTopic {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	parts := make([]string, 0, len(topics))
	for _, t := range topics {
		ps := byTopic[t]
		sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
		parts = append(parts, fmt.Sprintf("%s:[%s]", t, utils.JoinInt32Slice(ps)))
	}
	return strings.Join(parts, " ")
}
