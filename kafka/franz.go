package kafka

import (
	// Go Internal Packages
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	// Local Packages
	models "station-stream/models"

	// External Packages
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

// FranzClient implements BrokerClient on top of a franz-go group consumer.
// The underlying kgo.Client is created by Subscribe, because the topic set
// and the assignment hook are fixed at client construction.
type FranzClient struct {
	Config *models.ConsumerConfig
	Logger *zap.Logger

	opts []kgo.Opt

	mu     sync.Mutex
	client *kgo.Client
	admin  *kadm.Client

	// backlog holds records and errors that arrived in the same fetch as the
	// one already returned; only the polling goroutine touches it.
	backlog []BrokerMessage
}

// NewFranzClient prepares a client for the given brokers and group. Nothing
// is dialed until Subscribe.
func NewFranzClient(conf *models.ConsumerConfig, metrics *kprom.Metrics, logger *zap.Logger) *FranzClient {
	opts := []kgo.Opt{
		kgo.SeedBrokers(seedBrokers(conf.Brokers)...), // Connects to Kafka brokers
		kgo.ConsumerGroup(conf.GroupID),               // Specifies the consumer group
	}
	if metrics != nil {
		opts = append(opts, kgo.WithHooks(metrics)) // Attaches monitoring hooks
	}
	if conf.OffsetReset == models.OffsetEarliest {
		// Partitions without a committed offset; committed ones are
		// rewound by the assignment callback.
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	}
	return &FranzClient{Config: conf, Logger: logger, opts: opts}
}

// Subscribe builds the kgo client consuming pattern. Patterns starting with
// "^" are treated as regular expressions. onAssign runs once the group's
// committed offsets are fetched and before fetching starts, so the offsets it
// assigns win over the committed ones.
func (c *FranzClient) Subscribe(pattern string, onAssign AssignFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return fmt.Errorf("kafka: already subscribed")
	}

	opts := append([]kgo.Opt{}, c.opts...)
	opts = append(opts,
		kgo.ConsumeTopics(pattern),
		kgo.AdjustFetchOffsetsFn(c.adjustFetchOffsets(onAssign)),
	)
	if IsRegexPattern(pattern) {
		opts = append(opts, kgo.ConsumeRegex())
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return err
	}
	c.client = client
	c.admin = kadm.NewClient(client)
	return nil
}

type pendingOffsetsKey struct{}

// pendingOffsets collects what Assign is asked for while an assignment
// callback runs; the adjust hook applies it to the fetched offsets.
type pendingOffsets map[string]map[int32]int64

func (c *FranzClient) adjustFetchOffsets(onAssign AssignFunc) func(context.Context, map[string]map[int32]kgo.Offset) (map[string]map[int32]kgo.Offset, error) {
	return func(ctx context.Context, fetched map[string]map[int32]kgo.Offset) (map[string]map[int32]kgo.Offset, error) {
		pending := make(pendingOffsets)
		onAssign(context.WithValue(ctx, pendingOffsetsKey{}, pending), fetchedPartitions(fetched))

		for topic, partitions := range pending {
			for partition, offset := range partitions {
				current, ok := fetched[topic][partition]
				if !ok {
					continue
				}
				switch {
				case offset == OffsetBeginning:
					fetched[topic][partition] = kgo.NewOffset().AtStart()
				case offset >= 0 && offset != current.EpochOffset().Offset:
					fetched[topic][partition] = kgo.NewOffset().At(offset)
				}
			}
		}
		return fetched, nil
	}
}

// Assign applies the offsets of partitions. Inside the assignment callback
// they replace the fetched group offsets. Outside of it OffsetBeginning is
// resolved to the partition's current start offset and the client is moved
// there. OffsetStored is left untouched in both cases.
func (c *FranzClient) Assign(ctx context.Context, partitions []TopicPartition) error {
	if pending, ok := ctx.Value(pendingOffsetsKey{}).(pendingOffsets); ok {
		for _, tp := range partitions {
			if pending[tp.Topic] == nil {
				pending[tp.Topic] = make(map[int32]int64)
			}
			pending[tp.Topic][tp.Partition] = tp.Offset
		}
		return nil
	}

	client, admin := c.current()
	if client == nil {
		return ErrNotSubscribed
	}

	var startTopics []string
	seen := make(map[string]bool)
	for _, tp := range partitions {
		if tp.Offset == OffsetBeginning && !seen[tp.Topic] {
			seen[tp.Topic] = true
			startTopics = append(startTopics, tp.Topic)
		}
	}

	var starts kadm.ListedOffsets
	if len(startTopics) > 0 {
		var err error
		starts, err = admin.ListStartOffsets(ctx, startTopics...)
		if err != nil {
			return fmt.Errorf("kafka: listing start offsets: %w", err)
		}
	}

	set := make(map[string]map[int32]kgo.EpochOffset)
	for _, tp := range partitions {
		offset := tp.Offset
		switch {
		case offset == OffsetBeginning:
			listed, ok := starts[tp.Topic][tp.Partition]
			if !ok {
				return fmt.Errorf("kafka: no start offset for %s[%d]", tp.Topic, tp.Partition)
			}
			if listed.Err != nil {
				return fmt.Errorf("kafka: start offset for %s[%d]: %w", tp.Topic, tp.Partition, listed.Err)
			}
			offset = listed.Offset
		case offset < 0:
			continue
		}
		if set[tp.Topic] == nil {
			set[tp.Topic] = make(map[int32]kgo.EpochOffset)
		}
		set[tp.Topic][tp.Partition] = kgo.EpochOffset{Epoch: -1, Offset: offset}
	}

	if len(set) > 0 {
		client.SetOffsets(set)
	}
	return nil
}

// Poll returns at most one record or fetch error, waiting up to timeout.
func (c *FranzClient) Poll(ctx context.Context, timeout time.Duration) BrokerMessage {
	if len(c.backlog) > 0 {
		return c.pop()
	}

	client, _ := c.current()
	if client == nil {
		return &franzMessage{err: ErrNotSubscribed}
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	fetches := client.PollRecords(pollCtx, 1)

	// Handle client shutdown
	if fetches.IsClientClosed() {
		return &franzMessage{err: ErrClientClosed}
	}

	for _, fe := range fetches.Errors() {
		// An expired poll context only means nothing arrived in time.
		if errors.Is(fe.Err, context.DeadlineExceeded) || errors.Is(fe.Err, context.Canceled) {
			continue
		}
		c.backlog = append(c.backlog, &franzMessage{err: fe.Err, topic: fe.Topic, partition: fe.Partition})
	}
	for _, record := range fetches.Records() {
		c.backlog = append(c.backlog, &franzMessage{record: record})
	}

	if len(c.backlog) == 0 {
		return nil
	}
	return c.pop()
}

// Close leaves the group and closes the connection.
func (c *FranzClient) Close() {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client != nil {
		client.Close()
	}
}

// Ping checks that at least one seed broker answers.
func (c *FranzClient) Ping(ctx context.Context) error {
	client, _ := c.current()
	if client == nil {
		return ErrNotSubscribed
	}
	return client.Ping(ctx)
}

func (c *FranzClient) pop() BrokerMessage {
	m := c.backlog[0]
	c.backlog[0] = nil
	c.backlog = c.backlog[1:]
	return m
}

func (c *FranzClient) current() (*kgo.Client, *kadm.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client, c.admin
}

// IsRegexPattern follows the librdkafka convention of a leading caret.
func IsRegexPattern(pattern string) bool {
	return strings.HasPrefix(pattern, "^")
}

// fetchedPartitions lists the fetched assignment sorted by topic and
// partition. Committed offsets are kept, anything relative becomes
// OffsetStored.
func fetchedPartitions(fetched map[string]map[int32]kgo.Offset) []TopicPartition {
	var out []TopicPartition
	for topic, partitions := range fetched {
		for p, o := range partitions {
			offset := o.EpochOffset().Offset
			if offset < 0 {
				offset = OffsetStored
			}
			out = append(out, TopicPartition{Topic: topic, Partition: p, Offset: offset})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Partition < out[j].Partition
	})
	return out
}

// seedBrokers strips listener prefixes such as "PLAINTEXT://".
func seedBrokers(brokers []string) []string {
	out := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if i := strings.Index(b, "://"); i >= 0 {
			b = b[i+3:]
		}
		out = append(out, b)
	}
	return out
}

type franzMessage struct {
	record    *kgo.Record
	err       error
	topic     string
	partition int32
}

func (m *franzMessage) Key() []byte {
	if m.record == nil {
		return nil
	}
	return m.record.Key
}

func (m *franzMessage) Value() []byte {
	if m.record == nil {
		return nil
	}
	return m.record.Value
}

func (m *franzMessage) Error() error { return m.err }

func (m *franzMessage) Topic() string {
	if m.record == nil {
		return m.topic
	}
	return m.record.Topic
}

func (m *franzMessage) Partition() int32 {
	if m.record == nil {
		return m.partition
	}
	return m.record.Partition
}

func (m *franzMessage) Offset() int64 {
	if m.record == nil {
		return -1
	}
	return m.record.Offset
}

func (m *franzMessage) Timestamp() time.Time {
	if m.record == nil {
		return time.Time{}
	}
	return m.record.Timestamp
}
