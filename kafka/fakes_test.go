package kafka

import (
	// Go Internal Packages
	"context"
	"sync"
	"time"

	// Local Packages
	models "station-stream/models"
)

type fakeMessage struct {
	key       []byte
	value     []byte
	err       error
	topic     string
	partition int32
	offset    int64
}

func (m *fakeMessage) Key() []byte          { return m.key }
func (m *fakeMessage) Value() []byte        { return m.value }
func (m *fakeMessage) Error() error         { return m.err }
func (m *fakeMessage) Topic() string        { return m.topic }
func (m *fakeMessage) Partition() int32     { return m.partition }
func (m *fakeMessage) Offset() int64        { return m.offset }
func (m *fakeMessage) Timestamp() time.Time { return time.Time{} }

type fakeBroker struct {
	mu           sync.Mutex
	pattern      string
	onAssign     AssignFunc
	subscribeErr error
	assignErr    error
	assigned     [][]TopicPartition
	queue        []BrokerMessage
	pollCalls    int
	closeCalls   int
}

func (b *fakeBroker) Subscribe(pattern string, onAssign AssignFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribeErr != nil {
		return b.subscribeErr
	}
	b.pattern = pattern
	b.onAssign = onAssign
	return nil
}

func (b *fakeBroker) Poll(_ context.Context, _ time.Duration) BrokerMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pollCalls++
	if len(b.queue) == 0 {
		return nil
	}
	m := b.queue[0]
	b.queue = b.queue[1:]
	return m
}

func (b *fakeBroker) Assign(_ context.Context, partitions []TopicPartition) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot := append([]TopicPartition{}, partitions...)
	b.assigned = append(b.assigned, snapshot)
	return b.assignErr
}

func (b *fakeBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeCalls++
}

// scriptedPoller replays results, then reports NoMessage forever.
type scriptedPoller struct {
	mu      sync.Mutex
	results []PollResult
	calls   int
}

func (p *scriptedPoller) PollOnce(_ context.Context, _ time.Duration) PollResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.results) == 0 {
		return PollResult{Kind: NoMessage}
	}
	r := p.results[0]
	p.results = p.results[1:]
	return r
}

func (p *scriptedPoller) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type recordingHandler struct {
	mu      sync.Mutex
	records []models.Record
	err     error
}

func (h *recordingHandler) HandleRecord(_ context.Context, r models.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return h.err
}

func (h *recordingHandler) Offsets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int64, 0, len(h.records))
	for _, r := range h.records {
		out = append(out, r.Offset)
	}
	return out
}

func testConsumerConfig() *models.ConsumerConfig {
	return &models.ConsumerConfig{
		Brokers:       []string{"PLAINTEXT://localhost:9092", "localhost:9093"},
		GroupID:       "station-stream-test",
		DecodeMode:    models.DecodeRaw,
		PollTimeout:   100 * time.Millisecond,
		SleepInterval: time.Second,
		OffsetReset:   models.OffsetEarliest,
	}
}

func messageResult(offset int64) PollResult {
	return PollResult{Kind: Message, Record: models.Record{Topic: "stations", Offset: offset}}
}
