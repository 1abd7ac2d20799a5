package kafka

import (
	// Go Internal Packages
	"context"
	"testing"
	"time"

	// Local Packages
	models "station-stream/models"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kfake"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestFetchedPartitions(t *testing.T) {
	got := fetchedPartitions(map[string]map[int32]kgo.Offset{
		"stations": {1: kgo.NewOffset().At(57), 0: kgo.NewOffset().AtStart()},
		"arrivals": {3: kgo.NewOffset().AtEnd()},
	})

	assert.Equal(t, []TopicPartition{
		{Topic: "arrivals", Partition: 3, Offset: OffsetStored},
		{Topic: "stations", Partition: 0, Offset: OffsetStored},
		{Topic: "stations", Partition: 1, Offset: 57},
	}, got)
}

func TestFranzClient_AssignInsideCallbackRewritesFetchedOffsets(t *testing.T) {
	c := NewFranzClient(testConsumerConfig(), nil, zaptest.NewLogger(t))
	adjust := c.adjustFetchOffsets(func(ctx context.Context, partitions []TopicPartition) {
		partitions[0].Offset = OffsetBeginning
		partitions[1].Offset = 9
		require.NoError(t, c.Assign(ctx, partitions))
	})

	got, err := adjust(context.Background(), map[string]map[int32]kgo.Offset{
		"stations": {0: kgo.NewOffset().At(57), 1: kgo.NewOffset().At(57), 2: kgo.NewOffset().At(57)},
	})
	require.NoError(t, err)

	assert.Equal(t, kgo.NewOffset().AtStart(), got["stations"][0])
	assert.Equal(t, kgo.NewOffset().At(9), got["stations"][1])
	assert.Equal(t, kgo.NewOffset().At(57), got["stations"][2])
}

func TestFranzClient_UnsubscribedCalls(t *testing.T) {
	c := NewFranzClient(testConsumerConfig(), nil, zaptest.NewLogger(t))

	msg := c.Poll(context.Background(), time.Millisecond)
	require.NotNil(t, msg)
	assert.ErrorIs(t, msg.Error(), ErrNotSubscribed)
	assert.Nil(t, msg.Value())
	assert.Equal(t, int64(-1), msg.Offset())

	assert.ErrorIs(t, c.Assign(context.Background(), []TopicPartition{{Topic: "stations"}}), ErrNotSubscribed)
	assert.ErrorIs(t, c.Ping(context.Background()), ErrNotSubscribed)
	assert.NotPanics(t, c.Close)
}

func TestFranzClient_BacklogDrainsInOrder(t *testing.T) {
	c := NewFranzClient(testConsumerConfig(), nil, zaptest.NewLogger(t))
	first := &fakeMessage{offset: 1}
	second := &fakeMessage{offset: 2}
	c.backlog = []BrokerMessage{first, second}

	assert.Same(t, first, c.Poll(context.Background(), time.Millisecond))
	assert.Same(t, second, c.Poll(context.Background(), time.Millisecond))
	assert.Empty(t, c.backlog)
}

var stationValues = []string{"a", "b", "c", "d", "e"}

// newStationsCluster starts a single broker fake cluster holding a one
// partition "stations" topic filled with values.
func newStationsCluster(t *testing.T, values ...string) []string {
	t.Helper()
	cluster, err := kfake.NewCluster(kfake.NumBrokers(1), kfake.SeedTopics(1, "stations"))
	require.NoError(t, err)
	t.Cleanup(cluster.Close)
	addrs := cluster.ListenAddrs()

	producer, err := kgo.NewClient(kgo.SeedBrokers(addrs...))
	require.NoError(t, err)
	defer producer.Close()

	records := make([]*kgo.Record, 0, len(values))
	for _, v := range values {
		records = append(records, &kgo.Record{Topic: "stations", Value: []byte(v)})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, producer.ProduceSync(ctx, records...).FirstErr())
	return addrs
}

func commitStationsOffset(t *testing.T, addrs []string, group string, offset int64) {
	t.Helper()
	cl, err := kgo.NewClient(kgo.SeedBrokers(addrs...))
	require.NoError(t, err)
	defer cl.Close()

	var offsets kadm.Offsets
	offsets.AddOffset("stations", 0, offset, -1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, kadm.NewClient(cl).CommitAllOffsets(ctx, group, offsets))
}

func clusterConsumerConfig(addrs []string, group string, reset models.OffsetReset) *models.ConsumerConfig {
	return &models.ConsumerConfig{
		Brokers:       addrs,
		GroupID:       group,
		DecodeMode:    models.DecodeRaw,
		PollTimeout:   100 * time.Millisecond,
		SleepInterval: time.Second,
		OffsetReset:   reset,
	}
}

// firstRecord polls until the group has joined and a record arrives.
func firstRecord(t *testing.T, m *SubscriptionManager) models.Record {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		res := m.PollOnce(context.Background(), 100*time.Millisecond)
		switch res.Kind {
		case Message:
			return res.Record
		case PollError:
			t.Logf("poll error while joining: %v", res.Err)
		}
	}
	t.Fatal("no record received before the deadline")
	return models.Record{}
}

func TestFranzClient_EarliestOverridesCommittedOffset(t *testing.T) {
	addrs := newStationsCluster(t, stationValues...)
	commitStationsOffset(t, addrs, "stations-earliest", 3)

	m, err := NewSubscriptionManager(clusterConsumerConfig(addrs, "stations-earliest", models.OffsetEarliest), "stations", zap.NewNop())
	require.NoError(t, err)
	defer m.Close()

	record := firstRecord(t, m)
	assert.Equal(t, int64(0), record.Offset)
	assert.Equal(t, "a", string(record.Value))
}

func TestFranzClient_DefaultResumesFromCommittedOffset(t *testing.T) {
	addrs := newStationsCluster(t, stationValues...)
	commitStationsOffset(t, addrs, "stations-default", 3)

	m, err := NewSubscriptionManager(clusterConsumerConfig(addrs, "stations-default", models.OffsetDefault), "stations", zap.NewNop())
	require.NoError(t, err)
	defer m.Close()

	record := firstRecord(t, m)
	assert.Equal(t, int64(3), record.Offset)
	assert.Equal(t, "d", string(record.Value))
}

func TestFranzClient_PollReturnsOneRecordAtATime(t *testing.T) {
	addrs := newStationsCluster(t, stationValues...)

	c := NewFranzClient(clusterConsumerConfig(addrs, "stations-poll", models.OffsetEarliest), nil, zap.NewNop())
	require.NoError(t, c.Subscribe("stations", func(ctx context.Context, partitions []TopicPartition) {
		_ = c.Assign(ctx, partitions)
	}))
	defer c.Close()

	var first BrokerMessage
	deadline := time.Now().Add(15 * time.Second)
	for first == nil && time.Now().Before(deadline) {
		first = c.Poll(context.Background(), 100*time.Millisecond)
	}
	require.NotNil(t, first, "no record received before the deadline")
	require.NoError(t, first.Error())

	got := []string{string(first.Value())}
	offsets := []int64{first.Offset()}
	for len(got) < len(stationValues) && time.Now().Before(deadline) {
		msg := c.Poll(context.Background(), 100*time.Millisecond)
		if msg == nil {
			continue
		}
		require.NoError(t, msg.Error())
		got = append(got, string(msg.Value()))
		offsets = append(offsets, msg.Offset())
	}

	assert.Equal(t, stationValues, got)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, offsets)
	assert.Nil(t, c.Poll(context.Background(), 200*time.Millisecond))
}
