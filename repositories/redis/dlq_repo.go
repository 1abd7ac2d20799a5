package redis

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"

	// Local Packages
	models "station-stream/models"

	// External Packages
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type DeadLetterQueue struct {
	client   *redis.Client
	logger   *zap.Logger
	listName string
}

func NewDeadLetterQueue(client *redis.Client, logger *zap.Logger, listName string) *DeadLetterQueue {
	return &DeadLetterQueue{client: client, logger: logger, listName: listName}
}

// Send parks the records under "dlq:{topic}:{partition}:{offset}" and pushes
// each key onto the dead letter list so they can be replayed in order.
func (r *DeadLetterQueue) Send(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	successCount := 0
	var lastErr error
	for _, record := range records {
		jsonData, err := json.Marshal(record)
		if err != nil {
			r.logger.Error("failed to marshal record", zap.Error(err))
			lastErr = err
			continue
		}

		key := fmt.Sprintf("dlq:%s:%d:%d", record.Topic, record.Partition, record.Offset)
		_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, jsonData, 0)
			pipe.RPush(ctx, r.listName, key)
			return nil
		})
		if err != nil {
			r.logger.Error("failed to store record", zap.String("key", key), zap.Error(err))
			lastErr = err
			continue
		}
		successCount++
	}

	if successCount > 0 {
		r.logger.Info("successfully sent records", zap.Int("count", successCount))
	}
	return lastErr
}
