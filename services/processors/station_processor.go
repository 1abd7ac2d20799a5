package processors

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"
	"strings"

	// Local Packages
	models "station-stream/models"

	// External Packages
	"go.uber.org/zap"
)

type StationRepository interface {
	UpsertStation(ctx context.Context, station models.MongoStation) error
}

type DeadLetterSender interface {
	Send(ctx context.Context, records []models.Record) error
}

// StationProcessor stores every station record it receives. It works on raw
// JSON values as well as on avro decoded payloads.
type StationProcessor struct {
	Logger      *zap.Logger
	StationRepo StationRepository
}

func NewStationProcessor(logger *zap.Logger, stationRepo StationRepository) *StationProcessor {
	return &StationProcessor{StationRepo: stationRepo, Logger: logger}
}

func (p *StationProcessor) HandleRecord(ctx context.Context, record models.Record) error {
	station, err := stationFromRecord(record)
	if err != nil {
		return fmt.Errorf("failed to read station from %s[%d]@%d: %w", record.Topic, record.Partition, record.Offset, err)
	}

	if err := p.StationRepo.UpsertStation(ctx, station.Transform()); err != nil {
		return fmt.Errorf("failed to upsert station %d: %w", station.StopID, err)
	}
	p.Logger.Debug("station stored",
		zap.Int("stop_id", station.StopID),
		zap.String("station_name", station.StationName))
	return nil
}

// stationFromRecord prefers the decoded payload and falls back to the raw
// value. Decoded avro records go through JSON so both paths share one mapping.
func stationFromRecord(record models.Record) (models.Station, error) {
	var station models.Station
	raw := record.Value
	if record.Decoded != nil {
		b, err := json.Marshal(unwrapUnions(record.Decoded))
		if err != nil {
			return station, err
		}
		raw = b
	}
	if len(raw) == 0 {
		return station, fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(raw, &station); err != nil {
		return station, err
	}
	return station, nil
}

// unwrapUnions replaces avro union values, which goavro decodes as a single
// entry map keyed by the branch type, with the branch value.
func unwrapUnions(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for field, value := range t {
			if branch, ok := value.(map[string]any); ok && len(branch) == 1 {
				for name, inner := range branch {
					if isUnionBranch(name) {
						value = inner
					}
				}
			}
			out[field] = unwrapUnions(value)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, value := range t {
			out[i] = unwrapUnions(value)
		}
		return out
	}
	return v
}

var avroPrimitives = map[string]bool{
	"null": true, "boolean": true, "int": true, "long": true, "float": true,
	"double": true, "bytes": true, "string": true,
}

// Named branches (records, enums, fixed) carry their full name.
func isUnionBranch(name string) bool {
	return avroPrimitives[name] || strings.Contains(name, ".")
}

// DeadLetterHandler wraps a handler and parks every record it fails on. The
// original error is still returned so the poll loop logs it.
type DeadLetterHandler struct {
	Next interface {
		HandleRecord(ctx context.Context, record models.Record) error
	}
	DLQ    DeadLetterSender
	Logger *zap.Logger
}

func (h *DeadLetterHandler) HandleRecord(ctx context.Context, record models.Record) error {
	err := h.Next.HandleRecord(ctx, record)
	if err == nil {
		return nil
	}
	if dlqErr := h.DLQ.Send(ctx, []models.Record{record}); dlqErr != nil {
		h.Logger.Error("failed to park record in dead letter queue",
			zap.String("topic", record.Topic),
			zap.Int64("offset", record.Offset),
			zap.Error(dlqErr))
	}
	return err
}
