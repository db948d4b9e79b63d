package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"gridtoken/internal/models"
)

// TelemetryWriter is the store-side write path for incoming readings.
type TelemetryWriter interface {
	SaveLatest(ctx context.Context, reading models.MeterReading) error
	SaveRealtime(ctx context.Context, rt models.RealtimePower) error
}

// Consumer reads meter telemetry from Kafka and maps it into the telemetry
// store. Parsing is a straight field mapping; malformed messages are logged
// and skipped so one bad meter cannot stall the partition.
type Consumer struct {
	reader *kafka.Reader
	store  TelemetryWriter
	logger *zap.Logger
}

// NewConsumer builds the telemetry consumer.
func NewConsumer(brokers []string, topic, groupID string, store TelemetryWriter, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  time.Second,
	})
	return &Consumer{reader: reader, store: store, logger: logger}
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := c.handle(ctx, msg.Value); err != nil {
			c.logger.Warn("telemetry message skipped",
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("telemetry commit failed", zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, value []byte) error {
	var reading models.MeterReading
	if err := json.Unmarshal(value, &reading); err != nil {
		return err
	}
	if reading.MeterID == "" {
		return errors.New("ingest: missing meter id")
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}
	if err := c.store.SaveLatest(ctx, reading); err != nil {
		return err
	}
	return c.store.SaveRealtime(ctx, MapRealtime(reading))
}

// MapRealtime derives the pre-aggregated real-time view from a full reading.
func MapRealtime(reading models.MeterReading) models.RealtimePower {
	return models.RealtimePower{
		MeterID:   reading.MeterID,
		NetFlowKw: reading.PowerKw,
		ExportKwh: reading.Export.SettlementEnergyWh / 1000,
		ImportKwh: reading.Import.SettlementEnergyWh / 1000,
		Timestamp: reading.Timestamp,
	}
}

// Close releases the Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
