package commands

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"gridtoken/internal/models"
)

// messageWriter is the subset of kafka.Writer the dispatcher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dispatcher publishes device-bound commands to the command topic. Meters
// subscribe to their own id; keying by meter id keeps per-device ordering.
type Dispatcher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewDispatcher builds a Kafka-backed dispatcher.
func NewDispatcher(brokers []string, topic string, logger *zap.Logger) *Dispatcher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
	}
	return &Dispatcher{writer: writer, logger: logger}
}

// SendCommand publishes one command for the meter.
func (d *Dispatcher) SendCommand(ctx context.Context, meterID string, payload models.CommandPayload, accountID int64) error {
	cmd := models.DeviceCommand{
		CommandID: uuid.NewString(),
		MeterID:   meterID,
		AccountID: accountID,
		Payload:   payload,
		IssuedAt:  time.Now().UTC(),
	}
	value, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	if err := d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(meterID),
		Value: value,
	}); err != nil {
		return err
	}
	d.logger.Debug("device command dispatched",
		zap.String("meter_id", meterID),
		zap.String("command_id", cmd.CommandID),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (d *Dispatcher) Close() error {
	return d.writer.Close()
}
