package commands

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"gridtoken/internal/models"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	writeErr error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestSendCommandPublishesResetPayload(t *testing.T) {
	writer := &fakeWriter{}
	dispatcher := &Dispatcher{writer: writer, logger: zap.NewNop()}

	err := dispatcher.SendCommand(context.Background(), "meter-1", models.ResetSettlementPayload(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.messages))
	}
	msg := writer.messages[0]
	if string(msg.Key) != "meter-1" {
		t.Errorf("message key = %s, want meter-1 for per-device ordering", msg.Key)
	}

	var cmd models.DeviceCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		t.Fatalf("decode command: %v", err)
	}
	if cmd.CommandID == "" {
		t.Errorf("missing command id")
	}
	if cmd.MeterID != "meter-1" || cmd.AccountID != 42 {
		t.Errorf("command envelope = %+v", cmd)
	}
	if cmd.Payload.Energy == nil || cmd.Payload.Energy.ResetSettlement != "all" {
		t.Errorf("payload = %+v, want reset_settlement all", cmd.Payload)
	}
}

func TestSendCommandPropagatesWriteError(t *testing.T) {
	writer := &fakeWriter{writeErr: errors.New("broker down")}
	dispatcher := &Dispatcher{writer: writer, logger: zap.NewNop()}

	if err := dispatcher.SendCommand(context.Background(), "meter-1", models.ResetSettlementPayload(), 42); err == nil {
		t.Fatal("expected error")
	}
}
