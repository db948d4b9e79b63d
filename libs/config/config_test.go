package config

import (
	"testing"
)

type sampleConfig struct {
	HTTP struct {
		Port string `yaml:"port"`
	} `yaml:"http"`
	Kafka struct {
		Brokers []string `yaml:"brokers" env:"SAMPLE_KAFKA_BROKERS"`
	} `yaml:"kafka"`
	Limit int `yaml:"limit" env:"SAMPLE_LIMIT"`
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9001")
	t.Setenv("SAMPLE_LIMIT", "25")

	cfg := &sampleConfig{}
	if err := LoadConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != "9001" {
		t.Errorf("port = %q, want 9001", cfg.HTTP.Port)
	}
	if cfg.Limit != 25 {
		t.Errorf("limit = %d, want 25", cfg.Limit)
	}
}

func TestLoadConfigCommaSeparatedSlices(t *testing.T) {
	t.Setenv("SAMPLE_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092 ,kafka-3:9092")

	cfg := &sampleConfig{}
	if err := LoadConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"kafka-1:9092", "kafka-2:9092", "kafka-3:9092"}
	if len(cfg.Kafka.Brokers) != len(want) {
		t.Fatalf("brokers = %v, want %v", cfg.Kafka.Brokers, want)
	}
	for i := range want {
		if cfg.Kafka.Brokers[i] != want[i] {
			t.Errorf("broker[%d] = %q, want %q", i, cfg.Kafka.Brokers[i], want[i])
		}
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(sampleConfig{}); err == nil {
		t.Fatal("expected error for non-pointer target")
	}
}
