package config

import (
	"errors"
	"fmt"
	"strings"

	libconfig "gridtoken/libs/config"
)

// Config defines settlement service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"SETTLEMENT_HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn" env:"SETTLEMENT_POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"SETTLEMENT_REDIS_ADDR"`
		Password string `yaml:"password" env:"SETTLEMENT_REDIS_PASSWORD"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers        []string `yaml:"brokers" env:"SETTLEMENT_KAFKA_BROKERS"`
		TelemetryTopic string   `yaml:"telemetry_topic" env:"SETTLEMENT_KAFKA_TELEMETRY_TOPIC"`
		CommandTopic   string   `yaml:"command_topic" env:"SETTLEMENT_KAFKA_COMMAND_TOPIC"`
		ConsumerGroup  string   `yaml:"consumer_group" env:"SETTLEMENT_KAFKA_CONSUMER_GROUP"`
	} `yaml:"kafka"`
	Ledger struct {
		RPCURL          string `yaml:"rpc_url" env:"SETTLEMENT_LEDGER_RPC_URL"`
		ContractAddress string `yaml:"contract_address" env:"SETTLEMENT_LEDGER_CONTRACT"`
		OperatorKey     string `yaml:"operator_key" env:"SETTLEMENT_LEDGER_OPERATOR_KEY"`
		ChainID         int64  `yaml:"chain_id" env:"SETTLEMENT_LEDGER_CHAIN_ID"`
	} `yaml:"ledger"`
	Settlement struct {
		SweepEnabled        bool `yaml:"sweep_enabled" env:"SETTLEMENT_SWEEP_ENABLED"`
		SweepIntervalMin    int  `yaml:"sweep_interval_minutes" env:"SETTLEMENT_SWEEP_INTERVAL_MINUTES"`
		WindowMinutes       int  `yaml:"window_minutes" env:"SETTLEMENT_WINDOW_MINUTES"`
		SamplerWindowMin    int  `yaml:"sampler_window_minutes" env:"SETTLEMENT_SAMPLER_WINDOW_MINUTES"`
		SamplingTickSeconds int  `yaml:"sampling_tick_seconds" env:"SETTLEMENT_SAMPLING_TICK_SECONDS"`
	} `yaml:"settlement"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret" env:"SETTLEMENT_JWT_SECRET"`
	} `yaml:"auth"`
}

// Load configuration using shared helper.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8086"
	cfg.Kafka.TelemetryTopic = "meter.telemetry"
	cfg.Kafka.CommandTopic = "meter.commands"
	cfg.Kafka.ConsumerGroup = "settlement-service"
	cfg.Ledger.ChainID = 1
	cfg.Settlement.SweepEnabled = true
	cfg.Settlement.SweepIntervalMin = 5
	cfg.Settlement.WindowMinutes = 5
	cfg.Settlement.SamplerWindowMin = 10
	cfg.Settlement.SamplingTickSeconds = 1

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return nil, errors.New("config: redis addr required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, errors.New("config: kafka brokers required")
	}
	if strings.TrimSpace(cfg.Ledger.RPCURL) == "" {
		return nil, errors.New("config: ledger rpc url required")
	}
	if strings.TrimSpace(cfg.Ledger.ContractAddress) == "" {
		return nil, errors.New("config: ledger contract address required")
	}
	if strings.TrimSpace(cfg.Ledger.OperatorKey) == "" {
		return nil, errors.New("config: ledger operator key required")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("config: jwt secret required")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8086"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
