package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/engine"
	"TradeGate/internal/execution"
	"TradeGate/internal/risk"
)

type Config struct {
	Environment string `yaml:"environment"`
	Logging     struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Engine   engine.Config `yaml:"engine"`
	Execution struct {
		Mode              string               `yaml:"mode"`
		CacheSize         int                  `yaml:"cache_size"`
		EntropyEnabled    bool                 `yaml:"entropy_enabled"`
		EntropyFixedDelay time.Duration        `yaml:"entropy_fixed_delay"`
		RateLimit         struct {
			Enabled      bool    `yaml:"enabled"`
			Capacity     float64 `yaml:"capacity"`
			RefillPerSec float64 `yaml:"refill_per_sec"`
		} `yaml:"rate_limit"`
		Paper             execution.PaperConfig    `yaml:"paper"`
		SandboxMaxAmount  float64                  `yaml:"sandbox_max_amount"`
		LatencyThresholds models.LatencyThresholds `yaml:"latency_thresholds"`
	} `yaml:"execution"`
	Risk     risk.ThresholdConfig  `yaml:"risk"`
	Drawdown struct {
		Preset string                `yaml:"preset"`
		Config models.DrawdownConfig `yaml:"config"`
	} `yaml:"drawdown"`
	Redis struct {
		Host         string `yaml:"host"`
		Port         int    `yaml:"port"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		Prefix       string `yaml:"prefix"`
		PoolSize     int    `yaml:"pool_size"`
		MinIdleConns int    `yaml:"min_idle_conns"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EquityTopic  string   `yaml:"equity_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Fill struct defaults first so YAML can override them, including
	// overriding back to explicit zero values.
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("EXECUTION_MODE"); v != "" {
		c.Execution.Mode = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("EQUITY_TOPIC"); v != "" {
		c.Kafka.EquityTopic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Execution.Mode {
	case "", "live", "paper", "sandbox":
	default:
		return fmt.Errorf("execution.mode must be 'live', 'paper' or 'sandbox', got '%s'", c.Execution.Mode)
	}
	switch c.Drawdown.Preset {
	case "", "default", "conservative", "aggressive":
	default:
		return fmt.Errorf("drawdown.preset must be 'default', 'conservative' or 'aggressive', got '%s'", c.Drawdown.Preset)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}

// DrawdownConfig resolves the preset plus overrides into the tracker
// configuration. A zero-value config block falls back to the preset.
func (c *Config) DrawdownConfig() models.DrawdownConfig {
	var base models.DrawdownConfig
	switch c.Drawdown.Preset {
	case "conservative":
		base = models.ConservativeDrawdownConfig()
	case "aggressive":
		base = models.AggressiveDrawdownConfig()
	default:
		base = models.DefaultDrawdownConfig()
	}
	// An explicit config block that deviates from the stock values wins
	// over the preset.
	if c.Drawdown.Config != models.DefaultDrawdownConfig() {
		return c.Drawdown.Config
	}
	return base
}
