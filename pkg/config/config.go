package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Engine struct {
		Assets            []string      `yaml:"assets"`
		TickInterval      time.Duration `yaml:"tick_interval" default:"5s"`
		TickBudget        time.Duration `yaml:"tick_budget" default:"500ms"`
		QueueSize         int           `yaml:"queue_size" default:"256"`
		BufferLimit       int           `yaml:"buffer_limit" default:"512"`
		FingerprintTTL    time.Duration `yaml:"fingerprint_ttl" default:"5m"`
		StalenessWindow   time.Duration `yaml:"staleness_window" default:"5m"`
		MirrorInterval    time.Duration `yaml:"mirror_interval" default:"1m"`
		ConfirmationBoost float64       `yaml:"confirmation_boost" default:"1.25"`
	} `yaml:"engine"`
	Gate struct {
		BuyThreshold  float64       `yaml:"buy_threshold" default:"0.3"`
		SellThreshold float64       `yaml:"sell_threshold" default:"-0.3"`
		Cooldown      time.Duration `yaml:"cooldown" default:"15m"`
	} `yaml:"gate"`
	Correlation struct {
		Window          int     `yaml:"window" default:"64"`
		InstrumentLimit int     `yaml:"instrument_limit" default:"16"`
		Bound           float64 `yaml:"bound" default:"0.6"`
		Gain            float64 `yaml:"gain" default:"0.1"`
	} `yaml:"correlation"`
	Optimizer struct {
		Schedule     string        `yaml:"schedule" default:"0 */2 * * *"`
		LearningRate float64       `yaml:"learning_rate" default:"0.1"`
		MaxStep      float64       `yaml:"max_step" default:"0.05"`
		MinWeight    float64       `yaml:"min_weight" default:"0.05"`
		MaxWeight    float64       `yaml:"max_weight" default:"1.0"`
		Lookback     time.Duration `yaml:"lookback" default:"48h"`
		MinOutcomes  int           `yaml:"min_outcomes" default:"10"`
	} `yaml:"optimizer"`
	Trading struct {
		AutoEnabled bool          `yaml:"auto_enabled"`
		Mode        string        `yaml:"mode" default:"paper"`
		ExecutorURL string        `yaml:"executor_url"`
		APIKey      string        `yaml:"api_key"`
		Timeout     time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"trading"`
	Alert struct {
		WebhookURL string        `yaml:"webhook_url"`
		Token      string        `yaml:"token"`
		Timeout    time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"alert"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		SignalsTopic  string   `yaml:"signals_topic" default:"tradepulse.signals"`
		DecisionTopic string   `yaml:"decision_topic" default:"tradepulse.decisions"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"tradepulse-engine"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
		Throttle struct {
			Rate  float64 `yaml:"rate" default:"50"`
			Burst float64 `yaml:"burst" default:"100"`
		} `yaml:"throttle"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"tradepulse"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns     int           `yaml:"max_idle_conns" default:"5"`
	} `yaml:"clickhouse"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Watch struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
	} `yaml:"watch"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
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
	if v := os.Getenv("ASSETS"); v != "" {
		c.Engine.Assets = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("WATCH_API_KEY"); v != "" {
		c.Watch.APIKey = v
	}
	if v := os.Getenv("ENABLE_AUTO_TRADING"); v != "" {
		c.Trading.AutoEnabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("TRADE_MODE"); v != "" {
		c.Trading.Mode = v
	}
	if v := os.Getenv("ALERT_WEBHOOK_URL"); v != "" {
		c.Alert.WebhookURL = v
	}

	return c, nil
}

// Validate checks if the configuration is valid. Malformed bounds and
// thresholds are refused at startup rather than silently corrected.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Engine.Assets) == 0 {
		return fmt.Errorf("engine.assets cannot be empty")
	}
	if c.Gate.BuyThreshold <= 0 {
		return fmt.Errorf("gate.buy_threshold must be positive, got %v", c.Gate.BuyThreshold)
	}
	if c.Gate.SellThreshold >= 0 {
		return fmt.Errorf("gate.sell_threshold must be negative, got %v", c.Gate.SellThreshold)
	}
	if c.Gate.Cooldown <= 0 {
		return fmt.Errorf("gate.cooldown must be positive, got %v", c.Gate.Cooldown)
	}
	if c.Optimizer.MinWeight <= 0 || c.Optimizer.MaxWeight <= c.Optimizer.MinWeight {
		return fmt.Errorf("optimizer weight bounds invalid: [%v, %v]", c.Optimizer.MinWeight, c.Optimizer.MaxWeight)
	}
	if c.Correlation.Window < 2 {
		return fmt.Errorf("correlation.window must be at least 2, got %d", c.Correlation.Window)
	}
	if c.Correlation.Bound < 0 || c.Correlation.Bound > 1 {
		return fmt.Errorf("correlation.bound must be in [0, 1], got %v", c.Correlation.Bound)
	}
	if c.ClickHouse.MaxOpenConns < 1 || c.ClickHouse.MaxIdleConns < 0 || c.ClickHouse.MaxIdleConns > c.ClickHouse.MaxOpenConns {
		return fmt.Errorf("clickhouse pool bounds invalid: open=%d idle=%d", c.ClickHouse.MaxOpenConns, c.ClickHouse.MaxIdleConns)
	}
	if c.Trading.Mode != "paper" && c.Trading.Mode != "live" {
		return fmt.Errorf("trading.mode must be 'paper' or 'live', got '%s'", c.Trading.Mode)
	}
	return nil
}
