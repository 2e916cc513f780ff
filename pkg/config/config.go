package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int      `yaml:"port"`
		ReadTimeout     Duration `yaml:"read_timeout"`
		WriteTimeout    Duration `yaml:"write_timeout"`
		ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Kafka struct {
		Brokers  []string `yaml:"brokers"`
		Topic    string   `yaml:"topic"`
		Consumer struct {
			GroupID          string   `yaml:"group_id"`
			Workers          int      `yaml:"workers"`
			BufferSize       int      `yaml:"buffer_size"`
			RetryMax         int      `yaml:"retry_max"`
			BackoffMin       Duration `yaml:"backoff_min"`
			BackoffMax       Duration `yaml:"backoff_max"`
			DLQTopic         string   `yaml:"dlq_topic"`
			MinBytes         int      `yaml:"min_bytes"`
			MaxBytes         int      `yaml:"max_bytes"`
			MaxFetchFailures int      `yaml:"max_fetch_failures"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Addr      string `yaml:"addr"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`
	Window struct {
		Capacity      int      `yaml:"capacity"`
		SkewTolerance Duration `yaml:"skew_tolerance"`
	} `yaml:"window"`
	Indicators struct {
		SMAPeriod        int `yaml:"sma_period"`
		EMAPeriod        int `yaml:"ema_period"`
		VolatilityPeriod int `yaml:"volatility_period"`
		RSIPeriod        int `yaml:"rsi_period"`
		MACDFast         int `yaml:"macd_fast"`
		MACDSlow         int `yaml:"macd_slow"`
	} `yaml:"indicators"`
	Correlation struct {
		Period         int      `yaml:"period"`
		AlignTolerance Duration `yaml:"align_tolerance"`
		Pairs          []Pair   `yaml:"pairs"`
	} `yaml:"correlation"`
	Publish struct {
		RetryMax   int      `yaml:"retry_max"`
		BackoffMin Duration `yaml:"backoff_min"`
		BackoffMax Duration `yaml:"backoff_max"`
		OpTimeout  Duration `yaml:"op_timeout"`
		TTL        struct {
			SMA         Duration `yaml:"sma"`
			EMA         Duration `yaml:"ema"`
			RSI         Duration `yaml:"rsi"`
			MACD        Duration `yaml:"macd"`
			Volatility  Duration `yaml:"volatility"`
			Correlation Duration `yaml:"correlation"`
			Snapshot    Duration `yaml:"snapshot"`
		} `yaml:"ttl"`
	} `yaml:"publish"`
	Latest struct {
		StalenessCeiling Duration `yaml:"staleness_ceiling"`
	} `yaml:"latest"`
	Supervisor struct {
		BackoffBase      Duration `yaml:"backoff_base"`
		BackoffCap       Duration `yaml:"backoff_cap"`
		StableReset      Duration `yaml:"stable_reset"`
		LagPollInterval  Duration `yaml:"lag_poll_interval"`
		LagWarnThreshold int64    `yaml:"lag_warn_threshold"`
	} `yaml:"supervisor"`
}

// Pair names a correlation pairing, written in YAML as "base:quote".
type Pair struct {
	Base  string
	Quote string
}

func (p *Pair) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	base, quote, ok := strings.Cut(s, ":")
	if !ok {
		return fmt.Errorf("correlation pair %q must be \"base:quote\"", s)
	}
	p.Base = strings.TrimSpace(base)
	p.Quote = strings.TrimSpace(quote)
	return nil
}

func (p Pair) MarshalYAML() (interface{}, error) {
	return p.Base + ":" + p.Quote, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes raw YAML, fills defaults, and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.fillDefaults()

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
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("KAFKA_GROUP_ID"); v != "" {
		c.Kafka.Consumer.GroupID = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := os.Getenv("CORRELATION_PAIRS"); v != "" {
		pairs, err := parsePairList(v)
		if err != nil {
			return nil, fmt.Errorf("CORRELATION_PAIRS: %w", err)
		}
		c.Correlation.Pairs = pairs
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parsePairList(s string) ([]Pair, error) {
	var out []Pair
	for _, raw := range strings.Split(s, ",") {
		base, quote, ok := strings.Cut(strings.TrimSpace(raw), ":")
		if !ok {
			return nil, fmt.Errorf("pair %q must be \"base:quote\"", raw)
		}
		out = append(out, Pair{Base: strings.TrimSpace(base), Quote: strings.TrimSpace(quote)})
	}
	return out, nil
}

func (c *Config) fillDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	setDuration(&c.Server.ReadTimeout, 10*time.Second)
	setDuration(&c.Server.WriteTimeout, 10*time.Second)
	setDuration(&c.Server.ShutdownTimeout, 15*time.Second)
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "price_updates"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "indistream-indicators"
	}
	if c.Kafka.Consumer.Workers == 0 {
		c.Kafka.Consumer.Workers = 4
	}
	if c.Kafka.Consumer.BufferSize == 0 {
		c.Kafka.Consumer.BufferSize = 256
	}
	if c.Kafka.Consumer.RetryMax == 0 {
		c.Kafka.Consumer.RetryMax = 3
	}
	setDuration(&c.Kafka.Consumer.BackoffMin, 100*time.Millisecond)
	setDuration(&c.Kafka.Consumer.BackoffMax, 2*time.Second)
	if c.Kafka.Consumer.MinBytes == 0 {
		c.Kafka.Consumer.MinBytes = 1
	}
	if c.Kafka.Consumer.MaxBytes == 0 {
		c.Kafka.Consumer.MaxBytes = 10 << 20
	}
	if c.Kafka.Consumer.MaxFetchFailures == 0 {
		c.Kafka.Consumer.MaxFetchFailures = 5
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	if c.Window.Capacity == 0 {
		c.Window.Capacity = 200
	}
	setDuration(&c.Window.SkewTolerance, 5*time.Minute)

	if c.Indicators.SMAPeriod == 0 {
		c.Indicators.SMAPeriod = 20
	}
	if c.Indicators.EMAPeriod == 0 {
		c.Indicators.EMAPeriod = 20
	}
	if c.Indicators.VolatilityPeriod == 0 {
		c.Indicators.VolatilityPeriod = 20
	}
	if c.Indicators.RSIPeriod == 0 {
		c.Indicators.RSIPeriod = 14
	}
	if c.Indicators.MACDFast == 0 {
		c.Indicators.MACDFast = 12
	}
	if c.Indicators.MACDSlow == 0 {
		c.Indicators.MACDSlow = 26
	}

	if c.Correlation.Period == 0 {
		c.Correlation.Period = 30
	}
	setDuration(&c.Correlation.AlignTolerance, time.Minute)

	if c.Publish.RetryMax == 0 {
		c.Publish.RetryMax = 4
	}
	setDuration(&c.Publish.BackoffMin, 100*time.Millisecond)
	setDuration(&c.Publish.BackoffMax, 2*time.Second)
	setDuration(&c.Publish.OpTimeout, 2*time.Second)
	setDuration(&c.Publish.TTL.SMA, 30*time.Second)
	setDuration(&c.Publish.TTL.EMA, 30*time.Second)
	setDuration(&c.Publish.TTL.RSI, 30*time.Second)
	setDuration(&c.Publish.TTL.MACD, 60*time.Second)
	setDuration(&c.Publish.TTL.Volatility, 120*time.Second)
	setDuration(&c.Publish.TTL.Correlation, 300*time.Second)
	setDuration(&c.Publish.TTL.Snapshot, 30*time.Second)

	setDuration(&c.Latest.StalenessCeiling, 10*time.Minute)

	setDuration(&c.Supervisor.BackoffBase, time.Second)
	setDuration(&c.Supervisor.BackoffCap, 30*time.Second)
	setDuration(&c.Supervisor.StableReset, time.Minute)
	setDuration(&c.Supervisor.LagPollInterval, 10*time.Second)
	if c.Supervisor.LagWarnThreshold == 0 {
		c.Supervisor.LagWarnThreshold = 1000
	}
}

func setDuration(d *Duration, def time.Duration) {
	if *d == 0 {
		*d = Duration(def)
	}
}

// Validate checks if the configuration is valid. The pipeline refuses to
// start on violations instead of limping along with unusable settings.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required")
	}
	if c.Kafka.Consumer.GroupID == "" {
		return fmt.Errorf("kafka.consumer.group_id is required")
	}
	if c.Kafka.Consumer.Workers <= 0 {
		return fmt.Errorf("kafka.consumer.workers must be positive, got %d", c.Kafka.Consumer.Workers)
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Window.Capacity <= 0 {
		return fmt.Errorf("window.capacity must be positive, got %d", c.Window.Capacity)
	}
	if c.Window.SkewTolerance < 0 {
		return fmt.Errorf("window.skew_tolerance must not be negative")
	}
	for name, p := range map[string]int{
		"indicators.sma_period":        c.Indicators.SMAPeriod,
		"indicators.ema_period":        c.Indicators.EMAPeriod,
		"indicators.volatility_period": c.Indicators.VolatilityPeriod,
		"indicators.rsi_period":        c.Indicators.RSIPeriod,
		"indicators.macd_fast":         c.Indicators.MACDFast,
		"indicators.macd_slow":         c.Indicators.MACDSlow,
	} {
		if p <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, p)
		}
	}
	if c.Indicators.MACDFast >= c.Indicators.MACDSlow {
		return fmt.Errorf("indicators.macd_fast (%d) must be below macd_slow (%d)",
			c.Indicators.MACDFast, c.Indicators.MACDSlow)
	}
	if c.Correlation.Period < 2 {
		return fmt.Errorf("correlation.period must be at least 2, got %d", c.Correlation.Period)
	}
	if c.Correlation.AlignTolerance <= 0 {
		return fmt.Errorf("correlation.align_tolerance must be positive")
	}
	for _, p := range c.Correlation.Pairs {
		if p.Base == "" || p.Quote == "" {
			return fmt.Errorf("correlation pair %q has an empty side", p.Base+":"+p.Quote)
		}
		if p.Base == p.Quote {
			return fmt.Errorf("correlation pair %q correlates an asset with itself", p.Base)
		}
	}
	if c.Publish.RetryMax < 1 {
		return fmt.Errorf("publish.retry_max must be at least 1, got %d", c.Publish.RetryMax)
	}
	if err := ttlInRange("publish.ttl.sma", c.Publish.TTL.SMA, 10*time.Second, 60*time.Second); err != nil {
		return err
	}
	if err := ttlInRange("publish.ttl.ema", c.Publish.TTL.EMA, 10*time.Second, 60*time.Second); err != nil {
		return err
	}
	if err := ttlInRange("publish.ttl.rsi", c.Publish.TTL.RSI, 10*time.Second, 60*time.Second); err != nil {
		return err
	}
	if err := ttlInRange("publish.ttl.macd", c.Publish.TTL.MACD, 10*time.Second, 120*time.Second); err != nil {
		return err
	}
	if err := ttlInRange("publish.ttl.volatility", c.Publish.TTL.Volatility, 60*time.Second, 300*time.Second); err != nil {
		return err
	}
	if err := ttlInRange("publish.ttl.correlation", c.Publish.TTL.Correlation, 300*time.Second, 600*time.Second); err != nil {
		return err
	}
	if c.Latest.StalenessCeiling <= 0 {
		return fmt.Errorf("latest.staleness_ceiling must be positive")
	}
	if c.Supervisor.BackoffBase <= 0 {
		return fmt.Errorf("supervisor.backoff_base must be positive")
	}
	if c.Supervisor.BackoffCap < c.Supervisor.BackoffBase {
		return fmt.Errorf("supervisor.backoff_cap must be at least backoff_base")
	}
	return nil
}

func ttlInRange(name string, d Duration, lo, hi time.Duration) error {
	if d.Std() < lo || d.Std() > hi {
		return fmt.Errorf("%s must be between %s and %s, got %s", name, lo, hi, d.Std())
	}
	return nil
}
