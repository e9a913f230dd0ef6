package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/targets"
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
		RateLimit       struct {
			Enabled bool          `yaml:"enabled"`
			Limit   int           `yaml:"limit"`
			Window  time.Duration `yaml:"window"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Redis struct {
		Host      string `yaml:"host"`
		Port      int    `yaml:"port"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix"`
		Channel   string `yaml:"channel"`
	} `yaml:"redis"`
	ClickHouse struct {
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
	Kafka struct {
		Brokers  []string `yaml:"brokers"`
		Topic    string   `yaml:"topic"`
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
	Markets    []MarketDef                    `yaml:"markets"`
	Targets    targets.Config                 `yaml:"targets"`
	Signals    map[string]string              `yaml:"signals"`
	Supervisor struct {
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"supervisor"`
	Flush struct {
		Interval  time.Duration `yaml:"interval"`
		BatchSize int           `yaml:"batch_size"`
	} `yaml:"flush"`
}

// MarketDef is one market's YAML definition. Weekly windows are keyed by
// lowercase English weekday names, holidays by YYYY-MM-DD date.
type MarketDef struct {
	Key      string `yaml:"key"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
	Weekly   map[string]struct {
		Open      int `yaml:"open"`
		Close     int `yaml:"close"`
		Premarket int `yaml:"premarket"`
	} `yaml:"weekly"`
	Holidays map[string]struct {
		Name       string `yaml:"name"`
		EarlyClose int    `yaml:"early_close"`
	} `yaml:"holidays"`
	Control         bool `yaml:"control"`
	CaptureEnabled  bool `yaml:"capture_enabled"`
	IntradayEnabled bool `yaml:"intraday_enabled"`
	GradingEnabled  bool `yaml:"grading_enabled"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
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
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("markets cannot be empty")
	}
	seen := make(map[string]bool, len(c.Markets))
	for i, m := range c.Markets {
		if m.Key == "" {
			return fmt.Errorf("markets[%d].key is required", i)
		}
		if seen[m.Key] {
			return fmt.Errorf("duplicate market key '%s'", m.Key)
		}
		seen[m.Key] = true
		if _, err := time.LoadLocation(m.Timezone); err != nil {
			return fmt.Errorf("markets[%s].timezone: %w", m.Key, err)
		}
		for day := range m.Weekly {
			if _, ok := weekdays[strings.ToLower(day)]; !ok {
				return fmt.Errorf("markets[%s].weekly: unknown weekday '%s'", m.Key, day)
			}
		}
		for date := range m.Holidays {
			if _, err := time.Parse("2006-01-02", date); err != nil {
				return fmt.Errorf("markets[%s].holidays: bad date '%s'", m.Key, date)
			}
		}
	}
	for sym, sc := range c.Targets {
		switch targets.Mode(strings.ToUpper(string(sc.Mode))) {
		case targets.ModePoints, targets.ModePercent, targets.ModeDisabled:
		default:
			return fmt.Errorf("targets[%s].mode must be POINTS, PERCENT or DISABLED", sym)
		}
	}
	for sym, sig := range c.Signals {
		switch models.Signal(strings.ToUpper(sig)) {
		case models.SignalStrongBuy, models.SignalBuy, models.SignalHold,
			models.SignalSell, models.SignalStrongSell:
		default:
			return fmt.Errorf("signals[%s] must be STRONG_BUY, BUY, HOLD, SELL or STRONG_SELL", sym)
		}
	}
	return nil
}

// MarketModels converts the YAML market definitions into domain models.
func (c *Config) MarketModels() []*models.Market {
	out := make([]*models.Market, 0, len(c.Markets))
	for _, def := range c.Markets {
		m := &models.Market{
			Key:             def.Key,
			Name:            def.Name,
			Timezone:        def.Timezone,
			Weekly:          make(map[time.Weekday]models.SessionWindow, len(def.Weekly)),
			Holidays:        make(map[string]models.Holiday, len(def.Holidays)),
			Status:          models.StatusClosed,
			Control:         def.Control,
			CaptureEnabled:  def.CaptureEnabled,
			IntradayEnabled: def.IntradayEnabled,
			GradingEnabled:  def.GradingEnabled,
		}
		for day, w := range def.Weekly {
			m.Weekly[weekdays[strings.ToLower(day)]] = models.SessionWindow{
				Open:      w.Open,
				Close:     w.Close,
				Premarket: w.Premarket,
			}
		}
		for date, h := range def.Holidays {
			m.Holidays[date] = models.Holiday{Name: h.Name, EarlyClose: h.EarlyClose}
		}
		out = append(out, m)
	}
	return out
}

// SignalModels converts the per-symbol signal strings into domain signals.
func (c *Config) SignalModels() map[string]models.Signal {
	out := make(map[string]models.Signal, len(c.Signals))
	for sym, sig := range c.Signals {
		out[sym] = models.Signal(strings.ToUpper(sig))
	}
	return out
}
