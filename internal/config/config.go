package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Terminal TerminalConfig `mapstructure:"terminal"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", d.User, d.Password, d.Host, d.Port, d.Database)
}

type RabbitMQConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	VHost    string `mapstructure:"vhost"`
	TLS      bool   `mapstructure:"tls"`
}

type TerminalConfig struct {
	ID          string `mapstructure:"id"`
	Port        int    `mapstructure:"port"`
	OpeningHour int    `mapstructure:"opening_hour"`
	ClosingHour int    `mapstructure:"closing_hour"`
	// Percent applied to room subtotals; "0" leaves rooms untaxed.
	RoomTaxRatePercent string `mapstructure:"room_tax_rate_percent"`
	Timezone           string `mapstructure:"timezone"`
	SnapshotDir        string `mapstructure:"snapshot_dir"`
}

func (t TerminalConfig) RoomTaxRate() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(t.RoomTaxRatePercent))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (t TerminalConfig) Location() *time.Location {
	if t.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load reads path (YAML) with POS_* environment overrides, e.g.
// POS_DATABASE_HOST or POS_TERMINAL_PORT. A .env file in the working
// directory is loaded first when present. An empty path reads env only.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// every key needs a default so AutomaticEnv can see it during Unmarshal
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("rabbitmq.host", "")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.user", "guest")
	v.SetDefault("rabbitmq.password", "guest")
	v.SetDefault("rabbitmq.vhost", "/")
	v.SetDefault("rabbitmq.tls", false)

	v.SetDefault("terminal.id", "terminal-1")
	v.SetDefault("terminal.port", 3000)
	v.SetDefault("terminal.opening_hour", 8)
	v.SetDefault("terminal.closing_hour", 22)
	v.SetDefault("terminal.room_tax_rate_percent", "0")
	v.SetDefault("terminal.timezone", "")
	v.SetDefault("terminal.snapshot_dir", "")
}

func (c *Config) Validate() error {
	var errs []error
	if c.Database.Host == "" || c.Database.Database == "" {
		errs = append(errs, errors.New("database: host and database are required"))
	}
	if c.RabbitMQ.Host == "" {
		errs = append(errs, errors.New("rabbitmq: host is required"))
	}
	t := c.Terminal
	if t.Port < 1 || t.Port > 65535 {
		errs = append(errs, fmt.Errorf("terminal: port %d out of range", t.Port))
	}
	if t.OpeningHour < 0 || t.ClosingHour > 24 || t.OpeningHour >= t.ClosingHour {
		errs = append(errs, fmt.Errorf("terminal: invalid hours %d-%d", t.OpeningHour, t.ClosingHour))
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(t.RoomTaxRatePercent)); err != nil {
		errs = append(errs, fmt.Errorf("terminal: room_tax_rate_percent: %w", err))
	}
	if t.Timezone != "" {
		if _, err := time.LoadLocation(t.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("terminal: timezone: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// FindConfig returns the first config file that exists in the usual places.
func FindConfig() (string, error) {
	for _, p := range []string{"config.yaml", "deploy/config.example.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
