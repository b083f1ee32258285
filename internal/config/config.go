package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"homework-watcher/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Practicum PracticumConfig `mapstructure:"practicum"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig enables the optional single-instance lock.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	TrackServerDate bool          `mapstructure:"track_server_date"`
}

// PracticumConfig covers access to the review service API.
type PracticumConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Token          string        `mapstructure:"token"`
	AuthScheme     string        `mapstructure:"auth_scheme"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AlertingConfig defines chat delivery.
type AlertingConfig struct {
	RatePerMinute int            `mapstructure:"rate_per_minute"`
	RateBurst     int            `mapstructure:"rate_burst"`
	Telegram      TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram destination.
type TelegramConfig struct {
	Driver         string        `mapstructure:"driver"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Telegram delivery drivers.
const (
	DriverHTTP    = "http"
	DriverTelebot = "telebot"
)

// FatalConfigError reports required settings that are absent. The process
// must not start without them.
type FatalConfigError struct {
	Missing []string
}

func (e *FatalConfigError) Error() string {
	return "required configuration missing: " + strings.Join(e.Missing, ", ")
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HWWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// bindLegacyEnv accepts the variable names the bot has always been deployed with.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"practicum.token":             {"HWWATCHER_PRACTICUM_TOKEN", "PRACTICUM_TOKEN"},
		"alerting.telegram.bot_token": {"HWWATCHER_ALERTING_TELEGRAM_BOT_TOKEN", "TELEGRAM_TOKEN"},
		"alerting.telegram.chat_id":   {"HWWATCHER_ALERTING_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "hwwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	v.SetDefault("scheduler.interval", "600s")
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.track_server_date", false)

	v.SetDefault("practicum.endpoint", "https://practicum.yandex.ru/api/user_api/homework_statuses/")
	v.SetDefault("practicum.auth_scheme", "OAuth")
	v.SetDefault("practicum.request_timeout", "10s")
	v.SetDefault("practicum.user_agent", "")

	v.SetDefault("alerting.rate_per_minute", 0)
	v.SetDefault("alerting.rate_burst", 5)
	v.SetDefault("alerting.telegram.driver", DriverHTTP)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.request_timeout", "10s")

	v.SetDefault("metrics.listen_addr", "")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.advisory_lock_key", int64(0x68777763))
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate checks required credentials first, then the remaining values.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Practicum.Token) == "" {
		missing = append(missing, "practicum.token")
	}
	if strings.TrimSpace(c.Alerting.Telegram.BotToken) == "" {
		missing = append(missing, "alerting.telegram.bot_token")
	}
	if strings.TrimSpace(c.Alerting.Telegram.ChatID) == "" {
		missing = append(missing, "alerting.telegram.chat_id")
	}
	if len(missing) > 0 {
		return &FatalConfigError{Missing: missing}
	}

	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.StartupDelay < 0 {
		return fmt.Errorf("scheduler.startup_delay cannot be negative")
	}
	if c.Alerting.RatePerMinute < 0 {
		return fmt.Errorf("alerting.rate_per_minute cannot be negative")
	}
	switch c.Alerting.Telegram.Driver {
	case DriverHTTP:
	case DriverTelebot:
		if _, err := c.Alerting.Telegram.NumericChatID(); err != nil {
			return fmt.Errorf("alerting.telegram.chat_id must be numeric for the telebot driver: %w", err)
		}
	default:
		return fmt.Errorf("alerting.telegram.driver %q is not supported", c.Alerting.Telegram.Driver)
	}
	return nil
}

// NumericChatID parses the chat id for clients that need an integer.
func (t TelegramConfig) NumericChatID() (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(t.ChatID), 10, 64)
}
