package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"penalty-alerts/internal/logging"
)

// Supported alert channels.
const (
	ChannelDiscord  = "discord"
	ChannelTelegram = "telegram"
	ChannelDryRun   = "dryrun"
)

// Supported dedup backends and storage drivers.
const (
	DedupFile     = "file"
	DedupDatabase = "database"

	DriverNone     = ""
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	SportMonks SportMonksConfig `mapstructure:"sportmonks"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	EnvFile     string `mapstructure:"env_file"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	Backoff      time.Duration `mapstructure:"backoff"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// SportMonksConfig captures livescores feed access.
type SportMonksConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	PerPage           int           `mapstructure:"per_page"`
	Includes          string        `mapstructure:"includes"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// AlertingConfig selects and configures the output channel.
type AlertingConfig struct {
	Channel  string         `mapstructure:"channel"`
	Mention  string         `mapstructure:"mention"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// DiscordConfig describes the Discord bot and target channel.
type DiscordConfig struct {
	Token     string `mapstructure:"token"`
	ChannelID string `mapstructure:"channel_id"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// DedupConfig selects where notified keys live.
type DedupConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// StorageConfig covers the optional database used for keys and alert history.
type StorageConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListenAddress string `mapstructure:"listen_address"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// legacyEnv maps config keys onto the bare variable names older deployments use.
var legacyEnv = map[string]string{
	"alerting.discord.token":      "DISCORD_TOKEN",
	"alerting.discord.channel_id": "CHANNEL_ID",
	"sportmonks.api_key":          "SPORTMONKS_API_KEY",
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("PENALTYWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := "PENALTYWATCHER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setDefaults(v)

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

	if extra := v.GetString("app.env_file"); extra != "" && extra != ".env" {
		if err := loadDotEnv(extra); err != nil {
			return nil, err
		}
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

// loadDotEnv populates the process environment without overriding it.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "penaltywatcher")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.env_file", ".env")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "logs/console.log")
	v.SetDefault("logging.journal", "logs/journal.jsonl")

	v.SetDefault("scheduler.interval", "6s")
	v.SetDefault("scheduler.backoff", "5s")
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("sportmonks.base_url", "https://api.sportmonks.com/v3/football")
	v.SetDefault("sportmonks.request_timeout", "5s")
	v.SetDefault("sportmonks.per_page", 100)
	v.SetDefault("sportmonks.includes", "scores;participants;events")
	v.SetDefault("sportmonks.requests_per_minute", 60)
	v.SetDefault("sportmonks.api_key", "")
	v.SetDefault("sportmonks.user_agent", "")

	v.SetDefault("alerting.channel", ChannelDiscord)
	v.SetDefault("alerting.mention", "@here")
	v.SetDefault("alerting.timeout", "10s")
	v.SetDefault("alerting.discord.token", "")
	v.SetDefault("alerting.discord.channel_id", "")
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("dedup.backend", DedupFile)
	v.SetDefault("dedup.path", "data/notified_events.json")

	v.SetDefault("storage.driver", DriverNone)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.sqlite_path", "data/penaltywatcher.db")
	v.SetDefault("storage.max_open_conns", 5)
	v.SetDefault("storage.max_idle_conns", 1)
	v.SetDefault("storage.conn_max_lifetime", "30m")
	v.SetDefault("storage.advisory_lock_key", int64(0x70656e61))

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_address", ":9464")

	v.SetDefault("export.max_data_points", 10000)
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

// Validate performs basic sanity checks on the configuration values.
// Channel credentials are checked by RequireChannel so that read-only
// commands work without them.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.Backoff < 0 {
		return fmt.Errorf("scheduler.backoff cannot be negative")
	}
	if c.SportMonks.RequestTimeout <= 0 {
		return fmt.Errorf("sportmonks.request_timeout must be greater than zero")
	}
	if c.SportMonks.PerPage <= 0 {
		return fmt.Errorf("sportmonks.per_page must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}

	switch c.Alerting.Channel {
	case ChannelDiscord, ChannelTelegram, ChannelDryRun:
	default:
		return fmt.Errorf("alerting.channel %q is not supported", c.Alerting.Channel)
	}

	switch c.Storage.Driver {
	case DriverNone, DriverSQLite:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}

	switch c.Dedup.Backend {
	case DedupFile:
		if c.Dedup.Path == "" {
			return fmt.Errorf("dedup.path is required for the file backend")
		}
	case DedupDatabase:
		if c.Storage.Driver == DriverNone {
			return fmt.Errorf("dedup.backend=database requires storage.driver")
		}
	default:
		return fmt.Errorf("dedup.backend %q is not supported", c.Dedup.Backend)
	}
	return nil
}

// RequireFeed checks that the livescores feed can be queried.
func (c *Config) RequireFeed() error {
	if c.SportMonks.APIKey == "" {
		return fmt.Errorf("sportmonks.api_key (SPORTMONKS_API_KEY) 必须配置")
	}
	return nil
}

// RequireChannel checks credentials for the selected alert channel.
func (c *Config) RequireChannel() error {
	switch c.Alerting.Channel {
	case ChannelDiscord:
		if c.Alerting.Discord.Token == "" {
			return fmt.Errorf("alerting.discord.token (DISCORD_TOKEN) 必须配置")
		}
		if c.Alerting.Discord.ChannelID == "" {
			return fmt.Errorf("alerting.discord.channel_id (CHANNEL_ID) 必须配置")
		}
	case ChannelTelegram:
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
