// Package config loads and validates the bridge configuration from defaults,
// an optional YAML file, and CHANNELPOST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CHANNELPOST_TELEGRAM_TOKEN.
const EnvPrefix = "CHANNELPOST"

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config is the complete bridge configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Lsky      LskyConfig      `mapstructure:"lsky"`
	Blog      BlogConfig      `mapstructure:"blog"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Dedupe    DedupeConfig    `mapstructure:"dedupe"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type TelegramConfig struct {
	Token       string        `mapstructure:"token"        validate:"required"`
	ChannelID   int64         `mapstructure:"channel_id"   validate:"required,ne=0"`
	APIURL      string        `mapstructure:"api_url"      validate:"required,url"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" validate:"min=1s"`
	// GroupSettle is the quiet period after which a media group is complete.
	GroupSettle time.Duration `mapstructure:"group_settle" validate:"min=0"`
	DownloadDir string        `mapstructure:"download_dir"`
}

type LskyConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Token   string        `mapstructure:"token"    validate:"required"`
	Timeout time.Duration `mapstructure:"timeout"  validate:"min=1s"`
}

type BlogConfig struct {
	Endpoint      string        `mapstructure:"endpoint"       validate:"required,url"`
	Secret        string        `mapstructure:"secret"         validate:"required"`
	CID           string        `mapstructure:"cid"            validate:"required"`
	BacklinkLabel string        `mapstructure:"backlink_label" validate:"required"`
	Timeout       time.Duration `mapstructure:"timeout"        validate:"min=1s"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"     validate:"min=1,max=20"`
	InitialInterval time.Duration `mapstructure:"initial_interval" validate:"min=0"`
	Multiplier      float64       `mapstructure:"multiplier"       validate:"gte=1"`
	MaxInterval     time.Duration `mapstructure:"max_interval"     validate:"min=0"`
}

type DedupeConfig struct {
	Capacity int           `mapstructure:"capacity" validate:"min=1"`
	TTL      time.Duration `mapstructure:"ttl"      validate:"min=0"`
}

type PipelineConfig struct {
	RunTimeout time.Duration `mapstructure:"run_timeout" validate:"min=0"`
}

type ProxyConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type JournalConfig struct {
	SkipPublished bool          `mapstructure:"skip_published"`
	Retention     time.Duration `mapstructure:"retention" validate:"min=0"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("telegram.poll_timeout", time.Minute)
	v.SetDefault("telegram.group_settle", 1500*time.Millisecond)
	v.SetDefault("telegram.download_dir", "")

	v.SetDefault("lsky.timeout", 60*time.Second)

	v.SetDefault("blog.backlink_label", "原文")
	v.SetDefault("blog.timeout", 30*time.Second)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_interval", time.Duration(0))
	v.SetDefault("retry.multiplier", 1.0)
	v.SetDefault("retry.max_interval", time.Duration(0))

	v.SetDefault("dedupe.capacity", 64)
	v.SetDefault("dedupe.ttl", time.Duration(0))

	v.SetDefault("pipeline.run_timeout", 5*time.Minute)

	v.SetDefault("proxy.url", "")

	v.SetDefault("database.path", "channelpost.db")

	v.SetDefault("journal.skip_published", true)
	v.SetDefault("journal.retention", 90*24*time.Hour)

	v.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.sql_maintenance.schedule", "0 0 4 * * 0")
	v.SetDefault("scheduler.tasks.journal_prune.enabled", true)
	v.SetDefault("scheduler.tasks.journal_prune.schedule", "0 30 3 * * *")
	v.SetDefault("scheduler.tasks.temp_sweep.enabled", true)
	v.SetDefault("scheduler.tasks.temp_sweep.schedule", "0 */30 * * * *")

	// Keys without defaults still need registering so AutomaticEnv can
	// override them during Unmarshal.
	for _, key := range []string{
		"telegram.token",
		"lsky.base_url", "lsky.token",
		"blog.endpoint", "blog.secret", "blog.cid",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("telegram.channel_id", int64(0))
}

// LoadConfig reads configuration from path (optional; empty or missing means
// defaults plus environment) and validates it.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: failed to read config file %s: %w", ErrConfiguration, path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}
