// Package config loads and validates bot configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures one bot configuration file. The top-level keys keep the
// JSON names the bot has always used; the nested sections are tunables with
// defaults.
type Config struct {
	PixivUsername         string     `mapstructure:"pixiv_username"`
	PixivPassword         string     `mapstructure:"pixiv_password"`
	PixivRefreshTokenFile string     `mapstructure:"pixiv_refresh_token_file"`
	DiscordHookURLs       []string   `mapstructure:"discord_hook_urls"`
	MainTag               string     `mapstructure:"main_tag"`
	SubTags               [][]string `mapstructure:"sub_tags"`
	Wildcard              bool       `mapstructure:"wildcard"`
	AllowR18              bool       `mapstructure:"allow_r18"`
	AllowR18G             bool       `mapstructure:"allow_r18-g"`
	AllowManga            bool       `mapstructure:"allow_manga"`

	API     APIConfig     `mapstructure:"api"`
	History HistoryConfig `mapstructure:"history"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Serve   ServeConfig   `mapstructure:"serve"`
	Archive ArchiveConfig `mapstructure:"archive"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig selects the search API generation.
type APIConfig struct {
	Generation string `mapstructure:"generation"`
}

// HistoryConfig controls where the dedup set persists.
type HistoryConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
}

// LimitsConfig bounds pagination, upload size, and post pacing.
type LimitsConfig struct {
	MaxPages         int   `mapstructure:"max_pages"`
	MaxUploadBytes   int64 `mapstructure:"max_upload_bytes"`
	PostDelaySeconds int   `mapstructure:"post_delay_seconds"`
}

// ServeConfig governs daemon mode.
type ServeConfig struct {
	Port     int           `mapstructure:"port"`
	Interval time.Duration `mapstructure:"interval"`
}

// ArchiveConfig selects the optional delivered-image archive.
type ArchiveConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for optional delivery-event publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// History backends.
const (
	HistoryBackendFile     = "file"
	HistoryBackendPostgres = "postgres"
	HistoryBackendMemory   = "memory"
)

// Archive backends; empty disables archival.
const (
	ArchiveBackendLocal = "local"
	ArchiveBackendGCS   = "gcs"
)

// Load builds a Config from a JSON config file plus environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TAGRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.generation", "public")
	v.SetDefault("history.backend", HistoryBackendFile)
	v.SetDefault("history.path", "history")
	v.SetDefault("history.table", "history")
	v.SetDefault("limits.max_pages", 100)
	v.SetDefault("limits.max_upload_bytes", 8<<20)
	v.SetDefault("limits.post_delay_seconds", 5)
	v.SetDefault("serve.port", 8080)
	v.SetDefault("serve.interval", "24h")
	v.SetDefault("archive.prefix", "images")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and the shapes the pipeline depends on.
// It runs before any search or dispatch logic; a malformed configuration
// never reaches the core.
func (c Config) Validate() error {
	hasPassword := c.PixivUsername != "" && c.PixivPassword != ""
	if !hasPassword && c.PixivRefreshTokenFile == "" {
		return fmt.Errorf("either pixiv_username/pixiv_password or pixiv_refresh_token_file is required")
	}
	if c.MainTag == "" {
		return fmt.Errorf("main_tag is required")
	}
	if len(c.DiscordHookURLs) == 0 {
		return fmt.Errorf("discord_hook_urls must not be empty")
	}
	for _, hook := range c.DiscordHookURLs {
		if _, err := url.ParseRequestURI(hook); err != nil {
			return fmt.Errorf("invalid discord hook url %q: %w", hook, err)
		}
	}
	for i, triple := range c.SubTags {
		if len(triple) != 3 {
			return fmt.Errorf("sub_tags[%d] must be 3 items: tag, found string, missing string", i)
		}
		if triple[0] == "" {
			return fmt.Errorf("sub_tags[%d] tag must not be empty", i)
		}
	}
	switch c.API.Generation {
	case "public", "app":
	default:
		return fmt.Errorf("api.generation must be public or app, got %q", c.API.Generation)
	}
	switch c.History.Backend {
	case HistoryBackendFile:
		if c.History.Path == "" {
			return fmt.Errorf("history.path is required for the file backend")
		}
	case HistoryBackendPostgres:
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn is required for the postgres backend")
		}
	case HistoryBackendMemory:
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	if c.Limits.MaxPages <= 0 {
		return fmt.Errorf("limits.max_pages must be > 0")
	}
	if c.Limits.MaxUploadBytes <= 0 {
		return fmt.Errorf("limits.max_upload_bytes must be > 0")
	}
	switch c.Archive.Backend {
	case "", ArchiveBackendLocal, ArchiveBackendGCS:
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive.Backend)
	}
	if c.Archive.Backend == ArchiveBackendLocal && c.Archive.Dir == "" {
		return fmt.Errorf("archive.dir is required for the local backend")
	}
	if c.Archive.Backend == ArchiveBackendGCS && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required for the gcs backend")
	}
	if c.Serve.Port <= 0 {
		return fmt.Errorf("serve.port must be > 0")
	}
	if c.Serve.Interval <= 0 {
		return fmt.Errorf("serve.interval must be > 0")
	}
	return nil
}

// SubTagTriples converts the validated sub_tags lists into fixed triples.
func (c Config) SubTagTriples() [][3]string {
	triples := make([][3]string, 0, len(c.SubTags))
	for _, t := range c.SubTags {
		triples = append(triples, [3]string{t[0], t[1], t[2]})
	}
	return triples
}

// PostDelay converts the configured pacing into a duration.
func (c Config) PostDelay() time.Duration {
	return time.Duration(c.Limits.PostDelaySeconds) * time.Second
}
