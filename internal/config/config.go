package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/momen-meetup/meetup/internal/settings"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvResendAPIKey = "RESEND_API_KEY"
	EnvEmailFrom    = "EMAIL_FROM"
	EnvEmailTo      = "EMAIL_TO"
	EnvRedisAddr    = "REDIS_ADDR"
	EnvLogLevel     = "LOG_LEVEL"
)

// Rate limit modes.
const (
	// ModeFixed resets a bucket to full capacity once the window elapses.
	ModeFixed = "fixed"
	// ModeContinuous refills a bucket smoothly over the window.
	ModeContinuous = "continuous"
)

// ErrInvalidRateLimitMode indicates an unknown rate-limit.mode value.
var ErrInvalidRateLimitMode = errors.New("invalid rate-limit mode (expected `fixed` or `continuous`)")

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Config is the full runtime configuration, read once at process start.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate-limit"`
	Mail      MailConfig      `yaml:"mail"`
	Database  DatabaseConfig  `yaml:"database"`
	Content   ContentConfig   `yaml:"content"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
	// TrustForwardedFor keys callers by the first X-Forwarded-For entry.
	TrustForwardedFor *bool `yaml:"trust-forwarded-for"`
}

// TrustsForwardedFor reports whether X-Forwarded-For is used for client keys.
func (s ServerConfig) TrustsForwardedFor() bool {
	return s.TrustForwardedFor == nil || *s.TrustForwardedFor
}

// RateLimitConfig holds the contact endpoint rate limit policy and backend.
type RateLimitConfig struct {
	MaxTokens       int           `yaml:"max-tokens"`
	RefillInterval  time.Duration `yaml:"refill-interval"`
	CleanupInterval time.Duration `yaml:"cleanup-interval"`
	Mode            string        `yaml:"mode"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig holds optional Redis settings for shared rate limit state.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// MailConfig holds notification provider settings.
type MailConfig struct {
	APIKey   string        `yaml:"api-key"`
	Endpoint string        `yaml:"endpoint"`
	From     string        `yaml:"from"`
	To       string        `yaml:"to"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds the optional blog post database.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
	// ImportPosts copies markdown posts into the database on start.
	ImportPosts bool `yaml:"import-posts"`
}

// ContentConfig points at the on-disk content directories.
type ContentConfig struct {
	PostsDir      string `yaml:"posts-dir"`
	LocalesDir    string `yaml:"locales-dir"`
	DefaultLocale string `yaml:"default-locale"`
	Watch         bool   `yaml:"watch"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: settings.DefaultPort},
		RateLimit: RateLimitConfig{
			MaxTokens:       settings.DefaultContactMaxTokens,
			RefillInterval:  settings.DefaultContactRefillInterval,
			CleanupInterval: settings.DefaultCleanupInterval,
			Mode:            settings.DefaultRateLimitMode,
			Redis:           RedisConfig{Prefix: settings.DefaultRateLimitRedisPrefix},
		},
		Mail: MailConfig{
			Endpoint: settings.DefaultMailEndpoint,
			From:     settings.DefaultMailFrom,
			To:       settings.DefaultMailTo,
			Timeout:  settings.DefaultMailTimeout,
		},
		Content: ContentConfig{
			PostsDir:      settings.DefaultPostsDir,
			LocalesDir:    settings.DefaultLocalesDir,
			DefaultLocale: settings.DefaultLocale,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML config file, applies env overrides and fills defaults.
// A missing file is not an error.
func Load(configPath string) (Config, error) {
	cfg := Default()

	data, errRead := os.ReadFile(configPath)
	switch {
	case errRead == nil:
		// fileConfig accepts the flat `database-dsn` key alongside the nested form.
		type fileConfig struct {
			Config      `yaml:",inline"`
			DatabaseDSN string `yaml:"database-dsn"`
		}
		parsed := fileConfig{Config: cfg}
		if errUnmarshal := yaml.Unmarshal(data, &parsed); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
		cfg = parsed.Config
		if strings.TrimSpace(cfg.Database.DSN) == "" {
			cfg.Database.DSN = parsed.DatabaseDSN
		}
	case errors.Is(errRead, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config file: %w", errRead)
	}

	applyEnv(&cfg)
	if errNormalize := normalize(&cfg); errNormalize != nil {
		return Config{}, errNormalize
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvResendAPIKey)); v != "" {
		cfg.Mail.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvEmailFrom)); v != "" {
		cfg.Mail.From = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvEmailTo)); v != "" {
		cfg.Mail.To = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDBConnection)); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.RateLimit.Redis.Addr = v
		cfg.RateLimit.Redis.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = v
	}
}

func normalize(cfg *Config) error {
	def := Default()
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}

	rl := &cfg.RateLimit
	if rl.MaxTokens <= 0 {
		rl.MaxTokens = def.RateLimit.MaxTokens
	}
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = def.RateLimit.RefillInterval
	}
	if rl.CleanupInterval <= 0 {
		rl.CleanupInterval = def.RateLimit.CleanupInterval
	}
	rl.Mode = strings.ToLower(strings.TrimSpace(rl.Mode))
	if rl.Mode == "" {
		rl.Mode = ModeFixed
	}
	if rl.Mode != ModeFixed && rl.Mode != ModeContinuous {
		return fmt.Errorf("%w: %q", ErrInvalidRateLimitMode, rl.Mode)
	}
	rl.Redis.Addr = strings.TrimSpace(rl.Redis.Addr)
	rl.Redis.Password = strings.TrimSpace(rl.Redis.Password)
	rl.Redis.Prefix = strings.TrimSpace(rl.Redis.Prefix)
	if rl.Redis.Prefix == "" {
		rl.Redis.Prefix = settings.DefaultRateLimitRedisPrefix
	}
	if rl.Redis.DB < 0 {
		rl.Redis.DB = 0
	}

	m := &cfg.Mail
	m.APIKey = strings.TrimSpace(m.APIKey)
	m.Endpoint = strings.TrimRight(strings.TrimSpace(m.Endpoint), "/")
	if m.Endpoint == "" {
		m.Endpoint = def.Mail.Endpoint
	}
	if strings.TrimSpace(m.From) == "" {
		m.From = def.Mail.From
	}
	if strings.TrimSpace(m.To) == "" {
		m.To = def.Mail.To
	}
	if m.Timeout <= 0 {
		m.Timeout = def.Mail.Timeout
	}

	cfg.Database.DSN = strings.TrimSpace(cfg.Database.DSN)

	c := &cfg.Content
	if strings.TrimSpace(c.PostsDir) == "" {
		c.PostsDir = def.Content.PostsDir
	}
	if strings.TrimSpace(c.LocalesDir) == "" {
		c.LocalesDir = def.Content.LocalesDir
	}
	c.DefaultLocale = strings.ToLower(strings.TrimSpace(c.DefaultLocale))
	if c.DefaultLocale == "" {
		c.DefaultLocale = def.Content.DefaultLocale
	}
	return nil
}

// MailEnabled reports whether a notification credential is configured.
func (m MailConfig) MailEnabled() bool {
	return m.APIKey != ""
}

// String renders the policy for log lines.
func (r RateLimitConfig) String() string {
	return strconv.Itoa(r.MaxTokens) + "/" + r.RefillInterval.String() + " (" + r.Mode + ")"
}
