package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// DefaultPaths are searched in order for config.yml.
var DefaultPaths = []string{".", "./config", "/app", "/app/config"}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	OAuth      OAuthConfig      `mapstructure:"oauth"`
	DrChrono   DrChronoConfig   `mapstructure:"drchrono"`
	Session    SessionConfig    `mapstructure:"session"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Security   SecurityConfig   `mapstructure:"security"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type OAuthConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

type DrChronoConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// TimeZone decides what "today" is; empty means the server's zone.
	TimeZone    string `mapstructure:"time_zone"`
	Concurrency int    `mapstructure:"concurrency"`
}

type SessionConfig struct {
	Secret       string        `mapstructure:"secret"`
	TTL          time.Duration `mapstructure:"ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
	// EncryptionKey seals stored OAuth tokens, 16, 24 or 32 bytes (raw or
	// base64).
	EncryptionKey string `mapstructure:"encryption_key"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled"`
	MetricsPath       string `mapstructure:"metrics_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// secrets are read from CHECKIN_* environment variables and override the file.
type secrets struct {
	OAuthClientSecret string `envconfig:"OAUTH_CLIENT_SECRET"`
	SessionSecret     string `envconfig:"SESSION_SECRET"`
	EncryptionKey     string `envconfig:"ENCRYPTION_KEY"`
	DatabasePassword  string `envconfig:"DATABASE_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 45*time.Second)
	v.SetDefault("server.request_timeout", 40*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "checkin")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("oauth.scopes", []string{"patients:read", "patients:write", "calendar:read", "calendar:write", "user:read"})

	v.SetDefault("drchrono.base_url", "https://drchrono.com")
	v.SetDefault("drchrono.timeout", 30*time.Second)
	v.SetDefault("drchrono.concurrency", 4)

	v.SetDefault("session.ttl", 12*time.Hour)
	v.SetDefault("session.cookie_name", "checkin_session")
	v.SetDefault("session.secure_cookie", true)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_second", 0.5)
	v.SetDefault("ratelimit.burst", 5)

	v.SetDefault("monitoring.prometheus_enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// LoadConfig reads config.yml from DefaultPaths.
func LoadConfig() (*Config, error) {
	return Load(DefaultPaths...)
}

// Load reads an optional .env, then config.yml from the first of paths that
// has one, then the environment. A missing config file is not an error.
func Load(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var s secrets
	if err := envconfig.Process("checkin", &s); err != nil {
		return nil, fmt.Errorf("failed to read secrets from environment: %w", err)
	}
	overlay(&config.OAuth.ClientSecret, s.OAuthClientSecret)
	overlay(&config.Session.Secret, s.SessionSecret)
	overlay(&config.Session.EncryptionKey, s.EncryptionKey)
	overlay(&config.Database.Password, s.DatabasePassword)

	return &config, nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.OAuth.ClientID == "" {
		errs = append(errs, errors.New("oauth.client_id is required"))
	}
	if c.OAuth.ClientSecret == "" {
		errs = append(errs, errors.New("oauth.client_secret is required"))
	}
	if c.OAuth.RedirectURL == "" {
		errs = append(errs, errors.New("oauth.redirect_url is required"))
	}
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("session.secret is required"))
	}
	if c.Session.EncryptionKey == "" {
		errs = append(errs, errors.New("session.encryption_key is required"))
	}
	if c.DrChrono.TimeZone != "" {
		if _, err := time.LoadLocation(c.DrChrono.TimeZone); err != nil {
			errs = append(errs, fmt.Errorf("drchrono.time_zone: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Location returns the zone "today" is computed in.
func (c DrChronoConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}
