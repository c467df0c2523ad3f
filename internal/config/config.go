// Package config provides application configuration management using Viper.
// Values come from defaults, an optional config.yaml and the environment,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Chat      ChatConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	AllowedOrigins  []string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL                   string
	Host                  string
	Port                  int
	User                  string
	Password              string
	Name                  string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
	AutoMigrate           bool
}

// ConnectionString returns a PostgreSQL connection string. An explicit URL
// wins over the individual fields.
func (d *DatabaseConfig) ConnectionString() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds the session store connection. An empty Addr selects the
// in-memory session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LLMConfig configures the completion provider chain.
type LLMConfig struct {
	// Providers lists provider names in fallback order (remote, anthropic, openai).
	Providers []string
	Timeout   time.Duration

	Remote    RemoteLLMConfig
	Anthropic AnthropicConfig
	OpenAI    OpenAIConfig
}

// RemoteLLMConfig points at an HTTP endpoint speaking the chat completion contract.
type RemoteLLMConfig struct {
	URL string
}

// AnthropicConfig holds Claude API settings.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// OpenAIConfig holds OpenAI chat completion settings.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ChatConfig holds dialogue engine settings.
type ChatConfig struct {
	WhatsAppNumber     string
	SessionTTL         time.Duration
	CatalogRefresh     time.Duration
	FAQRefresh         time.Duration
	RecorderWorkers    int
	RecorderBuffer     int
	MaxMessageLength   int
	BusinessesPagePath string
}

// RateLimitConfig bounds API requests per client IP.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables and config files.
// Environment variables take precedence over config file values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/tekki-chat")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFoundErr) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			Environment:     v.GetString("server.env"),
			AllowedOrigins:  splitList(v.GetString("server.allowed_origins")),
			MaxBodyBytes:    v.GetInt64("server.max_body_bytes"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			URL:                   v.GetString("database.url"),
			Host:                  v.GetString("database.host"),
			Port:                  v.GetInt("database.port"),
			User:                  v.GetString("database.user"),
			Password:              v.GetString("database.password"),
			Name:                  v.GetString("database.name"),
			SSLMode:               v.GetString("database.sslmode"),
			MaxConnections:        v.GetInt("database.max_connections"),
			MaxIdleConnections:    v.GetInt("database.max_idle_connections"),
			ConnectionMaxLifetime: v.GetDuration("database.connection_max_lifetime"),
			AutoMigrate:           v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		LLM: LLMConfig{
			Providers: splitList(v.GetString("llm.providers")),
			Timeout:   v.GetDuration("llm.timeout"),
			Remote: RemoteLLMConfig{
				URL: v.GetString("llm.remote.url"),
			},
			Anthropic: AnthropicConfig{
				APIKey:    v.GetString("anthropic.api_key"),
				Model:     v.GetString("anthropic.model"),
				MaxTokens: v.GetInt("anthropic.max_tokens"),
			},
			OpenAI: OpenAIConfig{
				APIKey:  v.GetString("openai.api_key"),
				Model:   v.GetString("openai.model"),
				BaseURL: v.GetString("openai.base_url"),
			},
		},
		Chat: ChatConfig{
			WhatsAppNumber:     v.GetString("chat.whatsapp_number"),
			SessionTTL:         v.GetDuration("chat.session_ttl"),
			CatalogRefresh:     v.GetDuration("chat.catalog_refresh"),
			FAQRefresh:         v.GetDuration("chat.faq_refresh"),
			RecorderWorkers:    v.GetInt("chat.recorder_workers"),
			RecorderBuffer:     v.GetInt("chat.recorder_buffer"),
			MaxMessageLength:   v.GetInt("chat.max_message_length"),
			BusinessesPagePath: v.GetString("chat.businesses_page_path"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("ratelimit.requests"),
			Window:   v.GetDuration("ratelimit.window"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Path:    v.GetString("metrics.path"),
		},
	}
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.allowed_origins", "*")
	v.SetDefault("server.max_body_bytes", 64*1024)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tekki")
	v.SetDefault("database.name", "tekki")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)
	v.SetDefault("database.connection_max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.providers", "remote,anthropic,openai")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")

	v.SetDefault("chat.whatsapp_number", "221781362728")
	v.SetDefault("chat.session_ttl", "24h")
	v.SetDefault("chat.catalog_refresh", "5m")
	v.SetDefault("chat.faq_refresh", "10m")
	v.SetDefault("chat.recorder_workers", 2)
	v.SetDefault("chat.recorder_buffer", 256)
	v.SetDefault("chat.max_message_length", 2000)
	v.SetDefault("chat.businesses_page_path", "/business")

	v.SetDefault("ratelimit.requests", 60)
	v.SetDefault("ratelimit.window", "1m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks that all required configuration values are present.
func (c *Config) Validate() error {
	var missing []string

	if c.Database.URL == "" && c.Database.Password == "" {
		missing = append(missing, "DATABASE_URL (or DATABASE_PASSWORD)")
	}
	if len(c.EnabledProviders()) == 0 {
		missing = append(missing, "LLM provider (at least one of LLM_REMOTE_URL, ANTHROPIC_API_KEY, OPENAI_API_KEY)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// EnabledProviders returns the configured providers, in fallback order, that
// have the credentials or endpoint they need.
func (c *Config) EnabledProviders() []string {
	var out []string
	for _, p := range c.LLM.Providers {
		switch p {
		case "remote":
			if c.LLM.Remote.URL != "" {
				out = append(out, p)
			}
		case "anthropic":
			if c.LLM.Anthropic.APIKey != "" {
				out = append(out, p)
			}
		case "openai":
			if c.LLM.OpenAI.APIKey != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
