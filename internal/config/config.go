package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. THREAT_CLASSIFIER_LLM_PROVIDER
const EnvPrefix = "THREAT_CLASSIFIER"

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance from the first config.yaml found
// on the search path, defaults and environment overrides
func New() (*Config, error) {
	return Load("")
}

// Load reads configuration from path, or searches the default locations when path is empty
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/threat-classifier/")
		v.AddConfigPath("$HOME/.threat-classifier")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	// remote classifier
	v.SetDefault("llm.provider", "none")
	v.SetDefault("external.max_retries", 2)
	v.SetDefault("external.base_delay", "1s")
	v.SetDefault("external.max_body_size", 1000)

	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 500)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 500)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)

	// local engine
	v.SetDefault("engine.jitter", false)
	v.SetDefault("engine.jitter_seed", 0)
	v.SetDefault("engine.jitter_band", 0.05)

	// batch coordinator
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.external_first_n", 10)
	v.SetDefault("batch.small_batch", 5)
	v.SetDefault("batch.external_interval", "500ms")
	v.SetDefault("batch.timeout", "2m")
	v.SetDefault("batch.require_user_id", false)

	v.SetDefault("spam.whitelisted_domains", []string{})

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/verdict_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/threat_classifier")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")

	v.SetDefault("store.type", "none")
	v.SetDefault("store.postgres_url", "postgres://localhost:5432/threat_classifier")
	v.SetDefault("store.sqlite_path", "/data/classifications.db")

	v.SetDefault("server.http_address", "0.0.0.0:8080")
	v.SetDefault("server.smtp.enabled", false)
	v.SetDefault("server.smtp.listen_address", "0.0.0.0:10025")
	v.SetDefault("server.smtp.postfix_address", "localhost")
	v.SetDefault("server.smtp.postfix_port", 10026)
	v.SetDefault("server.smtp.block_high_threat", false)
	v.SetDefault("server.smtp.subject_prefix", "[THREAT] ")
	v.SetDefault("server.smtp.header_prefix", "X-Threat-")
	v.SetDefault("server.milter.enabled", false)
	v.SetDefault("server.milter.listen_address", "127.0.0.1:7357")
	v.SetDefault("server.milter.block_high_threat", false)
	v.SetDefault("server.milter.subject_prefix", "[THREAT] ")
	v.SetDefault("server.milter.header_prefix", "X-Threat-")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Set overrides a configuration value
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// durationOr returns the duration at key or fallback when it is unset or invalid
func (c *Config) durationOr(key string, fallback time.Duration) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
