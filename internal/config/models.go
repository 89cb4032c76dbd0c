package config

import (
	"fmt"
	"time"

	"github.com/mikey/mail-threat-classifier/internal/engine"
)

// LLMConfig represents the remote classifier selection
type LLMConfig struct {
	Provider string
}

// ExternalConfig represents the retry policy and prompt limits of the remote classifier
type ExternalConfig struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxBodySize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI or any compatible endpoint
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BatchConfig represents the batch coordinator settings
type BatchConfig struct {
	Concurrency      int
	ExternalFirstN   int
	SmallBatch       int
	ExternalInterval time.Duration
	Timeout          time.Duration
	RequireUserID    bool
}

// CacheConfig represents the verdict cache settings
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisURL         string
}

// StoreConfig represents the classification result store settings
type StoreConfig struct {
	Type        string
	PostgresURL string
	SQLitePath  string
}

// SMTPConfig represents the Postfix content filter settings
type SMTPConfig struct {
	Enabled         bool
	ListenAddress   string
	PostfixAddress  string
	PostfixPort     int
	BlockHighThreat bool
	SubjectPrefix   string
	HeaderPrefix    string
}

// MilterConfig represents the milter listener settings
type MilterConfig struct {
	Enabled         bool
	ListenAddress   string
	BlockHighThreat bool
	SubjectPrefix   string
	HeaderPrefix    string
}

// ServerConfig represents the daemon listeners
type ServerConfig struct {
	HTTPAddress string
	SMTP        SMTPConfig
	Milter      MilterConfig
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetExternal returns the remote classifier retry configuration
func (c *Config) GetExternal() ExternalConfig {
	return ExternalConfig{
		MaxRetries:  c.GetInt("external.max_retries"),
		BaseDelay:   c.durationOr("external.base_delay", time.Second),
		MaxBodySize: c.GetInt("external.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetEngine returns the engine thresholds, starting from the built-in defaults
// and overlaying any engine.* keys
func (c *Config) GetEngine() (engine.Thresholds, error) {
	th := engine.DefaultThresholds()
	if err := c.v.UnmarshalKey("engine", &th); err != nil {
		return th, fmt.Errorf("failed to decode engine thresholds: %w", err)
	}
	return th, nil
}

// GetJitter returns the confidence jitter settings
func (c *Config) GetJitter() (engine.JitterConfig, error) {
	var j engine.JitterConfig
	if err := c.v.UnmarshalKey("engine", &j); err != nil {
		return j, fmt.Errorf("failed to decode engine jitter: %w", err)
	}
	return j, nil
}

// GetBatch returns the batch coordinator configuration
func (c *Config) GetBatch() BatchConfig {
	return BatchConfig{
		Concurrency:      c.GetInt("batch.concurrency"),
		ExternalFirstN:   c.GetInt("batch.external_first_n"),
		SmallBatch:       c.GetInt("batch.small_batch"),
		ExternalInterval: c.durationOr("batch.external_interval", 500*time.Millisecond),
		Timeout:          c.durationOr("batch.timeout", 2*time.Minute),
		RequireUserID:    c.GetBool("batch.require_user_id"),
	}
}

// GetCache returns the verdict cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              c.durationOr("cache.ttl", 24*time.Hour),
		CleanupFrequency: c.durationOr("cache.cleanup_frequency", time.Hour),
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		RedisURL:         c.GetString("cache.redis_url"),
	}
}

// GetStore returns the result store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:        c.GetString("store.type"),
		PostgresURL: c.GetString("store.postgres_url"),
		SQLitePath:  c.GetString("store.sqlite_path"),
	}
}

// GetServer returns the listener configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		HTTPAddress: c.GetString("server.http_address"),
		SMTP: SMTPConfig{
			Enabled:         c.GetBool("server.smtp.enabled"),
			ListenAddress:   c.GetString("server.smtp.listen_address"),
			PostfixAddress:  c.GetString("server.smtp.postfix_address"),
			PostfixPort:     c.GetInt("server.smtp.postfix_port"),
			BlockHighThreat: c.GetBool("server.smtp.block_high_threat"),
			SubjectPrefix:   c.GetString("server.smtp.subject_prefix"),
			HeaderPrefix:    c.GetString("server.smtp.header_prefix"),
		},
		Milter: MilterConfig{
			Enabled:         c.GetBool("server.milter.enabled"),
			ListenAddress:   c.GetString("server.milter.listen_address"),
			BlockHighThreat: c.GetBool("server.milter.block_high_threat"),
			SubjectPrefix:   c.GetString("server.milter.subject_prefix"),
			HeaderPrefix:    c.GetString("server.milter.header_prefix"),
		},
	}
}

// GetWhitelistedDomains returns the operator allowlist entries added to the built-in list
func (c *Config) GetWhitelistedDomains() []string {
	return c.GetStringSlice("spam.whitelisted_domains")
}
