package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/adapters/bedrock"
	"github.com/mikey/mail-threat-classifier/internal/adapters/gemini"
	"github.com/mikey/mail-threat-classifier/internal/adapters/openai"
	"github.com/mikey/mail-threat-classifier/internal/config"
	"github.com/mikey/mail-threat-classifier/internal/core"
	"github.com/mikey/mail-threat-classifier/internal/utils"
)

// ProviderNone disables the remote classifier
const ProviderNone = "none"

// LLMFactory creates remote classifier clients
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateLLMClient creates the configured remote classifier. It returns a nil
// client when the provider is "none" or unset, leaving the local engine as the
// only classifier.
func (f *LLMFactory) CreateLLMClient() (core.LLMClient, error) {
	provider := f.cfg.GetLLM().Provider

	var (
		client core.LLMClient
		err    error
	)
	switch provider {
	case "", ProviderNone:
		f.logger.Info("No remote classifier configured, using local engine only")
		return nil, nil
	case "bedrock":
		client, err = bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateLLMClient()
	case "gemini":
		client, err = gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateLLMClient()
	case "openai":
		client, err = openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateLLMClient()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}

	f.logger.Info("Remote classifier configured",
		zap.String("provider", provider),
		zap.String("model", client.Model()))
	return client, nil
}

// ServiceOptions returns the remote retry and cache options of the classifier service
func (f *LLMFactory) ServiceOptions() core.ServiceOptions {
	ext := f.cfg.GetExternal()
	cache := f.cfg.GetCache()
	return core.ServiceOptions{
		CacheEnabled: cache.Enabled,
		CacheTTL:     cache.TTL,
		MaxRetries:   ext.MaxRetries,
		BaseDelay:    ext.BaseDelay,
	}
}
