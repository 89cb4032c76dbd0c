package gemini

import (
	"context"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/adapters/prompt"
	"github.com/mikey/mail-threat-classifier/internal/config"
	"github.com/mikey/mail-threat-classifier/internal/core"
	"github.com/mikey/mail-threat-classifier/internal/utils"
)

// Factory creates new instances of GeminiClient
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new factory for GeminiClient instances
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateLLMClient creates a new GeminiClient
func (f *Factory) CreateLLMClient() (core.LLMClient, error) {
	geminiCfg := f.cfg.GetGemini()
	return NewGeminiClient(
		context.Background(),
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		prompt.NewBuilder(f.textProcessor, f.cfg.GetExternal().MaxBodySize),
		f.logger,
	)
}
