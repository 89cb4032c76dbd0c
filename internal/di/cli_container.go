package di

import (
	"io"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/adapters/filter"
	"github.com/mikey/mail-threat-classifier/internal/batch"
	"github.com/mikey/mail-threat-classifier/internal/config"
	"github.com/mikey/mail-threat-classifier/internal/core"
	"github.com/mikey/mail-threat-classifier/internal/factory"
	"github.com/mikey/mail-threat-classifier/internal/logging"
)

// CLIFlags contains the global flags of the command line tool
type CLIFlags struct {
	ConfigFile string
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	Whitelist  []string
	Verbose    bool
	JSONLog    bool
	Output     io.Writer
}

// BuildCLIContainer creates the container of the command line tool. The
// verdict cache is disabled; the remote classifier and result store follow
// the configuration file, with provider flags taking precedence.
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.Load(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Info("Loaded configuration from file", zap.String("file", used))
		}
		applyFlags(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}
	if err := provideClassifier(container); err != nil {
		return nil, err
	}

	if err := container.Provide(func(
		local core.LocalClassifier,
		external core.LLMClient,
		f *factory.LLMFactory,
		logger *zap.Logger,
	) *core.ClassifierService {
		opts := f.ServiceOptions()
		opts.CacheEnabled = false
		return core.NewClassifierService(local, external, nil, nil, logger, opts)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(
		svc *core.ClassifierService,
		store factory.ResultStore,
		cfg *config.Config,
		logger *zap.Logger,
	) *batch.Coordinator {
		return batch.NewCoordinator(svc, store, nil, logger, batchOptions(cfg))
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(svc *core.ClassifierService, flags *CLIFlags, logger *zap.Logger) *filter.CliFilter {
		return filter.NewCliFilter(svc, logger, flags.Output, flags.Verbose)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// applyFlags overlays the provider flags onto the loaded configuration
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	if len(flags.Whitelist) > 0 {
		cfg.Set("spam.whitelisted_domains", flags.Whitelist)
	}
	if flags.Provider == "" {
		return
	}
	cfg.Set("llm.provider", flags.Provider)

	switch flags.Provider {
	case "bedrock":
		if flags.Model != "" {
			cfg.Set("bedrock.model_id", flags.Model)
		}
	case "gemini", "openai":
		if flags.APIKey != "" {
			cfg.Set(flags.Provider+".api_key", flags.APIKey)
		}
		if flags.Model != "" {
			cfg.Set(flags.Provider+".model_name", flags.Model)
		}
		if flags.BaseURL != "" && flags.Provider == "openai" {
			cfg.Set("openai.base_url", flags.BaseURL)
		}
	}
}
