// Package di wires the daemon and CLI object graphs with dig.
package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/adapters/httpapi"
	"github.com/mikey/mail-threat-classifier/internal/batch"
	"github.com/mikey/mail-threat-classifier/internal/config"
	"github.com/mikey/mail-threat-classifier/internal/core"
	"github.com/mikey/mail-threat-classifier/internal/engine"
	"github.com/mikey/mail-threat-classifier/internal/factory"
	"github.com/mikey/mail-threat-classifier/internal/logging"
	"github.com/mikey/mail-threat-classifier/internal/metrics"
	"github.com/mikey/mail-threat-classifier/internal/ports"
	"github.com/mikey/mail-threat-classifier/internal/utils"
)

// BuildContainer creates the container of the long-running daemon: the
// classifier service with its cache, store and metrics, the HTTP API and the
// enabled mail filters. An empty configPath searches the default locations.
func BuildContainer(configPath string) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() (*config.Config, error) {
		return config.Load(configPath)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}
	if err := provideClassifier(container); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) (factory.VerdictCache, error) {
		return f.CreateVerdictCache()
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func() (*metrics.Recorder, error) {
		return metrics.NewRecorder(nil)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(
		local core.LocalClassifier,
		external core.LLMClient,
		cache factory.VerdictCache,
		recorder *metrics.Recorder,
		f *factory.LLMFactory,
		logger *zap.Logger,
	) *core.ClassifierService {
		return core.NewClassifierService(local, external, cache, recorder, logger, f.ServiceOptions())
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(
		svc *core.ClassifierService,
		store factory.ResultStore,
		recorder *metrics.Recorder,
		cfg *config.Config,
		logger *zap.Logger,
	) *batch.Coordinator {
		return batch.NewCoordinator(svc, store, recorder, logger, batchOptions(cfg))
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(
		svc *core.ClassifierService,
		coord *batch.Coordinator,
		recorder *metrics.Recorder,
		logger *zap.Logger,
	) *httpapi.Server {
		return httpapi.New(svc, coord, recorder.Handler(), logger)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) []ports.EmailFilter {
		return f.CreateEmailFilters()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideClassifier registers the pieces shared by the daemon and the CLI:
// text processing, the local engine, the remote client and the result store
func provideClassifier(container *dig.Container) error {
	if err := container.Provide(func(logger *zap.Logger) *utils.TextProcessor {
		return utils.NewTextProcessor(logger)
	}); err != nil {
		return err
	}
	if err := container.Provide(factory.CreateEngine); err != nil {
		return err
	}
	if err := container.Provide(func(e *engine.Engine) core.LocalClassifier {
		return e
	}); err != nil {
		return err
	}

	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return err
	}

	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return err
	}
	return container.Provide(func(f *factory.StoreFactory) (factory.ResultStore, error) {
		return f.CreateResultStore()
	})
}

func batchOptions(cfg *config.Config) batch.Options {
	bc := cfg.GetBatch()
	return batch.Options{
		Concurrency:      bc.Concurrency,
		ExternalFirstN:   bc.ExternalFirstN,
		SmallBatch:       bc.SmallBatch,
		ExternalInterval: bc.ExternalInterval,
		Timeout:          bc.Timeout,
		RequireUserID:    bc.RequireUserID,
	}
}
