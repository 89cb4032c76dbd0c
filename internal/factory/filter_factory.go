package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/adapters/filter"
	"github.com/mikey/mail-threat-classifier/internal/config"
	"github.com/mikey/mail-threat-classifier/internal/core"
	"github.com/mikey/mail-threat-classifier/internal/ports"
)

// FilterFactory creates the mail ingestion filters enabled in configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.ClassifierService
	store   ResultStore
}

// NewFilterFactory creates a new filter factory. store may be nil.
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.ClassifierService, store ResultStore) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
		store:   store,
	}
}

// CreateEmailFilters returns the enabled SMTP and milter filters
func (f *FilterFactory) CreateEmailFilters() []ports.EmailFilter {
	server := f.cfg.GetServer()
	var filters []ports.EmailFilter

	if server.SMTP.Enabled {
		filters = append(filters, filter.NewPostfixFilter(f.service, f.store, f.logger, filter.PostfixOptions{
			ListenAddress:   server.SMTP.ListenAddress,
			PostfixAddress:  server.SMTP.PostfixAddress,
			PostfixPort:     server.SMTP.PostfixPort,
			BlockHighThreat: server.SMTP.BlockHighThreat,
			Headers: filter.HeaderOptions{
				HeaderPrefix:  server.SMTP.HeaderPrefix,
				SubjectPrefix: server.SMTP.SubjectPrefix,
			},
		}))
	}

	if server.Milter.Enabled {
		filters = append(filters, filter.NewMilterFilter(f.service, f.logger, filter.MilterOptions{
			ListenAddress:   server.Milter.ListenAddress,
			BlockHighThreat: server.Milter.BlockHighThreat,
			Headers: filter.HeaderOptions{
				HeaderPrefix:  server.Milter.HeaderPrefix,
				SubjectPrefix: server.Milter.SubjectPrefix,
			},
		}))
	}
	return filters
}
