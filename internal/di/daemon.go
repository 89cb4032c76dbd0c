package di

import (
	"context"
	"errors"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/adapters/httpapi"
	"github.com/mikey/mail-threat-classifier/internal/config"
	"github.com/mikey/mail-threat-classifier/internal/factory"
	"github.com/mikey/mail-threat-classifier/internal/ports"
)

// Daemon holds the long-running components resolved from the container
type Daemon struct {
	dig.In

	Logger  *zap.Logger
	Config  *config.Config
	Server  *httpapi.Server
	Filters []ports.EmailFilter
	Cache   factory.VerdictCache
	Store   factory.ResultStore
}

// Run starts the mail filters and the HTTP API and blocks until ctx is
// canceled or the API fails. Filters, cache and store are released on return.
func (d Daemon) Run(ctx context.Context) error {
	defer d.release()

	for _, f := range d.Filters {
		if err := f.Start(); err != nil {
			d.Logger.Error("Failed to start filter", zap.Error(err))
			return err
		}
	}

	err := d.Server.ListenAndServe(ctx, d.Config.GetServer().HTTPAddress)
	if err != nil && !errors.Is(err, context.Canceled) {
		d.Logger.Error("HTTP API stopped", zap.Error(err))
		return err
	}
	d.Logger.Info("Shutting down...")
	return nil
}

func (d Daemon) release() {
	for _, f := range d.Filters {
		if err := f.Stop(); err != nil {
			d.Logger.Error("Failed to stop filter", zap.Error(err))
		}
	}
	if d.Cache != nil {
		d.Cache.Stop()
	}
	if d.Store != nil {
		d.Store.Close()
	}
	d.Logger.Info("Shutdown complete")
}
