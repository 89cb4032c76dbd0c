package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/config"
	"github.com/mikey/mail-threat-classifier/internal/engine"
	"github.com/mikey/mail-threat-classifier/internal/utils"
	"github.com/mikey/mail-threat-classifier/internal/whitelist"
)

// CreateEngine builds the local engine from the built-in tables, the
// configured thresholds and jitter, and the allowlist extended with
// spam.whitelisted_domains
func CreateEngine(cfg *config.Config, textProcessor *utils.TextProcessor, logger *zap.Logger) (*engine.Engine, error) {
	thresholds, err := cfg.GetEngine()
	if err != nil {
		return nil, err
	}
	jitter, err := cfg.GetJitter()
	if err != nil {
		return nil, err
	}

	tables := engine.DefaultTables()
	extra := cfg.GetWhitelistedDomains()
	if len(extra) > 0 {
		logger.Info("Loaded whitelisted domains", zap.Strings("domains", extra))
	}
	domains := make([]string, 0, len(tables.TrustedDomains)+len(extra))
	domains = append(domains, tables.TrustedDomains...)
	domains = append(domains, extra...)
	allowlist := whitelist.NewChecker(domains, tables.InstitutionalSuffix, logger)

	if jitter.Enabled {
		logger.Info("Confidence jitter enabled",
			zap.Float64("band", jitter.Band),
			zap.Uint64("seed", jitter.Seed))
	}
	return engine.NewEngine(tables, thresholds, allowlist, textProcessor, jitter, logger), nil
}
