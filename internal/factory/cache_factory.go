package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/adapters/cache"
	"github.com/mikey/mail-threat-classifier/internal/config"
	"github.com/mikey/mail-threat-classifier/internal/core"
)

// VerdictCache is a verdict cache that owns background resources
type VerdictCache interface {
	core.VerdictCache
	Stop()
}

// CacheFactory creates verdict caches based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateVerdictCache creates the configured cache, or nil when caching is disabled
func (f *CacheFactory) CreateVerdictCache() (VerdictCache, error) {
	cc := f.cfg.GetCache()
	if !cc.Enabled {
		return nil, nil
	}

	switch cc.Type {
	case "memory":
		return cache.NewMemoryCache(f.logger, cc.CleanupFrequency), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cc.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return cache.NewSQLiteCache(cc.SQLitePath, f.logger, cc.CleanupFrequency)
	case "mysql":
		return cache.NewMySQLCache(cc.MySQLDSN, f.logger, cc.CleanupFrequency)
	case "redis":
		return cache.NewRedisCache(cc.RedisURL, f.logger)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cc.Type)
	}
}
