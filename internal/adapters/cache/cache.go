// Package cache provides the verdict cache backends.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

var (
	// ErrNotFound is returned when a cache entry is not found
	ErrNotFound = errors.New("cache entry not found")
	// ErrExpired is returned when a cache entry has expired
	ErrExpired = errors.New("cache entry expired")
)

// storedVerdict is the serialized form of a cache entry in the database backends
type storedVerdict struct {
	Verdict   core.Verdict `json:"verdict"`
	ModelUsed string       `json:"model_used"`
}

func encodeEntry(entry *core.CacheEntry) ([]byte, error) {
	data, err := json.Marshal(storedVerdict{Verdict: entry.Verdict, ModelUsed: entry.ModelUsed})
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return data, nil
}

func decodeEntry(fingerprint string, data []byte, cachedAt, expiresAt time.Time) (*core.CacheEntry, error) {
	var sv storedVerdict
	if err := json.Unmarshal(data, &sv); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &core.CacheEntry{
		Fingerprint: fingerprint,
		Verdict:     sv.Verdict,
		ModelUsed:   sv.ModelUsed,
		CachedAt:    cachedAt,
		ExpiresAt:   expiresAt,
	}, nil
}

// janitor runs a cache's Cleanup on a ticker until stopped
type janitor struct {
	stopCh chan struct{}
	once   sync.Once
}

func startJanitor(name string, freq time.Duration, cleanup func(context.Context) error, logger *zap.Logger) *janitor {
	j := &janitor{stopCh: make(chan struct{})}
	if freq <= 0 {
		return j
	}

	go func() {
		ticker := time.NewTicker(freq)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := cleanup(context.Background()); err != nil {
					logger.Error("Failed to clean up cache", zap.String("cache", name), zap.Error(err))
				}
			case <-j.stopCh:
				return
			}
		}
	}()
	return j
}

func (j *janitor) stop() {
	j.once.Do(func() { close(j.stopCh) })
}
