package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

type stoppable interface {
	core.VerdictCache
	Stop()
}

func testEntry(fp string, ttl time.Duration) *core.CacheEntry {
	now := time.Now()
	return &core.CacheEntry{
		Fingerprint: fp,
		Verdict: core.Verdict{
			Classification: core.ClassificationPhishing,
			ThreatLevel:    core.ThreatLevelHigh,
			Confidence:     0.91,
			Keywords:       []string{"verify", "suspended"},
			Reasoning:      "remote",
		},
		ModelUsed: "test-model",
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func exerciseCache(t *testing.T, c stoppable) {
	t.Helper()
	defer c.Stop()
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := c.Set(ctx, testEntry("fresh", time.Hour)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := c.Get(ctx, "fresh")
	if err != nil {
		t.Fatalf("Get(fresh) error = %v", err)
	}
	if got.Verdict.Classification != core.ClassificationPhishing || got.ModelUsed != "test-model" || len(got.Verdict.Keywords) != 2 {
		t.Errorf("Get(fresh) = %+v", got)
	}

	if err := c.Set(ctx, testEntry("stale", -time.Minute)); err != nil {
		t.Fatalf("Set(stale) error = %v", err)
	}
	if _, err := c.Get(ctx, "stale"); !errors.Is(err, ErrExpired) {
		t.Errorf("Get(stale) error = %v, want ErrExpired", err)
	}
	if err := c.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := c.Get(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(stale) after cleanup error = %v, want ErrNotFound", err)
	}

	if err := c.Delete(ctx, "fresh"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := c.Get(ctx, "fresh"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(fresh) after delete error = %v, want ErrNotFound", err)
	}
}

func TestMemoryCache(t *testing.T) {
	exerciseCache(t, NewMemoryCache(zap.NewNop(), time.Minute))
}

func TestMemoryCacheCopiesEntries(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()

	e := testEntry("fp", time.Hour)
	_ = c.Set(context.Background(), e)
	e.Verdict.Keywords[0] = "mutated"

	got, _ := c.Get(context.Background(), "fp")
	if got.Verdict.Keywords[0] != "verify" {
		t.Errorf("cache shares keyword slice with caller: %v", got.Verdict.Keywords)
	}
}

func TestSQLiteCache(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop(), time.Minute)
	if err != nil {
		t.Fatalf("NewSQLiteCache() error = %v", err)
	}
	exerciseCache(t, c)
}
