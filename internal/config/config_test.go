package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	if got := cfg.GetLLM().Provider; got != "none" {
		t.Errorf("llm.provider = %q, want none", got)
	}
	ext := cfg.GetExternal()
	if ext.MaxRetries != 2 || ext.BaseDelay != time.Second {
		t.Errorf("external = %+v", ext)
	}
	b := cfg.GetBatch()
	if b.Concurrency != 4 || b.ExternalFirstN != 10 || b.SmallBatch != 5 ||
		b.ExternalInterval != 500*time.Millisecond || b.Timeout != 2*time.Minute {
		t.Errorf("batch = %+v", b)
	}

	th, err := cfg.GetEngine()
	if err != nil {
		t.Fatalf("GetEngine() error = %v", err)
	}
	if th.HighProbability != 0.75 || th.MinFamilyScore != 3 || len(th.FamilyPrecedence) != 5 {
		t.Errorf("engine thresholds = %+v", th)
	}
	j, err := cfg.GetJitter()
	if err != nil {
		t.Fatalf("GetJitter() error = %v", err)
	}
	if j.Enabled || j.Band != 0.05 {
		t.Errorf("jitter = %+v", j)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
llm:
  provider: openai
engine:
  high_probability: 0.8
  jitter: true
  jitter_seed: 7
batch:
  concurrency: 2
  timeout: 30s
cache:
  type: sqlite
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("THREAT_CLASSIFIER_OPENAI_MODEL_NAME", "local-model")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.GetLLM().Provider != "openai" {
		t.Errorf("provider = %q", cfg.GetLLM().Provider)
	}
	if cfg.GetOpenAI().ModelName != "local-model" {
		t.Errorf("env override not applied: %q", cfg.GetOpenAI().ModelName)
	}
	if b := cfg.GetBatch(); b.Concurrency != 2 || b.Timeout != 30*time.Second {
		t.Errorf("batch = %+v", b)
	}
	if cfg.GetCache().Type != "sqlite" {
		t.Errorf("cache type = %q", cfg.GetCache().Type)
	}

	th, err := cfg.GetEngine()
	if err != nil {
		t.Fatalf("GetEngine() error = %v", err)
	}
	if th.HighProbability != 0.8 || th.MediumProbability != 0.45 {
		t.Errorf("engine overlay = %v / %v", th.HighProbability, th.MediumProbability)
	}
	j, _ := cfg.GetJitter()
	if !j.Enabled || j.Seed != 7 {
		t.Errorf("jitter = %+v", j)
	}
}
