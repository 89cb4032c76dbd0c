package factory

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/config"
	"github.com/mikey/mail-threat-classifier/internal/core"
	"github.com/mikey/mail-threat-classifier/internal/utils"
)

func testConfig(values map[string]any) *config.Config {
	cfg := config.NewFromViper(config.NewEmptyViper())
	for k, v := range values {
		cfg.Set(k, v)
	}
	return cfg
}

func TestCreateLLMClient(t *testing.T) {
	tests := []struct {
		name     string
		values   map[string]any
		wantNil  bool
		wantErr  bool
		wantName string
	}{
		{name: "none", values: map[string]any{"llm.provider": "none"}, wantNil: true},
		{name: "unsupported", values: map[string]any{"llm.provider": "carrier-pigeon"}, wantErr: true},
		{
			name: "openai compatible",
			values: map[string]any{
				"llm.provider":      "openai",
				"openai.api_key":    "sk-test",
				"openai.base_url":   "http://localhost:11434/v1",
				"openai.model_name": "llama3",
			},
			wantName: "llama3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewLLMFactory(testConfig(tt.values), zap.NewNop(), utils.NewTextProcessor(nil))
			client, err := f.CreateLLMClient()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateLLMClient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (client == nil) != tt.wantNil {
				t.Fatalf("CreateLLMClient() = %v, wantNil %v", client, tt.wantNil)
			}
			if client != nil && client.Model() != tt.wantName {
				t.Errorf("Model() = %q, want %q", client.Model(), tt.wantName)
			}
		})
	}
}

func TestServiceOptions(t *testing.T) {
	f := NewLLMFactory(testConfig(map[string]any{"external.max_retries": 3, "cache.ttl": "2h"}), zap.NewNop(), nil)
	opts := f.ServiceOptions()
	if opts.MaxRetries != 3 || opts.CacheTTL.Hours() != 2 || !opts.CacheEnabled {
		t.Errorf("ServiceOptions() = %+v", opts)
	}
}

func TestCreateVerdictCache(t *testing.T) {
	c, err := NewCacheFactory(testConfig(map[string]any{"cache.type": "memory"}), zap.NewNop()).CreateVerdictCache()
	if err != nil || c == nil {
		t.Fatalf("memory cache = %v, %v", c, err)
	}
	c.Stop()

	c, err = NewCacheFactory(testConfig(map[string]any{"cache.enabled": false}), zap.NewNop()).CreateVerdictCache()
	if err != nil || c != nil {
		t.Errorf("disabled cache = %v, %v; want nil, nil", c, err)
	}

	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	c, err = NewCacheFactory(testConfig(map[string]any{"cache.type": "sqlite", "cache.sqlite_path": path}), zap.NewNop()).CreateVerdictCache()
	if err != nil {
		t.Fatalf("sqlite cache error = %v", err)
	}
	c.Stop()

	if _, err := NewCacheFactory(testConfig(map[string]any{"cache.type": "tape"}), zap.NewNop()).CreateVerdictCache(); err == nil {
		t.Error("unsupported cache type accepted")
	}
}

func TestCreateResultStore(t *testing.T) {
	s, err := NewStoreFactory(testConfig(nil), zap.NewNop()).CreateResultStore()
	if err != nil || s != nil {
		t.Errorf("default store = %v, %v; want nil, nil", s, err)
	}

	path := filepath.Join(t.TempDir(), "store.db")
	s, err = NewStoreFactory(testConfig(map[string]any{"store.type": "sqlite", "store.sqlite_path": path}), zap.NewNop()).CreateResultStore()
	if err != nil || s == nil {
		t.Fatalf("sqlite store = %v, %v", s, err)
	}
	s.Close()
}

func TestCreateEngineExtendsAllowlist(t *testing.T) {
	cfg := testConfig(map[string]any{"spam.whitelisted_domains": []string{"partner-corp.example"}})
	e, err := CreateEngine(cfg, utils.NewTextProcessor(nil), zap.NewNop())
	if err != nil {
		t.Fatalf("CreateEngine() error = %v", err)
	}

	res := e.EvaluateSender("billing@partner-corp.example")
	if !res.Allowlisted || res.Tier != core.TrustHigh {
		t.Errorf("EvaluateSender() = %+v, want allowlisted high trust", res)
	}
}
