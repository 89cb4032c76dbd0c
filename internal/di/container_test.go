package di

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/mail-threat-classifier/internal/adapters/filter"
	"github.com/mikey/mail-threat-classifier/internal/batch"
	"github.com/mikey/mail-threat-classifier/internal/config"
	"github.com/mikey/mail-threat-classifier/internal/core"
)

func TestBuildCLIContainer(t *testing.T) {
	var out bytes.Buffer
	container, err := BuildCLIContainer(&CLIFlags{Provider: "none", Output: &out})
	if err != nil {
		t.Fatalf("BuildCLIContainer() error = %v", err)
	}

	err = container.Invoke(func(svc *core.ClassifierService, cli *filter.CliFilter, coord *batch.Coordinator) {
		if svc.HasExternal() {
			t.Error("provider none produced a remote classifier")
		}

		req := &core.ClassificationRequest{
			Subject: "Your Account Has Been Suspended",
			Sender:  "secure-update@paypa1.com",
			Content: "Verify your identity immediately or lose access. Click here now.",
		}
		outcome, err := cli.ProcessEmail(context.Background(), req, true, filter.FormatJSON)
		if err != nil {
			t.Fatalf("ProcessEmail() error = %v", err)
		}
		if outcome.Verdict.Classification != core.ClassificationPhishing || outcome.Provenance != core.ProvenanceLocal {
			t.Errorf("outcome = %+v", outcome)
		}

		res := coord.Process(context.Background(), []core.ClassificationRequest{*req})
		if res.Processed != 1 {
			t.Errorf("batch processed = %d, want 1", res.Processed)
		}
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := config.NewFromViper(config.NewEmptyViper())
	applyFlags(cfg, &CLIFlags{
		Provider:  "openai",
		APIKey:    "sk",
		Model:     "llama3",
		BaseURL:   "http://localhost:11434/v1",
		Whitelist: []string{"partner-corp.example"},
	})

	oc := cfg.GetOpenAI()
	if cfg.GetLLM().Provider != "openai" || oc.APIKey != "sk" || oc.ModelName != "llama3" || oc.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("config after flags = %+v", oc)
	}
	if got := cfg.GetWhitelistedDomains(); len(got) != 1 || got[0] != "partner-corp.example" {
		t.Errorf("whitelisted domains = %v", got)
	}
}

type recordingFilter struct {
	started, stopped bool
}

func (f *recordingFilter) Start() error { f.started = true; return nil }
func (f *recordingFilter) Stop() error  { f.stopped = true; return nil }

func TestDaemonRunStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	conf := "server:\n  http_address: 127.0.0.1:0\ncache:\n  type: memory\nlogging:\n  level: error\n"
	if err := os.WriteFile(path, []byte(conf), 0o600); err != nil {
		t.Fatal(err)
	}

	container, err := BuildContainer(path)
	if err != nil {
		t.Fatalf("BuildContainer() error = %v", err)
	}

	rf := &recordingFilter{}
	err = container.Invoke(func(d Daemon) {
		d.Filters = append(d.Filters, rf)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- d.Run(ctx) }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run() did not return after cancel")
		}
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !rf.started || !rf.stopped {
		t.Errorf("filter started=%v stopped=%v", rf.started, rf.stopped)
	}
}
