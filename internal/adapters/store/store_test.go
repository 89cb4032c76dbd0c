package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

func record(id string) *core.ClassificationRecord {
	return &core.ClassificationRecord{
		UserID:    "user-1",
		MessageID: "msg-" + id,
		Subject:   "Weekly Team Meeting Notes",
		Sender:    "manager@yourcompany.com",
		Content:   "Please review the agenda.",
		Verdict: core.Verdict{
			Classification: core.ClassificationLegitimate,
			ThreatLevel:    core.ThreatLevelLow,
			Confidence:     0.85,
			Keywords:       []string{"team", "meeting"},
		},
		Provenance:   core.ProvenanceLocal,
		ModelUsed:    "local-engine",
		ProcessingID: id,
		ProcessedAt:  time.Now(),
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "store.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	for _, id := range []string{"a", "b", "a"} {
		if err := s.Save(ctx, record(id)); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	n, err := s.Count(ctx, "user-1")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2 (duplicate processing id ignored)", n)
	}
}

func TestSQLiteStoreClosed(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "store.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	s.Close()

	if err := s.Save(context.Background(), record("x")); !errors.Is(err, core.ErrPersistence) {
		t.Errorf("Save() on closed store error = %v, want ErrPersistence", err)
	}
}
