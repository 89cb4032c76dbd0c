package core

import (
	"context"
)

// LocalClassifier defines the in-process classification engine
type LocalClassifier interface {
	// Classify produces a verdict without any I/O
	Classify(req *ClassificationRequest) (*Verdict, error)
}

// LLMClient defines the interface for interacting with remote classification services
type LLMClient interface {
	// ClassifyEmail asks the remote service for a verdict
	ClassifyEmail(ctx context.Context, req *ClassificationRequest) (*Verdict, error)

	// Model returns the model identifier used for audit records
	Model() string
}

// VerdictCache defines the interface for caching remote verdicts
type VerdictCache interface {
	// Get retrieves a cached entry by message fingerprint
	Get(ctx context.Context, fingerprint string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, fingerprint string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// ResultStore defines the persistence collaborator for classified messages
type ResultStore interface {
	// Save persists one classification record
	Save(ctx context.Context, rec *ClassificationRecord) error
}

// Recorder receives classification events for metrics
type Recorder interface {
	ObserveVerdict(v *Verdict, provenance Provenance)
	ObserveExternalAttempt(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveVerdict(*Verdict, Provenance) {}
func (nopRecorder) ObserveExternalAttempt(string)       {}
