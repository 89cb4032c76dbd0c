package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const localModelName = "local-engine"

// ServiceOptions tunes the remote path of the classifier service
type ServiceOptions struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	MaxRetries   int
	BaseDelay    time.Duration
}

// ClassifierService is the core service for threat classification. It runs the
// local engine directly, or tries the remote classifier first and falls back
// to the local engine when the remote path fails.
type ClassifierService struct {
	local        LocalClassifier
	external     LLMClient
	cache        VerdictCache
	recorder     Recorder
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
	maxRetries   uint64
	baseDelay    time.Duration
}

// NewClassifierService creates a new classifier service. external, cache and
// recorder may be nil.
func NewClassifierService(
	local LocalClassifier,
	external LLMClient,
	cache VerdictCache,
	recorder Recorder,
	logger *zap.Logger,
	opts ServiceOptions,
) *ClassifierService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	return &ClassifierService{
		local:        local,
		external:     external,
		cache:        cache,
		recorder:     recorder,
		logger:       logger,
		cacheEnabled: opts.CacheEnabled && cache != nil,
		cacheTTL:     opts.CacheTTL,
		maxRetries:   uint64(opts.MaxRetries),
		baseDelay:    opts.BaseDelay,
	}
}

// HasExternal reports whether a remote classifier is configured
func (s *ClassifierService) HasExternal() bool {
	return s.external != nil
}

// Classify classifies one message. With useExternal set and a remote
// classifier configured, the remote verdict is preferred.
func (s *ClassifierService) Classify(ctx context.Context, req *ClassificationRequest, useExternal bool) (*Outcome, error) {
	if err := req.Validate(false); err != nil {
		return nil, err
	}

	if !useExternal || s.external == nil {
		return s.classifyLocal(req, ProvenanceLocal, 0, nil)
	}

	fingerprint := req.Fingerprint()
	if s.cacheEnabled {
		if entry, err := s.cache.Get(ctx, fingerprint); err == nil {
			s.logger.Debug("Cache hit for message", zap.String("sender", req.Sender))
			verdict := entry.Verdict
			s.recorder.ObserveVerdict(&verdict, ProvenanceCache)
			return &Outcome{
				Verdict:      &verdict,
				Provenance:   ProvenanceCache,
				ModelUsed:    entry.ModelUsed,
				ProcessingID: uuid.NewString(),
				AnalyzedAt:   time.Now(),
			}, nil
		}
	}

	verdict, attempts, err := s.classifyRemote(ctx, req)
	if err != nil {
		s.logger.Warn("Remote classification failed, using local engine",
			zap.String("sender", req.Sender),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return s.classifyLocal(req, ProvenanceLocalFallback, attempts, err)
	}

	if s.cacheEnabled {
		now := time.Now()
		entry := &CacheEntry{
			Fingerprint: fingerprint,
			Verdict:     *verdict,
			ModelUsed:   s.external.Model(),
			CachedAt:    now,
			ExpiresAt:   now.Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	s.recorder.ObserveVerdict(verdict, ProvenanceRemote)
	return &Outcome{
		Verdict:      verdict,
		Provenance:   ProvenanceRemote,
		Attempts:     attempts,
		ModelUsed:    s.external.Model(),
		ProcessingID: uuid.NewString(),
		AnalyzedAt:   time.Now(),
	}, nil
}

// classifyRemote calls the remote classifier, retrying transient failures with
// exponential backoff. Malformed and rejected responses are returned at once.
func (s *ClassifierService) classifyRemote(ctx context.Context, req *ClassificationRequest) (*Verdict, int, error) {
	var (
		verdict  *Verdict
		attempts int
	)

	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		v, err := s.external.ClassifyEmail(ctx, req)
		if err != nil {
			if IsRetryable(err) {
				s.recorder.ObserveExternalAttempt("retry")
				s.logger.Info("Remote classifier unavailable, backing off",
					zap.Int("attempt", attempts),
					zap.Error(err))
				return retry.RetryableError(err)
			}
			s.recorder.ObserveExternalAttempt(outcomeLabel(err))
			return err
		}
		verdict = v
		return nil
	})
	if err != nil {
		return nil, attempts, err
	}
	if verdict == nil {
		s.recorder.ObserveExternalAttempt("malformed")
		return nil, attempts, fmt.Errorf("%w: empty verdict", ErrMalformedResponse)
	}

	s.recorder.ObserveExternalAttempt("success")
	return NormalizeRemoteVerdict(verdict), attempts, nil
}

func (s *ClassifierService) classifyLocal(req *ClassificationRequest, provenance Provenance, attempts int, cause error) (*Outcome, error) {
	verdict, err := s.local.Classify(req)
	if err != nil {
		return nil, err
	}
	s.recorder.ObserveVerdict(verdict, provenance)

	outcome := &Outcome{
		Verdict:      verdict,
		Provenance:   provenance,
		Attempts:     attempts,
		ModelUsed:    localModelName,
		ProcessingID: uuid.NewString(),
		AnalyzedAt:   time.Now(),
	}
	if cause != nil {
		outcome.FallbackReason = cause.Error()
	}
	return outcome, nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrUpstreamRejected):
		return "rejected"
	case errors.Is(err, ErrTransientUpstream):
		return "exhausted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}
