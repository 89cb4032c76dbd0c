// Package batch classifies ordered sequences of messages with bounded
// parallelism, pacing for the remote classifier and a wall-clock budget.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

// Item status labels reported to the recorder
const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Classifier is the single-message classification entry point
type Classifier interface {
	Classify(ctx context.Context, req *core.ClassificationRequest, useExternal bool) (*core.Outcome, error)
	HasExternal() bool
}

// ItemRecorder receives per-item batch outcomes
type ItemRecorder interface {
	ObserveBatchItem(status string)
}

// Options tunes a Coordinator
type Options struct {
	Concurrency      int
	ExternalFirstN   int
	SmallBatch       int
	ExternalInterval time.Duration
	Timeout          time.Duration
	RequireUserID    bool
}

// Coordinator runs batches through a Classifier
type Coordinator struct {
	classifier Classifier
	store      core.ResultStore
	recorder   ItemRecorder
	logger     *zap.Logger
	opts       Options
}

// NewCoordinator creates a batch coordinator. store and recorder may be nil.
func NewCoordinator(classifier Classifier, store core.ResultStore, recorder ItemRecorder, logger *zap.Logger, opts Options) *Coordinator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Coordinator{
		classifier: classifier,
		store:      store,
		recorder:   recorder,
		logger:     logger,
		opts:       opts,
	}
}

// useExternal is the remote-path policy for the item at index i of a batch of n
func (c *Coordinator) useExternal(i, n int) bool {
	if !c.classifier.HasExternal() {
		return false
	}
	return i < c.opts.ExternalFirstN || n <= c.opts.SmallBatch
}

// Process classifies reqs and returns the aggregated result. Items missing
// required fields are skipped and left out of the results; a failing item
// never stops the others. When the batch budget runs out the results of the
// completed items are still returned.
func (c *Coordinator) Process(ctx context.Context, reqs []core.ClassificationRequest) *core.BatchResult {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	var limiter *rate.Limiter
	if c.opts.ExternalInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(c.opts.ExternalInterval), 1)
	}

	c.logger.Info("Processing batch", zap.Int("size", len(reqs)))

	slots := make([]*core.ItemResult, len(reqs))
	skipped := 0

	g := new(errgroup.Group)
	g.SetLimit(c.opts.Concurrency)

	for i := range reqs {
		req := reqs[i]
		if err := req.Validate(c.opts.RequireUserID); err != nil {
			skipped++
			c.observe(StatusSkipped)
			c.logger.Warn("Skipping batch item",
				zap.Int("index", i),
				zap.String("sender", req.Sender),
				zap.Error(err))
			continue
		}
		if req.MessageID == "" {
			req.MessageID = "classified_" + uuid.NewString()
		}

		item := &core.ItemResult{
			Index:     i,
			MessageID: req.MessageID,
			Subject:   req.Subject,
			Sender:    req.Sender,
		}
		slots[i] = item
		external := c.useExternal(i, len(reqs))

		g.Go(func() error {
			c.processItem(ctx, &req, external, limiter, item)
			return nil
		})
	}
	_ = g.Wait()

	result := &core.BatchResult{
		Skipped:  skipped,
		Total:    len(reqs),
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
		Results:  make([]core.ItemResult, 0, len(reqs)-skipped),
	}
	for _, item := range slots {
		if item == nil {
			continue
		}
		result.Attempted++
		if item.Success {
			result.Processed++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, *item)
	}

	c.logger.Info("Batch complete",
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("total", result.Total),
		zap.Bool("timed_out", result.TimedOut))
	return result
}

func (c *Coordinator) processItem(ctx context.Context, req *core.ClassificationRequest, external bool, limiter *rate.Limiter, item *core.ItemResult) {
	if err := ctx.Err(); err != nil {
		c.fail(item, fmt.Errorf("%w: item %d not started", core.ErrBatchDeadline, item.Index))
		return
	}

	if external && limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			// Budget too short to wait for the next remote slot.
			external = false
		}
	}

	outcome, err := c.classifier.Classify(ctx, req, external)
	if err != nil {
		c.fail(item, err)
		return
	}

	if c.store != nil {
		rec := &core.ClassificationRecord{
			UserID:       req.UserID,
			MessageID:    req.MessageID,
			Subject:      req.Subject,
			Sender:       req.Sender,
			Content:      req.Content,
			Verdict:      *outcome.Verdict,
			Provenance:   outcome.Provenance,
			ModelUsed:    outcome.ModelUsed,
			ProcessingID: outcome.ProcessingID,
			ProcessedAt:  outcome.AnalyzedAt,
		}
		// A finished classification is saved even if the batch budget ran out meanwhile.
		if err := c.store.Save(context.WithoutCancel(ctx), rec); err != nil {
			if !errors.Is(err, core.ErrPersistence) {
				err = fmt.Errorf("%w: %v", core.ErrPersistence, err)
			}
			c.fail(item, err)
			return
		}
	}

	v := outcome.Verdict
	confidence := v.Confidence
	item.Classification = v.Classification
	item.ThreatLevel = v.ThreatLevel
	item.ThreatType = v.ThreatType
	item.Confidence = &confidence
	if v.MLProbability > 0 {
		p := v.MLProbability
		item.MLProbability = &p
	}
	item.Provenance = outcome.Provenance
	item.Success = true
	c.observe(StatusProcessed)

	c.logger.Debug("Batch item classified",
		zap.Int("index", item.Index),
		zap.String("classification", string(v.Classification)),
		zap.String("threat_level", string(v.ThreatLevel)),
		zap.String("provenance", string(outcome.Provenance)))
}

func (c *Coordinator) fail(item *core.ItemResult, err error) {
	item.Err = err
	item.Error = err.Error()
	c.observe(StatusFailed)
	c.logger.Error("Batch item failed",
		zap.Int("index", item.Index),
		zap.String("sender", item.Sender),
		zap.Error(err))
}

func (c *Coordinator) observe(status string) {
	if c.recorder != nil {
		c.recorder.ObserveBatchItem(status)
	}
}
