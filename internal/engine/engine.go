package engine

import (
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/core"
	"github.com/mikey/mail-threat-classifier/internal/utils"
	"github.com/mikey/mail-threat-classifier/internal/whitelist"
)

const maxJitterBand = 0.1

// JitterConfig controls the optional random spread added to local confidences
type JitterConfig struct {
	Enabled bool    `mapstructure:"jitter"`
	Seed    uint64  `mapstructure:"jitter_seed"`
	Band    float64 `mapstructure:"jitter_band"`
}

// Engine is the local classifier: lexical scoring, sender trust and naive
// Bayes fusion merged by the synthesizer. It holds no mutable state apart from
// the jitter source and is safe for concurrent use.
type Engine struct {
	lexical     *LexicalScorer
	sender      *SenderEvaluator
	fusion      *FusionModel
	synthesizer *Synthesizer
	text        *utils.TextProcessor
	logger      *zap.Logger
}

// NewEngine creates a new local engine. allowlist and text may be nil.
func NewEngine(
	tables *Tables,
	thresholds Thresholds,
	allowlist *whitelist.Checker,
	text *utils.TextProcessor,
	jitter JitterConfig,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if text == nil {
		text = utils.NewTextProcessor(logger)
	}
	if thresholds.MaxKeywords <= 0 {
		thresholds.MaxKeywords = core.MaxKeywords
	}

	return &Engine{
		lexical:     NewLexicalScorer(tables),
		sender:      NewSenderEvaluator(tables, thresholds, allowlist),
		fusion:      NewFusionModel(tables, thresholds),
		synthesizer: NewSynthesizer(tables, thresholds, newJitter(jitter)),
		text:        text,
		logger:      logger,
	}
}

// NewDefaultEngine creates an engine with the built-in tables and thresholds and no jitter
func NewDefaultEngine(logger *zap.Logger) *Engine {
	return NewEngine(DefaultTables(), DefaultThresholds(), nil, nil, JitterConfig{}, logger)
}

// Classify implements core.LocalClassifier
func (e *Engine) Classify(req *core.ClassificationRequest) (*core.Verdict, error) {
	if err := req.Validate(false); err != nil {
		return nil, err
	}

	text := e.text.Normalize(req.Subject + " " + req.Content)

	lex := e.lexical.Score(text)
	trust := e.sender.Evaluate(req.Sender)
	fusion := e.fusion.Fuse(text)
	verdict := e.synthesizer.Synthesize(lex, trust, fusion, text)

	e.logger.Debug("Local classification complete",
		zap.String("sender", req.Sender),
		zap.String("classification", string(verdict.Classification)),
		zap.String("threat_level", string(verdict.ThreatLevel)),
		zap.String("trust_tier", string(trust.Tier)),
		zap.Float64("spam_probability", fusion.SpamProbability),
		zap.Float64("confidence", verdict.Confidence))

	return verdict, nil
}

// EvaluateSender exposes the sender trust evaluation
func (e *Engine) EvaluateSender(sender string) *TrustResult {
	return e.sender.Evaluate(sender)
}

// newJitter returns a uniform source in [-band, band], or nil when disabled
func newJitter(cfg JitterConfig) func() float64 {
	if !cfg.Enabled {
		return nil
	}
	band := cfg.Band
	if band <= 0 || band > maxJitterBand {
		band = maxJitterBand / 2
	}

	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return (rng.Float64()*2 - 1) * band
	}
}
