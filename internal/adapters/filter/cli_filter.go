package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

// Output formats understood by the CLI filter
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// CliFilter classifies single messages from the command line
type CliFilter struct {
	classifier Classifier
	logger     *zap.Logger
	out        io.Writer
	verbose    bool
}

// NewCliFilter creates a new CLI filter writing to out
func NewCliFilter(classifier Classifier, logger *zap.Logger, out io.Writer, verbose bool) *CliFilter {
	return &CliFilter{
		classifier: classifier,
		logger:     logger,
		out:        out,
		verbose:    verbose,
	}
}

// report is the rendered form of one classification
type report struct {
	Subject        string          `json:"subject"`
	Sender         string          `json:"sender"`
	Classification string          `json:"classification"`
	ThreatLevel    string          `json:"threat_level"`
	ThreatType     string          `json:"threat_type,omitempty"`
	Confidence     float64         `json:"confidence"`
	MLProbability  float64         `json:"ml_probability,omitempty"`
	Keywords       []string        `json:"keywords"`
	Reasoning      string          `json:"reasoning"`
	Provenance     core.Provenance `json:"provenance"`
	FallbackReason string          `json:"fallback_reason,omitempty"`
	ModelUsed      string          `json:"model_used"`
	ProcessingTime string          `json:"processing_time"`
}

// ProcessEmail classifies req and renders the outcome in format
func (f *CliFilter) ProcessEmail(ctx context.Context, req *core.ClassificationRequest, useExternal bool, format string) (*core.Outcome, error) {
	f.logger.Debug("Processing email", zap.String("sender", req.Sender))

	start := time.Now()
	outcome, err := f.classifier.Classify(ctx, req, useExternal)
	if err != nil {
		f.logger.Error("Failed to classify email", zap.Error(err))
		return nil, err
	}

	v := outcome.Verdict
	r := report{
		Subject:        req.Subject,
		Sender:         req.Sender,
		Classification: string(v.Classification),
		ThreatLevel:    string(v.ThreatLevel),
		ThreatType:     v.ThreatType,
		Confidence:     v.Confidence,
		MLProbability:  v.MLProbability,
		Keywords:       v.Keywords,
		Reasoning:      v.Reasoning,
		Provenance:     outcome.Provenance,
		FallbackReason: outcome.FallbackReason,
		ModelUsed:      outcome.ModelUsed,
		ProcessingTime: time.Since(start).String(),
	}
	if r.Keywords == nil {
		r.Keywords = []string{}
	}

	switch format {
	case FormatJSON:
		err = WriteJSON(f.out, r)
	case FormatYAML:
		err = WriteYAML(f.out, r)
	default:
		err = f.writeText(req, r)
	}
	return outcome, err
}

func (f *CliFilter) writeText(req *core.ClassificationRequest, r report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n=== Email Summary ===\n")
	fmt.Fprintf(&b, "From: %s\n", req.Sender)
	fmt.Fprintf(&b, "Subject: %s\n", req.Subject)
	fmt.Fprintf(&b, "Body length: %d bytes\n", len(req.Content))
	if f.verbose {
		preview := req.Content
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		fmt.Fprintf(&b, "\nBody preview:\n%s\n", preview)
	}

	fmt.Fprintf(&b, "\n=== Results ===\n")
	fmt.Fprintf(&b, "Classification: %s\n", r.Classification)
	fmt.Fprintf(&b, "Threat level: %s\n", r.ThreatLevel)
	if r.ThreatType != "" {
		fmt.Fprintf(&b, "Threat type: %s\n", r.ThreatType)
	}
	fmt.Fprintf(&b, "Confidence: %.2f\n", r.Confidence)
	fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(r.Keywords, ", "))
	fmt.Fprintf(&b, "Reasoning: %s\n", r.Reasoning)
	fmt.Fprintf(&b, "Provenance: %s\n", r.Provenance)
	if r.FallbackReason != "" {
		fmt.Fprintf(&b, "Fallback reason: %s\n", r.FallbackReason)
	}
	fmt.Fprintf(&b, "Model used: %s\n", r.ModelUsed)
	fmt.Fprintf(&b, "Processing time: %s\n", r.ProcessingTime)

	_, err := io.WriteString(f.out, b.String())
	return err
}

// WriteJSON renders v as indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteYAML renders v as YAML, keyed by its JSON field names
func WriteYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
