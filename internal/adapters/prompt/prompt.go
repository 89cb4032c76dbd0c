// Package prompt holds the instructions sent to remote classifiers and the
// parsing of their JSON answers.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mikey/mail-threat-classifier/internal/core"
	"github.com/mikey/mail-threat-classifier/internal/utils"
)

// SystemInstruction is sent as the system role where the provider supports one
const SystemInstruction = "You are an email security analyst. Respond only with JSON."

const userFormat = `Classify the following email for security threats.
Respond with a single JSON object containing:
- classification: one of "legitimate", "spam", "phishing", "malware", "scam", "social_engineering"
- threat_level: one of "high", "medium", "low"
- confidence: number between 0 and 1
- keywords: array of at most 5 short strings that drove the decision
- reasoning: one or two sentences
- threat_type: optional finer label such as "business_email_compromise" or "ransomware"

Email:
From: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

// Builder renders classification prompts with the body cut to a size limit
type Builder struct {
	text        *utils.TextProcessor
	maxBodySize int
}

// NewBuilder creates a new prompt builder
func NewBuilder(text *utils.TextProcessor, maxBodySize int) *Builder {
	return &Builder{text: text, maxBodySize: maxBodySize}
}

// Build returns the user prompt for req
func (b *Builder) Build(req *core.ClassificationRequest) string {
	body := b.text.ProcessText(req.Content, b.maxBodySize)
	return fmt.Sprintf(userFormat, req.Sender, req.Subject, body)
}

type response struct {
	Classification string          `json:"classification"`
	ThreatLevel    string          `json:"threat_level"`
	Confidence     json.Number     `json:"confidence"`
	Keywords       json.RawMessage `json:"keywords"`
	Reasoning      string          `json:"reasoning"`
	ThreatType     string          `json:"threat_type"`
}

// ParseVerdict decodes a model answer into a verdict. Text around the JSON
// object (markdown fences, prose) is ignored. Enum coercion is left to
// core.NormalizeRemoteVerdict.
func ParseVerdict(text string) (*core.Verdict, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", core.ErrMalformedResponse)
	}

	dec := json.NewDecoder(strings.NewReader(text[start : end+1]))
	dec.UseNumber()
	var r response
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)
	}
	if strings.TrimSpace(r.Classification) == "" {
		return nil, fmt.Errorf("%w: missing classification", core.ErrMalformedResponse)
	}

	v := &core.Verdict{
		Classification: core.Classification(r.Classification),
		ThreatLevel:    core.ThreatLevel(r.ThreatLevel),
		Reasoning:      r.Reasoning,
		ThreatType:     r.ThreatType,
		Keywords:       parseKeywords(r.Keywords),
	}
	if r.Confidence != "" {
		f, err := r.Confidence.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: confidence %q", core.ErrMalformedResponse, r.Confidence)
		}
		v.Confidence = f
	}
	return v, nil
}

// parseKeywords accepts either a JSON array of strings or a comma separated string
func parseKeywords(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		return strings.Split(joined, ",")
	}
	return nil
}
