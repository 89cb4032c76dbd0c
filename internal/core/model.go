package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ClassificationRequest represents a single message submitted for classification
type ClassificationRequest struct {
	Subject   string `json:"subject"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	UserID    string `json:"user_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// Validate checks the fields required to classify a message
func (r *ClassificationRequest) Validate(requireUserID bool) error {
	switch {
	case strings.TrimSpace(r.Subject) == "":
		return invalidInput("subject")
	case strings.TrimSpace(r.Sender) == "":
		return invalidInput("sender")
	case requireUserID && strings.TrimSpace(r.UserID) == "":
		return invalidInput("user_id")
	}
	return nil
}

// Fingerprint returns a stable digest of the classified fields, used as a cache key
func (r *ClassificationRequest) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(r.Sender))))
	h.Write([]byte{0})
	h.Write([]byte(r.Subject))
	h.Write([]byte{0})
	h.Write([]byte(r.Content))
	return hex.EncodeToString(h.Sum(nil))
}

// Classification is the verdict label assigned to a message
type Classification string

const (
	ClassificationLegitimate        Classification = "legitimate"
	ClassificationSpam              Classification = "spam"
	ClassificationPhishing          Classification = "phishing"
	ClassificationMalware           Classification = "malware"
	ClassificationScam              Classification = "scam"
	ClassificationSocialEngineering Classification = "social_engineering"
	// ClassificationPending is only produced when a remote verdict carries a label
	// that cannot be mapped; the message is left for manual review.
	ClassificationPending Classification = "pending"
)

// Valid reports whether c is one of the labels the local engine can produce
func (c Classification) Valid() bool {
	switch c {
	case ClassificationLegitimate, ClassificationSpam, ClassificationPhishing,
		ClassificationMalware, ClassificationScam, ClassificationSocialEngineering:
		return true
	}
	return false
}

// ThreatLevel is the coarse severity attached to a verdict
type ThreatLevel string

const (
	ThreatLevelHigh   ThreatLevel = "high"
	ThreatLevelMedium ThreatLevel = "medium"
	ThreatLevelLow    ThreatLevel = "low"
	// ThreatLevelUnknown is only produced when a remote verdict carries an unmappable level.
	ThreatLevelUnknown ThreatLevel = "unknown"
)

// Valid reports whether l is high, medium or low
func (l ThreatLevel) Valid() bool {
	return l == ThreatLevelHigh || l == ThreatLevelMedium || l == ThreatLevelLow
}

// Rank orders threat levels for comparisons
func (l ThreatLevel) Rank() int {
	switch l {
	case ThreatLevelHigh:
		return 3
	case ThreatLevelMedium:
		return 2
	case ThreatLevelLow:
		return 1
	}
	return 0
}

// ThreatFamily is a category of malicious intent with its own keyword table
type ThreatFamily string

const (
	FamilyPhishing          ThreatFamily = "phishing"
	FamilyMalware           ThreatFamily = "malware"
	FamilySocialEngineering ThreatFamily = "social_engineering"
	FamilyScam              ThreatFamily = "scam"
	FamilySpam              ThreatFamily = "spam"
)

// Classification maps a threat family to the verdict label of the same name
func (f ThreatFamily) Classification() Classification {
	return Classification(f)
}

// TrustTier describes how much a sender domain should be trusted
type TrustTier string

const (
	TrustHigh       TrustTier = "high"
	TrustMedium     TrustTier = "medium"
	TrustLow        TrustTier = "low"
	TrustSuspicious TrustTier = "suspicious"
	TrustAutomated  TrustTier = "automated"
	TrustUnknown    TrustTier = "unknown"
)

// Verdict represents the outcome of classifying one message
type Verdict struct {
	Classification Classification `json:"classification"`
	ThreatLevel    ThreatLevel    `json:"threat_level"`
	Confidence     float64        `json:"confidence"`
	Keywords       []string       `json:"keywords"`
	Reasoning      string         `json:"reasoning"`
	ThreatType     string         `json:"threat_type,omitempty"`
	// MLProbability is the adjusted spam probability of the local engine; zero for remote verdicts.
	MLProbability float64 `json:"ml_probability,omitempty"`
}

// Provenance records which path produced a verdict
type Provenance string

const (
	ProvenanceRemote        Provenance = "remote"
	ProvenanceLocal         Provenance = "local"
	ProvenanceLocalFallback Provenance = "local_fallback"
	ProvenanceCache         Provenance = "cache"
)

// Outcome wraps a verdict with the metadata needed to audit it
type Outcome struct {
	Verdict        *Verdict   `json:"verdict"`
	Provenance     Provenance `json:"provenance"`
	Attempts       int        `json:"attempts"`
	FallbackReason string     `json:"fallback_reason,omitempty"`
	ModelUsed      string     `json:"model_used"`
	ProcessingID   string     `json:"processing_id"`
	AnalyzedAt     time.Time  `json:"analyzed_at"`
}

// CacheEntry represents a cached remote verdict
type CacheEntry struct {
	Fingerprint string
	Verdict     Verdict
	ModelUsed   string
	CachedAt    time.Time
	ExpiresAt   time.Time
}

// ClassificationRecord is what the persistence collaborator stores per classified message
type ClassificationRecord struct {
	UserID       string
	MessageID    string
	Subject      string
	Sender       string
	Content      string
	Verdict      Verdict
	Provenance   Provenance
	ModelUsed    string
	ProcessingID string
	ProcessedAt  time.Time
}

// ItemResult is the per-message entry of a batch result
type ItemResult struct {
	Index          int            `json:"index"`
	MessageID      string         `json:"message_id,omitempty"`
	Subject        string         `json:"subject"`
	Sender         string         `json:"sender"`
	Classification Classification `json:"classification,omitempty"`
	ThreatLevel    ThreatLevel    `json:"threat_level,omitempty"`
	ThreatType     string         `json:"threat_type,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	MLProbability  *float64       `json:"ml_probability,omitempty"`
	Provenance     Provenance     `json:"provenance,omitempty"`
	Error          string         `json:"error,omitempty"`
	Success        bool           `json:"success"`

	// Err keeps the typed failure for in-process callers.
	Err error `json:"-"`
}

// BatchResult summarizes a batch call
type BatchResult struct {
	Processed int          `json:"processed_count"`
	Failed    int          `json:"failed_count"`
	Skipped   int          `json:"skipped_count"`
	Attempted int          `json:"attempted_count"`
	Total     int          `json:"total_count"`
	TimedOut  bool         `json:"timed_out"`
	Results   []ItemResult `json:"results"`
}
