package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

// confidence floors and ceilings of the probability bands
const (
	highBandFloor       = 0.80
	mediumBandFloor     = 0.65
	mediumBandCeiling   = 0.85
	informationalFloor  = 0.60
	informationalCeil   = 0.80
	cleanFloor          = 0.75
	trustedCleanFloor   = 0.90
	homographThreatType = "homograph_spoofing"
	typosquatThreatType = "typosquatting"
)

// Synthesizer combines the three engine signals into a verdict
type Synthesizer struct {
	tables     *Tables
	thresholds Thresholds
	jitter     func() float64
}

// NewSynthesizer creates a new verdict synthesizer. jitter may be nil.
func NewSynthesizer(tables *Tables, thresholds Thresholds, jitter func() float64) *Synthesizer {
	return &Synthesizer{
		tables:     tables,
		thresholds: thresholds,
		jitter:     jitter,
	}
}

// Synthesize builds the verdict for text (subject and content) from the engine signals
func (s *Synthesizer) Synthesize(lex *LexicalResult, trust *TrustResult, fusion *FusionResult, text string) *core.Verdict {
	th := &s.thresholds

	adjustment := s.trustAdjustment(trust)
	adjusted := core.Clamp01(fusion.SpamProbability + adjustment)
	conf := fusion.Confidence

	v := &core.Verdict{}
	switch {
	case adjusted > th.HighProbability:
		v.Classification, v.ThreatLevel = core.ClassificationSpam, core.ThreatLevelHigh
		conf = math.Max(highBandFloor, conf)
	case adjusted > th.MediumProbability:
		v.Classification, v.ThreatLevel = core.ClassificationSpam, core.ThreatLevelMedium
		conf = clamp(conf, mediumBandFloor, mediumBandCeiling)
	case adjusted > th.LowProbability || trust.Tier == core.TrustLow:
		v.Classification, v.ThreatLevel = core.ClassificationLegitimate, core.ThreatLevelMedium
		conf = clamp(conf, informationalFloor, informationalCeil)
	default:
		v.Classification, v.ThreatLevel = core.ClassificationLegitimate, core.ThreatLevelLow
		conf = math.Max(cleanFloor, conf)
		if trust.Allowlisted && adjusted <= th.NearZeroProbability {
			conf = math.Max(trustedCleanFloor, conf)
		}
	}

	if family, score, ok := lex.Dominant(th.FamilyPrecedence); ok && score >= th.MinFamilyScore {
		switch {
		case score >= th.HighFamilyScore:
			v.Classification, v.ThreatLevel = family.Classification(), core.ThreatLevelHigh
		case v.Classification == core.ClassificationSpam:
			v.Classification = family.Classification()
		case v.Classification == core.ClassificationLegitimate:
			v.Classification = family.Classification()
			if v.ThreatLevel.Rank() < core.ThreatLevelMedium.Rank() {
				v.ThreatLevel = core.ThreatLevelMedium
			}
		}
	}

	if trust.IsSuspicious && trust.SuspicionScore >= th.HighSuspicion {
		v.ThreatLevel = core.ThreatLevelHigh
		if v.Classification == core.ClassificationLegitimate {
			v.Classification = core.ClassificationSpam
		}
	}

	threatType, patternHits := s.threatType(text)
	if v.Classification != core.ClassificationLegitimate {
		switch {
		case threatType != "":
		case trust.Typosquatting:
			threatType = typosquatThreatType
		case trust.Homograph:
			threatType = homographThreatType
		}
		v.ThreatType = threatType
		if th.isSevere(threatType) {
			v.ThreatLevel = core.ThreatLevelHigh
			conf = math.Min(th.SevereCeiling, conf+th.SevereBoost)
		}
	}

	if s.jitter != nil {
		conf += s.jitter()
	}
	v.Confidence = core.Round2(core.Clamp01(conf))
	v.MLProbability = core.Round2(adjusted)
	v.Keywords = core.DedupKeywords(append(append([]string{}, lex.Evidence...), fusion.Evidence...), th.MaxKeywords)
	v.Reasoning = s.reasoning(lex, trust, fusion, adjusted, adjustment, patternHits, v.ThreatType)
	return v
}

func (s *Synthesizer) trustAdjustment(trust *TrustResult) float64 {
	th := &s.thresholds
	switch trust.Tier {
	case core.TrustSuspicious:
		return trust.SuspicionScore
	case core.TrustHigh:
		if trust.Allowlisted {
			return th.TrustedAdjustment
		}
	case core.TrustMedium:
		return th.MediumAdjustment
	case core.TrustAutomated:
		return th.AutomatedAdjustment
	case core.TrustLow:
		return th.LowTrustAdjustment
	}
	return 0
}

// threatType returns the pattern family with the most hits and the total hit
// count. Ties keep the family declared first.
func (s *Synthesizer) threatType(text string) (string, int) {
	lower := strings.ToLower(text)
	words := make(map[string]bool)
	for _, tok := range Tokenize(text) {
		words[tok] = true
	}

	best, bestHits, total := "", 0, 0
	for _, pf := range s.tables.ThreatPatterns {
		hits := 0
		for _, p := range pf.Patterns {
			if strings.ContainsRune(p, ' ') {
				if strings.Contains(lower, p) {
					hits++
				}
			} else if words[p] {
				hits++
			}
		}
		total += hits
		if hits > bestHits {
			best, bestHits = pf.Name, hits
		}
	}
	return best, total
}

func (s *Synthesizer) reasoning(lex *LexicalResult, trust *TrustResult, fusion *FusionResult, adjusted, adjustment float64, patternHits int, threatType string) string {
	var b strings.Builder

	b.WriteString("lexical scores:")
	for _, f := range s.thresholds.FamilyPrecedence {
		fmt.Fprintf(&b, " %s=%d", f, lex.Scores[f])
	}
	fmt.Fprintf(&b, "; spam probability %.2f adjusted to %.2f (%+.2f); sender trust %s",
		fusion.SpamProbability, adjusted, adjustment, trust.Tier)
	if len(trust.Reasons) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(trust.Reasons, ", "))
	}
	fmt.Fprintf(&b, "; %d threat pattern matches", patternHits)
	if threatType != "" {
		fmt.Fprintf(&b, ", type %s", threatType)
	}
	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
