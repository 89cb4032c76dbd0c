package core

import (
	"math"
	"strings"
)

// MaxKeywords is the number of evidence keywords kept on a verdict
const MaxKeywords = 5

// labels a remote classifier commonly returns that are not part of the verdict enum
// but clearly mean unwanted mail
var remoteSpamAliases = map[string]bool{
	"suspicious": true,
	"fraud":      true,
	"junk":       true,
	"spoofing":   true,
}

// Round2 rounds to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp01 bounds v to [0,1]
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// DedupKeywords removes duplicates preserving first-seen order and truncates to limit
func DedupKeywords(keywords []string, limit int) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, min(len(keywords), limit))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
		if len(out) == limit {
			break
		}
	}
	return out
}

// NormalizeRemoteVerdict coerces a verdict returned by a remote classifier onto the verdict enums
func NormalizeRemoteVerdict(v *Verdict) *Verdict {
	out := *v

	label := Classification(strings.ToLower(strings.TrimSpace(string(v.Classification))))
	switch {
	case label.Valid():
		out.Classification = label
	case remoteSpamAliases[string(label)]:
		out.Classification = ClassificationSpam
	default:
		out.Classification = ClassificationPending
	}

	level := ThreatLevel(strings.ToLower(strings.TrimSpace(string(v.ThreatLevel))))
	if level.Valid() {
		out.ThreatLevel = level
	} else {
		out.ThreatLevel = ThreatLevelUnknown
	}

	out.Confidence = Round2(Clamp01(v.Confidence))
	out.Keywords = DedupKeywords(v.Keywords, MaxKeywords)
	out.ThreatType = strings.ToLower(strings.TrimSpace(v.ThreatType))
	out.MLProbability = 0
	return &out
}
