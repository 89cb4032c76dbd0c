package engine

import (
	"strings"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

// LexicalResult is the per-family keyword score of a message
type LexicalResult struct {
	Scores   map[core.ThreatFamily]int
	Evidence []string
}

// Dominant returns the family with the highest score, breaking ties by precedence.
// ok is false when every family scored zero.
func (r *LexicalResult) Dominant(precedence []core.ThreatFamily) (family core.ThreatFamily, score int, ok bool) {
	for _, f := range precedence {
		if s := r.Scores[f]; s > score {
			family, score, ok = f, s, true
		}
	}
	return family, score, ok
}

// LexicalScorer adds up weighted phrase matches per threat family
type LexicalScorer struct {
	families []FamilyTable
}

// NewLexicalScorer creates a new lexical scorer over the given family tables
func NewLexicalScorer(tables *Tables) *LexicalScorer {
	return &LexicalScorer{families: tables.Families}
}

// Score matches every family phrase as a plain substring of the lowercased text
func (s *LexicalScorer) Score(text string) *LexicalResult {
	res := &LexicalResult{Scores: make(map[core.ThreatFamily]int, len(s.families))}
	for _, ft := range s.families {
		res.Scores[ft.Family] = 0
	}

	text = strings.ToLower(text)
	if strings.TrimSpace(text) == "" {
		return res
	}

	for _, ft := range s.families {
		for _, kw := range ft.Keywords {
			if strings.Contains(text, kw) {
				res.Scores[ft.Family] += ft.Weight
				res.Evidence = append(res.Evidence, string(ft.Family)+":"+kw)
			}
		}
	}
	return res
}
