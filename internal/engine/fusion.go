package engine

import (
	"math"
	"strings"
	"unicode"
)

// FusionResult is the naive Bayes view of a message
type FusionResult struct {
	SpamProbability float64
	Confidence      float64
	Evidence        []string
}

// FusionModel is a fixed naive Bayes model over the spam and legitimate word tables
type FusionModel struct {
	tables     *Tables
	thresholds Thresholds
	logPriorS  float64
	logPriorH  float64
	denomS     float64
	denomH     float64
}

// NewFusionModel creates a new fusion model
func NewFusionModel(tables *Tables, thresholds Thresholds) *FusionModel {
	total := float64(tables.SpamPrior + tables.HamPrior)
	vocab := float64(tables.VocabularySize())
	return &FusionModel{
		tables:     tables,
		thresholds: thresholds,
		logPriorS:  math.Log(float64(tables.SpamPrior) / total),
		logPriorH:  math.Log(float64(tables.HamPrior) / total),
		denomS:     float64(tables.SpamPrior) + vocab,
		denomH:     float64(tables.HamPrior) + vocab,
	}
}

// Fuse scores the in-vocabulary tokens of text with Laplace smoothing.
// Text without any known word returns the prior spam ratio.
func (m *FusionModel) Fuse(text string) *FusionResult {
	scoreS, scoreH := m.logPriorS, m.logPriorH
	seen := make(map[string]bool)
	var evidence []string

	for _, tok := range Tokenize(text) {
		sw, inSpam := m.tables.SpamWords[tok]
		hw, inHam := m.tables.HamWords[tok]
		if !inSpam && !inHam {
			continue
		}
		scoreS += math.Log(float64(sw+1) / m.denomS)
		scoreH += math.Log(float64(hw+1) / m.denomH)
		if !seen[tok] {
			seen[tok] = true
			evidence = append(evidence, tok)
		}
	}

	th := &m.thresholds
	boost := math.Min(th.ConfidenceMaxBoost, th.ConfidencePerMatch*float64(len(evidence)))
	return &FusionResult{
		// exp(s)/(exp(s)+exp(h)) written to stay finite for long messages
		SpamProbability: 1 / (1 + math.Exp(scoreH-scoreS)),
		Confidence:      math.Min(th.ConfidenceCeiling, th.ConfidenceBase+boost),
		Evidence:        evidence,
	}
}

// Tokenize lowercases text, drops everything but letters and whitespace and
// returns the words longer than two characters
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsDigit(r):
			return -1
		}
		return ' '
	}, text)

	fields := strings.Fields(cleaned)
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 2 {
			out = append(out, f)
		}
	}
	return out
}
