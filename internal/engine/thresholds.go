package engine

import (
	"github.com/mikey/mail-threat-classifier/internal/core"
)

// Thresholds collects every tunable number used by the local engine
type Thresholds struct {
	HighProbability     float64 `mapstructure:"high_probability"`
	MediumProbability   float64 `mapstructure:"medium_probability"`
	LowProbability      float64 `mapstructure:"low_probability"`
	NearZeroProbability float64 `mapstructure:"near_zero_probability"`

	MinFamilyScore  int     `mapstructure:"min_family_score"`
	HighFamilyScore int     `mapstructure:"high_family_score"`
	HighSuspicion   float64 `mapstructure:"high_suspicion"`
	MaxKeywords     int     `mapstructure:"max_keywords"`

	TrustedAdjustment   float64 `mapstructure:"trusted_adjustment"`
	MediumAdjustment    float64 `mapstructure:"medium_adjustment"`
	AutomatedAdjustment float64 `mapstructure:"automated_adjustment"`
	LowTrustAdjustment  float64 `mapstructure:"low_trust_adjustment"`

	LowTierScore    float64 `mapstructure:"low_tier_score"`
	MediumTierScore float64 `mapstructure:"medium_tier_score"`

	MaxDomainLength int `mapstructure:"max_domain_length"`
	MaxDomainDigits int `mapstructure:"max_domain_digits"`

	ConfidenceBase     float64 `mapstructure:"confidence_base"`
	ConfidencePerMatch float64 `mapstructure:"confidence_per_match"`
	ConfidenceMaxBoost float64 `mapstructure:"confidence_max_boost"`
	ConfidenceCeiling  float64 `mapstructure:"confidence_ceiling"`
	SevereBoost        float64 `mapstructure:"severe_boost"`
	SevereCeiling      float64 `mapstructure:"severe_ceiling"`

	// sender rule weights
	SpoofWeight      float64 `mapstructure:"spoof_weight"`
	PrefixWeight     float64 `mapstructure:"prefix_weight"`
	TLDWeight        float64 `mapstructure:"tld_weight"`
	LengthWeight     float64 `mapstructure:"length_weight"`
	DigitsWeight     float64 `mapstructure:"digits_weight"`
	HomographWeight  float64 `mapstructure:"homograph_weight"`
	LocalPartWeight  float64 `mapstructure:"local_part_weight"`
	ShortenerWeight  float64 `mapstructure:"shortener_weight"`
	TyposquatWeight  float64 `mapstructure:"typosquat_weight"`
	SubdomainWeight  float64 `mapstructure:"subdomain_weight"`
	MaxTyposquatEdit int     `mapstructure:"max_typosquat_edit"`

	FamilyPrecedence []core.ThreatFamily `mapstructure:"-"`
	SevereTypes      []string            `mapstructure:"severe_types"`
}

// DefaultThresholds returns the engine defaults
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighProbability:     0.75,
		MediumProbability:   0.45,
		LowProbability:      0.25,
		NearZeroProbability: 0.05,

		MinFamilyScore:  3,
		HighFamilyScore: 6,
		HighSuspicion:   0.6,
		MaxKeywords:     core.MaxKeywords,

		TrustedAdjustment:   -0.25,
		MediumAdjustment:    -0.15,
		AutomatedAdjustment: -0.10,
		LowTrustAdjustment:  0.10,

		LowTierScore:    0.15,
		MediumTierScore: 0.05,

		MaxDomainLength: 30,
		MaxDomainDigits: 3,

		ConfidenceBase:     0.60,
		ConfidencePerMatch: 0.05,
		ConfidenceMaxBoost: 0.35,
		ConfidenceCeiling:  0.97,
		SevereBoost:        0.15,
		SevereCeiling:      0.98,

		SpoofWeight:      0.4,
		PrefixWeight:     0.3,
		TLDWeight:        0.35,
		LengthWeight:     0.2,
		DigitsWeight:     0.25,
		HomographWeight:  0.4,
		LocalPartWeight:  0.2,
		ShortenerWeight:  0.5,
		TyposquatWeight:  0.35,
		SubdomainWeight:  0.3,
		MaxTyposquatEdit: 3,

		FamilyPrecedence: []core.ThreatFamily{
			core.FamilyPhishing,
			core.FamilyMalware,
			core.FamilySocialEngineering,
			core.FamilyScam,
			core.FamilySpam,
		},
		SevereTypes: []string{
			"business_email_compromise",
			"ransomware",
			"account_takeover",
			"whaling",
			"data_exfiltration",
		},
	}
}

// isSevere reports whether a threat type forces a high threat level
func (t *Thresholds) isSevere(threatType string) bool {
	for _, s := range t.SevereTypes {
		if s == threatType {
			return true
		}
	}
	return false
}
