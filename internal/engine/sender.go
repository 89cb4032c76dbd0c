package engine

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/emersion/go-message/mail"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"

	"github.com/mikey/mail-threat-classifier/internal/core"
	"github.com/mikey/mail-threat-classifier/internal/whitelist"
)

// TrustResult is the outcome of evaluating one sender address
type TrustResult struct {
	SuspicionScore float64
	IsSuspicious   bool
	Tier           core.TrustTier
	Reasons        []string
	Allowlisted    bool
	Domain         string
	Typosquatting  bool
	Homograph      bool
}

// SenderEvaluator scores a sender address against spoofing heuristics and the allowlist
type SenderEvaluator struct {
	tables     *Tables
	thresholds Thresholds
	allowlist  *whitelist.Checker
	localPart  *regexp.Regexp
}

// NewSenderEvaluator creates a new sender evaluator
func NewSenderEvaluator(tables *Tables, thresholds Thresholds, allowlist *whitelist.Checker) *SenderEvaluator {
	if allowlist == nil {
		allowlist = whitelist.NewChecker(tables.TrustedDomains, tables.InstitutionalSuffix, nil)
	}
	quoted := make([]string, len(tables.NumberedLocalParts))
	for i, p := range tables.NumberedLocalParts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return &SenderEvaluator{
		tables:     tables,
		thresholds: thresholds,
		allowlist:  allowlist,
		localPart:  regexp.MustCompile(`^(?:` + strings.Join(quoted, "|") + `)\d+$`),
	}
}

// Evaluate runs every sender rule. Rule weights accumulate; the hard rules
// (spoof list, prefix, TLD, homograph, shortener, typosquatting) put the
// sender in the suspicious tier on their own.
func (e *SenderEvaluator) Evaluate(sender string) *TrustResult {
	addr := extractAddress(sender)
	res := &TrustResult{Tier: core.TrustUnknown}

	at := strings.LastIndexByte(addr, '@')
	if at < 0 || at == len(addr)-1 {
		res.Reasons = append(res.Reasons, "no sender domain")
		return res
	}
	local, domain := addr[:at], strings.TrimSuffix(addr[at+1:], ".")
	res.Domain = domain

	th := &e.thresholds
	hard := false
	flag := func(weight float64, isHard bool, reason string) {
		res.SuspicionScore += weight
		res.Reasons = append(res.Reasons, reason)
		if isHard {
			hard = true
		}
	}

	if spoof, ok := e.spoofDomain(domain); ok {
		flag(th.SpoofWeight, true, "known spoof domain "+spoof)
	}
	for _, p := range e.tables.SuspiciousPrefixes {
		if strings.Contains(addr, p) {
			flag(th.PrefixWeight, true, "suspicious prefix "+p)
			break
		}
	}
	for _, tld := range e.tables.SuspiciousTLDs {
		if strings.HasSuffix(domain, tld) {
			flag(th.TLDWeight, true, "suspicious tld "+tld)
			break
		}
	}
	if len(domain) > th.MaxDomainLength {
		flag(th.LengthWeight, false, fmt.Sprintf("long domain (%d chars)", len(domain)))
	}
	if n := countDigits(domain); n >= th.MaxDomainDigits {
		flag(th.DigitsWeight, false, fmt.Sprintf("digit-heavy domain (%d digits)", n))
	}
	if isHomograph(domain) {
		res.Homograph = true
		flag(th.HomographWeight, true, "mixed-script domain")
	}
	if e.localPart.MatchString(local) {
		flag(th.LocalPartWeight, false, "numbered generic local part "+local)
	}
	if e.isShortener(domain) {
		flag(th.ShortenerWeight, true, "url shortener domain "+domain)
	}
	if brand, dist, ok := e.typosquat(domain); ok {
		res.Typosquatting = true
		flag(th.TyposquatWeight, true, fmt.Sprintf("typosquatting %s.com (distance %d)", brand, dist))
	}
	if brand, ok := e.brandSubdomain(domain); ok {
		flag(th.SubdomainWeight, false, "brand "+brand+" used as subdomain")
	}

	res.SuspicionScore = core.Round2(res.SuspicionScore)
	res.IsSuspicious = hard
	res.Allowlisted = e.allowlist.MatchDomain(domain)
	res.Tier = e.tier(res, local, domain)
	return res
}

func (e *SenderEvaluator) tier(res *TrustResult, local, domain string) core.TrustTier {
	switch {
	case res.IsSuspicious:
		return core.TrustSuspicious
	case res.Allowlisted:
		return core.TrustHigh
	}

	for _, m := range e.tables.AutomatedLocalMarker {
		if strings.Contains(local, m) || strings.Contains(domain, m) {
			return core.TrustAutomated
		}
	}
	for _, s := range e.tables.MediumTrustSuffixes {
		if strings.HasSuffix(domain, "."+s) {
			return core.TrustMedium
		}
	}

	switch {
	case res.SuspicionScore > e.thresholds.LowTierScore:
		return core.TrustLow
	case res.SuspicionScore > e.thresholds.MediumTierScore:
		return core.TrustMedium
	}
	return core.TrustHigh
}

// spoofDomain matches a known spoof domain anywhere in domain, so
// mail.payp4l.com and payp4l.com.example.net are caught too
func (e *SenderEvaluator) spoofDomain(domain string) (string, bool) {
	for _, s := range e.tables.SpoofDomains {
		if strings.Contains(domain, s) {
			return s, true
		}
	}
	return "", false
}

func (e *SenderEvaluator) isShortener(domain string) bool {
	for _, s := range e.tables.ShortenerDomains {
		if domain == s || strings.HasSuffix(domain, "."+s) {
			return true
		}
	}
	return false
}

// typosquat flags a domain that embeds a brand name without being that brand's domain
func (e *SenderEvaluator) typosquat(domain string) (string, int, bool) {
	registrable := registrableLabel(domain)
	for _, brand := range e.tables.Brands {
		canonical := brand + ".com"
		if !strings.Contains(domain, brand) ||
			domain == canonical ||
			strings.HasSuffix(domain, "."+canonical) ||
			registrable == brand {
			continue
		}
		if d := Levenshtein(domain, canonical); d >= 1 && d <= e.thresholds.MaxTyposquatEdit {
			return brand, d, true
		}
	}
	return "", 0, false
}

// brandSubdomain flags paypal.example.net style domains where the leading label
// carries a brand that does not own the registrable domain
func (e *SenderEvaluator) brandSubdomain(domain string) (string, bool) {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil || etld1 == domain {
		return "", false
	}
	for _, p := range e.tables.LegitSubdomains {
		if strings.HasPrefix(domain, p) {
			return "", false
		}
	}

	leading, _, _ := strings.Cut(domain, ".")
	registrable := registrableLabel(domain)
	for _, brand := range e.tables.Brands {
		if strings.Contains(leading, brand) && registrable != brand {
			return brand, true
		}
	}
	return "", false
}

// registrableLabel returns "example" for mail.example.co.uk
func registrableLabel(domain string) string {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return ""
	}
	label, _, _ := strings.Cut(etld1, ".")
	return label
}

// isHomograph reports a domain that mixes Latin letters with Cyrillic, Greek or
// Hebrew ones. Punycode labels are decoded first.
func isHomograph(domain string) bool {
	if decoded, err := idna.ToUnicode(domain); err == nil {
		domain = decoded
	}

	var latin, foreign bool
	for _, r := range domain {
		switch {
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			latin = true
		case unicode.In(r, unicode.Cyrillic, unicode.Greek, unicode.Hebrew):
			foreign = true
		}
	}
	return latin && foreign
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// extractAddress accepts both bare addresses and "Name <addr>" forms
func extractAddress(sender string) string {
	sender = strings.TrimSpace(sender)
	if a, err := mail.ParseAddress(sender); err == nil && a.Address != "" {
		return strings.ToLower(a.Address)
	}
	if i := strings.LastIndexByte(sender, '<'); i >= 0 {
		if j := strings.IndexByte(sender[i:], '>'); j > 0 {
			sender = sender[i+1 : i+j]
		}
	}
	return strings.ToLower(strings.TrimSpace(sender))
}
