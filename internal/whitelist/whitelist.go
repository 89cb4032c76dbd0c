package whitelist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker decides whether a sender domain belongs to a trusted organization.
// A domain matches when it equals an allowlisted domain, is a subdomain of one,
// or ends in an institutional suffix such as gov or ac.uk.
type Checker struct {
	domains  map[string]struct{}
	suffixes []string
	logger   *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(domains, institutionalSuffixes []string, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}

	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = normalize(d)
		if d != "" {
			set[d] = struct{}{}
		}
	}

	suffixes := make([]string, 0, len(institutionalSuffixes))
	for _, s := range institutionalSuffixes {
		s = strings.TrimPrefix(normalize(s), ".")
		if s != "" {
			suffixes = append(suffixes, s)
		}
	}

	logger.Debug("Initialized whitelist checker",
		zap.Int("domains", len(set)),
		zap.Strings("institutional_suffixes", suffixes))

	return &Checker{
		domains:  set,
		suffixes: suffixes,
		logger:   logger,
	}
}

// MatchDomain checks a bare domain against the allowlist
func (c *Checker) MatchDomain(domain string) bool {
	domain = normalize(domain)
	if domain == "" {
		return false
	}

	// walk parent domains: a.b.example.com, b.example.com, example.com, com
	for d := domain; d != ""; {
		if _, ok := c.domains[d]; ok {
			return true
		}
		dot := strings.IndexByte(d, '.')
		if dot < 0 {
			break
		}
		d = d[dot+1:]
	}

	for _, s := range c.suffixes {
		if domain == s || strings.HasSuffix(domain, "."+s) {
			return true
		}
	}
	return false
}

func normalize(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}
