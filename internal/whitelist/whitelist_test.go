package whitelist

import (
	"testing"

	"go.uber.org/zap"
)

func TestChecker(t *testing.T) {
	c := NewChecker([]string{"PayPal.com", " github.com ", "zoom.us"}, []string{"gov", "ac.uk"}, zap.NewNop())

	tests := []struct {
		name   string
		domain string
		want   bool
	}{
		{"exact", "paypal.com", true},
		{"case insensitive", "PAYPAL.COM", true},
		{"trailing dot", "paypal.com.", true},
		{"subdomain", "mail.github.com", true},
		{"lookalike suffix", "evilpaypal.com", false},
		{"institutional", "city.gov", true},
		{"institutional second level", "cs.ox.ac.uk", true},
		{"unknown", "yourcompany.com", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.MatchDomain(tt.domain); got != tt.want {
				t.Errorf("MatchDomain(%q) = %v, want %v", tt.domain, got, tt.want)
			}
		})
	}
}
