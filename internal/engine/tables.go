package engine

import (
	"sync"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

// FamilyTable is the keyword table of one threat family
type FamilyTable struct {
	Family   core.ThreatFamily
	Weight   int
	Keywords []string
}

// PatternFamily is a finer-grained threat type detected by word hits
type PatternFamily struct {
	Name     string
	Patterns []string
}

// Tables holds every static table the engine reads. A Tables value is built
// once and never mutated, so it is shared freely between goroutines.
type Tables struct {
	Families []FamilyTable

	SpamWords  map[string]int
	HamWords   map[string]int
	SpamPrior  int
	HamPrior   int
	vocabulary int

	SpoofDomains         []string
	SuspiciousPrefixes   []string
	SuspiciousTLDs       []string
	ShortenerDomains     []string
	Brands               []string
	NumberedLocalParts   []string
	LegitSubdomains      []string
	TrustedDomains       []string
	InstitutionalSuffix  []string
	MediumTrustSuffixes  []string
	AutomatedLocalMarker []string

	ThreatPatterns []PatternFamily
}

// VocabularySize is the number of distinct words across both fusion tables
func (t *Tables) VocabularySize() int {
	return t.vocabulary
}

// DefaultTables returns the process-wide tables
var DefaultTables = sync.OnceValue(func() *Tables {
	t := &Tables{
		Families: []FamilyTable{
			{Family: core.FamilyPhishing, Weight: 3, Keywords: []string{
				"verify account", "account suspended", "update payment", "confirm identity",
				"unusual activity", "security alert", "suspended account", "click here now",
				"immediate action required", "verify now", "account will be closed",
				"update billing", "payment failed", "account locked", "security breach",
			}},
			{Family: core.FamilyMalware, Weight: 3, Keywords: []string{
				"download attachment", "install software", "update flash", "codec required",
				"security update", "antivirus", "system scan", "infected", "virus detected",
				"malware removal", "click to clean", "system optimization",
			}},
			{Family: core.FamilySocialEngineering, Weight: 3, Keywords: []string{
				"urgent help needed", "family emergency", "stranded abroad", "need money",
				"lottery winner", "inheritance", "tax refund", "government grant",
				"you have won", "claim reward", "congratulations", "selected winner",
			}},
			{Family: core.FamilyScam, Weight: 2, Keywords: []string{
				"crypto investment", "bitcoin opportunity", "guaranteed returns", "make money fast",
				"work from home", "easy money", "financial freedom", "get rich quick",
				"pyramid scheme", "mlm opportunity", "investment opportunity",
			}},
			{Family: core.FamilySpam, Weight: 1, Keywords: []string{
				"buy now", "limited time", "act now", "free trial", "no obligation",
				"risk free", "satisfaction guaranteed", "while supplies last",
				"limited offer", "special promotion", "exclusive deal",
			}},
		},

		SpamWords: map[string]int{
			// phishing
			"verify": 10, "suspended": 10, "breach": 10, "urgent": 9, "immediate": 8,
			"confirm": 8, "update": 7, "login": 7, "credentials": 9, "expire": 8,
			"locked": 9, "freeze": 8, "unauthorized": 9, "suspicious": 8,
			// prize and inheritance
			"congratulations": 10, "won": 9, "winner": 9, "prize": 8, "lottery": 10,
			"sweepstake": 9, "million": 8, "inherit": 9, "beneficiary": 8,
			// financial
			"investment": 7, "bitcoin": 8, "crypto": 8, "forex": 8, "trading": 6,
			"guarantee": 8, "profit": 7, "returns": 7, "opportunity": 6,
			// calls to action
			"free": 6, "click": 7, "link": 6, "claim": 8, "offer": 5,
			"limited": 6, "now": 4, "act": 5, "hurry": 7, "today": 4,
			// payloads
			"download": 6, "attachment": 5, "install": 7, "software": 5,
			"exe": 9, "zip": 7, "setup": 6,
			// pharmacy
			"pharmacy": 8, "medication": 7, "pills": 8, "viagra": 10,
			"discount": 5, "cheap": 6, "prescription": 7,
			// money
			"money": 6, "cash": 7, "reward": 6, "gift": 7, "card": 5,
			"amazon": 4, "paypal": 5, "bank": 6, "credit": 5, "payment": 6,
		},
		HamWords: map[string]int{
			"meeting": 4, "report": 5, "document": 4, "project": 5, "agenda": 4,
			"schedule": 4, "team": 4, "work": 3, "office": 4, "conference": 4,
			"please": 3, "thank": 4, "thanks": 4, "regards": 5, "best": 3,
			"sincerely": 4, "appreciated": 4, "welcome": 3,
			"invoice": 5, "receipt": 5, "order": 4, "purchase": 4, "transaction": 4,
			"delivery": 4, "shipping": 4, "tracking": 4, "confirmation": 4,
			"customer": 4, "support": 4, "service": 3, "help": 3, "assistance": 4,
			"newsletter": 4, "unsubscribe": 5, "privacy": 4, "policy": 4,
			"subscription": 4, "manage": 3, "preferences": 4,
			"information": 3, "update": 3, "news": 3, "article": 4, "blog": 3,
			"tutorial": 4, "guide": 4, "learn": 3,
		},
		SpamPrior: 1000,
		HamPrior:  3000,

		SpoofDomains: []string{
			"payp4l.com", "paypa1.com", "g00gle.com", "micr0soft.com", "appl3.com", "amaz0n.com",
			"facebk.com", "twiter.com", "linkdin.com", "gmai1.com", "outl00k.com",
			"g-mail.com", "pay-pal.com", "micro-soft.com", "amazon-security.com",
		},
		SuspiciousPrefixes: []string{"secure-", "verify-", "update-", "account-"},
		SuspiciousTLDs:     []string{".tk", ".ml", ".ga", ".cf", ".pw", ".cc", ".top", ".club"},
		ShortenerDomains:   []string{"bit.ly", "tinyurl.com", "t.co", "ow.ly", "is.gd"},
		Brands:             []string{"google", "microsoft", "apple", "amazon", "paypal", "facebook"},
		NumberedLocalParts: []string{"noreply", "admin", "support", "security", "notification"},
		LegitSubdomains:    []string{"mail.", "noreply.", "no-reply.", "notifications.", "support."},

		TrustedDomains: []string{
			// mail providers
			"gmail.com", "outlook.com", "yahoo.com", "hotmail.com", "icloud.com", "protonmail.com",
			// platforms
			"microsoft.com", "google.com", "apple.com", "amazon.com", "meta.com", "facebook.com",
			"linkedin.com", "twitter.com", "x.com", "netflix.com", "adobe.com",
			// payments and banks
			"paypal.com", "stripe.com", "mastercard.com", "visa.com", "square.com",
			"chase.com", "bankofamerica.com", "wellsfargo.com", "citi.com",
			// business tools
			"shopify.com", "salesforce.com", "hubspot.com", "mailchimp.com", "zendesk.com",
			"slack.com", "zoom.us", "dropbox.com", "atlassian.com", "github.com",
			"stackoverflow.com", "canva.com", "notion.so", "figma.com",
			// regional partners
			"ilabank.com", "bankofbahrain.com", "ahlibank.com.bh", "batelco.com.bh",
			"beyonmoney.com", "bebee.com", "bahrain.bh",
		},
		InstitutionalSuffix: []string{
			"gov", "edu", "mil", "gov.uk", "ac.uk", "edu.au", "gov.au", "gov.ca", "gov.bh", "edu.bh",
		},
		MediumTrustSuffixes:  []string{"org"},
		AutomatedLocalMarker: []string{"noreply", "no-reply"},

		ThreatPatterns: []PatternFamily{
			{"phishing", []string{"verify", "confirm", "update", "suspended", "expire", "click", "login"}},
			{"spear_phishing", []string{"personal", "targeted", "colleague", "ceo", "manager", "company"}},
			{"email_phishing", []string{"account", "security", "breach", "unauthorized", "access"}},
			{"whaling", []string{"executive", "ceo", "cfo", "president", "director", "senior"}},
			{"vishing", []string{"call", "phone", "speak", "voice", "number", "contact"}},
			{"business_email_compromise", []string{"invoice", "payment", "wire", "transfer", "vendor", "supplier"}},
			{"account_takeover", []string{"locked", "disabled", "compromised", "unusual", "activity"}},
			{"conversation_hijacking", []string{"reply", "forward", "thread", "previous", "continuing"}},
			{"social_engineering", []string{"trust", "help", "urgent", "friend", "colleague", "recommendation"}},
			{"lateral_phishing", []string{"internal", "colleague", "department", "team", "organization"}},
			{"spoofing", []string{"from", "sender", "domain", "impersonate", "fake", "replica"}},
			{"mitm_attacks", []string{"redirect", "proxy", "intercept", "monitor", "capture"}},
			{"brand_impersonation", []string{"amazon", "paypal", "microsoft", "google", "apple", "bank"}},
			{"malware", []string{"download", "attachment", "install", "software", "update", "patch"}},
			{"virus", []string{"infected", "clean", "scan", "antivirus", "protection", "threat"}},
			{"ransomware", []string{"encrypt", "decrypt", "ransom", "payment", "files", "restore"}},
			{"malicious_links", []string{"click", "link", "url", "website", "page", "redirect"}},
			{"data_exfiltration", []string{"data", "information", "files", "documents", "confidential", "sensitive"}},
			{"password_attacks", []string{"password", "credentials", "reset", "change", "recovery"}},
			{"insider_threats", []string{"employee", "insider", "internal", "privileged", "access"}},
			{"pharming", []string{"dns", "redirect", "fake", "website", "domain", "hijack"}},
			{"email_bombing", []string{"flood", "spam", "volume", "massive", "overwhelm"}},
			{"darknet_email_threat", []string{"darknet", "tor", "anonymous", "underground", "black market"}},
		},
	}

	vocab := make(map[string]struct{}, len(t.SpamWords)+len(t.HamWords))
	for w := range t.SpamWords {
		vocab[w] = struct{}{}
	}
	for w := range t.HamWords {
		vocab[w] = struct{}{}
	}
	t.vocabulary = len(vocab)
	return t
})
