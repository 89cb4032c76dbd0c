package prompt

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/core"
	"github.com/mikey/mail-threat-classifier/internal/utils"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantClass core.Classification
		wantConf  float64
		wantKw    int
		wantErr   bool
	}{
		{
			name:      "plain json",
			text:      `{"classification":"phishing","threat_level":"high","confidence":0.93,"keywords":["verify","suspended"],"reasoning":"spoofed sender"}`,
			wantClass: core.ClassificationPhishing,
			wantConf:  0.93,
			wantKw:    2,
		},
		{
			name:      "fenced json",
			text:      "Here is my answer:\n```json\n{\"classification\":\"spam\",\"threat_level\":\"low\",\"confidence\":\"0.5\",\"keywords\":\"free, offer\"}\n```",
			wantClass: core.ClassificationSpam,
			wantConf:  0.5,
			wantKw:    2,
		},
		{name: "no json", text: "I cannot classify this email.", wantErr: true},
		{name: "broken json", text: `{"classification": "spam",`, wantErr: true},
		{name: "missing label", text: `{"confidence": 0.4}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVerdict(tt.text)
			if tt.wantErr {
				if !errors.Is(err, core.ErrMalformedResponse) {
					t.Fatalf("error = %v, want ErrMalformedResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVerdict() error = %v", err)
			}
			if v.Classification != tt.wantClass || v.Confidence != tt.wantConf || len(v.Keywords) != tt.wantKw {
				t.Errorf("ParseVerdict() = %+v", v)
			}
		})
	}
}

func TestBuilderTruncatesBody(t *testing.T) {
	b := NewBuilder(utils.NewTextProcessor(zap.NewNop()), 10)
	p := b.Build(&core.ClassificationRequest{
		Subject: "Hello",
		Sender:  "a@example.com",
		Content: strings.Repeat("x", 100),
	})
	if !strings.Contains(p, "From: a@example.com") || !strings.Contains(p, utils.TruncationMarker) {
		t.Errorf("prompt missing sender or truncation marker:\n%s", p)
	}
	if strings.Contains(p, strings.Repeat("x", 11)) {
		t.Error("body was not truncated")
	}
}
