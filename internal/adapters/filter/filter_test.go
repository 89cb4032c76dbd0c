package filter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-message/textproto"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

const multipartMessage = "From: \"PayPal Security\" <secure-update@paypa1.com>\r\n" +
	"To: victim@example.com\r\n" +
	"Subject: =?UTF-8?B?WW91ciBBY2NvdW50IEhhcyBCZWVuIFN1c3BlbmRlZA==?=\r\n" +
	"Message-Id: <abc123@paypa1.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"XYZ\"\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Verify your identity immediately or lose access. Click here now.\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Verify your identity</p>\r\n" +
	"--XYZ--\r\n"

const plainMessage = "From: manager@yourcompany.com\r\n" +
	"Subject: Weekly Team Meeting Notes\r\n" +
	"\r\n" +
	"Please review the agenda.\r\n"

type stubClassifier struct {
	verdict *core.Verdict
	err     error
	got     *core.ClassificationRequest
}

func (s *stubClassifier) Classify(_ context.Context, req *core.ClassificationRequest, _ bool) (*core.Outcome, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &core.Outcome{Verdict: s.verdict, Provenance: core.ProvenanceLocal, ModelUsed: "local-engine"}, nil
}

func phishingVerdict() *core.Verdict {
	return &core.Verdict{
		Classification: core.ClassificationPhishing,
		ThreatLevel:    core.ThreatLevelHigh,
		Confidence:     0.93,
		Keywords:       []string{"verify", "suspended"},
		Reasoning:      "Phishing indicators\nin subject",
		ThreatType:     "phishing",
	}
}

func readHeader(t *testing.T, raw []byte) (textproto.Header, string) {
	t.Helper()
	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}
	var body bytes.Buffer
	_, _ = body.ReadFrom(br)
	return h, body.String()
}

func TestParseMessage(t *testing.T) {
	pm, err := ParseMessage(strings.NewReader(multipartMessage))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if pm.From != "secure-update@paypa1.com" {
		t.Errorf("From = %q", pm.From)
	}
	if pm.Subject != "Your Account Has Been Suspended" {
		t.Errorf("Subject = %q", pm.Subject)
	}
	if pm.MessageID != "abc123@paypa1.com" {
		t.Errorf("MessageID = %q", pm.MessageID)
	}
	if pm.Text != "Verify your identity immediately or lose access. Click here now." {
		t.Errorf("Text = %q", pm.Text)
	}

	req := pm.Request("bounce@elsewhere.com")
	if req.Sender != "secure-update@paypa1.com" || req.MessageID != "abc123@paypa1.com" {
		t.Errorf("Request() = %+v", req)
	}
}

func TestParseMessageHTMLOnly(t *testing.T) {
	raw := "From: a@b.com\r\nSubject: hi\r\nContent-Type: text/html\r\n\r\n" +
		"<html><style>p{}</style><body><p>Win a&nbsp;FREE prize</p></body></html>\r\n"
	pm, err := ParseMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if pm.Text != "Win a FREE prize" {
		t.Errorf("Text = %q", pm.Text)
	}
}

func TestParsedMessageEnvelopeFallback(t *testing.T) {
	pm := &ParsedMessage{Subject: "x", Text: "y"}
	if got := pm.Request("envelope@example.com").Sender; got != "envelope@example.com" {
		t.Errorf("Sender = %q, want envelope sender", got)
	}
}

func TestTaggedSubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		verdict *core.Verdict
		want    string
		changed bool
	}{
		{"threat", "Hello", phishingVerdict(), "[THREAT] Hello", true},
		{"already tagged", "[THREAT] Hello", phishingVerdict(), "[THREAT] Hello", false},
		{"legitimate", "Hello", &core.Verdict{Classification: core.ClassificationLegitimate}, "Hello", false},
		{"no verdict", "Hello", nil, "Hello", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := TaggedSubject(tt.subject, tt.verdict, "[THREAT] ")
			if got != tt.want || changed != tt.changed {
				t.Errorf("TaggedSubject() = %q, %v; want %q, %v", got, changed, tt.want, tt.changed)
			}
		})
	}
}

func TestAnnotateMessage(t *testing.T) {
	out, err := AnnotateMessage([]byte(plainMessage), phishingVerdict(), nil, HeaderOptions{
		HeaderPrefix:  "X-Threat-",
		SubjectPrefix: "[THREAT] ",
	})
	if err != nil {
		t.Fatalf("AnnotateMessage() error = %v", err)
	}

	h, body := readHeader(t, out)
	want := map[string]string{
		"X-Threat-Classification": "phishing",
		"X-Threat-Level":          "high",
		"X-Threat-Confidence":     "0.93",
		"X-Threat-Type":           "phishing",
		"X-Threat-Reason":         "Phishing indicators in subject",
		"Subject":                 "[THREAT] Weekly Team Meeting Notes",
		"From":                    "manager@yourcompany.com",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
	if !strings.HasPrefix(string(out), "X-Threat-Classification: phishing\r\n") {
		t.Errorf("verdict headers not prepended:\n%s", out)
	}
	if body != "Please review the agenda.\r\n" {
		t.Errorf("body changed: %q", body)
	}
}

func TestAnnotateMessageAnalysisError(t *testing.T) {
	out, err := AnnotateMessage([]byte(plainMessage), nil, errors.New("boom"), HeaderOptions{SubjectPrefix: "[THREAT] "})
	if err != nil {
		t.Fatalf("AnnotateMessage() error = %v", err)
	}
	h, _ := readHeader(t, out)
	if h.Get("X-Threat-Classification") != "pending" || h.Get("X-Threat-Analysis-Error") != "boom" {
		t.Errorf("headers = %v", h)
	}
	if h.Get("Subject") != "Weekly Team Meeting Notes" {
		t.Errorf("subject tagged without a verdict: %q", h.Get("Subject"))
	}
}

func TestPostfixFilterBlocksHighThreat(t *testing.T) {
	stub := &stubClassifier{verdict: phishingVerdict()}
	f := NewPostfixFilter(stub, nil, zap.NewNop(), PostfixOptions{BlockHighThreat: true})

	_, err := f.Filter(context.Background(), "bounce@paypa1.com", []byte(multipartMessage))
	var smtpErr *smtp.SMTPError
	if !errors.As(err, &smtpErr) || smtpErr.Code != 550 {
		t.Fatalf("Filter() error = %v, want 550 SMTPError", err)
	}
	if stub.got.Subject != "Your Account Has Been Suspended" {
		t.Errorf("classified subject = %q", stub.got.Subject)
	}
}

func TestSMTPSessionForwardsAnnotatedMessage(t *testing.T) {
	stub := &stubClassifier{verdict: phishingVerdict()}
	f := NewPostfixFilter(stub, nil, zap.NewNop(), PostfixOptions{
		Headers: HeaderOptions{HeaderPrefix: "X-Threat-", SubjectPrefix: "[THREAT] "},
	})

	var (
		gotFrom string
		gotTo   []string
		gotData []byte
	)
	f.forward = func(from string, to []string, data []byte) error {
		gotFrom, gotTo, gotData = from, to, data
		return nil
	}

	s := &smtpSession{filter: f}
	_ = s.Mail("sender@paypa1.com", nil)
	_ = s.Rcpt("victim@example.com", nil)
	if err := s.Data(strings.NewReader(plainMessage)); err != nil {
		t.Fatalf("Data() error = %v", err)
	}

	if gotFrom != "sender@paypa1.com" || len(gotTo) != 1 {
		t.Errorf("forwarded envelope = %s -> %v", gotFrom, gotTo)
	}
	h, _ := readHeader(t, gotData)
	if h.Get("X-Threat-Classification") != "phishing" || h.Get("Subject") != "[THREAT] Weekly Team Meeting Notes" {
		t.Errorf("forwarded headers = %v", h)
	}
}

func TestSMTPSessionClassifierFailureStillForwards(t *testing.T) {
	stub := &stubClassifier{err: errors.New("engine down")}
	f := NewPostfixFilter(stub, nil, zap.NewNop(), PostfixOptions{BlockHighThreat: true})

	forwarded := false
	f.forward = func(string, []string, []byte) error {
		forwarded = true
		return nil
	}

	s := &smtpSession{filter: f}
	_ = s.Mail("a@b.com", nil)
	_ = s.Rcpt("c@d.com", nil)
	if err := s.Data(strings.NewReader(plainMessage)); err != nil {
		t.Fatalf("Data() error = %v", err)
	}
	if !forwarded {
		t.Error("message was not forwarded after classifier failure")
	}
}

func TestCliFilterOutputs(t *testing.T) {
	req := &core.ClassificationRequest{Subject: "Hello", Sender: "a@b.com", Content: "hi"}

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		f := NewCliFilter(&stubClassifier{verdict: phishingVerdict()}, zap.NewNop(), &out, false)
		if _, err := f.ProcessEmail(context.Background(), req, false, FormatJSON); err != nil {
			t.Fatalf("ProcessEmail() error = %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal(out.Bytes(), &got); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, out.String())
		}
		if got["classification"] != "phishing" || got["provenance"] != "local" {
			t.Errorf("output = %v", got)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var out bytes.Buffer
		f := NewCliFilter(&stubClassifier{verdict: phishingVerdict()}, zap.NewNop(), &out, false)
		if _, err := f.ProcessEmail(context.Background(), req, false, FormatYAML); err != nil {
			t.Fatalf("ProcessEmail() error = %v", err)
		}
		var got map[string]any
		if err := yaml.Unmarshal(out.Bytes(), &got); err != nil {
			t.Fatalf("output is not YAML: %v", err)
		}
		if got["threat_level"] != "high" {
			t.Errorf("output = %v", got)
		}
	})

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		f := NewCliFilter(&stubClassifier{verdict: phishingVerdict()}, zap.NewNop(), &out, true)
		if _, err := f.ProcessEmail(context.Background(), req, false, FormatText); err != nil {
			t.Fatalf("ProcessEmail() error = %v", err)
		}
		if !strings.Contains(out.String(), "Classification: phishing") {
			t.Errorf("text output = %s", out.String())
		}
	})
}
