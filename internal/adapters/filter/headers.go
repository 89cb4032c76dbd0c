package filter

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

// HeaderOptions controls how verdicts are written into forwarded messages
type HeaderOptions struct {
	HeaderPrefix  string
	SubjectPrefix string
}

// VerdictHeaders returns the verdict header fields in the order they are added
func VerdictHeaders(v *core.Verdict, analysisErr error, prefix string) [][2]string {
	if prefix == "" {
		prefix = "X-Threat-"
	}
	if v == nil {
		return [][2]string{
			{prefix + "Classification", string(core.ClassificationPending)},
			{prefix + "Analysis-Error", oneLine(analysisErr.Error())},
		}
	}

	fields := [][2]string{
		{prefix + "Classification", string(v.Classification)},
		{prefix + "Level", string(v.ThreatLevel)},
		{prefix + "Confidence", fmt.Sprintf("%.2f", v.Confidence)},
	}
	if v.ThreatType != "" {
		fields = append(fields, [2]string{prefix + "Type", v.ThreatType})
	}
	if v.Reasoning != "" {
		fields = append(fields, [2]string{prefix + "Reason", oneLine(v.Reasoning)})
	}
	return fields
}

// TaggedSubject returns the subject to use for a message with verdict v, and
// whether it differs from the original
func TaggedSubject(subject string, v *core.Verdict, prefix string) (string, bool) {
	if v == nil || prefix == "" || v.Classification == core.ClassificationLegitimate {
		return subject, false
	}
	if strings.HasPrefix(subject, prefix) {
		return subject, false
	}
	return prefix + subject, true
}

// AnnotateMessage prepends the verdict headers to raw and tags the subject of
// non-legitimate mail. The body is copied through unchanged.
func AnnotateMessage(raw []byte, v *core.Verdict, analysisErr error, opts HeaderOptions) ([]byte, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	th, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}
	h := mail.Header{Header: message.Header{Header: th}}

	subject, err := h.Subject()
	if err != nil {
		subject = h.Get("Subject")
	}
	if tagged, changed := TaggedSubject(subject, v, opts.SubjectPrefix); changed {
		h.SetSubject(tagged)
	}

	// Header.Add prepends, so add in reverse to keep the listed order on top.
	fields := VerdictHeaders(v, analysisErr, opts.HeaderPrefix)
	for i := len(fields) - 1; i >= 0; i-- {
		h.Del(fields[i][0])
	}
	for i := len(fields) - 1; i >= 0; i-- {
		h.Add(fields[i][0], fields[i][1])
	}

	var out bytes.Buffer
	if err := textproto.WriteHeader(&out, h.Header.Header); err != nil {
		return nil, fmt.Errorf("failed to write message header: %w", err)
	}
	if _, err := io.Copy(&out, br); err != nil {
		return nil, fmt.Errorf("failed to copy message body: %w", err)
	}
	return out.Bytes(), nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
