package filter

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

const noTextPlaceholder = "[No text content found in message]"

var (
	htmlTagPattern = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]+>`)
	spacePattern   = regexp.MustCompile(`[ \t]+`)
)

// ParsedMessage is the classification-relevant view of an RFC 5322 message
type ParsedMessage struct {
	From      string
	Subject   string
	MessageID string
	Text      string
}

// ParseMessage reads a message and extracts its sender, decoded subject and
// text content. text/plain parts are preferred; HTML parts are used with
// markup stripped when no plain part exists. Attachments are ignored.
func ParseMessage(r io.Reader) (*ParsedMessage, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	pm := &ParsedMessage{}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		pm.From = from[0].Address
	} else {
		pm.From = strings.TrimSpace(mr.Header.Get("From"))
	}
	if subject, err := mr.Header.Subject(); err == nil {
		pm.Subject = subject
	} else {
		pm.Subject = mr.Header.Get("Subject")
	}
	if id, err := mr.Header.MessageID(); err == nil {
		pm.MessageID = id
	}

	var plain, html strings.Builder
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			// Keep what was read before the broken part.
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch contentType {
		case "text/plain", "":
			plain.Write(body)
			plain.WriteString("\n")
		case "text/html":
			html.WriteString(stripHTML(string(body)))
			html.WriteString("\n")
		}
	}

	switch {
	case plain.Len() > 0:
		pm.Text = strings.TrimSpace(plain.String())
	case html.Len() > 0:
		pm.Text = strings.TrimSpace(html.String())
	default:
		pm.Text = noTextPlaceholder
	}
	return pm, nil
}

// Request builds a classification request. The header sender wins over the
// envelope sender.
func (pm *ParsedMessage) Request(envelopeFrom string) *core.ClassificationRequest {
	sender := pm.From
	if sender == "" {
		sender = envelopeFrom
	}
	return &core.ClassificationRequest{
		Subject:   pm.Subject,
		Sender:    sender,
		Content:   pm.Text,
		MessageID: pm.MessageID,
	}
}

func stripHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, " ")
	s = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`).Replace(s)
	return spacePattern.ReplaceAllString(s, " ")
}
