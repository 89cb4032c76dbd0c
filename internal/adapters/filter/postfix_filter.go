package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

// Classifier classifies one message
type Classifier interface {
	Classify(ctx context.Context, req *core.ClassificationRequest, useExternal bool) (*core.Outcome, error)
}

// PostfixOptions configures a PostfixFilter
type PostfixOptions struct {
	ListenAddress   string
	PostfixAddress  string
	PostfixPort     int
	BlockHighThreat bool
	Headers         HeaderOptions
}

// PostfixFilter is a Postfix content filter: it receives mail over SMTP,
// classifies it, writes the verdict into the headers and re-injects it.
type PostfixFilter struct {
	classifier Classifier
	store      core.ResultStore
	logger     *zap.Logger
	opts       PostfixOptions
	server     *smtp.Server
	forward    func(from string, to []string, data []byte) error
}

// NewPostfixFilter creates a new Postfix content filter. store may be nil.
func NewPostfixFilter(classifier Classifier, store core.ResultStore, logger *zap.Logger, opts PostfixOptions) *PostfixFilter {
	f := &PostfixFilter{
		classifier: classifier,
		store:      store,
		logger:     logger,
		opts:       opts,
	}
	f.forward = f.sendToPostfix
	return f
}

// Start starts the SMTP listener
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})
	f.server.Addr = f.opts.ListenAddress
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50

	ln, err := net.Listen("tcp", f.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.opts.ListenAddress, err)
	}
	f.logger.Info("Postfix filter started", zap.String("address", f.opts.ListenAddress))

	go func() {
		if err := f.server.Serve(ln); err != nil && err != smtp.ErrServerClosed {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop stops the SMTP listener
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// Filter classifies a raw message and returns the annotated message to
// forward, or an SMTP rejection for blocked high-threat mail
func (f *PostfixFilter) Filter(ctx context.Context, envelopeFrom string, raw []byte) ([]byte, error) {
	var (
		verdict     *core.Verdict
		analysisErr error
		req         *core.ClassificationRequest
	)

	parsed, err := ParseMessage(bytes.NewReader(raw))
	if err != nil {
		analysisErr = err
	} else {
		req = parsed.Request(envelopeFrom)
		outcome, err := f.classifier.Classify(ctx, req, true)
		if err != nil {
			analysisErr = err
		} else {
			verdict = outcome.Verdict
			f.save(ctx, req, outcome)
		}
	}

	if analysisErr != nil {
		f.logger.Error("Failed to classify email",
			zap.String("sender", envelopeFrom),
			zap.Error(analysisErr))
	}

	if verdict != nil && f.opts.BlockHighThreat && shouldBlock(verdict) {
		f.logger.Info("Rejecting high threat email",
			zap.String("sender", req.Sender),
			zap.String("classification", string(verdict.Classification)),
			zap.Float64("confidence", verdict.Confidence))
		return nil, &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as %s (confidence: %.2f)", verdict.Classification, verdict.Confidence),
		}
	}

	return AnnotateMessage(raw, verdict, analysisErr, f.opts.Headers)
}

func (f *PostfixFilter) save(ctx context.Context, req *core.ClassificationRequest, outcome *core.Outcome) {
	if f.store == nil {
		return
	}
	rec := &core.ClassificationRecord{
		MessageID:    req.MessageID,
		Subject:      req.Subject,
		Sender:       req.Sender,
		Content:      req.Content,
		Verdict:      *outcome.Verdict,
		Provenance:   outcome.Provenance,
		ModelUsed:    outcome.ModelUsed,
		ProcessingID: outcome.ProcessingID,
		ProcessedAt:  outcome.AnalyzedAt,
	}
	if err := f.store.Save(ctx, rec); err != nil {
		f.logger.Error("Failed to store classification", zap.Error(err))
	}
}

func shouldBlock(v *core.Verdict) bool {
	return v.ThreatLevel == core.ThreatLevelHigh && v.Classification != core.ClassificationLegitimate
}

// sendToPostfix re-injects the processed message into Postfix
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, data []byte) error {
	addr := net.JoinHostPort(f.opts.PostfixAddress, fmt.Sprint(f.opts.PostfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	accepted := 0
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", rcpt),
				zap.Error(err))
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

type smtpBackend struct {
	filter *PostfixFilter
}

func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := s.filter.Filter(ctx, s.sender, raw)
	if err != nil {
		return err
	}

	if err := s.filter.forward(s.sender, s.recipients, out); err != nil {
		s.filter.logger.Error("Failed to send email back to Postfix",
			zap.String("sender", s.sender),
			zap.Error(err))
		return err
	}

	s.filter.logger.Info("Processed email",
		zap.String("from", s.sender),
		zap.String("recipients", strings.Join(s.recipients, ",")))
	return nil
}

func (s *smtpSession) Logout() error {
	return nil
}
