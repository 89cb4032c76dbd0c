package filter

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/d--j/go-milter"
	"go.uber.org/zap"
)

const maxMilterBody = 1 << 20

// MilterOptions configures a MilterFilter
type MilterOptions struct {
	ListenAddress   string
	BlockHighThreat bool
	Headers         HeaderOptions
}

// MilterFilter classifies mail inside the MTA transaction over the milter protocol
type MilterFilter struct {
	classifier Classifier
	logger     *zap.Logger
	opts       MilterOptions
	server     *milter.Server
}

// NewMilterFilter creates a new milter filter
func NewMilterFilter(classifier Classifier, logger *zap.Logger, opts MilterOptions) *MilterFilter {
	return &MilterFilter{classifier: classifier, logger: logger, opts: opts}
}

// Start starts the milter listener
func (f *MilterFilter) Start() error {
	f.server = milter.NewServer(
		milter.WithAction(milter.OptAddHeader|milter.OptChangeHeader),
		milter.WithReadTimeout(30*time.Second),
		milter.WithWriteTimeout(30*time.Second),
		milter.WithMilter(func() milter.Milter {
			return &milterSession{filter: f}
		}),
	)

	ln, err := net.Listen("tcp", f.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.opts.ListenAddress, err)
	}
	f.logger.Info("Milter filter started", zap.String("address", f.opts.ListenAddress))

	go func() {
		if err := f.server.Serve(ln); err != nil {
			f.logger.Debug("Milter server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop stops the milter listener
func (f *MilterFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// milterSession collects one message per MAIL FROM
type milterSession struct {
	milter.NoOpMilter
	filter  *MilterFilter
	from    string
	headers bytes.Buffer
	body    bytes.Buffer
}

func (s *milterSession) MailFrom(from string, _ string, _ milter.Modifier) (*milter.Response, error) {
	s.from = strings.Trim(from, "<>")
	s.headers.Reset()
	s.body.Reset()
	return milter.RespContinue, nil
}

func (s *milterSession) Header(name string, value string, _ milter.Modifier) (*milter.Response, error) {
	fmt.Fprintf(&s.headers, "%s: %s\r\n", name, value)
	return milter.RespContinue, nil
}

func (s *milterSession) BodyChunk(chunk []byte, _ milter.Modifier) (*milter.Response, error) {
	if room := maxMilterBody - s.body.Len(); room > 0 {
		if len(chunk) > room {
			chunk = chunk[:room]
		}
		s.body.Write(chunk)
	}
	return milter.RespContinue, nil
}

func (s *milterSession) EndOfMessage(m milter.Modifier) (*milter.Response, error) {
	f := s.filter

	raw := make([]byte, 0, s.headers.Len()+2+s.body.Len())
	raw = append(raw, s.headers.Bytes()...)
	raw = append(raw, '\r', '\n')
	raw = append(raw, s.body.Bytes()...)

	parsed, err := ParseMessage(bytes.NewReader(raw))
	if err != nil {
		f.logger.Error("Failed to parse email", zap.String("sender", s.from), zap.Error(err))
		return milter.RespAccept, nil
	}
	req := parsed.Request(s.from)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	outcome, err := f.classifier.Classify(ctx, req, true)
	if err != nil {
		f.logger.Error("Failed to classify email", zap.String("sender", req.Sender), zap.Error(err))
		for _, h := range VerdictHeaders(nil, err, f.opts.Headers.HeaderPrefix) {
			if err := m.AddHeader(h[0], h[1]); err != nil {
				return milter.RespTempFail, err
			}
		}
		return milter.RespContinue, nil
	}
	v := outcome.Verdict

	f.logger.Info("Processed email",
		zap.String("from", req.Sender),
		zap.String("classification", string(v.Classification)),
		zap.String("threat_level", string(v.ThreatLevel)),
		zap.String("provenance", string(outcome.Provenance)))

	if f.opts.BlockHighThreat && shouldBlock(v) {
		return milter.RejectWithCodeAndReason(550,
			fmt.Sprintf("5.7.1 Rejected as %s (confidence: %.2f)", v.Classification, v.Confidence))
	}

	for _, h := range VerdictHeaders(v, nil, f.opts.Headers.HeaderPrefix) {
		if err := m.AddHeader(h[0], h[1]); err != nil {
			return milter.RespTempFail, err
		}
	}
	if tagged, changed := TaggedSubject(parsed.Subject, v, f.opts.Headers.SubjectPrefix); changed {
		if err := m.ChangeHeader(1, "Subject", tagged); err != nil {
			return milter.RespTempFail, err
		}
	}
	return milter.RespContinue, nil
}

func (s *milterSession) Abort(_ milter.Modifier) error {
	s.headers.Reset()
	s.body.Reset()
	return nil
}
