package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

// SMTPGateway accepts messages as a Postfix content filter, runs each
// through the fraud pipeline and re-injects it with verdict headers
// stamped on. Fraudulent messages can optionally be rejected outright.
type SMTPGateway struct {
	pipeline         *core.Pipeline
	normalizer       *core.Normalizer
	logger           *zap.Logger
	listenAddr       string
	reinjectAddr     string
	blockFraudulent  bool
	defaultUser      string
	statusHeader     string
	confidenceHeader string
	reasonHeader     string
	server           *smtp.Server
}

// NewSMTPGateway creates a new SMTP gateway
func NewSMTPGateway(
	pipeline *core.Pipeline,
	normalizer *core.Normalizer,
	logger *zap.Logger,
	listenAddr string,
	reinjectAddr string,
	blockFraudulent bool,
	defaultUser string,
	statusHeader string,
	confidenceHeader string,
	reasonHeader string,
) *SMTPGateway {
	return &SMTPGateway{
		pipeline:         pipeline,
		normalizer:       normalizer,
		logger:           logger,
		listenAddr:       listenAddr,
		reinjectAddr:     reinjectAddr,
		blockFraudulent:  blockFraudulent,
		defaultUser:      defaultUser,
		statusHeader:     statusHeader,
		confidenceHeader: confidenceHeader,
		reasonHeader:     reasonHeader,
	}
}

// Start starts the SMTP server
func (g *SMTPGateway) Start() error {
	g.server = smtp.NewServer(&smtpBackend{gateway: g})

	g.server.Addr = g.listenAddr
	g.server.Domain = "localhost"
	g.server.ReadTimeout = 30 * time.Second
	g.server.WriteTimeout = 30 * time.Second
	g.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	g.server.MaxRecipients = 50
	g.server.AllowInsecureAuth = true

	g.logger.Info("SMTP gateway starting", zap.String("address", g.listenAddr))

	go func() {
		if err := g.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				g.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP server
func (g *SMTPGateway) Stop() error {
	if g.server != nil {
		return g.server.Close()
	}
	return nil
}

// ProcessMessage normalizes a raw message and runs it through the
// fraud-detection pipeline. This is mainly used for testing or direct
// API calls.
func (g *SMTPGateway) ProcessMessage(ctx context.Context, raw *core.RawMessage, userID string) (*core.Verdict, []*core.AuditLogEntry, error) {
	msg, err := g.normalizer.Normalize(raw)
	if err != nil {
		return nil, nil, err
	}
	return g.pipeline.Evaluate(ctx, msg, userID)
}

// userForRecipients maps the envelope recipients onto a vendor-store
// user. The first recipient's local part wins; a gateway fronting a
// single mailbox falls back to the configured default.
func (g *SMTPGateway) userForRecipients(recipients []string) string {
	if len(recipients) == 0 {
		return g.defaultUser
	}
	if at := strings.IndexByte(recipients[0], '@'); at > 0 {
		return strings.ToLower(recipients[0][:at])
	}
	return g.defaultUser
}

// stampVerdict rebuilds the wire message with verdict headers prepended
// and the original body preserved byte for byte
func (g *SMTPGateway) stampVerdict(headers mail.Header, rawData []byte, verdict *core.Verdict, analysisErr error) []byte {
	var out bytes.Buffer

	fmt.Fprintf(&out, "%s: %s\r\n", g.statusHeader, verdict.Label)
	fmt.Fprintf(&out, "%s: %.4f\r\n", g.confidenceHeader, verdict.Confidence)

	reason := verdict.HaltReason
	if reason == "" {
		reason = "all checks passed"
	}
	fmt.Fprintf(&out, "%s: %s\r\n", g.reasonHeader, reason)

	if analysisErr != nil {
		fmt.Fprintf(&out, "X-Billing-Fraud-Error: %s\r\n", analysisErr.Error())
	}

	for key, values := range headers {
		for _, value := range values {
			fmt.Fprintf(&out, "%s: %s\r\n", key, value)
		}
	}
	out.WriteString("\r\n")

	// Splice in the original body so MIME parts and attachments survive
	// untouched.
	if idx := bytes.Index(rawData, []byte("\r\n\r\n")); idx != -1 {
		out.Write(rawData[idx+4:])
	} else if idx := bytes.Index(rawData, []byte("\n\n")); idx != -1 {
		out.Write(rawData[idx+2:])
	}

	return out.Bytes()
}

// sendToReinject hands the stamped message back to the MTA listening on
// the re-injection address
func (g *SMTPGateway) sendToReinject(sender string, recipients []string, data []byte) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", g.reinjectAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to re-injection address: %w", err)
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

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			g.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		g.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	gateway *SMTPGateway
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		gateway:    b.gateway,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	gateway    *SMTPGateway
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data evaluates the message and re-injects it with verdict headers
func (s *smtpSession) Data(r io.Reader) error {
	g := s.gateway

	rawData, err := io.ReadAll(r)
	if err != nil {
		g.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	raw, wireMsg, err := rawFromWire(rawData)
	if err != nil {
		g.logger.Error("Failed to parse message", zap.Error(err))
		return err
	}
	// A missing From header falls back to the envelope sender.
	if raw.From == "" {
		raw.From = s.sender
	}

	userID := g.userForRecipients(s.recipients)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	verdict, _, analysisErr := g.ProcessMessage(ctx, raw, userID)
	if analysisErr != nil {
		g.logger.Error("Failed to evaluate message",
			zap.Error(analysisErr),
			zap.String("sender", raw.From),
			zap.String("user_id", userID))

		// Degrade to an unsure verdict rather than dropping mail.
		verdict = &core.Verdict{
			Label:      core.LabelUnsure,
			Confidence: 0.0,
			Escalate:   true,
			HaltReason: fmt.Sprintf("error during analysis: %v", analysisErr),
		}
	}

	if verdict.Label == core.LabelFraudulent && g.blockFraudulent && analysisErr == nil {
		g.logger.Info("Rejecting fraudulent message",
			zap.String("from", raw.From),
			zap.String("user_id", userID),
			zap.Float64("confidence", verdict.Confidence),
			zap.String("reason", verdict.HaltReason))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as billing fraud (confidence: %.2f)", verdict.Confidence),
		}
	}

	stamped := g.stampVerdict(wireMsg.Header, rawData, verdict, analysisErr)

	if err := g.sendToReinject(s.sender, s.recipients, stamped); err != nil {
		g.logger.Error("Failed to re-inject message",
			zap.Error(err),
			zap.String("sender", raw.From))
		return err
	}

	g.logger.Info("Processed message",
		zap.String("from", raw.From),
		zap.String("user_id", userID),
		zap.String("label", string(verdict.Label)),
		zap.Float64("confidence", verdict.Confidence))

	return nil
}

// AuthPlain handles PLAIN authentication (not needed for the gateway)
func (s *smtpSession) AuthPlain(_, _ string) error {
	return smtp.ErrAuthUnsupported
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
