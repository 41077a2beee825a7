package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
)

const providerSMTP = "SMTP"

// SMTPSender opens one connection per message. net/smtp clients are not
// shared, so concurrent Send calls are safe.
type SMTPSender struct {
	config *Config
	logger logger.Logger
}

func NewSMTPSender(config *Config, log logger.Logger) (*SMTPSender, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid smtp configuration: %w", err)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &SMTPSender{config: config, logger: log}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return errors.NewMailSendFailedError(providerSMTP, fmt.Errorf("context cancelled before sending email: %w", err))
	}

	start := time.Now()
	if err := s.deliver(ctx, msg); err != nil {
		return errors.NewMailSendFailedError(providerSMTP, err)
	}

	s.logger.Debug("Email submitted", map[string]interface{}{
		"messageId":  msg.ID,
		"recipients": len(msg.Recipients()),
		"duration":   time.Since(start).String(),
	})
	return nil
}

func (s *SMTPSender) deliver(ctx context.Context, msg *Message) error {
	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := s.startTLS(client); err != nil {
		return err
	}

	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(msg.From.Email); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range msg.Recipients() {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := w.Write(msg.Bytes()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: s.config.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if s.config.ImplicitTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: s.tlsConfig()}
		conn, err = tlsDialer.DialContext(ctx, "tcp", s.config.addr())
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", s.config.addr())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	deadline := time.Now().Add(s.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read SMTP greeting: %w", err)
	}
	return client, nil
}

func (s *SMTPSender) startTLS(client *smtp.Client) error {
	if !s.config.UseTLS || s.config.ImplicitTLS {
		return nil
	}
	if ok, _ := client.Extension("STARTTLS"); !ok {
		return fmt.Errorf("server %s does not support STARTTLS", s.config.Host)
	}
	if err := client.StartTLS(s.tlsConfig()); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	return nil
}

func (s *SMTPSender) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName: s.config.Host,
		MinVersion: tls.VersionTLS12,
	}
}

// TestConnection dials the relay, negotiates TLS when configured, and quits.
func (s *SMTPSender) TestConnection(ctx context.Context) error {
	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("SMTP hello failed: %w", err)
	}
	if err := s.startTLS(client); err != nil {
		return err
	}
	return client.Quit()
}
