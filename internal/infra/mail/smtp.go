package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-passport/internal/core/port"
	"github.com/arklim/social-platform-passport/internal/infra/config"
	"github.com/arklim/social-platform-passport/internal/infra/logger"
)

const implicitTLSPort = 465

// SMTPMailer delivers rendered templates over SMTP. Failures are propagated to
// the caller; the mailer never retries.
type SMTPMailer struct {
	cfg       config.SMTPSettings
	templates *TemplateSet
	logger    *zap.Logger
}

// NewSMTPMailer constructs a mailer from the SMTP settings and template set.
func NewSMTPMailer(cfg config.SMTPSettings, templates *TemplateSet, log *zap.Logger) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if templates == nil {
		return nil, fmt.Errorf("template set is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &SMTPMailer{cfg: cfg, templates: templates, logger: log}, nil
}

// Send renders the named template with vars and delivers it to the recipient.
func (m *SMTPMailer) Send(ctx context.Context, to, template string, vars map[string]string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("recipient is required")
	}

	rendered, err := m.templates.Render(template, vars)
	if err != nil {
		return err
	}

	msg := buildMessage(m.cfg.From, to, rendered.Subject, rendered.Body)

	if err := m.deliver(ctx, to, msg); err != nil {
		m.logger.Warn("mail delivery failed",
			zap.String("template", template),
			zap.String("to", logger.MaskEmail(to)),
			zap.Error(err),
		)
		return fmt.Errorf("send mail: %w", err)
	}

	m.logger.Info("mail delivered",
		zap.String("template", template),
		zap.String("to", logger.MaskEmail(to)),
	)

	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, to, msg string) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	timeout := m.cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	dialer := &net.Dialer{Timeout: timeout}

	var client *smtp.Client
	if m.cfg.Port == implicitTLSPort {
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: m.cfg.Host})
		if err != nil {
			return fmt.Errorf("dial smtp tls: %w", err)
		}
		client, err = smtp.NewClient(conn, m.cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp handshake: %w", err)
		}
	} else {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("dial smtp: %w", err)
		}
		client, err = smtp.NewClient(conn, m.cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp handshake: %w", err)
		}
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				client.Close()
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	defer client.Close()

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		wc.Close()
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close body: %w", err)
	}

	return client.Quit()
}

func buildMessage(from, to, subject, body string) string {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")
	return sb.String()
}

var _ port.Mailer = (*SMTPMailer)(nil)
