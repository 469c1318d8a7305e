// Package email provides email sending adapters.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"time"

	"github.com/artpar/quotagate/ports"
)

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // sender email address
	FromName string // sender display name

	UseTLS      bool // STARTTLS when the server offers it
	SkipVerify  bool // skip certificate verification (testing only)
	UseImplicit bool // implicit TLS (port 465)

	Timeout time.Duration

	AppName    string // product name used in subjects and bodies
	PricingURL string // upgrade link in usage alerts, optional
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() SMTPConfig {
	return SMTPConfig{
		Host:     "localhost",
		Port:     587,
		From:     "noreply@localhost",
		FromName: "Quotagate",
		UseTLS:   true,
		Timeout:  30 * time.Second,
		AppName:  "Quotagate",
	}
}

// SMTPSender implements ports.EmailSender using SMTP.
type SMTPSender struct {
	config SMTPConfig

	usageAlertTmpl *template.Template
	keyResetTmpl   *template.Template
}

// NewSMTPSender creates a new SMTP email sender.
func NewSMTPSender(config SMTPConfig) (*SMTPSender, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if config.Port == 0 {
		config.Port = 587
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.AppName == "" {
		config.AppName = "Quotagate"
	}

	s := &SMTPSender{config: config}

	var err error
	s.usageAlertTmpl, err = template.New("usageAlert").Parse(usageAlertEmailTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse usage alert template: %w", err)
	}
	s.keyResetTmpl, err = template.New("keyReset").Parse(keyResetEmailTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse key reset template: %w", err)
	}

	return s, nil
}

// Send sends an email via SMTP.
func (s *SMTPSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	body := buildMessage(s.config.FromName, s.config.From, msg, time.Now())
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))

	conn, err := s.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if s.config.UseTLS && !s.config.UseImplicit {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(s.tlsConfig()); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(s.config.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return client.Quit()
}

func (s *SMTPSender) dial(ctx context.Context, addr string) (net.Conn, error) {
	nd := &net.Dialer{Timeout: s.config.Timeout}
	if s.config.UseImplicit {
		d := &tls.Dialer{NetDialer: nd, Config: s.tlsConfig()}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial tls: %w", err)
		}
		return conn, nil
	}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return conn, nil
}

func (s *SMTPSender) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         s.config.Host,
		InsecureSkipVerify: s.config.SkipVerify,
	}
}

// SendUsageAlert tells the account holder how much of today's quota is used.
func (s *SMTPSender) SendUsageAlert(ctx context.Context, to, name string, used, limit int64) error {
	data := s.templateData(name)
	data.Used = used
	data.Limit = limit

	var htmlBuf bytes.Buffer
	if err := s.usageAlertTmpl.Execute(&htmlBuf, data); err != nil {
		return fmt.Errorf("execute usage alert template: %w", err)
	}

	return s.Send(ctx, ports.EmailMessage{
		To:       to,
		Subject:  usageAlertSubject(s.config.AppName),
		HTMLBody: htmlBuf.String(),
		TextBody: usageAlertText(data),
	})
}

// SendKeyReset delivers a newly issued secret key.
func (s *SMTPSender) SendKeyReset(ctx context.Context, to, name, newKey string) error {
	data := s.templateData(name)
	data.Key = newKey

	var htmlBuf bytes.Buffer
	if err := s.keyResetTmpl.Execute(&htmlBuf, data); err != nil {
		return fmt.Errorf("execute key reset template: %w", err)
	}

	return s.Send(ctx, ports.EmailMessage{
		To:       to,
		Subject:  keyResetSubject(s.config.AppName),
		HTMLBody: htmlBuf.String(),
		TextBody: keyResetText(data),
	})
}

func (s *SMTPSender) templateData(name string) emailTemplateData {
	return emailTemplateData{
		Name:       name,
		AppName:    s.config.AppName,
		PricingURL: s.config.PricingURL,
	}
}

// buildMessage renders RFC 5322 headers and a text, HTML or
// multipart/alternative body.
func buildMessage(fromName, from string, msg ports.EmailMessage, now time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s <%s>\r\n", fromName, from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	switch {
	case msg.HTMLBody != "" && msg.TextBody != "":
		boundary := fmt.Sprintf("boundary-%d", now.UnixNano())
		fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)
		writePart(&buf, boundary, "text/plain", msg.TextBody)
		writePart(&buf, boundary, "text/html", msg.HTMLBody)
		fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	case msg.HTMLBody != "":
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.HTMLBody)
	default:
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.TextBody)
	}
	return buf.Bytes()
}

func writePart(buf *bytes.Buffer, boundary, contentType, body string) {
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	fmt.Fprintf(buf, "Content-Type: %s; charset=utf-8\r\n\r\n", contentType)
	buf.WriteString(body)
	buf.WriteString("\r\n")
}

// Ensure interface compliance.
var _ ports.EmailSender = (*SMTPSender)(nil)
