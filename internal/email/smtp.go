// Package email delivers automation emails over the tenant's own SMTP
// server via go-mail. Subject and body arrive fully rendered; no template
// handling happens here.
package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"inspection_portal/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// Message is one outbound email.
type Message struct {
	To       []string
	CC       []string
	BCC      []string
	From     string
	Subject  string
	HTMLBody string
}

// SMTPSender sends messages through a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

// Send delivers the message. A trigger-level From overrides the configured
// default sender address.
func (s *SMTPSender) Send(ctx context.Context, message Message) error {
	msg := gomail.NewMsg()

	from := message.From
	if from == "" {
		if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
			return fmt.Errorf("smtp from: %w", err)
		}
	} else if err := msg.From(from); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}

	if err := msg.To(message.To...); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	if len(message.CC) > 0 {
		if err := msg.Cc(message.CC...); err != nil {
			return fmt.Errorf("smtp cc: %w", err)
		}
	}
	if len(message.BCC) > 0 {
		if err := msg.Bcc(message.BCC...); err != nil {
			return fmt.Errorf("smtp bcc: %w", err)
		}
	}
	msg.Subject(message.Subject)
	msg.SetBodyString(gomail.TypeTextHTML, message.HTMLBody)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
