package service

import "context"

// EmailMessage is a fully rendered email; subject and body arrive with
// placeholders already substituted.
type EmailMessage struct {
	To       []string
	CC       []string
	BCC      []string
	From     string
	Subject  string
	HTMLBody string
}

// SMSMessage is a fully rendered text message.
type SMSMessage struct {
	To   []string
	Body string
}

// Delivery sends the resolved notification over the configured channel.
// Implementations live in internal/notification; the orchestrator only
// depends on this interface so tests can use fakes.
type Delivery interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
	SendSMS(ctx context.Context, msg SMSMessage) error
}
