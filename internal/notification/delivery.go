// Package notification implements the delivery boundary of the automation
// engine: email through SMTP, text messages through the SMS gateway.
package notification

import (
	"context"
	"errors"
	"fmt"

	"inspection_portal/internal/automation/service"
	"inspection_portal/internal/email"
	"inspection_portal/internal/sms"
	"inspection_portal/platform/logger"
)

// Service fans automation messages out to the configured channels.
type Service struct {
	email *email.SMTPSender
	sms   *sms.Client
	log   *logger.Logger
}

// New creates the delivery service. Either channel may be nil; sending on a
// missing channel fails so the trigger is recorded as bounced instead of
// silently swallowed.
func New(emailSender *email.SMTPSender, smsClient *sms.Client, log *logger.Logger) *Service {
	return &Service{email: emailSender, sms: smsClient, log: log}
}

// SendEmail delivers one automation email.
func (s *Service) SendEmail(ctx context.Context, msg service.EmailMessage) error {
	if s.email == nil {
		return errors.New("email delivery not configured")
	}
	return s.email.Send(ctx, email.Message{
		To:       msg.To,
		CC:       msg.CC,
		BCC:      msg.BCC,
		From:     msg.From,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
	})
}

// SendSMS delivers the text to every recipient. Per-number failures are
// collected; one bad number does not stop the rest of the fan-out. An
// unconfigured gateway fails every number, so the trigger bounces.
func (s *Service) SendSMS(ctx context.Context, msg service.SMSMessage) error {
	var errs []error
	for _, number := range msg.To {
		if err := s.sms.SendMessage(ctx, number, msg.Body); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", number, err))
		}
	}
	return errors.Join(errs...)
}

// Compile-time check that Service implements the delivery boundary.
var _ service.Delivery = (*Service)(nil)
