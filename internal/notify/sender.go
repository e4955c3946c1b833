package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ResendSender delivers through the Resend HTTP API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender builds a sender for apiKey. from is the envelope sender.
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, m Message) error {
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{m.To},
		Subject: m.Subject,
		Html:    m.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// LogSender records emails instead of sending them. Used when no API key is configured.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender returns a Sender that only logs subjects.
func NewLogSender(log *zap.Logger) *LogSender { return &LogSender{log: log} }

// Send implements Sender. Bodies may carry codes and are not logged.
func (s *LogSender) Send(_ context.Context, m Message) error {
	s.log.Info("email (not sent, mail disabled)", zap.String("subject", m.Subject))
	return nil
}
