package mailer

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/akeren/go-waitlist/internal/log"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender delivers through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
}

func NewSendGridSender(apiKey string) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey)}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	from, err := toSendGridEmail(msg.From)
	if err != nil {
		return fmt.Errorf("sendgrid: invalid from address: %w", err)
	}

	to, err := toSendGridEmail(msg.To)
	if err != nil {
		return fmt.Errorf("sendgrid: invalid recipient address: %w", err)
	}

	resp, err := s.client.SendWithContext(ctx, sgmail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML))
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}

	return nil
}

func toSendGridEmail(raw string) (*sgmail.Email, error) {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return nil, err
	}
	return sgmail.NewEmail(addr.Name, addr.Address), nil
}

// LogSender writes a line per email instead of sending it. The body is left
// out because it carries the confirmation token.
type LogSender struct {
	logger *log.Logger
}

func NewLogSender(logger *log.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("Email not sent (log mail driver)",
		"from", msg.From,
		"recipient", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
