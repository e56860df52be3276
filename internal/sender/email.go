package sender

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"gopkg.in/gomail.v2"

	"github.com/havenloop/dispatch-api/internal/config"
	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/pkg/circuitbreaker"
	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
)

type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers over SMTP.
type EmailSender struct {
	dialer smtpDialer
	from   string
	cb     *gobreaker.CircuitBreaker
}

func NewEmailSender(cfg config.SMTPConfig) *EmailSender {
	return &EmailSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		cb:     circuitbreaker.New("smtp"),
	}
}

func (s *EmailSender) Channel() model.Channel {
	return model.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, address, subject, body string) (string, error) {
	if err := ValidateAddress(model.ChannelEmail, address); err != nil {
		return "", err
	}

	// SMTP has no provider id; generate the Message-ID ourselves so the
	// outcome row can reference it.
	messageID := fmt.Sprintf("<%s@dispatch>", uuid.New().String())

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", address)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/plain", body)

	// gomail is not context-aware; run it under the breaker and race the
	// dial against ctx so a timed-out attempt is a plain retryable failure.
	errCh := make(chan error, 1)
	go func() {
		_, err := s.cb.Execute(func() (interface{}, error) {
			return nil, s.dialer.DialAndSend(m)
		})
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		return "", apperrors.ChannelSendFailed(string(model.ChannelEmail), ctx.Err())
	case err := <-errCh:
		if err != nil {
			return "", apperrors.ChannelSendFailed(string(model.ChannelEmail), err)
		}
	}
	return messageID, nil
}
