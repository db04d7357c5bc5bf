// Package notify reads undelivered alerts, renders one message per
// recipient, delivers it through the mail collaborator, and marks the
// included rows notified only after confirmed success.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sony/gobreaker"
)

// Mailer is the external mail-sending collaborator. Send is an opaque
// synchronous call: implementations do not retry, the engine's next cycle
// does.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) error
}

// SESMailer delivers mail through AWS SES.
type SESMailer struct {
	client *sesv2.Client
	sender string
}

// NewSESMailer loads AWS configuration for the region and returns a mailer
// sending from the given verified address.
func NewSESMailer(ctx context.Context, region, sender string) (*SESMailer, error) {
	if sender == "" {
		return nil, errors.New("sender address cannot be empty")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SESMailer{
		client: sesv2.NewFromConfig(cfg),
		sender: sender,
	}, nil
}

// Send delivers one HTML email to one recipient.
func (m *SESMailer) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	_, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.sender),
		Destination: &types.Destination{
			ToAddresses: []string{recipient},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", recipient, err)
	}
	return nil
}

// BreakerMailer wraps a Mailer with a bounded per-send timeout and a
// circuit breaker, so a failing mail collaborator sheds load instead of
// stalling every recipient in the cycle. A timeout counts as delivery
// failure; marking only happens after confirmed success, so this is
// retry-safe.
type BreakerMailer struct {
	inner   Mailer
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewBreakerMailer wraps inner. The breaker opens after five consecutive
// failures and probes again after 30 seconds.
func NewBreakerMailer(inner Mailer, timeout time.Duration) *BreakerMailer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BreakerMailer{
		inner:   inner,
		timeout: timeout,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "mailer",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// Send delivers through the breaker with the bounded timeout applied.
func (m *BreakerMailer) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	_, err := m.breaker.Execute(func() (interface{}, error) {
		sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		return nil, m.inner.Send(sendCtx, recipient, subject, htmlBody)
	})
	return err
}
