// Package mock provides mock implementations of the notify package interfaces for testing.
package mock

import (
	"context"
	"sync"

	"skycast.dev/weather-alerts/internal/notify"
)

// MockMailer is a mock implementation of Mailer for testing.
// It tracks method calls and allows configuring return values and behavior.
type MockMailer struct {
	mu sync.Mutex

	// SendFunc is called when Send is invoked. If nil, returns SendError.
	SendFunc func(ctx context.Context, recipient, subject, htmlBody string) error
	// SendError is returned by Send if SendFunc is nil.
	SendError error
	// SendCalls tracks all calls to Send with their arguments.
	SendCalls []SendCall
}

// SendCall records the arguments to a Send call.
type SendCall struct {
	Ctx       context.Context
	Recipient string
	Subject   string
	HTMLBody  string
}

// NewMockMailer creates a new MockMailer with default behavior (no errors).
func NewMockMailer() *MockMailer {
	return &MockMailer{
		SendCalls: make([]SendCall, 0),
	}
}

// Send implements Mailer.
func (m *MockMailer) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SendCalls = append(m.SendCalls, SendCall{
		Ctx:       ctx,
		Recipient: recipient,
		Subject:   subject,
		HTMLBody:  htmlBody,
	})

	if m.SendFunc != nil {
		return m.SendFunc(ctx, recipient, subject, htmlBody)
	}
	return m.SendError
}

// Reset clears all tracked calls and resets the mock to its initial state.
func (m *MockMailer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SendCalls = make([]SendCall, 0)
}

// Ensure MockMailer implements notify.Mailer.
var _ notify.Mailer = (*MockMailer)(nil)
