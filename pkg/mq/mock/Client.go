// Package mock provides an in-memory stand-in for the mq client so consumer
// and publisher logic can be tested without a broker.
package mock

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"skycast.dev/weather-alerts/pkg/mq"
)

// MockClient implements mq.ClientInterface. Each method records its calls and
// returns either the configured error or the result of the configured func.
// The zero value is usable; NewMockClient pre-wires an open delivery channel
// so Consume-driven loops block instead of spinning on a closed channel.
type MockClient struct {
	mu sync.Mutex

	// PushFunc, when set, handles Push calls. Otherwise PushError is returned.
	PushFunc  func(ctx context.Context, data []byte) error
	PushError error
	// PushCalls holds the payload of every Push invocation, in order.
	PushCalls []PublishCall

	// UnsafePushFunc, when set, handles UnsafePush calls. Otherwise
	// UnsafePushError is returned.
	UnsafePushFunc  func(ctx context.Context, data []byte) error
	UnsafePushError error
	// UnsafePushCalls holds the payload of every UnsafePush invocation.
	UnsafePushCalls []PublishCall

	// ConsumeChannel is handed out by Consume together with ConsumeError,
	// unless ConsumeFunc overrides both.
	ConsumeFunc    func() (<-chan amqp.Delivery, error)
	ConsumeChannel <-chan amqp.Delivery
	ConsumeError   error
	ConsumeCalls   int

	// CloseFunc, when set, handles Close calls. Otherwise CloseError is
	// returned. CloseCalls counts invocations.
	CloseFunc  func() error
	CloseError error
	CloseCalls int
}

// PublishCall captures one publish attempt, for either Push variant.
type PublishCall struct {
	Ctx  context.Context
	Data []byte
}

// NewMockClient returns a mock that succeeds on every call and whose Consume
// channel never yields. Tests that drive deliveries replace ConsumeChannel
// with their own channel.
func NewMockClient() *MockClient {
	return &MockClient{
		ConsumeChannel: make(chan amqp.Delivery),
	}
}

func (m *MockClient) Push(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PushCalls = append(m.PushCalls, PublishCall{Ctx: ctx, Data: data})

	if m.PushFunc != nil {
		return m.PushFunc(ctx, data)
	}
	return m.PushError
}

func (m *MockClient) UnsafePush(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UnsafePushCalls = append(m.UnsafePushCalls, PublishCall{Ctx: ctx, Data: data})

	if m.UnsafePushFunc != nil {
		return m.UnsafePushFunc(ctx, data)
	}
	return m.UnsafePushError
}

func (m *MockClient) Consume() (<-chan amqp.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConsumeCalls++

	if m.ConsumeFunc != nil {
		return m.ConsumeFunc()
	}
	return m.ConsumeChannel, m.ConsumeError
}

func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return m.CloseError
}

// Reset drops recorded calls so a mock can be reused across specs.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PushCalls = nil
	m.UnsafePushCalls = nil
	m.ConsumeCalls = 0
	m.CloseCalls = 0
}

var _ mq.ClientInterface = (*MockClient)(nil)
