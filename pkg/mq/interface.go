package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ClientInterface is the broker surface the services depend on. The seed
// publishers and the ingest consumer take this instead of *Client so tests
// can swap in the mock package.
type ClientInterface interface {
	// Push publishes data and blocks until the broker confirms it, retrying
	// across reconnects. Cancel the context to stop waiting.
	Push(ctx context.Context, data []byte) error

	// UnsafePush publishes without waiting for confirmation. It fails fast
	// when the client is not connected and gives no delivery guarantee.
	UnsafePush(ctx context.Context, data []byte) error

	// Consume returns the delivery channel for the client's queue. Callers
	// must Ack each delivery once stored, or Nack it for redelivery.
	Consume() (<-chan amqp.Delivery, error)

	// Close shuts down the channel and connection.
	Close() error
}

var _ ClientInterface = (*Client)(nil)
