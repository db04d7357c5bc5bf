// Package mq provides the RabbitMQ client shared by the ingest consumers
// and the seed publisher. The client reconnects on its own; callers only
// see errNotConnected while a reconnect is in flight.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"skycast.dev/weather-alerts/pkg/metrics"
)

// Client wraps one AMQP connection and channel for a single queue, with
// automatic reconnection and publisher confirms.
type Client struct {
	m               *sync.Mutex
	logger          *slog.Logger
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan bool
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	queueName       string
	isReady         bool
	metrics         *metrics.MQMetrics // Optional metrics
}

const (
	// Delay between reconnect attempts after a connection failure.
	reconnectDelay = 5 * time.Second

	// Delay before re-opening the channel after a channel exception.
	reInitDelay = 2 * time.Second

	// Push retry backoff bounds. Backoff doubles per attempt up to the cap.
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 10 * time.Second

	// Push gives up after this many attempts; the caller decides whether
	// the batch is retried or dropped.
	maxRetryAttempts = 5
)

var (
	errNotConnected       = errors.New("not connected to a server")
	errAlreadyClosed      = errors.New("already closed: not connected to the server")
	errShutdown           = errors.New("client is shutting down")
	errMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
)

// New returns a client for the named queue and starts connecting to addr in
// the background.
func New(queueName, addr string, l *slog.Logger) *Client {
	client := Client{
		m:         &sync.Mutex{},
		logger:    l,
		queueName: queueName,
		done:      make(chan bool),
	}
	go client.connectLoop(addr)
	return &client
}

// SetMetrics sets the metrics collector for this client.
// This should be called before the client starts processing messages.
func (client *Client) SetMetrics(m *metrics.MQMetrics) {
	client.metrics = m
}

// connectLoop dials until a connection sticks, then hands off to the
// channel loop; it resumes dialing whenever the connection drops.
func (client *Client) connectLoop(addr string) {
	for {
		client.setReady(false)

		client.logger.Info("attempting to connect")
		if client.metrics != nil {
			client.metrics.Reconnects.Inc()
		}

		conn, err := client.connect(addr)
		if err != nil {
			client.logger.Error("failed to connect, retrying", "error", err)

			select {
			case <-client.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		if done := client.channelLoop(conn); done {
			break
		}
	}
}

func (client *Client) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		if client.metrics != nil {
			client.metrics.Connected.Set(0)
		}
		return nil, err
	}

	client.changeConnection(conn)
	client.logger.Info("connected")

	if client.metrics != nil {
		client.metrics.Connected.Set(1)
	}

	return conn, nil
}

// channelLoop keeps the channel alive over one connection. It returns true
// when the client is shutting down, false when the connection itself died
// and the connect loop should dial again.
func (client *Client) channelLoop(conn *amqp.Connection) bool {
	for {
		client.setReady(false)

		if err := client.initChannel(conn); err != nil {
			client.logger.Error("failed to initialize channel, retrying", "error", err)

			select {
			case <-client.done:
				return true
			case <-client.notifyConnClose:
				client.logger.Info("connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-client.done:
			return true
		case <-client.notifyConnClose:
			client.logger.Info("connection closed, reconnecting")
			return false
		case <-client.notifyChanClose:
			client.logger.Info("channel closed, re-opening")
		}
	}
}

// initChannel opens the channel, enables publisher confirms, and declares
// the queue. The queue is durable: forecast and flood batches must survive
// a broker restart.
func (client *Client) initChannel(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return err
	}
	_, err = ch.QueueDeclare(
		client.queueName,
		true,  // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		return err
	}

	client.changeChannel(ch)
	client.setReady(true)
	client.logger.Info("client init done")

	return nil
}

func (client *Client) setReady(ready bool) {
	client.m.Lock()
	client.isReady = ready
	client.m.Unlock()
}

func (client *Client) ready() bool {
	client.m.Lock()
	defer client.m.Unlock()
	return client.isReady
}

// changeConnection swaps in a new connection and re-arms its close
// listener.
func (client *Client) changeConnection(connection *amqp.Connection) {
	client.connection = connection
	client.notifyConnClose = make(chan *amqp.Error, 1)
	client.connection.NotifyClose(client.notifyConnClose)
}

// changeChannel swaps in a new channel and re-arms the close and confirm
// listeners.
func (client *Client) changeChannel(channel *amqp.Channel) {
	client.channel = channel
	client.notifyChanClose = make(chan *amqp.Error, 1)
	client.notifyConfirm = make(chan amqp.Confirmation, 1)
	client.channel.NotifyClose(client.notifyChanClose)
	client.channel.NotifyPublish(client.notifyConfirm)
}

// waitBackoff blocks for the current backoff interval and returns the next
// one, or an error when the context is canceled or the client shuts down.
func (client *Client) waitBackoff(ctx context.Context, backoff time.Duration) (time.Duration, error) {
	select {
	case <-ctx.Done():
		return backoff, ctx.Err()
	case <-client.done:
		return backoff, errShutdown
	case <-time.After(backoff):
	}
	backoff *= 2
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff, nil
}

// Push publishes data and blocks until the server confirms it. While the
// client is disconnected or the publish is nacked, Push retries with
// exponential backoff up to maxRetryAttempts before giving up.
func (client *Client) Push(ctx context.Context, data []byte) error {
	var timer *prometheus.Timer
	if client.metrics != nil {
		timer = prometheus.NewTimer(client.metrics.PublishDuration.WithLabelValues(client.queueName))
		defer timer.ObserveDuration()
	}

	backoff := initialBackoff

	for attempt := 0; ; attempt++ {
		if attempt >= maxRetryAttempts {
			client.logger.Error("maximum retry attempts exceeded",
				"attempts", attempt,
				"queue", client.queueName)
			if client.metrics != nil {
				client.metrics.PublishFailures.WithLabelValues(client.queueName, "max_retries_exceeded").Inc()
			}
			return errMaxRetriesExceeded
		}

		if !client.ready() {
			client.logger.Info("not connected, waiting for reconnection",
				"backoff", backoff,
				"attempt", attempt)

			next, err := client.waitBackoff(ctx, backoff)
			if err != nil {
				return err
			}
			backoff = next
			continue
		}

		if err := client.UnsafePush(ctx, data); err != nil {
			client.logger.Error("push failed, retrying",
				"error", err,
				"backoff", backoff,
				"attempt", attempt)

			next, werr := client.waitBackoff(ctx, backoff)
			if werr != nil {
				return werr
			}
			backoff = next
			continue
		}

		select {
		case <-ctx.Done():
			if client.metrics != nil {
				client.metrics.PublishFailures.WithLabelValues(client.queueName, "context_canceled").Inc()
			}
			return ctx.Err()
		case confirm := <-client.notifyConfirm:
			if confirm.Ack {
				if client.metrics != nil {
					client.metrics.Published.WithLabelValues(client.queueName).Inc()
				}
				client.logger.Info("push confirmed",
					"delivery_tag", confirm.DeliveryTag,
					"attempts", attempt+1)
				return nil
			}

			client.logger.Warn("push not acknowledged, retrying",
				"delivery_tag", confirm.DeliveryTag,
				"backoff", backoff)

			next, err := client.waitBackoff(ctx, backoff)
			if err != nil {
				return err
			}
			backoff = next
		}
	}
}

// UnsafePush publishes without waiting for a confirmation. The message is
// marked persistent so the durable queue keeps it over a broker restart.
func (client *Client) UnsafePush(ctx context.Context, data []byte) error {
	if !client.ready() {
		return errNotConnected
	}

	return client.channel.PublishWithContext(
		ctx,
		"",               // Exchange
		client.queueName, // Routing key
		false,            // Mandatory
		false,            // Immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         data,
		},
	)
}

// Consume returns the delivery channel for the queue with a prefetch of
// one, so a slow ingest cycle never hoards unacked batches. Every delivery
// must be acked or nacked by the caller.
func (client *Client) Consume() (<-chan amqp.Delivery, error) {
	if !client.ready() {
		return nil, errNotConnected
	}

	if err := client.channel.Qos(
		1,     // prefetchCount
		0,     // prefetchSize
		false, // global
	); err != nil {
		return nil, err
	}

	return client.channel.Consume(
		client.queueName,
		"",    // Consumer
		false, // Auto-Ack
		false, // Exclusive
		false, // No-local
		false, // No-Wait
		nil,   // Args
	)
}

// Close shuts down the channel and connection and stops the reconnect
// loop.
func (client *Client) Close() error {
	client.m.Lock()
	defer client.m.Unlock()

	if !client.isReady {
		return errAlreadyClosed
	}
	close(client.done)
	if err := client.channel.Close(); err != nil {
		return err
	}
	if err := client.connection.Close(); err != nil {
		return err
	}

	client.isReady = false

	if client.metrics != nil {
		client.metrics.Connected.Set(0)
	}

	return nil
}
