package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"skycast.dev/weather-alerts/pkg/metrics"
	"skycast.dev/weather-alerts/pkg/mq"
)

// FloodConsumer consumes flood warning messages from RabbitMQ and hands
// them to the processor.
type FloodConsumer struct {
	logger    *slog.Logger
	processor *Processor
	mqClient  mq.ClientInterface
	queueName string
	metrics   *metrics.IngestMetrics // Optional metrics
	done      chan struct{}
}

// FloodConsumerConfig holds the configuration for the FloodConsumer.
type FloodConsumerConfig struct {
	Logger      *slog.Logger
	Processor   *Processor
	MQClient    mq.ClientInterface
	RabbitMQURL string
	QueueName   string
}

// NewFloodConsumer creates a new FloodConsumer instance. When MQClient is
// nil a real client is dialed from RabbitMQURL.
func NewFloodConsumer(cfg *FloodConsumerConfig) (*FloodConsumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Processor == nil {
		return nil, errors.New("processor cannot be nil")
	}

	if cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	mqClient := cfg.MQClient
	if mqClient == nil {
		if cfg.RabbitMQURL == "" {
			return nil, errors.New("rabbitmq URL cannot be empty")
		}
		mqClient = mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger)
	}

	return &FloodConsumer{
		logger:    cfg.Logger,
		processor: cfg.Processor,
		mqClient:  mqClient,
		queueName: cfg.QueueName,
		done:      make(chan struct{}),
	}, nil
}

// SetMetrics sets the metrics collector for this consumer.
func (c *FloodConsumer) SetMetrics(m *metrics.IngestMetrics) {
	c.metrics = m
}

// Start begins consuming flood warnings.
func (c *FloodConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting flood consumer", "queue", c.queueName)

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go c.processMessages(ctx, deliveries)

	return nil
}

func (c *FloodConsumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping flood consumer")
			close(c.done)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				close(c.done)
				return
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery processes a single flood warning. The same ack/nack
// policy as the forecast consumer applies: bad payloads are dropped,
// storage failures are redelivered.
func (c *FloodConsumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	start := time.Now()

	batch, err := DecodeFloodBatch(delivery.Body)
	if err != nil {
		c.logger.Error("failed to decode flood warning", "error", err)
		c.countError("decode_error")
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	if err := c.processor.ProcessFloodBatch(ctx, batch); err != nil {
		c.logger.Error("failed to persist flood warning",
			"latitude", batch.Latitude,
			"longitude", batch.Longitude,
			"error", err,
		)
		c.countError("storage_error")
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
		return
	}

	if c.metrics != nil {
		c.metrics.MessagesTotal.WithLabelValues(c.queueName, "success").Inc()
		c.metrics.ProcessingDuration.WithLabelValues(c.queueName).Observe(time.Since(start).Seconds())
	}
}

func (c *FloodConsumer) countError(errType string) {
	if c.metrics != nil {
		c.metrics.MessagesTotal.WithLabelValues(c.queueName, "error").Inc()
		c.metrics.MessageErrors.WithLabelValues(c.queueName, errType).Inc()
	}
}

// Stop stops the consumer and closes the MQ client.
func (c *FloodConsumer) Stop() error {
	c.logger.Info("stopping flood consumer")

	if err := c.mqClient.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	<-c.done

	c.logger.Info("flood consumer stopped")
	return nil
}
