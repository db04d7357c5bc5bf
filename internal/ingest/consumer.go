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

// ForecastConsumer consumes forecast batches from RabbitMQ and hands them
// to the processor.
type ForecastConsumer struct {
	logger    *slog.Logger
	processor *Processor
	mqClient  mq.ClientInterface
	queueName string
	metrics   *metrics.IngestMetrics // Optional metrics
	done      chan struct{}
}

// ForecastConsumerConfig holds the configuration for the ForecastConsumer.
type ForecastConsumerConfig struct {
	Logger      *slog.Logger
	Processor   *Processor
	MQClient    mq.ClientInterface
	RabbitMQURL string
	QueueName   string
}

// NewForecastConsumer creates a new ForecastConsumer instance. When
// MQClient is nil a real client is dialed from RabbitMQURL.
func NewForecastConsumer(cfg *ForecastConsumerConfig) (*ForecastConsumer, error) {
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

	return &ForecastConsumer{
		logger:    cfg.Logger,
		processor: cfg.Processor,
		mqClient:  mqClient,
		queueName: cfg.QueueName,
		done:      make(chan struct{}),
	}, nil
}

// SetMetrics sets the metrics collector for this consumer.
func (c *ForecastConsumer) SetMetrics(m *metrics.IngestMetrics) {
	c.metrics = m
}

// Start begins consuming forecast batches.
func (c *ForecastConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting forecast consumer", "queue", c.queueName)

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go c.processMessages(ctx, deliveries)

	return nil
}

// processMessages drains the delivery channel until the context is
// canceled or the channel closes.
func (c *ForecastConsumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping forecast consumer")
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

// handleDelivery processes a single forecast batch message. Malformed
// payloads are acked and dropped so they never loop through the queue;
// storage failures are nacked for redelivery.
func (c *ForecastConsumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	start := time.Now()

	batch, err := DecodeForecastBatch(delivery.Body)
	if err != nil {
		c.logger.Error("failed to decode forecast batch", "error", err)
		c.countError("decode_error")
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	c.logger.Info("received forecast batch",
		"latitude", batch.Latitude,
		"longitude", batch.Longitude,
		"forecasts", len(batch.Forecasts),
	)

	if err := c.processor.ProcessForecastBatch(ctx, batch); err != nil {
		c.logger.Error("failed to persist forecast batch",
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

	c.logger.Debug("forecast batch persisted",
		"latitude", batch.Latitude,
		"longitude", batch.Longitude,
	)
}

func (c *ForecastConsumer) countError(errType string) {
	if c.metrics != nil {
		c.metrics.MessagesTotal.WithLabelValues(c.queueName, "error").Inc()
		c.metrics.MessageErrors.WithLabelValues(c.queueName, errType).Inc()
	}
}

// Stop stops the consumer and closes the MQ client.
func (c *ForecastConsumer) Stop() error {
	c.logger.Info("stopping forecast consumer")

	if err := c.mqClient.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	<-c.done

	c.logger.Info("forecast consumer stopped")
	return nil
}
