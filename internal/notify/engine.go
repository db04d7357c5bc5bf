package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"skycast.dev/weather-alerts/internal/store"
	"skycast.dev/weather-alerts/pkg/metrics"
)

// AlertSource is the slice of the store the engine reads and writes.
type AlertSource interface {
	UndeliveredRecipients(ctx context.Context) ([]string, error)
	AlertsForRecipient(ctx context.Context, email string) ([]store.AlertRecord, error)
	MarkNotified(ctx context.Context, records []store.AlertRecord) error
}

// Engine drives one notification cycle: select recipients, collect and
// render their alerts, deliver, and mark delivered rows notified.
type Engine struct {
	source  AlertSource
	mailer  Mailer
	logger  *slog.Logger
	metrics *metrics.NotifyMetrics // Optional metrics
}

// EngineConfig holds the configuration for the Engine.
type EngineConfig struct {
	Logger *slog.Logger
	Source AlertSource
	Mailer Mailer
}

// NewEngine creates a new Engine instance.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Source == nil {
		return nil, errors.New("alert source cannot be nil")
	}

	if cfg.Mailer == nil {
		return nil, errors.New("mailer cannot be nil")
	}

	return &Engine{
		source: cfg.Source,
		mailer: cfg.Mailer,
		logger: cfg.Logger,
	}, nil
}

// SetMetrics sets the metrics collector for this engine.
func (e *Engine) SetMetrics(m *metrics.NotifyMetrics) {
	e.metrics = m
}

// Run executes one full notification cycle. A failure for one recipient is
// recorded and skipped; every other recipient still gets their mail, and
// the failed recipient's rows stay un-notified for the next cycle.
func (e *Engine) Run(ctx context.Context) error {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.RunDuration.Observe(time.Since(start).Seconds())
		}
	}()

	recipients, err := e.source.UndeliveredRecipients(ctx)
	if err != nil {
		return fmt.Errorf("select recipients: %w", err)
	}

	e.logger.Info("notification cycle started", "recipients", len(recipients))

	// Snapshot every recipient's alerts before marking anything. Alert rows
	// are shared between recipients subscribed to the same location, and
	// marking one recipient's rows must not hide them from the next.
	batches := make(map[string][]store.AlertRecord, len(recipients))
	for _, recipient := range recipients {
		records, err := e.source.AlertsForRecipient(ctx, recipient)
		if err != nil {
			return fmt.Errorf("collect alerts for %s: %w", recipient, err)
		}
		batches[recipient] = records
	}

	var failed int
	for _, recipient := range recipients {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := e.notifyRecipient(ctx, recipient, batches[recipient]); err != nil {
			failed++
			e.logger.Error("recipient notification failed",
				"recipient", recipient,
				"error", err,
			)
		}
	}

	e.logger.Info("notification cycle finished",
		"recipients", len(recipients),
		"failed", failed,
	)
	if failed > 0 {
		return fmt.Errorf("notification cycle: %d of %d recipients failed", failed, len(recipients))
	}
	return nil
}

// notifyRecipient delivers one recipient's alerts. Rows are marked
// notified only after Send returns success, and only the rows that were
// actually included in the message; on failure nothing is marked, so the
// next cycle retries this recipient alone.
func (e *Engine) notifyRecipient(ctx context.Context, recipient string, records []store.AlertRecord) error {
	included := records[:0:0]
	for _, rec := range records {
		if Renderable(rec) {
			included = append(included, rec)
		}
	}

	var renderStart time.Time
	if e.metrics != nil {
		renderStart = time.Now()
	}
	body, ok := RenderMessage(included)
	if e.metrics != nil {
		e.metrics.RenderDuration.Observe(time.Since(renderStart).Seconds())
	}
	if !ok {
		// Everything filtered out; no empty email.
		e.logger.Debug("no renderable alerts, skipping", "recipient", recipient)
		if e.metrics != nil {
			e.metrics.EmptySkips.Inc()
			e.metrics.RecipientsTotal.WithLabelValues("skipped").Inc()
		}
		return nil
	}

	sendStart := time.Now()
	err := e.mailer.Send(ctx, recipient, Subject, body)
	if e.metrics != nil {
		e.metrics.DeliveryDuration.Observe(time.Since(sendStart).Seconds())
	}
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecipientsTotal.WithLabelValues("failed").Inc()
		}
		return fmt.Errorf("deliver: %w", err)
	}

	if err := e.source.MarkNotified(ctx, included); err != nil {
		// The email went out but marking failed; the next cycle will
		// re-send. At-least-once is the accepted tradeoff here.
		return fmt.Errorf("mark notified after delivery: %w", err)
	}

	if e.metrics != nil {
		e.metrics.RecipientsTotal.WithLabelValues("delivered").Inc()
		counts := map[store.AlertCategory]int{}
		for _, rec := range included {
			counts[rec.Category]++
		}
		for category, n := range counts {
			e.metrics.AlertsMarked.WithLabelValues(string(category)).Add(float64(n))
		}
	}

	e.logger.Info("recipient notified",
		"recipient", recipient,
		"alerts", len(included),
	)
	return nil
}
