package notify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"skycast.dev/weather-alerts/internal/classify"
	"skycast.dev/weather-alerts/internal/notify"
	"skycast.dev/weather-alerts/internal/notify/mock"
	"skycast.dev/weather-alerts/internal/store"
)

// fakeSource is an in-memory AlertSource. Marked rows disappear from
// subsequent lookups the way notified rows do in the database.
type fakeSource struct {
	recipients []string
	alerts     map[string][]store.AlertRecord
	marked     map[store.AlertCategory][]uint

	recipientsErr error
	alertsErr     error
	markErr       error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		alerts: map[string][]store.AlertRecord{},
		marked: map[store.AlertCategory][]uint{},
	}
}

func (f *fakeSource) UndeliveredRecipients(_ context.Context) ([]string, error) {
	if f.recipientsErr != nil {
		return nil, f.recipientsErr
	}
	return f.recipients, nil
}

func (f *fakeSource) AlertsForRecipient(_ context.Context, email string) ([]store.AlertRecord, error) {
	if f.alertsErr != nil {
		return nil, f.alertsErr
	}
	var pending []store.AlertRecord
	for _, rec := range f.alerts[email] {
		if !f.isMarked(rec) {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

func (f *fakeSource) MarkNotified(_ context.Context, records []store.AlertRecord) error {
	if f.markErr != nil {
		return f.markErr
	}
	for _, rec := range records {
		if !f.isMarked(rec) {
			f.marked[rec.Category] = append(f.marked[rec.Category], rec.ID)
		}
	}
	return nil
}

func (f *fakeSource) isMarked(rec store.AlertRecord) bool {
	for _, id := range f.marked[rec.Category] {
		if id == rec.ID {
			return true
		}
	}
	return false
}

var _ = Describe("Engine", func() {
	var (
		source *fakeSource
		mailer *mock.MockMailer
		engine *notify.Engine
		logger *slog.Logger
		ctx    context.Context
	)

	windAlert := store.AlertRecord{
		Category:    store.CategoryWeather,
		ID:          1,
		Severity:    classify.SevereWarning,
		AlertType:   classify.WindAlert,
		Location:    "York",
		ForecastAt:  time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
		Measurement: 135,
	}

	floodAlert := store.AlertRecord{
		Category:   store.CategoryFlood,
		ID:         7,
		Severity:   classify.Warning,
		Location:   "Shrewsbury",
		TimeRaised: time.Date(2026, 3, 9, 6, 0, 0, 0, time.UTC),
	}

	BeforeEach(func() {
		source = newFakeSource()
		mailer = mock.NewMockMailer()
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		ctx = context.Background()

		var err error
		engine, err = notify.NewEngine(&notify.EngineConfig{
			Logger: logger,
			Source: source,
			Mailer: mailer,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewEngine", func() {
		It("rejects a nil config", func() {
			_, err := notify.NewEngine(nil)
			Expect(err).To(HaveOccurred())
		})

		It("rejects a missing mailer", func() {
			_, err := notify.NewEngine(&notify.EngineConfig{Logger: logger, Source: source})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Run", func() {
		It("does nothing when no recipients are pending", func() {
			Expect(engine.Run(ctx)).To(Succeed())
			Expect(mailer.SendCalls).To(BeEmpty())
		})

		It("sends one email per recipient and marks the rows", func() {
			source.recipients = []string{"ada@example.com"}
			source.alerts["ada@example.com"] = []store.AlertRecord{windAlert, floodAlert}

			Expect(engine.Run(ctx)).To(Succeed())

			Expect(mailer.SendCalls).To(HaveLen(1))
			Expect(mailer.SendCalls[0].Recipient).To(Equal("ada@example.com"))
			Expect(mailer.SendCalls[0].Subject).To(Equal(notify.Subject))
			Expect(mailer.SendCalls[0].HTMLBody).To(ContainSubstring("Extreme Wind"))
			Expect(source.marked[store.CategoryWeather]).To(ConsistOf(uint(1)))
			Expect(source.marked[store.CategoryFlood]).To(ConsistOf(uint(7)))
		})

		It("marks nothing when delivery fails", func() {
			source.recipients = []string{"ada@example.com"}
			source.alerts["ada@example.com"] = []store.AlertRecord{windAlert}
			mailer.SendError = errors.New("ses unavailable")

			Expect(engine.Run(ctx)).To(HaveOccurred())
			Expect(source.marked[store.CategoryWeather]).To(BeEmpty())
		})

		It("delivers a shared alert to every recipient in the cycle", func() {
			source.recipients = []string{"ada@example.com", "bob@example.com"}
			source.alerts["ada@example.com"] = []store.AlertRecord{windAlert}
			source.alerts["bob@example.com"] = []store.AlertRecord{windAlert}

			Expect(engine.Run(ctx)).To(Succeed())
			Expect(mailer.SendCalls).To(HaveLen(2))
		})

		It("skips recipients whose alerts are all normal severity", func() {
			normal := windAlert
			normal.Severity = classify.Normal
			source.recipients = []string{"ada@example.com"}
			source.alerts["ada@example.com"] = []store.AlertRecord{normal}

			Expect(engine.Run(ctx)).To(Succeed())
			Expect(mailer.SendCalls).To(BeEmpty())
			Expect(source.marked[store.CategoryWeather]).To(BeEmpty())
		})

		It("continues past one failing recipient", func() {
			source.recipients = []string{"ada@example.com", "bob@example.com"}
			source.alerts["ada@example.com"] = []store.AlertRecord{windAlert}
			source.alerts["bob@example.com"] = []store.AlertRecord{floodAlert}
			mailer.SendFunc = func(_ context.Context, recipient, _, _ string) error {
				if recipient == "ada@example.com" {
					return errors.New("mailbox full")
				}
				return nil
			}

			Expect(engine.Run(ctx)).To(HaveOccurred())
			Expect(mailer.SendCalls).To(HaveLen(2))
			Expect(source.marked[store.CategoryWeather]).To(BeEmpty())
			Expect(source.marked[store.CategoryFlood]).To(ConsistOf(uint(7)))
		})

		It("propagates recipient selection failures", func() {
			source.recipientsErr = errors.New("db down")
			Expect(engine.Run(ctx)).To(HaveOccurred())
		})

		It("sends the email even when marking later fails", func() {
			source.recipients = []string{"ada@example.com"}
			source.alerts["ada@example.com"] = []store.AlertRecord{windAlert}
			source.markErr = errors.New("db down")

			Expect(engine.Run(ctx)).To(HaveOccurred())
			Expect(mailer.SendCalls).To(HaveLen(1))
		})
	})
})
