package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"skycast.dev/weather-alerts/internal/classify"
	"skycast.dev/weather-alerts/internal/store"
)

var _ = Describe("Notification queries", func() {
	var (
		db  *gorm.DB
		st  *store.Store
		ctx context.Context

		yorkID   uint
		leedsID  uint
		captured time.Time
		at       time.Time
	)

	BeforeEach(func() {
		db = newTestDB()
		st = store.New(db)
		ctx = context.Background()

		captured = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		at = captured.Add(3 * time.Hour)

		yorkID = seedLocation(db, "York", 53.96, -1.08)
		leedsID = seedLocation(db, "Leeds", 53.8, -1.55)
	})

	// seedWeatherAlert creates report, forecast and alert for a location and
	// returns the alert id.
	seedWeatherAlert := func(locID uint, alertType classify.AlertType, severity classify.Severity) uint {
		reportID := seedReport(db, locID, captured)
		f := baseForecast(locID, reportID, at)
		f.WindGusts = 135
		f.Temperature = 33
		fcID, err := st.UpsertForecast(ctx, f)
		Expect(err).NotTo(HaveOccurred())
		id, err := st.InsertAlertIfAbsent(ctx, fcID, alertType, severity)
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	Describe("UndeliveredRecipients", func() {
		It("returns nothing when no alerts are pending", func() {
			seedSubscriber(db, "ada@example.com", yorkID, true)
			recipients, err := st.UndeliveredRecipients(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(recipients).To(BeEmpty())
		})

		It("selects opted-in recipients with pending weather alerts", func() {
			seedSubscriber(db, "ada@example.com", yorkID, true)
			seedWeatherAlert(yorkID, classify.WindAlert, classify.SevereWarning)

			recipients, err := st.UndeliveredRecipients(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(recipients).To(Equal([]string{"ada@example.com"}))
		})

		It("skips opted-out subscriptions", func() {
			seedSubscriber(db, "ada@example.com", yorkID, false)
			seedWeatherAlert(yorkID, classify.WindAlert, classify.SevereWarning)

			recipients, err := st.UndeliveredRecipients(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(recipients).To(BeEmpty())
		})

		It("skips recipients subscribed elsewhere", func() {
			seedSubscriber(db, "bob@example.com", leedsID, true)
			seedWeatherAlert(yorkID, classify.WindAlert, classify.SevereWarning)

			recipients, err := st.UndeliveredRecipients(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(recipients).To(BeEmpty())
		})

		It("includes recipients with pending flood warnings", func() {
			seedSubscriber(db, "bob@example.com", leedsID, true)
			_, _, err := st.InsertFloodWarningIfAbsent(ctx, leedsID, classify.Warning, captured)
			Expect(err).NotTo(HaveOccurred())

			recipients, err := st.UndeliveredRecipients(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(recipients).To(Equal([]string{"bob@example.com"}))
		})

		It("excludes air readings at normal severity", func() {
			seedSubscriber(db, "ada@example.com", yorkID, true)
			reportID := seedReport(db, yorkID, captured)
			_, err := st.CreateAirQualityReading(ctx, reportID, 50, classify.Normal)
			Expect(err).NotTo(HaveOccurred())

			recipients, err := st.UndeliveredRecipients(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(recipients).To(BeEmpty())
		})

		It("includes air readings above normal severity", func() {
			seedSubscriber(db, "ada@example.com", yorkID, true)
			reportID := seedReport(db, yorkID, captured)
			_, err := st.CreateAirQualityReading(ctx, reportID, 180, classify.Warning)
			Expect(err).NotTo(HaveOccurred())

			recipients, err := st.UndeliveredRecipients(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(recipients).To(Equal([]string{"ada@example.com"}))
		})

		It("deduplicates across alert categories and sorts", func() {
			seedSubscriber(db, "bob@example.com", yorkID, true)
			seedSubscriber(db, "ada@example.com", yorkID, true)
			seedWeatherAlert(yorkID, classify.WindAlert, classify.SevereWarning)
			_, _, err := st.InsertFloodWarningIfAbsent(ctx, yorkID, classify.Warning, captured)
			Expect(err).NotTo(HaveOccurred())

			recipients, err := st.UndeliveredRecipients(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(recipients).To(Equal([]string{"ada@example.com", "bob@example.com"}))
		})
	})

	Describe("AlertsForRecipient", func() {
		BeforeEach(func() {
			seedSubscriber(db, "ada@example.com", yorkID, true)
		})

		It("returns weather alerts with the relevant measurement", func() {
			seedWeatherAlert(yorkID, classify.WindAlert, classify.SevereWarning)

			records, err := st.AlertsForRecipient(ctx, "ada@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Category).To(Equal(store.CategoryWeather))
			Expect(records[0].AlertType).To(Equal(classify.WindAlert))
			Expect(records[0].Severity).To(Equal(classify.SevereWarning))
			Expect(records[0].Location).To(Equal("York"))
			Expect(records[0].County).To(Equal("York County"))
			Expect(records[0].Measurement).To(Equal(135.0))
		})

		It("picks temperature for heat alerts", func() {
			seedWeatherAlert(yorkID, classify.HeatAlert, classify.SevereWarning)

			records, err := st.AlertsForRecipient(ctx, "ada@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Measurement).To(Equal(33.0))
		})

		It("orders weather before air quality before floods", func() {
			seedWeatherAlert(yorkID, classify.WindAlert, classify.SevereWarning)
			reportID := seedReport(db, yorkID, captured)
			_, err := st.CreateAirQualityReading(ctx, reportID, 180, classify.Warning)
			Expect(err).NotTo(HaveOccurred())
			_, _, err = st.InsertFloodWarningIfAbsent(ctx, yorkID, classify.Warning, captured)
			Expect(err).NotTo(HaveOccurred())

			records, err := st.AlertsForRecipient(ctx, "ada@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			Expect(records[0].Category).To(Equal(store.CategoryWeather))
			Expect(records[1].Category).To(Equal(store.CategoryAirQuality))
			Expect(records[1].Measurement).To(Equal(180.0))
			Expect(records[2].Category).To(Equal(store.CategoryFlood))
			Expect(records[2].TimeRaised).To(BeTemporally("==", captured))
		})

		It("omits alerts already notified", func() {
			id := seedWeatherAlert(yorkID, classify.WindAlert, classify.SevereWarning)
			Expect(db.Model(&store.WeatherAlert{}).Where("id = ?", id).
				Update("notified", true).Error).To(Succeed())

			records, err := st.AlertsForRecipient(ctx, "ada@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("omits alerts at other recipients' locations", func() {
			seedSubscriber(db, "bob@example.com", leedsID, true)
			seedWeatherAlert(leedsID, classify.WindAlert, classify.SevereWarning)

			records, err := st.AlertsForRecipient(ctx, "ada@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})
	})

	Describe("MarkNotified", func() {
		It("flags rows across all three categories", func() {
			seedSubscriber(db, "ada@example.com", yorkID, true)
			seedWeatherAlert(yorkID, classify.WindAlert, classify.SevereWarning)
			reportID := seedReport(db, yorkID, captured)
			_, err := st.CreateAirQualityReading(ctx, reportID, 180, classify.Warning)
			Expect(err).NotTo(HaveOccurred())
			_, _, err = st.InsertFloodWarningIfAbsent(ctx, yorkID, classify.Warning, captured)
			Expect(err).NotTo(HaveOccurred())

			records, err := st.AlertsForRecipient(ctx, "ada@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			Expect(st.MarkNotified(ctx, records)).To(Succeed())

			remaining, err := st.AlertsForRecipient(ctx, "ada@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(BeEmpty())

			recipients, err := st.UndeliveredRecipients(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(recipients).To(BeEmpty())
		})

		It("is idempotent", func() {
			seedSubscriber(db, "ada@example.com", yorkID, true)
			seedWeatherAlert(yorkID, classify.WindAlert, classify.SevereWarning)

			records, err := st.AlertsForRecipient(ctx, "ada@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(st.MarkNotified(ctx, records)).To(Succeed())
			Expect(st.MarkNotified(ctx, records)).To(Succeed())
		})

		It("handles an empty batch", func() {
			Expect(st.MarkNotified(ctx, nil)).To(Succeed())
		})
	})
})
