// Package store provides end-to-end tests for the persistence layer
// against a real PostgreSQL server.
package store

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jonboulle/clockwork"

	"skycast.dev/weather-alerts/internal/classify"
	"skycast.dev/weather-alerts/internal/store"
	"skycast.dev/weather-alerts/internal/sweep"
)

// Each spec works on its own coordinates so specs stay independent without
// truncating tables between them.
var coordSeq = 0.0

func nextCoords() (float64, float64) {
	coordSeq++
	return 50.0 + coordSeq*0.01, -1.0 - coordSeq*0.01
}

func newLocation(ctx context.Context, name string) uint {
	GinkgoHelper()
	lat, lon := nextCoords()
	locID, err := st.CreateLocation(ctx, lat, lon, store.Place{
		Name:    name,
		County:  name + " County",
		Country: "United Kingdom",
	})
	Expect(err).NotTo(HaveOccurred())
	return locID
}

func newReport(ctx context.Context, locID uint, capturedAt time.Time) uint {
	GinkgoHelper()
	reportID, err := st.CreateWeatherReport(ctx, locID, capturedAt)
	Expect(err).NotTo(HaveOccurred())
	return reportID
}

func baseForecast(locID, reportID uint, at time.Time) *store.Forecast {
	return &store.Forecast{
		LocationID:      locID,
		WeatherReportID: reportID,
		ForecastAt:      at,
		Temperature:     18,
		Humidity:        60,
		Visibility:      40000,
	}
}

var _ = Describe("Store E2E", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Location creation", func() {
		It("should return the same id when the same coordinates race", func() {
			lat, lon := nextCoords()
			place := store.Place{Name: "Ely", County: "Cambridgeshire", Country: "United Kingdom"}

			const writers = 8
			ids := make([]uint, writers)
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(slot int) {
					defer wg.Done()
					defer GinkgoRecover()
					id, err := st.CreateLocation(ctx, lat, lon, place)
					Expect(err).NotTo(HaveOccurred())
					ids[slot] = id
				}(i)
			}
			wg.Wait()

			for _, id := range ids {
				Expect(id).To(Equal(ids[0]))
			}

			var count int64
			Expect(db.Model(&store.Location{}).
				Where("latitude = ? AND longitude = ?", lat, lon).
				Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})
	})

	Describe("Forecast upserts", func() {
		It("should keep one row per forecast timestamp across redeliveries", func() {
			locID := newLocation(ctx, "Keswick")
			reportID := newReport(ctx, locID, time.Now().UTC())
			forecastAt := time.Now().UTC().Add(3 * time.Hour).Truncate(time.Second)

			first := baseForecast(locID, reportID, forecastAt)
			firstID, err := st.UpsertForecast(ctx, first)
			Expect(err).NotTo(HaveOccurred())

			redelivered := baseForecast(locID, reportID, forecastAt)
			redelivered.Temperature = 33
			secondID, err := st.UpsertForecast(ctx, redelivered)
			Expect(err).NotTo(HaveOccurred())
			Expect(secondID).To(Equal(firstID))

			var rows []store.Forecast
			Expect(db.Where("location_id = ?", locID).Find(&rows).Error).To(Succeed())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Temperature).To(Equal(33.0))
		})

		It("should survive concurrent upserts of the same timestamp", func() {
			locID := newLocation(ctx, "Buxton")
			reportID := newReport(ctx, locID, time.Now().UTC())
			forecastAt := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)

			const writers = 8
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := st.UpsertForecast(ctx, baseForecast(locID, reportID, forecastAt))
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			var count int64
			Expect(db.Model(&store.Forecast{}).
				Where("location_id = ?", locID).
				Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})
	})

	Describe("Alert inserts", func() {
		It("should keep one alert row per hazard under concurrent inserts", func() {
			locID := newLocation(ctx, "Whitby")
			reportID := newReport(ctx, locID, time.Now().UTC())
			forecast := baseForecast(locID, reportID, time.Now().UTC().Add(time.Hour))
			forecast.WindGusts = 135
			forecastID, err := st.UpsertForecast(ctx, forecast)
			Expect(err).NotTo(HaveOccurred())

			const writers = 8
			ids := make([]uint, writers)
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(slot int) {
					defer wg.Done()
					defer GinkgoRecover()
					id, err := st.InsertAlertIfAbsent(ctx, forecastID, classify.WindAlert, classify.SevereWarning)
					Expect(err).NotTo(HaveOccurred())
					ids[slot] = id
				}(i)
			}
			wg.Wait()

			for _, id := range ids {
				Expect(id).To(Equal(ids[0]))
			}

			var count int64
			Expect(db.Model(&store.WeatherAlert{}).
				Where("forecast_id = ?", forecastID).
				Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})

		It("should not overwrite the severity of an existing alert", func() {
			locID := newLocation(ctx, "Skegness")
			reportID := newReport(ctx, locID, time.Now().UTC())
			forecastID, err := st.UpsertForecast(ctx, baseForecast(locID, reportID, time.Now().UTC().Add(time.Hour)))
			Expect(err).NotTo(HaveOccurred())

			first, err := st.InsertAlertIfAbsent(ctx, forecastID, classify.HeatAlert, classify.Warning)
			Expect(err).NotTo(HaveOccurred())

			second, err := st.InsertAlertIfAbsent(ctx, forecastID, classify.HeatAlert, classify.SevereWarning)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))

			var alert store.WeatherAlert
			Expect(db.First(&alert, first).Error).To(Succeed())
			Expect(alert.Severity).To(Equal(classify.Warning))
		})
	})

	Describe("Flood warning inserts", func() {
		It("should deduplicate on the exact identity triple", func() {
			locID := newLocation(ctx, "Tewkesbury")
			raised := time.Now().UTC().Truncate(time.Second)

			first, inserted, err := st.InsertFloodWarningIfAbsent(ctx, locID, classify.Warning, raised)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			dup, inserted, err := st.InsertFloodWarningIfAbsent(ctx, locID, classify.Warning, raised)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())
			Expect(dup).To(Equal(first))

			escalated, inserted, err := st.InsertFloodWarningIfAbsent(ctx, locID, classify.SevereWarning, raised)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())
			Expect(escalated).NotTo(Equal(first))

			var count int64
			Expect(db.Model(&store.FloodWarning{}).
				Where("location_id = ?", locID).
				Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(2)))
		})
	})

	Describe("Notification delivery flow", func() {
		It("should surface undelivered alerts exactly once", func() {
			locID := newLocation(ctx, "Dunwich")
			reportID := newReport(ctx, locID, time.Now().UTC())
			forecast := baseForecast(locID, reportID, time.Now().UTC().Add(time.Hour))
			forecast.WindGusts = 140
			forecastID, err := st.UpsertForecast(ctx, forecast)
			Expect(err).NotTo(HaveOccurred())
			_, err = st.InsertAlertIfAbsent(ctx, forecastID, classify.WindAlert, classify.SevereWarning)
			Expect(err).NotTo(HaveOccurred())

			email := "dunwich-subscriber@example.com"
			recipient := store.Recipient{Email: email}
			Expect(db.Create(&recipient).Error).To(Succeed())
			Expect(db.Create(&store.Subscription{
				RecipientID: recipient.ID,
				LocationID:  locID,
				AlertOptIn:  true,
			}).Error).To(Succeed())

			recipients, err := st.UndeliveredRecipients(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(recipients).To(ContainElement(email))

			records, err := st.AlertsForRecipient(ctx, email)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))

			Expect(st.MarkNotified(ctx, records)).To(Succeed())

			records, err = st.AlertsForRecipient(ctx, email)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())

			recipients, err = st.UndeliveredRecipients(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(recipients).NotTo(ContainElement(email))
		})
	})

	Describe("Retention sweep", func() {
		It("should clear an expired alert chain end to end", func() {
			locID := newLocation(ctx, "Staithes")
			stale := time.Now().UTC().Add(-2 * time.Hour)
			reportID := newReport(ctx, locID, stale)
			forecast := baseForecast(locID, reportID, stale)
			forecastID, err := st.UpsertForecast(ctx, forecast)
			Expect(err).NotTo(HaveOccurred())
			alertID, err := st.InsertAlertIfAbsent(ctx, forecastID, classify.IceAlert, classify.Alert)
			Expect(err).NotTo(HaveOccurred())

			sweeper, err := sweep.NewSweeper(&sweep.SweeperConfig{
				Logger: testLogger,
				Store:  st,
				Clock:  clockwork.NewFakeClockAt(time.Now().UTC()),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(sweeper.Sweep(ctx)).To(Succeed())

			Expect(db.First(&store.WeatherAlert{}, alertID).Error).To(HaveOccurred())
			Expect(db.First(&store.Forecast{}, forecastID).Error).To(HaveOccurred())
			Expect(db.First(&store.WeatherReport{}, reportID).Error).To(HaveOccurred())
			Expect(db.First(&store.Location{}, locID).Error).To(Succeed())
		})
	})
})
