package sweep_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"skycast.dev/weather-alerts/internal/classify"
	"skycast.dev/weather-alerts/internal/store"
	"skycast.dev/weather-alerts/internal/sweep"
)

var _ = Describe("Sweeper", func() {
	var (
		db      *gorm.DB
		st      *store.Store
		clock   *clockwork.FakeClock
		sweeper *sweep.Sweeper
		logger  *slog.Logger
		ctx     context.Context

		locID uint
		now   time.Time
	)

	seedLocation := func() uint {
		country := store.Country{Name: "United Kingdom"}
		Expect(db.Create(&country).Error).To(Succeed())
		county := store.County{Name: "North Yorkshire", CountryID: country.ID}
		Expect(db.Create(&county).Error).To(Succeed())
		loc := store.Location{Name: "York", Latitude: 53.96, Longitude: -1.08, CountyID: county.ID}
		Expect(db.Create(&loc).Error).To(Succeed())
		return loc.ID
	}

	seedForecast := func(at time.Time) (uint, uint) {
		report := store.WeatherReport{LocationID: locID, CapturedAt: at}
		Expect(db.Create(&report).Error).To(Succeed())
		f := store.Forecast{
			LocationID:      locID,
			WeatherReportID: report.ID,
			ForecastAt:      at,
			Temperature:     18,
			Visibility:      40000,
		}
		Expect(db.Create(&f).Error).To(Succeed())
		return report.ID, f.ID
	}

	BeforeEach(func() {
		var err error
		db, err = store.Open(sqlite.Open(":memory:"))
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Migrate(db)).To(Succeed())

		st = store.New(db)
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		ctx = context.Background()

		now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		clock = clockwork.NewFakeClockAt(now)

		sweeper, err = sweep.NewSweeper(&sweep.SweeperConfig{
			Logger: logger,
			Store:  st,
			Clock:  clock,
		})
		Expect(err).NotTo(HaveOccurred())

		locID = seedLocation()
	})

	Describe("NewSweeper", func() {
		It("rejects a nil config", func() {
			_, err := sweep.NewSweeper(nil)
			Expect(err).To(HaveOccurred())
		})

		It("rejects a missing store", func() {
			_, err := sweep.NewSweeper(&sweep.SweeperConfig{Logger: logger})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Sweep", func() {
		It("clears an expired alert chain end to end", func() {
			// Everything an hour in the past: alert, forecast, report
			_, fcID := seedForecast(now.Add(-time.Hour))
			Expect(db.Create(&store.WeatherAlert{
				ForecastID: fcID,
				AlertType:  classify.HeatAlert,
				Severity:   classify.Warning,
				Notified:   true,
			}).Error).To(Succeed())

			Expect(sweeper.Sweep(ctx)).To(Succeed())

			for model, want := range map[string]interface{}{
				"alerts":    &store.WeatherAlert{},
				"forecasts": &store.Forecast{},
				"reports":   &store.WeatherReport{},
			} {
				var count int64
				Expect(db.Model(want).Count(&count).Error).To(Succeed())
				Expect(count).To(BeZero(), "leftover %s", model)
			}
		})

		It("keeps a live alert chain intact", func() {
			_, fcID := seedForecast(now.Add(2 * time.Hour))
			Expect(db.Create(&store.WeatherAlert{
				ForecastID: fcID,
				AlertType:  classify.HeatAlert,
				Severity:   classify.Warning,
			}).Error).To(Succeed())

			Expect(sweeper.Sweep(ctx)).To(Succeed())

			var alerts, forecasts, reports int64
			Expect(db.Model(&store.WeatherAlert{}).Count(&alerts).Error).To(Succeed())
			Expect(db.Model(&store.Forecast{}).Count(&forecasts).Error).To(Succeed())
			Expect(db.Model(&store.WeatherReport{}).Count(&reports).Error).To(Succeed())
			Expect(alerts).To(Equal(int64(1)))
			Expect(forecasts).To(Equal(int64(1)))
			Expect(reports).To(Equal(int64(1)))
		})

		It("keeps a stale forecast that still carries a pending alert", func() {
			// Past forecast with an un-notified alert: the alert goes (the
			// forecast time has passed) and then the forecast follows, but
			// only in this order within one pass.
			_, fcID := seedForecast(now.Add(-time.Hour))
			Expect(db.Create(&store.WeatherAlert{
				ForecastID: fcID,
				AlertType:  classify.HeatAlert,
				Severity:   classify.Warning,
			}).Error).To(Succeed())

			Expect(sweeper.Sweep(ctx)).To(Succeed())

			var forecasts int64
			Expect(db.Model(&store.Forecast{}).Count(&forecasts).Error).To(Succeed())
			Expect(forecasts).To(BeZero())
		})

		It("respects the air quality window", func() {
			freshReport, _ := seedForecast(now.Add(-time.Hour))
			staleReport := store.WeatherReport{LocationID: locID, CapturedAt: now.Add(-48 * time.Hour)}
			Expect(db.Create(&staleReport).Error).To(Succeed())

			Expect(db.Create(&store.AirQualityReading{WeatherReportID: freshReport, O3Concentration: 120, Severity: classify.Alert}).Error).To(Succeed())
			Expect(db.Create(&store.AirQualityReading{WeatherReportID: staleReport.ID, O3Concentration: 120, Severity: classify.Alert}).Error).To(Succeed())

			Expect(sweeper.Sweep(ctx)).To(Succeed())

			var readings []store.AirQualityReading
			Expect(db.Find(&readings).Error).To(Succeed())
			Expect(readings).To(HaveLen(1))
			Expect(readings[0].WeatherReportID).To(Equal(freshReport))
		})

		It("deletes flood warnings past the window regardless of notified", func() {
			Expect(db.Create(&store.FloodWarning{
				LocationID: locID,
				Severity:   classify.Warning,
				TimeRaised: now.Add(-8 * 24 * time.Hour),
				Notified:   false,
			}).Error).To(Succeed())
			Expect(db.Create(&store.FloodWarning{
				LocationID: locID,
				Severity:   classify.Warning,
				TimeRaised: now.Add(-day),
				Notified:   true,
			}).Error).To(Succeed())

			Expect(sweeper.Sweep(ctx)).To(Succeed())

			var warnings []store.FloodWarning
			Expect(db.Find(&warnings).Error).To(Succeed())
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0].Notified).To(BeTrue())
		})

		It("honors custom windows", func() {
			var err error
			sweeper, err = sweep.NewSweeper(&sweep.SweeperConfig{
				Logger:      logger,
				Store:       st,
				Clock:       clock,
				FloodWindow: time.Hour,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(db.Create(&store.FloodWarning{
				LocationID: locID,
				Severity:   classify.Warning,
				TimeRaised: now.Add(-2 * time.Hour),
			}).Error).To(Succeed())

			Expect(sweeper.Sweep(ctx)).To(Succeed())

			var count int64
			Expect(db.Model(&store.FloodWarning{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})

		It("continues past a failing step", func() {
			// Dropping the alerts table makes the first step fail; the
			// flood step after it must still run.
			Expect(db.Create(&store.FloodWarning{
				LocationID: locID,
				Severity:   classify.Warning,
				TimeRaised: now.Add(-8 * 24 * time.Hour),
			}).Error).To(Succeed())
			Expect(db.Migrator().DropTable(&store.WeatherAlert{})).To(Succeed())

			Expect(sweeper.Sweep(ctx)).To(HaveOccurred())

			var count int64
			Expect(db.Model(&store.FloodWarning{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})

		It("runs back to back passes", func() {
			Expect(sweeper.Sweep(ctx)).To(Succeed())
			Expect(sweeper.Sweep(ctx)).To(Succeed())
		})
	})
})

const day = 24 * time.Hour
