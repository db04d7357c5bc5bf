package seed_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"skycast.dev/weather-alerts/internal/ingest"
	"skycast.dev/weather-alerts/internal/seed"
	"skycast.dev/weather-alerts/pkg/mq/mock"
)

var _ = Describe("Seeder", func() {
	var (
		forecastClient *mock.MockClient
		floodClient    *mock.MockClient
		seeder         *seed.Seeder
	)

	BeforeEach(func() {
		forecastClient = mock.NewMockClient()
		floodClient = mock.NewMockClient()
		seeder = seed.NewSeeder(forecastClient, floodClient)
	})

	Describe("NewSeeder", func() {
		It("should generate between two and five sites", func() {
			Expect(len(seeder.Sites)).To(BeNumerically(">=", 2))
			Expect(len(seeder.Sites)).To(BeNumerically("<=", 5))
		})

		It("should keep the provided clients", func() {
			Expect(seeder.ForecastMQClient).To(BeIdenticalTo(forecastClient))
			Expect(seeder.FloodMQClient).To(BeIdenticalTo(floodClient))
		})

		It("should give each seeder its own sites", func() {
			other := seed.NewSeeder(mock.NewMockClient(), mock.NewMockClient())

			same := len(seeder.Sites) == len(other.Sites)
			if same {
				for i := range seeder.Sites {
					if seeder.Sites[i].Latitude != other.Sites[i].Latitude {
						same = false
						break
					}
				}
			}
			Expect(same).To(BeFalse())
		})
	})

	Describe("PublishForecastBatch", func() {
		It("should publish one decodable batch", func() {
			err := seeder.PublishForecastBatch(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(forecastClient.PushCalls).To(HaveLen(1))

			batch, err := ingest.DecodeForecastBatch(forecastClient.PushCalls[0].Data)
			Expect(err).NotTo(HaveOccurred())
			Expect(batch.Forecasts).To(HaveLen(24))
		})

		It("should publish for one of its own sites", func() {
			Expect(seeder.PublishForecastBatch(context.Background())).To(Succeed())

			batch, err := ingest.DecodeForecastBatch(forecastClient.PushCalls[0].Data)
			Expect(err).NotTo(HaveOccurred())

			coords := make([][2]float64, 0, len(seeder.Sites))
			for _, site := range seeder.Sites {
				coords = append(coords, [2]float64{site.Latitude, site.Longitude})
			}
			Expect(coords).To(ContainElement([2]float64{batch.Latitude, batch.Longitude}))
		})

		It("should propagate push failures", func() {
			forecastClient.PushError = errors.New("broker unavailable")

			err := seeder.PublishForecastBatch(context.Background())
			Expect(err).To(MatchError("broker unavailable"))
		})

		It("should pass the caller's context through", func() {
			ctx := context.Background()
			Expect(seeder.PublishForecastBatch(ctx)).To(Succeed())
			Expect(forecastClient.PushCalls[0].Ctx).To(Equal(ctx))
		})
	})

	Describe("PublishFloodBatch", func() {
		It("should raise a warning on some cycles and keep it decodable", func() {
			// Warnings are raised on roughly a fifth of cycles, so a run of
			// this length publishes at least once outside of astronomical luck.
			for i := 0; i < 200; i++ {
				Expect(seeder.PublishFloodBatch(context.Background())).To(Succeed())
			}

			Expect(len(floodClient.PushCalls)).To(BeNumerically(">", 0))
			Expect(len(floodClient.PushCalls)).To(BeNumerically("<", 200))

			for _, call := range floodClient.PushCalls {
				batch, err := ingest.DecodeFloodBatch(call.Data)
				Expect(err).NotTo(HaveOccurred())
				Expect(batch.Severity).To(BeNumerically(">=", 1))
				Expect(batch.Severity).To(BeNumerically("<=", 3))
			}
		})

		It("should propagate push failures on cycles that publish", func() {
			floodClient.PushError = errors.New("broker unavailable")

			sawError := false
			for i := 0; i < 200 && !sawError; i++ {
				if err := seeder.PublishFloodBatch(context.Background()); err != nil {
					Expect(err).To(MatchError("broker unavailable"))
					sawError = true
				}
			}
			Expect(sawError).To(BeTrue())
		})
	})
})
