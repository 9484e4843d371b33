package market

import (
	"math"
	"math/rand"
	"time"

	"github.com/autoassist/car-buying-assistant/internal/models"
)

// Estimator produces a market analysis for a car. The handler layer
// only depends on this interface so the workflow core stays
// deterministic in tests.
type Estimator interface {
	Estimate(car models.CarDetails) (*models.MarketAnalysis, error)
}

var comparableSources = []string{
	"AutoTrader",
	"Cars.com",
	"CarGurus",
	"Craigslist",
	"Facebook Marketplace",
}

var comparableLocations = []string{
	"Austin, TX",
	"Denver, CO",
	"Portland, OR",
	"Atlanta, GA",
	"Columbus, OH",
	"Phoenix, AZ",
	"Raleigh, NC",
	"Sacramento, CA",
}

// MockEstimator stands in for a real market-data integration. Values
// are pseudo-random around the asking price.
type MockEstimator struct {
	rng *rand.Rand
}

// NewMockEstimator creates a mock estimator seeded from the clock.
func NewMockEstimator() *MockEstimator {
	return &MockEstimator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Estimate returns a pseudo-random market analysis. The estimated value
// lands within ±15% of the asking price; the deal score reflects how the
// asking price compares to that estimate.
func (m *MockEstimator) Estimate(car models.CarDetails) (*models.MarketAnalysis, error) {
	base := car.Price
	if base <= 0 {
		// No asking price to anchor on; synthesize one from age and mileage.
		age := time.Now().Year() - car.Year
		base = math.Max(1500, 32000-float64(age)*1800-float64(car.Mileage)*0.04)
	}

	estimated := math.Round(base * (0.85 + m.rng.Float64()*0.3))
	priceVsMarket := 0.0
	if estimated > 0 {
		priceVsMarket = math.Round((car.Price - estimated) / estimated * 100)
	}

	score := 50 - int(priceVsMarket) + m.rng.Intn(21) - 10
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	n := 3 + m.rng.Intn(3)
	comparables := make([]models.Comparable, 0, n)
	for i := 0; i < n; i++ {
		comparables = append(comparables, models.Comparable{
			Source:   comparableSources[m.rng.Intn(len(comparableSources))],
			Price:    math.Round(estimated * (0.9 + m.rng.Float64()*0.2)),
			Mileage:  int(float64(car.Mileage) * (0.8 + m.rng.Float64()*0.4)),
			Location: comparableLocations[m.rng.Intn(len(comparableLocations))],
		})
	}

	return &models.MarketAnalysis{
		EstimatedValue: estimated,
		PriceVsMarket:  priceVsMarket,
		DealScore:      score,
		Comparables:    comparables,
	}, nil
}
