package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lotradar/server/internal/models"
)

// offersAt builds sale offers with area 1 so price per sqm equals the raw value.
func offersAt(values ...float64) []models.Offer {
	offers := make([]models.Offer, 0, len(values))
	for _, v := range values {
		offers = append(offers, models.Offer{
			Address: "г. Москва, тестовый адрес",
			Area:    1,
			Price:   v,
			Type:    models.OfferTypeSale,
		})
	}
	return offers
}

func TestEstimateEmptySample(t *testing.T) {
	price, count := Estimate(nil, 0)
	assert.Zero(t, price)
	assert.Zero(t, count)
}

func TestEstimateSmallSampleUsesPlainMedian(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"single value", []float64{12000}, 12000},
		{"two values average", []float64{10000, 14000}, 12000},
		{"two values with outlier kept", []float64{10000, 90000}, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, count := Estimate(offersAt(tt.values...), 0)
			assert.InDelta(t, tt.expected, price, 0.001)
			assert.Equal(t, len(tt.values), count)
		})
	}
}

func TestEstimateNoOutliersMatchesMedian(t *testing.T) {
	values := []float64{10000, 10200, 10400, 10600, 10800}

	price, count := Estimate(offersAt(values...), 0)

	assert.InDelta(t, 10400, price, 0.001)
	assert.Equal(t, len(values), count)
}

func TestEstimateRejectsHighOutlier(t *testing.T) {
	values := []float64{10000, 10500, 11000, 95000}

	price, count := Estimate(offersAt(values...), 0)

	assert.InDelta(t, 10500, price, 0.001)
	assert.Equal(t, 3, count)
}

func TestEstimateCliffKeepsClusterNearSubject(t *testing.T) {
	values := []float64{8000, 8200, 8500, 40000, 42000}

	price, count := Estimate(offersAt(values...), 8300)

	assert.InDelta(t, 8200, price, 0.001)
	assert.Equal(t, 3, count)
}

func TestEstimateCliffPrefersUpperClusterWhenSubjectIsHigh(t *testing.T) {
	values := []float64{8000, 8200, 8500, 40000, 42000}

	price, count := Estimate(offersAt(values...), 39000)

	assert.InDelta(t, 41000, price, 0.001)
	assert.Equal(t, 2, count)
}

func TestEstimateCliffWithoutSubjectKeepsFullSample(t *testing.T) {
	values := []float64{8000, 8200, 8500, 40000, 42000}

	price, count := Estimate(offersAt(values...), 0)

	assert.InDelta(t, 8500, price, 0.001)
	assert.Equal(t, 5, count)
}

func TestEstimateSkipsInvalidOffers(t *testing.T) {
	offers := offersAt(10000, 10200, 10400)
	offers = append(offers,
		models.Offer{Address: "без площади", Area: 0, Price: 5000, Type: models.OfferTypeSale},
		models.Offer{Address: "без цены", Area: 50, Price: 0, Type: models.OfferTypeSale},
	)

	price, count := Estimate(offers, 0)

	assert.InDelta(t, 10200, price, 0.001)
	assert.Equal(t, 3, count)
}

func TestRentMedianUntrimmed(t *testing.T) {
	// The rent side deliberately keeps outliers.
	values := []float64{1000, 1100, 1200, 9000}

	price, count := RentMedian(offersAt(values...))

	assert.InDelta(t, 1150, price, 0.001)
	assert.Equal(t, 4, count)
}

func TestQuantileInterpolates(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}

	assert.InDelta(t, 17.5, quantile(sorted, 0.25), 0.001)
	assert.InDelta(t, 32.5, quantile(sorted, 0.75), 0.001)
	assert.InDelta(t, 25, quantile(sorted, 0.5), 0.001)
}
