// Package estimator computes a representative price per square meter from a
// set of comparable offers.
//
// The algorithm is a heuristic, not a statistically optimal estimator:
// quartile-based outlier rejection followed by a gap-detection pass that
// splits the sample when it mixes two disjoint price clusters (land vs.
// building, stale vs. current listings). Downstream metrics and historical
// comparisons depend on the exact constants below; do not tune them quietly.
package estimator

import (
	"math"
	"sort"

	"lotradar/server/internal/models"
)

const (
	// minSamplesForTrimming: below this the sample is too small to trust
	// any outlier rejection and the plain median is returned.
	minSamplesForTrimming = 3

	// iqrMultiplier defines the Tukey fences [Q1-1.5*IQR, Q3+1.5*IQR].
	iqrMultiplier = 1.5

	// cliffRatio is the adjacent-value ratio that marks two disjoint
	// price clusters in the sorted sample.
	cliffRatio = 3.0
)

// Estimate returns the representative price per area for a comparable set.
// subjectPricePerSqm is the lot's own current price per area; it breaks the
// tie when the sample splits into two clusters (pass 0 to disable cluster
// preference). The returned count is the number of samples that survived
// filtering; count 0 means no valid comparables.
func Estimate(comparables []models.Offer, subjectPricePerSqm float64) (price float64, count int) {
	values := pricesPerSqm(comparables)
	if len(values) == 0 {
		return 0, 0
	}
	sort.Float64s(values)

	if len(values) < minSamplesForTrimming {
		return median(values), len(values)
	}

	filtered := rejectOutliers(values)
	if len(filtered) >= 2 {
		filtered = splitAtCliff(filtered, subjectPricePerSqm)
	}

	return median(filtered), len(filtered)
}

// RentMedian is the rent-side estimate: the plain median price per area.
// Unlike the sale side it applies no IQR or cliff trimming. The asymmetry is
// deliberate: historical output was produced this way and downstream
// comparisons depend on it.
func RentMedian(comparables []models.Offer) (price float64, count int) {
	values := pricesPerSqm(comparables)
	if len(values) == 0 {
		return 0, 0
	}
	sort.Float64s(values)
	return median(values), len(values)
}

func pricesPerSqm(comparables []models.Offer) []float64 {
	values := make([]float64, 0, len(comparables))
	for i := range comparables {
		if comparables[i].Valid() {
			values = append(values, comparables[i].PricePerSqm())
		}
	}
	return values
}

// rejectOutliers drops values outside the Tukey fences. The lower bound is
// clamped at zero: prices are never negative.
func rejectOutliers(sorted []float64) []float64 {
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1

	lower := math.Max(0, q1-iqrMultiplier*iqr)
	upper := q3 + iqrMultiplier*iqr

	kept := make([]float64, 0, len(sorted))
	for _, v := range sorted {
		if v >= lower && v <= upper {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		// Degenerate distribution; fall back to the untrimmed sample.
		return sorted
	}
	return kept
}

// splitAtCliff scans adjacent ratios in the sorted sample. A jump above
// cliffRatio means the sample mixes two market segments; keep the cluster
// whose mean is closer to the subject's own price per area. When the subject
// price is unknown or either cluster is degenerate the original sample wins.
func splitAtCliff(sorted []float64, subjectPricePerSqm float64) []float64 {
	maxRatio := 0.0
	splitAt := -1
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1] <= 0 {
			continue
		}
		ratio := sorted[i] / sorted[i-1]
		if ratio > maxRatio {
			maxRatio = ratio
			splitAt = i
		}
	}

	if maxRatio <= cliffRatio || splitAt <= 0 {
		return sorted
	}

	low := sorted[:splitAt]
	high := sorted[splitAt:]
	if subjectPricePerSqm <= 0 || len(low) == 0 || len(high) == 0 {
		return sorted
	}

	lowDist := math.Abs(mean(low) - subjectPricePerSqm)
	highDist := math.Abs(mean(high) - subjectPricePerSqm)
	chosen := high
	if lowDist <= highDist {
		chosen = low
	}
	// A single surviving value is not a cluster; keep the full sample.
	if len(chosen) < 2 {
		return sorted
	}
	return chosen
}

// quantile uses linear interpolation between the closest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
