// Package valuation derives the financial metric set and qualitative status
// for an auction lot from its comparable set.
package valuation

import (
	"github.com/sirupsen/logrus"

	"lotradar/server/internal/estimator"
	"lotradar/server/internal/models"
)

// Estimator produces the representative sale price per square meter for a
// comparable sample. The count reports how many samples survived filtering;
// zero means no usable data.
type Estimator interface {
	Estimate(comparables []models.Offer, subjectPricePerSqm float64) (price float64, count int)
}

// EstimatorFunc adapts a plain function to the Estimator interface.
type EstimatorFunc func([]models.Offer, float64) (float64, int)

func (f EstimatorFunc) Estimate(comparables []models.Offer, subjectPricePerSqm float64) (float64, int) {
	return f(comparables, subjectPricePerSqm)
}

// Thresholds are the tunables of the plus-signal scoring. Zero values are
// replaced by defaults; see DefaultThresholds.
type Thresholds struct {
	// MinYieldPercent is the annual yield (in percent) required for the
	// rent-side plus signal.
	MinYieldPercent float64 `yaml:"min_yield_percent" env:"MIN_YIELD_PERCENT"`

	// RentFallbackMonthlyRate estimates monthly rent as a fraction of
	// market value when no rent comparables exist (0.7% rule of thumb).
	RentFallbackMonthlyRate float64 `yaml:"rent_fallback_monthly_rate" env:"RENT_FALLBACK_MONTHLY_RATE"`

	// LegacyMinCapPercent is used only by the notification safety net.
	LegacyMinCapPercent float64 `yaml:"legacy_min_cap_percent" env:"LEGACY_MIN_CAP_PERCENT"`
}

// DefaultThresholds returns the scoring constants the historical data was
// produced with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinYieldPercent:         10,
		RentFallbackMonthlyRate: 0.007,
		LegacyMinCapPercent:     15,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.MinYieldPercent == 0 {
		t.MinYieldPercent = d.MinYieldPercent
	}
	if t.RentFallbackMonthlyRate == 0 {
		t.RentFallbackMonthlyRate = d.RentFallbackMonthlyRate
	}
	if t.LegacyMinCapPercent == 0 {
		t.LegacyMinCapPercent = d.LegacyMinCapPercent
	}
	return t
}

// Engine valuates lots. It is stateless per lot and safe to call from
// multiple goroutines.
type Engine struct {
	estimator  Estimator
	thresholds Thresholds
	logger     *logrus.Logger
}

func NewEngine(est Estimator, thresholds Thresholds, logger *logrus.Logger) *Engine {
	if est == nil {
		est = EstimatorFunc(estimator.Estimate)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		estimator:  est,
		thresholds: thresholds.withDefaults(),
		logger:     logger,
	}
}

// Valuate fills the lot's derived fields from the comparable set and returns
// the lot for chaining. Absence of comparables is not an error: the lot
// comes back complete with zero metrics, method "none" and status "discard".
// Calling Valuate twice with the same inputs yields the same result.
func (e *Engine) Valuate(lot *models.Lot, set models.ComparableSet) *models.Lot {
	e.resetDerived(lot)

	e.valuateSale(lot, set.Sale)
	e.valuateRent(lot, set.Rent)

	lot.PlusCount = 0
	if lot.PlusSale {
		lot.PlusCount++
	}
	if lot.PlusRental {
		lot.PlusCount++
	}
	lot.Status = models.StatusForPlusCount(lot.PlusCount)

	e.logger.WithFields(logrus.Fields{
		"notice":       lot.NoticeNumber,
		"district":     lot.District,
		"method":       lot.Method,
		"market_value": lot.MarketValue,
		"cap_percent":  lot.CapitalizationPercent,
		"yield":        lot.AnnualYieldPercent,
		"plus_count":   lot.PlusCount,
		"status":       lot.Status,
	}).Debug("Lot valuated")

	return lot
}

func (e *Engine) resetDerived(lot *models.Lot) {
	lot.MarketPricePerSqm = 0
	lot.MarketValue = 0
	lot.CapitalizationRub = 0
	lot.CapitalizationPercent = 0
	lot.MonthlyGap = 0
	lot.AnnualYieldPercent = 0
	lot.HasRentData = false
	lot.Method = models.MethodNone
	lot.PlusSale = false
	lot.PlusRental = false
	lot.PlusCount = 0
	lot.Status = models.StatusDiscard
}

func (e *Engine) valuateSale(lot *models.Lot, sale []models.Offer) {
	if len(sale) == 0 {
		return
	}

	price, count := e.estimator.Estimate(sale, lot.PricePerSqm())
	if count == 0 || price <= 0 {
		return
	}

	lot.Method = models.MethodSales
	lot.MarketPricePerSqm = price
	lot.MarketValue = price * lot.Area
	lot.CapitalizationRub = lot.MarketValue - lot.Price
	if lot.Price > 0 {
		lot.CapitalizationPercent = lot.CapitalizationRub / lot.Price * 100
	}
	lot.PlusSale = lot.CapitalizationPercent >= 0
}

func (e *Engine) valuateRent(lot *models.Lot, rent []models.Offer) {
	if len(rent) > 0 {
		// Rent side uses the untrimmed median. The sale side rejects
		// outliers and the rent side does not; the asymmetry is kept
		// on purpose to stay comparable with historical output.
		rentPerSqm, count := estimator.RentMedian(rent)
		if count > 0 && rentPerSqm > 0 {
			lot.HasRentData = true
			lot.MonthlyGap = rentPerSqm * lot.Area
		}
	}

	if !lot.HasRentData {
		// Rule-of-thumb fallback: monthly rent as a fixed share of the
		// estimated market value.
		lot.MonthlyGap = lot.MarketValue * e.thresholds.RentFallbackMonthlyRate
	}

	if lot.Price > 0 {
		lot.AnnualYieldPercent = lot.MonthlyGap * 12 / lot.Price * 100
	}
	lot.PlusRental = lot.AnnualYieldPercent >= e.thresholds.MinYieldPercent
}

// ShouldNotify reports whether the lot is worth surfacing to the
// notification sink. The plus-signal score is authoritative; the legacy
// yield/capitalization check runs only when the score says no, and a
// disagreement is logged so the safety net can eventually be retired.
func (e *Engine) ShouldNotify(lot *models.Lot) bool {
	if lot.PlusCount >= 1 {
		return true
	}

	legacy := lot.AnnualYieldPercent >= e.thresholds.MinYieldPercent ||
		lot.CapitalizationPercent >= e.thresholds.LegacyMinCapPercent
	if legacy {
		e.logger.WithFields(logrus.Fields{
			"notice":      lot.NoticeNumber,
			"yield":       lot.AnnualYieldPercent,
			"cap_percent": lot.CapitalizationPercent,
		}).Warn("Legacy notification check fired for a zero-plus lot")
	}
	return legacy
}
