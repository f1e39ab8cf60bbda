// Package metrics derives trend, baseline comparison, and volatility
// classification from normalized time series. Everything here is pure and
// total: malformed input yields an explicit insufficient-data result.
package metrics

import (
	"math"

	"github.com/econolens/econolens/backend/internal/models"
)

// Label classifies a series' dispersion.
type Label string

const (
	LabelStable       Label = "Stable"
	LabelModerate     Label = "Moderate"
	LabelVolatile     Label = "Volatile"
	LabelInsufficient Label = "Insufficient Data"
)

// Volatility classification contract: series whose coefficient of variation
// is below StableBelow are Stable, below ModerateBelow are Moderate,
// everything above is Volatile.
const (
	DefaultStableBelow   = 0.10
	DefaultModerateBelow = 0.25

	// DefaultTrendWindow is how many trailing periods feed the trend and
	// volatility computations.
	DefaultTrendWindow = 5
)

// Thresholds are the two cut points of the volatility classification.
type Thresholds struct {
	StableBelow   float64
	ModerateBelow float64
}

// DefaultThresholds returns the standard classification cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{StableBelow: DefaultStableBelow, ModerateBelow: DefaultModerateBelow}
}

// Trend windows a series to its most recent n periods. Shorter series are
// returned as-is, never padded and never an error.
func Trend(series models.TimeSeries, n int) models.TimeSeries {
	if n <= 0 || len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}

// PercentageDiff computes (current - baseline) / baseline. The result is
// nil when the baseline is zero: the comparison is undefined, not 0.
func PercentageDiff(current, baseline float64) *float64 {
	if baseline == 0 {
		return nil
	}
	d := (current - baseline) / baseline
	return &d
}

// CoefficientOfVariation returns population standard deviation divided by
// the mean of absolute values. False when the series is empty or the mean
// of absolute values is zero.
func CoefficientOfVariation(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	var sum, absSum float64
	for _, v := range values {
		sum += v
		absSum += math.Abs(v)
	}
	mean := sum / float64(len(values))
	absMean := absSum / float64(len(values))
	if absMean == 0 {
		return 0, false
	}

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return math.Sqrt(variance) / absMean, true
}

// Volatility maps a series' dispersion to a label. Monotonic in the
// coefficient of variation for fixed thresholds.
func Volatility(values []float64, th Thresholds) Label {
	cv, ok := CoefficientOfVariation(values)
	if !ok {
		return LabelInsufficient
	}
	switch {
	case cv < th.StableBelow:
		return LabelStable
	case cv < th.ModerateBelow:
		return LabelModerate
	default:
		return LabelVolatile
	}
}
