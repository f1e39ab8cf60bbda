package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/econolens/econolens/backend/internal/metrics"
	"github.com/econolens/econolens/backend/internal/models"
)

func series(points ...models.Point) models.TimeSeries {
	return models.TimeSeries(points)
}

func TestTrendWindows(t *testing.T) {
	s := series(
		models.Point{Year: 2018, Value: 1},
		models.Point{Year: 2019, Value: 2},
		models.Point{Year: 2020, Value: 3},
		models.Point{Year: 2021, Value: 4},
		models.Point{Year: 2022, Value: 5},
		models.Point{Year: 2023, Value: 6},
	)

	got := metrics.Trend(s, 5)
	require.Len(t, got, 5)
	require.Equal(t, 2019, got[0].Year)
	require.Equal(t, 2023, got[4].Year)
}

func TestTrendShortSeriesReturnedAsIs(t *testing.T) {
	s := series(models.Point{Year: 2022, Value: 10}, models.Point{Year: 2023, Value: 11})
	require.Equal(t, s, metrics.Trend(s, 5))
	require.Empty(t, metrics.Trend(nil, 5))
}

func TestPercentageDiff(t *testing.T) {
	d := metrics.PercentageDiff(500, 450)
	require.NotNil(t, d)
	require.InDelta(t, 0.111, *d, 0.001)

	require.Nil(t, metrics.PercentageDiff(500, 0))

	d = metrics.PercentageDiff(400, 500)
	require.NotNil(t, d)
	require.InDelta(t, -0.2, *d, 1e-9)
}

func TestCoefficientOfVariation(t *testing.T) {
	cv, ok := metrics.CoefficientOfVariation([]float64{5, 5, 5})
	require.True(t, ok)
	require.Zero(t, cv)

	_, ok = metrics.CoefficientOfVariation(nil)
	require.False(t, ok)

	_, ok = metrics.CoefficientOfVariation([]float64{0, 0})
	require.False(t, ok)
}

func TestVolatilityLabels(t *testing.T) {
	th := metrics.DefaultThresholds()

	require.Equal(t, metrics.LabelStable, metrics.Volatility([]float64{480, 490, 495, 498, 500}, th))
	require.Equal(t, metrics.LabelVolatile, metrics.Volatility([]float64{100, 500, 90, 480, 20}, th))
	require.Equal(t, metrics.LabelInsufficient, metrics.Volatility(nil, th))
}

func TestVolatilityMonotonicInDispersion(t *testing.T) {
	th := metrics.DefaultThresholds()
	rank := map[metrics.Label]int{
		metrics.LabelStable:   0,
		metrics.LabelModerate: 1,
		metrics.LabelVolatile: 2,
	}

	// same mean, increasing spread
	sets := [][]float64{
		{100, 100, 100, 100},
		{95, 105, 95, 105},
		{80, 120, 80, 120},
		{20, 180, 20, 180},
	}

	prev := -1
	for _, values := range sets {
		label := metrics.Volatility(values, th)
		require.GreaterOrEqual(t, rank[label], prev, "values %v", values)
		prev = rank[label]
	}
}

// The 2020-2024 GDP-style scenario: low dispersion, baseline 450.
func TestRepresentativeScenario(t *testing.T) {
	s := series(
		models.Point{Year: 2020, Value: 480},
		models.Point{Year: 2021, Value: 490},
		models.Point{Year: 2022, Value: 495},
		models.Point{Year: 2023, Value: 498},
		models.Point{Year: 2024, Value: 500},
	)

	trend := metrics.Trend(s, metrics.DefaultTrendWindow)
	require.Len(t, trend, 5)

	current, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, 500.0, current.Value)

	diff := metrics.PercentageDiff(current.Value, 450)
	require.NotNil(t, diff)
	require.InDelta(t, 0.111, *diff, 0.001)

	require.Equal(t, metrics.LabelStable, metrics.Volatility(trend.Values(), metrics.DefaultThresholds()))
}
