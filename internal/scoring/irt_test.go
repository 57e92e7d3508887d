package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

func testSettings() EstimatorSettings {
	return ReferenceCalibration().Estimator
}

func TestCategoryProbability_SumsToOne(t *testing.T) {
	th := []float64{-2, -1.2, -0.4, 0.4, 1.2, 2}
	for _, theta := range []float64{-4, -1.5, 0, 0.3, 2.7, 4} {
		total := 0.0
		for c := 0; c < 7; c++ {
			p := CategoryProbability(GradedItem{Discrimination: 1.5, Thresholds: th, Category: c}, theta)
			assert.Greater(t, p, 0.0)
			total += p
		}
		assert.InDelta(t, 1.0, total, 1e-12, "theta=%v", theta)
	}
}

func TestLogDerivatives_MatchFiniteDifferences(t *testing.T) {
	it := GradedItem{Discrimination: 1.4, Thresholds: []float64{-1.5, -0.5, 0.5, 1.5}, Category: 3}
	const h = 1e-5
	for _, theta := range []float64{-2, 0, 0.8, 2.5} {
		lp0, g, hess := logDerivatives(it, theta)
		lpP, gP, _ := logDerivatives(it, theta+h)
		lpM, gM, _ := logDerivatives(it, theta-h)
		assert.InDelta(t, (lpP-lpM)/(2*h), g, 1e-6)
		assert.InDelta(t, (gP-gM)/(2*h), hess, 1e-5)
		assert.InDelta(t, math.Log(CategoryProbability(it, theta)), lp0, 1e-12)
	}
}

func TestEstimateTheta_NoItems(t *testing.T) {
	s := testSettings()
	e := EstimateTheta(nil, s, 0.7)
	assert.Equal(t, 0.0, e.Theta)
	assert.Equal(t, s.MaxStandardError, e.SE)
	assert.Equal(t, 0, e.Items)
}

func TestEstimateTheta_MonotoneInCategory(t *testing.T) {
	s := testSettings()
	base := []GradedItem{
		{Discrimination: 1.3, Thresholds: []float64{-2, -1.2, -0.4, 0.4, 1.2, 2}, Category: 3},
		{Discrimination: 1.5, Thresholds: []float64{-1.5, -0.5, 0.5, 1.5}, Category: 2},
	}
	prev := math.Inf(-1)
	for c := 0; c < 7; c++ {
		items := append([]GradedItem(nil), base...)
		items[0].Category = c
		e := EstimateTheta(items, s, 0)
		assert.GreaterOrEqual(t, e.Theta, prev, "category %d", c)
		prev = e.Theta
	}
}

func TestEstimateTheta_MLEBoundaries(t *testing.T) {
	s := testSettings()
	s.Method = MethodMLE
	th := []float64{-1.5, -0.5, 0.5, 1.5}
	top := []GradedItem{{Discrimination: 1.2, Thresholds: th, Category: 4}, {Discrimination: 1.2, Thresholds: th, Category: 4}}
	bottom := []GradedItem{{Discrimination: 1.2, Thresholds: th, Category: 0}}

	assert.Equal(t, ThetaMax, EstimateTheta(top, s, 0).Theta)
	assert.Equal(t, ThetaMin, EstimateTheta(bottom, s, 0).Theta)
	assert.LessOrEqual(t, EstimateTheta(top, s, 0).SE, s.MaxStandardError)
}

func TestEstimateTheta_PriorShiftsEstimate(t *testing.T) {
	s := testSettings()
	items := []GradedItem{{Discrimination: 1.0, Thresholds: []float64{-1.5, -0.5, 0.5, 1.5}, Category: 2}}
	neutral := EstimateTheta(items, s, 0)
	nudged := EstimateTheta(items, s, 0.5)
	assert.Greater(t, nudged.Theta, neutral.Theta)
}

func TestEstimateTheta_GridFallback(t *testing.T) {
	s := testSettings()
	items := []GradedItem{
		{Discrimination: 1.3, Thresholds: []float64{-2, -1.2, -0.4, 0.4, 1.2, 2}, Category: 5},
		{Discrimination: 1.6, Thresholds: []float64{-1.5, -0.5, 0.5, 1.5}, Category: 3},
	}
	newton := EstimateTheta(items, s, 0)
	require.False(t, newton.Fallback)

	s.MaxIterations = 1
	s.Tolerance = 1e-15
	grid := EstimateTheta(items, s, 0)
	assert.True(t, grid.Fallback)
	assert.InDelta(t, newton.Theta, grid.Theta, gridStep)
}

func TestScale_DisplayAndInterval(t *testing.T) {
	sc := Scale{Slope: 1}
	assert.InDelta(t, 50, sc.Display(0), 1e-12)
	assert.Greater(t, sc.Display(3), 90.0)
	assert.Equal(t, sc.Display(ThetaMax), sc.Display(10))
	assert.InDelta(t, 1.3, sc.Theta(sc.Display(1.3)), 1e-9)

	point, lo, hi := sc.Interval(0, 0.3, 0.95)
	assert.InDelta(t, 50, point, 1e-12)
	assert.InDelta(t, point-lo, hi-point, 1e-9)
	assert.InDelta(t, 1.959964*0.3*25, hi-point, 1e-4)

	_, lo, hi = sc.Interval(0, 4, 0.95)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 100.0, hi)
}

func TestPercentile(t *testing.T) {
	n := Norm{Mean: 0, SD: 1}
	assert.InDelta(t, 50, Percentile(0, n), 1e-12)
	assert.InDelta(t, 84.134, Percentile(1, n), 1e-3)
	assert.InDelta(t, 2.275, Percentile(-2, n), 1e-3)
	assert.InDelta(t, 50, Percentile(1, Norm{Mean: 1, SD: 2}), 1e-12)
}

func TestEstimateTraits_FacetThreshold(t *testing.T) {
	cal := ReferenceCalibration()
	var answers []domain.Answer
	for i := range cal.Items {
		it := &cal.Items[i]
		if it.Layer == domain.LayerPrimary {
			answers = append(answers, domain.Likert(it.ID, 2))
		}
	}
	set, err := Normalize(t.Context(), cal, "core", answers)
	require.NoError(t, err)
	prof := EstimateTraits(cal, set)
	require.Len(t, prof.Facets, 5)
	for _, tr := range domain.Traits {
		assert.Len(t, prof.Facets[tr], 4)
	}

	// Only three items per facet: below the four-item minimum.
	set.Evidence = set.Evidence[:60]
	prof = EstimateTraits(cal, set)
	assert.Nil(t, prof.Facets)
}
