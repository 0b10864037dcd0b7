package seasonal

import (
	"testing"

	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

var testCategory = domain.Category{Sex: "female", AgeGroup: "75-84"}

// monthlySeries builds n consecutive months starting at (year, month) with
// counts produced by value(i).
func monthlySeries(year, month, n int, value func(i int) float64) []domain.PeriodObservation {
	seq := make([]domain.PeriodObservation, n)
	for i := range seq {
		seq[i] = domain.PeriodObservation{
			Year:          year,
			Month:         month,
			Category:      testCategory,
			WeightedCount: value(i),
		}
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	return seq
}

func constant(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

func TestEstimate_WindowSums(t *testing.T) {
	seq := monthlySeries(1993, 1, 20, func(i int) float64 { return float64(i + 1) })

	out := Estimate(seq)
	require.Len(t, out, 20)

	for i := WindowBefore; i <= 20-1-WindowAfter; i++ {
		require.NotNil(t, out[i].MovingTotal, "index %d", i)
		// sum of (j+1) for j in [i-5, i+6] = 12(i+1) + 6
		assert.InDelta(t, float64(12*(i+1)+6), *out[i].MovingTotal, tolerance, "index %d", i)
	}
	assert.InDelta(t, 78.0, *out[5].MovingTotal, tolerance)
	assert.InDelta(t, 174.0, *out[13].MovingTotal, tolerance)
}

func TestEstimate_BoundaryUndefined(t *testing.T) {
	for _, n := range []int{12, 13, 24} {
		t.Run("", func(t *testing.T) {
			out := Estimate(monthlySeries(1990, 1, n, constant(50)))
			require.Len(t, out, n)

			for i, v := range out {
				defined := i >= 5 && i <= n-7
				assert.Equal(t, defined, v.MovingTotal != nil, "n=%d index %d moving total", n, i)
				assert.Equal(t, defined, v.ExpectedCount != nil, "n=%d index %d expected", n, i)
				assert.Equal(t, defined, v.Defined(), "n=%d index %d variation", n, i)
			}
		})
	}
}

func TestEstimate_ShortSeriesAllUndefined(t *testing.T) {
	for _, n := range []int{0, 1, 11} {
		out := Estimate(monthlySeries(1990, 1, n, constant(10)))
		require.Len(t, out, n)
		for _, v := range out {
			assert.Nil(t, v.MovingTotal)
			assert.Nil(t, v.ExpectedCount)
			assert.Nil(t, v.Variation)
		}
	}
}

func TestEstimate_LeapFebruary(t *testing.T) {
	// Index 5 is February when the series starts in September.
	leap := Estimate(monthlySeries(1995, 9, 12, constant(100)))
	common := Estimate(monthlySeries(1994, 9, 12, constant(100)))

	require.Equal(t, 2, leap[5].Month)
	require.Equal(t, 1996, leap[5].Year)
	require.Equal(t, 2, common[5].Month)
	require.Equal(t, 1995, common[5].Year)

	assert.InDelta(t, 1200.0, *leap[5].MovingTotal, tolerance)
	assert.InDelta(t, 1200.0, *common[5].MovingTotal, tolerance)
	assert.InDelta(t, 1200.0*29/366, *leap[5].ExpectedCount, tolerance)
	assert.InDelta(t, 1200.0*28/365, *common[5].ExpectedCount, tolerance)

	assert.InDelta(t, 0.07923, *leap[5].ExpectedCount/1200, 1e-5)
	assert.InDelta(t, 0.07671, *common[5].ExpectedCount/1200, 1e-5)
}

func TestEstimateWithRule_LegacyLeapYears(t *testing.T) {
	// February 1988 is a Gregorian leap month but a common month in the
	// vignettes' hardcoded list.
	seq := monthlySeries(1987, 9, 12, constant(100))

	gregorian := EstimateWithRule(seq, IsLeapYear)
	legacy := EstimateWithRule(seq, LegacyLeapYear)

	assert.InDelta(t, 1200.0*29/366, *gregorian[5].ExpectedCount, tolerance)
	assert.InDelta(t, 1200.0*28/365, *legacy[5].ExpectedCount, tolerance)
}

func TestVariation(t *testing.T) {
	v, ok := Variation(42.5, 42.5)
	require.True(t, ok)
	assert.InDelta(t, 0.0, v, tolerance)

	v, ok = Variation(85, 42.5)
	require.True(t, ok)
	assert.InDelta(t, 100.0, v, tolerance)

	v, ok = Variation(0, 42.5)
	require.True(t, ok)
	assert.InDelta(t, -100.0, v, tolerance)

	_, ok = Variation(10, 0)
	assert.False(t, ok)
}

func TestEstimate_ZeroWindowIsUndefined(t *testing.T) {
	out := Estimate(monthlySeries(1990, 1, 14, constant(0)))

	for i := 5; i <= 7; i++ {
		require.NotNil(t, out[i].MovingTotal)
		require.NotNil(t, out[i].ExpectedCount)
		assert.Zero(t, *out[i].MovingTotal)
		assert.Zero(t, *out[i].ExpectedCount)
		assert.Nil(t, out[i].Variation, "index %d", i)
	}
}

func TestEstimate_ConstantSeriesScenario(t *testing.T) {
	// September 1994 through January 1996; defined periods are February to July 1995.
	seq := monthlySeries(1994, 9, 17, constant(120))
	out := Estimate(seq)

	for i := 5; i <= 10; i++ {
		v := out[i]
		require.True(t, v.Defined(), "index %d", i)
		assert.Equal(t, 1995, v.Year)

		days := DaysInMonth(v.Year, v.Month, IsLeapYear)
		expected := 1440 * float64(days) / 365

		assert.InDelta(t, 1440.0, *v.MovingTotal, tolerance)
		assert.InDelta(t, expected, *v.ExpectedCount, tolerance)
		assert.InDelta(t, 120/expected*100-100, *v.Variation, tolerance)

		switch days {
		case 28:
			assert.Positive(t, *v.Variation, "short month %d", v.Month)
		case 31:
			assert.Negative(t, *v.Variation, "long month %d", v.Month)
		}
	}
	assert.Equal(t, 2, out[5].Month)
	assert.Equal(t, 3, out[6].Month)
}

func TestEstimate_LinearTrendDoesNotLeak(t *testing.T) {
	seq := monthlySeries(1993, 1, 30, func(i int) float64 { return 1000 + 10*float64(i) })
	out := Estimate(seq)

	// June 1993 and June 1994: raw counts differ by 12%, variation does not.
	june93, june94 := out[5], out[17]
	require.Equal(t, 6, june93.Month)
	require.Equal(t, 6, june94.Month)
	assert.Greater(t, june94.WeightedCount/june93.WeightedCount, 1.1)
	assert.InDelta(t, *june93.Variation, *june94.Variation, 0.05)
}

func TestEstimate_PreservesInputAndOrder(t *testing.T) {
	seq := monthlySeries(1990, 1, 14, func(i int) float64 { return float64(i * i) })
	before := append([]domain.PeriodObservation(nil), seq...)

	out := Estimate(seq)

	assert.Equal(t, before, seq, "input must not be mutated")
	for i := range seq {
		assert.Equal(t, seq[i], out[i].PeriodObservation)
	}
}

func TestEstimateAll(t *testing.T) {
	male := domain.Category{Sex: "male"}
	female := domain.Category{Sex: "female"}

	series := []domain.Series{
		{Category: male, Observations: monthlySeries(1990, 1, 14, constant(30))},
		{Category: female, Observations: monthlySeries(1991, 3, 20, func(i int) float64 { return float64(i) })},
		{Category: domain.Category{Sex: "unknown"}},
	}

	for _, workers := range []int{0, 1, 2, 8} {
		got := EstimateAll(series, IsLeapYear, workers)

		want := append(
			EstimateWithRule(series[0].Observations, IsLeapYear),
			EstimateWithRule(series[1].Observations, IsLeapYear)...,
		)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("workers=%d mismatch (-want +got):\n%s", workers, diff)
		}
	}

	assert.Empty(t, EstimateAll(nil, IsLeapYear, 4))
}
