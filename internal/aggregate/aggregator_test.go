package aggregate

import (
	"context"
	"sync"
	"testing"

	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(sex, group string, year, month int, weight float64) domain.DeathRecord {
	return domain.DeathRecord{
		Sex:        sex,
		AgeGroup:   group,
		DeathYear:  year,
		DeathMonth: month,
		Weight:     weight,
	}
}

func TestAggregator_SeriesByStrata(t *testing.T) {
	agg := New()
	agg.Add(
		record("female", "75-84", 1995, 1, 1.5),
		record("female", "75-84", 1995, 1, 2.0),
		record("male", "75-84", 1995, 1, 1.0),
		record("male", "85+", 1995, 2, 4.0),
	)

	t.Run("sex_age_group", func(t *testing.T) {
		series := agg.Series(domain.StrataSexAgeGroup)
		require.Len(t, series, 3)

		assert.Equal(t, "sex=female|age_group=75-84", series[0].Category.Key())
		require.Len(t, series[0].Observations, 1)
		assert.InDelta(t, 3.5, series[0].Observations[0].WeightedCount, 1e-12)
		assert.Equal(t, 2, series[0].Observations[0].Deaths)
	})

	t.Run("sex", func(t *testing.T) {
		series := agg.Series(domain.StrataSex)
		require.Len(t, series, 2)

		male := series[1]
		assert.Equal(t, domain.Category{Sex: "male"}, male.Category)
		require.Len(t, male.Observations, 2)
		assert.InDelta(t, 1.0, male.Observations[0].WeightedCount, 1e-12)
		assert.InDelta(t, 4.0, male.Observations[1].WeightedCount, 1e-12)
		assert.Equal(t, domain.Category{Sex: "male"}, male.Observations[1].Category)
	})

	t.Run("total", func(t *testing.T) {
		series := agg.Series(domain.StrataTotal)
		require.Len(t, series, 1)

		want := []domain.PeriodObservation{
			{Year: 1995, Month: 1, WeightedCount: 4.5, Deaths: 3},
			{Year: 1995, Month: 2, WeightedCount: 4.0, Deaths: 1},
		}
		if diff := cmp.Diff(want, series[0].Observations); diff != "" {
			t.Errorf("total series mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestAggregator_UnknownSexKeptApart(t *testing.T) {
	age := 80
	unrecognised := domain.DeathRecord{Sex: "9", DeathAge: &age, DeathYear: 1995, DeathMonth: 1, Weight: 2, Dataset: "numident"}

	agg := New()
	agg.Add(
		record("female", "75-84", 1995, 1, 1),
		domain.EnrichDeathRecord(unrecognised, domain.DefaultAgeGroups()),
	)

	var keys []string
	for _, s := range agg.Series(domain.StrataSex) {
		keys = append(keys, s.Category.Key())
	}
	assert.Equal(t, []string{"sex=female", "sex=unknown"}, keys)

	keys = keys[:0]
	for _, s := range agg.Series(domain.StrataSexAgeGroup) {
		keys = append(keys, s.Category.Key())
	}
	assert.Equal(t, []string{"sex=female|age_group=75-84", "sex=unknown|age_group=75-84"}, keys)

	total := agg.Series(domain.StrataTotal)
	require.Len(t, total, 1)
	require.Len(t, total[0].Observations, 1)
	assert.InDelta(t, 3.0, total[0].Observations[0].WeightedCount, 1e-12)
}

func TestAggregator_ZeroFillsGaps(t *testing.T) {
	agg := New()
	agg.Add(
		record("female", "<65", 1994, 11, 1),
		record("female", "<65", 1995, 2, 1),
	)

	series := agg.Series(domain.StrataSex)
	require.Len(t, series, 1)

	obs := series[0].Observations
	require.Len(t, obs, 4)
	assert.Equal(t, [2]int{1994, 11}, [2]int{obs[0].Year, obs[0].Month})
	assert.Equal(t, [2]int{1994, 12}, [2]int{obs[1].Year, obs[1].Month})
	assert.Equal(t, [2]int{1995, 1}, [2]int{obs[2].Year, obs[2].Month})
	assert.Equal(t, [2]int{1995, 2}, [2]int{obs[3].Year, obs[3].Month})
	assert.Zero(t, obs[1].WeightedCount)
	assert.Zero(t, obs[2].Deaths)

	gaps := agg.Gaps(domain.StrataSex)
	assert.Equal(t, []Gap{
		{Category: domain.Category{Sex: "female"}, Year: 1994, Month: 12},
		{Category: domain.Category{Sex: "female"}, Year: 1995, Month: 1},
	}, gaps)
}

func TestAggregator_GapsFilledByCollapse(t *testing.T) {
	agg := New()
	agg.Add(
		record("female", "<65", 1995, 1, 1),
		record("male", "<65", 1995, 2, 1),
		record("female", "<65", 1995, 3, 1),
	)

	assert.Len(t, agg.Gaps(domain.StrataSex), 1)
	assert.Empty(t, agg.Gaps(domain.StrataAgeGroup))
}

func TestAggregator_Version(t *testing.T) {
	agg := New()
	assert.Zero(t, agg.Version())

	agg.Add()
	assert.Zero(t, agg.Version(), "empty add does not change state")

	require.NoError(t, agg.LoadBatch(context.Background(), []domain.DeathRecord{record("male", "85+", 1990, 5, 1)}))
	v1 := agg.Version()
	assert.NotZero(t, v1)

	agg.Series(domain.StrataTotal)
	assert.Equal(t, v1, agg.Version(), "reads do not change version")
	assert.Equal(t, 1, agg.Records())
}

func TestAggregator_LoadBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := New()
	err := agg.LoadBatch(ctx, []domain.DeathRecord{record("male", "85+", 1990, 5, 1)})

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, agg.Records())
}

func TestAggregator_SnapshotRestore(t *testing.T) {
	src := New()
	src.Add(
		record("female", "65-74", 1996, 2, 1.25),
		record("female", "65-74", 1996, 2, 0.75),
		record("male", "65-74", 1996, 4, 3),
	)

	cells := src.Snapshot()
	require.Len(t, cells, 2)
	assert.Equal(t, Cell{
		Category:      domain.Category{Sex: "female", AgeGroup: "65-74"},
		Year:          1996,
		Month:         2,
		WeightedCount: 2,
		Deaths:        2,
	}, cells[0])

	dst := New()
	dst.Add(record("male", "<65", 2000, 1, 99))
	dst.Restore(cells)

	assert.Equal(t, src.Series(domain.StrataSexAgeGroup), dst.Series(domain.StrataSexAgeGroup))
	assert.Equal(t, 3, dst.Records())
}

func TestAggregator_ConcurrentAdd(t *testing.T) {
	agg := New()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				agg.Add(record("female", "85+", 1999, 12, 1))
			}
		}()
	}
	wg.Wait()

	series := agg.Series(domain.StrataTotal)
	require.Len(t, series, 1)
	assert.InDelta(t, 800.0, series[0].Observations[0].WeightedCount, 1e-9)
	assert.Equal(t, 800, agg.Records())
}

func TestAggregator_Empty(t *testing.T) {
	agg := New()
	assert.Empty(t, agg.Series(domain.StrataSexAgeGroup))
	assert.Empty(t, agg.Gaps(domain.StrataSexAgeGroup))
	assert.Empty(t, agg.Snapshot())
}
