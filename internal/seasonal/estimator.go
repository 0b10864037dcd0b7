package seasonal

import (
	"sync"

	"github.com/couchcryptid/censoc-variation-service/internal/domain"
)

// Window geometry: the target period is the 6th of 12 consecutive months.
const (
	WindowBefore = 5
	WindowAfter  = 6
	WindowSize   = WindowBefore + 1 + WindowAfter
)

// Estimate runs the estimator with the Gregorian leap-year rule.
func Estimate(seq []domain.PeriodObservation) []domain.PeriodVariation {
	return EstimateWithRule(seq, IsLeapYear)
}

// EstimateWithRule augments every observation of one category's series with
// its moving total, expected count and variation. Output has the same length
// and order as seq. Periods whose window would run off either end of the
// series, and periods with a zero expected count, keep nil fields.
func EstimateWithRule(seq []domain.PeriodObservation, rule LeapRule) []domain.PeriodVariation {
	out := make([]domain.PeriodVariation, len(seq))
	last := len(seq) - 1 - WindowAfter

	for i, obs := range seq {
		out[i] = domain.PeriodVariation{PeriodObservation: obs}
		if i < WindowBefore || i > last {
			continue
		}

		total := movingTotal(seq, i)
		expected := total * DayFraction(obs.Year, obs.Month, rule)
		out[i].MovingTotal = &total
		out[i].ExpectedCount = &expected

		if v, ok := Variation(obs.WeightedCount, expected); ok {
			out[i].Variation = &v
		}
	}
	return out
}

// movingTotal sums the 12-observation window around i from raw values.
func movingTotal(seq []domain.PeriodObservation, i int) float64 {
	var sum float64
	for j := i - WindowBefore; j <= i+WindowAfter; j++ {
		sum += seq[j].WeightedCount
	}
	return sum
}

// Variation returns observed/expected*100 - 100. ok is false when expected is
// zero, in which case the statistic is undefined.
func Variation(observed, expected float64) (float64, bool) {
	if expected == 0 {
		return 0, false
	}
	return observed/expected*100 - 100, true
}

// EstimateAll runs the estimator over each series on up to workers
// goroutines and concatenates the results in series order. Each worker
// writes only its own slot, so no locking is needed.
func EstimateAll(series []domain.Series, rule LeapRule, workers int) []domain.PeriodVariation {
	if workers < 1 {
		workers = 1
	}

	results := make([][]domain.PeriodVariation, len(series))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(workers, len(series)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = EstimateWithRule(series[i].Observations, rule)
			}
		}()
	}
	for i := range series {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]domain.PeriodVariation, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}
