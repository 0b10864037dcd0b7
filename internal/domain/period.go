package domain

import "time"

// PeriodObservation is the aggregate for one (category, year, month).
type PeriodObservation struct {
	Year          int      `json:"year"`
	Month         int      `json:"month"`
	Category      Category `json:"category"`
	WeightedCount float64  `json:"weighted_count"`
	Deaths        int      `json:"deaths"` // unweighted record count
}

// TimeIndex places the period on a continuous axis: year + (month-1)/12.
func (o PeriodObservation) TimeIndex() float64 {
	return float64(o.Year) + float64(o.Month-1)/12
}

// PeriodVariation augments an observation with its seasonal baseline.
// Nil fields are undefined for the period.
type PeriodVariation struct {
	PeriodObservation

	MovingTotal   *float64 `json:"moving_total,omitempty"`
	ExpectedCount *float64 `json:"expected_count,omitempty"`
	Variation     *float64 `json:"variation,omitempty"`
}

// Defined reports whether the variation statistic is available.
func (v PeriodVariation) Defined() bool {
	return v.Variation != nil
}

// Series is one category's chronologically ordered, gap-free observations.
type Series struct {
	Category     Category            `json:"category"`
	Observations []PeriodObservation `json:"observations"`
}

// VariationReport is one run of the estimator over every category.
type VariationReport struct {
	ID          string            `json:"id"`
	Strata      Strata            `json:"strata"`
	LeapRule    string            `json:"leap_rule"`
	GeneratedAt time.Time         `json:"generated_at"`
	Categories  int               `json:"categories"`
	Variations  []PeriodVariation `json:"variations"`
}

// ForCategory returns the report rows whose category key matches.
func (r VariationReport) ForCategory(key string) []PeriodVariation {
	out := make([]PeriodVariation, 0)
	for _, v := range r.Variations {
		if v.Category.Key() == key {
			out = append(out, v)
		}
	}
	return out
}
