// Package seasonal derives a deseasonalized "variation" statistic for monthly
// death counts.
//
// For each period the baseline is a centered 12-month moving total: the
// period itself, the 5 periods before it and the 6 after it. The moving total
// approximates one year of deaths around the period and is apportioned to
// the period's calendar month by its share of days in a 365- or 366-day
// year. Variation is the percentage deviation of the observed count from
// that expectation:
//
//	expected  = movingTotal * daysInMonth / daysInYear
//	variation = observed / expected * 100 - 100
//
// Because the baseline tracks the local level rather than a fixed calendar
// year, a linear secular trend does not leak into the variation.
//
// Input series must be gap-free consecutive months for a single category.
// The estimator does not check this; a gap shifts the window and the
// day-count alignment silently.
package seasonal
