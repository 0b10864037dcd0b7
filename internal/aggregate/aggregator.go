// Package aggregate turns weighted death records into per-category monthly
// series for the seasonal estimator.
package aggregate

import (
	"context"
	"sort"
	"sync"

	"github.com/couchcryptid/censoc-variation-service/internal/domain"
)

// Cell is the accumulated weight and unweighted count for one category and
// month. Cells are the unit of Snapshot and Restore.
type Cell struct {
	Category      domain.Category `json:"category"`
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	WeightedCount float64         `json:"weighted_count"`
	Deaths        int             `json:"deaths"`
}

// Gap is a month inside a category's span that had no records.
type Gap struct {
	Category domain.Category `json:"category"`
	Year     int             `json:"year"`
	Month    int             `json:"month"`
}

type tally struct {
	weight float64
	deaths int
}

// Aggregator accumulates weighted counts keyed by the full (sex, age group)
// category. Strata are applied when series are read, so one Aggregator can
// serve every strata. Safe for concurrent use.
type Aggregator struct {
	mu      sync.RWMutex
	cells   map[domain.Category]map[int]tally
	records int
	version uint64
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{cells: make(map[domain.Category]map[int]tally)}
}

// monthIndex maps a calendar month to a contiguous integer axis.
func monthIndex(year, month int) int {
	return year*12 + month - 1
}

func fromIndex(idx int) (year, month int) {
	return idx / 12, idx%12 + 1
}

// Add accumulates records. Callers are expected to have validated them.
func (a *Aggregator) Add(recs ...domain.DeathRecord) {
	if len(recs) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, rec := range recs {
		a.addLocked(rec.Category(), monthIndex(rec.DeathYear, rec.DeathMonth), rec.Weight, 1)
	}
	a.records += len(recs)
	a.version++
}

func (a *Aggregator) addLocked(cat domain.Category, idx int, weight float64, deaths int) {
	months, ok := a.cells[cat]
	if !ok {
		months = make(map[int]tally)
		a.cells[cat] = months
	}
	t := months[idx]
	t.weight += weight
	t.deaths += deaths
	months[idx] = t
}

// LoadBatch adds a batch of records. It satisfies the pipeline's loader.
func (a *Aggregator) LoadBatch(ctx context.Context, recs []domain.DeathRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.Add(recs...)
	return nil
}

// Version changes whenever the accumulated counts change.
func (a *Aggregator) Version() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.version
}

// Records returns the number of records added since creation or the last Restore.
func (a *Aggregator) Records() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.records
}

// collapse sums cells into the categories of strata.
func (a *Aggregator) collapse(strata domain.Strata) map[domain.Category]map[int]tally {
	out := make(map[domain.Category]map[int]tally)
	for cat, months := range a.cells {
		key := cat.Collapse(strata)
		dst, ok := out[key]
		if !ok {
			dst = make(map[int]tally, len(months))
			out[key] = dst
		}
		for idx, t := range months {
			acc := dst[idx]
			acc.weight += t.weight
			acc.deaths += t.deaths
			dst[idx] = acc
		}
	}
	return out
}

func sortedCategories(m map[domain.Category]map[int]tally) []domain.Category {
	cats := make([]domain.Category, 0, len(m))
	for c := range m {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Key() < cats[j].Key() })
	return cats
}

func span(months map[int]tally) (first, last int) {
	first, last = -1, -1
	for idx := range months {
		if first < 0 || idx < first {
			first = idx
		}
		if idx > last {
			last = idx
		}
	}
	return first, last
}

// Series returns one chronologically ordered series per category of strata,
// sorted by category key. Every month between a category's first and last
// observed month is present; months without records carry a zero count.
func (a *Aggregator) Series(strata domain.Strata) []domain.Series {
	a.mu.RLock()
	collapsed := a.collapse(strata)
	a.mu.RUnlock()

	cats := sortedCategories(collapsed)
	out := make([]domain.Series, 0, len(cats))
	for _, cat := range cats {
		months := collapsed[cat]
		first, last := span(months)

		obs := make([]domain.PeriodObservation, 0, last-first+1)
		for idx := first; idx <= last; idx++ {
			year, month := fromIndex(idx)
			t := months[idx]
			obs = append(obs, domain.PeriodObservation{
				Year:          year,
				Month:         month,
				Category:      cat,
				WeightedCount: t.weight,
				Deaths:        t.deaths,
			})
		}
		out = append(out, domain.Series{Category: cat, Observations: obs})
	}
	return out
}

// Gaps lists the months Series zero-fills for strata, ordered by category
// key and then chronologically.
func (a *Aggregator) Gaps(strata domain.Strata) []Gap {
	a.mu.RLock()
	collapsed := a.collapse(strata)
	a.mu.RUnlock()

	var gaps []Gap
	for _, cat := range sortedCategories(collapsed) {
		months := collapsed[cat]
		first, last := span(months)
		for idx := first; idx <= last; idx++ {
			if _, ok := months[idx]; ok {
				continue
			}
			year, month := fromIndex(idx)
			gaps = append(gaps, Gap{Category: cat, Year: year, Month: month})
		}
	}
	return gaps
}

// Snapshot returns every accumulated cell, ordered by category key and month.
func (a *Aggregator) Snapshot() []Cell {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var cells []Cell
	for _, cat := range sortedCategories(a.cells) {
		months := a.cells[cat]
		idxs := make([]int, 0, len(months))
		for idx := range months {
			idxs = append(idxs, idx)
		}
		sort.Ints(idxs)
		for _, idx := range idxs {
			year, month := fromIndex(idx)
			t := months[idx]
			cells = append(cells, Cell{
				Category:      cat,
				Year:          year,
				Month:         month,
				WeightedCount: t.weight,
				Deaths:        t.deaths,
			})
		}
	}
	return cells
}

// Restore replaces the accumulated state with cells.
func (a *Aggregator) Restore(cells []Cell) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cells = make(map[domain.Category]map[int]tally)
	a.records = 0
	for _, c := range cells {
		a.addLocked(c.Category, monthIndex(c.Year, c.Month), c.WeightedCount, c.Deaths)
		a.records += c.Deaths
	}
	a.version++
}
