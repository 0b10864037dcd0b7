package regress

import (
	"fmt"
	"sort"

	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// Term names used by FitAgeAtDeath.
const (
	TermIntercept = "(Intercept)"
	TermIncome    = "income"
	statePrefix   = "state:"
)

// StateTerm is the coefficient name for a state dummy.
func StateTerm(state string) string { return statePrefix + state }

// Options selects covariates for FitAgeAtDeath.
type Options struct {
	IncludeIncome bool
}

// FitAgeAtDeath regresses death age on state dummies and, optionally, wage
// income, weighting by record weight. The lexically first state is the
// reference level. Records without a state or a known death age, with zero
// weight, or without income when income is requested are skipped.
func FitAgeAtDeath(records []domain.DeathRecord, opts Options) (Result, error) {
	rows := make([]domain.DeathRecord, 0, len(records))
	seen := make(map[string]struct{})
	for _, rec := range records {
		if rec.State == "" || rec.DeathAge == nil || rec.Weight <= 0 {
			continue
		}
		if opts.IncludeIncome && rec.Income == nil {
			continue
		}
		rows = append(rows, rec)
		seen[rec.State] = struct{}{}
	}
	if len(rows) == 0 {
		return Result{}, fmt.Errorf("fit age at death: %w: no usable records", ErrInsufficientData)
	}

	states := make([]string, 0, len(seen))
	for s := range seen {
		states = append(states, s)
	}
	sort.Strings(states)

	terms := []string{TermIntercept}
	column := make(map[string]int, len(states))
	for _, s := range states[1:] {
		column[s] = len(terms)
		terms = append(terms, StateTerm(s))
	}
	incomeCol := -1
	if opts.IncludeIncome {
		incomeCol = len(terms)
		terms = append(terms, TermIncome)
	}

	p := len(terms)
	x := mat.NewDense(len(rows), p, nil)
	y := make([]float64, len(rows))
	w := make([]float64, len(rows))
	for i, rec := range rows {
		x.Set(i, 0, 1)
		if j, ok := column[rec.State]; ok {
			x.Set(i, j, 1)
		}
		if incomeCol >= 0 {
			x.Set(i, incomeCol, *rec.Income)
		}
		y[i] = float64(*rec.DeathAge)
		w[i] = rec.Weight
	}

	res, err := WeightedOLS(terms, x, y, w)
	if err != nil {
		return Result{}, fmt.Errorf("fit age at death: %w", err)
	}
	return res, nil
}
