// Package regress fits weighted least-squares models of age at death.
package regress

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is returned when there are no more observations than
// coefficients.
var ErrInsufficientData = errors.New("insufficient observations for model")

// Result holds a fitted weighted OLS model.
type Result struct {
	Terms        []string  `json:"terms"`
	Coefficients []float64 `json:"coefficients"`
	StdErrors    []float64 `json:"std_errors"`
	R2           float64   `json:"r2"`
	N            int       `json:"n"`
	WeightSum    float64   `json:"weight_sum"`
}

// Coefficient looks up the estimate for term.
func (r Result) Coefficient(term string) (float64, bool) {
	for i, t := range r.Terms {
		if t == term {
			return r.Coefficients[i], true
		}
	}
	return 0, false
}

// WeightedOLS fits y = Xβ minimizing Σ wᵢ(yᵢ - xᵢβ)². Weights must be
// non-negative. Standard errors come from σ²(XᵀWX)⁻¹ with
// σ² = Σ wᵢrᵢ² / (n - p).
func WeightedOLS(terms []string, x *mat.Dense, y, w []float64) (Result, error) {
	n, p := x.Dims()
	if len(terms) != p {
		return Result{}, fmt.Errorf("weighted ols: %d terms for %d columns", len(terms), p)
	}
	if len(y) != n || len(w) != n {
		return Result{}, fmt.Errorf("weighted ols: %d rows, %d responses, %d weights", n, len(y), len(w))
	}
	if n <= p {
		return Result{}, fmt.Errorf("weighted ols: %w: n=%d p=%d", ErrInsufficientData, n, p)
	}

	// Scale rows by √w so ordinary least squares on (xs, ys) is the
	// weighted problem.
	xs := mat.NewDense(n, p, nil)
	ys := mat.NewVecDense(n, nil)
	var weightSum float64
	for i := 0; i < n; i++ {
		if w[i] < 0 || math.IsNaN(w[i]) {
			return Result{}, fmt.Errorf("weighted ols: invalid weight %g at row %d", w[i], i)
		}
		sw := math.Sqrt(w[i])
		for j := 0; j < p; j++ {
			xs.Set(i, j, x.At(i, j)*sw)
		}
		ys.SetVec(i, y[i]*sw)
		weightSum += w[i]
	}
	if weightSum == 0 {
		return Result{}, fmt.Errorf("weighted ols: %w: all weights are zero", ErrInsufficientData)
	}

	var beta mat.VecDense
	if err := beta.SolveVec(xs, ys); err != nil {
		return Result{}, fmt.Errorf("solve weighted least squares: %w", err)
	}

	var xtwx mat.Dense
	xtwx.Mul(xs.T(), xs)
	var cov mat.Dense
	if err := cov.Inverse(&xtwx); err != nil {
		return Result{}, fmt.Errorf("invert normal matrix: %w", err)
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)

	var rss float64
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		rss += w[i] * r * r
	}
	mean := stat.Mean(y, w)
	var tss float64
	for i := 0; i < n; i++ {
		d := y[i] - mean
		tss += w[i] * d * d
	}

	sigma2 := rss / float64(n-p)
	coefs := make([]float64, p)
	ses := make([]float64, p)
	for j := 0; j < p; j++ {
		coefs[j] = beta.AtVec(j)
		ses[j] = math.Sqrt(sigma2 * cov.At(j, j))
	}

	r2 := 0.0
	if tss > 0 {
		r2 = 1 - rss/tss
	}

	return Result{
		Terms:        append([]string(nil), terms...),
		Coefficients: coefs,
		StdErrors:    ses,
		R2:           r2,
		N:            n,
		WeightSum:    weightSum,
	}, nil
}
