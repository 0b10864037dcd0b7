package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"

	"github.com/couchcryptid/censoc-variation-service/internal/regress"
)

func runRegress(out, errOut io.Writer, path string, f filterFlags, income bool, format string) error {
	if format != "" && format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}

	records, stats, err := loadRecords(path, f)
	if err != nil {
		return err
	}
	printLoadSummary(errOut, stats)

	res, err := regress.FitAgeAtDeath(records, regress.Options{IncludeIncome: income})
	if err != nil {
		return err
	}

	if format == "json" {
		return writeJSON(out, res)
	}
	return writeRegressTable(out, res)
}

func writeRegressTable(w io.Writer, res regress.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeTabRow(tw, []string{"term", "estimate", "std_error", "t"})
	for i, term := range res.Terms {
		est, se := res.Coefficients[i], res.StdErrors[i]
		t := math.NaN()
		if se > 0 {
			t = est / se
		}
		writeTabRow(tw, []string{
			term,
			strconv.FormatFloat(est, 'f', 4, 64),
			strconv.FormatFloat(se, 'f', 4, 64),
			strconv.FormatFloat(t, 'f', 2, 64),
		})
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nn = %d  weight sum = %.2f  R² = %.4f\n", res.N, res.WeightSum, res.R2)
	return err
}
