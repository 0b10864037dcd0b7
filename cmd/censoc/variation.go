package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/couchcryptid/censoc-variation-service/internal/aggregate"
	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"github.com/couchcryptid/censoc-variation-service/internal/seasonal"
)

type variationOptions struct {
	strata   string
	leapRule string
	format   string
	workers  int
}

var variationHeader = []string{"category", "year", "month", "time_index", "deaths", "weighted_count", "moving_total", "expected_count", "variation"}

func runVariation(out, errOut io.Writer, path string, f filterFlags, opts variationOptions) error {
	strata, err := domain.ParseStrata(opts.strata)
	if err != nil {
		return err
	}
	rule, ok := seasonal.ParseLeapRule(opts.leapRule)
	if !ok {
		return fmt.Errorf("unknown leap rule %q", opts.leapRule)
	}
	render, err := variationRenderer(opts.format)
	if err != nil {
		return err
	}

	records, stats, err := loadRecords(path, f)
	if err != nil {
		return err
	}
	printLoadSummary(errOut, stats)

	agg := aggregate.New()
	agg.Add(records...)
	rows := seasonal.EstimateAll(agg.Series(strata), rule, opts.workers)
	return render(out, rows)
}

func variationRenderer(format string) (func(io.Writer, []domain.PeriodVariation) error, error) {
	switch format {
	case "", "table":
		return writeVariationTable, nil
	case "csv":
		return writeVariationCSV, nil
	case "json":
		return writeJSON[[]domain.PeriodVariation], nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func variationFields(v domain.PeriodVariation, na string) []string {
	return []string{
		v.Category.Key(),
		strconv.Itoa(v.Year),
		strconv.Itoa(v.Month),
		strconv.FormatFloat(v.TimeIndex(), 'f', 4, 64),
		strconv.Itoa(v.Deaths),
		strconv.FormatFloat(v.WeightedCount, 'f', 2, 64),
		formatOptional(v.MovingTotal, na),
		formatOptional(v.ExpectedCount, na),
		formatOptional(v.Variation, na),
	}
}

func formatOptional(v *float64, na string) string {
	if v == nil {
		return na
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func writeVariationTable(w io.Writer, rows []domain.PeriodVariation) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	writeTabRow(tw, variationHeader)
	for _, v := range rows {
		writeTabRow(tw, variationFields(v, "-"))
	}
	return tw.Flush()
}

// writeVariationCSV leaves undefined values empty.
func writeVariationCSV(w io.Writer, rows []domain.PeriodVariation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(variationHeader); err != nil {
		return err
	}
	for _, v := range rows {
		if err := cw.Write(variationFields(v, "")); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTabRow(w io.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, f)
	}
	fmt.Fprint(w, "\t\n")
}

func writeJSON[T any](w io.Writer, v T) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printLoadSummary(w io.Writer, s loadStats) {
	fmt.Fprintf(w, "rows: %d  kept: %d  parse errors: %d  invalid: %d  out of window: %d\n",
		s.rows, s.kept, s.parseErrors, s.invalid, s.outOfWindow)
}
