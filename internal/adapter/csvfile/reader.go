// Package csvfile reads CenSoc extracts exported as CSV.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/censoc-variation-service/internal/domain"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing required column")

var requiredColumns = []string{"dyear", "dmonth", "weight"}

// Options controls CSV parsing.
type Options struct {
	Delimiter rune // default ','
	// Dataset fills RawRecord.Dataset when the file has no dataset column.
	Dataset string
}

// Reader yields RawRecords from a CSV stream, mapping columns by header name.
type Reader struct {
	csv     *csv.Reader
	columns map[string]int
	dataset string
	line    int
}

// NewReader reads the header row and checks required columns.
func NewReader(r io.Reader, opts Options) (*Reader, error) {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.Trim(strings.TrimSpace(h), "\ufeff\""))
		columns[name] = i
	}
	for _, c := range requiredColumns {
		if _, ok := columns[c]; !ok {
			return nil, fmt.Errorf("read csv header: %w: %s", ErrMissingColumn, c)
		}
	}

	return &Reader{csv: cr, columns: columns, dataset: opts.Dataset, line: 1}, nil
}

// Line is the 1-based line number of the most recently read row.
func (r *Reader) Line() int { return r.line }

// Read returns the next record, or io.EOF at the end of input.
func (r *Reader) Read() (domain.RawRecord, error) {
	row, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.RawRecord{}, io.EOF
		}
		return domain.RawRecord{}, fmt.Errorf("read csv row: %w", err)
	}
	r.line++

	rec := domain.RawRecord{
		HistID:     r.field(row, "histid"),
		BirthYear:  r.field(row, "byear"),
		BirthMonth: r.field(row, "bmonth"),
		DeathYear:  r.field(row, "dyear"),
		DeathMonth: r.field(row, "dmonth"),
		DeathAge:   r.field(row, "death_age"),
		Sex:        r.field(row, "sex"),
		Weight:     r.field(row, "weight"),
		State:      r.field(row, "statefip"),
		Income:     r.field(row, "incwage"),
		Dataset:    r.field(row, "dataset"),
	}
	if rec.Dataset == "" {
		rec.Dataset = r.dataset
	}
	return rec, nil
}

// field returns the named column, treating R's "NA" as empty.
func (r *Reader) field(row []string, name string) string {
	i, ok := r.columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[i])
	if v == "NA" {
		return ""
	}
	return v
}

// Each calls fn for every row. A non-nil error from fn stops iteration and
// is returned unchanged.
func Each(r io.Reader, opts Options, fn func(line int, rec domain.RawRecord) error) error {
	cr, err := NewReader(r, opts)
	if err != nil {
		return err
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(cr.Line(), rec); err != nil {
			return err
		}
	}
}

// EachFile opens path and calls Each on it.
func EachFile(path string, opts Options, fn func(line int, rec domain.RawRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return Each(f, opts, fn)
}
