package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/censoc-variation-service/internal/aggregate"
	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"github.com/couchcryptid/censoc-variation-service/internal/seasonal"
)

// phase tracks pass/fail for one check.
type phase struct {
	name   string
	notes  []string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

var errCheckFailed = errors.New("check failed")

func runCheck(out io.Writer, path string, f filterFlags, strataName string) error {
	strata, err := domain.ParseStrata(strataName)
	if err != nil {
		return err
	}

	records, stats, err := loadRecords(path, f)
	if err != nil {
		return err
	}

	agg := aggregate.New()
	agg.Add(records...)
	series := agg.Series(strata)

	phases := []*phase{
		checkParse(stats),
		checkStrata(records),
		checkCoverage(series),
		checkContiguity(agg.Gaps(strata)),
	}

	fmt.Fprintf(out, "%s: %d rows, %d kept, %d out of window\n\n", path, stats.rows, stats.kept, stats.outOfWindow)
	failed := reportPhases(out, phases)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d phases", errCheckFailed, failed, len(phases))
	}
	return nil
}

func reportPhases(out io.Writer, phases []*phase) int {
	failed := 0
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			failed++
		}
		fmt.Fprintf(out, "  %-36s %s\n", p.name, status)
	}

	for _, p := range phases {
		if len(p.notes) == 0 && p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for _, n := range p.notes {
			fmt.Fprintf(out, "  %s\n", n)
		}
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}
	return failed
}

func checkParse(s loadStats) *phase {
	p := &phase{name: "Parse"}
	if s.rows == 0 {
		p.errorf("no data rows")
	}
	if s.parseErrors > 0 || s.invalid > 0 {
		p.errorf("%d unparseable and %d invalid rows", s.parseErrors, s.invalid)
		for _, e := range s.firstErrors {
			p.notef("%s", e)
		}
	}
	return p
}

// checkStrata flags records that land in an unlabelled category.
func checkStrata(records []domain.DeathRecord) *phase {
	p := &phase{name: "Strata labels"}
	var noSex, noAge int
	for i := range records {
		if records[i].Sex == domain.UnknownSex {
			noSex++
		}
		if records[i].AgeGroup == domain.UnknownAgeGroup {
			noAge++
		}
	}
	if noSex > 0 {
		p.notef("%d records without a recognised sex", noSex)
	}
	if noAge > 0 {
		p.notef("%d records outside every age group", noAge)
	}
	return p
}

func checkCoverage(series []domain.Series) *phase {
	p := &phase{name: "Coverage"}
	if len(series) == 0 {
		p.errorf("no categories")
		return p
	}
	for _, s := range series {
		n := len(s.Observations)
		first, last := s.Observations[0], s.Observations[n-1]
		defined := max(n-seasonal.WindowBefore-seasonal.WindowAfter, 0)
		p.notef("%-36s %d-%02d .. %d-%02d  %3d periods, %3d defined",
			s.Category.Key(), first.Year, first.Month, last.Year, last.Month, n, defined)
		if defined == 0 {
			p.errorf("%s: %d months is shorter than the %d-month window", s.Category.Key(), n, seasonal.WindowSize)
		}
	}
	return p
}

// checkContiguity lists zero-filled months. They are warnings only.
func checkContiguity(gaps []aggregate.Gap) *phase {
	p := &phase{name: "Contiguity"}
	for _, g := range gaps {
		p.notef("%s %d-%02d has no records, counted as zero", g.Category.Key(), g.Year, g.Month)
	}
	return p
}
