package main

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/censoc-variation-service/internal/adapter/csvfile"
	"github.com/couchcryptid/censoc-variation-service/internal/config"
	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"github.com/couchcryptid/censoc-variation-service/internal/pipeline"
	"github.com/spf13/cobra"
)

// filterFlags are shared by every subcommand.
type filterFlags struct {
	minYear   int
	maxYear   int
	ageGroups string
	dataset   string
}

func addFilterFlags(cmd *cobra.Command, f *filterFlags) {
	cmd.Flags().IntVar(&f.minYear, "min-year", 1988, "earliest death year kept (0 disables)")
	cmd.Flags().IntVar(&f.maxYear, "max-year", 2005, "latest death year kept (0 disables)")
	cmd.Flags().StringVar(&f.ageGroups, "age-groups", "", "YAML file overriding the default age groups")
	cmd.Flags().StringVar(&f.dataset, "dataset", "numident", "dataset name when the file has no dataset column (numident or dmf)")
}

// loadStats counts how rows were handled.
type loadStats struct {
	rows        int
	kept        int
	parseErrors int
	invalid     int
	outOfWindow int
	// firstErrors keeps a few examples for the check report.
	firstErrors []string
}

const maxErrorExamples = 5

func (s *loadStats) reject(line int, err error) {
	switch pipeline.RejectReason(err) {
	case pipeline.ReasonOutOfWindow:
		s.outOfWindow++
		return
	case pipeline.ReasonInvalid:
		s.invalid++
	default:
		s.parseErrors++
	}
	if len(s.firstErrors) < maxErrorExamples {
		s.firstErrors = append(s.firstErrors, fmt.Sprintf("line %d: %v", line, err))
	}
}

// loadRecords parses, enriches and filters every row of a CenSoc CSV.
func loadRecords(path string, f filterFlags) ([]domain.DeathRecord, loadStats, error) {
	var stats loadStats

	groups := domain.DefaultAgeGroups()
	if f.ageGroups != "" {
		var err error
		groups, err = config.LoadAgeGroups(f.ageGroups)
		if err != nil {
			return nil, stats, err
		}
	}
	if f.minYear > 0 && f.maxYear > 0 && f.minYear > f.maxYear {
		return nil, stats, fmt.Errorf("--min-year %d is after --max-year %d", f.minYear, f.maxYear)
	}

	tfm := pipeline.NewTransformer(groups, f.minYear, f.maxYear, slog.Default())

	var records []domain.DeathRecord
	err := csvfile.EachFile(path, csvfile.Options{Dataset: f.dataset}, func(line int, raw domain.RawRecord) error {
		stats.rows++
		rec, err := domain.ParseRawRecord(raw)
		if err != nil {
			stats.reject(line, err)
			return nil
		}
		rec, err = tfm.Prepare(rec)
		if err != nil {
			stats.reject(line, err)
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	stats.kept = len(records)
	return records, stats, nil
}
