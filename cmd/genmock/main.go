// Command genmock writes synthetic CenSoc extracts with a known seasonal
// pattern. The CSV feeds the censoc CLI, the raw JSON is what the loader
// publishes to Kafka, and the enriched JSON is produced by the real domain
// package so fixtures match pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -start 1992-01 -months 60 -per-month 400 \
//	  -csv-out data/mock/numident_synthetic.csv \
//	  -json-out data/mock/numident_synthetic_raw.json \
//	  -enriched-out data/mock/numident_synthetic_enriched.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// genConfig describes the synthetic population.
type genConfig struct {
	dataset   string
	startYear int
	startMon  int
	months    int
	perMonth  int
	// amplitude is the relative winter excess; 0.15 puts January about 15%
	// above the annual mean and July about 15% below.
	amplitude float64
	seed      uint64
}

var states = []string{"CA", "IL", "NY", "OH", "PA", "TX"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var cfg genConfig
	start := flag.String("start", "1992-01", "first death month (YYYY-MM)")
	flag.StringVar(&cfg.dataset, "dataset", "numident", "numident or dmf")
	flag.IntVar(&cfg.months, "months", 48, "number of consecutive months")
	flag.IntVar(&cfg.perMonth, "per-month", 200, "mean deaths per month")
	flag.Float64Var(&cfg.amplitude, "amplitude", 0.15, "relative winter excess")
	flag.Uint64Var(&cfg.seed, "seed", 1, "random seed")
	csvOut := flag.String("csv-out", "", "output path for the CSV extract")
	jsonOut := flag.String("json-out", "", "output path for raw JSON records")
	enrichedOut := flag.String("enriched-out", "", "output path for enriched JSON records")
	flag.Parse()

	if *csvOut == "" && *jsonOut == "" && *enrichedOut == "" {
		flag.Usage()
		return fmt.Errorf("at least one of -csv-out, -json-out, -enriched-out is required")
	}
	t, err := time.Parse("2006-01", *start)
	if err != nil {
		return fmt.Errorf("invalid -start %q: %w", *start, err)
	}
	cfg.startYear, cfg.startMon = t.Year(), int(t.Month())

	raw := generate(cfg)
	log.Printf("generated %d records over %d months", len(raw), cfg.months)

	if *csvOut != "" {
		if err := writeCSV(*csvOut, raw); err != nil {
			return fmt.Errorf("writing CSV extract: %w", err)
		}
		log.Printf("wrote CSV extract: %s", *csvOut)
	}
	if *jsonOut != "" {
		if err := writeJSON(*jsonOut, raw); err != nil {
			return fmt.Errorf("writing raw fixture: %w", err)
		}
		log.Printf("wrote raw fixture: %s", *jsonOut)
	}
	if *enrichedOut != "" {
		records, err := enrich(raw)
		if err != nil {
			return err
		}
		if err := writeJSON(*enrichedOut, records); err != nil {
			return fmt.Errorf("writing enriched fixture: %w", err)
		}
		log.Printf("wrote enriched fixture: %s", *enrichedOut)
		printStats(records)
	}
	return nil
}

// generate draws records month by month. The monthly count follows a cosine
// with its peak in January; birth years are spread so deaths land in every
// default age group.
func generate(cfg genConfig) []domain.RawRecord {
	rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed^0x9e3779b97f4a7c15))

	var out []domain.RawRecord
	year, month := cfg.startYear, cfg.startMon
	for i := range cfg.months {
		scale := 1 + cfg.amplitude*math.Cos(2*math.Pi*float64(month-1)/12)
		n := int(math.Round(float64(cfg.perMonth) * scale))

		for j := range n {
			age := 55 + rng.IntN(45)
			bmonth := 1 + rng.IntN(12)
			byear := year - age
			if bmonth > month {
				byear--
			}
			rec := domain.RawRecord{
				HistID:     fmt.Sprintf("%s-%04d-%05d", cfg.dataset, i, j),
				BirthYear:  strconv.Itoa(byear),
				BirthMonth: strconv.Itoa(bmonth),
				DeathYear:  strconv.Itoa(year),
				DeathMonth: strconv.Itoa(month),
				Weight:     strconv.FormatFloat(0.5+rng.Float64(), 'f', 4, 64),
				State:      states[rng.IntN(len(states))],
				Dataset:    cfg.dataset,
			}
			if cfg.dataset != "dmf" {
				rec.DeathAge = strconv.Itoa(age)
				rec.Sex = strconv.Itoa(1 + rng.IntN(2))
				if rng.IntN(4) > 0 {
					rec.Income = strconv.Itoa(rng.IntN(5000))
				} else {
					rec.Income = "999999"
				}
			}
			out = append(out, rec)
		}

		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	return out
}

var csvColumns = []string{"HISTID", "byear", "bmonth", "dyear", "dmonth", "death_age", "sex", "weight", "statefip", "incwage", "dataset"}

func writeCSV(path string, raw []domain.RawRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvColumns); err != nil {
		return err
	}
	for _, r := range raw {
		row := []string{r.HistID, r.BirthYear, r.BirthMonth, r.DeathYear, r.DeathMonth, r.DeathAge, r.Sex, r.Weight, r.State, r.Income, r.Dataset}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// enrich runs raw records through the domain transform with a fixed clock
// for reproducible ProcessedAt timestamps.
func enrich(raw []domain.RawRecord) ([]domain.DeathRecord, error) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	groups := domain.DefaultAgeGroups()
	out := make([]domain.DeathRecord, 0, len(raw))
	for _, r := range raw {
		rec, err := domain.ParseRawRecord(r)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", r.HistID, err)
		}
		out = append(out, domain.EnrichDeathRecord(rec, groups))
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type bucket struct {
	key    string
	count  int
	weight float64
}

func printStats(records []domain.DeathRecord) {
	byCategory := map[string]*bucket{}
	byMonth := map[int]*bucket{}
	for i := range records {
		r := &records[i]
		key := r.Category().Key()
		if byCategory[key] == nil {
			byCategory[key] = &bucket{key: key}
		}
		byCategory[key].count++
		byCategory[key].weight += r.Weight

		if byMonth[r.DeathMonth] == nil {
			byMonth[r.DeathMonth] = &bucket{key: time.Month(r.DeathMonth).String()}
		}
		byMonth[r.DeathMonth].count++
		byMonth[r.DeathMonth].weight += r.Weight
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(records))

	cats := make([]*bucket, 0, len(byCategory))
	for _, b := range byCategory {
		cats = append(cats, b)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].key < cats[j].key })
	fmt.Printf("Categories (%d):\n", len(cats))
	for _, b := range cats {
		fmt.Printf("  %-36s %6d  weight=%.1f\n", b.key, b.count, b.weight)
	}

	fmt.Println("By calendar month:")
	for m := 1; m <= 12; m++ {
		if b := byMonth[m]; b != nil {
			fmt.Printf("  %-10s %6d  weight=%.1f\n", b.key, b.count, b.weight)
		}
	}
}
