package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidRecord marks a record that cannot contribute to a period count.
	ErrInvalidRecord = errors.New("invalid death record")

	// ErrOutOfWindow marks a death outside the configured coverage years.
	ErrOutOfWindow = errors.New("death year outside coverage window")
)

// IPUMS sentinels for missing or not-in-universe wage income.
const (
	incomeMissing = 999998
	incomeNIU     = 999999
)

// ParseRawEvent deserializes a RawEvent's value into a DeathRecord.
func ParseRawEvent(raw RawEvent) (DeathRecord, error) {
	var rec RawRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return DeathRecord{}, fmt.Errorf("parse raw event: %w", err)
	}
	return ParseRawRecord(rec)
}

// ParseRawRecord converts CenSoc string columns into typed fields.
// Death year, death month and weight are required; other columns fall back
// to zero values when empty or malformed.
func ParseRawRecord(rec RawRecord) (DeathRecord, error) {
	deathYear, err := parseRequiredInt("dyear", rec.DeathYear)
	if err != nil {
		return DeathRecord{}, err
	}
	deathMonth, err := parseRequiredInt("dmonth", rec.DeathMonth)
	if err != nil {
		return DeathRecord{}, err
	}
	weight, err := strconv.ParseFloat(strings.TrimSpace(rec.Weight), 64)
	if err != nil {
		return DeathRecord{}, fmt.Errorf("parse raw record: weight %q: %w", rec.Weight, err)
	}

	birthYear := parseIntOrZero(rec.BirthYear)
	birthMonth := parseIntOrZero(rec.BirthMonth)
	var deathAge *int
	if age, ok := parseInt(rec.DeathAge); ok {
		deathAge = &age
	} else if age, ok := deriveDeathAge(birthYear, birthMonth, deathYear, deathMonth); ok {
		deathAge = &age
	}

	dataset := strings.ToLower(strings.TrimSpace(rec.Dataset))

	return DeathRecord{
		ID:         generateID(dataset, strings.TrimSpace(rec.HistID), deathYear, deathMonth, weight),
		Dataset:    dataset,
		BirthYear:  birthYear,
		BirthMonth: birthMonth,
		DeathYear:  deathYear,
		DeathMonth: deathMonth,
		DeathAge:   deathAge,
		Sex:        strings.TrimSpace(rec.Sex),
		Weight:     weight,
		State:      strings.ToUpper(strings.TrimSpace(rec.State)),
		Income:     parseIncome(rec.Income),
	}, nil
}

func parseRequiredInt(column, s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse raw record: %s %q: %w", column, s, err)
	}
	return v, nil
}

func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseIntOrZero(s string) int {
	v, _ := parseInt(s)
	return v
}

// parseIncome returns nil for empty, malformed, or IPUMS sentinel values.
func parseIncome(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v == incomeMissing || v == incomeNIU {
		return nil
	}
	return &v
}

// deriveDeathAge computes completed years between birth and death. Without a
// birth month only the year difference is used. Without a birth year the age
// is unknown.
func deriveDeathAge(birthYear, birthMonth, deathYear, deathMonth int) (int, bool) {
	if birthYear == 0 {
		return 0, false
	}
	age := deathYear - birthYear
	if birthMonth > 0 && deathMonth < birthMonth {
		age--
	}
	return age, true
}

// generateID produces a deterministic ID so replays of the same record
// collapse downstream. CenSoc HISTIDs are used directly when present.
func generateID(dataset, histID string, deathYear, deathMonth int, weight float64) string {
	prefix := dataset
	if prefix == "" {
		prefix = "censoc"
	}
	if histID != "" {
		return prefix + "-" + histID
	}
	input := fmt.Sprintf("%s|%d|%d|%g", dataset, deathYear, deathMonth, weight)
	hash := sha256.Sum256([]byte(input))
	return prefix + "-" + hex.EncodeToString(hash[:8])
}

// EnrichDeathRecord normalizes sex, assigns the age group and stamps the
// processing time. Records without a death age are labelled UnknownAgeGroup.
func EnrichDeathRecord(rec DeathRecord, groups AgeGroups) DeathRecord {
	rec.Sex = normalizeSex(rec.Sex, rec.Dataset)
	rec.AgeGroup = UnknownAgeGroup
	if rec.DeathAge != nil {
		rec.AgeGroup = groups.Classify(*rec.DeathAge)
	}
	rec.ProcessedAt = clock.Now()
	return rec
}

// normalizeSex maps Numident codes and free-text labels to "male"/"female".
// DMF extracts contain only men and usually omit the column. Anything else
// is UnknownSex.
func normalizeSex(value, dataset string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "m", "male":
		return "male"
	case "2", "f", "female":
		return "female"
	case "":
		if dataset == "dmf" {
			return "male"
		}
		return UnknownSex
	default:
		return UnknownSex
	}
}

// ValidateDeathRecord rejects records that cannot be placed in a period or
// that fall outside [minYear, maxYear]. A zero bound disables that side.
func ValidateDeathRecord(rec DeathRecord, minYear, maxYear int) error {
	if rec.DeathMonth < 1 || rec.DeathMonth > 12 {
		return fmt.Errorf("%w: death month %d", ErrInvalidRecord, rec.DeathMonth)
	}
	if math.IsNaN(rec.Weight) || math.IsInf(rec.Weight, 0) || rec.Weight < 0 {
		return fmt.Errorf("%w: weight %g", ErrInvalidRecord, rec.Weight)
	}
	if (minYear > 0 && rec.DeathYear < minYear) || (maxYear > 0 && rec.DeathYear > maxYear) {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfWindow, rec.DeathYear, minYear, maxYear)
	}
	return nil
}
