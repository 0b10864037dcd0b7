package domain

import (
	"context"
	"time"
)

// RawRecord is the flat JSON structure produced by the CenSoc loader.
// All values are strings because extracts mix numeric codes and labels.
type RawRecord struct {
	HistID     string `json:"HISTID"`
	BirthYear  string `json:"byear"`
	BirthMonth string `json:"bmonth"`
	DeathYear  string `json:"dyear"`
	DeathMonth string `json:"dmonth"`
	DeathAge   string `json:"death_age"`
	Sex        string `json:"sex"`
	Weight     string `json:"weight"`
	State      string `json:"statefip"`
	Income     string `json:"incwage"`
	Dataset    string `json:"dataset"` // "numident" or "dmf"
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// DeathRecord is one linked death after parsing and enrichment.
type DeathRecord struct {
	ID         string   `json:"id"`
	Dataset    string   `json:"dataset"`
	BirthYear  int      `json:"birth_year,omitempty"`
	BirthMonth int      `json:"birth_month,omitempty"`
	DeathYear  int      `json:"death_year"`
	DeathMonth int      `json:"death_month"`
	DeathAge   *int     `json:"death_age,omitempty"`
	Sex        string   `json:"sex,omitempty"`
	AgeGroup   string   `json:"age_group,omitempty"`
	Weight     float64  `json:"weight"`
	State      string   `json:"state,omitempty"`
	Income     *float64 `json:"income,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// Category returns the full (sex, age group) category of the record.
func (r DeathRecord) Category() Category {
	return Category{Sex: r.Sex, AgeGroup: r.AgeGroup}
}
