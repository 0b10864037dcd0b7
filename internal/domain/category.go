package domain

import (
	"fmt"
	"strings"
)

// Strata selects which dimensions partition the period series.
type Strata string

const (
	StrataTotal       Strata = "total"
	StrataSex         Strata = "sex"
	StrataAgeGroup    Strata = "age_group"
	StrataSexAgeGroup Strata = "sex_age_group"
)

// ParseStrata validates a strata name. An empty string selects sex_age_group.
func ParseStrata(s string) (Strata, error) {
	switch Strata(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return StrataSexAgeGroup, nil
	case StrataTotal:
		return StrataTotal, nil
	case StrataSex:
		return StrataSex, nil
	case StrataAgeGroup:
		return StrataAgeGroup, nil
	case StrataSexAgeGroup:
		return StrataSexAgeGroup, nil
	default:
		return "", fmt.Errorf("unknown strata %q", s)
	}
}

// UnknownSex labels records whose sex code is missing or unrecognised.
const UnknownSex = "unknown"

// Category is an opaque stratum key. Empty fields mean "all".
type Category struct {
	Sex      string `json:"sex,omitempty"`
	AgeGroup string `json:"age_group,omitempty"`
}

// Collapse drops the dimensions the strata does not partition on.
func (c Category) Collapse(s Strata) Category {
	switch s {
	case StrataTotal:
		return Category{}
	case StrataSex:
		return Category{Sex: c.Sex}
	case StrataAgeGroup:
		return Category{AgeGroup: c.AgeGroup}
	default:
		return c
	}
}

// Key renders a stable string form, e.g. "sex=female|age_group=75-84".
// The whole population renders as "all".
func (c Category) Key() string {
	var parts []string
	if c.Sex != "" {
		parts = append(parts, "sex="+c.Sex)
	}
	if c.AgeGroup != "" {
		parts = append(parts, "age_group="+c.AgeGroup)
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, "|")
}
