package domain

import (
	"errors"
	"fmt"
)

// UnknownAgeGroup labels ages that fall outside every configured group.
const UnknownAgeGroup = "unknown"

// AgeGroup is an inclusive age band. Max < 0 means open-ended.
type AgeGroup struct {
	Label string `yaml:"label" json:"label"`
	Min   int    `yaml:"min" json:"min"`
	Max   int    `yaml:"max" json:"max"`
}

// Contains reports whether age falls inside the band.
func (g AgeGroup) Contains(age int) bool {
	if age < g.Min {
		return false
	}
	return g.Max < 0 || age <= g.Max
}

// AgeGroups is an ordered set of non-overlapping bands.
type AgeGroups []AgeGroup

// DefaultAgeGroups are the bands used by the CenSoc mortality vignettes.
func DefaultAgeGroups() AgeGroups {
	return AgeGroups{
		{Label: "<65", Min: 0, Max: 64},
		{Label: "65-74", Min: 65, Max: 74},
		{Label: "75-84", Min: 75, Max: 84},
		{Label: "85+", Min: 85, Max: -1},
	}
}

// Classify returns the label of the first band containing age.
func (gs AgeGroups) Classify(age int) string {
	for _, g := range gs {
		if g.Contains(age) {
			return g.Label
		}
	}
	return UnknownAgeGroup
}

// Validate checks labels are present and unique and bands do not overlap.
func (gs AgeGroups) Validate() error {
	if len(gs) == 0 {
		return errors.New("at least one age group is required")
	}
	seen := make(map[string]bool, len(gs))
	for i, g := range gs {
		if g.Label == "" {
			return fmt.Errorf("age group %d: label is required", i)
		}
		if seen[g.Label] {
			return fmt.Errorf("age group %q: duplicate label", g.Label)
		}
		seen[g.Label] = true
		if g.Max >= 0 && g.Max < g.Min {
			return fmt.Errorf("age group %q: max %d is below min %d", g.Label, g.Max, g.Min)
		}
		for _, other := range gs[:i] {
			if overlaps(g, other) {
				return fmt.Errorf("age group %q overlaps %q", g.Label, other.Label)
			}
		}
	}
	return nil
}

func overlaps(a, b AgeGroup) bool {
	aMax, bMax := a.Max, b.Max
	if aMax < 0 {
		aMax = int(^uint(0) >> 1)
	}
	if bMax < 0 {
		bMax = int(^uint(0) >> 1)
	}
	return a.Min <= bMax && b.Min <= aMax
}
