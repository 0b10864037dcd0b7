package config

import (
	"fmt"
	"os"

	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// ageGroupsFile is the on-disk layout of AGE_GROUPS_FILE:
//
//	age_groups:
//	  - label: "<65"
//	    min: 0
//	    max: 64
//	  - label: "65+"
//	    min: 65
//	    max: -1
type ageGroupsFile struct {
	AgeGroups domain.AgeGroups `yaml:"age_groups"`
}

// LoadAgeGroups reads and validates an age-group definition file.
func LoadAgeGroups(path string) (domain.AgeGroups, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("age groups: read %q: %w", path, err)
	}

	var f ageGroupsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("age groups: parse yaml: %w", err)
	}
	if err := f.AgeGroups.Validate(); err != nil {
		return nil, fmt.Errorf("age groups: %w", err)
	}
	return f.AgeGroups, nil
}
