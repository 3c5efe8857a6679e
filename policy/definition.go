package policy

import (
	"fmt"
	"strings"
	"time"
)

// Definition is the declarative form of a policy, as found in configuration
// files. Exactly one of Roles or Requirements must be set.
type Definition struct {
	Name         string                  `toml:"name" json:"name"`
	Roles        []string                `toml:"roles,omitempty" json:"roles,omitempty"`
	Requirements []RequirementDefinition `toml:"requirements,omitempty" json:"requirements,omitempty"`
}

// RequirementDefinition declares one requirement. Kind selects the variant and
// decides which of the remaining fields are read:
//
//	minimum_age         years
//	department          name
//	claim_equals        type, value
//	time_window         start, end ("HH:MM"), days ("Mon".."Sun")
//	resource_ownership  (none)
//	permission          name
type RequirementDefinition struct {
	Kind  string   `toml:"kind" json:"kind"`
	Years int      `toml:"years,omitempty" json:"years,omitempty"`
	Name  string   `toml:"name,omitempty" json:"name,omitempty"`
	Type  string   `toml:"type,omitempty" json:"type,omitempty"`
	Value string   `toml:"value,omitempty" json:"value,omitempty"`
	Start string   `toml:"start,omitempty" json:"start,omitempty"`
	End   string   `toml:"end,omitempty" json:"end,omitempty"`
	Days  []string `toml:"days,omitempty" json:"days,omitempty"`
}

// Build converts d into a [Policy].
func (d Definition) Build() (Policy, error) {
	if len(d.Roles) > 0 && len(d.Requirements) > 0 {
		return Policy{}, fmt.Errorf("%w: %s mixes roles and requirements", ErrInvalidPolicy, d.Name)
	}
	if len(d.Roles) > 0 {
		return Roles(d.Name, d.Roles...)
	}

	reqs := make([]Requirement, 0, len(d.Requirements))
	for i, rd := range d.Requirements {
		r, err := rd.Build()
		if err != nil {
			return Policy{}, fmt.Errorf("%w: %s requirement %d: %v", ErrInvalidPolicy, d.Name, i, err)
		}
		reqs = append(reqs, r)
	}
	return Requirements(d.Name, reqs...)
}

// Build converts rd into a [Requirement].
func (rd RequirementDefinition) Build() (Requirement, error) {
	switch strings.ToLower(strings.TrimSpace(rd.Kind)) {
	case "minimum_age":
		if rd.Years < 0 {
			return nil, fmt.Errorf("negative age %d", rd.Years)
		}
		return MinimumAge{Years: rd.Years}, nil
	case "department":
		if rd.Name == "" {
			return nil, fmt.Errorf("department requires name")
		}
		return Department{Name: rd.Name}, nil
	case "claim_equals":
		if rd.Type == "" {
			return nil, fmt.Errorf("claim_equals requires type")
		}
		return ClaimEquals{Type: rd.Type, Value: rd.Value}, nil
	case "time_window":
		start, err := ParseClock(rd.Start)
		if err != nil {
			return nil, err
		}
		end, err := ParseClock(rd.End)
		if err != nil {
			return nil, err
		}
		days := make([]time.Weekday, 0, len(rd.Days))
		for _, raw := range rd.Days {
			day, err := parseWeekday(raw)
			if err != nil {
				return nil, err
			}
			days = append(days, day)
		}
		return TimeWindow{Start: start, End: end, Days: days}, nil
	case "resource_ownership":
		return ResourceOwnership{}, nil
	case "permission":
		if rd.Name == "" {
			return nil, fmt.Errorf("permission requires name")
		}
		return Permission{Name: rd.Name}, nil
	default:
		return nil, fmt.Errorf("unknown requirement kind %q", rd.Kind)
	}
}

// BuildSet builds every definition into a new [Set].
func BuildSet(defs []Definition) (*Set, error) {
	set := &Set{}
	for _, d := range defs {
		p, err := d.Build()
		if err != nil {
			return nil, err
		}
		if err := set.Add(p); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if s == full || s == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}
