package policy

import (
	"fmt"
	"strings"
	"time"
)

// Requirement is one condition of a policy. The set of variants is closed:
// MinimumAge, Department, ClaimEquals, TimeWindow, ResourceOwnership and
// Permission.
type Requirement interface {
	fmt.Stringer
	requirement()
}

// MinimumAge is satisfied when the date_of_birth claim is at least Years ago.
type MinimumAge struct {
	Years int
}

// Department is satisfied when the department claim equals Name, ignoring case.
type Department struct {
	Name string
}

// ClaimEquals is satisfied when any claim of Type equals Value, ignoring case.
type ClaimEquals struct {
	Type  string
	Value string
}

// TimeWindow is satisfied when the local time of day lies in [Start, End] and,
// if Days is non-empty, the weekday is listed. Start and End are offsets from
// midnight; Start after End describes a window that wraps past midnight.
type TimeWindow struct {
	Start time.Duration
	End   time.Duration
	Days  []time.Weekday
}

// ResourceOwnership is satisfied by the resource owner, by an Admin, or by a
// Manager of the resource's department.
type ResourceOwnership struct{}

// Permission is satisfied when one of the principal's roles is granted Name.
type Permission struct {
	Name string
}

func (MinimumAge) requirement()        {}
func (Department) requirement()        {}
func (ClaimEquals) requirement()       {}
func (TimeWindow) requirement()        {}
func (ResourceOwnership) requirement() {}
func (Permission) requirement()        {}

func (r MinimumAge) String() string { return fmt.Sprintf("MinimumAge(%d)", r.Years) }
func (r Department) String() string { return fmt.Sprintf("Department(%s)", r.Name) }
func (r ClaimEquals) String() string {
	return fmt.Sprintf("ClaimEquals(%s=%s)", r.Type, r.Value)
}
func (r ResourceOwnership) String() string { return "ResourceOwnership" }
func (r Permission) String() string        { return fmt.Sprintf("Permission(%s)", r.Name) }

func (r TimeWindow) String() string {
	var b strings.Builder
	b.WriteString("TimeWindow(")
	b.WriteString(FormatClock(r.Start))
	b.WriteByte('-')
	b.WriteString(FormatClock(r.End))
	if len(r.Days) > 0 {
		b.WriteString(" on ")
		for i, d := range r.Days {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(d.String()[:3])
		}
	}
	b.WriteByte(')')
	return b.String()
}

// contains reports whether the window includes the time of day tod on weekday.
func (r TimeWindow) contains(tod time.Duration, weekday time.Weekday) bool {
	if len(r.Days) > 0 {
		found := false
		for _, d := range r.Days {
			if d == weekday {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.Start <= r.End {
		return tod >= r.Start && tod <= r.End
	}
	return tod >= r.Start || tod <= r.End
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// FormatClock renders an offset from midnight as "HH:MM" (or "HH:MM:SS").
func FormatClock(d time.Duration) string {
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}
