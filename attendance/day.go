/*
day.go - Calendar day abstraction for the attendance ledger

PURPOSE:
  Attendance is tracked per calendar day, never per instant. Day wraps a
  time.Time normalized to midnight UTC so that equality, ordering and map
  keys behave predictably regardless of where the value came from.

CONVERSIONS:
  DayOf(t)      Takes the calendar date of t in t's own location
  Today(loc)    Current date in the given location (service-local "today")
  ParseDay(s)   Strict ISO form "2006-01-02"

WIRE FORMAT:
  JSON and text encode as "2006-01-02". Storage uses the same form.

SEE ALSO:
  - calendar.go: Weekend and holiday classification
  - sync.go: Lenient day-first parsing for external payloads
*/
package attendance

import (
	"encoding/json"
	"fmt"
	"time"
)

// DayLayout is the canonical textual form of a Day.
const DayLayout = "2006-01-02"

// =============================================================================
// DAY
// =============================================================================

// Day is a calendar date with no time-of-day component.
type Day struct {
	t time.Time
}

// NewDay builds a Day from its components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf returns the calendar date of t as observed in t's location.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

// Today returns the current date in loc. A nil loc means UTC.
func Today(loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return DayOf(time.Now().In(loc))
}

// ParseDay parses the canonical "2006-01-02" form.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, &InputError{Field: "date", Message: fmt.Sprintf("invalid date %q", s)}
	}
	return DayOf(t), nil
}

// Comparison
func (d Day) Before(other Day) bool        { return d.t.Before(other.t) }
func (d Day) After(other Day) bool         { return d.t.After(other.t) }
func (d Day) Equal(other Day) bool         { return d.t.Equal(other.t) }
func (d Day) BeforeOrEqual(other Day) bool { return !d.After(other) }

// Arithmetic
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }

// DaysUntil returns the number of days from d to other (negative if other is earlier).
func (d Day) DaysUntil(other Day) int {
	return int(other.t.Sub(d.t).Hours() / 24)
}

// Properties
func (d Day) Year() int             { return d.t.Year() }
func (d Day) Month() time.Month     { return d.t.Month() }
func (d Day) DayOfMonth() int       { return d.t.Day() }
func (d Day) Weekday() time.Weekday { return d.t.Weekday() }
func (d Day) IsZero() bool          { return d.t.IsZero() }
func (d Day) Time() time.Time       { return d.t }

// IsWeekend reports whether d falls on a Saturday or Sunday.
func (d Day) IsWeekend() bool {
	wd := d.t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DayLayout)
}

// =============================================================================
// ENCODING
// =============================================================================

func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Day) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Day{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &InputError{Field: "date", Message: "date must be a string"}
	}
	return d.UnmarshalText([]byte(s))
}

// =============================================================================
// RANGES
// =============================================================================

// DaysBetween expands the inclusive range [start, end] into individual days.
// Returns ErrInvalidRange when end precedes start.
func DaysBetween(start, end Day) ([]Day, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	days := make([]Day, 0, start.DaysUntil(end)+1)
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days, nil
}
