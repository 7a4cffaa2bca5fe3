package attendance

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// HOLIDAY CALENDAR - Fixed month/day holidays, recurring every year
// =============================================================================

// Holiday is a recurring company holiday.
type Holiday struct {
	Month time.Month
	Day   int
	Name  string
}

func (h Holiday) String() string {
	return fmt.Sprintf("%02d-%02d=%s", int(h.Month), h.Day, h.Name)
}

type monthDay struct {
	month time.Month
	day   int
}

// HolidayCalendar classifies days as weekend, holiday or working day.
// Immutable after construction.
type HolidayCalendar struct {
	holidays map[monthDay]string
}

// DefaultHolidays is the built-in holiday set.
func DefaultHolidays() []Holiday {
	return []Holiday{
		{Month: time.January, Day: 26, Name: "Republic Day"},
		{Month: time.May, Day: 1, Name: "Labor Day"},
		{Month: time.August, Day: 15, Name: "Independence Day"},
		{Month: time.October, Day: 2, Name: "Gandhi Jayanti"},
		{Month: time.November, Day: 8, Name: "Diwali"},
		{Month: time.December, Day: 25, Name: "Christmas"},
	}
}

// NewHolidayCalendar builds a calendar from the given holidays.
// With no arguments the calendar has no holidays (weekends still apply).
func NewHolidayCalendar(holidays ...Holiday) *HolidayCalendar {
	c := &HolidayCalendar{holidays: make(map[monthDay]string, len(holidays))}
	for _, h := range holidays {
		c.holidays[monthDay{h.Month, h.Day}] = h.Name
	}
	return c
}

// IsHoliday reports whether d's month and day match a configured holiday.
func (c *HolidayCalendar) IsHoliday(d Day) bool {
	_, ok := c.HolidayName(d)
	return ok
}

// HolidayName returns the holiday falling on d, if any.
func (c *HolidayCalendar) HolidayName(d Day) (string, bool) {
	if c == nil {
		return "", false
	}
	name, ok := c.holidays[monthDay{d.Month(), d.DayOfMonth()}]
	return name, ok
}

// IsNonWorkingDay reports whether d is a weekend or a holiday.
func (c *HolidayCalendar) IsNonWorkingDay(d Day) bool {
	return d.IsWeekend() || c.IsHoliday(d)
}

// Holidays returns the configured holidays ordered by month and day.
func (c *HolidayCalendar) Holidays() []Holiday {
	out := make([]Holiday, 0, len(c.holidays))
	for md, name := range c.holidays {
		out = append(out, Holiday{Month: md.month, Day: md.day, Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].Day < out[j].Day
	})
	return out
}

// ParseHoliday parses "MM-DD" or "MM-DD=Name".
func ParseHoliday(s string) (Holiday, error) {
	spec, name, _ := strings.Cut(strings.TrimSpace(s), "=")
	mm, dd, ok := strings.Cut(spec, "-")
	if !ok {
		return Holiday{}, fmt.Errorf("%w: holiday %q must be MM-DD[=Name]", ErrInvalidInput, s)
	}
	month, err := strconv.Atoi(mm)
	if err != nil || month < 1 || month > 12 {
		return Holiday{}, fmt.Errorf("%w: holiday %q has invalid month", ErrInvalidInput, s)
	}
	day, err := strconv.Atoi(dd)
	if err != nil || day < 1 || day > daysIn(time.Month(month)) {
		return Holiday{}, fmt.Errorf("%w: holiday %q has invalid day", ErrInvalidInput, s)
	}
	return Holiday{Month: time.Month(month), Day: day, Name: strings.TrimSpace(name)}, nil
}

// ParseHolidays parses a list of holiday specs.
func ParseHolidays(specs []string) ([]Holiday, error) {
	out := make([]Holiday, 0, len(specs))
	for _, s := range specs {
		h, err := ParseHoliday(s)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// daysIn uses a leap year so that 02-29 is accepted.
func daysIn(m time.Month) int {
	return time.Date(2024, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
