package attendance

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SUMMARY - Status counts and presence rate over a ledger window
// =============================================================================

// Summary aggregates an employee's ledger over [From, To].
type Summary struct {
	EmployeeID  EmployeeID
	From        Day
	To          Day
	Counts      map[Status]int
	Total       int
	PresentRate decimal.Decimal // percentage of recorded days marked PRESENT
}

// Percent returns part/total as a percentage rounded to one decimal place.
// Zero total yields zero.
func Percent(part, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 1)
}

// Summarize aggregates records. Records outside [from, to] are ignored.
func Summarize(emp EmployeeID, from, to Day, records []Record) Summary {
	s := Summary{
		EmployeeID: emp,
		From:       from,
		To:         to,
		Counts:     make(map[Status]int, len(KnownStatuses)),
	}
	for _, st := range KnownStatuses {
		s.Counts[st] = 0
	}
	for _, r := range records {
		if r.Day.Before(from) || r.Day.After(to) {
			continue
		}
		s.Counts[r.Status]++
		s.Total++
	}
	s.PresentRate = Percent(s.Counts[StatusPresent], s.Total)
	return s
}

// Summary loads and aggregates emp's records over [from, to].
func (l *Ledger) Summary(ctx context.Context, emp EmployeeID, from, to Day) (Summary, error) {
	records, err := l.Range(ctx, emp, from, to)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(emp, from, to, records), nil
}
