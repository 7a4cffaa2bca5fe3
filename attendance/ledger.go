/*
ledger.go - Attendance ledger with upsert semantics

PURPOSE:
  The ledger holds exactly one record per (employee, day). Writes look the
  record up first and update it in place, or insert a new one. Records are
  never deleted.

WRITERS:
  - Request apply:  source ATOMICWORK, actor = approver
  - External sync:  source ATOMICWORK, actor = ATOMICWORK
  - Mobile marking: source MOBILE_APP, actor = the employee
  - Seeding:        arbitrary sources

CONCURRENCY:
  No locking around lookup-then-write. Two concurrent writers for the same
  key resolve as last-writer-wins. Uniqueness holds as long as writes go
  through this type inside a store transaction.

SEE ALSO:
  - store.go: LedgerStore interface
  - request.go: Apply step
*/
package attendance

import (
	"context"
	"fmt"
	"time"
)

// UpsertCommand describes one ledger write.
type UpsertCommand struct {
	EmployeeID EmployeeID
	Day        Day
	Status     Status
	Source     string     // defaults to SourceDefault
	Actor      *EmployeeID
}

// Ledger applies upserts against a LedgerStore.
type Ledger struct {
	Store LedgerStore
	Now   func() time.Time
}

// NewLedger creates a ledger. A nil clock means time.Now.
func NewLedger(store LedgerStore, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{Store: store, Now: now}
}

// Upsert writes cmd, updating the existing (employee, day) record if any.
func (l *Ledger) Upsert(ctx context.Context, cmd UpsertCommand) (Record, error) {
	if cmd.EmployeeID == "" || cmd.Day.IsZero() {
		return Record{}, fmt.Errorf("%w: upsert requires employee and day", ErrInvalidInput)
	}
	source := cmd.Source
	if source == "" {
		source = SourceDefault
	}
	now := l.Now().UTC()

	existing, err := l.Store.GetRecord(ctx, cmd.EmployeeID, cmd.Day)
	if err != nil {
		return Record{}, fmt.Errorf("failed to load record %s/%s: %w", cmd.EmployeeID, cmd.Day, err)
	}

	if existing != nil {
		existing.Status = cmd.Status
		existing.SourceSystem = source
		existing.LastUpdatedBy = cmd.Actor
		existing.LastUpdatedAt = now
		if err := l.Store.UpdateRecord(ctx, *existing); err != nil {
			return Record{}, fmt.Errorf("failed to update record %s/%s: %w", cmd.EmployeeID, cmd.Day, err)
		}
		return *existing, nil
	}

	rec := Record{
		EmployeeID:    cmd.EmployeeID,
		Day:           cmd.Day,
		Status:        cmd.Status,
		SourceSystem:  source,
		LastUpdatedBy: cmd.Actor,
		LastUpdatedAt: now,
	}
	id, err := l.Store.InsertRecord(ctx, rec)
	if err != nil {
		return Record{}, fmt.Errorf("failed to insert record %s/%s: %w", cmd.EmployeeID, cmd.Day, err)
	}
	rec.ID = id
	return rec, nil
}

// UpsertRange applies the same status to every day in [start, end].
// Returns the number of days written. Stops at the first failure; the
// caller's transaction decides whether earlier writes survive.
func (l *Ledger) UpsertRange(ctx context.Context, emp EmployeeID, start, end Day, status Status, source string, actor *EmployeeID) (int, error) {
	days, err := DaysBetween(start, end)
	if err != nil {
		return 0, err
	}
	for i, d := range days {
		if _, err := l.Upsert(ctx, UpsertCommand{
			EmployeeID: emp,
			Day:        d,
			Status:     status,
			Source:     source,
			Actor:      actor,
		}); err != nil {
			return i, err
		}
	}
	return len(days), nil
}

// Range returns emp's records in [from, to], ordered by day.
func (l *Ledger) Range(ctx context.Context, emp EmployeeID, from, to Day) ([]Record, error) {
	if to.Before(from) {
		return nil, ErrInvalidRange
	}
	return l.Store.ListRecords(ctx, emp, from, to)
}

// Bounds for open-ended ledger scans.
var (
	FirstDay = NewDay(1900, time.January, 1)
	LastDay  = NewDay(9999, time.December, 31)
)

// Recent returns up to n of emp's records dated strictly before `before`,
// newest first.
func (l *Ledger) Recent(ctx context.Context, emp EmployeeID, before Day, n int) ([]Record, error) {
	records, err := l.Store.ListRecords(ctx, emp, FirstDay, before.AddDays(-1))
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, n)
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i])
	}
	return out, nil
}
