/*
marking.go - Mark-attendance validation engine

PURPOSE:
  Decides whether an employee may mark themselves PRESENT for a day from
  the mobile channel, and records the mark when allowed.

RULES (first match wins):
  1. Mode LOCKOUT                                   -> LOCKOUT_BLOCK
  2. Weekend, fixed holiday, or mode HOLIDAY,
     unless mode is UNLOCK_RESTRICTION             -> HOLIDAY_BLOCK
  3. Target before today                            -> PAST_DATE_BLOCK
  4. Target after today                             -> FUTURE_DATE_BLOCK
  5. Otherwise                                      -> accept

  UNLOCK_RESTRICTION only lifts rule 2. Past and future days stay blocked.

"TODAY":
  Today is the calendar date in the service's configured location, taken
  from the service clock once per call.

SEE ALSO:
  - calendar.go: Weekend/holiday classification
  - simulation.go: ModeSwitch
*/
package attendance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// BlockReason is the machine-readable code for a refused mark.
type BlockReason string

const (
	BlockLockout    BlockReason = "LOCKOUT_BLOCK"
	BlockHoliday    BlockReason = "HOLIDAY_BLOCK"
	BlockPastDate   BlockReason = "PAST_DATE_BLOCK"
	BlockFutureDate BlockReason = "FUTURE_DATE_BLOCK"
)

// =============================================================================
// POLICY - Pure decision function
// =============================================================================

// MarkingPolicy evaluates marking rules. The zero value has no holidays.
type MarkingPolicy struct {
	Calendar *HolidayCalendar
}

// Evaluate returns the block reason for marking target on today under mode,
// or "" when the mark is allowed.
func (p MarkingPolicy) Evaluate(target, today Day, mode SimulationMode) BlockReason {
	if mode == ModeLockout {
		return BlockLockout
	}
	restricted := target.IsWeekend() || p.Calendar.IsHoliday(target) || mode == ModeHoliday
	if restricted && mode != ModeUnlockRestriction {
		return BlockHoliday
	}
	if target.Before(today) {
		return BlockPastDate
	}
	if target.After(today) {
		return BlockFutureDate
	}
	return ""
}

// =============================================================================
// SERVICE - Validation plus ledger write
// =============================================================================

// MarkingService records mobile check-ins.
type MarkingService struct {
	Store    TxStore
	Policy   MarkingPolicy
	Mode     *ModeSwitch
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

// NewMarkingService wires a marking service with a real clock.
func NewMarkingService(store TxStore, cal *HolidayCalendar, mode *ModeSwitch, loc *time.Location, logger *zap.Logger) *MarkingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &MarkingService{
		Store:    store,
		Policy:   MarkingPolicy{Calendar: cal},
		Mode:     mode,
		Location: loc,
		Now:      time.Now,
		Logger:   logger,
	}
}

// Today returns the current date in the service location.
func (s *MarkingService) Today() Day {
	return DayOf(s.Now().In(s.Location))
}

// Check evaluates the rules for target without writing anything.
// A nil target means today.
func (s *MarkingService) Check(target *Day) (Day, BlockReason) {
	today := s.Today()
	day := today
	if target != nil {
		day = *target
	}
	return day, s.Policy.Evaluate(day, today, s.Mode.Get())
}

// Mark records emp as PRESENT on target (today when nil).
// Returns *NotFoundError for an unknown employee and *BlockedError when a
// rule refuses the mark.
func (s *MarkingService) Mark(ctx context.Context, emp EmployeeID, target *Day) (Record, error) {
	var rec Record
	err := s.Store.WithTx(ctx, func(repo Repository) error {
		employee, err := repo.GetEmployee(ctx, emp)
		if err != nil {
			return fmt.Errorf("failed to load employee: %w", err)
		}
		if employee == nil {
			return &NotFoundError{Resource: "Employee", ID: string(emp)}
		}

		day, reason := s.Check(target)
		if reason != "" {
			s.Logger.Info("attendance mark blocked",
				zap.String("emp_id", string(emp)),
				zap.String("day", day.String()),
				zap.String("reason", string(reason)))
			return &BlockedError{Reason: reason, Day: day}
		}

		rec, err = NewLedger(repo, s.Now).Upsert(ctx, UpsertCommand{
			EmployeeID: emp,
			Day:        day,
			Status:     StatusPresent,
			Source:     SourceMobileApp,
			Actor:      EmployeePtr(emp),
		})
		return err
	})
	if err != nil {
		return Record{}, err
	}

	s.Logger.Info("attendance marked",
		zap.String("emp_id", string(emp)),
		zap.String("day", rec.Day.String()))
	return rec, nil
}
