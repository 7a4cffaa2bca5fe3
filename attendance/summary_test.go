package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
)

func TestPercent(t *testing.T) {
	assert.Equal(t, "0", attendance.Percent(0, 0).String())
	assert.Equal(t, "100", attendance.Percent(3, 3).String())
	assert.Equal(t, "66.7", attendance.Percent(2, 3).String())
	assert.Equal(t, "12.5", attendance.Percent(1, 8).String())
}

func TestLedgerSummary(t *testing.T) {
	// GIVEN: Four recorded days, three present and one on leave
	mem := store.NewMemory()
	ctx := context.Background()
	ledger := attendance.NewLedger(mem, nil)
	start := attendance.NewDay(2026, time.March, 2)
	for i, st := range []attendance.Status{attendance.StatusPresent, attendance.StatusPresent, attendance.StatusLeave, attendance.StatusPresent} {
		_, err := ledger.Upsert(ctx, attendance.UpsertCommand{EmployeeID: "E1", Day: start.AddDays(i), Status: st})
		require.NoError(t, err)
	}

	// WHEN: Summarizing the week
	sum, err := ledger.Summary(ctx, "E1", start, start.AddDays(6))

	// THEN: Counts and rate reflect the rows
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 3, sum.Counts[attendance.StatusPresent])
	assert.Equal(t, 1, sum.Counts[attendance.StatusLeave])
	assert.Equal(t, 0, sum.Counts[attendance.StatusAbsent])
	assert.Equal(t, "75", sum.PresentRate.String())
}

func TestLedgerUpsert_DefaultsSource(t *testing.T) {
	mem := store.NewMemory()
	ledger := attendance.NewLedger(mem, nil)

	rec, err := ledger.Upsert(context.Background(), attendance.UpsertCommand{EmployeeID: "E1", Day: monday, Status: attendance.StatusAbsent})

	require.NoError(t, err)
	assert.Equal(t, attendance.SourceDefault, rec.SourceSystem)
	assert.NotZero(t, rec.ID)
}

func TestHolidayCalendar(t *testing.T) {
	cal := attendance.NewHolidayCalendar(attendance.DefaultHolidays()...)

	name, ok := cal.HolidayName(attendance.NewDay(2027, time.August, 15))
	assert.True(t, ok, "holidays recur every year")
	assert.Equal(t, "Independence Day", name)
	assert.False(t, cal.IsHoliday(attendance.NewDay(2026, time.March, 4)))
	assert.True(t, cal.IsNonWorkingDay(attendance.NewDay(2026, time.March, 7)))
	assert.Len(t, cal.Holidays(), 6)
	assert.Equal(t, time.January, cal.Holidays()[0].Month)
}

func TestParseHoliday(t *testing.T) {
	h, err := attendance.ParseHoliday("08-15=Independence Day")
	require.NoError(t, err)
	assert.Equal(t, attendance.Holiday{Month: time.August, Day: 15, Name: "Independence Day"}, h)

	h, err = attendance.ParseHoliday("02-29")
	require.NoError(t, err)
	assert.Equal(t, 29, h.Day)

	for _, bad := range []string{"15-08", "02-30", "xx-01", "0815"} {
		_, err := attendance.ParseHoliday(bad)
		assert.ErrorIs(t, err, attendance.ErrInvalidInput, bad)
	}
}
