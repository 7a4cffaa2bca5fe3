package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// ATTENDANCE LEDGER (attendance.LedgerStore interface)
// =============================================================================

const recordColumns = `id, emp_id, day, status, source_system, last_updated_by, last_updated_at`

func (s *Store) GetRecord(ctx context.Context, emp attendance.EmployeeID, day attendance.Day) (*attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo().GetRecord(ctx, emp, day)
}

func (s *Store) InsertRecord(ctx context.Context, rec attendance.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().InsertRecord(ctx, rec)
}

func (s *Store) UpdateRecord(ctx context.Context, rec attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().UpdateRecord(ctx, rec)
}

// ListRecords returns records for emp in [from, to], ordered by day.
func (s *Store) ListRecords(ctx context.Context, emp attendance.EmployeeID, from, to attendance.Day) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo().ListRecords(ctx, emp, from, to)
}

func (s *Store) CountRecordsByStatus(ctx context.Context, day attendance.Day, status attendance.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo().CountRecordsByStatus(ctx, day, status)
}

func (r repo) GetRecord(ctx context.Context, emp attendance.EmployeeID, day attendance.Day) (*attendance.Record, error) {
	row := r.queryRow(ctx,
		"SELECT "+recordColumns+" FROM attendance_records WHERE emp_id = ? AND day = ? ORDER BY id LIMIT 1",
		string(emp), day.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r repo) InsertRecord(ctx context.Context, rec attendance.Record) (int64, error) {
	id, err := r.insertReturningID(ctx, `
		INSERT INTO attendance_records (emp_id, day, status, source_system, last_updated_by, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(rec.EmployeeID), rec.Day.String(), string(rec.Status),
		rec.SourceSystem, nullEmployee(rec.LastUpdatedBy), rec.LastUpdatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert attendance record: %w", err)
	}
	return id, nil
}

func (r repo) UpdateRecord(ctx context.Context, rec attendance.Record) error {
	res, err := r.exec(ctx, `
		UPDATE attendance_records
		SET status = ?, source_system = ?, last_updated_by = ?, last_updated_at = ?
		WHERE id = ?`,
		string(rec.Status), rec.SourceSystem, nullEmployee(rec.LastUpdatedBy),
		rec.LastUpdatedAt.UTC(), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update attendance record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attendance record %d: %w", rec.ID, attendance.ErrNotFound)
	}
	return nil
}

func (r repo) ListRecords(ctx context.Context, emp attendance.EmployeeID, from, to attendance.Day) ([]attendance.Record, error) {
	rows, err := r.query(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE emp_id = ? AND day >= ? AND day <= ?
		ORDER BY day ASC, id ASC`,
		string(emp), from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance records: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r repo) CountRecordsByStatus(ctx context.Context, day attendance.Day, status attendance.Status) (int, error) {
	var n int
	err := r.queryRow(ctx,
		"SELECT COUNT(*) FROM attendance_records WHERE day = ? AND status = ?",
		day.String(), string(status)).Scan(&n)
	return n, err
}

func scanRecord(sc scanner) (attendance.Record, error) {
	var (
		rec       attendance.Record
		emp, day  string
		status    string
		updatedBy sql.NullString
		updatedAt time.Time
	)
	if err := sc.Scan(&rec.ID, &emp, &day, &status, &rec.SourceSystem, &updatedBy, &updatedAt); err != nil {
		return rec, err
	}
	d, err := attendance.ParseDay(day)
	if err != nil {
		return rec, fmt.Errorf("corrupt day %q on record %d: %w", day, rec.ID, err)
	}
	rec.EmployeeID = attendance.EmployeeID(emp)
	rec.Day = d
	rec.Status = attendance.Status(status)
	rec.LastUpdatedBy = employeePtr(updatedBy)
	rec.LastUpdatedAt = updatedAt.UTC()
	return rec, nil
}
