package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// REQUEST STORE (attendance.RequestStore interface)
// =============================================================================

const requestColumns = `id, emp_id, request_type, date_start, date_end, current_status, desired_status,
	reason_category, reason_text, approver_emp_id, status, created_at, updated_at`

func (s *Store) InsertRequest(ctx context.Context, req attendance.Request) (attendance.RequestID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().InsertRequest(ctx, req)
}

func (s *Store) GetRequest(ctx context.Context, id attendance.RequestID) (*attendance.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo().GetRequest(ctx, id)
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id attendance.RequestID, status attendance.RequestStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().UpdateRequestStatus(ctx, id, status, updatedAt)
}

// ListRequests returns matching requests, newest first.
func (s *Store) ListRequests(ctx context.Context, filter attendance.RequestFilter) ([]attendance.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo().ListRequests(ctx, filter)
}

// DeleteRequest removes a request; its audit events go with it.
func (s *Store) DeleteRequest(ctx context.Context, id attendance.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().DeleteRequest(ctx, id)
}

func (r repo) InsertRequest(ctx context.Context, req attendance.Request) (attendance.RequestID, error) {
	id, err := r.insertReturningID(ctx, `
		INSERT INTO attendance_change_requests
		(emp_id, request_type, date_start, date_end, current_status, desired_status,
		 reason_category, reason_text, approver_emp_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(req.EmployeeID), string(req.Type),
		req.DateStart.String(), req.DateEnd.String(),
		nullStatus(req.CurrentStatus), nullStatus(req.DesiredStatus),
		string(req.ReasonCategory), nullString(req.ReasonText),
		nullEmployee(req.ApproverID), string(req.Status),
		req.CreatedAt.UTC(), req.UpdatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert request: %w", err)
	}
	return attendance.RequestID(id), nil
}

func (r repo) GetRequest(ctx context.Context, id attendance.RequestID) (*attendance.Request, error) {
	row := r.queryRow(ctx, "SELECT "+requestColumns+" FROM attendance_change_requests WHERE id = ?", int64(id))
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r repo) UpdateRequestStatus(ctx context.Context, id attendance.RequestID, status attendance.RequestStatus, updatedAt time.Time) error {
	res, err := r.exec(ctx,
		"UPDATE attendance_change_requests SET status = ?, updated_at = ? WHERE id = ?",
		string(status), updatedAt.UTC(), int64(id))
	if err != nil {
		return fmt.Errorf("failed to update request %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("request %d: %w", id, attendance.ErrNotFound)
	}
	return nil
}

func (r repo) ListRequests(ctx context.Context, filter attendance.RequestFilter) ([]attendance.Request, error) {
	var (
		where []string
		args  []any
	)
	if filter.EmployeeID != "" {
		where = append(where, "emp_id = ?")
		args = append(args, string(filter.EmployeeID))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT " + requestColumns + " FROM attendance_change_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []attendance.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (r repo) DeleteRequest(ctx context.Context, id attendance.RequestID) error {
	_, err := r.exec(ctx, "DELETE FROM attendance_change_requests WHERE id = ?", int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete request %d: %w", id, err)
	}
	return nil
}

func scanRequest(sc scanner) (attendance.Request, error) {
	var (
		req                  attendance.Request
		id                   int64
		emp, reqType         string
		start, end           string
		current, desired     sql.NullString
		category, status     string
		reasonText, approver sql.NullString
		createdAt, updatedAt time.Time
	)
	err := sc.Scan(&id, &emp, &reqType, &start, &end, &current, &desired,
		&category, &reasonText, &approver, &status, &createdAt, &updatedAt)
	if err != nil {
		return req, err
	}

	if req.DateStart, err = attendance.ParseDay(start); err != nil {
		return req, fmt.Errorf("corrupt date_start on request %d: %w", id, err)
	}
	if req.DateEnd, err = attendance.ParseDay(end); err != nil {
		return req, fmt.Errorf("corrupt date_end on request %d: %w", id, err)
	}
	req.ID = attendance.RequestID(id)
	req.EmployeeID = attendance.EmployeeID(emp)
	req.Type = attendance.RequestType(reqType)
	req.CurrentStatus = statusPtr(current)
	req.DesiredStatus = statusPtr(desired)
	req.ReasonCategory = attendance.ReasonCategory(category)
	req.ReasonText = stringPtr(reasonText)
	req.ApproverID = employeePtr(approver)
	req.Status = attendance.RequestStatus(status)
	req.CreatedAt = createdAt.UTC()
	req.UpdatedAt = updatedAt.UTC()
	return req, nil
}

// =============================================================================
// AUDIT LOG (attendance.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, ev attendance.AuditEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().AppendAudit(ctx, ev)
}

// ListAudit returns a request's events in insertion order.
func (s *Store) ListAudit(ctx context.Context, id attendance.RequestID) ([]attendance.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo().ListAudit(ctx, id)
}

func (r repo) AppendAudit(ctx context.Context, ev attendance.AuditEvent) (int64, error) {
	id, err := r.insertReturningID(ctx, `
		INSERT INTO audit_events (request_id, actor_emp_id, action, comment, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		int64(ev.RequestID), nullEmployee(ev.ActorID), string(ev.Action),
		nullString(ev.Comment), ev.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append audit event: %w", err)
	}
	return id, nil
}

func (r repo) ListAudit(ctx context.Context, id attendance.RequestID) ([]attendance.AuditEvent, error) {
	rows, err := r.query(ctx, `
		SELECT id, request_id, actor_emp_id, action, comment, created_at
		FROM audit_events
		WHERE request_id = ?
		ORDER BY id ASC`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []attendance.AuditEvent
	for rows.Next() {
		var (
			ev        attendance.AuditEvent
			requestID int64
			actor     sql.NullString
			action    string
			comment   sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&ev.ID, &requestID, &actor, &action, &comment, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		ev.RequestID = attendance.RequestID(requestID)
		ev.ActorID = employeePtr(actor)
		ev.Action = attendance.Action(action)
		ev.Comment = stringPtr(comment)
		ev.CreatedAt = createdAt.UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}
