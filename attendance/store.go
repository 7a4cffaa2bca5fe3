/*
store.go - Persistence interfaces for the attendance engine

PURPOSE:
  Defines the boundary between workflow logic and the database. The engine
  only talks to these interfaces; store/sqlstore provides the SQL
  implementation and attendance/store an in-memory one for tests.

KEY INTERFACES:
  Directory:    Employee lookups
  LedgerStore:  Attendance records keyed by (employee, day)
  RequestStore: Change requests
  AuditLog:     Append-only request trail
  Repository:   All of the above, as seen inside or outside a transaction
  TxStore:      Repository plus WithTx for atomic multi-table writes

MISSING ROWS:
  Getters return (nil, nil) when the row does not exist. Callers decide
  whether absence is an error.

TRANSACTIONS:
  WithTx runs fn against a Repository bound to one transaction. If fn
  returns an error every write made through that Repository is rolled
  back; otherwise all of them commit together. This is what pairs every
  request transition with its audit event.

SEE ALSO:
  - store/sqlstore: SQLite / PostgreSQL implementation
  - attendance/store/memory.go: In-memory implementation
*/
package attendance

import (
	"context"
	"time"
)

// Directory reads and writes employees.
type Directory interface {
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	SaveEmployee(ctx context.Context, emp Employee) error
	CountEmployees(ctx context.Context) (int, error)
}

// LedgerStore persists attendance records.
type LedgerStore interface {
	// GetRecord returns the record for (emp, day) or nil.
	GetRecord(ctx context.Context, emp EmployeeID, day Day) (*Record, error)

	// InsertRecord creates a record and returns its ID.
	InsertRecord(ctx context.Context, rec Record) (int64, error)

	// UpdateRecord overwrites status, source and audit fields of an existing record.
	UpdateRecord(ctx context.Context, rec Record) error

	// ListRecords returns records for emp in [from, to], ordered by day ascending.
	ListRecords(ctx context.Context, emp EmployeeID, from, to Day) ([]Record, error)

	// CountRecordsByStatus counts records on day with the given status.
	CountRecordsByStatus(ctx context.Context, day Day, status Status) (int, error)
}

// RequestFilter narrows ListRequests. Zero values match everything.
type RequestFilter struct {
	EmployeeID EmployeeID
	Status     RequestStatus
	Limit      int
}

// RequestStore persists change requests.
type RequestStore interface {
	InsertRequest(ctx context.Context, req Request) (RequestID, error)
	GetRequest(ctx context.Context, id RequestID) (*Request, error)
	UpdateRequestStatus(ctx context.Context, id RequestID, status RequestStatus, updatedAt time.Time) error

	// ListRequests returns matching requests, newest first.
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)

	// DeleteRequest removes a request and, by cascade, its audit events.
	DeleteRequest(ctx context.Context, id RequestID) error
}

// AuditLog stores audit events. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, ev AuditEvent) (int64, error)

	// ListAudit returns a request's events in insertion order.
	ListAudit(ctx context.Context, id RequestID) ([]AuditEvent, error)
}

// Repository is the full storage surface.
type Repository interface {
	Directory
	LedgerStore
	RequestStore
	AuditLog
}

// TxStore wraps Repository with transaction support.
type TxStore interface {
	Repository

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Repository) error) error
}
