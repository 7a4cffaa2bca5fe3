/*
types.go - Core attendance domain types

PURPOSE:
  Defines employees, ledger records, change requests and audit events,
  plus the closed vocabularies (statuses, request types, actions) that
  flow between the workflow engine, the ledger and the HTTP layer.

KEY TYPES:
  Employee:    Person whose attendance is tracked; may report to a manager
  Record:      One ledger row per (employee, day)
  Request:     Attendance change request moving through the workflow
  AuditEvent:  Append-only trail entry tied to one request

RELATIONSHIPS:
  Employee.ManagerID is a lookup key only. The manager graph is assumed
  acyclic; nothing here walks it more than one hop.

SEE ALSO:
  - request.go: Workflow engine operating on Request
  - ledger.go: Upsert semantics for Record
*/
package attendance

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RequestID int64

// =============================================================================
// ATTENDANCE STATUS
// =============================================================================

// Status is the attendance state recorded for one employee on one day.
// The ledger stores whatever value a request or sync carries; the
// constants below are the vocabulary the service itself produces.
type Status string

const (
	StatusPresent   Status = "PRESENT"
	StatusAbsent    Status = "ABSENT"
	StatusLeave     Status = "LEAVE"
	StatusHoliday   Status = "HOLIDAY"
	StatusWeeklyOff Status = "WEEKLY_OFF"
	StatusUnknown   Status = "UNKNOWN"
)

// KnownStatuses lists the statuses reported in summaries, in display order.
var KnownStatuses = []Status{StatusPresent, StatusAbsent, StatusLeave, StatusHoliday, StatusWeeklyOff}

// =============================================================================
// REQUEST VOCABULARY
// =============================================================================

type RequestType string

const (
	RequestUnlock           RequestType = "UNLOCK"
	RequestCorrectMarking   RequestType = "CORRECT_MARKING"
	RequestHolidayException RequestType = "HOLIDAY_EXCEPTION"
	RequestAtomicworkSync   RequestType = "ATOMICWORK_SYNC" // synthetic, created by external sync only
)

type ReasonCategory string

const (
	ReasonMistake        ReasonCategory = "MISTAKE"
	ReasonHolidayWork    ReasonCategory = "HOLIDAY_WORK"
	ReasonSystemIssue    ReasonCategory = "SYSTEM_ISSUE"
	ReasonManagerOnLeave ReasonCategory = "MANAGER_ON_LEAVE"
	ReasonOther          ReasonCategory = "OTHER"
	ReasonAtomicwork     ReasonCategory = "ATOMICWORK"
)

// RequestStatus is the workflow state of a Request.
type RequestStatus string

const (
	RequestDraft           RequestStatus = "DRAFT"
	RequestPendingApproval RequestStatus = "PENDING_APPROVAL"
	RequestApproved        RequestStatus = "APPROVED"
	RequestApplied         RequestStatus = "APPLIED"
	RequestRejected        RequestStatus = "REJECTED"
	RequestFailed          RequestStatus = "FAILED"
)

// Actionable reports whether approve or reject may act on a request in s.
func (s RequestStatus) Actionable() bool {
	return s == RequestPendingApproval || s == RequestDraft
}

// Terminal reports whether s is an end state.
func (s RequestStatus) Terminal() bool {
	return s == RequestApplied || s == RequestRejected || s == RequestFailed
}

// Action names an audit event.
type Action string

const (
	ActionRequestCreated Action = "REQUEST_CREATED"
	ActionApproved       Action = "APPROVED"
	ActionApplied        Action = "APPLIED"
	ActionRejected       Action = "REJECTED"
	ActionFailed         Action = "FAILED"
	ActionSyncApplied    Action = "SYNC_APPLIED"
)

// Source tags and system actors written into the ledger and audit trail.
const (
	SourceDefault    = "SAP_MOCK"
	SourceAtomicwork = "ATOMICWORK"
	SourceMobileApp  = "MOBILE_APP"

	ActorAtomicwork       EmployeeID = "ATOMICWORK"
	ApproverAtomicworkSys EmployeeID = "ATOMICWORK_SYSTEM"

	AppliedComment = "Applied via Atomicwork"
)

// =============================================================================
// ENTITIES
// =============================================================================

// Employee is a person whose attendance is tracked.
type Employee struct {
	ID         EmployeeID
	Name       string
	Location   *string
	CostCenter *string
	Email      *string
	Device     *string
	ManagerID  *EmployeeID
}

// Record is the ledger row for one employee on one day.
type Record struct {
	ID            int64
	EmployeeID    EmployeeID
	Day           Day
	Status        Status
	SourceSystem  string
	LastUpdatedBy *EmployeeID
	LastUpdatedAt time.Time
}

// Request is an attendance change request.
type Request struct {
	ID             RequestID
	EmployeeID     EmployeeID
	Type           RequestType
	DateStart      Day
	DateEnd        Day
	CurrentStatus  *Status
	DesiredStatus  *Status
	ReasonCategory ReasonCategory
	ReasonText     *string
	ApproverID     *EmployeeID
	Status         RequestStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AuditEvent is one append-only entry in a request's trail.
type AuditEvent struct {
	ID        int64
	RequestID RequestID
	ActorID   *EmployeeID
	Action    Action
	Comment   *string
	CreatedAt time.Time
}

// =============================================================================
// HELPERS
// =============================================================================

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// EmployeePtr returns nil for the empty ID.
func EmployeePtr(id EmployeeID) *EmployeeID {
	if id == "" {
		return nil
	}
	return &id
}

// StatusPtr returns nil for the empty status.
func StatusPtr(s Status) *Status {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to value or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
