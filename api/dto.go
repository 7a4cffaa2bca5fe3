/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  attendance domain types. Field names follow the public contract
  (emp_id, date_start, approver_emp_id, ...).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Small fixed-shape replies

VALIDATION:
  Request types carry go-playground/validator tags. Failures are reported
  as 422 with a field -> tag map in "details".

OPTIONAL FIELDS:
  Optional values are pointers and encode as JSON null.

SEE ALSO:
  - handlers.go: Uses these types
  - attendance/types.go: Domain types
*/
package api

import (
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

// CreateRequestRequest files an attendance change request.
type CreateRequestRequest struct {
	EmpID          string  `json:"emp_id" validate:"required,max=32"`
	RequestType    string  `json:"request_type" validate:"required,max=32"`
	DateStart      string  `json:"date_start" validate:"required"`
	DateEnd        string  `json:"date_end" validate:"required"`
	CurrentStatus  *string `json:"current_status" validate:"omitempty,max=32"`
	DesiredStatus  *string `json:"desired_status" validate:"omitempty,max=32"`
	ReasonCategory *string `json:"reason_category" validate:"omitempty,max=32"`
	ReasonText     *string `json:"reason_text"`
}

// RequestActionRequest approves or rejects a request.
type RequestActionRequest struct {
	ActorEmpID string  `json:"actor_emp_id" validate:"required,max=32"`
	Comment    *string `json:"comment"`
}

// MarkAttendanceRequest marks presence. Date is YYYY-MM-DD, default today.
type MarkAttendanceRequest struct {
	EmpID string `json:"emp_id" validate:"required,max=32"`
	Date  string `json:"date"`
}

// SimulationRequest switches the mode. An empty or unknown state is
// rejected by the mode switch, not by validation.
type SimulationRequest struct {
	State string `json:"state"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	EmpID        string  `json:"emp_id"`
	Name         string  `json:"name"`
	Location     *string `json:"location"`
	CostCenter   *string `json:"cost_center"`
	Email        *string `json:"email"`
	Device       *string `json:"device"`
	ManagerEmpID *string `json:"manager_emp_id"`
}

// AttendanceRecordDTO is one ledger row.
type AttendanceRecordDTO struct {
	ID            int64   `json:"id"`
	EmpID         string  `json:"emp_id"`
	Day           string  `json:"day"`
	Status        string  `json:"status"`
	SourceSystem  string  `json:"source_system"`
	LastUpdatedBy *string `json:"last_updated_by"`
	LastUpdatedAt string  `json:"last_updated_at"`
}

// RequestDTO represents a change request.
type RequestDTO struct {
	ID             int64   `json:"id"`
	EmpID          string  `json:"emp_id"`
	RequestType    string  `json:"request_type"`
	DateStart      string  `json:"date_start"`
	DateEnd        string  `json:"date_end"`
	CurrentStatus  *string `json:"current_status"`
	DesiredStatus  *string `json:"desired_status"`
	ReasonCategory string  `json:"reason_category"`
	ReasonText     *string `json:"reason_text"`
	ApproverEmpID  *string `json:"approver_emp_id"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// AuditEventDTO is one audit trail entry.
type AuditEventDTO struct {
	ID         int64   `json:"id"`
	RequestID  int64   `json:"request_id"`
	ActorEmpID *string `json:"actor_emp_id"`
	Action     string  `json:"action"`
	Comment    *string `json:"comment"`
	CreatedAt  string  `json:"created_at"`
}

// SummaryDTO aggregates an employee's ledger over a window.
type SummaryDTO struct {
	EmpID       string         `json:"emp_id"`
	Start       string         `json:"start"`
	End         string         `json:"end"`
	Counts      map[string]int `json:"counts"`
	Total       int            `json:"total"`
	PresentRate string         `json:"present_rate"` // percent, one decimal
}

type SyncResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID int64  `json:"request_id"`
}

type MarkResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type SimulationResponse struct {
	State string `json:"state"`
}

type VersionResponse struct {
	Version     string   `json:"version"`
	Features    []string `json:"features"`
	LastUpdated string   `json:"last_updated"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Detail  string `json:"detail"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmployeeDTO(e attendance.Employee) EmployeeDTO {
	return EmployeeDTO{
		EmpID:        string(e.ID),
		Name:         e.Name,
		Location:     e.Location,
		CostCenter:   e.CostCenter,
		Email:        e.Email,
		Device:       e.Device,
		ManagerEmpID: idString(e.ManagerID),
	}
}

func toRecordDTO(r attendance.Record) AttendanceRecordDTO {
	return AttendanceRecordDTO{
		ID:            r.ID,
		EmpID:         string(r.EmployeeID),
		Day:           r.Day.String(),
		Status:        string(r.Status),
		SourceSystem:  r.SourceSystem,
		LastUpdatedBy: idString(r.LastUpdatedBy),
		LastUpdatedAt: formatTime(r.LastUpdatedAt),
	}
}

func toRecordDTOs(records []attendance.Record) []AttendanceRecordDTO {
	dtos := make([]AttendanceRecordDTO, len(records))
	for i, r := range records {
		dtos[i] = toRecordDTO(r)
	}
	return dtos
}

func toRequestDTO(r attendance.Request) RequestDTO {
	return RequestDTO{
		ID:             int64(r.ID),
		EmpID:          string(r.EmployeeID),
		RequestType:    string(r.Type),
		DateStart:      r.DateStart.String(),
		DateEnd:        r.DateEnd.String(),
		CurrentStatus:  statusString(r.CurrentStatus),
		DesiredStatus:  statusString(r.DesiredStatus),
		ReasonCategory: string(r.ReasonCategory),
		ReasonText:     r.ReasonText,
		ApproverEmpID:  idString(r.ApproverID),
		Status:         string(r.Status),
		CreatedAt:      formatTime(r.CreatedAt),
		UpdatedAt:      formatTime(r.UpdatedAt),
	}
}

func toRequestDTOs(requests []attendance.Request) []RequestDTO {
	dtos := make([]RequestDTO, len(requests))
	for i, r := range requests {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func toAuditDTOs(events []attendance.AuditEvent) []AuditEventDTO {
	dtos := make([]AuditEventDTO, len(events))
	for i, ev := range events {
		dtos[i] = AuditEventDTO{
			ID:         ev.ID,
			RequestID:  int64(ev.RequestID),
			ActorEmpID: idString(ev.ActorID),
			Action:     string(ev.Action),
			Comment:    ev.Comment,
			CreatedAt:  formatTime(ev.CreatedAt),
		}
	}
	return dtos
}

func toSummaryDTO(s attendance.Summary) SummaryDTO {
	counts := make(map[string]int, len(s.Counts))
	for st, n := range s.Counts {
		counts[string(st)] = n
	}
	return SummaryDTO{
		EmpID:       string(s.EmployeeID),
		Start:       s.From.String(),
		End:         s.To.String(),
		Counts:      counts,
		Total:       s.Total,
		PresentRate: s.PresentRate.StringFixed(1),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func idString(id *attendance.EmployeeID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func statusString(st *attendance.Status) *string {
	if st == nil {
		return nil
	}
	s := string(*st)
	return &s
}
