/*
handlers.go - HTTP API handlers for the attendance service

PURPOSE:
  Exposes the attendance engine via a JSON API. Handles HTTP
  request/response, JSON serialization and validation, and delegates to
  the attendance package.

ENDPOINTS:
  Service:
    GET    /health                           Liveness
    GET    /api/version                      Version and feature list

  Employees:
    GET    /employees/{id}                   Employee profile
    GET    /employees/{id}/manager           Configured manager
    GET    /employees/{id}/summary           Status counts over a window
    GET    /api/employees-list               All employees

  Attendance:
    GET    /attendance?emp_id&start&end      Ledger rows in range
    POST   /api/mark-attendance              Mobile check-in
    POST   /api/atomicwork/sync-attendance   Pre-approved external change

  Change requests:
    GET    /attendance-requests              List (emp_id, status, limit)
    POST   /attendance-requests              Create
    GET    /attendance-requests/{id}         Fetch
    DELETE /attendance-requests/{id}         Delete with its audit trail
    GET    /attendance-requests/{id}/audit   Audit trail
    POST   /attendance-requests/{id}/approve Approve and apply
    POST   /attendance-requests/{id}/reject  Reject

  Simulation:
    GET    /api/simulate                     Current mode
    POST   /api/simulate                     Switch mode

ERROR HANDLING:
  Errors are returned as {"detail": ..., "details": ...}:
  - 400: Invalid input, marking blocks (detail = block code), apply
         failures caused by bad input
  - 403: Actor is not the configured approver
  - 404: Employee or request not found
  - 409: Request not in an actionable state
  - 422: Malformed body or query, validation failures
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - pages.go: Server-rendered mobile, simulation and admin pages
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/attendance-engine/attendance"
	"go.uber.org/zap"
)

// Version is reported by GET /api/version.
const Version = "1.2.0"

var versionFeatures = []string{"atomicwork_sync", "audit_logs", "employee_profile_ui", "simulation", "admin_console"}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options configures a Handler.
type Options struct {
	Calendar      *attendance.HolidayCalendar
	Mode          *attendance.ModeSwitch
	Location      *time.Location
	Logger        *zap.Logger
	AdminUsername string
	AdminPassword string
	DemoEmployee  attendance.EmployeeID
	SessionTTL    time.Duration
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    attendance.TxStore
	Requests *attendance.RequestService
	Marking  *attendance.MarkingService
	Ledger   *attendance.Ledger
	Mode     *attendance.ModeSwitch
	Sessions *SessionStore
	Logger   *zap.Logger

	adminUsername string
	adminPassword string
	demoEmployee  attendance.EmployeeID

	validate *validator.Validate
	pages    *template.Template
}

// NewHandler wires the attendance services over store.
func NewHandler(store attendance.TxStore, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := opts.Mode
	if mode == nil {
		mode = attendance.NewModeSwitch(attendance.ModeNormal)
	}
	cal := opts.Calendar
	if cal == nil {
		cal = attendance.NewHolidayCalendar(attendance.DefaultHolidays()...)
	}
	demo := opts.DemoEmployee
	if demo == "" {
		demo = "E1001"
	}

	return &Handler{
		Store:         store,
		Requests:      attendance.NewRequestService(store, logger),
		Marking:       attendance.NewMarkingService(store, cal, mode, opts.Location, logger),
		Ledger:        attendance.NewLedger(store, nil),
		Mode:          mode,
		Sessions:      NewSessionStore(opts.SessionTTL, logger),
		Logger:        logger,
		adminUsername: opts.AdminUsername,
		adminPassword: opts.AdminPassword,
		demoEmployee:  demo,
		validate:      newValidator(),
		pages:         parsePages(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// SetClock pins every service clock. Used by tests and demos.
func (h *Handler) SetClock(now func() time.Time) {
	h.Requests.Now = now
	h.Marking.Now = now
	h.Ledger.Now = now
	h.Sessions.Now = now
}

// =============================================================================
// SERVICE ENDPOINTS
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version:     Version,
		Features:    versionFeatures,
		LastUpdated: formatTime(h.Requests.Now()),
	})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := attendance.LookupEmployee(r.Context(), h.Store, employeeParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// GetManager returns the employee's configured manager.
func (h *Handler) GetManager(w http.ResponseWriter, r *http.Request) {
	mgr, err := attendance.LookupManager(r.Context(), h.Store, employeeParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*mgr))
}

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSummary aggregates the employee's ledger. The window defaults to the
// 30 days ending today.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)
	if _, err := attendance.LookupEmployee(ctx, h.Store, id); err != nil {
		h.fail(w, err)
		return
	}

	end := h.Marking.Today()
	if v := r.URL.Query().Get("end"); v != "" {
		d, err := attendance.ParseDay(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "Invalid end date", nil)
			return
		}
		end = d
	}
	start := end.AddDays(-29)
	if v := r.URL.Query().Get("start"); v != "" {
		d, err := attendance.ParseDay(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "Invalid start date", nil)
			return
		}
		start = d
	}

	summary, err := h.Ledger.Summary(ctx, id, start, end)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// ListAttendance returns ledger rows for emp_id in [start, end].
// An inverted range yields an empty list.
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	emp := strings.TrimSpace(q.Get("emp_id"))
	if emp == "" {
		writeError(w, http.StatusUnprocessableEntity, "emp_id is required", nil)
		return
	}
	start, err := attendance.ParseDay(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "start must be a YYYY-MM-DD date", nil)
		return
	}
	end, err := attendance.ParseDay(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "end must be a YYYY-MM-DD date", nil)
		return
	}
	if end.Before(start) {
		writeJSON(w, http.StatusOK, []AttendanceRecordDTO{})
		return
	}

	records, err := h.Ledger.Range(r.Context(), attendance.EmployeeID(emp), start, end)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// MarkAttendance records a same-day check-in.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req MarkAttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	emp := attendance.EmployeeID(req.EmpID)

	if _, err := attendance.LookupEmployee(ctx, h.Store, emp); err != nil {
		h.fail(w, err)
		return
	}

	var target *attendance.Day
	if req.Date != "" {
		d, err := attendance.ParseDay(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format", nil)
			return
		}
		target = &d
	}

	if _, err := h.Marking.Mark(ctx, emp, target); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MarkResponse{Status: "success", Message: "Marked present"})
}

// SyncAttendance applies a pre-approved single-day change from the ITSM
// tool. The body may be a JSON object or a JSON string holding one.
func (h *Handler) SyncAttendance(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", nil)
		return
	}
	payload, err := attendance.DecodeSyncPayload(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		writeValidationError(w, err)
		return
	}
	in, err := payload.Input()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), map[string]string{"date": "date"})
		return
	}

	req, err := h.Requests.Sync(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{
		Status:    "success",
		Message:   "Synced successfully",
		RequestID: int64(req.ID),
	})
}

// =============================================================================
// CHANGE REQUEST HANDLERS
// =============================================================================

// CreateRequest files a new change request routed to the employee's manager.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body CreateRequestRequest
	if !h.decode(w, r, &body) {
		return
	}
	start, err := attendance.ParseDay(body.DateStart)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "date_start must be a YYYY-MM-DD date", nil)
		return
	}
	end, err := attendance.ParseDay(body.DateEnd)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "date_end must be a YYYY-MM-DD date", nil)
		return
	}

	in := attendance.CreateRequestInput{
		EmployeeID: attendance.EmployeeID(body.EmpID),
		Type:       attendance.RequestType(body.RequestType),
		DateStart:  start,
		DateEnd:    end,
		ReasonText: body.ReasonText,
	}
	in.CurrentStatus = (*attendance.Status)(body.CurrentStatus)
	// An empty desired status means none; Apply is then a no-op.
	if body.DesiredStatus != nil {
		in.DesiredStatus = attendance.StatusPtr(attendance.Status(*body.DesiredStatus))
	}
	if body.ReasonCategory != nil {
		in.ReasonCategory = attendance.ReasonCategory(*body.ReasonCategory)
	}

	req, err := h.Requests.Create(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(*req))
}

// ListRequests returns requests, newest first.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := attendance.RequestFilter{
		EmployeeID: attendance.EmployeeID(q.Get("emp_id")),
		Status:     attendance.RequestStatus(strings.ToUpper(q.Get("status"))),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusUnprocessableEntity, "limit must be a non-negative integer", nil)
			return
		}
		filter.Limit = n
	}

	requests, err := h.Requests.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// GetRequest returns a single request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestParam(w, r)
	if !ok {
		return
	}
	req, err := h.Requests.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// GetRequestAudit returns the audit trail in insertion order.
func (h *Handler) GetRequestAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := requestParam(w, r)
	if !ok {
		return
	}
	events, err := h.Requests.Audit(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTOs(events))
}

// DeleteRequest removes a request and its audit trail.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestParam(w, r)
	if !ok {
		return
	}
	if err := h.Requests.Delete(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApproveRequest approves and applies a request.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestParam(w, r)
	if !ok {
		return
	}
	var body RequestActionRequest
	if !h.decode(w, r, &body) {
		return
	}
	req, err := h.Requests.Approve(r.Context(), id, attendance.EmployeeID(body.ActorEmpID), body.Comment)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// RejectRequest rejects a request without touching the ledger.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestParam(w, r)
	if !ok {
		return
	}
	var body RequestActionRequest
	if !h.decode(w, r, &body) {
		return
	}
	req, err := h.Requests.Reject(r.Context(), id, attendance.EmployeeID(body.ActorEmpID), body.Comment)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// =============================================================================
// SIMULATION HANDLERS
// =============================================================================

func (h *Handler) GetSimulation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SimulationResponse{State: string(h.Mode.Get())})
}

// SetSimulation switches the process-wide simulation mode.
func (h *Handler) SetSimulation(w http.ResponseWriter, r *http.Request) {
	var body SimulationRequest
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.Mode.Set(attendance.SimulationMode(body.State)); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid state", nil)
		return
	}
	mode := h.Mode.Get()
	h.Logger.Info("simulation mode changed", zap.String("state", string(mode)))
	writeJSON(w, http.StatusOK, SimulationResponse{State: string(mode)})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string, details any) {
	writeJSON(w, status, ErrorResponse{Detail: detail, Details: details})
}

// writeValidationError reports validator failures as field -> tag.
func writeValidationError(w http.ResponseWriter, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		writeError(w, http.StatusUnprocessableEntity, "Invalid input", nil)
		return
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	writeError(w, http.StatusUnprocessableEntity, "Validation failed", fields)
}

// decode reads a JSON body into dst and validates it. It writes the 422
// reply itself and reports false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body", err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

// statusFor maps an engine error to an HTTP status and detail message.
func statusFor(err error) (int, string) {
	var applyErr *attendance.ApplyError
	if errors.As(err, &applyErr) {
		if attendance.IsClientError(applyErr.Cause) {
			return http.StatusBadRequest, applyErr.Cause.Error()
		}
		return http.StatusInternalServerError, "Failed to apply request"
	}

	var blocked *attendance.BlockedError
	switch {
	case errors.As(err, &blocked):
		return http.StatusBadRequest, string(blocked.Reason)
	case errors.Is(err, attendance.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, attendance.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, attendance.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, attendance.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// fail writes the mapped error reply. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.Error(err))
	}
	writeError(w, status, detail, nil)
}

func employeeParam(r *http.Request) attendance.EmployeeID {
	return attendance.EmployeeID(chi.URLParam(r, "id"))
}

// requestParam parses {id}. It writes a 422 and returns false when the
// value is not an integer.
func requestParam(w http.ResponseWriter, r *http.Request) (attendance.RequestID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Request id must be an integer", nil)
		return 0, false
	}
	return attendance.RequestID(id), true
}
