/*
handlers_test.go - HTTP tests for the JSON API

Drives the router end to end over a SQLite :memory: store with a fixed
clock (Wednesday 2026-03-04, 10:00 UTC).
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var fixedNow = time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)

type testServer struct {
	handler *api.Handler
	router  http.Handler
	store   *sqlstore.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	mgr := attendance.EmployeeID("M1")
	require.NoError(t, store.SaveEmployee(ctx, attendance.Employee{ID: "M1", Name: "Vivek Sharma"}))
	require.NoError(t, store.SaveEmployee(ctx, attendance.Employee{
		ID:        "E1",
		Name:      "Ananya Gupta",
		Location:  attendance.StringPtr("Hyderabad"),
		ManagerID: &mgr,
	}))
	require.NoError(t, store.SaveEmployee(ctx, attendance.Employee{ID: "E2", Name: "Rohan Das"}))

	h := api.NewHandler(store, api.Options{
		Location:      time.UTC,
		AdminUsername: "admin",
		AdminPassword: "secret",
		DemoEmployee:  "E1",
	})
	h.SetClock(func() time.Time { return fixedNow })

	return &testServer{handler: h, router: api.NewRouter(h, nil), store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[api.ErrorResponse](t, rec).Detail
}

func (s *testServer) createRequest(t *testing.T, emp, start, end, desired string) api.RequestDTO {
	t.Helper()
	body := map[string]any{
		"emp_id":         emp,
		"request_type":   "CORRECT_MARKING",
		"date_start":     start,
		"date_end":       end,
		"current_status": "ABSENT",
		"reason_text":    "forgot to tap in",
	}
	if desired != "" {
		body["desired_status"] = desired
	}
	rec := s.do(t, http.MethodPost, "/attendance-requests", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[api.RequestDTO](t, rec)
}

// =============================================================================
// SERVICE AND EMPLOYEES
// =============================================================================

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeBody[api.VersionResponse](t, rec)
	assert.Equal(t, api.Version, v.Version)
	assert.Contains(t, v.Features, "atomicwork_sync")
}

func TestEmployees(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/employees/E1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	emp := decodeBody[api.EmployeeDTO](t, rec)
	assert.Equal(t, "Ananya Gupta", emp.Name)
	assert.Equal(t, "M1", *emp.ManagerEmpID)

	rec = s.do(t, http.MethodGet, "/employees/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Employee not found", detail(t, rec))

	rec = s.do(t, http.MethodGet, "/employees/E1/manager", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "M1", decodeBody[api.EmployeeDTO](t, rec).EmpID)

	rec = s.do(t, http.MethodGet, "/employees/E2/manager", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Manager not configured for employee", detail(t, rec))

	rec = s.do(t, http.MethodGet, "/api/employees-list", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]api.EmployeeDTO](t, rec), 3)
}

// =============================================================================
// CHANGE REQUEST WORKFLOW
// =============================================================================

func TestRequestWorkflow_ApproveApplies(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: A three-day correction routed to M1
	created := s.createRequest(t, "E1", "2026-03-02", "2026-03-04", "PRESENT")
	assert.Equal(t, "PENDING_APPROVAL", created.Status)
	assert.Equal(t, "M1", *created.ApproverEmpID)
	assert.Equal(t, "OTHER", created.ReasonCategory)
	path := "/attendance-requests/" + itoa(created.ID)

	// WHEN: Someone other than the approver tries
	rec := s.do(t, http.MethodPost, path+"/approve", map[string]any{"actor_emp_id": "E2"})

	// THEN: Forbidden
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Only the configured approver can approve", detail(t, rec))

	// WHEN: The manager approves
	rec = s.do(t, http.MethodPost, path+"/approve", map[string]any{"actor_emp_id": "M1", "comment": "ok"})

	// THEN: Applied, with three ledger rows and a three-event trail
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "APPLIED", decodeBody[api.RequestDTO](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/attendance?emp_id=E1&start=2026-03-01&end=2026-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decodeBody[[]api.AttendanceRecordDTO](t, rec)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "PRESENT", row.Status)
		assert.Equal(t, "ATOMICWORK", row.SourceSystem)
		assert.Equal(t, "M1", *row.LastUpdatedBy)
	}
	assert.Equal(t, "2026-03-02", rows[0].Day)

	rec = s.do(t, http.MethodGet, path+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody[[]api.AuditEventDTO](t, rec)
	require.Len(t, events, 3)
	assert.Equal(t, "REQUEST_CREATED", events[0].Action)
	assert.Equal(t, "APPROVED", events[1].Action)
	assert.Equal(t, "APPLIED", events[2].Action)
	assert.Equal(t, attendance.AppliedComment, *events[2].Comment)

	// AND: A second approval conflicts
	rec = s.do(t, http.MethodPost, path+"/approve", map[string]any{"actor_emp_id": "M1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Cannot approve request in status APPLIED", detail(t, rec))
}

func TestRequestWorkflow_Reject(t *testing.T) {
	s := newTestServer(t)
	created := s.createRequest(t, "E1", "2026-03-02", "2026-03-02", "PRESENT")
	path := "/attendance-requests/" + itoa(created.ID)

	rec := s.do(t, http.MethodPost, path+"/reject", map[string]any{"actor_emp_id": "M1", "comment": "no"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "REJECTED", decodeBody[api.RequestDTO](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/attendance?emp_id=E1&start=2026-03-01&end=2026-03-31", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodPost, path+"/reject", map[string]any{"actor_emp_id": "M1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRequestWorkflow_InvertedRangeFails(t *testing.T) {
	s := newTestServer(t)
	created := s.createRequest(t, "E1", "2026-03-04", "2026-03-02", "PRESENT")
	path := "/attendance-requests/" + itoa(created.ID)

	rec := s.do(t, http.MethodPost, path+"/approve", map[string]any{"actor_emp_id": "M1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "date_end must be >= date_start", detail(t, rec))

	rec = s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "FAILED", decodeBody[api.RequestDTO](t, rec).Status)
}

func TestRequestWorkflow_NoApproverAnyActor(t *testing.T) {
	s := newTestServer(t)
	created := s.createRequest(t, "E2", "2026-03-02", "2026-03-02", "")
	assert.Nil(t, created.ApproverEmpID)

	rec := s.do(t, http.MethodPost, "/attendance-requests/"+itoa(created.ID)+"/approve", map[string]any{"actor_emp_id": "ANYONE"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "APPLIED", decodeBody[api.RequestDTO](t, rec).Status)
	rec = s.do(t, http.MethodGet, "/attendance?emp_id=E2&start=2026-03-01&end=2026-03-31", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreateRequest_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/attendance-requests", `{"emp_id": "E1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	details := decodeBody[struct {
		Details map[string]string `json:"details"`
	}](t, rec).Details
	assert.Equal(t, "required", details["request_type"])
	assert.Equal(t, "required", details["date_start"])

	rec = s.do(t, http.MethodPost, "/attendance-requests", `not json`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/attendance-requests", map[string]any{
		"emp_id": "E1", "request_type": "UNLOCK", "date_start": "04/03/2026", "date_end": "2026-03-04",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/attendance-requests", map[string]any{
		"emp_id": "GHOST", "request_type": "UNLOCK", "date_start": "2026-03-04", "date_end": "2026-03-04",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRequest_EmptyStringsRoundTrip(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: A request with empty current status, desired status and reason
	rec := s.do(t, http.MethodPost, "/attendance-requests", map[string]any{
		"emp_id":         "E1",
		"request_type":   "UNLOCK",
		"date_start":     "2026-03-02",
		"date_end":       "2026-03-02",
		"current_status": "",
		"desired_status": "",
		"reason_text":    "",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[api.RequestDTO](t, rec)

	// WHEN: It is fetched
	rec = s.do(t, http.MethodGet, "/attendance-requests/"+itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decodeBody[api.RequestDTO](t, rec)

	// THEN: Every field matches the create reply
	assert.Equal(t, created, fetched)
	require.NotNil(t, fetched.CurrentStatus)
	assert.Equal(t, "", *fetched.CurrentStatus)
	require.NotNil(t, fetched.ReasonText)
	assert.Equal(t, "", *fetched.ReasonText)
	assert.Nil(t, fetched.DesiredStatus)

	// AND: An empty desired status approves as a no-op
	rec = s.do(t, http.MethodPost, "/attendance-requests/"+itoa(created.ID)+"/approve", map[string]any{"actor_emp_id": "M1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "APPLIED", decodeBody[api.RequestDTO](t, rec).Status)
	rec = s.do(t, http.MethodGet, "/attendance?emp_id=E1&start=2026-03-01&end=2026-03-31", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreateRequest_RangeTooLong(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/attendance-requests", map[string]any{
		"emp_id": "E1", "request_type": "UNLOCK", "date_start": "1900-01-01", "date_end": "9999-12-31",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "date range must not exceed 366 days", detail(t, rec))
}

func TestRequests_ListAndDelete(t *testing.T) {
	s := newTestServer(t)
	first := s.createRequest(t, "E1", "2026-03-02", "2026-03-02", "PRESENT")
	second := s.createRequest(t, "E2", "2026-03-03", "2026-03-03", "PRESENT")

	rec := s.do(t, http.MethodGet, "/attendance-requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]api.RequestDTO](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	rec = s.do(t, http.MethodGet, "/attendance-requests?emp_id=E1&status=pending_approval", nil)
	list = decodeBody[[]api.RequestDTO](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	rec = s.do(t, http.MethodDelete, "/attendance-requests/"+itoa(first.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/attendance-requests/"+itoa(first.ID)+"/audit", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Request not found", detail(t, rec))

	rec = s.do(t, http.MethodGet, "/attendance-requests/abc", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// =============================================================================
// EXTERNAL SYNC
// =============================================================================

func TestSync_DoubleEncodedPayload(t *testing.T) {
	s := newTestServer(t)
	inner := `{"emp_id":"E1","date":"03/03/2026","status":"PRESENT","reason":"VPN outage","approval_note":"Approved by M1"}`
	outer, err := json.Marshal(inner)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/atomicwork/sync-attendance", string(outer))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[api.SyncResponse](t, rec)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Synced successfully", resp.Message)

	rec = s.do(t, http.MethodGet, "/attendance?emp_id=E1&start=2026-03-03&end=2026-03-03", nil)
	rows := decodeBody[[]api.AttendanceRecordDTO](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "ATOMICWORK", rows[0].SourceSystem)
	assert.Equal(t, "ATOMICWORK", *rows[0].LastUpdatedBy)

	rec = s.do(t, http.MethodGet, "/attendance-requests/"+itoa(resp.RequestID), nil)
	req := decodeBody[api.RequestDTO](t, rec)
	assert.Equal(t, "ATOMICWORK_SYNC", req.RequestType)
	assert.Equal(t, "APPLIED", req.Status)
	assert.Equal(t, "ATOMICWORK_SYSTEM", *req.ApproverEmpID)
}

func TestSync_Errors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/atomicwork/sync-attendance", map[string]any{
		"emp_id": "GHOST", "date": "2026-03-03", "status": "PRESENT", "reason": "r", "approval_note": "n",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/atomicwork/sync-attendance", `[1,2,3]`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/atomicwork/sync-attendance", map[string]any{"emp_id": "E1", "date": "2026-03-03"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/atomicwork/sync-attendance", map[string]any{
		"emp_id": "E1", "date": "someday", "status": "PRESENT",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// =============================================================================
// MARKING AND SIMULATION
// =============================================================================

func TestMarkAttendance(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/mark-attendance", map[string]any{"emp_id": "E1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"success","message":"Marked present"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/attendance?emp_id=E1&start=2026-03-04&end=2026-03-04", nil)
	rows := decodeBody[[]api.AttendanceRecordDTO](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "MOBILE_APP", rows[0].SourceSystem)

	cases := []struct {
		name   string
		body   map[string]any
		status int
		detail string
	}{
		{"unknown employee", map[string]any{"emp_id": "GHOST"}, http.StatusNotFound, "Employee not found"},
		{"bad date", map[string]any{"emp_id": "E1", "date": "04-03-2026"}, http.StatusBadRequest, "Invalid date format"},
		{"saturday", map[string]any{"emp_id": "E1", "date": "2026-03-07"}, http.StatusBadRequest, "HOLIDAY_BLOCK"},
		{"yesterday", map[string]any{"emp_id": "E1", "date": "2026-03-03"}, http.StatusBadRequest, "PAST_DATE_BLOCK"},
		{"tomorrow", map[string]any{"emp_id": "E1", "date": "2026-03-05"}, http.StatusBadRequest, "FUTURE_DATE_BLOCK"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/mark-attendance", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.detail, detail(t, rec))
		})
	}
}

func TestSimulation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/simulate", nil)
	assert.JSONEq(t, `{"state":"NORMAL"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/simulate", map[string]any{"state": "BOGUS"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid state", detail(t, rec))

	// WHEN: Lockout is switched on
	rec = s.do(t, http.MethodPost, "/api/simulate", map[string]any{"state": "LOCKOUT"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"LOCKOUT"}`, rec.Body.String())

	// THEN: Even a valid same-day mark is blocked
	rec = s.do(t, http.MethodPost, "/api/mark-attendance", map[string]any{"emp_id": "E1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "LOCKOUT_BLOCK", detail(t, rec))

	// WHEN: Restrictions are unlocked, a Saturday is still not today
	s.do(t, http.MethodPost, "/api/simulate", map[string]any{"state": "UNLOCK_RESTRICTION"})
	rec = s.do(t, http.MethodPost, "/api/mark-attendance", map[string]any{"emp_id": "E1", "date": "2026-03-07"})
	assert.Equal(t, "FUTURE_DATE_BLOCK", detail(t, rec))
}

func TestSimulation_EmptyStateIsInvalid(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/simulate", map[string]any{"state": "HOLIDAY"})

	for _, body := range []string{`{"state":""}`, `{}`} {
		rec := s.do(t, http.MethodPost, "/api/simulate", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Invalid state", detail(t, rec))
	}

	rec := s.do(t, http.MethodGet, "/api/simulate", nil)
	assert.JSONEq(t, `{"state":"HOLIDAY"}`, rec.Body.String())
}

func TestSummary(t *testing.T) {
	s := newTestServer(t)
	s.createRequest(t, "E1", "2026-03-02", "2026-03-04", "PRESENT")
	s.do(t, http.MethodPost, "/attendance-requests/1/approve", map[string]any{"actor_emp_id": "M1"})
	s.do(t, http.MethodPost, "/api/atomicwork/sync-attendance", map[string]any{
		"emp_id": "E1", "date": "2026-03-03", "status": "ABSENT", "reason": "r", "approval_note": "n",
	})

	rec := s.do(t, http.MethodGet, "/employees/E1/summary?start=2026-03-01&end=2026-03-31", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decodeBody[api.SummaryDTO](t, rec)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Counts["PRESENT"])
	assert.Equal(t, 1, sum.Counts["ABSENT"])
	assert.Equal(t, "66.7", sum.PresentRate)

	rec = s.do(t, http.MethodGet, "/employees/GHOST/summary", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAttendance_BadQuery(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/attendance?emp_id=E1&start=2026-03-01", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodGet, "/attendance?start=2026-03-01&end=2026-03-02", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodGet, "/attendance?emp_id=E1&start=2026-03-05&end=2026-03-01", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
