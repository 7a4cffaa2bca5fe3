package attendance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newRequestService(t *testing.T) (*attendance.RequestService, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	mgr := attendance.EmployeeID("M1")
	require.NoError(t, mem.SaveEmployee(ctx, attendance.Employee{ID: "M1", Name: "Rahul"}))
	require.NoError(t, mem.SaveEmployee(ctx, attendance.Employee{ID: "E1", Name: "Ananya", ManagerID: &mgr}))
	require.NoError(t, mem.SaveEmployee(ctx, attendance.Employee{ID: "E2", Name: "Vikram"}))

	svc := attendance.NewRequestService(mem, nil)
	clock := time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, mem
}

func correction(emp attendance.EmployeeID, start, end attendance.Day, desired attendance.Status) attendance.CreateRequestInput {
	return attendance.CreateRequestInput{
		EmployeeID:    emp,
		Type:          attendance.RequestCorrectMarking,
		DateStart:     start,
		DateEnd:       end,
		CurrentStatus: attendance.StatusPtr(attendance.StatusAbsent),
		DesiredStatus: attendance.StatusPtr(desired),
		ReasonText:    attendance.StringPtr("forgot to tap in"),
	}
}

func actions(events []attendance.AuditEvent) []attendance.Action {
	out := make([]attendance.Action, len(events))
	for i, ev := range events {
		out[i] = ev.Action
	}
	return out
}

var monday = attendance.NewDay(2026, time.March, 2)

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_RoutesToManagerAndAudits(t *testing.T) {
	svc, _ := newRequestService(t)
	ctx := context.Background()

	// WHEN: An employee with a manager files a request
	req, err := svc.Create(ctx, correction("E1", monday, monday, attendance.StatusPresent))
	require.NoError(t, err)

	// THEN: It is pending, routed to the manager, with default reason category
	assert.Equal(t, attendance.RequestPendingApproval, req.Status)
	assert.Equal(t, attendance.EmployeeID("M1"), attendance.Deref(req.ApproverID))
	assert.Equal(t, attendance.ReasonOther, req.ReasonCategory)

	// AND: Fetching it returns the same fields
	got, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.EmployeeID, got.EmployeeID)
	assert.Equal(t, req.Type, got.Type)
	assert.Equal(t, req.DateStart, got.DateStart)
	assert.Equal(t, req.DateEnd, got.DateEnd)
	assert.Equal(t, attendance.StatusPresent, attendance.Deref(got.DesiredStatus))
	assert.Equal(t, "forgot to tap in", attendance.Deref(got.ReasonText))

	// AND: Exactly one REQUEST_CREATED event by the requester
	events, err := svc.Audit(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, attendance.ActionRequestCreated, events[0].Action)
	assert.Equal(t, attendance.EmployeeID("E1"), attendance.Deref(events[0].ActorID))
	assert.Equal(t, "forgot to tap in", attendance.Deref(events[0].Comment))
}

func TestCreate_UnknownEmployee(t *testing.T) {
	svc, mem := newRequestService(t)

	_, err := svc.Create(context.Background(), correction("GHOST", monday, monday, attendance.StatusPresent))

	assert.True(t, attendance.IsNotFound(err))
	reqs, _ := mem.ListRequests(context.Background(), attendance.RequestFilter{})
	assert.Empty(t, reqs, "nothing persisted")
}

func TestCreate_AcceptsInvertedRange(t *testing.T) {
	svc, _ := newRequestService(t)

	req, err := svc.Create(context.Background(), correction("E1", monday.AddDays(2), monday, attendance.StatusPresent))

	require.NoError(t, err)
	assert.Equal(t, attendance.RequestPendingApproval, req.Status)
}

func TestCreate_RangeLengthCapped(t *testing.T) {
	svc, _ := newRequestService(t)
	ctx := context.Background()

	// GIVEN: A range exactly MaxRequestDays long is accepted
	last := monday.AddDays(attendance.MaxRequestDays - 1)
	_, err := svc.Create(ctx, correction("E1", monday, last, attendance.StatusPresent))
	require.NoError(t, err)

	// WHEN: The range is one day longer
	_, err = svc.Create(ctx, correction("E1", monday, last.AddDays(1), attendance.StatusPresent))

	// THEN: It is refused as invalid input before anything is stored
	assert.ErrorIs(t, err, attendance.ErrInvalidInput)
	assert.True(t, attendance.IsClientError(err))
	list, err := svc.List(ctx, attendance.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// =============================================================================
// APPROVE
// =============================================================================

func TestApprove_AppliesRangeToLedger(t *testing.T) {
	svc, mem := newRequestService(t)
	ctx := context.Background()

	// GIVEN: A request covering three days
	req, err := svc.Create(ctx, correction("E1", monday, monday.AddDays(2), attendance.StatusPresent))
	require.NoError(t, err)

	// WHEN: The manager approves
	out, err := svc.Approve(ctx, req.ID, "M1", attendance.StringPtr("ok"))

	// THEN: The request is applied with one event per transition
	require.NoError(t, err)
	assert.Equal(t, attendance.RequestApplied, out.Status)

	events, err := svc.Audit(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, []attendance.Action{
		attendance.ActionRequestCreated,
		attendance.ActionApproved,
		attendance.ActionApplied,
	}, actions(events))
	assert.Equal(t, "ok", attendance.Deref(events[1].Comment))
	assert.Equal(t, attendance.AppliedComment, attendance.Deref(events[2].Comment))

	// AND: Three ledger rows exist, tagged with the approver
	records, err := mem.ListRecords(ctx, "E1", monday, monday.AddDays(2))
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, attendance.StatusPresent, rec.Status)
		assert.Equal(t, attendance.SourceAtomicwork, rec.SourceSystem)
		assert.Equal(t, attendance.EmployeeID("M1"), attendance.Deref(rec.LastUpdatedBy))
	}
}

func TestApprove_UpdatesExistingRecords(t *testing.T) {
	svc, mem := newRequestService(t)
	ctx := context.Background()

	// GIVEN: An ABSENT record already on the day
	_, err := mem.InsertRecord(ctx, attendance.Record{EmployeeID: "E1", Day: monday, Status: attendance.StatusAbsent, SourceSystem: "SYSTEM_AUTO"})
	require.NoError(t, err)
	req, err := svc.Create(ctx, correction("E1", monday, monday, attendance.StatusPresent))
	require.NoError(t, err)

	// WHEN: Approved
	_, err = svc.Approve(ctx, req.ID, "M1", nil)
	require.NoError(t, err)

	// THEN: Still one row, now PRESENT
	records, err := mem.ListRecords(ctx, "E1", monday, monday)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, attendance.StatusPresent, records[0].Status)
}

func TestApprove_WithoutDesiredStatus_NoLedgerWrites(t *testing.T) {
	svc, mem := newRequestService(t)
	ctx := context.Background()

	// GIVEN: An UNLOCK request with no desired status
	in := correction("E1", monday, monday.AddDays(4), "")
	in.Type = attendance.RequestUnlock
	in.DesiredStatus = nil
	req, err := svc.Create(ctx, in)
	require.NoError(t, err)

	// WHEN: Approved
	out, err := svc.Approve(ctx, req.ID, "M1", nil)

	// THEN: Applied with no rows written
	require.NoError(t, err)
	assert.Equal(t, attendance.RequestApplied, out.Status)
	records, err := mem.ListRecords(ctx, "E1", monday, monday.AddDays(4))
	require.NoError(t, err)
	assert.Empty(t, records)

	events, err := svc.Audit(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, []attendance.Action{
		attendance.ActionRequestCreated,
		attendance.ActionApproved,
		attendance.ActionApplied,
	}, actions(events))
}

func TestApprove_NotFound(t *testing.T) {
	svc, _ := newRequestService(t)

	_, err := svc.Approve(context.Background(), 999, "M1", nil)

	assert.True(t, attendance.IsNotFound(err))
}

func TestApprove_WrongApprover(t *testing.T) {
	svc, _ := newRequestService(t)
	ctx := context.Background()
	req, err := svc.Create(ctx, correction("E1", monday, monday, attendance.StatusPresent))
	require.NoError(t, err)

	// WHEN: Someone other than the manager approves
	_, err = svc.Approve(ctx, req.ID, "E2", nil)

	// THEN: Forbidden and nothing changes
	assert.ErrorIs(t, err, attendance.ErrForbidden)
	assert.Equal(t, "Only the configured approver can approve", err.Error())

	got, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.RequestPendingApproval, got.Status)
	events, _ := svc.Audit(ctx, req.ID)
	assert.Len(t, events, 1)
}

func TestApprove_NoApproverAcceptsAnyActor(t *testing.T) {
	svc, _ := newRequestService(t)
	ctx := context.Background()

	// GIVEN: E2 has no manager, so the request has no approver
	req, err := svc.Create(ctx, correction("E2", monday, monday, attendance.StatusPresent))
	require.NoError(t, err)
	assert.Nil(t, req.ApproverID)

	// WHEN/THEN: Any actor may approve
	out, err := svc.Approve(ctx, req.ID, "ANYONE", nil)
	require.NoError(t, err)
	assert.Equal(t, attendance.RequestApplied, out.Status)
}

func TestApprove_TerminalStateConflicts(t *testing.T) {
	svc, _ := newRequestService(t)
	ctx := context.Background()
	req, err := svc.Create(ctx, correction("E1", monday, monday, attendance.StatusPresent))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, req.ID, "M1", nil)
	require.NoError(t, err)

	// WHEN: Approving or rejecting again
	_, err = svc.Approve(ctx, req.ID, "M1", nil)

	// THEN: Conflict naming the current state
	assert.ErrorIs(t, err, attendance.ErrConflict)
	assert.Equal(t, "Cannot approve request in status APPLIED", err.Error())

	_, err = svc.Reject(ctx, req.ID, "M1", nil)
	assert.ErrorIs(t, err, attendance.ErrConflict)

	events, _ := svc.Audit(ctx, req.ID)
	assert.Len(t, events, 3, "failed attempts add no events")
}

func TestApprove_InvertedRangeEndsFailed(t *testing.T) {
	svc, mem := newRequestService(t)
	ctx := context.Background()

	// GIVEN: A request whose end precedes its start
	req, err := svc.Create(ctx, correction("E1", monday.AddDays(2), monday, attendance.StatusPresent))
	require.NoError(t, err)

	// WHEN: Approved
	out, err := svc.Approve(ctx, req.ID, "M1", nil)

	// THEN: The error wraps both the apply failure and the range error
	require.Error(t, err)
	assert.ErrorIs(t, err, attendance.ErrApplyFailed)
	assert.ErrorIs(t, err, attendance.ErrInvalidRange)

	// AND: The FAILED state was committed with its audit trail
	require.NotNil(t, out)
	assert.Equal(t, attendance.RequestFailed, out.Status)
	got, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.RequestFailed, got.Status)

	events, err := svc.Audit(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, []attendance.Action{
		attendance.ActionRequestCreated,
		attendance.ActionApproved,
		attendance.ActionFailed,
	}, actions(events))
	assert.Equal(t, "date_end must be >= date_start", attendance.Deref(events[2].Comment))

	records, _ := mem.ListRecords(ctx, "E1", monday, monday.AddDays(2))
	assert.Empty(t, records)
}

func TestApprove_MidRangeFailureRollsBackWholeRange(t *testing.T) {
	svc, mem := newRequestService(t)
	ctx := context.Background()

	// GIVEN: The ledger refuses writes on the third day
	third := monday.AddDays(2)
	mem.FailRecordWrite = func(rec attendance.Record) error {
		if rec.Day.Equal(third) {
			return errors.New("ledger unavailable")
		}
		return nil
	}
	req, err := svc.Create(ctx, correction("E1", monday, monday.AddDays(4), attendance.StatusPresent))
	require.NoError(t, err)

	// WHEN: Approved
	out, err := svc.Approve(ctx, req.ID, "M1", nil)

	// THEN: FAILED and no day of the range was written
	assert.ErrorIs(t, err, attendance.ErrApplyFailed)
	assert.Equal(t, attendance.RequestFailed, out.Status)
	records, _ := mem.ListRecords(ctx, "E1", monday, monday.AddDays(4))
	assert.Empty(t, records)

	events, _ := svc.Audit(ctx, req.ID)
	require.Len(t, events, 3)
	assert.Contains(t, attendance.Deref(events[2].Comment), "ledger unavailable")
}

// =============================================================================
// REJECT
// =============================================================================

func TestReject_LeavesLedgerUntouched(t *testing.T) {
	svc, mem := newRequestService(t)
	ctx := context.Background()
	req, err := svc.Create(ctx, correction("E1", monday, monday, attendance.StatusPresent))
	require.NoError(t, err)

	out, err := svc.Reject(ctx, req.ID, "M1", attendance.StringPtr("no evidence"))

	require.NoError(t, err)
	assert.Equal(t, attendance.RequestRejected, out.Status)
	records, _ := mem.ListRecords(ctx, "E1", monday, monday)
	assert.Empty(t, records)

	events, _ := svc.Audit(ctx, req.ID)
	assert.Equal(t, []attendance.Action{attendance.ActionRequestCreated, attendance.ActionRejected}, actions(events))
	assert.Equal(t, "no evidence", attendance.Deref(events[1].Comment))
}

func TestReject_WrongApprover(t *testing.T) {
	svc, _ := newRequestService(t)
	ctx := context.Background()
	req, err := svc.Create(ctx, correction("E1", monday, monday, attendance.StatusPresent))
	require.NoError(t, err)

	_, err = svc.Reject(ctx, req.ID, "E2", nil)

	assert.ErrorIs(t, err, attendance.ErrForbidden)
	assert.Equal(t, "Only the configured approver can reject", err.Error())
}

// =============================================================================
// SYNC
// =============================================================================

func TestSync_TwiceConvergesLedgerAndGrowsAudit(t *testing.T) {
	svc, mem := newRequestService(t)
	ctx := context.Background()

	// WHEN: Two syncs for the same day with different statuses
	first, err := svc.Sync(ctx, attendance.SyncInput{EmployeeID: "E1", Day: monday, Status: attendance.StatusLeave, Reason: "sick", ApprovalNote: "approved in ITSM"})
	require.NoError(t, err)
	second, err := svc.Sync(ctx, attendance.SyncInput{EmployeeID: "E1", Day: monday, Status: attendance.StatusPresent, Reason: "worked", ApprovalNote: "corrected"})
	require.NoError(t, err)

	// THEN: One ledger row holding the second status
	records, err := mem.ListRecords(ctx, "E1", monday, monday)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, attendance.StatusPresent, records[0].Status)
	assert.Equal(t, attendance.SourceAtomicwork, records[0].SourceSystem)
	assert.Equal(t, attendance.ActorAtomicwork, attendance.Deref(records[0].LastUpdatedBy))

	// AND: Two synthetic applied requests, one SYNC_APPLIED event each
	for _, r := range []*attendance.Request{first, second} {
		assert.Equal(t, attendance.RequestAtomicworkSync, r.Type)
		assert.Equal(t, attendance.RequestApplied, r.Status)
		assert.Equal(t, attendance.ApproverAtomicworkSys, attendance.Deref(r.ApproverID))
		assert.Equal(t, attendance.StatusUnknown, attendance.Deref(r.CurrentStatus))
		assert.Equal(t, attendance.ReasonAtomicwork, r.ReasonCategory)

		events, err := svc.Audit(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, attendance.ActionSyncApplied, events[0].Action)
		assert.Equal(t, attendance.ActorAtomicwork, attendance.Deref(events[0].ActorID))
	}
}

func TestSync_UnknownEmployee(t *testing.T) {
	svc, _ := newRequestService(t)

	_, err := svc.Sync(context.Background(), attendance.SyncInput{EmployeeID: "GHOST", Day: monday, Status: attendance.StatusPresent})

	assert.True(t, attendance.IsNotFound(err))
}

// =============================================================================
// DELETE / LIST
// =============================================================================

func TestDelete_CascadesAudit(t *testing.T) {
	svc, mem := newRequestService(t)
	ctx := context.Background()
	req, err := svc.Create(ctx, correction("E1", monday, monday, attendance.StatusPresent))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, req.ID))

	_, err = svc.Get(ctx, req.ID)
	assert.True(t, attendance.IsNotFound(err))
	events, err := mem.ListAudit(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestList_NewestFirstWithFilters(t *testing.T) {
	svc, _ := newRequestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, correction("E1", monday, monday, attendance.StatusPresent))
	require.NoError(t, err)
	b, err := svc.Create(ctx, correction("E2", monday, monday, attendance.StatusPresent))
	require.NoError(t, err)
	_, err = svc.Reject(ctx, b.ID, "X", nil)
	require.NoError(t, err)

	all, err := svc.List(ctx, attendance.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)

	pending, err := svc.List(ctx, attendance.RequestFilter{Status: attendance.RequestPendingApproval})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)
}

// =============================================================================
// MANAGER LOOKUP
// =============================================================================

func TestLookupManager(t *testing.T) {
	_, mem := newRequestService(t)
	ctx := context.Background()

	mgr, err := attendance.LookupManager(ctx, mem, "E1")
	require.NoError(t, err)
	assert.Equal(t, attendance.EmployeeID("M1"), mgr.ID)

	_, err = attendance.LookupManager(ctx, mem, "E2")
	assert.True(t, attendance.IsNotFound(err))
	assert.Equal(t, "Manager not configured for employee", err.Error())

	dangling := attendance.EmployeeID("M404")
	require.NoError(t, mem.SaveEmployee(ctx, attendance.Employee{ID: "E3", Name: "Orphan", ManagerID: &dangling}))
	_, err = attendance.LookupManager(ctx, mem, "E3")
	assert.Equal(t, "Manager record not found", err.Error())

	_, err = attendance.LookupManager(ctx, mem, "GHOST")
	assert.Equal(t, "Employee not found", err.Error())
}
