// Package store provides in-memory attendance.TxStore implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements attendance.TxStore with maps guarded by a mutex.
// Transactions snapshot the whole state and restore it on error.
type Memory struct {
	mu sync.RWMutex
	st state

	// FailRecordWrite, when set, is consulted before every ledger insert or
	// update. A non-nil return aborts the write with that error.
	FailRecordWrite func(rec attendance.Record) error
}

type recordKey struct {
	emp attendance.EmployeeID
	day string
}

type state struct {
	employees     map[attendance.EmployeeID]attendance.Employee
	records       map[recordKey]attendance.Record
	requests      map[attendance.RequestID]attendance.Request
	audit         []attendance.AuditEvent
	nextRecordID  int64
	nextRequestID attendance.RequestID
	nextAuditID   int64
}

func NewMemory() *Memory {
	return &Memory{st: state{
		employees: make(map[attendance.EmployeeID]attendance.Employee),
		records:   make(map[recordKey]attendance.Record),
		requests:  make(map[attendance.RequestID]attendance.Request),
	}}
}

var _ attendance.TxStore = (*Memory)(nil)

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(attendance.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(view{m}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (s state) clone() state {
	c := state{
		employees:     make(map[attendance.EmployeeID]attendance.Employee, len(s.employees)),
		records:       make(map[recordKey]attendance.Record, len(s.records)),
		requests:      make(map[attendance.RequestID]attendance.Request, len(s.requests)),
		audit:         append([]attendance.AuditEvent(nil), s.audit...),
		nextRecordID:  s.nextRecordID,
		nextRequestID: s.nextRequestID,
		nextAuditID:   s.nextAuditID,
	}
	for k, v := range s.employees {
		c.employees[k] = v
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	return c
}

// =============================================================================
// LOCKING WRAPPERS
// =============================================================================

func (m *Memory) GetEmployee(ctx context.Context, id attendance.EmployeeID) (*attendance.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m}.GetEmployee(ctx, id)
}

func (m *Memory) ListEmployees(ctx context.Context) ([]attendance.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m}.ListEmployees(ctx)
}

func (m *Memory) SaveEmployee(ctx context.Context, emp attendance.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m}.SaveEmployee(ctx, emp)
}

func (m *Memory) CountEmployees(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m}.CountEmployees(ctx)
}

func (m *Memory) GetRecord(ctx context.Context, emp attendance.EmployeeID, day attendance.Day) (*attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m}.GetRecord(ctx, emp, day)
}

func (m *Memory) InsertRecord(ctx context.Context, rec attendance.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m}.InsertRecord(ctx, rec)
}

func (m *Memory) UpdateRecord(ctx context.Context, rec attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m}.UpdateRecord(ctx, rec)
}

func (m *Memory) ListRecords(ctx context.Context, emp attendance.EmployeeID, from, to attendance.Day) ([]attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m}.ListRecords(ctx, emp, from, to)
}

func (m *Memory) CountRecordsByStatus(ctx context.Context, day attendance.Day, status attendance.Status) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m}.CountRecordsByStatus(ctx, day, status)
}

func (m *Memory) InsertRequest(ctx context.Context, req attendance.Request) (attendance.RequestID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m}.InsertRequest(ctx, req)
}

func (m *Memory) GetRequest(ctx context.Context, id attendance.RequestID) (*attendance.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m}.GetRequest(ctx, id)
}

func (m *Memory) UpdateRequestStatus(ctx context.Context, id attendance.RequestID, status attendance.RequestStatus, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m}.UpdateRequestStatus(ctx, id, status, updatedAt)
}

func (m *Memory) ListRequests(ctx context.Context, filter attendance.RequestFilter) ([]attendance.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m}.ListRequests(ctx, filter)
}

func (m *Memory) DeleteRequest(ctx context.Context, id attendance.RequestID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m}.DeleteRequest(ctx, id)
}

func (m *Memory) AppendAudit(ctx context.Context, ev attendance.AuditEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m}.AppendAudit(ctx, ev)
}

func (m *Memory) ListAudit(ctx context.Context, id attendance.RequestID) ([]attendance.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m}.ListAudit(ctx, id)
}

// =============================================================================
// VIEW - Unlocked operations, shared by wrappers and transactions
// =============================================================================

type view struct {
	m *Memory
}

func (v view) GetEmployee(_ context.Context, id attendance.EmployeeID) (*attendance.Employee, error) {
	emp, ok := v.m.st.employees[id]
	if !ok {
		return nil, nil
	}
	return &emp, nil
}

func (v view) ListEmployees(_ context.Context) ([]attendance.Employee, error) {
	out := make([]attendance.Employee, 0, len(v.m.st.employees))
	for _, e := range v.m.st.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v view) SaveEmployee(_ context.Context, emp attendance.Employee) error {
	v.m.st.employees[emp.ID] = emp
	return nil
}

func (v view) CountEmployees(_ context.Context) (int, error) {
	return len(v.m.st.employees), nil
}

func (v view) GetRecord(_ context.Context, emp attendance.EmployeeID, day attendance.Day) (*attendance.Record, error) {
	rec, ok := v.m.st.records[recordKey{emp, day.String()}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (v view) InsertRecord(_ context.Context, rec attendance.Record) (int64, error) {
	if err := v.checkFault(rec); err != nil {
		return 0, err
	}
	v.m.st.nextRecordID++
	rec.ID = v.m.st.nextRecordID
	v.m.st.records[recordKey{rec.EmployeeID, rec.Day.String()}] = rec
	return rec.ID, nil
}

func (v view) UpdateRecord(_ context.Context, rec attendance.Record) error {
	if err := v.checkFault(rec); err != nil {
		return err
	}
	k := recordKey{rec.EmployeeID, rec.Day.String()}
	existing, ok := v.m.st.records[k]
	if !ok {
		return attendance.ErrNotFound
	}
	rec.ID = existing.ID
	v.m.st.records[k] = rec
	return nil
}

func (v view) checkFault(rec attendance.Record) error {
	if v.m.FailRecordWrite == nil {
		return nil
	}
	return v.m.FailRecordWrite(rec)
}

func (v view) ListRecords(_ context.Context, emp attendance.EmployeeID, from, to attendance.Day) ([]attendance.Record, error) {
	var out []attendance.Record
	for k, rec := range v.m.st.records {
		if k.emp != emp || rec.Day.Before(from) || rec.Day.After(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (v view) CountRecordsByStatus(_ context.Context, day attendance.Day, status attendance.Status) (int, error) {
	n := 0
	for _, rec := range v.m.st.records {
		if rec.Day.Equal(day) && rec.Status == status {
			n++
		}
	}
	return n, nil
}

func (v view) InsertRequest(_ context.Context, req attendance.Request) (attendance.RequestID, error) {
	v.m.st.nextRequestID++
	req.ID = v.m.st.nextRequestID
	v.m.st.requests[req.ID] = req
	return req.ID, nil
}

func (v view) GetRequest(_ context.Context, id attendance.RequestID) (*attendance.Request, error) {
	req, ok := v.m.st.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (v view) UpdateRequestStatus(_ context.Context, id attendance.RequestID, status attendance.RequestStatus, updatedAt time.Time) error {
	req, ok := v.m.st.requests[id]
	if !ok {
		return attendance.ErrNotFound
	}
	req.Status = status
	req.UpdatedAt = updatedAt
	v.m.st.requests[id] = req
	return nil
}

func (v view) ListRequests(_ context.Context, filter attendance.RequestFilter) ([]attendance.Request, error) {
	var out []attendance.Request
	for _, req := range v.m.st.requests {
		if filter.EmployeeID != "" && req.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (v view) DeleteRequest(_ context.Context, id attendance.RequestID) error {
	delete(v.m.st.requests, id)
	kept := v.m.st.audit[:0]
	for _, ev := range v.m.st.audit {
		if ev.RequestID != id {
			kept = append(kept, ev)
		}
	}
	v.m.st.audit = kept
	return nil
}

func (v view) AppendAudit(_ context.Context, ev attendance.AuditEvent) (int64, error) {
	if _, ok := v.m.st.requests[ev.RequestID]; !ok {
		return 0, attendance.ErrNotFound
	}
	v.m.st.nextAuditID++
	ev.ID = v.m.st.nextAuditID
	v.m.st.audit = append(v.m.st.audit, ev)
	return ev.ID, nil
}

func (v view) ListAudit(_ context.Context, id attendance.RequestID) ([]attendance.AuditEvent, error) {
	var out []attendance.AuditEvent
	for _, ev := range v.m.st.audit {
		if ev.RequestID == id {
			out = append(out, ev)
		}
	}
	return out, nil
}
