/*
request.go - Attendance change-request workflow engine

PURPOSE:
  Owns the request state machine and its side-effecting apply step.
  Every transition writes the new state and exactly one audit event in
  the same store transaction.

STATE MACHINE:
  (create) -> PENDING_APPROVAL
  PENDING_APPROVAL | DRAFT --approve--> APPROVED --apply--> APPLIED
                                                      \---> FAILED
  PENDING_APPROVAL | DRAFT --reject---> REJECTED
  (external sync) -> APPLIED directly

  APPLIED, REJECTED and FAILED are terminal.

AUTHORIZATION:
  When a request has an approver, only that actor may approve or reject
  it. A request with no approver accepts any actor.

APPLY FAILURES:
  Approval and apply run in one transaction. If apply fails, that
  transaction is rolled back in full (no ledger day of the range
  survives) and a second transaction records APPROVED then FAILED, each
  with its audit event. The FAILED state is committed before the error
  is returned to the caller.

SEE ALSO:
  - ledger.go: Upsert used by apply and sync
  - store.go: TxStore contract
  - errors.go: Error taxonomy
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// INPUTS
// =============================================================================

// CreateRequestInput is a new change request as submitted by an employee.
type CreateRequestInput struct {
	EmployeeID     EmployeeID
	Type           RequestType
	DateStart      Day
	DateEnd        Day
	CurrentStatus  *Status
	DesiredStatus  *Status
	ReasonCategory ReasonCategory // defaults to OTHER
	ReasonText     *string
}

// SyncInput is a single-day change pushed by the external ITSM tool.
type SyncInput struct {
	EmployeeID   EmployeeID
	Day          Day
	Status       Status
	Reason       string
	ApprovalNote string
}

// =============================================================================
// REQUEST SERVICE
// =============================================================================

// RequestService runs the change-request workflow.
type RequestService struct {
	Store  TxStore
	Now    func() time.Time
	Logger *zap.Logger
}

// MaxRequestDays caps the inclusive length of a request's date range.
const MaxRequestDays = 366

// NewRequestService creates a service with a real clock.
func NewRequestService(store TxStore, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{Store: store, Now: time.Now, Logger: logger}
}

func (s *RequestService) now() time.Time { return s.Now().UTC() }

// Create files a request in PENDING_APPROVAL, routed to the employee's
// current manager. Ranges longer than MaxRequestDays are refused; an
// inverted range is accepted here and fails at apply time.
func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (*Request, error) {
	if in.Type == "" {
		return nil, &InputError{Field: "request_type", Message: "request_type is required"}
	}
	if in.DateStart.IsZero() || in.DateEnd.IsZero() {
		return nil, &InputError{Field: "date_start", Message: "date_start and date_end are required"}
	}
	if !in.DateEnd.Before(in.DateStart) && in.DateStart.DaysUntil(in.DateEnd) >= MaxRequestDays {
		return nil, &InputError{Field: "date_end", Message: fmt.Sprintf("date range must not exceed %d days", MaxRequestDays)}
	}
	category := in.ReasonCategory
	if category == "" {
		category = ReasonOther
	}

	var created Request
	err := s.Store.WithTx(ctx, func(repo Repository) error {
		emp, err := repo.GetEmployee(ctx, in.EmployeeID)
		if err != nil {
			return fmt.Errorf("failed to load employee: %w", err)
		}
		if emp == nil {
			return &NotFoundError{Resource: "Employee", ID: string(in.EmployeeID)}
		}

		now := s.now()
		created = Request{
			EmployeeID:     in.EmployeeID,
			Type:           in.Type,
			DateStart:      in.DateStart,
			DateEnd:        in.DateEnd,
			CurrentStatus:  in.CurrentStatus,
			DesiredStatus:  in.DesiredStatus,
			ReasonCategory: category,
			ReasonText:     in.ReasonText,
			ApproverID:     emp.ManagerID,
			Status:         RequestPendingApproval,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		id, err := repo.InsertRequest(ctx, created)
		if err != nil {
			return fmt.Errorf("failed to insert request: %w", err)
		}
		created.ID = id

		return appendAudit(ctx, repo, id, EmployeePtr(in.EmployeeID), ActionRequestCreated, in.ReasonText, now)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("request created",
		zap.Int64("request_id", int64(created.ID)),
		zap.String("emp_id", string(created.EmployeeID)),
		zap.String("type", string(created.Type)),
		zap.String("approver", string(Deref(created.ApproverID))))
	return &created, nil
}

// Get returns a request or *NotFoundError.
func (s *RequestService) Get(ctx context.Context, id RequestID) (*Request, error) {
	req, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, &NotFoundError{Resource: "Request", ID: fmt.Sprint(id)}
	}
	return req, nil
}

// List returns requests matching filter, newest first.
func (s *RequestService) List(ctx context.Context, filter RequestFilter) ([]Request, error) {
	return s.Store.ListRequests(ctx, filter)
}

// Audit returns a request's trail in insertion order.
func (s *RequestService) Audit(ctx context.Context, id RequestID) ([]AuditEvent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.ListAudit(ctx, id)
}

// Delete removes a request together with its audit trail.
func (s *RequestService) Delete(ctx context.Context, id RequestID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.Store.DeleteRequest(ctx, id)
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

// Approve moves a request to APPROVED and applies it to the ledger.
// On success the returned request is APPLIED. If apply fails the request
// ends FAILED and the returned error wraps ErrApplyFailed and the cause.
func (s *RequestService) Approve(ctx context.Context, id RequestID, actor EmployeeID, comment *string) (*Request, error) {
	var (
		result   *Request
		applyErr *ApplyError
	)

	err := s.Store.WithTx(ctx, func(repo Repository) error {
		req, err := loadActionable(ctx, repo, id, "approve", actor)
		if err != nil {
			return err
		}
		now := s.now()
		if err := transition(ctx, repo, req, RequestApproved, actor, ActionApproved, comment, now); err != nil {
			return err
		}
		if _, err := s.apply(ctx, repo, req, actor); err != nil {
			applyErr = &ApplyError{RequestID: id, Cause: err}
			return applyErr
		}
		if err := transition(ctx, repo, req, RequestApplied, actor, ActionApplied, StringPtr(AppliedComment), now); err != nil {
			return err
		}
		result = req
		return nil
	})

	if applyErr != nil && errors.Is(err, ErrApplyFailed) {
		return s.recordFailure(ctx, id, actor, comment, applyErr)
	}
	if err != nil {
		return nil, err
	}

	s.Logger.Info("request applied",
		zap.Int64("request_id", int64(id)),
		zap.String("actor", string(actor)))
	return result, nil
}

// recordFailure persists APPROVED then FAILED after an apply was rolled back.
func (s *RequestService) recordFailure(ctx context.Context, id RequestID, actor EmployeeID, comment *string, applyErr *ApplyError) (*Request, error) {
	s.Logger.Warn("request apply failed",
		zap.Int64("request_id", int64(id)),
		zap.String("actor", string(actor)),
		zap.Error(applyErr.Cause))

	var failed *Request
	err := s.Store.WithTx(ctx, func(repo Repository) error {
		req, err := loadActionable(ctx, repo, id, "approve", actor)
		if err != nil {
			return err
		}
		now := s.now()
		if err := transition(ctx, repo, req, RequestApproved, actor, ActionApproved, comment, now); err != nil {
			return err
		}
		if err := transition(ctx, repo, req, RequestFailed, actor, ActionFailed, StringPtr(applyErr.Cause.Error()), now); err != nil {
			return err
		}
		failed = req
		return nil
	})
	if err != nil {
		return nil, errors.Join(applyErr, fmt.Errorf("failed to record apply failure: %w", err))
	}
	return failed, applyErr
}

// Reject moves a request to REJECTED. The ledger is not touched.
func (s *RequestService) Reject(ctx context.Context, id RequestID, actor EmployeeID, comment *string) (*Request, error) {
	var result *Request
	err := s.Store.WithTx(ctx, func(repo Repository) error {
		req, err := loadActionable(ctx, repo, id, "reject", actor)
		if err != nil {
			return err
		}
		if err := transition(ctx, repo, req, RequestRejected, actor, ActionRejected, comment, s.now()); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("request rejected",
		zap.Int64("request_id", int64(id)),
		zap.String("actor", string(actor)))
	return result, nil
}

// apply writes the desired status for every day of the request's range.
// A request without a desired status applies as a no-op.
func (s *RequestService) apply(ctx context.Context, repo Repository, req *Request, actor EmployeeID) (int, error) {
	desired := Deref(req.DesiredStatus)
	if desired == "" {
		return 0, nil
	}
	return NewLedger(repo, s.Now).UpsertRange(ctx, req.EmployeeID, req.DateStart, req.DateEnd,
		desired, SourceAtomicwork, EmployeePtr(actor))
}

// =============================================================================
// EXTERNAL SYNC
// =============================================================================

// Sync records a change pushed by the external ITSM tool: a synthetic
// request already APPLIED, one SYNC_APPLIED audit event and a single-day
// ledger upsert. Repeating a sync converges the ledger; the audit trail
// grows by one event per call.
func (s *RequestService) Sync(ctx context.Context, in SyncInput) (*Request, error) {
	if in.Day.IsZero() {
		return nil, &InputError{Field: "date", Message: "date is required"}
	}

	var created Request
	err := s.Store.WithTx(ctx, func(repo Repository) error {
		emp, err := repo.GetEmployee(ctx, in.EmployeeID)
		if err != nil {
			return fmt.Errorf("failed to load employee: %w", err)
		}
		if emp == nil {
			return &NotFoundError{Resource: "Employee", ID: string(in.EmployeeID)}
		}

		now := s.now()
		created = Request{
			EmployeeID:     in.EmployeeID,
			Type:           RequestAtomicworkSync,
			DateStart:      in.Day,
			DateEnd:        in.Day,
			CurrentStatus:  StatusPtr(StatusUnknown),
			DesiredStatus:  StatusPtr(in.Status),
			ReasonCategory: ReasonAtomicwork,
			ReasonText:     StringPtr(in.Reason),
			ApproverID:     EmployeePtr(ApproverAtomicworkSys),
			Status:         RequestApplied,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		id, err := repo.InsertRequest(ctx, created)
		if err != nil {
			return fmt.Errorf("failed to insert sync request: %w", err)
		}
		created.ID = id

		if err := appendAudit(ctx, repo, id, EmployeePtr(ActorAtomicwork), ActionSyncApplied, StringPtr(in.ApprovalNote), now); err != nil {
			return err
		}

		_, err = NewLedger(repo, s.Now).Upsert(ctx, UpsertCommand{
			EmployeeID: in.EmployeeID,
			Day:        in.Day,
			Status:     in.Status,
			Source:     SourceAtomicwork,
			Actor:      EmployeePtr(ActorAtomicwork),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("external sync applied",
		zap.Int64("request_id", int64(created.ID)),
		zap.String("emp_id", string(in.EmployeeID)),
		zap.String("day", in.Day.String()),
		zap.String("status", string(in.Status)))
	return &created, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// loadActionable fetches a request and checks state then approver.
func loadActionable(ctx context.Context, repo Repository, id RequestID, verb string, actor EmployeeID) (*Request, error) {
	req, err := repo.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, &NotFoundError{Resource: "Request", ID: fmt.Sprint(id)}
	}
	if !req.Status.Actionable() {
		return nil, &TransitionError{RequestID: id, Verb: verb, From: req.Status}
	}
	if approver := Deref(req.ApproverID); approver != "" && approver != actor {
		return nil, &ApproverError{RequestID: id, Verb: verb, Actor: actor, Approver: approver}
	}
	return req, nil
}

// transition sets the request status and appends the paired audit event.
func transition(ctx context.Context, repo Repository, req *Request, to RequestStatus, actor EmployeeID, action Action, comment *string, now time.Time) error {
	if err := repo.UpdateRequestStatus(ctx, req.ID, to, now); err != nil {
		return fmt.Errorf("failed to move request %d to %s: %w", req.ID, to, err)
	}
	req.Status = to
	req.UpdatedAt = now
	return appendAudit(ctx, repo, req.ID, EmployeePtr(actor), action, comment, now)
}

func appendAudit(ctx context.Context, repo Repository, id RequestID, actor *EmployeeID, action Action, comment *string, now time.Time) error {
	if _, err := repo.AppendAudit(ctx, AuditEvent{
		RequestID: id,
		ActorID:   actor,
		Action:    action,
		Comment:   comment,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to append %s audit for request %d: %w", action, id, err)
	}
	return nil
}
