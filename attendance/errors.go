/*
errors.go - Error taxonomy for the attendance engine

PURPOSE:
  All error types in one place. Callers branch with errors.Is against the
  sentinels; the structured errors carry context for messages and logs.

ERROR CATEGORIES:
  1. Lookup errors     - ErrNotFound (employee, manager, request)
  2. Workflow errors   - ErrConflict (wrong state), ErrForbidden (wrong approver)
  3. Input errors      - ErrInvalidInput, ErrInvalidRange
  4. Side-effect errors - ErrApplyFailed (ledger apply during approval)
  5. Marking blocks    - ErrMarkingBlocked with a BlockReason code

SEE ALSO:
  - request.go: Produces workflow and apply errors
  - marking.go: Produces BlockedError
  - api/handlers.go: Maps these to HTTP status codes
*/
package attendance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a request is not in a state that allows the action.
	ErrConflict = errors.New("conflict")

	// ErrForbidden is returned when the actor is not the configured approver.
	ErrForbidden = errors.New("forbidden")

	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidRange is returned when a date range ends before it starts.
	ErrInvalidRange error = &InputError{Field: "date_end", Message: "date_end must be >= date_start"}

	// ErrApplyFailed is returned after an approved request could not be
	// written to the ledger. The request is FAILED by the time it is seen.
	ErrApplyFailed = errors.New("apply failed")

	ErrMarkingBlocked = errors.New("marking blocked")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InputError describes a rejected input value.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string { return e.Message }

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string // "Employee", "Request", "Manager"
	ID       string
	Message  string // overrides the default message when set
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// TransitionError reports an action attempted from a non-actionable state.
type TransitionError struct {
	RequestID RequestID
	Verb      string // "approve", "reject"
	From      RequestStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Cannot %s request in status %s", e.Verb, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrConflict }

// ApproverError reports an actor who is not the configured approver.
type ApproverError struct {
	RequestID RequestID
	Verb      string
	Actor     EmployeeID
	Approver  EmployeeID
}

func (e *ApproverError) Error() string {
	return fmt.Sprintf("Only the configured approver can %s", e.Verb)
}

func (e *ApproverError) Unwrap() error { return ErrForbidden }

// ApplyError wraps the cause of a failed ledger apply.
// Both ErrApplyFailed and the cause are reachable through errors.Is.
type ApplyError struct {
	RequestID RequestID
	Cause     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply failed for request %d: %v", e.RequestID, e.Cause)
}

func (e *ApplyError) Unwrap() []error { return []error{ErrApplyFailed, e.Cause} }

// BlockedError carries the reason a mark-attendance attempt was refused.
type BlockedError struct {
	Reason BlockReason
	Day    Day
}

func (e *BlockedError) Error() string { return string(e.Reason) }

func (e *BlockedError) Unwrap() error { return ErrMarkingBlocked }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError returns true if the error is due to invalid client input
// or a workflow rule the caller violated.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrMarkingBlocked)
}

// BlockReasonOf extracts the block code from err, or "" if err is not a block.
func BlockReasonOf(err error) BlockReason {
	var be *BlockedError
	if errors.As(err, &be) {
		return be.Reason
	}
	return ""
}
