package attendance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// EXTERNAL SYNC PAYLOAD
// =============================================================================

// SyncPayload is the wire shape pushed by the ITSM tool.
type SyncPayload struct {
	EmpID        string `json:"emp_id" validate:"required,max=32"`
	Date         string `json:"date" validate:"required"`
	Status       string `json:"status" validate:"required,max=32"`
	Reason       string `json:"reason"`
	ApprovalNote string `json:"approval_note"`
}

// DecodeSyncPayload accepts a JSON object, or a JSON string whose content
// is a JSON object. Exactly one level of string encoding is unwrapped.
func DecodeSyncPayload(raw []byte) (SyncPayload, error) {
	var p SyncPayload
	body := bytes.TrimSpace(raw)
	if len(body) > 0 && body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return p, &InputError{Field: "body", Message: "payload is not valid JSON"}
		}
		body = []byte(inner)
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return p, &InputError{Field: "body", Message: fmt.Sprintf("payload must be a JSON object: %v", err)}
	}
	return p, nil
}

// Input converts the payload into a SyncInput, parsing the date day-first.
func (p SyncPayload) Input() (SyncInput, error) {
	day, err := ParseFlexibleDay(p.Date)
	if err != nil {
		return SyncInput{}, err
	}
	return SyncInput{
		EmployeeID:   EmployeeID(strings.TrimSpace(p.EmpID)),
		Day:          day,
		Status:       Status(strings.TrimSpace(p.Status)),
		Reason:       p.Reason,
		ApprovalNote: p.ApprovalNote,
	}, nil
}

// =============================================================================
// LENIENT DATE PARSING
// =============================================================================

// flexibleLayouts are tried in order. Numeric forms are day-first, so
// "04/03/2026" is the 4th of March. Single-digit day and month layouts
// also accept zero-padded input.
var flexibleLayouts = []string{
	DayLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/1/2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/06",
	"2 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"Mon, 2 Jan 2006",
	"20060102",
}

// ParseFlexibleDay parses a date in any of the supported textual forms.
func ParseFlexibleDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Day{}, &InputError{Field: "date", Message: "date is required"}
	}
	for _, layout := range flexibleLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DayOf(t), nil
		}
	}
	return Day{}, &InputError{Field: "date", Message: fmt.Sprintf("unrecognized date %q", s)}
}
