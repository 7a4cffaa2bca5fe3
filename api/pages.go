/*
pages.go - Server-rendered demo pages

PURPOSE:
  HTML views over the same services the JSON API uses.

PAGES:
  GET  /                              Redirect to /mobile
  GET  /mobile                        Demo employee's check-in screen
  GET  /simulate                      Simulation mode switcher
  GET  /admin/login                   Login form
  POST /admin/login                   Issue admin_session cookie
  POST /admin/logout                  Revoke it
  GET  /admin                         Dashboard
  GET  /admin/requests/{id}           Request with audit trail
  POST /admin/requests/{id}/approve   Form approve (303 back)
  POST /admin/requests/{id}/reject    Form reject (303 back)
  GET  /admin/employees/{id}          Ledger history and requests

TEMPLATES:
  Embedded from templates/*.html and parsed once per Handler.

SEE ALSO:
  - sessions.go: Token store behind the admin cookie
*/
package api

import (
	"bytes"
	"context"
	"crypto/subtle"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/attendance-engine/attendance"
	"go.uber.org/zap"
)

const sessionCookie = "admin_session"

//go:embed templates/*.html
var templateFS embed.FS

func parsePages() *template.Template {
	funcs := template.FuncMap{
		"str": func(p *string) string {
			if p == nil {
				return ""
			}
			return *p
		},
	}
	return template.Must(template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

type messagePage struct {
	Title   string
	Message string
	Back    string
}

// render executes name into a buffer so a template error never leaves a
// half-written page.
func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, name, data); err != nil {
		h.Logger.Error("failed to render page", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (h *Handler) renderError(w http.ResponseWriter, err error, back string) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("page failed", zap.Error(err))
	}
	h.render(w, status, "message", messagePage{Title: http.StatusText(status), Message: detail, Back: back})
}

// =============================================================================
// PUBLIC PAGES
// =============================================================================

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/mobile", http.StatusTemporaryRedirect)
}

type mobilePage struct {
	Employee    EmployeeDTO
	Today       string
	TodayRecord *AttendanceRecordDTO
	History     []AttendanceRecordDTO
	Block       attendance.BlockReason
	Mode        attendance.SimulationMode
}

// MobilePage shows the demo employee's day and the last five recorded days.
func (h *Handler) MobilePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emp, err := h.Store.GetEmployee(ctx, h.demoEmployee)
	if err != nil {
		h.renderError(w, err, "")
		return
	}
	if emp == nil {
		h.render(w, http.StatusOK, "message", messagePage{
			Title:   "Demo error",
			Message: fmt.Sprintf("Employee %s not found (please check seed data)", h.demoEmployee),
		})
		return
	}

	today, block := h.Marking.Check(nil)
	page := mobilePage{
		Employee: toEmployeeDTO(*emp),
		Today:    today.String(),
		Block:    block,
		Mode:     h.Mode.Get(),
	}

	rec, err := h.Store.GetRecord(ctx, emp.ID, today)
	if err != nil {
		h.renderError(w, err, "")
		return
	}
	if rec != nil {
		dto := toRecordDTO(*rec)
		page.TodayRecord = &dto
	}

	history, err := h.Ledger.Recent(ctx, emp.ID, today, 5)
	if err != nil {
		h.renderError(w, err, "")
		return
	}
	page.History = toRecordDTOs(history)

	h.render(w, http.StatusOK, "mobile", page)
}

func (h *Handler) SimulatePage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "simulate", struct {
		Mode  attendance.SimulationMode
		Modes []attendance.SimulationMode
	}{h.Mode.Get(), attendance.SimulationModes})
}

// =============================================================================
// ADMIN SESSION
// =============================================================================

func (h *Handler) AdminLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "admin_login", struct{ Error string }{})
}

// AdminLogin checks the configured credentials and sets the session cookie.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, "admin_login", struct{ Error string }{"Invalid form"})
		return
	}
	user := r.PostForm.Get("username")
	pass := r.PostForm.Get("password")
	if !h.checkCredentials(user, pass) {
		h.Logger.Warn("admin login rejected", zap.String("username", user))
		h.render(w, http.StatusUnauthorized, "admin_login", struct{ Error string }{"Invalid credentials"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    h.Sessions.Create(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		h.Sessions.Revoke(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

func (h *Handler) checkCredentials(user, pass string) bool {
	if h.adminUsername == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.adminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.adminPassword)) == 1
	return userOK && passOK
}

// requireAdmin redirects to the login page without a live session.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || !h.Sessions.Valid(c.Value) {
			http.Redirect(w, r, "/admin/login", http.StatusTemporaryRedirect)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// ADMIN PAGES
// =============================================================================

type dashboardPage struct {
	Today           string
	Mode            attendance.SimulationMode
	TotalEmployees  int
	PresentToday    int
	PresentRate     string
	PendingRequests int
	Requests        []RequestDTO
}

// AdminDashboard shows today's headcount and every change request.
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := h.Marking.Today()

	total, err := h.Store.CountEmployees(ctx)
	if err != nil {
		h.renderError(w, err, "")
		return
	}
	present, err := h.Store.CountRecordsByStatus(ctx, today, attendance.StatusPresent)
	if err != nil {
		h.renderError(w, err, "")
		return
	}
	requests, err := h.Requests.List(ctx, attendance.RequestFilter{})
	if err != nil {
		h.renderError(w, err, "")
		return
	}
	pending := 0
	for _, req := range requests {
		if req.Status == attendance.RequestPendingApproval {
			pending++
		}
	}

	h.render(w, http.StatusOK, "admin_dashboard", dashboardPage{
		Today:           today.String(),
		Mode:            h.Mode.Get(),
		TotalEmployees:  total,
		PresentToday:    present,
		PresentRate:     attendance.Percent(present, total).StringFixed(1),
		PendingRequests: pending,
		Requests:        toRequestDTOs(requests),
	})
}

type requestPage struct {
	Request    RequestDTO
	Employee   *EmployeeDTO
	Audit      []AuditEventDTO
	Actionable bool
}

func (h *Handler) AdminRequestDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := requestParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	req, err := h.Requests.Get(ctx, id)
	if err != nil {
		h.renderError(w, err, "/admin")
		return
	}
	events, err := h.Requests.Audit(ctx, id)
	if err != nil {
		h.renderError(w, err, "/admin")
		return
	}

	page := requestPage{
		Request:    toRequestDTO(*req),
		Audit:      toAuditDTOs(events),
		Actionable: req.Status.Actionable(),
	}
	emp, err := h.Store.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		h.renderError(w, err, "/admin")
		return
	}
	if emp != nil {
		dto := toEmployeeDTO(*emp)
		page.Employee = &dto
	}
	h.render(w, http.StatusOK, "request_detail", page)
}

// AdminApprove runs the approve workflow from the detail form.
func (h *Handler) AdminApprove(w http.ResponseWriter, r *http.Request) {
	h.adminDecide(w, r, h.Requests.Approve)
}

// AdminReject runs the reject workflow from the detail form.
func (h *Handler) AdminReject(w http.ResponseWriter, r *http.Request) {
	h.adminDecide(w, r, h.Requests.Reject)
}

type decision func(ctx context.Context, id attendance.RequestID, actor attendance.EmployeeID, comment *string) (*attendance.Request, error)

func (h *Handler) adminDecide(w http.ResponseWriter, r *http.Request, decide decision) {
	id, ok := requestParam(w, r)
	if !ok {
		return
	}
	back := fmt.Sprintf("/admin/requests/%d", id)
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, "message", messagePage{Title: "Bad Request", Message: "Invalid form", Back: back})
		return
	}
	actor := r.PostForm.Get("actor_emp_id")
	if actor == "" {
		h.render(w, http.StatusUnprocessableEntity, "message", messagePage{Title: "Unprocessable Entity", Message: "actor_emp_id is required", Back: back})
		return
	}

	_, err := decide(r.Context(), id, attendance.EmployeeID(actor), attendance.StringPtr(r.PostForm.Get("comment")))
	// A failed apply has already been recorded on the request; show it.
	if err != nil && !errors.Is(err, attendance.ErrApplyFailed) {
		h.renderError(w, err, back)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

type employeePage struct {
	Employee EmployeeDTO
	Summary  SummaryDTO
	History  []AttendanceRecordDTO
	Requests []RequestDTO
}

// AdminEmployeeDetail shows the 30 most recent ledger rows and the
// employee's change requests.
func (h *Handler) AdminEmployeeDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emp, err := attendance.LookupEmployee(ctx, h.Store, attendance.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.renderError(w, err, "/admin")
		return
	}

	history, err := h.Ledger.Recent(ctx, emp.ID, attendance.LastDay, 30)
	if err != nil {
		h.renderError(w, err, "/admin")
		return
	}
	today := h.Marking.Today()
	summary, err := h.Ledger.Summary(ctx, emp.ID, today.AddDays(-29), today)
	if err != nil {
		h.renderError(w, err, "/admin")
		return
	}
	requests, err := h.Requests.List(ctx, attendance.RequestFilter{EmployeeID: emp.ID})
	if err != nil {
		h.renderError(w, err, "/admin")
		return
	}

	h.render(w, http.StatusOK, "employee_detail", employeePage{
		Employee: toEmployeeDTO(*emp),
		Summary:  toSummaryDTO(summary),
		History:  toRecordDTOs(history),
		Requests: toRequestDTOs(requests),
	})
}
