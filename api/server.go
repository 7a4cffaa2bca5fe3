/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request log (status, method, path, latency, request id)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for configured origins

ROUTE GROUPS:
  /health, /api/version             Service
  /employees/*                      Employee profile, manager, summary
  /attendance                       Ledger reads
  /attendance-requests/*            Change-request workflow
  /api/*                            Mobile marking, external sync, simulation
  /, /mobile, /simulate             Demo pages
  /admin/*                          Admin console (cookie gate)

SECURITY NOTE:
  The admin cookie gate is a demo convenience. JSON endpoints are public.

SEE ALSO:
  - handlers.go: JSON handlers
  - pages.go: HTML handlers
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	r.Route("/employees/{id}", func(r chi.Router) {
		r.Get("/", h.GetEmployee)
		r.Get("/manager", h.GetManager)
		r.Get("/summary", h.GetSummary)
	})

	r.Get("/attendance", h.ListAttendance)

	r.Route("/attendance-requests", func(r chi.Router) {
		r.Get("/", h.ListRequests)
		r.Post("/", h.CreateRequest)
		r.Get("/{id}", h.GetRequest)
		r.Delete("/{id}", h.DeleteRequest)
		r.Get("/{id}/audit", h.GetRequestAudit)
		r.Post("/{id}/approve", h.ApproveRequest)
		r.Post("/{id}/reject", h.RejectRequest)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", h.GetVersion)
		r.Get("/employees-list", h.ListEmployees)
		r.Post("/atomicwork/sync-attendance", h.SyncAttendance)
		r.Post("/mark-attendance", h.MarkAttendance)
		r.Get("/simulate", h.GetSimulation)
		r.Post("/simulate", h.SetSimulation)
	})

	// Demo pages
	r.Get("/", h.Root)
	r.Get("/mobile", h.MobilePage)
	r.Get("/simulate", h.SimulatePage)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/login", h.AdminLoginPage)
		r.Post("/login", h.AdminLogin)
		r.Post("/logout", h.AdminLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/", h.AdminDashboard)
			r.Get("/requests/{id}", h.AdminRequestDetail)
			r.Post("/requests/{id}/approve", h.AdminApprove)
			r.Post("/requests/{id}/reject", h.AdminReject)
			r.Get("/employees/{id}", h.AdminEmployeeDetail)
		})
	})

	return r
}

// requestLogger logs one line per request, at warn for 4xx and error
// for 5xx.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Duration("latency", time.Since(start)),
			}

			switch {
			case status >= 500:
				logger.Error("request failed", fields...)
			case status >= 400:
				logger.Warn("client error", fields...)
			default:
				logger.Info("request completed", fields...)
			}
		})
	}
}
