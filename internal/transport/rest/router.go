package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/sems/expense-service/internal/expense"
	"github.com/sems/expense-service/internal/transport/middleware"
	"github.com/sems/expense-service/internal/transport/swagger"
	"github.com/sems/expense-service/internal/workflow"
)

// RegisterAllRoutes wires the HTTP surface: expense CRUD under
// /api/v1/expenses and workflow transitions under
// /api/v1/expenses/workflow, mirroring the state machine operations.
func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	expenseHandler *expense.Handler,
	workflowHandler *workflow.Handler,
	jwtSecret string,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db)

	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Auth(jwtSecret))

			if expenseHandler != nil {
				pr.Route("/expenses", func(er chi.Router) {
					er.Post("/", expenseHandler.CreateExpense)
					er.Get("/", expenseHandler.GetUserExpenses)
					er.Get("/{id}", expenseHandler.GetExpense)
					er.Patch("/{id}", expenseHandler.UpdateExpense)
				})
			}

			if workflowHandler != nil {
				pr.Route("/expenses/workflow", func(wr chi.Router) {
					wr.Get("/pending", workflowHandler.PendingForApprover)
					wr.Get("/stats", workflowHandler.Stats)
					wr.Post("/auto-approve/process", workflowHandler.RunAutoApproval)

					wr.Post("/{id}/submit", workflowHandler.Submit)
					wr.Post("/{id}/approve", workflowHandler.Approve)
					wr.Post("/{id}/reject", workflowHandler.Reject)
					wr.Post("/{id}/request-changes", workflowHandler.RequestChanges)
					wr.Post("/{id}/escalate", workflowHandler.Escalate)
					wr.Post("/{id}/delegate", workflowHandler.Delegate)
					wr.Post("/{id}/mark-paid", workflowHandler.MarkPaid)
					wr.Get("/{id}/history", workflowHandler.History)
				})
			}
		})
	})
}
