package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	"github.com/sems/expense-service/internal/expense"
	"github.com/sems/expense-service/internal/transport"
	"github.com/sems/expense-service/pkg/logger"
)

type ServiceAPI interface {
	SubmitForApproval(ctx context.Context, expenseID uuid.UUID) (*expense.Expense, error)
	ApproveExpense(ctx context.Context, expenseID, approverID uuid.UUID, comments string) (*expense.Expense, error)
	RejectExpense(ctx context.Context, expenseID, actorID uuid.UUID, reason string) (*expense.Expense, error)
	RequestChanges(ctx context.Context, expenseID, actorID uuid.UUID, changes string) (*expense.Expense, error)
	EscalateExpense(ctx context.Context, expenseID, actorID uuid.UUID, reason string) (*expense.Expense, error)
	DelegateApproval(ctx context.Context, expenseID, delegatorID, delegateID uuid.UUID, reason string) (*expense.Expense, error)
	MarkAsPaid(ctx context.Context, expenseID, financePersonID uuid.UUID) (*expense.Expense, error)
	ProcessLowValueAutoApproval(ctx context.Context) (int, error)
	GetApprovalHistory(ctx context.Context, expenseID uuid.UUID) ([]*ApprovalStep, error)
	GetPendingExpensesForApprover(ctx context.Context, approverID uuid.UUID) ([]*expense.Expense, error)
	GetWorkflowStatistics() ([]*WorkflowStats, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := h.expenseIDFromURL(w, r)
	if !ok {
		return
	}

	exp, err := h.Service.SubmitForApproval(r.Context(), expenseID)
	if err != nil {
		h.Logger.Error("Submit: service error", "error", err, "expense_id", expenseID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := h.expenseIDFromURL(w, r)
	if !ok {
		return
	}

	var dto ApproveDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	exp, err := h.Service.ApproveExpense(r.Context(), expenseID, dto.ApproverID, dto.Comments)
	if err != nil {
		h.Logger.Error("Approve: service error", "error", err, "expense_id", expenseID, "approver_id", dto.ApproverID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := h.expenseIDFromURL(w, r)
	if !ok {
		return
	}

	var dto RejectDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	exp, err := h.Service.RejectExpense(r.Context(), expenseID, dto.RejecterID, dto.Reason)
	if err != nil {
		h.Logger.Error("Reject: service error", "error", err, "expense_id", expenseID, "rejecter_id", dto.RejecterID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) RequestChanges(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := h.expenseIDFromURL(w, r)
	if !ok {
		return
	}

	var dto RequestChangesDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	exp, err := h.Service.RequestChanges(r.Context(), expenseID, dto.ReviewerID, dto.Changes)
	if err != nil {
		h.Logger.Error("RequestChanges: service error", "error", err, "expense_id", expenseID, "reviewer_id", dto.ReviewerID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) Escalate(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := h.expenseIDFromURL(w, r)
	if !ok {
		return
	}

	var dto EscalateDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	exp, err := h.Service.EscalateExpense(r.Context(), expenseID, dto.EscalatorID, dto.Reason)
	if err != nil {
		h.Logger.Error("Escalate: service error", "error", err, "expense_id", expenseID, "escalator_id", dto.EscalatorID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) Delegate(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := h.expenseIDFromURL(w, r)
	if !ok {
		return
	}

	var dto DelegateDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	exp, err := h.Service.DelegateApproval(r.Context(), expenseID, dto.DelegatorID, dto.DelegateID, dto.Reason)
	if err != nil {
		h.Logger.Error("Delegate: service error", "error", err, "expense_id", expenseID, "delegator_id", dto.DelegatorID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := h.expenseIDFromURL(w, r)
	if !ok {
		return
	}

	var dto MarkPaidDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	exp, err := h.Service.MarkAsPaid(r.Context(), expenseID, dto.FinancePersonID)
	if err != nil {
		h.Logger.Error("MarkPaid: service error", "error", err, "expense_id", expenseID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := h.expenseIDFromURL(w, r)
	if !ok {
		return
	}

	steps, err := h.Service.GetApprovalHistory(r.Context(), expenseID)
	if err != nil {
		h.Logger.Error("History: service error", "error", err, "expense_id", expenseID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"expense_id": expenseID,
		"steps":      steps,
	})
}

func (h *Handler) PendingForApprover(w http.ResponseWriter, r *http.Request) {
	approverIDStr := r.URL.Query().Get("approver_id")
	approverID, err := uuid.Parse(approverIDStr)
	if err != nil {
		h.Logger.Error("PendingForApprover: invalid approver ID", "approver_id", approverIDStr)
		h.WriteError(w, http.StatusBadRequest, "invalid approver_id")
		return
	}

	expenses, err := h.Service.GetPendingExpensesForApprover(r.Context(), approverID)
	if err != nil {
		h.Logger.Error("PendingForApprover: service error", "error", err, "approver_id", approverID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"approver_id": approverID,
		"expenses":    expenses,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.GetWorkflowStatistics()
	if err != nil {
		h.Logger.Error("Stats: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"statistics": stats})
}

func (h *Handler) RunAutoApproval(w http.ResponseWriter, r *http.Request) {
	count, err := h.Service.ProcessLowValueAutoApproval(r.Context())
	if err != nil {
		h.Logger.Error("RunAutoApproval: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"approved_count": count})
}

func (h *Handler) expenseIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.Logger.Error("invalid expense ID in URL", "id", idStr)
		h.WriteError(w, http.StatusBadRequest, "invalid expense ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dto interface{ Validate() error }) bool {
	if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
		h.Logger.Error("invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := dto.Validate(); err != nil {
		h.Logger.Error("request validation failed", "error", err)
		h.HandleServiceError(w, err)
		return false
	}
	return true
}
