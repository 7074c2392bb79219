package expense

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	errors "github.com/sems/expense-service/internal"
)

// Repository defines the data access methods the CRUD service needs.
// The workflow engine declares its own, wider view of the same store.
type Repository interface {
	Create(exp *Expense) error
	FindByID(id uuid.UUID) (*Expense, error)
	FindByUserID(userID uuid.UUID, limit, offset int) ([]*Expense, error)
	Save(exp *Expense) error
}

// Service handles draft expense CRUD. Workflow transitions live in the
// workflow package; this service only manages expenses before submission.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// CreateExpense creates a new draft expense owned by userID.
func (s *Service) CreateExpense(userID uuid.UUID, dto CreateExpenseDTO) (*Expense, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("expense validation failed", "error", err, "user_id", userID)
		return nil, err
	}

	now := time.Now()
	currency := dto.Currency
	if currency == "" {
		currency = "USD"
	}

	exp := &Expense{
		ID:              uuid.New(),
		UserID:          userID,
		Title:           dto.Title,
		Description:     dto.Description,
		Amount:          dto.Amount,
		Currency:        currency,
		Category:        dto.Category,
		Status:          StatusDraft,
		ExpenseDate:     dto.ExpenseDate,
		DepartmentID:    dto.DepartmentID,
		ProjectID:       dto.ProjectID,
		ReceiptURL:      dto.ReceiptURL,
		RequiresReceipt: dto.RequiresReceipt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(exp); err != nil {
		s.logger.Error("failed to create expense", "error", err, "user_id", userID)
		return nil, err
	}

	s.logger.Info("expense created",
		"expense_id", exp.ID,
		"user_id", userID,
		"amount", exp.Amount.String(),
		"status", exp.Status)

	return exp, nil
}

// GetExpenseByID retrieves an expense by ID.
func (s *Service) GetExpenseByID(id uuid.UUID) (*Expense, error) {
	exp, err := s.repo.FindByID(id)
	if err != nil {
		s.logger.Error("failed to get expense", "error", err, "expense_id", id)
		return nil, errors.ErrExpenseNotFound
	}
	return exp, nil
}

// GetUserExpenses retrieves expenses for a specific user.
func (s *Service) GetUserExpenses(userID uuid.UUID, limit, offset int) ([]*Expense, error) {
	expenses, err := s.repo.FindByUserID(userID, limit, offset)
	if err != nil {
		s.logger.Error("failed to get user expenses", "error", err, "user_id", userID)
		return nil, err
	}
	return expenses, nil
}

// UpdateExpense applies edits to a draft or changes-requested expense.
// Resubmission back into the workflow goes through the engine's submit.
func (s *Service) UpdateExpense(id uuid.UUID, dto UpdateExpenseDTO) (*Expense, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	exp, err := s.repo.FindByID(id)
	if err != nil {
		return nil, errors.ErrExpenseNotFound
	}

	if exp.Status != StatusDraft && exp.Status != StatusChangesRequested {
		s.logger.Warn("cannot edit expense in current status",
			"expense_id", id,
			"status", exp.Status)
		return nil, errors.ErrInvalidWorkflowState
	}

	if dto.Title != nil {
		exp.Title = *dto.Title
	}
	if dto.Description != nil {
		exp.Description = *dto.Description
	}
	if dto.Amount != nil {
		exp.Amount = *dto.Amount
	}
	if dto.Category != nil {
		exp.Category = *dto.Category
	}
	if dto.ExpenseDate != nil {
		exp.ExpenseDate = *dto.ExpenseDate
	}
	if dto.ReceiptURL != nil {
		exp.ReceiptURL = dto.ReceiptURL
	}

	// Edits after a change request pull the expense back to draft so it
	// re-enters the workflow through submitForApproval.
	if exp.Status == StatusChangesRequested {
		exp.Status = StatusDraft
		exp.CurrentApprovalLevel = nil
	}

	exp.Touch()

	if err := s.repo.Save(exp); err != nil {
		s.logger.Error("failed to update expense", "error", err, "expense_id", id)
		return nil, err
	}

	return exp, nil
}
