package expense

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	errors "github.com/sems/expense-service/internal"
	"github.com/sems/expense-service/internal/core/common/validation"
)

// CreateExpenseDTO is the request payload for creating a draft expense.
type CreateExpenseDTO struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Category        string          `json:"category"`
	ExpenseDate     time.Time       `json:"expense_date"`
	DepartmentID    *uuid.UUID      `json:"department_id,omitempty"`
	ProjectID       *uuid.UUID      `json:"project_id,omitempty"`
	ReceiptURL      *string         `json:"receipt_url,omitempty"`
	RequiresReceipt bool            `json:"requires_receipt"`
}

func (dto CreateExpenseDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("title", dto.Title).Required().MaxLength(200)
	v.Field("description", dto.Description).MaxLength(500)
	v.Field("amount", dto.Amount).PositiveAmount()
	v.Field("category", dto.Category).Required()
	v.Field("expense_date", dto.ExpenseDate).RequiredDate().NotFuture()
	return v.Validate()
}

// UpdateExpenseDTO carries editable fields; only draft and
// changes-requested expenses accept updates.
type UpdateExpenseDTO struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Category    *string          `json:"category,omitempty"`
	ExpenseDate *time.Time       `json:"expense_date,omitempty"`
	ReceiptURL  *string          `json:"receipt_url,omitempty"`
}

func (dto UpdateExpenseDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	if dto.Title != nil {
		v.Field("title", *dto.Title).Required().MaxLength(200)
	}
	if dto.Description != nil {
		v.Field("description", *dto.Description).MaxLength(500)
	}
	if dto.Amount != nil {
		v.Field("amount", *dto.Amount).PositiveAmount()
	}
	if dto.ExpenseDate != nil {
		v.Field("expense_date", *dto.ExpenseDate).RequiredDate().NotFuture()
	}
	return v.Validate()
}
