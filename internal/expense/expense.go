package expense

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the workflow state of an expense.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusSubmitted        Status = "submitted"
	StatusUnderReview      Status = "under_review"
	StatusChangesRequested Status = "changes_requested"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusPaid             Status = "paid"
)

// PendingStatuses are the states in which an expense sits at an approval
// level waiting for an approver to act.
var PendingStatuses = []Status{StatusSubmitted, StatusUnderReview}

// Expense is the aggregate owned by the approval workflow engine for the
// duration of its lifecycle. Version backs optimistic locking: every Save
// bumps it and a stale writer loses.
type Expense struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID       `json:"user_id" gorm:"type:uuid;column:user_id;not null"`
	Title       string          `json:"title" gorm:"column:title"`
	Description string          `json:"description" gorm:"column:description"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);column:amount;not null"`
	Currency    string          `json:"currency" gorm:"column:currency"`
	Category    string          `json:"category" gorm:"column:category"`
	Status      Status          `json:"status" gorm:"column:status;default:draft"`
	ExpenseDate time.Time       `json:"expense_date" gorm:"column:expense_date;type:date"`

	DepartmentID *uuid.UUID `json:"department_id,omitempty" gorm:"type:uuid;column:department_id"`
	ProjectID    *uuid.UUID `json:"project_id,omitempty" gorm:"type:uuid;column:project_id"`

	CurrentApprovalLevel *int       `json:"current_approval_level,omitempty" gorm:"column:current_approval_level"`
	ApprovedBy           *uuid.UUID `json:"approved_by,omitempty" gorm:"type:uuid;column:approved_by"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty" gorm:"column:approved_at"`
	RejectionReason      string     `json:"rejection_reason,omitempty" gorm:"column:rejection_reason"`
	ReviewComments       string     `json:"review_comments,omitempty" gorm:"column:review_comments"`

	ReceiptURL       *string `json:"receipt_url,omitempty" gorm:"column:receipt_url"`
	RequiresReceipt  bool    `json:"requires_receipt" gorm:"column:requires_receipt"`
	FlaggedForReview bool    `json:"flagged_for_review" gorm:"column:flagged_for_review"`

	Version   int64     `json:"version" gorm:"column:version;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// TableName returns the table name for GORM
func (Expense) TableName() string {
	return "expenses"
}

func (e *Expense) IsPendingApproval() bool {
	return e.Status == StatusSubmitted || e.Status == StatusUnderReview
}

func (e *Expense) CanBeSubmitted() bool {
	return e.Status == StatusDraft
}

func (e *Expense) CanBeMarkedPaid() bool {
	return e.Status == StatusApproved
}

func (e *Expense) HasReceipt() bool {
	return e.ReceiptURL != nil && *e.ReceiptURL != ""
}

// Touch refreshes UpdatedAt; every workflow mutation goes through it.
func (e *Expense) Touch() {
	e.UpdatedAt = time.Now()
}

func (e *Expense) Approve(approverID *uuid.UUID) {
	now := time.Now()
	e.Status = StatusApproved
	e.ApprovedAt = &now
	e.ApprovedBy = approverID
	e.CurrentApprovalLevel = nil
	e.UpdatedAt = now
}

func (e *Expense) Reject(reason string) {
	e.Status = StatusRejected
	e.RejectionReason = reason
	e.CurrentApprovalLevel = nil
	e.Touch()
}
