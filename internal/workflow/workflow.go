package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sems/expense-service/internal/expense"
)

// ApprovalAction is the closed set of actions recorded in the step ledger.
type ApprovalAction string

const (
	ActionApproved         ApprovalAction = "approved"
	ActionRejected         ApprovalAction = "rejected"
	ActionRequestedChanges ApprovalAction = "requested_changes"
	ActionEscalated        ApprovalAction = "escalated"
	ActionDelegated        ApprovalAction = "delegated"
)

// ApprovalLevel is one configured rung of the approval ladder: an amount
// bracket mapped to the role that must sign off at that position. A nil
// DepartmentID means the level applies when no department-specific level
// matches; a nil MaxAmountThreshold means no upper bound.
type ApprovalLevel struct {
	ID                 uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	Level              int              `json:"level" gorm:"column:level;not null"`
	Name               string           `json:"name" gorm:"column:name"`
	Description        string           `json:"description" gorm:"column:description"`
	DepartmentID       *uuid.UUID       `json:"department_id,omitempty" gorm:"type:uuid;column:department_id"`
	RoleID             uuid.UUID        `json:"role_id" gorm:"type:uuid;column:role_id;not null"`
	MinAmountThreshold decimal.Decimal  `json:"min_amount_threshold" gorm:"type:numeric(14,2);column:min_amount_threshold"`
	MaxAmountThreshold *decimal.Decimal `json:"max_amount_threshold,omitempty" gorm:"type:numeric(14,2);column:max_amount_threshold"`
	RequiresReceipt    bool             `json:"requires_receipt" gorm:"column:requires_receipt"`
	Active             bool             `json:"active" gorm:"column:active;default:true"`
	RequiredApprovers  int              `json:"required_approvers" gorm:"column:required_approvers;default:1"`
	CreatedAt          time.Time        `json:"created_at" gorm:"column:created_at"`
	UpdatedAt          time.Time        `json:"updated_at" gorm:"column:updated_at"`
}

func (ApprovalLevel) TableName() string {
	return "approval_levels"
}

// Brackets reports whether the amount falls inside this level's thresholds.
func (l *ApprovalLevel) Brackets(amount decimal.Decimal) bool {
	if amount.LessThan(l.MinAmountThreshold) {
		return false
	}
	if l.MaxAmountThreshold != nil && amount.GreaterThan(*l.MaxAmountThreshold) {
		return false
	}
	return true
}

// ApprovalStep is an immutable audit record of one workflow action. A nil
// ApproverID marks a system action (auto-approval).
type ApprovalStep struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	ExpenseID  uuid.UUID      `json:"expense_id" gorm:"type:uuid;column:expense_id;not null"`
	Level      int            `json:"level" gorm:"column:level"`
	ApproverID *uuid.UUID     `json:"approver_id,omitempty" gorm:"type:uuid;column:approver_id"`
	Action     ApprovalAction `json:"action" gorm:"column:action;not null"`
	Comments   string         `json:"comments" gorm:"column:comments"`
	ActionDate time.Time      `json:"action_date" gorm:"column:action_date;not null"`
}

func (ApprovalStep) TableName() string {
	return "approval_steps"
}

// WorkflowStats is derived per level on demand; it is never persisted.
// AverageProcessingTimeInHours is nil when no approvals exist at the level.
type WorkflowStats struct {
	ApprovalLevel                int              `json:"approval_level"`
	LevelName                    string           `json:"level_name"`
	PendingCount                 int64            `json:"pending_count"`
	ApprovedCount                int64            `json:"approved_count"`
	RejectedCount                int64            `json:"rejected_count"`
	TotalPendingAmount           decimal.Decimal  `json:"total_pending_amount"`
	AverageProcessingTimeInHours *decimal.Decimal `json:"average_processing_time_in_hours,omitempty"`
}

// ExpenseRepository is the engine's view of the expense store.
type ExpenseRepository interface {
	FindByID(id uuid.UUID) (*expense.Expense, error)
	Save(exp *expense.Expense) error
	ExistsByID(id uuid.UUID) (bool, error)
	FindByCurrentLevelAndStatusIn(level int, statuses []expense.Status) ([]*expense.Expense, error)
	FindByStatusAndAmountLessThanEqual(status expense.Status, amount decimal.Decimal) ([]*expense.Expense, error)
	FindAllByID(ids []uuid.UUID) ([]*expense.Expense, error)
}

// LevelRepository is the read-mostly approval level catalog.
type LevelRepository interface {
	FindByAmountBetweenThresholds(amount decimal.Decimal) ([]*ApprovalLevel, error)
	FindByActive(active bool) ([]*ApprovalLevel, error)
	FindByLevelAndDepartment(level int, departmentID *uuid.UUID) (*ApprovalLevel, error)
	FindByRoleID(roleID uuid.UUID) ([]*ApprovalLevel, error)
}

// StepRepository is the append-only action ledger. Steps are never updated
// or deleted.
type StepRepository interface {
	Append(step *ApprovalStep) error
	FindByExpense(expenseID uuid.UUID) ([]*ApprovalStep, error)
	FindLatestByExpense(expenseID uuid.UUID) (*ApprovalStep, error)
	FindByExpenseAndLevel(expenseID uuid.UUID, level int) ([]*ApprovalStep, error)
	FindByActionAndLevel(action ApprovalAction, level int) ([]*ApprovalStep, error)
}

// UserDirectory is the identity service boundary. Implementations must
// bound each call with a timeout.
type UserDirectory interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	RolesOf(ctx context.Context, id uuid.UUID) (map[uuid.UUID]struct{}, error)
}
