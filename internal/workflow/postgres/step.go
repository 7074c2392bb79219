package postgres

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sems/expense-service/internal/workflow"
)

// StepRepository implements the append-only action ledger using GORM.
// There is deliberately no update or delete method.
type StepRepository struct {
	db *gorm.DB
}

func NewStepRepository(db *gorm.DB) *StepRepository {
	return &StepRepository{db: db}
}

func (r *StepRepository) Append(step *workflow.ApprovalStep) error {
	if step.ID == uuid.Nil {
		step.ID = uuid.New()
	}
	return r.db.Create(step).Error
}

// FindByExpense returns the full ledger for an expense, oldest first.
func (r *StepRepository) FindByExpense(expenseID uuid.UUID) ([]*workflow.ApprovalStep, error) {
	var steps []*workflow.ApprovalStep
	err := r.db.Where("expense_id = ?", expenseID).
		Order("action_date ASC").
		Find(&steps).Error
	return steps, err
}

func (r *StepRepository) FindLatestByExpense(expenseID uuid.UUID) (*workflow.ApprovalStep, error) {
	var step workflow.ApprovalStep
	err := r.db.Where("expense_id = ?", expenseID).
		Order("action_date DESC").
		First(&step).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &step, nil
}

func (r *StepRepository) FindByExpenseAndLevel(expenseID uuid.UUID, level int) ([]*workflow.ApprovalStep, error) {
	var steps []*workflow.ApprovalStep
	err := r.db.Where("expense_id = ? AND level = ?", expenseID, level).
		Order("action_date ASC").
		Find(&steps).Error
	return steps, err
}

func (r *StepRepository) FindByActionAndLevel(action workflow.ApprovalAction, level int) ([]*workflow.ApprovalStep, error) {
	var steps []*workflow.ApprovalStep
	err := r.db.Where("action = ? AND level = ?", action, level).
		Order("action_date ASC").
		Find(&steps).Error
	return steps, err
}
