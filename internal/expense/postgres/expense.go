package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	errors "github.com/sems/expense-service/internal"
	"github.com/sems/expense-service/internal/expense"
)

// ExpenseRepository implements the expense store using GORM. It satisfies
// both the CRUD-side expense.Repository and the engine's ExpenseRepository.
type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// Create saves a new expense to the database
func (r *ExpenseRepository) Create(exp *expense.Expense) error {
	if exp.ID == uuid.Nil {
		exp.ID = uuid.New()
	}
	return r.db.Create(exp).Error
}

// FindByID retrieves an expense by its ID
func (r *ExpenseRepository) FindByID(id uuid.UUID) (*expense.Expense, error) {
	var exp expense.Expense
	err := r.db.Where("id = ?", id).First(&exp).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrExpenseNotFound
		}
		return nil, err
	}
	return &exp, nil
}

// Save persists the full expense row guarded by the version column. A
// writer holding a stale version affects zero rows and gets
// ErrConcurrentModification so it can re-read and retry.
func (r *ExpenseRepository) Save(exp *expense.Expense) error {
	staleVersion := exp.Version
	exp.Version = staleVersion + 1
	exp.UpdatedAt = time.Now()

	result := r.db.Model(&expense.Expense{}).
		Where("id = ? AND version = ?", exp.ID, staleVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(exp)
	if result.Error != nil {
		exp.Version = staleVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		exp.Version = staleVersion
		return errors.ErrConcurrentModification
	}
	return nil
}

func (r *ExpenseRepository) ExistsByID(id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&expense.Expense{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// FindByUserID retrieves expenses for a specific user with pagination
func (r *ExpenseRepository) FindByUserID(userID uuid.UUID, limit, offset int) ([]*expense.Expense, error) {
	var expenses []*expense.Expense
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&expenses).Error
	return expenses, err
}

// FindByCurrentLevelAndStatusIn retrieves expenses sitting at an approval
// level in any of the given statuses, FIFO by creation time.
func (r *ExpenseRepository) FindByCurrentLevelAndStatusIn(level int, statuses []expense.Status) ([]*expense.Expense, error) {
	var expenses []*expense.Expense
	err := r.db.Where("current_approval_level = ? AND status IN ?", level, statuses).
		Order("created_at ASC").
		Find(&expenses).Error
	return expenses, err
}

func (r *ExpenseRepository) FindByStatusAndAmountLessThanEqual(status expense.Status, amount decimal.Decimal) ([]*expense.Expense, error) {
	var expenses []*expense.Expense
	err := r.db.Where("status = ? AND amount <= ?", status, amount).
		Order("created_at ASC").
		Find(&expenses).Error
	return expenses, err
}

func (r *ExpenseRepository) FindAllByID(ids []uuid.UUID) ([]*expense.Expense, error) {
	if len(ids) == 0 {
		return []*expense.Expense{}, nil
	}
	var expenses []*expense.Expense
	err := r.db.Where("id IN ?", ids).Find(&expenses).Error
	return expenses, err
}
