package postgres

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sems/expense-service/internal/workflow"
)

// LevelRepository implements the approval level catalog using GORM. The
// catalog is read-mostly; writes happen through migrations and the seeder.
type LevelRepository struct {
	db *gorm.DB
}

func NewLevelRepository(db *gorm.DB) *LevelRepository {
	return &LevelRepository{db: db}
}

// FindByAmountBetweenThresholds returns every level whose bracket contains
// the amount, active or not. Scope and activity filtering is the resolver's
// job.
func (r *LevelRepository) FindByAmountBetweenThresholds(amount decimal.Decimal) ([]*workflow.ApprovalLevel, error) {
	var levels []*workflow.ApprovalLevel
	err := r.db.
		Where("min_amount_threshold <= ? AND (max_amount_threshold IS NULL OR max_amount_threshold >= ?)", amount, amount).
		Order("level ASC").
		Find(&levels).Error
	return levels, err
}

func (r *LevelRepository) FindByActive(active bool) ([]*workflow.ApprovalLevel, error) {
	var levels []*workflow.ApprovalLevel
	err := r.db.Where("active = ?", active).
		Order("level ASC").
		Find(&levels).Error
	return levels, err
}

// FindByLevelAndDepartment returns the catalog row for a level number in a
// department scope, nil when none exists. A nil departmentID matches only
// unscoped rows.
func (r *LevelRepository) FindByLevelAndDepartment(level int, departmentID *uuid.UUID) (*workflow.ApprovalLevel, error) {
	query := r.db.Where("level = ?", level)
	if departmentID != nil {
		query = query.Where("department_id = ?", *departmentID)
	} else {
		query = query.Where("department_id IS NULL")
	}

	var row workflow.ApprovalLevel
	err := query.First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *LevelRepository) FindByRoleID(roleID uuid.UUID) ([]*workflow.ApprovalLevel, error) {
	var levels []*workflow.ApprovalLevel
	err := r.db.Where("role_id = ?", roleID).
		Order("level ASC").
		Find(&levels).Error
	return levels, err
}

// Create inserts a catalog row. Used by the seeder.
func (r *LevelRepository) Create(level *workflow.ApprovalLevel) error {
	if level.ID == uuid.Nil {
		level.ID = uuid.New()
	}
	return r.db.Create(level).Error
}
