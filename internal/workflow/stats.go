package workflow

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sems/expense-service/internal/expense"
)

var secondsPerHour = decimal.NewFromInt(3600)

// StatsAggregator derives per-level workflow statistics on demand from the
// expense store and the step ledger. Nothing here is persisted; every call
// recomputes from source data.
type StatsAggregator struct {
	expenses ExpenseRepository
	levels   LevelRepository
	steps    StepRepository
	logger   *slog.Logger
}

func NewStatsAggregator(expenses ExpenseRepository, levels LevelRepository, steps StepRepository, logger *slog.Logger) *StatsAggregator {
	return &StatsAggregator{
		expenses: expenses,
		levels:   levels,
		steps:    steps,
		logger:   logger,
	}
}

// Collect builds one stats row per distinct active level number, ordered
// ascending. Approved and rejected counts are distinct expenses with a
// matching ledger entry at the level, so historical actions keep counting
// after an expense moves on.
func (a *StatsAggregator) Collect() ([]*WorkflowStats, error) {
	activeLevels, err := a.levels.FindByActive(true)
	if err != nil {
		a.logger.Error("stats: failed to load active levels", "error", err)
		return nil, err
	}

	names := make(map[int]string)
	numbers := make([]int, 0, len(activeLevels))
	for _, level := range activeLevels {
		if _, seen := names[level.Level]; seen {
			continue
		}
		names[level.Level] = level.Name
		numbers = append(numbers, level.Level)
	}
	sort.Ints(numbers)

	stats := make([]*WorkflowStats, 0, len(numbers))
	for _, number := range numbers {
		row, err := a.collectLevel(number, names[number])
		if err != nil {
			return nil, err
		}
		stats = append(stats, row)
	}

	return stats, nil
}

func (a *StatsAggregator) collectLevel(number int, name string) (*WorkflowStats, error) {
	pending, err := a.expenses.FindByCurrentLevelAndStatusIn(number, expense.PendingStatuses)
	if err != nil {
		return nil, err
	}

	totalPending := decimal.Zero
	for _, exp := range pending {
		totalPending = totalPending.Add(exp.Amount)
	}

	approvedSteps, err := a.steps.FindByActionAndLevel(ActionApproved, number)
	if err != nil {
		return nil, err
	}
	rejectedSteps, err := a.steps.FindByActionAndLevel(ActionRejected, number)
	if err != nil {
		return nil, err
	}

	avg, err := a.averageProcessingHours(approvedSteps)
	if err != nil {
		return nil, err
	}

	return &WorkflowStats{
		ApprovalLevel:                number,
		LevelName:                    name,
		PendingCount:                 int64(len(pending)),
		ApprovedCount:                int64(len(distinctExpenses(approvedSteps))),
		RejectedCount:                int64(len(distinctExpenses(rejectedSteps))),
		TotalPendingAmount:           totalPending,
		AverageProcessingTimeInHours: avg,
	}, nil
}

// averageProcessingHours measures, per distinct approved expense, the time
// from its earliest ledger entry to the approval step at this level, and
// averages the per-expense hours. Both the per-expense hours and the final
// average are rounded half-up to two decimal places. Returns nil when no
// approvals exist.
func (a *StatsAggregator) averageProcessingHours(approvedSteps []*ApprovalStep) (*decimal.Decimal, error) {
	latestApproval := make(map[uuid.UUID]*ApprovalStep)
	for _, step := range approvedSteps {
		current, ok := latestApproval[step.ExpenseID]
		if !ok || step.ActionDate.After(current.ActionDate) {
			latestApproval[step.ExpenseID] = step
		}
	}
	if len(latestApproval) == 0 {
		return nil, nil
	}

	sum := decimal.Zero
	count := int64(0)
	for expenseID, approval := range latestApproval {
		history, err := a.steps.FindByExpense(expenseID)
		if err != nil {
			return nil, err
		}
		if len(history) == 0 {
			continue
		}

		earliest := history[0].ActionDate
		for _, step := range history[1:] {
			if step.ActionDate.Before(earliest) {
				earliest = step.ActionDate
			}
		}

		elapsed := approval.ActionDate.Sub(earliest)
		if elapsed < 0 {
			continue
		}
		hours := decimal.NewFromInt(int64(elapsed.Seconds())).DivRound(secondsPerHour, 2)
		sum = sum.Add(hours)
		count++
	}
	if count == 0 {
		return nil, nil
	}

	avg := sum.DivRound(decimal.NewFromInt(count), 2)
	return &avg, nil
}

func distinctExpenses(steps []*ApprovalStep) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(steps))
	for _, step := range steps {
		set[step.ExpenseID] = struct{}{}
	}
	return set
}
