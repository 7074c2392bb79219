package workflow_test

import (
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sems/expense-service/internal/expense"
	"github.com/sems/expense-service/internal/workflow"
)

var _ = Describe("StatsAggregator", func() {
	var (
		expenses   *mockExpenseRepo
		levels     *mockLevelRepo
		steps      *mockStepRepo
		aggregator *workflow.StatsAggregator
	)

	addLevel := func(number int, name string, active bool) {
		levels.levels = append(levels.levels, &workflow.ApprovalLevel{
			ID:                 uuid.New(),
			Level:              number,
			Name:               name,
			RoleID:             uuid.New(),
			MinAmountThreshold: decimal.Zero,
			Active:             active,
		})
	}

	addPending := func(amount string, level int, status expense.Status) *expense.Expense {
		exp := &expense.Expense{
			ID:                   uuid.New(),
			UserID:               uuid.New(),
			Amount:               decimal.RequireFromString(amount),
			Status:               status,
			CurrentApprovalLevel: &level,
		}
		expenses.put(exp)
		return exp
	}

	addStep := func(expenseID uuid.UUID, level int, action workflow.ApprovalAction, at time.Time) {
		steps.steps = append(steps.steps, &workflow.ApprovalStep{
			ID:         uuid.New(),
			ExpenseID:  expenseID,
			Level:      level,
			Action:     action,
			ActionDate: at,
		})
	}

	BeforeEach(func() {
		expenses = newMockExpenseRepo()
		levels = &mockLevelRepo{}
		steps = &mockStepRepo{}
		lg := slog.New(slog.NewTextHandler(io.Discard, nil))
		aggregator = workflow.NewStatsAggregator(expenses, levels, steps, lg)
	})

	It("returns one row per distinct active level, ascending", func() {
		addLevel(2, "Finance", true)
		addLevel(1, "Manager", true)
		addLevel(3, "Executive", false)

		stats, err := aggregator.Collect()
		Expect(err).NotTo(HaveOccurred())
		Expect(stats).To(HaveLen(2))
		Expect(stats[0].ApprovalLevel).To(Equal(1))
		Expect(stats[0].LevelName).To(Equal("Manager"))
		Expect(stats[1].ApprovalLevel).To(Equal(2))
	})

	It("counts and sums pending expenses at each level", func() {
		addLevel(1, "Manager", true)
		addPending("100.00", 1, expense.StatusSubmitted)
		addPending("250.50", 1, expense.StatusUnderReview)
		addPending("999.00", 2, expense.StatusSubmitted)

		stats, err := aggregator.Collect()
		Expect(err).NotTo(HaveOccurred())
		Expect(stats).To(HaveLen(1))
		Expect(stats[0].PendingCount).To(Equal(int64(2)))
		Expect(stats[0].TotalPendingAmount).To(Equal(decimal.RequireFromString("350.50")))
	})

	It("counts distinct expenses per action at the level", func() {
		addLevel(1, "Manager", true)

		expA := uuid.New()
		expB := uuid.New()
		now := time.Now()
		addStep(expA, 1, workflow.ActionApproved, now)
		addStep(expA, 1, workflow.ActionApproved, now.Add(time.Hour))
		addStep(expB, 1, workflow.ActionRejected, now)

		stats, err := aggregator.Collect()
		Expect(err).NotTo(HaveOccurred())
		Expect(stats[0].ApprovedCount).To(Equal(int64(1)))
		Expect(stats[0].RejectedCount).To(Equal(int64(1)))
	})

	It("averages processing time from first ledger entry to approval, two decimals", func() {
		addLevel(2, "Finance", true)

		start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

		// 2.5h from first step to level-2 approval
		expA := uuid.New()
		addStep(expA, 1, workflow.ActionApproved, start)
		addStep(expA, 2, workflow.ActionApproved, start.Add(150*time.Minute))

		// 1h
		expB := uuid.New()
		addStep(expB, 1, workflow.ActionApproved, start)
		addStep(expB, 2, workflow.ActionApproved, start.Add(time.Hour))

		stats, err := aggregator.Collect()
		Expect(err).NotTo(HaveOccurred())
		Expect(stats).To(HaveLen(1))
		Expect(stats[0].AverageProcessingTimeInHours).NotTo(BeNil())
		Expect(stats[0].AverageProcessingTimeInHours.String()).To(Equal("1.75"))
	})

	It("leaves the average nil when the level has no approvals", func() {
		addLevel(1, "Manager", true)
		addPending("100.00", 1, expense.StatusSubmitted)

		stats, err := aggregator.Collect()
		Expect(err).NotTo(HaveOccurred())
		Expect(stats[0].AverageProcessingTimeInHours).To(BeNil())
	})
})
