package workflow_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sems/expense-service/internal/workflow"
)

var _ = Describe("ResolveLevels", func() {
	var (
		deptA uuid.UUID
		deptB uuid.UUID
	)

	level := func(number int, departmentID *uuid.UUID, min, max string, active bool) *workflow.ApprovalLevel {
		l := &workflow.ApprovalLevel{
			ID:                 uuid.New(),
			Level:              number,
			DepartmentID:       departmentID,
			RoleID:             uuid.New(),
			MinAmountThreshold: decimal.RequireFromString(min),
			Active:             active,
		}
		if max != "" {
			m := decimal.RequireFromString(max)
			l.MaxAmountThreshold = &m
		}
		return l
	}

	numbers := func(levels []*workflow.ApprovalLevel) []int {
		out := make([]int, 0, len(levels))
		for _, l := range levels {
			out = append(out, l.Level)
		}
		return out
	}

	BeforeEach(func() {
		deptA = uuid.New()
		deptB = uuid.New()
	})

	It("prefers department-scoped levels when any match", func() {
		candidates := []*workflow.ApprovalLevel{
			level(1, nil, "0", "", true),
			level(2, nil, "0", "", true),
			level(1, &deptA, "0", "", true),
		}

		resolved := workflow.ResolveLevels(candidates, decimal.RequireFromString("100"), &deptA)
		Expect(resolved).To(HaveLen(1))
		Expect(resolved[0].DepartmentID).To(HaveValue(Equal(deptA)))
	})

	It("falls back to unscoped levels when the department has none", func() {
		candidates := []*workflow.ApprovalLevel{
			level(1, nil, "0", "", true),
			level(1, &deptB, "0", "", true),
		}

		resolved := workflow.ResolveLevels(candidates, decimal.RequireFromString("100"), &deptA)
		Expect(resolved).To(HaveLen(1))
		Expect(resolved[0].DepartmentID).To(BeNil())
	})

	It("uses unscoped levels for an expense without a department", func() {
		candidates := []*workflow.ApprovalLevel{
			level(1, nil, "0", "", true),
			level(1, &deptA, "0", "", true),
		}

		resolved := workflow.ResolveLevels(candidates, decimal.RequireFromString("100"), nil)
		Expect(resolved).To(HaveLen(1))
		Expect(resolved[0].DepartmentID).To(BeNil())
	})

	It("excludes inactive levels", func() {
		candidates := []*workflow.ApprovalLevel{
			level(1, nil, "0", "", true),
			level(2, nil, "0", "", false),
		}

		resolved := workflow.ResolveLevels(candidates, decimal.RequireFromString("100"), nil)
		Expect(numbers(resolved)).To(Equal([]int{1}))
	})

	It("excludes levels whose bracket misses the amount", func() {
		candidates := []*workflow.ApprovalLevel{
			level(1, nil, "0", "999.99", true),
			level(2, nil, "1000", "", true),
		}

		resolved := workflow.ResolveLevels(candidates, decimal.RequireFromString("1500"), nil)
		Expect(numbers(resolved)).To(Equal([]int{2}))
	})

	It("treats the thresholds as inclusive bounds", func() {
		candidates := []*workflow.ApprovalLevel{
			level(1, nil, "100.00", "200.00", true),
		}

		Expect(workflow.ResolveLevels(candidates, decimal.RequireFromString("100.00"), nil)).To(HaveLen(1))
		Expect(workflow.ResolveLevels(candidates, decimal.RequireFromString("200.00"), nil)).To(HaveLen(1))
		Expect(workflow.ResolveLevels(candidates, decimal.RequireFromString("200.01"), nil)).To(BeEmpty())
	})

	It("sorts the ladder ascending by level number", func() {
		candidates := []*workflow.ApprovalLevel{
			level(3, nil, "0", "", true),
			level(1, nil, "0", "", true),
			level(2, nil, "0", "", true),
		}

		resolved := workflow.ResolveLevels(candidates, decimal.RequireFromString("100"), nil)
		Expect(numbers(resolved)).To(Equal([]int{1, 2, 3}))
	})

	It("returns an empty ladder when nothing matches", func() {
		resolved := workflow.ResolveLevels(nil, decimal.RequireFromString("100"), nil)
		Expect(resolved).To(BeEmpty())
	})
})
