package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/sems/expense-service/internal"
	"github.com/sems/expense-service/internal/core/events"
	"github.com/sems/expense-service/internal/expense"
	"github.com/sems/expense-service/internal/workflow"
)

func TestWorkflow(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Workflow Suite")
}

// Mock expense repository. FindByID hands out copies so that an engine
// mutation only becomes visible after a successful Save.
type mockExpenseRepo struct {
	expenses map[uuid.UUID]*expense.Expense
	saveErr  map[uuid.UUID]error
	findErr  error
}

func newMockExpenseRepo() *mockExpenseRepo {
	return &mockExpenseRepo{
		expenses: make(map[uuid.UUID]*expense.Expense),
		saveErr:  make(map[uuid.UUID]error),
	}
}

func (m *mockExpenseRepo) put(exp *expense.Expense) {
	clone := *exp
	m.expenses[exp.ID] = &clone
}

func (m *mockExpenseRepo) get(id uuid.UUID) *expense.Expense {
	return m.expenses[id]
}

func (m *mockExpenseRepo) FindByID(id uuid.UUID) (*expense.Expense, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	exp, ok := m.expenses[id]
	if !ok {
		return nil, apperrors.ErrExpenseNotFound
	}
	clone := *exp
	return &clone, nil
}

func (m *mockExpenseRepo) Save(exp *expense.Expense) error {
	if err := m.saveErr[exp.ID]; err != nil {
		return err
	}
	clone := *exp
	clone.Version++
	m.expenses[exp.ID] = &clone
	exp.Version = clone.Version
	return nil
}

func (m *mockExpenseRepo) ExistsByID(id uuid.UUID) (bool, error) {
	_, ok := m.expenses[id]
	return ok, nil
}

func (m *mockExpenseRepo) FindByCurrentLevelAndStatusIn(level int, statuses []expense.Status) ([]*expense.Expense, error) {
	var out []*expense.Expense
	for _, exp := range m.expenses {
		if exp.CurrentApprovalLevel == nil || *exp.CurrentApprovalLevel != level {
			continue
		}
		for _, status := range statuses {
			if exp.Status == status {
				clone := *exp
				out = append(out, &clone)
				break
			}
		}
	}
	return out, nil
}

func (m *mockExpenseRepo) FindByStatusAndAmountLessThanEqual(status expense.Status, amount decimal.Decimal) ([]*expense.Expense, error) {
	var out []*expense.Expense
	for _, exp := range m.expenses {
		if exp.Status == status && exp.Amount.LessThanOrEqual(amount) {
			clone := *exp
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *mockExpenseRepo) FindAllByID(ids []uuid.UUID) ([]*expense.Expense, error) {
	var out []*expense.Expense
	for _, id := range ids {
		if exp, ok := m.expenses[id]; ok {
			clone := *exp
			out = append(out, &clone)
		}
	}
	return out, nil
}

type mockLevelRepo struct {
	levels []*workflow.ApprovalLevel
	err    error
}

func (m *mockLevelRepo) FindByAmountBetweenThresholds(amount decimal.Decimal) ([]*workflow.ApprovalLevel, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*workflow.ApprovalLevel
	for _, l := range m.levels {
		if l.Brackets(amount) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLevelRepo) FindByActive(active bool) ([]*workflow.ApprovalLevel, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*workflow.ApprovalLevel
	for _, l := range m.levels {
		if l.Active == active {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLevelRepo) FindByLevelAndDepartment(level int, departmentID *uuid.UUID) (*workflow.ApprovalLevel, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, l := range m.levels {
		if l.Level != level {
			continue
		}
		if departmentID == nil && l.DepartmentID == nil {
			return l, nil
		}
		if departmentID != nil && l.DepartmentID != nil && *l.DepartmentID == *departmentID {
			return l, nil
		}
	}
	return nil, nil
}

func (m *mockLevelRepo) FindByRoleID(roleID uuid.UUID) ([]*workflow.ApprovalLevel, error) {
	var out []*workflow.ApprovalLevel
	for _, l := range m.levels {
		if l.RoleID == roleID {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockStepRepo struct {
	steps     []*workflow.ApprovalStep
	appendErr error
}

func (m *mockStepRepo) Append(step *workflow.ApprovalStep) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	clone := *step
	m.steps = append(m.steps, &clone)
	return nil
}

func (m *mockStepRepo) FindByExpense(expenseID uuid.UUID) ([]*workflow.ApprovalStep, error) {
	var out []*workflow.ApprovalStep
	for _, s := range m.steps {
		if s.ExpenseID == expenseID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStepRepo) FindLatestByExpense(expenseID uuid.UUID) (*workflow.ApprovalStep, error) {
	steps, _ := m.FindByExpense(expenseID)
	if len(steps) == 0 {
		return nil, nil
	}
	latest := steps[0]
	for _, s := range steps[1:] {
		if s.ActionDate.After(latest.ActionDate) {
			latest = s
		}
	}
	return latest, nil
}

func (m *mockStepRepo) FindByExpenseAndLevel(expenseID uuid.UUID, level int) ([]*workflow.ApprovalStep, error) {
	var out []*workflow.ApprovalStep
	for _, s := range m.steps {
		if s.ExpenseID == expenseID && s.Level == level {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStepRepo) FindByActionAndLevel(action workflow.ApprovalAction, level int) ([]*workflow.ApprovalStep, error) {
	var out []*workflow.ApprovalStep
	for _, s := range m.steps {
		if s.Action == action && s.Level == level {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockDirectory struct {
	users map[uuid.UUID]bool
	roles map[uuid.UUID]map[uuid.UUID]struct{}
	err   error
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		users: make(map[uuid.UUID]bool),
		roles: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func (m *mockDirectory) addUser(id uuid.UUID, roleIDs ...uuid.UUID) {
	m.users[id] = true
	set := make(map[uuid.UUID]struct{})
	for _, r := range roleIDs {
		set[r] = struct{}{}
	}
	m.roles[id] = set
}

func (m *mockDirectory) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.users[id], nil
}

func (m *mockDirectory) RolesOf(ctx context.Context, id uuid.UUID) (map[uuid.UUID]struct{}, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.roles[id], nil
}

type recordingPublisher struct {
	published []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.published = append(p.published, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, 0, len(p.published))
	for _, e := range p.published {
		out = append(out, e.EventType())
	}
	return out
}

var _ = Describe("Workflow Service", func() {
	var (
		expenses  *mockExpenseRepo
		levels    *mockLevelRepo
		steps     *mockStepRepo
		directory *mockDirectory
		publisher *recordingPublisher
		service   *workflow.Service
		ctx       context.Context

		managerRole uuid.UUID
		financeRole uuid.UUID
		managerID   uuid.UUID
		financeID   uuid.UUID
	)

	threshold := decimal.RequireFromString("50.00")

	makeLevel := func(number int, roleID uuid.UUID, min, max string) *workflow.ApprovalLevel {
		l := &workflow.ApprovalLevel{
			ID:                 uuid.New(),
			Level:              number,
			Name:               fmt.Sprintf("Level %d", number),
			RoleID:             roleID,
			MinAmountThreshold: decimal.RequireFromString(min),
			Active:             true,
			RequiredApprovers:  1,
		}
		if max != "" {
			m := decimal.RequireFromString(max)
			l.MaxAmountThreshold = &m
		}
		return l
	}

	makeDraft := func(amount string) *expense.Expense {
		return &expense.Expense{
			ID:          uuid.New(),
			UserID:      uuid.New(),
			Title:       "Team lunch",
			Amount:      decimal.RequireFromString(amount),
			Currency:    "USD",
			Category:    "meals",
			Status:      expense.StatusDraft,
			ExpenseDate: time.Now().AddDate(0, 0, -1),
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
	}

	submitAt := func(exp *expense.Expense, level int) {
		exp.Status = expense.StatusSubmitted
		exp.CurrentApprovalLevel = &level
	}

	BeforeEach(func() {
		expenses = newMockExpenseRepo()
		levels = &mockLevelRepo{}
		steps = &mockStepRepo{}
		directory = newMockDirectory()
		publisher = &recordingPublisher{}
		ctx = context.Background()

		managerRole = uuid.New()
		financeRole = uuid.New()
		managerID = uuid.New()
		financeID = uuid.New()
		directory.addUser(managerID, managerRole)
		directory.addUser(financeID, financeRole)

		levels.levels = []*workflow.ApprovalLevel{
			makeLevel(1, managerRole, "0.00", "999.99"),
			makeLevel(2, financeRole, "500.00", ""),
		}

		lg := slog.New(slog.NewTextHandler(io.Discard, nil))
		service = workflow.NewService(expenses, levels, steps, directory, publisher, threshold, lg)
	})

	Describe("SubmitForApproval", func() {
		It("submits a draft at the first resolved level", func() {
			exp := makeDraft("500.00")
			expenses.put(exp)

			result, err := service.SubmitForApproval(ctx, exp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(expense.StatusSubmitted))
			Expect(result.CurrentApprovalLevel).To(HaveValue(Equal(1)))

			stored := expenses.get(exp.ID)
			Expect(stored.Status).To(Equal(expense.StatusSubmitted))
			Expect(publisher.types()).To(ConsistOf(events.EventTypeExpenseSubmitted))
			Expect(steps.steps).To(BeEmpty())
		})

		It("auto-approves a low amount and records a system step", func() {
			exp := makeDraft("45.00")
			expenses.put(exp)

			result, err := service.SubmitForApproval(ctx, exp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(expense.StatusApproved))
			Expect(result.ApprovedBy).To(BeNil())
			Expect(result.ApprovedAt).NotTo(BeNil())
			Expect(result.CurrentApprovalLevel).To(BeNil())

			Expect(steps.steps).To(HaveLen(1))
			Expect(steps.steps[0].Action).To(Equal(workflow.ActionApproved))
			Expect(steps.steps[0].ApproverID).To(BeNil())
			Expect(steps.steps[0].Level).To(Equal(1))
			Expect(publisher.types()).To(ConsistOf(events.EventTypeExpenseAutoApproved))
		})

		It("approves exactly at the threshold", func() {
			exp := makeDraft("50.00")
			expenses.put(exp)

			result, err := service.SubmitForApproval(ctx, exp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(expense.StatusApproved))
		})

		It("does not auto-approve when a required receipt is missing", func() {
			exp := makeDraft("45.00")
			exp.RequiresReceipt = true
			expenses.put(exp)

			_, err := service.SubmitForApproval(ctx, exp.ID)
			Expect(err).To(HaveOccurred())

			var appErr *apperrors.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeValidation))

			stored := expenses.get(exp.ID)
			Expect(stored.Status).To(Equal(expense.StatusDraft))
		})

		It("rejects submission when no workflow covers the amount", func() {
			levels.levels = nil
			exp := makeDraft("75.00")
			expenses.put(exp)

			_, err := service.SubmitForApproval(ctx, exp.ID)
			Expect(err).To(MatchError(apperrors.ErrNoWorkflowDefined))
		})

		It("rejects submission of a non-draft expense", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)

			_, err := service.SubmitForApproval(ctx, exp.ID)
			Expect(err).To(MatchError(apperrors.ErrInvalidWorkflowState))
		})

		It("requires a rework expense to go back through draft first", func() {
			exp := makeDraft("500.00")
			exp.Status = expense.StatusChangesRequested
			level := 1
			exp.CurrentApprovalLevel = &level
			expenses.put(exp)

			_, err := service.SubmitForApproval(ctx, exp.ID)
			Expect(err).To(MatchError(apperrors.ErrInvalidWorkflowState))
		})
	})

	Describe("ApproveExpense", func() {
		It("advances to the next level on a mid-ladder approval", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)

			result, err := service.ApproveExpense(ctx, exp.ID, managerID, "looks fine")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(expense.StatusUnderReview))
			Expect(result.CurrentApprovalLevel).To(HaveValue(Equal(2)))

			Expect(steps.steps).To(HaveLen(1))
			Expect(steps.steps[0].Level).To(Equal(1))
			Expect(steps.steps[0].ApproverID).To(HaveValue(Equal(managerID)))
			Expect(steps.steps[0].Comments).To(Equal("looks fine"))
		})

		It("finalizes on the last level of the ladder", func() {
			exp := makeDraft("500.00")
			exp.Status = expense.StatusUnderReview
			level := 2
			exp.CurrentApprovalLevel = &level
			expenses.put(exp)

			result, err := service.ApproveExpense(ctx, exp.ID, financeID, "approved")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(expense.StatusApproved))
			Expect(result.ApprovedBy).To(HaveValue(Equal(financeID)))
			Expect(result.CurrentApprovalLevel).To(BeNil())

			Expect(steps.steps).To(HaveLen(1))
			Expect(steps.steps[0].Level).To(Equal(2))
		})

		It("walks a 500 dollar expense through both levels", func() {
			exp := makeDraft("500.00")
			expenses.put(exp)

			_, err := service.SubmitForApproval(ctx, exp.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.ApproveExpense(ctx, exp.ID, managerID, "ok")
			Expect(err).NotTo(HaveOccurred())

			result, err := service.ApproveExpense(ctx, exp.ID, financeID, "ok")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(expense.StatusApproved))
			Expect(steps.steps).To(HaveLen(2))
		})

		It("freezes and flags when the current level left the ladder", func() {
			exp := makeDraft("500.00")
			exp.Status = expense.StatusUnderReview
			level := 7
			exp.CurrentApprovalLevel = &level
			expenses.put(exp)

			result, err := service.ApproveExpense(ctx, exp.ID, managerID, "stale level")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(expense.StatusUnderReview))
			Expect(result.CurrentApprovalLevel).To(HaveValue(Equal(7)))
			Expect(result.FlaggedForReview).To(BeTrue())

			Expect(steps.steps).To(HaveLen(1))
			Expect(steps.steps[0].Level).To(Equal(7))
		})

		It("refuses an approver without the role for the level", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)

			_, err := service.ApproveExpense(ctx, exp.ID, financeID, "wrong role")
			Expect(err).To(MatchError(apperrors.ErrNotAuthorizedForLevel))
			Expect(steps.steps).To(BeEmpty())

			stored := expenses.get(exp.ID)
			Expect(stored.Status).To(Equal(expense.StatusSubmitted))
		})

		It("refuses an unknown approver", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)

			_, err := service.ApproveExpense(ctx, exp.ID, uuid.New(), "who")
			Expect(err).To(MatchError(apperrors.ErrApproverNotFound))
		})

		It("surfaces a directory outage as a retryable error", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)
			directory.err = errors.New("connection refused")

			_, err := service.ApproveExpense(ctx, exp.ID, managerID, "down")
			Expect(err).To(MatchError(apperrors.ErrUserDirectoryUnavailable))

			var appErr *apperrors.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.Retryable).To(BeTrue())
		})

		It("rejects approval of an expense not pending", func() {
			exp := makeDraft("500.00")
			expenses.put(exp)

			_, err := service.ApproveExpense(ctx, exp.ID, managerID, "draft")
			Expect(err).To(MatchError(apperrors.ErrInvalidWorkflowState))
		})

		It("propagates a concurrent modification conflict", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)
			expenses.saveErr[exp.ID] = apperrors.ErrConcurrentModification

			_, err := service.ApproveExpense(ctx, exp.ID, managerID, "racing")
			Expect(err).To(MatchError(apperrors.ErrConcurrentModification))
			Expect(steps.steps).To(BeEmpty())
		})

		It("returns a distinct retryable error when the ledger append fails", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)
			steps.appendErr = errors.New("ledger unavailable")

			_, err := service.ApproveExpense(ctx, exp.ID, managerID, "ok")
			Expect(err).To(MatchError(apperrors.ErrLedgerAppendFailed))

			// the expense write itself went through
			stored := expenses.get(exp.ID)
			Expect(stored.Status).To(Equal(expense.StatusUnderReview))
		})
	})

	Describe("RejectExpense", func() {
		It("terminates the workflow and clears the level", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)

			result, err := service.RejectExpense(ctx, exp.ID, managerID, "not a business expense")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(expense.StatusRejected))
			Expect(result.RejectionReason).To(Equal("not a business expense"))
			Expect(result.CurrentApprovalLevel).To(BeNil())

			Expect(steps.steps).To(HaveLen(1))
			Expect(steps.steps[0].Action).To(Equal(workflow.ActionRejected))
			Expect(steps.steps[0].Level).To(Equal(1))
			Expect(publisher.types()).To(ConsistOf(events.EventTypeExpenseRejected))
		})

		It("refuses to reject a terminal expense", func() {
			exp := makeDraft("500.00")
			exp.Status = expense.StatusApproved
			expenses.put(exp)

			_, err := service.RejectExpense(ctx, exp.ID, managerID, "too late")
			Expect(err).To(MatchError(apperrors.ErrInvalidWorkflowState))
		})
	})

	Describe("RequestChanges", func() {
		It("parks the expense for rework and keeps the level", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)

			result, err := service.RequestChanges(ctx, exp.ID, managerID, "attach the receipt")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(expense.StatusChangesRequested))
			Expect(result.ReviewComments).To(Equal("attach the receipt"))
			Expect(result.CurrentApprovalLevel).To(HaveValue(Equal(1)))

			Expect(steps.steps).To(HaveLen(1))
			Expect(steps.steps[0].Action).To(Equal(workflow.ActionRequestedChanges))
		})
	})

	Describe("EscalateExpense", func() {
		It("jumps straight to the highest level and flags the expense", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)

			result, err := service.EscalateExpense(ctx, exp.ID, managerID, "policy exception")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(expense.StatusUnderReview))
			Expect(result.CurrentApprovalLevel).To(HaveValue(Equal(2)))
			Expect(result.FlaggedForReview).To(BeTrue())
			Expect(result.ReviewComments).To(Equal("policy exception"))

			Expect(steps.steps).To(HaveLen(1))
			Expect(steps.steps[0].Action).To(Equal(workflow.ActionEscalated))
			Expect(steps.steps[0].Level).To(Equal(1))
		})
	})

	Describe("DelegateApproval", func() {
		It("records an audit step without touching status or level", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)

			result, err := service.DelegateApproval(ctx, exp.ID, managerID, financeID, "on vacation")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(expense.StatusSubmitted))
			Expect(result.CurrentApprovalLevel).To(HaveValue(Equal(1)))

			Expect(steps.steps).To(HaveLen(1))
			Expect(steps.steps[0].Action).To(Equal(workflow.ActionDelegated))
			Expect(steps.steps[0].Comments).To(ContainSubstring(financeID.String()))
			Expect(steps.steps[0].Comments).To(ContainSubstring("on vacation"))
		})

		It("refuses an unknown delegate", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)

			_, err := service.DelegateApproval(ctx, exp.ID, managerID, uuid.New(), "nobody home")
			Expect(err).To(MatchError(apperrors.ErrDelegateNotFound))
			Expect(steps.steps).To(BeEmpty())
		})
	})

	Describe("MarkAsPaid", func() {
		It("closes out an approved expense without a ledger step", func() {
			exp := makeDraft("500.00")
			exp.Status = expense.StatusApproved
			expenses.put(exp)

			result, err := service.MarkAsPaid(ctx, exp.ID, financeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(expense.StatusPaid))
			Expect(steps.steps).To(BeEmpty())
			Expect(publisher.types()).To(ConsistOf(events.EventTypeExpensePaid))
		})

		It("refuses to pay anything not approved", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)

			_, err := service.MarkAsPaid(ctx, exp.ID, financeID)
			Expect(err).To(MatchError(apperrors.ErrInvalidWorkflowState))
		})
	})

	Describe("ProcessLowValueAutoApproval", func() {
		It("approves eligible submitted expenses and counts them", func() {
			small := makeDraft("30.00")
			submitAt(small, 1)
			expenses.put(small)

			atThreshold := makeDraft("50.00")
			submitAt(atThreshold, 1)
			expenses.put(atThreshold)

			big := makeDraft("800.00")
			submitAt(big, 1)
			expenses.put(big)

			count, err := service.ProcessLowValueAutoApproval(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))

			Expect(expenses.get(small.ID).Status).To(Equal(expense.StatusApproved))
			Expect(expenses.get(atThreshold.ID).Status).To(Equal(expense.StatusApproved))
			Expect(expenses.get(big.ID).Status).To(Equal(expense.StatusSubmitted))
			Expect(steps.steps).To(HaveLen(2))
		})

		It("skips expenses missing a required receipt", func() {
			noReceipt := makeDraft("30.00")
			noReceipt.RequiresReceipt = true
			submitAt(noReceipt, 1)
			expenses.put(noReceipt)

			url := "https://receipts.example.com/1.pdf"
			withReceipt := makeDraft("30.00")
			withReceipt.RequiresReceipt = true
			withReceipt.ReceiptURL = &url
			submitAt(withReceipt, 1)
			expenses.put(withReceipt)

			count, err := service.ProcessLowValueAutoApproval(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
			Expect(expenses.get(noReceipt.ID).Status).To(Equal(expense.StatusSubmitted))
			Expect(expenses.get(withReceipt.ID).Status).To(Equal(expense.StatusApproved))
		})

		It("keeps sweeping after one expense fails to save", func() {
			failing := makeDraft("20.00")
			submitAt(failing, 1)
			expenses.put(failing)
			expenses.saveErr[failing.ID] = apperrors.ErrConcurrentModification

			fine := makeDraft("25.00")
			submitAt(fine, 1)
			expenses.put(fine)

			count, err := service.ProcessLowValueAutoApproval(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
			Expect(expenses.get(fine.ID).Status).To(Equal(expense.StatusApproved))
			Expect(expenses.get(failing.ID).Status).To(Equal(expense.StatusSubmitted))
		})
	})

	Describe("GetApprovalHistory", func() {
		It("returns the ledger for an existing expense", func() {
			exp := makeDraft("500.00")
			submitAt(exp, 1)
			expenses.put(exp)

			_, err := service.ApproveExpense(ctx, exp.ID, managerID, "ok")
			Expect(err).NotTo(HaveOccurred())

			history, err := service.GetApprovalHistory(ctx, exp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(1))
		})

		It("fails for an unknown expense", func() {
			_, err := service.GetApprovalHistory(ctx, uuid.New())
			Expect(err).To(MatchError(apperrors.ErrExpenseNotFound))
		})
	})

	Describe("GetPendingExpensesForApprover", func() {
		It("returns expenses waiting at levels the approver's roles cover", func() {
			atOne := makeDraft("500.00")
			submitAt(atOne, 1)
			expenses.put(atOne)

			atTwo := makeDraft("700.00")
			atTwo.Status = expense.StatusUnderReview
			level := 2
			atTwo.CurrentApprovalLevel = &level
			expenses.put(atTwo)

			pending, err := service.GetPendingExpensesForApprover(ctx, managerID)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].ID).To(Equal(atOne.ID))

			pending, err = service.GetPendingExpensesForApprover(ctx, financeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].ID).To(Equal(atTwo.ID))
		})

		It("fails for an unknown approver", func() {
			_, err := service.GetPendingExpensesForApprover(ctx, uuid.New())
			Expect(err).To(MatchError(apperrors.ErrApproverNotFound))
		})
	})
})
