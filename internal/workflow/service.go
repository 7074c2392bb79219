package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	errors "github.com/sems/expense-service/internal"
	"github.com/sems/expense-service/internal/core/events"
	"github.com/sems/expense-service/internal/expense"
)

// EventPublisher receives workflow transition events for the notification
// path.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service is the approval workflow engine: the only mutator of expense
// workflow state. It is stateless between calls; all state lives in the
// expense store and the step ledger. The expense write always happens
// before the ledger append, and an append failure surfaces as a distinct
// retryable error instead of being dropped.
type Service struct {
	expenses  ExpenseRepository
	levels    LevelRepository
	steps     StepRepository
	directory UserDirectory
	publisher EventPublisher
	stats     *StatsAggregator

	autoApprovalThreshold decimal.Decimal
	logger                *slog.Logger
}

func NewService(
	expenses ExpenseRepository,
	levels LevelRepository,
	steps StepRepository,
	directory UserDirectory,
	publisher EventPublisher,
	autoApprovalThreshold decimal.Decimal,
	logger *slog.Logger,
) *Service {
	return &Service{
		expenses:              expenses,
		levels:                levels,
		steps:                 steps,
		directory:             directory,
		publisher:             publisher,
		stats:                 NewStatsAggregator(expenses, levels, steps, logger),
		autoApprovalThreshold: autoApprovalThreshold,
		logger:                logger,
	}
}

// SubmitForApproval moves a draft expense into the workflow. It validates
// completeness, resolves the approval ladder for the amount and department,
// parks the expense at the first level, and applies auto-approval when the
// amount and receipt rules allow.
func (s *Service) SubmitForApproval(ctx context.Context, expenseID uuid.UUID) (*expense.Expense, error) {
	exp, err := s.getExpense(expenseID)
	if err != nil {
		return nil, err
	}

	if !exp.CanBeSubmitted() {
		s.logger.Warn("submit rejected: expense not in draft",
			"expense_id", expenseID,
			"status", exp.Status)
		return nil, errors.ErrInvalidWorkflowState
	}

	if err := validateForSubmission(exp); err != nil {
		s.logger.Warn("submit rejected: incomplete expense", "expense_id", expenseID, "error", err)
		return nil, err
	}

	ladder, err := s.resolveLadder(exp)
	if err != nil {
		return nil, err
	}
	if len(ladder) == 0 {
		return nil, errors.ErrNoWorkflowDefined
	}

	firstLevel := ladder[0].Level
	exp.Status = expense.StatusSubmitted
	exp.CurrentApprovalLevel = &firstLevel
	exp.Touch()

	autoApproved := s.eligibleForAutoApproval(exp)
	if autoApproved {
		exp.Approve(nil)
	}

	if err := s.expenses.Save(exp); err != nil {
		s.logger.Error("failed to persist submitted expense", "error", err, "expense_id", expenseID)
		return nil, err
	}

	if autoApproved {
		if err := s.appendStep(exp.ID, nil, "Auto-approved based on amount threshold", firstLevel, ActionApproved); err != nil {
			return nil, err
		}
		s.logger.Info("expense auto-approved on submission",
			"expense_id", expenseID,
			"amount", exp.Amount.String())
		s.publish(ctx, events.NewExpenseAutoApprovedEvent(exp.ID, exp.Amount.String()))
		return exp, nil
	}

	s.logger.Info("expense submitted for approval",
		"expense_id", expenseID,
		"level", firstLevel,
		"amount", exp.Amount.String())
	s.publish(ctx, events.NewExpenseSubmittedEvent(exp.ID, firstLevel))

	return exp, nil
}

// ApproveExpense records an approval at the current level and either
// advances the expense to the next level or finalizes it when the current
// level is the last rung of the freshly resolved ladder. When the current
// level no longer appears in the ladder (thresholds edited mid-flight) the
// expense is frozen and flagged for manual review instead of advancing.
func (s *Service) ApproveExpense(ctx context.Context, expenseID, approverID uuid.UUID, comments string) (*expense.Expense, error) {
	exp, err := s.getExpense(expenseID)
	if err != nil {
		return nil, err
	}

	if !exp.IsPendingApproval() || exp.CurrentApprovalLevel == nil {
		s.logger.Warn("approve rejected: expense not pending",
			"expense_id", expenseID,
			"status", exp.Status)
		return nil, errors.ErrInvalidWorkflowState
	}

	if err := s.authorizeActor(ctx, approverID, exp); err != nil {
		return nil, err
	}

	actedLevel := *exp.CurrentApprovalLevel

	ladder, err := s.resolveLadder(exp)
	if err != nil {
		return nil, err
	}

	idx := levelIndex(ladder, actedLevel)
	switch {
	case idx >= 0 && idx == len(ladder)-1:
		exp.Approve(&approverID)
	case idx >= 0:
		nextLevel := ladder[idx+1].Level
		exp.CurrentApprovalLevel = &nextLevel
		exp.Status = expense.StatusUnderReview
		exp.Touch()
	default:
		// Current level vanished from the resolved ladder. Freeze the
		// expense and flag it so it shows up for manual reassignment.
		exp.FlaggedForReview = true
		exp.Touch()
		s.logger.Warn("current approval level not in resolved ladder, freezing expense",
			"expense_id", expenseID,
			"level", actedLevel)
	}

	if err := s.expenses.Save(exp); err != nil {
		s.logger.Error("failed to persist approval", "error", err, "expense_id", expenseID)
		return nil, err
	}

	if err := s.appendStep(exp.ID, &approverID, comments, actedLevel, ActionApproved); err != nil {
		return nil, err
	}

	s.logger.Info("expense approved at level",
		"expense_id", expenseID,
		"approver_id", approverID,
		"level", actedLevel,
		"status", exp.Status)
	s.publish(ctx, events.NewExpenseApprovedEvent(exp.ID, approverID, actedLevel, exp.Status == expense.StatusApproved))

	return exp, nil
}

// RejectExpense terminates the workflow with a rejection.
func (s *Service) RejectExpense(ctx context.Context, expenseID, actorID uuid.UUID, reason string) (*expense.Expense, error) {
	exp, err := s.getExpense(expenseID)
	if err != nil {
		return nil, err
	}

	if !exp.IsPendingApproval() {
		return nil, errors.ErrInvalidWorkflowState
	}

	if err := s.authorizeActor(ctx, actorID, exp); err != nil {
		return nil, err
	}

	actedLevel := currentLevelOrZero(exp)
	exp.Reject(reason)

	if err := s.expenses.Save(exp); err != nil {
		s.logger.Error("failed to persist rejection", "error", err, "expense_id", expenseID)
		return nil, err
	}

	if err := s.appendStep(exp.ID, &actorID, reason, actedLevel, ActionRejected); err != nil {
		return nil, err
	}

	s.logger.Info("expense rejected",
		"expense_id", expenseID,
		"actor_id", actorID,
		"reason", reason)
	s.publish(ctx, events.NewExpenseRejectedEvent(exp.ID, actorID, reason))

	return exp, nil
}

// RequestChanges sends the expense back to its owner for rework without
// leaving the workflow; the current level is kept for resubmission.
func (s *Service) RequestChanges(ctx context.Context, expenseID, actorID uuid.UUID, changes string) (*expense.Expense, error) {
	exp, err := s.getExpense(expenseID)
	if err != nil {
		return nil, err
	}

	if !exp.IsPendingApproval() {
		return nil, errors.ErrInvalidWorkflowState
	}

	if err := s.authorizeActor(ctx, actorID, exp); err != nil {
		return nil, err
	}

	actedLevel := currentLevelOrZero(exp)
	exp.Status = expense.StatusChangesRequested
	exp.ReviewComments = changes
	exp.Touch()

	if err := s.expenses.Save(exp); err != nil {
		s.logger.Error("failed to persist change request", "error", err, "expense_id", expenseID)
		return nil, err
	}

	if err := s.appendStep(exp.ID, &actorID, changes, actedLevel, ActionRequestedChanges); err != nil {
		return nil, err
	}

	s.logger.Info("changes requested on expense",
		"expense_id", expenseID,
		"actor_id", actorID)
	s.publish(ctx, events.NewExpenseChangesRequestedEvent(exp.ID, actorID, changes))

	return exp, nil
}

// EscalateExpense jumps the expense straight to the highest resolved level,
// skipping intermediate rungs, and flags it for review.
func (s *Service) EscalateExpense(ctx context.Context, expenseID, actorID uuid.UUID, reason string) (*expense.Expense, error) {
	exp, err := s.getExpense(expenseID)
	if err != nil {
		return nil, err
	}

	if !exp.IsPendingApproval() {
		return nil, errors.ErrInvalidWorkflowState
	}

	if err := s.authorizeActor(ctx, actorID, exp); err != nil {
		return nil, err
	}

	ladder, err := s.resolveLadder(exp)
	if err != nil {
		return nil, err
	}
	top := highestLevel(ladder)
	if top == nil {
		return nil, errors.ErrNoWorkflowDefined
	}

	actedLevel := currentLevelOrZero(exp)
	exp.CurrentApprovalLevel = &top.Level
	exp.Status = expense.StatusUnderReview
	exp.FlaggedForReview = true
	exp.ReviewComments = reason
	exp.Touch()

	if err := s.expenses.Save(exp); err != nil {
		s.logger.Error("failed to persist escalation", "error", err, "expense_id", expenseID)
		return nil, err
	}

	if err := s.appendStep(exp.ID, &actorID, reason, actedLevel, ActionEscalated); err != nil {
		return nil, err
	}

	s.logger.Info("expense escalated",
		"expense_id", expenseID,
		"actor_id", actorID,
		"from_level", actedLevel,
		"to_level", top.Level)
	s.publish(ctx, events.NewExpenseEscalatedEvent(exp.ID, actorID, top.Level, reason))

	return exp, nil
}

// DelegateApproval records that one approver asked another to act. It is
// purely an audit annotation: status and level are untouched.
func (s *Service) DelegateApproval(ctx context.Context, expenseID, delegatorID, delegateID uuid.UUID, reason string) (*expense.Expense, error) {
	exp, err := s.getExpense(expenseID)
	if err != nil {
		return nil, err
	}

	if !exp.IsPendingApproval() {
		return nil, errors.ErrInvalidWorkflowState
	}

	if err := s.authorizeActor(ctx, delegatorID, exp); err != nil {
		return nil, err
	}

	exists, err := s.userExists(ctx, delegateID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.ErrDelegateNotFound
	}

	exp.Touch()
	if err := s.expenses.Save(exp); err != nil {
		s.logger.Error("failed to persist delegation", "error", err, "expense_id", expenseID)
		return nil, err
	}

	comment := fmt.Sprintf("Delegated to %s: %s", delegateID, reason)
	if err := s.appendStep(exp.ID, &delegatorID, comment, currentLevelOrZero(exp), ActionDelegated); err != nil {
		return nil, err
	}

	s.logger.Info("approval delegated",
		"expense_id", expenseID,
		"delegator_id", delegatorID,
		"delegate_id", delegateID)

	return exp, nil
}

// MarkAsPaid closes out an approved expense after finance settles it.
func (s *Service) MarkAsPaid(ctx context.Context, expenseID, financePersonID uuid.UUID) (*expense.Expense, error) {
	exp, err := s.getExpense(expenseID)
	if err != nil {
		return nil, err
	}

	if !exp.CanBeMarkedPaid() {
		s.logger.Warn("mark-paid rejected: expense not approved",
			"expense_id", expenseID,
			"status", exp.Status)
		return nil, errors.ErrInvalidWorkflowState
	}

	exp.Status = expense.StatusPaid
	exp.Touch()

	if err := s.expenses.Save(exp); err != nil {
		s.logger.Error("failed to persist paid status", "error", err, "expense_id", expenseID)
		return nil, err
	}

	s.logger.Info("expense marked as paid",
		"expense_id", expenseID,
		"finance_person_id", financePersonID)
	s.publish(ctx, events.NewExpensePaidEvent(exp.ID, financePersonID))

	return exp, nil
}

// ProcessLowValueAutoApproval sweeps submitted expenses at or under the
// auto-approval threshold and approves the eligible ones. Each expense is
// attempted independently; a failure on one never aborts the rest, and the
// returned count reflects only successful approvals.
func (s *Service) ProcessLowValueAutoApproval(ctx context.Context) (int, error) {
	candidates, err := s.expenses.FindByStatusAndAmountLessThanEqual(expense.StatusSubmitted, s.autoApprovalThreshold)
	if err != nil {
		s.logger.Error("auto-approval sweep failed to load candidates", "error", err)
		return 0, err
	}

	count := 0
	for _, exp := range candidates {
		if !s.eligibleForAutoApproval(exp) {
			continue
		}

		actedLevel := currentLevelOrZero(exp)
		exp.Approve(nil)

		if err := s.expenses.Save(exp); err != nil {
			s.logger.Error("auto-approval sweep: failed to persist expense, skipping",
				"error", err,
				"expense_id", exp.ID)
			continue
		}
		count++

		if err := s.appendStep(exp.ID, nil, "Auto-approved based on amount threshold", actedLevel, ActionApproved); err != nil {
			s.logger.Error("auto-approval sweep: ledger append failed",
				"error", err,
				"expense_id", exp.ID)
		}
		s.publish(ctx, events.NewExpenseAutoApprovedEvent(exp.ID, exp.Amount.String()))
	}

	s.logger.Info("auto-approval sweep finished",
		"candidates", len(candidates),
		"approved", count)

	return count, nil
}

// GetApprovalHistory returns the full ledger for an expense, oldest first.
func (s *Service) GetApprovalHistory(ctx context.Context, expenseID uuid.UUID) ([]*ApprovalStep, error) {
	exists, err := s.expenses.ExistsByID(expenseID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.ErrExpenseNotFound
	}
	return s.steps.FindByExpense(expenseID)
}

// GetPendingExpensesForApprover returns expenses waiting at any level whose
// required role the approver holds.
func (s *Service) GetPendingExpensesForApprover(ctx context.Context, approverID uuid.UUID) ([]*expense.Expense, error) {
	exists, err := s.userExists(ctx, approverID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.ErrApproverNotFound
	}

	roles, err := s.rolesOf(ctx, approverID)
	if err != nil {
		return nil, err
	}

	levelNumbers := make(map[int]struct{})
	for roleID := range roles {
		levels, err := s.levels.FindByRoleID(roleID)
		if err != nil {
			return nil, err
		}
		for _, level := range levels {
			if level.Active {
				levelNumbers[level.Level] = struct{}{}
			}
		}
	}

	pending := make([]*expense.Expense, 0)
	for number := range levelNumbers {
		atLevel, err := s.expenses.FindByCurrentLevelAndStatusIn(number, expense.PendingStatuses)
		if err != nil {
			return nil, err
		}
		pending = append(pending, atLevel...)
	}

	return pending, nil
}

// GetWorkflowStatistics derives per-level statistics from the expense set
// and the step ledger.
func (s *Service) GetWorkflowStatistics() ([]*WorkflowStats, error) {
	return s.stats.Collect()
}

// ---- helpers ----

func (s *Service) getExpense(expenseID uuid.UUID) (*expense.Expense, error) {
	exp, err := s.expenses.FindByID(expenseID)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, errors.ErrExpenseNotFound
	}
	return exp, nil
}

func (s *Service) resolveLadder(exp *expense.Expense) ([]*ApprovalLevel, error) {
	candidates, err := s.levels.FindByAmountBetweenThresholds(exp.Amount)
	if err != nil {
		s.logger.Error("failed to load approval levels", "error", err, "expense_id", exp.ID)
		return nil, err
	}
	return ResolveLevels(candidates, exp.Amount, exp.DepartmentID), nil
}

func (s *Service) eligibleForAutoApproval(exp *expense.Expense) bool {
	return exp.Amount.LessThanOrEqual(s.autoApprovalThreshold) &&
		(!exp.RequiresReceipt || exp.HasReceipt())
}

// authorizeActor verifies the actor exists and holds the role the current
// level demands for the expense's department. When no catalog row matches
// the current level, no role check applies.
func (s *Service) authorizeActor(ctx context.Context, actorID uuid.UUID, exp *expense.Expense) error {
	exists, err := s.userExists(ctx, actorID)
	if err != nil {
		return err
	}
	if !exists {
		return errors.ErrApproverNotFound
	}

	if exp.CurrentApprovalLevel == nil {
		return nil
	}

	level, err := s.levels.FindByLevelAndDepartment(*exp.CurrentApprovalLevel, exp.DepartmentID)
	if err != nil {
		return err
	}
	if level == nil {
		return nil
	}

	roles, err := s.rolesOf(ctx, actorID)
	if err != nil {
		return err
	}
	if _, ok := roles[level.RoleID]; !ok {
		s.logger.Warn("actor lacks required role for level",
			"actor_id", actorID,
			"expense_id", exp.ID,
			"level", level.Level,
			"role_id", level.RoleID)
		return errors.ErrNotAuthorizedForLevel
	}

	return nil
}

func (s *Service) userExists(ctx context.Context, id uuid.UUID) (bool, error) {
	exists, err := s.directory.UserExists(ctx, id)
	if err != nil {
		s.logger.Error("user directory lookup failed", "error", err, "user_id", id)
		return false, errors.ErrUserDirectoryUnavailable.WithCause(err)
	}
	return exists, nil
}

func (s *Service) rolesOf(ctx context.Context, id uuid.UUID) (map[uuid.UUID]struct{}, error) {
	roles, err := s.directory.RolesOf(ctx, id)
	if err != nil {
		s.logger.Error("user directory role lookup failed", "error", err, "user_id", id)
		return nil, errors.ErrUserDirectoryUnavailable.WithCause(err)
	}
	return roles, nil
}

// appendStep writes one immutable ledger entry. It runs only after the
// expense write succeeded; on failure the caller gets a retryable error
// instead of a silently missing audit record.
func (s *Service) appendStep(expenseID uuid.UUID, actorID *uuid.UUID, comments string, level int, action ApprovalAction) error {
	step := &ApprovalStep{
		ID:         uuid.New(),
		ExpenseID:  expenseID,
		Level:      level,
		ApproverID: actorID,
		Action:     action,
		Comments:   comments,
		ActionDate: time.Now(),
	}
	if err := s.steps.Append(step); err != nil {
		s.logger.Error("ledger append failed",
			"error", err,
			"expense_id", expenseID,
			"action", action)
		return errors.ErrLedgerAppendFailed.WithCause(err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish workflow event",
			"error", err,
			"event_type", event.EventType())
	}
}

func validateForSubmission(exp *expense.Expense) *errors.AppError {
	if !exp.Amount.IsPositive() {
		return errors.NewValidationFieldError("amount", "expense must have a positive amount", errors.ErrCodeInvalidAmount)
	}
	if exp.Category == "" {
		return errors.NewValidationFieldError("category", "expense must have a category assigned", errors.ErrCodeInvalidCategory)
	}
	if exp.ExpenseDate.IsZero() {
		return errors.NewValidationFieldError("expense_date", "expense must have a date", errors.ErrCodeInvalidDate)
	}
	if exp.RequiresReceipt && !exp.HasReceipt() {
		return errors.NewValidationFieldError("receipt_url", "this expense requires a receipt", errors.ErrCodeReceiptRequired)
	}
	return nil
}

func currentLevelOrZero(exp *expense.Expense) int {
	if exp.CurrentApprovalLevel == nil {
		return 0
	}
	return *exp.CurrentApprovalLevel
}
