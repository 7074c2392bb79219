package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeExpenseSubmitted        = "expense.submitted"
	EventTypeExpenseApproved         = "expense.approved"
	EventTypeExpenseAutoApproved     = "expense.auto_approved"
	EventTypeExpenseRejected         = "expense.rejected"
	EventTypeExpenseChangesRequested = "expense.changes_requested"
	EventTypeExpenseEscalated        = "expense.escalated"
	EventTypeExpensePaid             = "expense.paid"
)

type ExpenseSubmittedEvent struct {
	BaseEvent
	ExpenseID uuid.UUID `json:"expense_id"`
	Level     int       `json:"level"`
}

func NewExpenseSubmittedEvent(expenseID uuid.UUID, level int) *ExpenseSubmittedEvent {
	return &ExpenseSubmittedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeExpenseSubmitted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id": expenseID.String(),
				"level":      level,
			},
		},
		ExpenseID: expenseID,
		Level:     level,
	}
}

type ExpenseApprovedEvent struct {
	BaseEvent
	ExpenseID  uuid.UUID `json:"expense_id"`
	ApproverID uuid.UUID `json:"approver_id"`
	Level      int       `json:"level"`
	Final      bool      `json:"final"`
}

func NewExpenseApprovedEvent(expenseID, approverID uuid.UUID, level int, final bool) *ExpenseApprovedEvent {
	return &ExpenseApprovedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeExpenseApproved,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id":  expenseID.String(),
				"approver_id": approverID.String(),
				"level":       level,
				"final":       final,
			},
		},
		ExpenseID:  expenseID,
		ApproverID: approverID,
		Level:      level,
		Final:      final,
	}
}

type ExpenseAutoApprovedEvent struct {
	BaseEvent
	ExpenseID uuid.UUID `json:"expense_id"`
	Amount    string    `json:"amount"`
}

func NewExpenseAutoApprovedEvent(expenseID uuid.UUID, amount string) *ExpenseAutoApprovedEvent {
	return &ExpenseAutoApprovedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeExpenseAutoApproved,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id": expenseID.String(),
				"amount":     amount,
			},
		},
		ExpenseID: expenseID,
		Amount:    amount,
	}
}

type ExpenseRejectedEvent struct {
	BaseEvent
	ExpenseID uuid.UUID `json:"expense_id"`
	ActorID   uuid.UUID `json:"actor_id"`
	Reason    string    `json:"reason"`
}

func NewExpenseRejectedEvent(expenseID, actorID uuid.UUID, reason string) *ExpenseRejectedEvent {
	return &ExpenseRejectedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeExpenseRejected,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id": expenseID.String(),
				"actor_id":   actorID.String(),
				"reason":     reason,
			},
		},
		ExpenseID: expenseID,
		ActorID:   actorID,
		Reason:    reason,
	}
}

type ExpenseChangesRequestedEvent struct {
	BaseEvent
	ExpenseID uuid.UUID `json:"expense_id"`
	ActorID   uuid.UUID `json:"actor_id"`
	Changes   string    `json:"changes"`
}

func NewExpenseChangesRequestedEvent(expenseID, actorID uuid.UUID, changes string) *ExpenseChangesRequestedEvent {
	return &ExpenseChangesRequestedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeExpenseChangesRequested,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id": expenseID.String(),
				"actor_id":   actorID.String(),
				"changes":    changes,
			},
		},
		ExpenseID: expenseID,
		ActorID:   actorID,
		Changes:   changes,
	}
}

type ExpenseEscalatedEvent struct {
	BaseEvent
	ExpenseID uuid.UUID `json:"expense_id"`
	ActorID   uuid.UUID `json:"actor_id"`
	ToLevel   int       `json:"to_level"`
	Reason    string    `json:"reason"`
}

func NewExpenseEscalatedEvent(expenseID, actorID uuid.UUID, toLevel int, reason string) *ExpenseEscalatedEvent {
	return &ExpenseEscalatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeExpenseEscalated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id": expenseID.String(),
				"actor_id":   actorID.String(),
				"to_level":   toLevel,
				"reason":     reason,
			},
		},
		ExpenseID: expenseID,
		ActorID:   actorID,
		ToLevel:   toLevel,
		Reason:    reason,
	}
}

type ExpensePaidEvent struct {
	BaseEvent
	ExpenseID       uuid.UUID `json:"expense_id"`
	FinancePersonID uuid.UUID `json:"finance_person_id"`
}

func NewExpensePaidEvent(expenseID, financePersonID uuid.UUID) *ExpensePaidEvent {
	return &ExpensePaidEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeExpensePaid,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id":        expenseID.String(),
				"finance_person_id": financePersonID.String(),
			},
		},
		ExpenseID:       expenseID,
		FinancePersonID: financePersonID,
	}
}
