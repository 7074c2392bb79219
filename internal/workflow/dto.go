package workflow

import (
	"github.com/google/uuid"

	errors "github.com/sems/expense-service/internal"
)

type ApproveDTO struct {
	ApproverID uuid.UUID `json:"approver_id"`
	Comments   string    `json:"comments"`
}

func (d *ApproveDTO) Validate() error {
	if d.ApproverID == uuid.Nil {
		return errors.NewValidationFieldError("approver_id", "approver_id is required", errors.ErrCodeValidationFailed)
	}
	return nil
}

type RejectDTO struct {
	RejecterID uuid.UUID `json:"rejecter_id"`
	Reason     string    `json:"reason"`
}

func (d *RejectDTO) Validate() error {
	if d.RejecterID == uuid.Nil {
		return errors.NewValidationFieldError("rejecter_id", "rejecter_id is required", errors.ErrCodeValidationFailed)
	}
	if d.Reason == "" {
		return errors.NewValidationFieldError("reason", "a rejection reason is required", errors.ErrCodeValidationFailed)
	}
	return nil
}

type RequestChangesDTO struct {
	ReviewerID uuid.UUID `json:"reviewer_id"`
	Changes    string    `json:"changes"`
}

func (d *RequestChangesDTO) Validate() error {
	if d.ReviewerID == uuid.Nil {
		return errors.NewValidationFieldError("reviewer_id", "reviewer_id is required", errors.ErrCodeValidationFailed)
	}
	if d.Changes == "" {
		return errors.NewValidationFieldError("changes", "a description of the requested changes is required", errors.ErrCodeValidationFailed)
	}
	return nil
}

type EscalateDTO struct {
	EscalatorID uuid.UUID `json:"escalator_id"`
	Reason      string    `json:"reason"`
}

func (d *EscalateDTO) Validate() error {
	if d.EscalatorID == uuid.Nil {
		return errors.NewValidationFieldError("escalator_id", "escalator_id is required", errors.ErrCodeValidationFailed)
	}
	if d.Reason == "" {
		return errors.NewValidationFieldError("reason", "an escalation reason is required", errors.ErrCodeValidationFailed)
	}
	return nil
}

type DelegateDTO struct {
	DelegatorID uuid.UUID `json:"delegator_id"`
	DelegateID  uuid.UUID `json:"delegate_id"`
	Reason      string    `json:"reason"`
}

func (d *DelegateDTO) Validate() error {
	if d.DelegatorID == uuid.Nil {
		return errors.NewValidationFieldError("delegator_id", "delegator_id is required", errors.ErrCodeValidationFailed)
	}
	if d.DelegateID == uuid.Nil {
		return errors.NewValidationFieldError("delegate_id", "delegate_id is required", errors.ErrCodeValidationFailed)
	}
	if d.DelegatorID == d.DelegateID {
		return errors.NewValidationFieldError("delegate_id", "cannot delegate to yourself", errors.ErrCodeValidationFailed)
	}
	return nil
}

type MarkPaidDTO struct {
	FinancePersonID uuid.UUID `json:"finance_person_id"`
}

func (d *MarkPaidDTO) Validate() error {
	if d.FinancePersonID == uuid.Nil {
		return errors.NewValidationFieldError("finance_person_id", "finance_person_id is required", errors.ErrCodeValidationFailed)
	}
	return nil
}
