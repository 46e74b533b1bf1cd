package workflow

import (
	"time"

	"go-letter/internal/common/models"
)

// Decision is the two-outcome terminal action on a step.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// FindStep returns the step with the given id, or nil.
func FindStep(steps []StepRuntime, stepID int) *StepRuntime {
	for i := range steps {
		if steps[i].StepID == stepID {
			return &steps[i]
		}
	}
	return nil
}

// satisfied reports whether a step no longer gates its successors.
func satisfied(s *StepRuntime) bool {
	return s.Status == models.ApprovalStatusApproved ||
		s.Status == models.ApprovalStatusSkipped ||
		!s.Required
}

// Actionable reports whether a step's status may transition out of Pending:
// the step is pending, no required step has been rejected anywhere (a reject
// short-circuits the letter, remaining steps become moot), and every required
// step in a strictly earlier order slot is satisfied. Parallel group members
// share an order slot, so they never gate each other.
func Actionable(steps []StepRuntime, stepID int) bool {
	step := FindStep(steps, stepID)
	if step == nil || step.Status != models.ApprovalStatusPending {
		return false
	}

	for i := range steps {
		other := &steps[i]
		if other.Required && other.Status == models.ApprovalStatusRejected {
			return false
		}
		if other.Order < step.Order && !satisfied(other) {
			return false
		}
	}
	return true
}

// Decide applies a terminal decision to a step after enforcing the full
// invariant set: the actor must be the step's resolved approver, the step
// must be actionable under the ordering rules, rejection requires remarks,
// and approval requires the step's signature to be correctly placed.
// Transitions are monotonic; there is no way out of a terminal status.
func Decide(steps []StepRuntime, stepID int, actorUserID string, decision Decision, remarks string, placementOK bool) error {
	step := FindStep(steps, stepID)
	if step == nil {
		return ErrStepNotFound
	}
	if step.ApproverUserID == "" || step.ApproverUserID != actorUserID {
		return ErrUnauthorized
	}
	if step.Terminal() {
		return ErrAlreadyDecided
	}
	if !Actionable(steps, stepID) {
		return ErrNotActionable
	}

	switch decision {
	case DecisionReject:
		if remarks == "" {
			return ErrRemarksRequired
		}
		step.Status = models.ApprovalStatusRejected
	case DecisionApprove:
		if !placementOK {
			return ErrInvalidPlacement
		}
		step.Status = models.ApprovalStatusApproved
	default:
		return ErrNotActionable
	}

	step.Remarks = remarks
	now := time.Now()
	step.DecidedAt = &now
	return nil
}

// DeriveStatus computes the letter-level status from its steps. Rejected wins
// immediately as soon as any required, non-skipped step is rejected; Approved
// requires every required, non-skipped step (including all parallel members)
// to be approved; anything else is Pending.
func DeriveStatus(steps []StepRuntime) models.LetterStatus {
	allApproved := true
	for i := range steps {
		s := &steps[i]
		if !s.Required || s.Status == models.ApprovalStatusSkipped {
			continue
		}
		switch s.Status {
		case models.ApprovalStatusRejected:
			return models.LetterStatusRejected
		case models.ApprovalStatusApproved:
		default:
			allApproved = false
		}
	}
	if allApproved {
		return models.LetterStatusApproved
	}
	return models.LetterStatusPending
}

// NextActionable lists the pending steps that may currently be decided. Used
// to route notifications when the workflow advances.
func NextActionable(steps []StepRuntime) []StepRuntime {
	var out []StepRuntime
	for i := range steps {
		if Actionable(steps, steps[i].StepID) {
			out = append(out, steps[i])
		}
	}
	return out
}
