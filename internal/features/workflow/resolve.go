package workflow

import (
	"context"
	"errors"
	"time"

	"go-letter/internal/common/models"
)

const (
	directoryRetries    = 3
	directoryRetryDelay = 150 * time.Millisecond
)

// withRetry gives directory calls a bounded number of attempts before the
// failure is surfaced as ErrDirectoryUnavailable. Resolution outcomes
// (ErrResolutionEmpty) are not retried.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < directoryRetries; attempt++ {
		if err = fn(); err == nil || errors.Is(err, ErrResolutionEmpty) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(ErrDirectoryUnavailable, ctx.Err())
		case <-time.After(directoryRetryDelay):
		}
	}
	return errors.Join(ErrDirectoryUnavailable, err)
}

// ResolveStep returns the candidate occupants for a ByPosition step. Zero
// candidates is reported as ErrResolutionEmpty: a displayable state that
// keeps the draft valid and blocks submission only.
func ResolveStep(ctx context.Context, steps []StepRuntime, stepID int, dir Directory) ([]models.User, error) {
	step := FindStep(steps, stepID)
	if step == nil {
		return nil, ErrStepNotFound
	}
	if step.PositionID == "" {
		return nil, ErrResolutionEmpty
	}

	var occupants []models.User
	err := withRetry(ctx, func() error {
		var e error
		occupants, e = dir.ResolvePosition(ctx, step.PositionID)
		return e
	})
	if err != nil {
		return nil, err
	}
	if len(occupants) == 0 {
		return nil, ErrResolutionEmpty
	}
	return occupants, nil
}

// AutoResolve assigns an approver to every unresolved ByPosition step whose
// position has exactly one active occupant. Steps with zero or multiple
// occupants are left untouched; they surface later through ValidateSubmit or
// an explicit selection.
func AutoResolve(ctx context.Context, steps []StepRuntime, dir Directory) error {
	for i := range steps {
		step := &steps[i]
		if step.Resolved() || step.PositionID == "" {
			continue
		}

		var occupants []models.User
		err := withRetry(ctx, func() error {
			var e error
			occupants, e = dir.ResolvePosition(ctx, step.PositionID)
			return e
		})
		if err != nil {
			return err
		}
		if len(occupants) == 1 {
			step.Snapshot(&occupants[0])
		}
	}
	return nil
}

// AssignApprover resolves a step to an explicitly chosen user.
func AssignApprover(steps []StepRuntime, stepID int, user *models.User) error {
	step := FindStep(steps, stepID)
	if step == nil {
		return ErrStepNotFound
	}
	if step.Terminal() {
		return ErrAlreadyDecided
	}
	step.Snapshot(user)
	return nil
}

// ClimbSuperior asks the directory for the organizational superior of the
// reference (normally the previous step's approver, or the sender when the
// list is still empty). It backs ad-hoc manual step insertion: one occupant
// means the caller can auto-select, several require an explicit choice, none
// is a recoverable ErrResolutionEmpty.
func ClimbSuperior(ctx context.Context, ref Reference, dir Directory) (*models.Position, []models.User, error) {
	var (
		pos       *models.Position
		occupants []models.User
	)
	err := withRetry(ctx, func() error {
		var e error
		pos, occupants, e = dir.GetSuperior(ctx, ref)
		return e
	})
	if err != nil {
		return nil, nil, err
	}
	return pos, occupants, nil
}

// InsertStep places a manually built step at the given index of the ordered
// list (index 0 is reserved for the sender). The step receives the letter's
// next free step id and an order value that sequences it between its
// neighbours; later orders are shifted up when no gap is available. Order
// values stay sparse on purpose: they sequence, they do not index.
func InsertStep(steps []StepRuntime, atIndex int, step StepRuntime, nextID int) ([]StepRuntime, int, error) {
	if atIndex < 1 || atIndex > len(steps) {
		return nil, nextID, ErrStepNotFound
	}

	prevOrder := steps[atIndex-1].Order
	step.StepID = nextID
	step.Order = prevOrder + 1
	if step.Status == "" {
		step.Status = models.ApprovalStatusPending
	}

	// Shift any colliding orders up, keeping parallel groups (shared order
	// values) intact.
	out := make([]StepRuntime, 0, len(steps)+1)
	out = append(out, steps[:atIndex]...)
	out = append(out, step)
	for _, s := range steps[atIndex:] {
		if s.Order >= step.Order {
			s.Order++
		}
		out = append(out, s)
	}

	return out, nextID + 1, nil
}

// RemoveStep deletes a step from the list. Removing the last member of a
// parallel group removes the group's order slot with it, and removing the
// sole step of a sequential slot removes the slot entirely; no renumbering
// is needed because order is relative, not dense.
func RemoveStep(steps []StepRuntime, stepID int) ([]StepRuntime, error) {
	if stepID == SenderStepID {
		return nil, ErrStepNotFound
	}
	out := make([]StepRuntime, 0, len(steps))
	found := false
	for _, s := range steps {
		if s.StepID == stepID {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		return nil, ErrStepNotFound
	}
	return out, nil
}

// UnresolvedSteps lists every active step that still lacks an approver.
func UnresolvedSteps(steps []StepRuntime) []int {
	var ids []int
	for i := range steps {
		if !steps[i].Resolved() {
			ids = append(ids, steps[i].StepID)
		}
	}
	return ids
}

// ValidateSubmit rejects submission wholesale while any reachable step has no
// resolved approver, enumerating the offending steps.
func ValidateSubmit(steps []StepRuntime) error {
	if ids := UnresolvedSteps(steps); len(ids) > 0 {
		return &UnresolvedStepsError{StepIDs: ids}
	}
	return nil
}

// ValidateSubmitResolution is the submission gate over approver resolution.
// A step whose position has several occupants and no selection is reported
// individually as ambiguous, since its remedy is an explicit choice; every
// other unresolved step is enumerated wholesale.
func ValidateSubmitResolution(ctx context.Context, steps []StepRuntime, dir Directory) error {
	ids := UnresolvedSteps(steps)
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		occupants, err := ResolveStep(ctx, steps, id, dir)
		if err != nil {
			// Vacant or unreachable positions stay in the wholesale list.
			continue
		}
		if len(occupants) > 1 {
			return &AmbiguousStepError{StepID: id, Candidates: len(occupants)}
		}
	}
	return &UnresolvedStepsError{StepIDs: ids}
}
