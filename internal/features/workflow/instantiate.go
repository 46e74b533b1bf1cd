package workflow

import (
	"context"
	"sort"
	"time"

	"go-letter/internal/common/models"
	"go-letter/pkg/condition"
)

// SenderStepID is the synthetic id of the implicit first step. Sending the
// letter constitutes the sender's sign-off, so the step is born Approved.
const SenderStepID = 0

// Instantiate expands a template's step specs plus a concrete sender into the
// runtime step list of a new letter. It returns the steps and the next free
// step id (the per-letter counter keeps manual inserts collision-free).
//
// ByUser specs are resolved immediately through the directory; ByPosition
// specs stay unresolved until the resolver assigns an occupant. A failed
// directory lookup leaves that one step unresolved instead of failing the
// whole instantiation; unresolved steps only block submission.
func Instantiate(ctx context.Context, specs []StepSpec, sender models.User, attrs map[string]interface{}, dir Directory) ([]StepRuntime, int, error) {
	ordered := make([]StepSpec, len(specs))
	copy(ordered, specs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	now := time.Now()
	steps := []StepRuntime{{
		StepID:        SenderStepID,
		Order:         0,
		Kind:          StepKindSequential,
		Required:      true,
		PositionLabel: senderLabel(sender),
		Status:        models.ApprovalStatusApproved,
		DecidedAt:     &now,
	}}
	steps[0].Snapshot(&sender)

	eval := condition.NewEvaluator(attrs)
	nextID := SenderStepID + 1
	order := 0

	for _, spec := range ordered {
		// Orders only need to be relative; keep the template's values when
		// they advance, otherwise force monotonic growth.
		if spec.Order > order {
			order = spec.Order
		} else {
			order++
		}

		if spec.Kind == StepKindParallel {
			// An empty parallel gate is not a meaningful workflow element.
			for _, member := range spec.Members {
				rt, err := buildRuntime(ctx, member, order, eval, dir)
				if err != nil {
					return nil, 0, err
				}
				rt.StepID = nextID
				nextID++
				rt.Kind = StepKindParallel
				steps = append(steps, *rt)
			}
			continue
		}

		rt, err := buildRuntime(ctx, spec, order, eval, dir)
		if err != nil {
			return nil, 0, err
		}
		rt.StepID = nextID
		nextID++
		steps = append(steps, *rt)
	}

	return steps, nextID, nil
}

func buildRuntime(ctx context.Context, spec StepSpec, order int, eval *condition.Evaluator, dir Directory) (*StepRuntime, error) {
	rt := &StepRuntime{
		Order:         order,
		Kind:          spec.Kind,
		Required:      spec.Required,
		PositionLabel: spec.Name,
		Status:        models.ApprovalStatusPending,
	}

	if spec.Kind == StepKindConditional {
		if spec.Condition == nil {
			// A conditional step without a condition degenerates to
			// sequential behaviour.
			rt.Kind = StepKindSequential
		} else {
			ok, err := eval.Evaluate(*spec.Condition)
			if err != nil {
				return nil, err
			}
			if !ok {
				rt.Status = models.ApprovalStatusSkipped
				return rt, nil
			}
		}
	}

	switch spec.Approver.Type {
	case ApproverByUser:
		u, err := dir.GetUser(ctx, spec.Approver.UserID)
		if err == nil && u != nil {
			rt.Snapshot(u)
		}
		// Lookup failures leave the step unresolved; submission will
		// enumerate it.
	case ApproverByPosition:
		rt.PositionID = spec.Approver.PositionID
	}

	return rt, nil
}

func senderLabel(sender models.User) string {
	if sender.PositionTitle != "" {
		return sender.PositionTitle
	}
	return "Sender"
}
