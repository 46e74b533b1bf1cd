package workflow

import (
	"errors"
	"fmt"
)

// Expected, user-facing outcomes of workflow operations. Controllers map
// these onto HTTP statuses; none of them is a crash.
var (
	// ErrResolutionAmbiguous: a position has multiple occupants and no
	// explicit choice was made. Recoverable; blocks submission only.
	ErrResolutionAmbiguous = errors.New("approver resolution is ambiguous: multiple candidates, explicit selection required")
	// ErrResolutionEmpty: no active user holds the position, or the
	// reference has no superior. Recoverable; the draft stays valid.
	ErrResolutionEmpty = errors.New("no candidate found for this step")
	// ErrDirectoryUnavailable: the directory collaborator call failed.
	// Retryable; does not invalidate the in-memory draft.
	ErrDirectoryUnavailable = errors.New("organization directory unavailable")
	// ErrUnauthorized: decision attempted by someone other than the step's
	// resolved approver.
	ErrUnauthorized = errors.New("actor is not the resolved approver of this step")
	// ErrNotActionable: the step is not yet reachable under the ordering
	// rules. The client should refresh its view of the letter.
	ErrNotActionable = errors.New("step is not actionable yet")
	// ErrAlreadyDecided: the step already holds a terminal status. Surfaced
	// as a conflict, never silently treated as success.
	ErrAlreadyDecided = errors.New("step has already been decided")
	// ErrInvalidPlacement: approve attempted while the step's signature is
	// not correctly placed on its target slot.
	ErrInvalidPlacement = errors.New("signature is not correctly placed for this step")
	// ErrRemarksRequired: reject requires a non-empty remarks string.
	ErrRemarksRequired = errors.New("rejection requires remarks")

	ErrStepNotFound = errors.New("step not found")
	ErrShapeFrozen  = errors.New("workflow shape is frozen after submission")
)

// UnresolvedStepsError enumerates every step that still lacks a concrete
// approver when submission is attempted. The whole submission is rejected,
// not just the first offending step.
type UnresolvedStepsError struct {
	StepIDs []int
}

func (e *UnresolvedStepsError) Error() string {
	return fmt.Sprintf("letter has unresolved approvers on steps %v", e.StepIDs)
}

// AmbiguousStepError names a step whose position has several occupants and no
// explicit selection yet. The remedy is a choice, not a vacancy, so it is
// reported apart from the wholesale unresolved enumeration.
type AmbiguousStepError struct {
	StepID     int
	Candidates int
}

func (e *AmbiguousStepError) Error() string {
	return fmt.Sprintf("step %d has %d candidate approvers, explicit selection required", e.StepID, e.Candidates)
}

func (e *AmbiguousStepError) Unwrap() error { return ErrResolutionAmbiguous }
