package signature

import (
	"errors"
	"math"

	"go-letter/internal/common/models"
	"go-letter/internal/features/workflow"
)

const (
	// SnapTolerance is how close (in percent points, both axes) a drop has
	// to land to a template target before it snaps onto it. Keeps signatures
	// visually aligned across letters of the same type despite imprecise
	// pointer input.
	SnapTolerance = 5.0
	// PlacementTolerance is the tight correctness bound: effectively exact,
	// reachable through snapping rather than raw dragging precision.
	PlacementTolerance = 0.1
)

var ErrOutOfCanvas = errors.New("signature position must be within 0..100 percent on both axes")

// Place converts a drop point into a stored SignaturePosition for a step.
// Coordinates are percentages of the rendered canvas, so they are invariant
// to zoom. When the drop lands within SnapTolerance of a template target the
// position snaps to that exact target.
func Place(targets []models.SignatureTarget, step *workflow.StepRuntime, x, y float64) (models.SignaturePosition, error) {
	if x < 0 || x > 100 || y < 0 || y > 100 {
		return models.SignaturePosition{}, ErrOutOfCanvas
	}

	if t := nearestTarget(targets, x, y); t != nil {
		x, y = t.X, t.Y
	}

	return models.SignaturePosition{
		StepID:        step.StepID,
		X:             x,
		Y:             y,
		Name:          step.Name,
		PositionLabel: step.PositionLabel,
		Unit:          step.Unit,
	}, nil
}

// nearestTarget returns the closest target within SnapTolerance on both
// axes, or nil when the drop is free-standing.
func nearestTarget(targets []models.SignatureTarget, x, y float64) *models.SignatureTarget {
	var best *models.SignatureTarget
	bestDist := math.MaxFloat64
	for i := range targets {
		t := &targets[i]
		dx, dy := math.Abs(t.X-x), math.Abs(t.Y-y)
		if dx > SnapTolerance || dy > SnapTolerance {
			continue
		}
		if d := dx*dx + dy*dy; d < bestDist {
			bestDist = d
			best = t
		}
	}
	return best
}

// DesignatedTarget returns the template slot assigned to the step's order
// slot, or nil when the template does not pin the step anywhere.
func DesignatedTarget(targets []models.SignatureTarget, order int) *models.SignatureTarget {
	for i := range targets {
		if targets[i].StepOrder == order {
			return &targets[i]
		}
	}
	return nil
}

// CorrectlyPlaced reports whether the step's stored position matches its
// designated target within PlacementTolerance. Approving a step is only
// possible while this holds; an approver cannot sign at an arbitrary
// location. Steps without a designated target are exempt.
func CorrectlyPlaced(targets []models.SignatureTarget, step *workflow.StepRuntime, pos *models.SignaturePosition) bool {
	t := DesignatedTarget(targets, step.Order)
	if t == nil {
		return true
	}
	if pos == nil {
		return false
	}
	return math.Abs(pos.X-t.X) <= PlacementTolerance && math.Abs(pos.Y-t.Y) <= PlacementTolerance
}
