package signature

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go-letter/internal/common/models"
	"go-letter/internal/features/workflow"
)

// RenderedSignature is one resolved signature slot ready for the letter
// renderer. Pending entries are dashed placeholder markers for template slots
// that still await a signer.
type RenderedSignature struct {
	StepID            int                   `json:"step_id"`
	X                 float64               `json:"x"`
	Y                 float64               `json:"y"`
	Name              string                `json:"name"`
	Rank              string                `json:"rank,omitempty"`
	Unit              string                `json:"unit,omitempty"`
	PositionLabel     string                `json:"position_label"`
	SignatureImageRef string                `json:"signature_image_ref,omitempty"`
	Status            models.ApprovalStatus `json:"status,omitempty"`
	Correct           bool                  `json:"correct"`
	Pending           bool                  `json:"pending"`
}

// Render associates every stored SignaturePosition with a concrete approver
// and returns the drawable list. Matching runs in priority order: exact step
// id, then fuzzy name/position-label matching, then a sender fallback. Two
// slots that resolve to the same identity render once; the second slot is
// dropped so nobody's signature appears twice on one document.
func Render(steps []workflow.StepRuntime, positions []models.SignaturePosition, targets []models.SignatureTarget) []RenderedSignature {
	ordered := make([]models.SignaturePosition, len(positions))
	copy(ordered, positions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StepID < ordered[j].StepID })

	rendered := make(map[string]bool)
	var out []RenderedSignature

	for i := range ordered {
		pos := &ordered[i]
		step := matchStep(steps, pos)
		if step == nil {
			// No match under any tier: the slot renders nothing. Template
			// placeholders are handled below.
			continue
		}

		identity := renderIdentity(step)
		if rendered[identity] {
			continue
		}
		rendered[identity] = true

		rs := RenderedSignature{
			StepID:        step.StepID,
			X:             pos.X,
			Y:             pos.Y,
			Name:          step.Name,
			Rank:          step.Rank,
			Unit:          step.Unit,
			PositionLabel: step.PositionLabel,
			Status:        step.Status,
			Correct:       CorrectlyPlaced(targets, step, pos),
		}
		// The signature image belongs on the document only once the step has
		// actually been signed off.
		if step.Status == models.ApprovalStatusApproved {
			rs.SignatureImageRef = step.SignatureImageRef
		}
		out = append(out, rs)
	}

	// Placeholder targets with no signature nearby show a pending marker
	// instead of silently rendering nothing.
	for i := range targets {
		t := &targets[i]
		if !t.Placeholder || covered(out, t) {
			continue
		}
		out = append(out, RenderedSignature{
			X:             t.X,
			Y:             t.Y,
			PositionLabel: t.Label,
			Pending:       true,
		})
	}

	return out
}

// matchStep resolves a stored position to a step. Tier 1 is the exact step
// id. Tier 2 is a heuristic: case-insensitive name equality or position-label
// substring containment. Tier 3 falls back to the sender when the stored
// attributes match the sender's own profile.
func matchStep(steps []workflow.StepRuntime, pos *models.SignaturePosition) *workflow.StepRuntime {
	if step := workflow.FindStep(steps, pos.StepID); step != nil {
		return step
	}

	for i := range steps {
		step := &steps[i]
		if fuzzyMatch(step, pos) {
			return step
		}
	}

	if sender := workflow.FindStep(steps, workflow.SenderStepID); sender != nil {
		if equalFold(pos.Name, sender.Name) || labelContains(sender.PositionLabel, pos.PositionLabel) {
			return sender
		}
	}

	return nil
}

func fuzzyMatch(step *workflow.StepRuntime, pos *models.SignaturePosition) bool {
	if equalFold(pos.Name, step.Name) {
		return true
	}
	return labelContains(step.PositionLabel, pos.PositionLabel)
}

func equalFold(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

// labelContains checks substring containment in both directions, since
// either the stored label or the step label may be the longer variant.
func labelContains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

// renderIdentity keys de-duplication: the resolved user when present, else a
// synthetic per-step key.
func renderIdentity(step *workflow.StepRuntime) string {
	if step.ApproverUserID != "" {
		return step.ApproverUserID
	}
	return fmt.Sprintf("step:%d", step.StepID)
}

func covered(out []RenderedSignature, t *models.SignatureTarget) bool {
	for i := range out {
		if math.Abs(out[i].X-t.X) <= SnapTolerance && math.Abs(out[i].Y-t.Y) <= SnapTolerance {
			return true
		}
	}
	return false
}
