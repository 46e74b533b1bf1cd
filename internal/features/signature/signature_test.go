package signature

import (
	"testing"

	"go-letter/internal/common/models"
	"go-letter/internal/features/workflow"
)

func targets() []models.SignatureTarget {
	return []models.SignatureTarget{
		{Key: "sender", Label: "Drafter", X: 20, Y: 80, StepOrder: 0},
		{Key: "finance", Label: "Finance Head", X: 70, Y: 80, StepOrder: 1, Placeholder: true},
	}
}

func pendingStep(id, order int, name, label, userID string) workflow.StepRuntime {
	return workflow.StepRuntime{
		StepID:         id,
		Order:          order,
		Kind:           workflow.StepKindSequential,
		Required:       true,
		Name:           name,
		PositionLabel:  label,
		ApproverUserID: userID,
		Status:         models.ApprovalStatusPending,
	}
}

func TestPlaceSnapsToTarget(t *testing.T) {
	step := pendingStep(1, 1, "Bob", "Finance Head", "bob")

	tests := []struct {
		name     string
		x, y     float64
		wantX    float64
		wantY    float64
		wantSnap bool
	}{
		{"Within Tolerance", 67.5, 82.0, 70, 80, true},
		{"Exact Drop", 70, 80, 70, 80, true},
		{"Outside Tolerance", 60, 60, 60, 60, false},
		{"One Axis Off", 70, 88, 70, 88, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := Place(targets(), &step, tt.x, tt.y)
			if err != nil {
				t.Fatalf("Place() error = %v", err)
			}
			if pos.X != tt.wantX || pos.Y != tt.wantY {
				t.Errorf("Place() = (%v, %v), want (%v, %v)", pos.X, pos.Y, tt.wantX, tt.wantY)
			}
			if pos.StepID != step.StepID || pos.Name != "Bob" {
				t.Errorf("display attributes not carried: %+v", pos)
			}
		})
	}

	if _, err := Place(targets(), &step, 120, 50); err == nil {
		t.Error("Place() must reject coordinates outside the canvas")
	}
}

func TestPlaceSnapsToNearestOfSeveral(t *testing.T) {
	step := pendingStep(1, 1, "Bob", "Finance Head", "bob")
	pair := []models.SignatureTarget{
		{Key: "a", X: 50, Y: 50, StepOrder: 1},
		{Key: "b", X: 54, Y: 50, StepOrder: 2},
	}

	pos, err := Place(pair, &step, 53, 50)
	if err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	if pos.X != 54 {
		t.Errorf("snapped to X=%v, want nearest target 54", pos.X)
	}
}

func TestCorrectlyPlaced(t *testing.T) {
	step := pendingStep(1, 1, "Bob", "Finance Head", "bob")

	snapped, _ := Place(targets(), &step, 68, 81) // snaps to (70, 80)
	if !CorrectlyPlaced(targets(), &step, &snapped) {
		t.Error("snapped placement must be correct")
	}

	free, _ := Place(targets(), &step, 40, 40)
	if CorrectlyPlaced(targets(), &step, &free) {
		t.Error("free-standing placement on a designated step must be incorrect")
	}

	if CorrectlyPlaced(targets(), &step, nil) {
		t.Error("missing placement on a designated step must be incorrect")
	}

	// Steps without a designated slot are exempt.
	unpinned := pendingStep(9, 9, "Eve", "Witness", "eve")
	if !CorrectlyPlaced(targets(), &unpinned, nil) {
		t.Error("step without designated target must not be blocked")
	}
}

func TestRenderMatchTiers(t *testing.T) {
	steps := []workflow.StepRuntime{
		{StepID: 0, Order: 0, Name: "Alice", PositionLabel: "Drafter",
			ApproverUserID: "alice", Status: models.ApprovalStatusApproved,
			SignatureImageRef: "sig/alice.png", Required: true, Kind: workflow.StepKindSequential},
		pendingStep(1, 1, "Bob", "Head of Finance Bureau", "bob"),
	}

	positions := []models.SignaturePosition{
		// Tier 1: exact step id.
		{StepID: 0, X: 20, Y: 80, Name: "Alice", PositionLabel: "Drafter"},
		// Tier 2: stale step id, matched by position-label substring.
		{StepID: 77, X: 70, Y: 80, Name: "", PositionLabel: "finance bureau"},
	}

	out := Render(steps, positions, targets())
	if len(out) != 2 {
		t.Fatalf("rendered %d entries, want 2: %+v", len(out), out)
	}
	if out[0].StepID != 0 || out[0].SignatureImageRef != "sig/alice.png" {
		t.Errorf("sender entry wrong: %+v", out[0])
	}
	if out[1].StepID != 1 {
		t.Errorf("fuzzy match picked step %d, want 1", out[1].StepID)
	}
	if out[1].SignatureImageRef != "" {
		t.Error("pending step must not expose a signature image")
	}
}

func TestRenderSenderFallback(t *testing.T) {
	steps := []workflow.StepRuntime{
		{StepID: 0, Order: 0, Name: "Alice", PositionLabel: "Drafter",
			ApproverUserID: "alice", Status: models.ApprovalStatusApproved,
			Required: true, Kind: workflow.StepKindSequential},
	}
	positions := []models.SignaturePosition{
		{StepID: 42, X: 20, Y: 80, Name: "ALICE", PositionLabel: "somebody else"},
	}

	out := Render(steps, positions, nil)
	if len(out) != 1 || out[0].StepID != 0 {
		t.Fatalf("sender fallback failed: %+v", out)
	}
}

func TestRenderDeduplicatesSameIdentity(t *testing.T) {
	steps := []workflow.StepRuntime{
		{StepID: 0, Order: 0, Name: "Alice", PositionLabel: "Drafter",
			ApproverUserID: "alice", Status: models.ApprovalStatusApproved,
			Required: true, Kind: workflow.StepKindSequential},
		// A role slot that resolved to the same person.
		{StepID: 1, Order: 1, Name: "Alice", PositionLabel: "Acting Finance Head",
			ApproverUserID: "alice", Status: models.ApprovalStatusApproved,
			Required: true, Kind: workflow.StepKindSequential},
	}
	positions := []models.SignaturePosition{
		{StepID: 0, X: 20, Y: 80, Name: "Alice"},
		{StepID: 1, X: 70, Y: 80, Name: "Alice"},
	}

	out := Render(steps, positions, nil)
	if len(out) != 1 {
		t.Fatalf("same identity rendered %d times, want 1", len(out))
	}
}

func TestRenderUnmatchedSlot(t *testing.T) {
	steps := []workflow.StepRuntime{
		{StepID: 0, Order: 0, Name: "Alice", PositionLabel: "Drafter",
			ApproverUserID: "alice", Status: models.ApprovalStatusApproved,
			Required: true, Kind: workflow.StepKindSequential},
	}
	positions := []models.SignaturePosition{
		{StepID: 99, X: 40, Y: 40, Name: "Nobody", PositionLabel: "Ghost"},
	}

	// The unmatched slot renders nothing; the placeholder target renders a
	// pending marker because no signature covers it.
	out := Render(steps, positions, targets())
	if len(out) != 1 {
		t.Fatalf("rendered %d entries, want only the placeholder marker: %+v", len(out), out)
	}
	if !out[0].Pending || out[0].PositionLabel != "Finance Head" {
		t.Errorf("expected pending placeholder for the finance slot: %+v", out[0])
	}
}
