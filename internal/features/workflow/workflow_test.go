package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go-letter/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeDirectory is an in-memory Directory for tests.
type fakeDirectory struct {
	users     map[string]models.User   // by user id hex
	occupants map[string][]models.User // by position id
	superiors map[string]superiorEntry // by reference user id or position id
	failures  int                      // transient errors to return before succeeding
}

type superiorEntry struct {
	pos models.Position
	occ []models.User
}

func (d *fakeDirectory) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if u, ok := d.users[userID]; ok {
		return &u, nil
	}
	return nil, ErrResolutionEmpty
}

func (d *fakeDirectory) ResolvePosition(ctx context.Context, positionID string) ([]models.User, error) {
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection reset")
	}
	return d.occupants[positionID], nil
}

func (d *fakeDirectory) GetSuperior(ctx context.Context, ref Reference) (*models.Position, []models.User, error) {
	key := ref.UserID
	if key == "" {
		key = ref.PositionID
	}
	entry, ok := d.superiors[key]
	if !ok {
		return nil, nil, ErrResolutionEmpty
	}
	return &entry.pos, entry.occ, nil
}

func newUser(name string) models.User {
	return models.User{
		ID:       primitive.NewObjectID(),
		Username: name,
		FullName: name,
		Status:   "active",
	}
}

func TestInstantiateSenderFirst(t *testing.T) {
	sender := newUser("Alice")
	reviewer := newUser("Carol")
	dir := &fakeDirectory{users: map[string]models.User{reviewer.ID.Hex(): reviewer}}

	specs := []StepSpec{
		{Name: "Reviewer", Order: 1, Kind: StepKindSequential, Required: true,
			Approver: ApproverSpec{Type: ApproverByUser, UserID: reviewer.ID.Hex()}},
		{Name: "Finance Head", Order: 2, Kind: StepKindSequential, Required: true,
			Approver: ApproverSpec{Type: ApproverByPosition, PositionID: "pos-finance"}},
	}

	steps, nextID, err := Instantiate(context.Background(), specs, sender, nil, dir)
	if err != nil {
		t.Fatalf("Instantiate() error = %v", err)
	}

	if len(steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(steps))
	}
	if steps[0].StepID != SenderStepID || steps[0].ApproverUserID != sender.ID.Hex() {
		t.Errorf("first step is not the sender: %+v", steps[0])
	}
	if steps[0].Status != models.ApprovalStatusApproved {
		t.Errorf("sender step status = %s, want approved", steps[0].Status)
	}
	if steps[1].ApproverUserID != reviewer.ID.Hex() {
		t.Errorf("ByUser step not resolved immediately: %+v", steps[1])
	}
	if steps[2].ApproverUserID != "" || steps[2].PositionID != "pos-finance" {
		t.Errorf("ByPosition step should stay unresolved: %+v", steps[2])
	}
	if steps[1].Order >= steps[2].Order {
		t.Errorf("template order not preserved: %d vs %d", steps[1].Order, steps[2].Order)
	}
	if nextID != 3 {
		t.Errorf("nextID = %d, want 3", nextID)
	}
}

func TestInstantiateConditional(t *testing.T) {
	sender := newUser("Alice")
	dir := &fakeDirectory{}

	specs := []StepSpec{
		{Name: "Legal Review", Order: 1, Kind: StepKindConditional, Required: true,
			Condition: &models.RuleCondition{Field: "classification", Operator: "eq", Value: "secret"},
			Approver:  ApproverSpec{Type: ApproverByPosition, PositionID: "pos-legal"}},
	}

	// Condition false: skipped entirely, treated as satisfied.
	steps, _, err := Instantiate(context.Background(), specs, sender,
		map[string]interface{}{"classification": "public"}, dir)
	if err != nil {
		t.Fatalf("Instantiate() error = %v", err)
	}
	if steps[1].Status != models.ApprovalStatusSkipped {
		t.Errorf("status = %s, want skipped", steps[1].Status)
	}
	if err := ValidateSubmit(steps); err != nil {
		t.Errorf("skipped step must not block submission: %v", err)
	}
	if got := DeriveStatus(steps); got != models.LetterStatusApproved {
		t.Errorf("letter with only skipped steps should derive approved, got %s", got)
	}

	// Condition true: behaves like an ordinary sequential step.
	steps, _, err = Instantiate(context.Background(), specs, sender,
		map[string]interface{}{"classification": "secret"}, dir)
	if err != nil {
		t.Fatalf("Instantiate() error = %v", err)
	}
	if steps[1].Status != models.ApprovalStatusPending {
		t.Errorf("status = %s, want pending", steps[1].Status)
	}
}

func TestInstantiateParallelSharesOrder(t *testing.T) {
	sender := newUser("Alice")
	dir := &fakeDirectory{}

	specs := []StepSpec{
		{Name: "Joint Signers", Order: 1, Kind: StepKindParallel, Members: []StepSpec{
			{Name: "Signer A", Required: true, Approver: ApproverSpec{Type: ApproverByPosition, PositionID: "pos-a"}},
			{Name: "Signer B", Required: true, Approver: ApproverSpec{Type: ApproverByPosition, PositionID: "pos-b"}},
		}},
		{Name: "Final", Order: 2, Kind: StepKindSequential, Required: true,
			Approver: ApproverSpec{Type: ApproverByPosition, PositionID: "pos-final"}},
	}

	steps, _, err := Instantiate(context.Background(), specs, sender, nil, dir)
	if err != nil {
		t.Fatalf("Instantiate() error = %v", err)
	}
	if len(steps) != 4 {
		t.Fatalf("got %d steps, want 4", len(steps))
	}
	if steps[1].Order != steps[2].Order {
		t.Errorf("parallel members must share one order slot: %d vs %d", steps[1].Order, steps[2].Order)
	}
	if steps[1].StepID == steps[2].StepID {
		t.Error("parallel members must have distinct step ids")
	}
	if steps[3].Order <= steps[1].Order {
		t.Errorf("successor must occupy a later slot: %d vs %d", steps[3].Order, steps[1].Order)
	}
}

// resolvedSteps builds a sender plus n resolved sequential steps for state
// machine tests. Approver user ids are "u1", "u2", ...
func resolvedSteps(t *testing.T, orders ...int) []StepRuntime {
	t.Helper()
	sender := newUser("Sender")
	steps, _, err := Instantiate(context.Background(), nil, sender, nil, &fakeDirectory{})
	if err != nil {
		t.Fatalf("Instantiate() error = %v", err)
	}
	for i, order := range orders {
		steps = append(steps, StepRuntime{
			StepID:         i + 1,
			Order:          order,
			Kind:           StepKindSequential,
			Required:       true,
			ApproverUserID: userID(i + 1),
			Status:         models.ApprovalStatusPending,
		})
	}
	return steps
}

func userID(n int) string {
	return fmt.Sprintf("u%d", n)
}

func TestSequentialOrdering(t *testing.T) {
	steps := resolvedSteps(t, 1, 2)

	// Step 2 is gated by step 1.
	err := Decide(steps, 2, userID(2), DecisionApprove, "", true)
	if !errors.Is(err, ErrNotActionable) {
		t.Fatalf("Decide() error = %v, want ErrNotActionable", err)
	}

	if err := Decide(steps, 1, userID(1), DecisionApprove, "", true); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if err := Decide(steps, 2, userID(2), DecisionApprove, "", true); err != nil {
		t.Fatalf("Decide() after predecessor approved: %v", err)
	}
	if got := DeriveStatus(steps); got != models.LetterStatusApproved {
		t.Errorf("DeriveStatus() = %s, want approved", got)
	}
}

func TestDecideAuthorizationInvariant(t *testing.T) {
	steps := resolvedSteps(t, 1)

	err := Decide(steps, 1, "intruder", DecisionApprove, "", true)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Decide() error = %v, want ErrUnauthorized", err)
	}

	if err := Decide(steps, 1, userID(1), DecisionApprove, "", true); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	// Terminal transitions are monotonic; a double-submit is a conflict.
	err = Decide(steps, 1, userID(1), DecisionReject, "changed my mind", true)
	if !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("Decide() error = %v, want ErrAlreadyDecided", err)
	}
}

func TestRejectRequiresRemarks(t *testing.T) {
	steps := resolvedSteps(t, 1)

	err := Decide(steps, 1, userID(1), DecisionReject, "", true)
	if !errors.Is(err, ErrRemarksRequired) {
		t.Fatalf("Decide() error = %v, want ErrRemarksRequired", err)
	}
	if steps[1].Status != models.ApprovalStatusPending {
		t.Errorf("failed reject must not change status, got %s", steps[1].Status)
	}
}

func TestApproveRequiresCorrectPlacement(t *testing.T) {
	steps := resolvedSteps(t, 1)

	err := Decide(steps, 1, userID(1), DecisionApprove, "", false)
	if !errors.Is(err, ErrInvalidPlacement) {
		t.Fatalf("Decide() error = %v, want ErrInvalidPlacement", err)
	}
	// Rejection does not depend on placement.
	if err := Decide(steps, 1, userID(1), DecisionReject, "wrong attachment", false); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
}

func TestParallelGroupSemantics(t *testing.T) {
	build := func() []StepRuntime {
		steps := resolvedSteps(t)
		for i := 1; i <= 2; i++ {
			steps = append(steps, StepRuntime{
				StepID: i, Order: 1, Kind: StepKindParallel, Required: true,
				ApproverUserID: userID(i), Status: models.ApprovalStatusPending,
			})
		}
		return steps
	}

	// Members approve in any relative order; the result is identical.
	for _, order := range [][]int{{1, 2}, {2, 1}} {
		steps := build()
		for _, id := range order {
			if err := Decide(steps, id, userID(id), DecisionApprove, "", true); err != nil {
				t.Fatalf("Decide(%d) error = %v", id, err)
			}
		}
		if got := DeriveStatus(steps); got != models.LetterStatusApproved {
			t.Errorf("order %v: DeriveStatus() = %s, want approved", order, got)
		}
	}

	// Any member rejecting short-circuits the group and the letter, with the
	// sibling still pending.
	steps := build()
	if err := Decide(steps, 1, userID(1), DecisionReject, "not in budget", true); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if got := DeriveStatus(steps); got != models.LetterStatusRejected {
		t.Fatalf("DeriveStatus() = %s, want rejected", got)
	}
	// The remaining member is moot, not auto-rejected.
	if steps[2].Status != models.ApprovalStatusPending {
		t.Errorf("sibling status = %s, want pending", steps[2].Status)
	}
	if Actionable(steps, 2) {
		t.Error("sibling must not be actionable after the letter is rejected")
	}
}

func TestScenarioFinanceHead(t *testing.T) {
	alice := newUser("Alice")
	bob := newUser("Bob")
	dir := &fakeDirectory{occupants: map[string][]models.User{
		"pos-finance": {bob},
	}}

	specs := []StepSpec{
		{Name: "Finance Head", Order: 1, Kind: StepKindSequential, Required: true,
			Approver: ApproverSpec{Type: ApproverByPosition, PositionID: "pos-finance"}},
	}

	steps, _, err := Instantiate(context.Background(), specs, alice, nil, dir)
	if err != nil {
		t.Fatalf("Instantiate() error = %v", err)
	}
	if err := ValidateSubmit(steps); err == nil {
		t.Fatal("submission must be blocked while step 1 is unresolved")
	}

	if err := AutoResolve(context.Background(), steps, dir); err != nil {
		t.Fatalf("AutoResolve() error = %v", err)
	}
	if steps[1].ApproverUserID != bob.ID.Hex() {
		t.Fatalf("sole occupant not auto-selected: %+v", steps[1])
	}
	if err := ValidateSubmit(steps); err != nil {
		t.Fatalf("ValidateSubmit() error = %v", err)
	}

	if err := Decide(steps, 1, bob.ID.Hex(), DecisionApprove, "", true); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if got := DeriveStatus(steps); got != models.LetterStatusApproved {
		t.Errorf("DeriveStatus() = %s, want approved", got)
	}
}

func TestValidateSubmitEnumeratesOffenders(t *testing.T) {
	sender := newUser("Alice")
	dir := &fakeDirectory{}
	specs := []StepSpec{
		{Name: "A", Order: 1, Kind: StepKindSequential, Required: true,
			Approver: ApproverSpec{Type: ApproverByPosition, PositionID: "pos-a"}},
		{Name: "B", Order: 2, Kind: StepKindSequential, Required: true,
			Approver: ApproverSpec{Type: ApproverByPosition, PositionID: "pos-b"}},
	}

	steps, _, err := Instantiate(context.Background(), specs, sender, nil, dir)
	if err != nil {
		t.Fatalf("Instantiate() error = %v", err)
	}

	var unresolved *UnresolvedStepsError
	err = ValidateSubmit(steps)
	if !errors.As(err, &unresolved) {
		t.Fatalf("ValidateSubmit() error = %v, want UnresolvedStepsError", err)
	}
	if len(unresolved.StepIDs) != 2 {
		t.Errorf("offending steps = %v, want both", unresolved.StepIDs)
	}
}

func TestValidateSubmitResolutionFlagsAmbiguity(t *testing.T) {
	a, b := newUser("A"), newUser("B")
	dir := &fakeDirectory{occupants: map[string][]models.User{
		"pos-shared": {a, b},
		"pos-vacant": nil,
	}}

	steps := resolvedSteps(t)
	steps = append(steps,
		StepRuntime{StepID: 1, Order: 1, Kind: StepKindSequential, Required: true,
			PositionID: "pos-shared", Status: models.ApprovalStatusPending},
		StepRuntime{StepID: 2, Order: 2, Kind: StepKindSequential, Required: true,
			PositionID: "pos-vacant", Status: models.ApprovalStatusPending},
	)

	err := ValidateSubmitResolution(context.Background(), steps, dir)
	var ambiguous *AmbiguousStepError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("ValidateSubmitResolution() error = %v, want AmbiguousStepError", err)
	}
	if !errors.Is(err, ErrResolutionAmbiguous) {
		t.Error("ambiguity must unwrap to ErrResolutionAmbiguous")
	}
	if ambiguous.StepID != 1 || ambiguous.Candidates != 2 {
		t.Errorf("got step %d with %d candidates, want step 1 with 2",
			ambiguous.StepID, ambiguous.Candidates)
	}

	// With the choice made, the vacant step still blocks wholesale.
	steps[1].Snapshot(&a)
	err = ValidateSubmitResolution(context.Background(), steps, dir)
	var unresolved *UnresolvedStepsError
	if !errors.As(err, &unresolved) || len(unresolved.StepIDs) != 1 || unresolved.StepIDs[0] != 2 {
		t.Fatalf("ValidateSubmitResolution() error = %v, want UnresolvedStepsError naming step 2", err)
	}

	steps[2].Snapshot(&b)
	if err := ValidateSubmitResolution(context.Background(), steps, dir); err != nil {
		t.Errorf("ValidateSubmitResolution() on a resolved list error = %v", err)
	}
}

func TestInsertAndRemoveStep(t *testing.T) {
	steps := resolvedSteps(t, 1, 2)
	nextID := 3

	boss := newUser("Boss")
	manual := StepRuntime{Kind: StepKindSequential, Required: true, PositionLabel: "Bureau Chief"}
	manual.Snapshot(&boss)

	// Insert between steps 1 and 2.
	steps, nextID, err := InsertStep(steps, 2, manual, nextID)
	if err != nil {
		t.Fatalf("InsertStep() error = %v", err)
	}
	if nextID != 4 {
		t.Errorf("nextID = %d, want 4", nextID)
	}
	if steps[2].StepID != 3 {
		t.Errorf("inserted step id = %d, want 3", steps[2].StepID)
	}
	if !(steps[1].Order < steps[2].Order && steps[2].Order < steps[3].Order) {
		t.Errorf("orders not strictly sequenced: %d, %d, %d",
			steps[1].Order, steps[2].Order, steps[3].Order)
	}

	// Step ids are stable across shape edits.
	steps, err = RemoveStep(steps, 3)
	if err != nil {
		t.Fatalf("RemoveStep() error = %v", err)
	}
	if FindStep(steps, 3) != nil {
		t.Error("removed step still present")
	}
	if FindStep(steps, 1) == nil || FindStep(steps, 2) == nil {
		t.Error("unrelated steps lost their identity")
	}

	// The sender step cannot be removed.
	if _, err := RemoveStep(steps, SenderStepID); !errors.Is(err, ErrStepNotFound) {
		t.Errorf("RemoveStep(sender) error = %v, want ErrStepNotFound", err)
	}
}

func TestRemoveLastParallelMemberRemovesSlot(t *testing.T) {
	steps := resolvedSteps(t)
	steps = append(steps, StepRuntime{
		StepID: 1, Order: 1, Kind: StepKindParallel, Required: true,
		ApproverUserID: userID(1), Status: models.ApprovalStatusPending,
	})

	steps, err := RemoveStep(steps, 1)
	if err != nil {
		t.Fatalf("RemoveStep() error = %v", err)
	}
	for _, s := range steps {
		if s.Order == 1 {
			t.Errorf("empty parallel slot survived: %+v", s)
		}
	}
}

func TestClimbSuperior(t *testing.T) {
	bob := newUser("Bob")
	boss := newUser("Boss")
	bossPos := models.Position{ID: primitive.NewObjectID(), Name: "Bureau Chief"}

	dir := &fakeDirectory{superiors: map[string]superiorEntry{
		bob.ID.Hex(): {pos: bossPos, occ: []models.User{boss}},
	}}

	pos, occ, err := ClimbSuperior(context.Background(), Reference{UserID: bob.ID.Hex()}, dir)
	if err != nil {
		t.Fatalf("ClimbSuperior() error = %v", err)
	}
	if pos.Name != "Bureau Chief" || len(occ) != 1 {
		t.Errorf("unexpected climb result: %v %v", pos, occ)
	}

	// No superior found: recoverable, the draft stays as it was.
	steps := resolvedSteps(t, 1)
	before := len(steps)
	_, _, err = ClimbSuperior(context.Background(), Reference{UserID: boss.ID.Hex()}, dir)
	if !errors.Is(err, ErrResolutionEmpty) {
		t.Fatalf("ClimbSuperior() error = %v, want ErrResolutionEmpty", err)
	}
	if len(steps) != before {
		t.Error("failed climb must not mutate the step list")
	}
}

func TestDirectoryRetry(t *testing.T) {
	bob := newUser("Bob")
	dir := &fakeDirectory{
		failures:  2, // transient, recovers within the retry budget
		occupants: map[string][]models.User{"pos-finance": {bob}},
	}

	steps := resolvedSteps(t)
	steps = append(steps, StepRuntime{
		StepID: 1, Order: 1, Kind: StepKindSequential, Required: true,
		PositionID: "pos-finance", Status: models.ApprovalStatusPending,
	})

	occ, err := ResolveStep(context.Background(), steps, 1, dir)
	if err != nil {
		t.Fatalf("ResolveStep() error = %v", err)
	}
	if len(occ) != 1 {
		t.Fatalf("got %d occupants, want 1", len(occ))
	}

	// Exhausted retries surface as DirectoryUnavailable.
	dir.failures = directoryRetries + 1
	if _, err := ResolveStep(context.Background(), steps, 1, dir); !errors.Is(err, ErrDirectoryUnavailable) {
		t.Fatalf("ResolveStep() error = %v, want ErrDirectoryUnavailable", err)
	}
}
