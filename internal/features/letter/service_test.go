package letter

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-letter/internal/common/models"
	"go-letter/internal/features/notification"
	"go-letter/internal/features/template"
	"go-letter/internal/features/workflow"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeLetterRepo struct {
	letters map[string]*Letter
}

func newFakeLetterRepo() *fakeLetterRepo {
	return &fakeLetterRepo{letters: make(map[string]*Letter)}
}

func (r *fakeLetterRepo) Create(_ context.Context, l *Letter) error {
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	stored := *l
	r.letters[l.ID.Hex()] = &stored
	return nil
}

func (r *fakeLetterRepo) GetByID(_ context.Context, id string) (*Letter, error) {
	l, ok := r.letters[id]
	if !ok {
		return nil, nil
	}
	// Decode semantics: callers get their own copy of the document.
	out := *l
	out.Steps = append([]workflow.StepRuntime(nil), l.Steps...)
	return &out, nil
}

func (r *fakeLetterRepo) UpdateSteps(_ context.Context, id string, steps []workflow.StepRuntime, nextStepID int) error {
	l, ok := r.letters[id]
	if !ok {
		return errors.New("missing letter")
	}
	l.Steps = append([]workflow.StepRuntime(nil), steps...)
	l.NextStepID = nextStepID
	return nil
}

func (r *fakeLetterRepo) DecideUpdate(_ context.Context, id string, stepID int, steps []workflow.StepRuntime, status models.LetterStatus) (bool, error) {
	l, ok := r.letters[id]
	if !ok {
		return false, errors.New("missing letter")
	}
	stored := workflow.FindStep(l.Steps, stepID)
	if stored == nil || stored.Status != models.ApprovalStatusPending {
		return false, nil
	}
	l.Steps = append([]workflow.StepRuntime(nil), steps...)
	l.Status = status
	return true, nil
}

func (r *fakeLetterRepo) MarkSubmitted(_ context.Context, id string, status models.LetterStatus) error {
	l, ok := r.letters[id]
	if !ok {
		return errors.New("missing letter")
	}
	now := time.Now()
	l.Status = status
	l.SubmittedAt = &now
	return nil
}

func (r *fakeLetterRepo) SetSignaturePosition(_ context.Context, id string, key string, pos models.SignaturePosition) error {
	l, ok := r.letters[id]
	if !ok {
		return errors.New("missing letter")
	}
	if l.SignaturePositions == nil {
		l.SignaturePositions = make(map[string]models.SignaturePosition)
	}
	l.SignaturePositions[key] = pos
	return nil
}

func (r *fakeLetterRepo) ListBySender(_ context.Context, senderID string) ([]Letter, error) {
	var out []Letter
	for _, l := range r.letters {
		if l.SenderID == senderID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakeLetterRepo) ListPendingForApprover(_ context.Context, userID string) ([]Letter, error) {
	var out []Letter
	for _, l := range r.letters {
		if l.Status != models.LetterStatusPending {
			continue
		}
		for i := range l.Steps {
			if l.Steps[i].ApproverUserID == userID && l.Steps[i].Status == models.ApprovalStatusPending {
				out = append(out, *l)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeLetterRepo) ListPendingOlderThan(_ context.Context, cutoff time.Time) ([]Letter, error) {
	var out []Letter
	for _, l := range r.letters {
		if l.Status == models.LetterStatusPending && l.SubmittedAt != nil && l.SubmittedAt.Before(cutoff) {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakeLetterRepo) List(_ context.Context, _ bson.M) ([]Letter, error) {
	var out []Letter
	for _, l := range r.letters {
		out = append(out, *l)
	}
	return out, nil
}

func (r *fakeLetterRepo) CountByNumberPrefix(_ context.Context, _ string) (int64, error) {
	return int64(len(r.letters)), nil
}

type fakeTemplates struct {
	byID map[string]*template.LetterTemplate
}

func (f *fakeTemplates) Create(_ context.Context, _ *template.LetterTemplate) error { return nil }
func (f *fakeTemplates) Update(_ context.Context, _ string, _ *template.LetterTemplate) error {
	return nil
}
func (f *fakeTemplates) GetByID(_ context.Context, id string) (*template.LetterTemplate, error) {
	return f.byID[id], nil
}
func (f *fakeTemplates) GetByLetterType(_ context.Context, _ string) (*template.LetterTemplate, error) {
	return nil, nil
}
func (f *fakeTemplates) List(_ context.Context) ([]template.LetterTemplate, error) { return nil, nil }
func (f *fakeTemplates) Delete(_ context.Context, _ string) error                  { return nil }

type fakeDirectory struct {
	users     map[string]*models.User
	occupants map[string][]models.User
}

func (d *fakeDirectory) GetUser(_ context.Context, userID string) (*models.User, error) {
	u, ok := d.users[userID]
	if !ok {
		return nil, workflow.ErrResolutionEmpty
	}
	return u, nil
}

func (d *fakeDirectory) ResolvePosition(_ context.Context, positionID string) ([]models.User, error) {
	return d.occupants[positionID], nil
}

func (d *fakeDirectory) GetSuperior(_ context.Context, _ workflow.Reference) (*models.Position, []models.User, error) {
	return nil, nil, workflow.ErrResolutionEmpty
}

type fakeAudit struct {
	actions []models.AuditAction
}

func (a *fakeAudit) LogChange(_ context.Context, action models.AuditAction, _ string, _ string, _ map[string]models.Change) error {
	a.actions = append(a.actions, action)
	return nil
}

func (a *fakeAudit) ListLogs(_ context.Context, _ map[string]interface{}, _, _ int64) ([]models.AuditLog, error) {
	return nil, nil
}

type fakeNotifier struct {
	recipients []string
}

func (n *fakeNotifier) Notify(_ context.Context, userID string, _ *notification.Notification) error {
	n.recipients = append(n.recipients, userID)
	return nil
}

func (n *fakeNotifier) GetUserNotifications(_ context.Context, _ primitive.ObjectID, _, _ int64) ([]notification.Notification, int64, error) {
	return nil, 0, nil
}
func (n *fakeNotifier) GetUnreadCount(_ context.Context, _ primitive.ObjectID) (int64, error) {
	return 0, nil
}
func (n *fakeNotifier) MarkAsRead(_ context.Context, _ string, _ primitive.ObjectID) error {
	return nil
}
func (n *fakeNotifier) MarkAllAsRead(_ context.Context, _ primitive.ObjectID) error { return nil }

func user(name string) *models.User {
	return &models.User{
		ID:       primitive.NewObjectID(),
		FullName: name,
		Status:   "active",
	}
}

type fixture struct {
	svc      LetterService
	repo     *fakeLetterRepo
	dir      *fakeDirectory
	notifier *fakeNotifier
	audit    *fakeAudit
	sender   *models.User
	bob      *models.User
	carol    *models.User
	tplID    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sender := user("Alice Sender")
	sender.PositionTitle = "Staff"
	bob := user("Bob Head")
	carol := user("Carol Director")

	dir := &fakeDirectory{
		users: map[string]*models.User{
			sender.ID.Hex(): sender,
			bob.ID.Hex():    bob,
			carol.ID.Hex():  carol,
		},
		occupants: map[string][]models.User{
			"pos-head":     {*bob},
			"pos-director": {*carol},
		},
	}

	tpl := &template.LetterTemplate{
		ID:         primitive.NewObjectID(),
		Name:       "Budget Request",
		LetterType: "budget-request",
		Steps: []workflow.StepSpec{
			{ID: "s1", Name: "Unit Head", Order: 1, Kind: workflow.StepKindSequential, Required: true,
				Approver: workflow.ApproverSpec{Type: workflow.ApproverByPosition, PositionID: "pos-head"}},
			{ID: "s2", Name: "Director", Order: 2, Kind: workflow.StepKindSequential, Required: true,
				Approver: workflow.ApproverSpec{Type: workflow.ApproverByPosition, PositionID: "pos-director"}},
		},
		SignatureTargets: []models.SignatureTarget{
			{Key: "sender", X: 20, Y: 85, StepOrder: 0},
			{Key: "head", X: 50, Y: 85, StepOrder: 1},
			{Key: "director", X: 80, Y: 85, StepOrder: 2},
		},
		Active: true,
	}

	repo := newFakeLetterRepo()
	notifier := &fakeNotifier{}
	auditSvc := &fakeAudit{}
	svc := NewLetterService(
		repo,
		&fakeTemplates{byID: map[string]*template.LetterTemplate{tpl.ID.Hex(): tpl}},
		dir,
		auditSvc,
		notifier,
		zap.NewNop(),
	)

	return &fixture{
		svc:      svc,
		repo:     repo,
		dir:      dir,
		notifier: notifier,
		audit:    auditSvc,
		sender:   sender,
		bob:      bob,
		carol:    carol,
		tplID:    tpl.ID.Hex(),
	}
}

func (f *fixture) create(t *testing.T) *Letter {
	t.Helper()
	l, err := f.svc.Create(context.Background(), f.sender.ID.Hex(), &CreateLetterRequest{
		TemplateID: f.tplID,
		Title:      "Q3 budget",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return l
}

// place arranges a slot on the draft as the sender, the only actor allowed to
// move signature positions.
func (f *fixture) place(t *testing.T, l *Letter, stepID int, x, y float64) {
	t.Helper()
	if _, err := f.svc.PlaceSignature(context.Background(), l.ID.Hex(), f.sender.ID.Hex(), &PlaceSignatureRequest{
		StepID: stepID, X: x, Y: y,
	}); err != nil {
		t.Fatalf("PlaceSignature(step %d) error = %v", stepID, err)
	}
}

func TestCreateInstantiatesRoute(t *testing.T) {
	f := newFixture(t)
	l := f.create(t)

	if len(l.Steps) != 3 {
		t.Fatalf("got %d steps, want sender + 2", len(l.Steps))
	}
	if l.Steps[0].StepID != workflow.SenderStepID || l.Steps[0].Status != models.ApprovalStatusApproved {
		t.Errorf("sender step not auto-approved: %+v", l.Steps[0])
	}
	// Both positions have a single occupant, so auto-resolve fills them in.
	if l.Steps[1].ApproverUserID != f.bob.ID.Hex() {
		t.Errorf("head step not auto-resolved: %+v", l.Steps[1])
	}
	if l.Status != models.LetterStatusDraft {
		t.Errorf("new letter status = %s, want draft", l.Status)
	}
	if l.Number == "" {
		t.Error("letter number not issued")
	}
}

func TestSubmitBlocksOnUnresolvedSteps(t *testing.T) {
	f := newFixture(t)
	l := f.create(t)

	// Detach the director step's approver to simulate a vacant position.
	l.Steps[2].ApproverUserID = ""
	if err := f.repo.UpdateSteps(context.Background(), l.ID.Hex(), l.Steps, l.NextStepID); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Submit(context.Background(), l.ID.Hex(), f.sender.ID.Hex())
	var unresolved *workflow.UnresolvedStepsError
	if !errors.As(err, &unresolved) {
		t.Fatalf("Submit() error = %v, want UnresolvedStepsError", err)
	}
	if len(unresolved.StepIDs) != 1 || unresolved.StepIDs[0] != l.Steps[2].StepID {
		t.Errorf("offending steps = %v", unresolved.StepIDs)
	}
}

func TestSubmitBlocksOnAmbiguousApprover(t *testing.T) {
	f := newFixture(t)
	deputy := user("Dana Deputy")
	f.dir.occupants["pos-director"] = append(f.dir.occupants["pos-director"], *deputy)

	// Two occupants mean auto-resolve leaves the director step open.
	l := f.create(t)
	directorStep := l.Steps[2].StepID
	if l.Steps[2].ApproverUserID != "" {
		t.Fatalf("director step resolved despite multiple occupants: %+v", l.Steps[2])
	}

	_, err := f.svc.Submit(context.Background(), l.ID.Hex(), f.sender.ID.Hex())
	if !errors.Is(err, workflow.ErrResolutionAmbiguous) {
		t.Fatalf("Submit() error = %v, want ErrResolutionAmbiguous", err)
	}
	var ambiguous *workflow.AmbiguousStepError
	if !errors.As(err, &ambiguous) || ambiguous.StepID != directorStep {
		t.Fatalf("ambiguity does not name the director step: %v", err)
	}

	// An explicit choice unblocks submission.
	if _, err := f.svc.Assign(context.Background(), l.ID.Hex(), f.sender.ID.Hex(), &AssignApproverRequest{
		StepID: directorStep, UserID: f.carol.ID.Hex(),
	}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), l.ID.Hex(), f.sender.ID.Hex()); err != nil {
		t.Errorf("Submit() after explicit selection error = %v", err)
	}
}

func TestSubmitNotifiesFirstApprover(t *testing.T) {
	f := newFixture(t)
	l := f.create(t)

	submitted, err := f.svc.Submit(context.Background(), l.ID.Hex(), f.sender.ID.Hex())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if submitted.Status != models.LetterStatusPending {
		t.Errorf("status = %s, want pending", submitted.Status)
	}
	if len(f.notifier.recipients) != 1 || f.notifier.recipients[0] != f.bob.ID.Hex() {
		t.Errorf("notified %v, want only the unit head", f.notifier.recipients)
	}
}

func TestSubmitByNonSenderForbidden(t *testing.T) {
	f := newFixture(t)
	l := f.create(t)

	if _, err := f.svc.Submit(context.Background(), l.ID.Hex(), f.bob.ID.Hex()); !errors.Is(err, workflow.ErrUnauthorized) {
		t.Errorf("Submit() by approver error = %v, want ErrUnauthorized", err)
	}
}

func TestShapeFrozenAfterSubmission(t *testing.T) {
	f := newFixture(t)
	l := f.create(t)
	if _, err := f.svc.Submit(context.Background(), l.ID.Hex(), f.sender.ID.Hex()); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.InsertStep(context.Background(), l.ID.Hex(), f.sender.ID.Hex(), &InsertStepRequest{
		AtIndex: 1, UserID: f.carol.ID.Hex(),
	})
	if !errors.Is(err, workflow.ErrShapeFrozen) {
		t.Errorf("InsertStep() after submit error = %v, want ErrShapeFrozen", err)
	}

	_, err = f.svc.RemoveStep(context.Background(), l.ID.Hex(), f.sender.ID.Hex(), l.Steps[1].StepID)
	if !errors.Is(err, workflow.ErrShapeFrozen) {
		t.Errorf("RemoveStep() after submit error = %v, want ErrShapeFrozen", err)
	}
}

func TestDecideFullApprovalFlow(t *testing.T) {
	f := newFixture(t)
	l := f.create(t)
	headStep, directorStep := l.Steps[1].StepID, l.Steps[2].StepID

	// The sender arranges every slot on the draft, then submits.
	f.place(t, l, workflow.SenderStepID, 20, 85)
	f.place(t, l, headStep, 48, 84) // snaps to (50, 85)
	f.place(t, l, directorStep, 80, 85)
	if _, err := f.svc.Submit(context.Background(), l.ID.Hex(), f.sender.ID.Hex()); err != nil {
		t.Fatal(err)
	}

	updated, err := f.svc.Decide(context.Background(), l.ID.Hex(), f.bob.ID.Hex(), &DecideRequest{
		StepID: headStep, Decision: "approve",
	})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if updated.Status != models.LetterStatusPending {
		t.Errorf("status after first approval = %s, want pending", updated.Status)
	}

	final, err := f.svc.Decide(context.Background(), l.ID.Hex(), f.carol.ID.Hex(), &DecideRequest{
		StepID: directorStep, Decision: "approve",
	})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if final.Status != models.LetterStatusApproved {
		t.Errorf("final status = %s, want approved", final.Status)
	}
	// Sender is told about the terminal outcome.
	last := f.notifier.recipients[len(f.notifier.recipients)-1]
	if last != f.sender.ID.Hex() {
		t.Errorf("terminal notification went to %s, want sender", last)
	}
}

func TestDecideBlockedWithoutPlacement(t *testing.T) {
	f := newFixture(t)
	l := f.create(t)
	headStep := l.Steps[1].StepID

	// The head's slot was never placed before submission.
	f.place(t, l, workflow.SenderStepID, 20, 85)
	f.place(t, l, l.Steps[2].StepID, 80, 85)
	if _, err := f.svc.Submit(context.Background(), l.ID.Hex(), f.sender.ID.Hex()); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Decide(context.Background(), l.ID.Hex(), f.bob.ID.Hex(), &DecideRequest{
		StepID: headStep, Decision: "approve",
	})
	if !errors.Is(err, workflow.ErrInvalidPlacement) {
		t.Fatalf("Decide() without placement error = %v, want ErrInvalidPlacement", err)
	}

	// Placement gates approval only; rejection is still available.
	rejected, err := f.svc.Decide(context.Background(), l.ID.Hex(), f.bob.ID.Hex(), &DecideRequest{
		StepID: headStep, Decision: "reject", Remarks: "send it back for a signature slot",
	})
	if err != nil {
		t.Fatalf("Decide() reject error = %v", err)
	}
	if rejected.Status != models.LetterStatusRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}
}

func TestSignaturePositionsFrozenAfterSubmission(t *testing.T) {
	f := newFixture(t)
	l := f.create(t)
	headStep := l.Steps[1].StepID

	f.place(t, l, workflow.SenderStepID, 20, 85)
	f.place(t, l, headStep, 50, 85)
	if _, err := f.svc.Submit(context.Background(), l.ID.Hex(), f.sender.ID.Hex()); err != nil {
		t.Fatal(err)
	}

	// The sender cannot move a position once the letter is out.
	_, err := f.svc.PlaceSignature(context.Background(), l.ID.Hex(), f.sender.ID.Hex(), &PlaceSignatureRequest{
		StepID: workflow.SenderStepID, X: 30, Y: 85,
	})
	if !errors.Is(err, workflow.ErrShapeFrozen) {
		t.Errorf("sender PlaceSignature() after submit error = %v, want ErrShapeFrozen", err)
	}

	// Approvers never place positions, before or after submission.
	_, err = f.svc.PlaceSignature(context.Background(), l.ID.Hex(), f.bob.ID.Hex(), &PlaceSignatureRequest{
		StepID: headStep, X: 50, Y: 85,
	})
	if !errors.Is(err, workflow.ErrUnauthorized) {
		t.Errorf("approver PlaceSignature() error = %v, want ErrUnauthorized", err)
	}

	stored, err := f.svc.Get(context.Background(), l.ID.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if pos := stored.SignaturePositions["0"]; pos.X != 20 {
		t.Errorf("stored sender position moved to X=%v after submission", pos.X)
	}
}

func TestDecideRejectShortCircuits(t *testing.T) {
	f := newFixture(t)
	l := f.create(t)
	if _, err := f.svc.Submit(context.Background(), l.ID.Hex(), f.sender.ID.Hex()); err != nil {
		t.Fatal(err)
	}
	headStep := l.Steps[1].StepID

	_, err := f.svc.Decide(context.Background(), l.ID.Hex(), f.bob.ID.Hex(), &DecideRequest{
		StepID: headStep, Decision: "reject",
	})
	if !errors.Is(err, workflow.ErrRemarksRequired) {
		t.Fatalf("reject without remarks error = %v, want ErrRemarksRequired", err)
	}

	rejected, err := f.svc.Decide(context.Background(), l.ID.Hex(), f.bob.ID.Hex(), &DecideRequest{
		StepID: headStep, Decision: "reject", Remarks: "budget cap exceeded",
	})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if rejected.Status != models.LetterStatusRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}

	// The director step is moot now.
	_, err = f.svc.Decide(context.Background(), l.ID.Hex(), f.carol.ID.Hex(), &DecideRequest{
		StepID: l.Steps[2].StepID, Decision: "approve",
	})
	if !errors.Is(err, workflow.ErrNotActionable) {
		t.Errorf("Decide() after rejection error = %v, want ErrNotActionable", err)
	}
}

func TestDecideConflictOnRacedStep(t *testing.T) {
	f := newFixture(t)
	l := f.create(t)
	headStep := l.Steps[1].StepID
	f.place(t, l, headStep, 50, 85)
	if _, err := f.svc.Submit(context.Background(), l.ID.Hex(), f.sender.ID.Hex()); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Decide(context.Background(), l.ID.Hex(), f.bob.ID.Hex(), &DecideRequest{
		StepID: headStep, Decision: "approve",
	}); err != nil {
		t.Fatal(err)
	}

	// A second decision on the same step loses the conditional update.
	_, err := f.svc.Decide(context.Background(), l.ID.Hex(), f.bob.ID.Hex(), &DecideRequest{
		StepID: headStep, Decision: "approve",
	})
	if !errors.Is(err, workflow.ErrAlreadyDecided) {
		t.Errorf("raced Decide() error = %v, want ErrAlreadyDecided", err)
	}
}

func TestInboxListsOnlyActionable(t *testing.T) {
	f := newFixture(t)
	l := f.create(t)
	if _, err := f.svc.Submit(context.Background(), l.ID.Hex(), f.sender.ID.Hex()); err != nil {
		t.Fatal(err)
	}

	inbox, err := f.svc.Inbox(context.Background(), f.bob.ID.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 1 {
		t.Errorf("unit head inbox size = %d, want 1", len(inbox))
	}

	// The director's step is gated behind the head's approval.
	inbox, err = f.svc.Inbox(context.Background(), f.carol.ID.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 0 {
		t.Errorf("director inbox size = %d, want 0 before the head approves", len(inbox))
	}
}

func TestRenderAfterApproval(t *testing.T) {
	f := newFixture(t)
	l := f.create(t)
	headStep := l.Steps[1].StepID
	f.place(t, l, workflow.SenderStepID, 20, 85)
	f.place(t, l, headStep, 50, 85)
	if _, err := f.svc.Submit(context.Background(), l.ID.Hex(), f.sender.ID.Hex()); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Decide(context.Background(), l.ID.Hex(), f.bob.ID.Hex(), &DecideRequest{
		StepID: headStep, Decision: "approve",
	}); err != nil {
		t.Fatal(err)
	}

	rendered, err := f.svc.Render(context.Background(), l.ID.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if len(rendered) != 2 {
		t.Fatalf("rendered %d signatures, want 2: %+v", len(rendered), rendered)
	}
}
