package letter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go-letter/internal/common/models"
	"go-letter/internal/features/audit"
	"go-letter/internal/features/notification"
	"go-letter/internal/features/signature"
	"go-letter/internal/features/template"
	"go-letter/internal/features/workflow"
	"go-letter/pkg/utils"

	"go.uber.org/zap"
)

type LetterService interface {
	Create(ctx context.Context, senderID string, req *CreateLetterRequest) (*Letter, error)
	Get(ctx context.Context, id string) (*Letter, error)
	Inbox(ctx context.Context, userID string) ([]Letter, error)
	Outbox(ctx context.Context, senderID string) ([]Letter, error)

	Candidates(ctx context.Context, letterID string, stepID int) ([]models.User, error)
	Assign(ctx context.Context, letterID, actorID string, req *AssignApproverRequest) (*Letter, error)
	InsertStep(ctx context.Context, letterID, actorID string, req *InsertStepRequest) (*Letter, error)
	RemoveStep(ctx context.Context, letterID, actorID string, stepID int) (*Letter, error)

	Submit(ctx context.Context, letterID, actorID string) (*Letter, error)
	Decide(ctx context.Context, letterID, actorID string, req *DecideRequest) (*Letter, error)

	PlaceSignature(ctx context.Context, letterID, actorID string, req *PlaceSignatureRequest) (*models.SignaturePosition, error)
	Render(ctx context.Context, letterID string) ([]signature.RenderedSignature, error)
}

type LetterServiceImpl struct {
	Repo      LetterRepository
	Templates template.TemplateService
	Directory workflow.Directory
	Audit     audit.AuditService
	Notifier  notification.NotificationService
	Logger    *zap.Logger
}

func NewLetterService(
	repo LetterRepository,
	templates template.TemplateService,
	directory workflow.Directory,
	auditService audit.AuditService,
	notifier notification.NotificationService,
	logger *zap.Logger,
) LetterService {
	return &LetterServiceImpl{
		Repo:      repo,
		Templates: templates,
		Directory: directory,
		Audit:     auditService,
		Notifier:  notifier,
		Logger:    logger,
	}
}

var ErrLetterNotFound = errors.New("letter not found")

// Create instantiates a letter from its template: the sender becomes the
// implicit approved first step, the template route is expanded against the
// letter's attributes, and positions with a single occupant are resolved
// immediately. Resolution gaps never fail creation, only submission.
func (s *LetterServiceImpl) Create(ctx context.Context, senderID string, req *CreateLetterRequest) (*Letter, error) {
	tpl, err := s.Templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("template %s not found", req.TemplateID)
	}

	sender, err := s.Directory.GetUser(ctx, senderID)
	if err != nil {
		return nil, err
	}

	steps, nextID, err := workflow.Instantiate(ctx, tpl.Steps, *sender, req.Attributes, s.Directory)
	if err != nil {
		return nil, err
	}

	if err := workflow.AutoResolve(ctx, steps, s.Directory); err != nil {
		// The draft stays usable; unresolved steps surface at submission.
		s.Logger.Warn("auto-resolve incomplete at letter creation",
			zap.String("template_id", req.TemplateID), zap.Error(err))
	}

	number, err := s.nextNumber(ctx, tpl.LetterType)
	if err != nil {
		return nil, err
	}

	l := &Letter{
		Number:           number,
		TemplateID:       tpl.ID,
		LetterType:       tpl.LetterType,
		Title:            req.Title,
		Body:             req.Body,
		Attributes:       req.Attributes,
		SenderID:         senderID,
		SenderName:       sender.FullName,
		Steps:            steps,
		NextStepID:       nextID,
		SignatureTargets: tpl.SignatureTargets,
		Status:           models.LetterStatusDraft,
	}
	if err := s.Repo.Create(ctx, l); err != nil {
		return nil, err
	}

	s.audit(ctx, models.AuditActionCreate, l.ID.Hex(), nil)
	return l, nil
}

func (s *LetterServiceImpl) Get(ctx context.Context, id string) (*Letter, error) {
	l, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrLetterNotFound
	}
	return l, nil
}

// Inbox lists letters on which the user currently holds an actionable step.
// The query narrows to pending assignments; the ordering rules decide
// actionability.
func (s *LetterServiceImpl) Inbox(ctx context.Context, userID string) ([]Letter, error) {
	candidates, err := s.Repo.ListPendingForApprover(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Letter, 0, len(candidates))
	for _, l := range candidates {
		for i := range l.Steps {
			step := &l.Steps[i]
			if step.ApproverUserID == userID && workflow.Actionable(l.Steps, step.StepID) {
				out = append(out, l)
				break
			}
		}
	}
	return out, nil
}

func (s *LetterServiceImpl) Outbox(ctx context.Context, senderID string) ([]Letter, error) {
	return s.Repo.ListBySender(ctx, senderID)
}

func (s *LetterServiceImpl) Candidates(ctx context.Context, letterID string, stepID int) ([]models.User, error) {
	l, err := s.Get(ctx, letterID)
	if err != nil {
		return nil, err
	}
	return workflow.ResolveStep(ctx, l.Steps, stepID, s.Directory)
}

func (s *LetterServiceImpl) Assign(ctx context.Context, letterID, actorID string, req *AssignApproverRequest) (*Letter, error) {
	l, err := s.draftOwnedBy(ctx, letterID, actorID)
	if err != nil {
		return nil, err
	}

	user, err := s.Directory.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := workflow.AssignApprover(l.Steps, req.StepID, user); err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateSteps(ctx, letterID, l.Steps, l.NextStepID); err != nil {
		return nil, err
	}
	return l, nil
}

// InsertStep adds an ad-hoc approver at the given position of the route. The
// new step takes the letter's next free id so ids never clash with steps that
// were removed earlier.
func (s *LetterServiceImpl) InsertStep(ctx context.Context, letterID, actorID string, req *InsertStepRequest) (*Letter, error) {
	l, err := s.draftOwnedBy(ctx, letterID, actorID)
	if err != nil {
		return nil, err
	}

	user, err := s.Directory.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	required := true
	if req.Required != nil {
		required = *req.Required
	}
	step := workflow.StepRuntime{
		Kind:     workflow.StepKindSequential,
		Required: required,
		Status:   models.ApprovalStatusPending,
	}
	step.Snapshot(user)

	steps, nextID, err := workflow.InsertStep(l.Steps, req.AtIndex, step, l.NextStepID)
	if err != nil {
		return nil, err
	}
	l.Steps = steps
	l.NextStepID = nextID
	if err := s.Repo.UpdateSteps(ctx, letterID, l.Steps, l.NextStepID); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *LetterServiceImpl) RemoveStep(ctx context.Context, letterID, actorID string, stepID int) (*Letter, error) {
	l, err := s.draftOwnedBy(ctx, letterID, actorID)
	if err != nil {
		return nil, err
	}

	steps, err := workflow.RemoveStep(l.Steps, stepID)
	if err != nil {
		return nil, err
	}
	l.Steps = steps
	if err := s.Repo.UpdateSteps(ctx, letterID, l.Steps, l.NextStepID); err != nil {
		return nil, err
	}
	return l, nil
}

// Submit freezes the route shape and opens the letter for approval. It fails
// wholesale while any step lacks a resolved approver.
func (s *LetterServiceImpl) Submit(ctx context.Context, letterID, actorID string) (*Letter, error) {
	l, err := s.draftOwnedBy(ctx, letterID, actorID)
	if err != nil {
		return nil, err
	}

	if err := workflow.ValidateSubmitResolution(ctx, l.Steps, s.Directory); err != nil {
		return nil, err
	}

	status := workflow.DeriveStatus(l.Steps)
	if err := s.Repo.MarkSubmitted(ctx, letterID, status); err != nil {
		return nil, err
	}
	l.Status = status
	now := time.Now()
	l.SubmittedAt = &now

	s.audit(ctx, models.AuditActionSubmit, l.ID.Hex(), nil)
	s.notifyActionable(ctx, l)
	return l, nil
}

// Decide applies an approve or reject to one step. The full invariant check
// runs in memory; persistence is conditional on the step still being pending
// in the stored document, which serializes racing decisions on the same step.
func (s *LetterServiceImpl) Decide(ctx context.Context, letterID, actorID string, req *DecideRequest) (*Letter, error) {
	l, err := s.Get(ctx, letterID)
	if err != nil {
		return nil, err
	}
	if !l.Submitted() {
		return nil, workflow.ErrNotActionable
	}

	step := workflow.FindStep(l.Steps, req.StepID)
	if step == nil {
		return nil, workflow.ErrStepNotFound
	}

	pos := s.position(l, req.StepID)
	placementOK := signature.CorrectlyPlaced(l.SignatureTargets, step, pos)

	if err := workflow.Decide(l.Steps, req.StepID, actorID, workflow.Decision(req.Decision), req.Remarks, placementOK); err != nil {
		return nil, err
	}

	status := workflow.DeriveStatus(l.Steps)
	matched, err := s.Repo.DecideUpdate(ctx, letterID, req.StepID, l.Steps, status)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, workflow.ErrAlreadyDecided
	}
	l.Status = status

	s.audit(ctx, models.AuditActionApproval, l.ID.Hex(), map[string]models.Change{
		"step": {Old: models.ApprovalStatusPending, New: step.Status},
	})

	switch status {
	case models.LetterStatusPending:
		s.notifyActionable(ctx, l)
	default:
		s.notifySender(ctx, l, step)
	}
	return l, nil
}

// PlaceSignature records where a step's signature sits on the page, snapping
// it to the nearest designated target when one is close enough. Positions are
// part of the draft: the sender arranges every slot before submission, and
// submission freezes them together with the route shape.
func (s *LetterServiceImpl) PlaceSignature(ctx context.Context, letterID, actorID string, req *PlaceSignatureRequest) (*models.SignaturePosition, error) {
	l, err := s.draftOwnedBy(ctx, letterID, actorID)
	if err != nil {
		return nil, err
	}

	step := workflow.FindStep(l.Steps, req.StepID)
	if step == nil {
		return nil, workflow.ErrStepNotFound
	}
	// On a draft the only terminal steps are the sender, who still signs, and
	// skipped conditionals, which never do.
	if step.Terminal() && step.StepID != workflow.SenderStepID {
		return nil, workflow.ErrNotActionable
	}

	pos, err := signature.Place(l.SignatureTargets, step, req.X, req.Y)
	if err != nil {
		return nil, err
	}

	key := strconv.Itoa(req.StepID)
	if err := s.Repo.SetSignaturePosition(ctx, letterID, key, pos); err != nil {
		return nil, err
	}
	return &pos, nil
}

func (s *LetterServiceImpl) Render(ctx context.Context, letterID string) ([]signature.RenderedSignature, error) {
	l, err := s.Get(ctx, letterID)
	if err != nil {
		return nil, err
	}
	positions := make([]models.SignaturePosition, 0, len(l.SignaturePositions))
	for _, pos := range l.SignaturePositions {
		positions = append(positions, pos)
	}
	return signature.Render(l.Steps, positions, l.SignatureTargets), nil
}

// draftOwnedBy loads a letter and checks that the actor is its sender and the
// route shape is still mutable.
func (s *LetterServiceImpl) draftOwnedBy(ctx context.Context, letterID, actorID string) (*Letter, error) {
	l, err := s.Get(ctx, letterID)
	if err != nil {
		return nil, err
	}
	if l.SenderID != actorID {
		return nil, workflow.ErrUnauthorized
	}
	if l.Submitted() {
		return nil, workflow.ErrShapeFrozen
	}
	return l, nil
}

func (s *LetterServiceImpl) position(l *Letter, stepID int) *models.SignaturePosition {
	if l.SignaturePositions == nil {
		return nil
	}
	if pos, ok := l.SignaturePositions[strconv.Itoa(stepID)]; ok {
		return &pos
	}
	return nil
}

// nextNumber issues a human-readable letter number scoped per type and year.
func (s *LetterServiceImpl) nextNumber(ctx context.Context, letterType string) (string, error) {
	prefix := fmt.Sprintf("%s/%d/", utils.Slugify(letterType), time.Now().Year())
	count, err := s.Repo.CountByNumberPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}

func (s *LetterServiceImpl) audit(ctx context.Context, action models.AuditAction, recordID string, changes map[string]models.Change) {
	if err := s.Audit.LogChange(ctx, action, "letter", recordID, changes); err != nil {
		s.Logger.Error("failed to write audit log",
			zap.String("record_id", recordID), zap.Error(err))
	}
}

// notifyActionable tells everyone who can act right now that the letter is
// waiting on them.
func (s *LetterServiceImpl) notifyActionable(ctx context.Context, l *Letter) {
	for _, step := range workflow.NextActionable(l.Steps) {
		if step.ApproverUserID == "" {
			continue
		}
		stepID := step.StepID
		n := &notification.Notification{
			Title:    "Approval required",
			Message:  fmt.Sprintf("Letter %s (%s) is waiting for your approval", l.Number, l.Title),
			Type:     notification.NotificationTypeActionRequired,
			LetterID: l.ID.Hex(),
			StepID:   &stepID,
		}
		if err := s.Notifier.Notify(ctx, step.ApproverUserID, n); err != nil {
			s.Logger.Error("failed to notify approver",
				zap.String("letter_id", l.ID.Hex()),
				zap.Int("step_id", stepID), zap.Error(err))
		}
	}
}

func (s *LetterServiceImpl) notifySender(ctx context.Context, l *Letter, step *workflow.StepRuntime) {
	verb := "approved"
	if l.Status == models.LetterStatusRejected {
		verb = "rejected"
	}
	n := &notification.Notification{
		Title:    fmt.Sprintf("Letter %s", verb),
		Message:  fmt.Sprintf("Letter %s (%s) was %s by %s", l.Number, l.Title, verb, step.Name),
		Type:     notification.NotificationTypeDecision,
		LetterID: l.ID.Hex(),
	}
	if err := s.Notifier.Notify(ctx, l.SenderID, n); err != nil {
		s.Logger.Error("failed to notify sender",
			zap.String("letter_id", l.ID.Hex()), zap.Error(err))
	}
}
