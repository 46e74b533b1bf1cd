package template

import (
	"context"
	"fmt"

	"go-letter/internal/features/workflow"

	"github.com/google/uuid"
)

type TemplateService interface {
	Create(ctx context.Context, tpl *LetterTemplate) error
	Update(ctx context.Context, id string, tpl *LetterTemplate) error
	GetByID(ctx context.Context, id string) (*LetterTemplate, error)
	GetByLetterType(ctx context.Context, letterType string) (*LetterTemplate, error)
	List(ctx context.Context) ([]LetterTemplate, error)
	Delete(ctx context.Context, id string) error
}

type TemplateServiceImpl struct {
	Repo TemplateRepository
}

func NewTemplateService(repo TemplateRepository) TemplateService {
	return &TemplateServiceImpl{Repo: repo}
}

func (s *TemplateServiceImpl) Create(ctx context.Context, tpl *LetterTemplate) error {
	if err := normalizeTemplate(tpl); err != nil {
		return err
	}
	return s.Repo.Create(ctx, tpl)
}

func (s *TemplateServiceImpl) Update(ctx context.Context, id string, tpl *LetterTemplate) error {
	if err := normalizeTemplate(tpl); err != nil {
		return err
	}
	return s.Repo.Update(ctx, id, tpl)
}

func (s *TemplateServiceImpl) GetByID(ctx context.Context, id string) (*LetterTemplate, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *TemplateServiceImpl) GetByLetterType(ctx context.Context, letterType string) (*LetterTemplate, error) {
	return s.Repo.GetByLetterType(ctx, letterType)
}

func (s *TemplateServiceImpl) List(ctx context.Context) ([]LetterTemplate, error) {
	return s.Repo.List(ctx)
}

func (s *TemplateServiceImpl) Delete(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}

// normalizeTemplate assigns ids to new steps and rejects shapes the
// instantiator cannot route.
func normalizeTemplate(tpl *LetterTemplate) error {
	if tpl.LetterType == "" {
		return fmt.Errorf("letter_type is required")
	}
	if err := normalizeSteps(tpl.Steps, false); err != nil {
		return err
	}
	seen := make(map[string]bool, len(tpl.SignatureTargets))
	for i := range tpl.SignatureTargets {
		t := &tpl.SignatureTargets[i]
		if t.Key == "" {
			return fmt.Errorf("signature target %d: key is required", i)
		}
		if seen[t.Key] {
			return fmt.Errorf("signature target key %q is duplicated", t.Key)
		}
		seen[t.Key] = true
		if t.X < 0 || t.X > 100 || t.Y < 0 || t.Y > 100 {
			return fmt.Errorf("signature target %q: coordinates must be percentages", t.Key)
		}
	}
	return nil
}

func normalizeSteps(steps []workflow.StepSpec, nested bool) error {
	for i := range steps {
		step := &steps[i]
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
		switch step.Kind {
		case workflow.StepKindSequential, workflow.StepKindConditional:
			if step.Approver.Type != workflow.ApproverByUser && step.Approver.Type != workflow.ApproverByPosition {
				return fmt.Errorf("step %q: approver type must be user or position", step.Name)
			}
			if step.Approver.Type == workflow.ApproverByUser && step.Approver.UserID == "" {
				return fmt.Errorf("step %q: user approver needs a user_id", step.Name)
			}
			if step.Approver.Type == workflow.ApproverByPosition && step.Approver.PositionID == "" {
				return fmt.Errorf("step %q: position approver needs a position_id", step.Name)
			}
			if step.Kind == workflow.StepKindConditional && step.Condition == nil {
				return fmt.Errorf("step %q: conditional step needs a condition", step.Name)
			}
		case workflow.StepKindParallel:
			if nested {
				return fmt.Errorf("step %q: parallel groups cannot nest", step.Name)
			}
			if len(step.Members) == 0 {
				return fmt.Errorf("step %q: parallel group needs members", step.Name)
			}
			if err := normalizeSteps(step.Members, true); err != nil {
				return err
			}
		default:
			return fmt.Errorf("step %q: unknown kind %q", step.Name, step.Kind)
		}
	}
	return nil
}
