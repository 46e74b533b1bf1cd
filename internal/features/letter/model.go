package letter

import (
	"time"

	"go-letter/internal/common/models"
	"go-letter/internal/features/workflow"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Letter is one routed document. Steps carry the full approval state; the
// letter-level Status is always derived from them, never set independently.
// SignaturePositions is keyed by the decimal step id so partial updates can
// address a single entry.
type Letter struct {
	ID         primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Number     string                 `bson:"number" json:"number"`
	TemplateID primitive.ObjectID     `bson:"template_id,omitempty" json:"template_id,omitempty"`
	LetterType string                 `bson:"letter_type" json:"letter_type"`
	Title      string                 `bson:"title" json:"title"`
	Body       string                 `bson:"body,omitempty" json:"body,omitempty"`
	Attributes map[string]interface{} `bson:"attributes,omitempty" json:"attributes,omitempty"`

	SenderID   string `bson:"sender_id" json:"sender_id"`
	SenderName string `bson:"sender_name" json:"sender_name"`

	Steps      []workflow.StepRuntime `bson:"steps" json:"steps"`
	NextStepID int                    `bson:"next_step_id" json:"next_step_id"`

	SignaturePositions map[string]models.SignaturePosition `bson:"signature_positions,omitempty" json:"signature_positions,omitempty"`
	SignatureTargets   []models.SignatureTarget            `bson:"signature_targets,omitempty" json:"signature_targets,omitempty"`

	Status      models.LetterStatus `bson:"status" json:"status"`
	SubmittedAt *time.Time          `bson:"submitted_at,omitempty" json:"submitted_at,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at" json:"updated_at"`
}

// Submitted reports whether the letter has left the draft stage. The step
// list's shape is frozen from that point on.
func (l *Letter) Submitted() bool {
	return l.Status != models.LetterStatusDraft
}

type CreateLetterRequest struct {
	TemplateID string                 `json:"template_id"`
	Title      string                 `json:"title"`
	Body       string                 `json:"body"`
	Attributes map[string]interface{} `json:"attributes"`
}

type AssignApproverRequest struct {
	StepID int    `json:"step_id"`
	UserID string `json:"user_id"`
}

type InsertStepRequest struct {
	AtIndex  int    `json:"at_index"`
	UserID   string `json:"user_id"`
	Required *bool  `json:"required,omitempty"`
}

type DecideRequest struct {
	StepID   int    `json:"step_id"`
	Decision string `json:"decision"` // approve or reject
	Remarks  string `json:"remarks"`
}

type PlaceSignatureRequest struct {
	StepID int     `json:"step_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}
