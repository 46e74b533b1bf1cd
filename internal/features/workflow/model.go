package workflow

import (
	"context"
	"time"

	"go-letter/internal/common/models"
)

// StepKind defines the shape of a workflow step
type StepKind string

const (
	StepKindSequential  StepKind = "sequential"
	StepKindParallel    StepKind = "parallel"
	StepKindConditional StepKind = "conditional"
)

// ApproverType discriminates the ApproverSpec union
type ApproverType string

const (
	ApproverByUser     ApproverType = "user"
	ApproverByPosition ApproverType = "position"
)

// ApproverSpec names who must approve a step: either a concrete user or
// whoever occupies a position at letter-creation time. Exactly one of UserID
// and PositionID is set, matching Type.
type ApproverSpec struct {
	Type       ApproverType `bson:"type" json:"type"`
	UserID     string       `bson:"user_id,omitempty" json:"user_id,omitempty"`
	PositionID string       `bson:"position_id,omitempty" json:"position_id,omitempty"`
}

// StepSpec is the definition-time shape of a step, owned by a letter-type
// template. Parallel steps carry their sibling members and no approver of
// their own; conditional steps carry the condition evaluated against the
// letter's attributes at instantiation.
type StepSpec struct {
	ID        string                `bson:"id" json:"id"` // uuid assigned by the template store
	Name      string                `bson:"name" json:"name"`
	Order     int                   `bson:"order" json:"order"`
	Kind      StepKind              `bson:"kind" json:"kind"`
	Approver  ApproverSpec          `bson:"approver,omitempty" json:"approver,omitempty"`
	Required  bool                  `bson:"required" json:"required"`
	Condition *models.RuleCondition `bson:"condition,omitempty" json:"condition,omitempty"`
	Members   []StepSpec            `bson:"members,omitempty" json:"members,omitempty"`
}

// StepRuntime is one approval step of a concrete letter. The approver's
// display attributes are snapshotted at resolution time so organizational
// changes do not retroactively alter a letter already in flight. Parallel
// group members share an Order value; sequential steps own theirs.
type StepRuntime struct {
	StepID   int      `bson:"step_id" json:"step_id"`
	Order    int      `bson:"order" json:"order"`
	Kind     StepKind `bson:"kind" json:"kind"`
	Required bool     `bson:"required" json:"required"`

	// Approver resolution target and snapshot
	PositionID        string `bson:"position_id,omitempty" json:"position_id,omitempty"`
	PositionLabel     string `bson:"position_label" json:"position_label"`
	ApproverUserID    string `bson:"approver_user_id,omitempty" json:"approver_user_id,omitempty"`
	Name              string `bson:"name,omitempty" json:"name,omitempty"`
	Rank              string `bson:"rank,omitempty" json:"rank,omitempty"`
	Unit              string `bson:"unit,omitempty" json:"unit,omitempty"`
	SignatureImageRef string `bson:"signature_image_ref,omitempty" json:"signature_image_ref,omitempty"`

	Status    models.ApprovalStatus `bson:"status" json:"status"`
	Remarks   string                `bson:"remarks,omitempty" json:"remarks,omitempty"`
	DecidedAt *time.Time            `bson:"decided_at,omitempty" json:"decided_at,omitempty"`
}

// Resolved reports whether the step has a concrete approver. Skipped steps
// never block submission.
func (s *StepRuntime) Resolved() bool {
	return s.Status == models.ApprovalStatusSkipped || s.ApproverUserID != ""
}

// Terminal reports whether the step can no longer change status.
func (s *StepRuntime) Terminal() bool {
	return s.Status == models.ApprovalStatusApproved || s.Status == models.ApprovalStatusRejected
}

// Reference points the hierarchy climb at a user or a position. Exactly one
// field is set. It is threaded explicitly so the resolver never depends on
// ambient UI state.
type Reference struct {
	UserID     string `json:"user_id,omitempty"`
	PositionID string `json:"position_id,omitempty"`
}

// Directory is the organization-directory collaborator consumed by the
// instantiator and resolver. Implemented by the directory feature.
type Directory interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	// ResolvePosition returns all active occupants of a position. Zero
	// occupants is a valid result, not an error.
	ResolvePosition(ctx context.Context, positionID string) ([]models.User, error)
	// GetSuperior returns the organizational superior position of the
	// reference and its occupants. Returns ErrResolutionEmpty when the
	// reference has no superior.
	GetSuperior(ctx context.Context, ref Reference) (*models.Position, []models.User, error)
}

// Snapshot copies a user's display attributes onto the step and resolves it.
func (s *StepRuntime) Snapshot(u *models.User) {
	s.ApproverUserID = u.ID.Hex()
	s.Name = u.FullName
	s.Rank = u.Rank
	if u.Unit != "" {
		s.Unit = u.Unit
	}
	if s.PositionLabel == "" {
		s.PositionLabel = u.PositionTitle
	}
	s.SignatureImageRef = u.SignatureImageRef
}
