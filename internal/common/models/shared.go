package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuditAction string

const (
	AuditActionCreate   AuditAction = "CREATE"
	AuditActionUpdate   AuditAction = "UPDATE"
	AuditActionDelete   AuditAction = "DELETE"
	AuditActionLogin    AuditAction = "LOGIN"
	AuditActionSubmit   AuditAction = "SUBMIT"
	AuditActionApproval AuditAction = "APPROVAL"
	AuditActionTemplate AuditAction = "TEMPLATE"
)

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action    AuditAction        `bson:"action" json:"action"`
	Module    string             `bson:"module" json:"module"`
	RecordID  string             `bson:"record_id" json:"record_id"`
	ActorID   string             `bson:"actor_id" json:"actor_id"`
	ActorName string             `bson:"-" json:"actor_name,omitempty"`
	Changes   map[string]Change  `bson:"changes,omitempty" json:"changes,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// Position is an organizational post (jabatan). A position may have zero or
// more active occupants at any time; the hierarchy is expressed through
// ParentID, which points at the superior position.
type Position struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name      string              `bson:"name" json:"name"`
	Unit      string              `bson:"unit" json:"unit"`
	ParentID  *primitive.ObjectID `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time           `bson:"updated_at" json:"updated_at"`
}

type User struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Username          string              `bson:"username" json:"username"`
	Password          string              `bson:"password" json:"-"`
	Email             string              `bson:"email" json:"email"`
	FullName          string              `bson:"full_name" json:"full_name"`
	Rank              string              `bson:"rank,omitempty" json:"rank,omitempty"`
	EmployeeNo        string              `bson:"employee_no,omitempty" json:"employee_no,omitempty"`
	Unit              string              `bson:"unit,omitempty" json:"unit,omitempty"`
	PositionID        *primitive.ObjectID `bson:"position_id,omitempty" json:"position_id,omitempty"`
	PositionTitle     string              `bson:"position_title,omitempty" json:"position_title,omitempty"`
	SignatureImageRef string              `bson:"signature_image_ref,omitempty" json:"signature_image_ref,omitempty"`
	Status            string              `bson:"status" json:"status"` // active, inactive
	IsAdmin           bool                `bson:"is_admin" json:"is_admin"`
	LastLogin         *time.Time          `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt         time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time           `bson:"updated_at" json:"updated_at"`
}

type Log struct {
	Message      string    `bson:"message" json:"message"`
	Caller       string    `bson:"caller" json:"caller"`
	LogLevelId   int       `bson:"log_level_id" json:"log_level_id"`
	CreatedOnUtc time.Time `bson:"created_on_utc" json:"created_on_utc"`
}

// Rule Models
type RuleCondition struct {
	Field    string      `json:"field" bson:"field"`
	Operator string      `json:"operator" bson:"operator"` // eq, ne, gt, lt, gte, lte, in, contains
	Value    interface{} `json:"value" bson:"value"`
}

// Approval Models
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	// ApprovalStatusSkipped marks a conditional step whose condition evaluated
	// false at instantiation. Skipped steps require no action and count as
	// satisfied when deriving the letter status.
	ApprovalStatusSkipped ApprovalStatus = "skipped"
)

type LetterStatus string

const (
	LetterStatusDraft    LetterStatus = "draft"
	LetterStatusPending  LetterStatus = "pending"
	LetterStatusApproved LetterStatus = "approved"
	LetterStatusRejected LetterStatus = "rejected"
)

// SignaturePosition anchors one workflow step's signature to a point on the
// rendered letter. Coordinates are percentages of the canvas size so they
// survive zoom and resolution changes.
type SignaturePosition struct {
	StepID        int     `bson:"step_id" json:"step_id"`
	X             float64 `bson:"x" json:"x"` // percent, 0..100
	Y             float64 `bson:"y" json:"y"` // percent, 0..100
	Name          string  `bson:"name" json:"name"`
	PositionLabel string  `bson:"position_label" json:"position_label"`
	Unit          string  `bson:"unit,omitempty" json:"unit,omitempty"`
}

// SignatureTarget is a predefined slot on a letter template. Dropped
// signatures snap to the nearest target; StepOrder designates which workflow
// order slot the target belongs to. Placeholder targets render a dashed
// pending marker until a matching signature arrives.
type SignatureTarget struct {
	Key         string  `bson:"key" json:"key"`
	Label       string  `bson:"label,omitempty" json:"label,omitempty"`
	X           float64 `bson:"x" json:"x"`
	Y           float64 `bson:"y" json:"y"`
	StepOrder   int     `bson:"step_order" json:"step_order"`
	Placeholder bool    `bson:"placeholder" json:"placeholder"`
}
