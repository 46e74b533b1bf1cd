package notification

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationTypeActionRequired NotificationType = "action_required"
	NotificationTypeDecision       NotificationType = "decision"
	NotificationTypeReminder       NotificationType = "reminder"
	NotificationTypeInfo           NotificationType = "info"
)

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title     string             `bson:"title" json:"title"`
	Message   string             `bson:"message" json:"message"`
	Type      NotificationType   `bson:"type" json:"type"`
	LetterID  string             `bson:"letter_id,omitempty" json:"letter_id,omitempty"`
	StepID    *int               `bson:"step_id,omitempty" json:"step_id,omitempty"`
	IsRead    bool               `bson:"is_read" json:"is_read"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	ReadAt    *time.Time         `bson:"read_at,omitempty" json:"read_at,omitempty"`
}
