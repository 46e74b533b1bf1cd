package notification

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type NotificationService interface {
	Notify(ctx context.Context, userID string, n *Notification) error
	GetUserNotifications(ctx context.Context, userID primitive.ObjectID, page, limit int64) ([]Notification, int64, error)
	GetUnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkAsRead(ctx context.Context, id string, userID primitive.ObjectID) error
	MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) error
}

type NotificationServiceImpl struct {
	repo   NotificationRepository
	hub    *Hub
	logger *zap.Logger
}

func NewNotificationService(repo NotificationRepository, hub *Hub, logger *zap.Logger) NotificationService {
	return &NotificationServiceImpl{
		repo:   repo,
		hub:    hub,
		logger: logger,
	}
}

// Notify persists the notification and pushes it to the user's live sessions.
// A persistence failure is returned; a push failure is not, the inbox is the
// source of truth.
func (s *NotificationServiceImpl) Notify(ctx context.Context, userID string, n *Notification) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		s.logger.Warn("notification for malformed user id dropped", zap.String("user_id", userID))
		return err
	}
	n.UserID = oid
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	s.hub.Push(userID, n)
	return nil
}

func (s *NotificationServiceImpl) GetUserNotifications(ctx context.Context, userID primitive.ObjectID, page, limit int64) ([]Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return s.repo.GetByUserID(ctx, userID, page, limit)
}

func (s *NotificationServiceImpl) GetUnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

func (s *NotificationServiceImpl) MarkAsRead(ctx context.Context, id string, userID primitive.ObjectID) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	return s.repo.MarkAsRead(ctx, oid, userID)
}

func (s *NotificationServiceImpl) MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}
