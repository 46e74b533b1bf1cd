package reminder

import (
	"context"
	"fmt"
	"time"

	"go-letter/internal/config"
	"go-letter/internal/features/letter"
	"go-letter/internal/features/notification"
	"go-letter/internal/features/workflow"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ReminderService periodically re-notifies approvers sitting on actionable
// steps of letters that have been pending longer than the configured window.
type ReminderService struct {
	letterRepo letter.LetterRepository
	notifier   notification.NotificationService
	config     *config.Config
	logger     *zap.Logger

	scheduler *cron.Cron
}

func NewReminderService(
	lc fx.Lifecycle,
	letterRepo letter.LetterRepository,
	notifier notification.NotificationService,
	cfg *config.Config,
	logger *zap.Logger,
) *ReminderService {
	s := &ReminderService{
		letterRepo: letterRepo,
		notifier:   notifier,
		config:     cfg,
		logger:     logger,
		scheduler:  cron.New(),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return s.start()
		},
		OnStop: func(context.Context) error {
			s.scheduler.Stop()
			return nil
		},
	})

	return s
}

func (s *ReminderService) start() error {
	if s.config.ReminderSpec == "" {
		s.logger.Info("reminder scheduler disabled")
		return nil
	}
	_, err := s.scheduler.AddFunc(s.config.ReminderSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", s.config.ReminderSpec, err)
	}
	s.scheduler.Start()
	s.logger.Info("reminder scheduler started",
		zap.String("spec", s.config.ReminderSpec),
		zap.Int("after_hours", s.config.ReminderAfterHours))
	return nil
}

// Sweep finds stale pending letters and nudges whoever can act on them.
func (s *ReminderService) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(s.config.ReminderAfterHours) * time.Hour)
	letters, err := s.letterRepo.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("reminder sweep failed", zap.Error(err))
		return
	}

	reminded := 0
	for i := range letters {
		l := &letters[i]
		for _, step := range workflow.NextActionable(l.Steps) {
			if step.ApproverUserID == "" {
				continue
			}
			stepID := step.StepID
			n := &notification.Notification{
				Title:    "Approval reminder",
				Message:  fmt.Sprintf("Letter %s (%s) has been waiting for your approval since %s", l.Number, l.Title, l.SubmittedAt.Format("2006-01-02")),
				Type:     notification.NotificationTypeReminder,
				LetterID: l.ID.Hex(),
				StepID:   &stepID,
			}
			if err := s.notifier.Notify(ctx, step.ApproverUserID, n); err != nil {
				s.logger.Error("failed to send reminder",
					zap.String("letter_id", l.ID.Hex()),
					zap.Int("step_id", stepID), zap.Error(err))
				continue
			}
			reminded++
		}
	}

	if reminded > 0 {
		s.logger.Info("reminder sweep completed",
			zap.Int("letters", len(letters)), zap.Int("reminders", reminded))
	}
}
