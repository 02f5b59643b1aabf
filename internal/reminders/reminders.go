// Package reminders records when notification schedules fire. Delivery to
// the schedule's channel belongs to an outside runner reading the history.
package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/pkg/util"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger, now: time.Now}
}

// WithClock replaces the time source. Tests use it to pin "now".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// NextRun is when a schedule is next due, or nil when it never will be again.
func NextRun(schedule *models.NotificationSchedule, now time.Time) (*time.Time, error) {
	if !schedule.IsEnabled {
		return nil, nil
	}
	if schedule.LastTriggeredAt != nil && schedule.Recurrence == "" {
		return nil, nil
	}
	next, err := util.NextReminderTime(schedule.ScheduledAt, schedule.Recurrence, now)
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// Fire appends a history row and advances the schedule in one transaction.
func (s *Service) Fire(ctx context.Context, schedule *models.NotificationSchedule) (*models.NotificationHistory, error) {
	now := s.now().UTC()

	entry := models.NotificationHistory{
		ScheduleID: schedule.ID,
		UserID:     schedule.UserID,
		Status:     models.NotificationTriggered,
		Title:      schedule.Title,
		Message:    schedule.Message,
		FiredAt:    now,
	}

	var next *time.Time
	if schedule.Recurrence != "" {
		t, err := util.NextCronTime(schedule.Recurrence, now)
		if err != nil {
			return nil, err
		}
		next = &t
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("recording history: %w", err)
		}
		return tx.Model(schedule).Updates(map[string]interface{}{
			"last_triggered_at": now,
			"next_run_at":       next,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	schedule.LastTriggeredAt = &now
	schedule.NextRunAt = next
	return &entry, nil
}

// FireDue fires every enabled schedule whose next run has passed, oldest
// first, up to limit. It returns how many fired.
func (s *Service) FireDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	var due []models.NotificationSchedule
	if err := s.db.WithContext(ctx).
		Where("is_enabled = ? AND next_run_at IS NOT NULL AND next_run_at <= ?", true, s.now().UTC()).
		Order("next_run_at ASC").
		Limit(limit).
		Find(&due).Error; err != nil {
		return 0, fmt.Errorf("listing due schedules: %w", err)
	}

	fired := 0
	for i := range due {
		if _, err := s.Fire(ctx, &due[i]); err != nil {
			s.logger.Error("failed to fire reminder",
				"schedule_id", due[i].ID,
				"error", err,
			)
			continue
		}
		fired++
	}

	if fired > 0 {
		s.logger.Info("reminders fired", "count", fired)
	}
	return fired, nil
}
