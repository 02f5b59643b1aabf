package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationChannel string

const (
	ChannelInApp   NotificationChannel = "in_app"
	ChannelEmail   NotificationChannel = "email"
	ChannelWebhook NotificationChannel = "webhook"
)

func (c NotificationChannel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelWebhook:
		return true
	}
	return false
}

// NotificationSchedule is a persisted reminder. Nothing in this service
// delivers it; an external runner reads NextRunAt.
type NotificationSchedule struct {
	Base
	UserID      uuid.UUID           `gorm:"type:uuid;index;not null" json:"user_id"`
	BookmarkID  *uuid.UUID          `gorm:"type:uuid;index" json:"bookmark_id,omitempty"`
	Title       string              `gorm:"size:255;not null" json:"title"`
	Message     string              `gorm:"type:text" json:"message"`
	ScheduledAt time.Time           `gorm:"not null" json:"scheduled_at"`
	Recurrence  string              `gorm:"size:100" json:"recurrence"` // empty = one-shot, else cron
	Channel     NotificationChannel `gorm:"size:16;not null" json:"channel"`
	IsEnabled   bool                `gorm:"index" json:"is_enabled"`

	// Webhook URL or email address, sealed with age
	EncryptedTarget []byte `json:"-"`

	NextRunAt       *time.Time `gorm:"index" json:"next_run_at,omitempty"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`

	Bookmark *Bookmark `gorm:"foreignKey:BookmarkID;constraint:OnDelete:SET NULL" json:"-"`
}

func (NotificationSchedule) TableName() string {
	return "notification_schedules"
}

type NotificationStatus string

const (
	NotificationTriggered NotificationStatus = "triggered"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationFailed    NotificationStatus = "failed"
)

// NotificationHistory is append-only.
type NotificationHistory struct {
	Base
	ScheduleID uuid.UUID          `gorm:"type:uuid;index;not null" json:"schedule_id"`
	UserID     uuid.UUID          `gorm:"type:uuid;index;not null" json:"user_id"`
	Status     NotificationStatus `gorm:"size:16;not null" json:"status"`
	Title      string             `gorm:"size:255" json:"title"`
	Message    string             `gorm:"type:text" json:"message"`
	FiredAt    time.Time          `gorm:"index;not null" json:"fired_at"`
}

func (NotificationHistory) TableName() string {
	return "notification_history"
}
