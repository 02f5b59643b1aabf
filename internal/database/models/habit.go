package models

import "github.com/google/uuid"

type HabitFrequency string

const (
	FrequencyDaily  HabitFrequency = "daily"
	FrequencyWeekly HabitFrequency = "weekly"
)

// Habit is deactivated rather than deleted so its check-ins survive.
type Habit struct {
	Base
	BookmarkID  uuid.UUID      `gorm:"type:uuid;index;not null" json:"bookmark_id"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	Description string         `json:"description"`
	Frequency   HabitFrequency `gorm:"size:16;not null" json:"frequency"`
	TargetCount int            `gorm:"not null" json:"target_count"`
	IsActive    bool           `gorm:"index" json:"is_active"`

	CheckIns []HabitCheckIn `gorm:"foreignKey:HabitID" json:"-"`
	Bookmark *Bookmark      `gorm:"foreignKey:BookmarkID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Habit) TableName() string {
	return "habits"
}

// CheckInDateLayout is the calendar-day key of a check-in (UTC).
const CheckInDateLayout = "2006-01-02"

// HabitCheckIn is unique per (habit, day).
type HabitCheckIn struct {
	Base
	HabitID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_habit_checkins_day" json:"habit_id"`
	Date      string    `gorm:"size:10;not null;uniqueIndex:idx_habit_checkins_day" json:"date"`
	Completed bool      `json:"completed"`
	Count     int       `gorm:"not null" json:"count"`
	Note      string    `json:"note"`

	Habit *Habit `gorm:"foreignKey:HabitID;constraint:OnDelete:CASCADE" json:"-"`
}

func (HabitCheckIn) TableName() string {
	return "habit_check_ins"
}
