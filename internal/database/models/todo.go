package models

import (
	"time"

	"github.com/google/uuid"
)

type TodoPriority string

const (
	PriorityLow    TodoPriority = "low"
	PriorityMedium TodoPriority = "medium"
	PriorityHigh   TodoPriority = "high"
)

func (p TodoPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type TodoItem struct {
	Base
	BookmarkID uuid.UUID    `gorm:"type:uuid;index;not null" json:"bookmark_id"`
	TaskListID *uuid.UUID   `gorm:"type:uuid;index" json:"task_list_id,omitempty"`
	Title      string       `gorm:"size:500;not null" json:"title"`
	Completed  bool         `json:"completed"`
	Priority   TodoPriority `gorm:"size:16;not null;default:'medium'" json:"priority"`
	DueDate    *time.Time   `json:"due_date,omitempty"`
	Position   int          `gorm:"not null;default:0" json:"position"`

	Bookmark *Bookmark `gorm:"foreignKey:BookmarkID;constraint:OnDelete:CASCADE" json:"-"`
}

func (TodoItem) TableName() string {
	return "todo_items"
}

// TaskList groups todo items on a bookmark.
type TaskList struct {
	Base
	BookmarkID  uuid.UUID `gorm:"type:uuid;index;not null" json:"bookmark_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `json:"description"`

	Items    []TodoItem `gorm:"foreignKey:TaskListID" json:"-"`
	Bookmark *Bookmark  `gorm:"foreignKey:BookmarkID;constraint:OnDelete:CASCADE" json:"-"`
}

func (TaskList) TableName() string {
	return "task_lists"
}
