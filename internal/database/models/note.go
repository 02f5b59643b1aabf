package models

import "github.com/google/uuid"

// QuickNote and the other tool records below carry no user field; they are
// owned through their bookmark.
type QuickNote struct {
	Base
	BookmarkID uuid.UUID `gorm:"type:uuid;index;not null" json:"bookmark_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Color      string    `gorm:"size:32" json:"color"`
	IsPinned   bool      `json:"is_pinned"`

	Bookmark *Bookmark `gorm:"foreignKey:BookmarkID;constraint:OnDelete:CASCADE" json:"-"`
}

func (QuickNote) TableName() string {
	return "quick_notes"
}
