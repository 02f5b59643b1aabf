package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Highlight struct {
	Base
	BookmarkID uuid.UUID `gorm:"type:uuid;index;not null" json:"bookmark_id"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	Note       string    `gorm:"type:text" json:"note"`
	Color      string    `gorm:"size:32" json:"color"`

	// Client-defined anchor (selector, offsets) for re-rendering the highlight
	Position datatypes.JSON `json:"position,omitempty"`

	Bookmark *Bookmark `gorm:"foreignKey:BookmarkID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Highlight) TableName() string {
	return "highlights"
}

// Comment.AuthorID records who wrote it (the owner or a share recipient);
// it plays no part in authorization.
type Comment struct {
	Base
	BookmarkID uuid.UUID `gorm:"type:uuid;index;not null" json:"bookmark_id"`
	AuthorID   uuid.UUID `gorm:"type:uuid;index;not null" json:"author_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`

	Bookmark *Bookmark `gorm:"foreignKey:BookmarkID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Comment) TableName() string {
	return "comments"
}

type CodeSnippet struct {
	Base
	BookmarkID  uuid.UUID `gorm:"type:uuid;index;not null" json:"bookmark_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Language    string    `gorm:"size:50" json:"language"`
	Code        string    `gorm:"type:text;not null" json:"code"`
	Description string    `json:"description"`

	Bookmark *Bookmark `gorm:"foreignKey:BookmarkID;constraint:OnDelete:CASCADE" json:"-"`
}

func (CodeSnippet) TableName() string {
	return "code_snippets"
}
