package models

import (
	"time"

	"github.com/google/uuid"
)

type SharePermission string

const (
	PermissionRead    SharePermission = "read"
	PermissionComment SharePermission = "comment"
	PermissionEdit    SharePermission = "edit"
)

// BookmarkShare grants a recipient bounded access to someone else's bookmark.
type BookmarkShare struct {
	Base
	BookmarkID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_shares_bookmark_recipient" json:"bookmark_id"`
	OwnerID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"owner_id"`
	RecipientID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_shares_bookmark_recipient;index" json:"recipient_id"`
	Permission  SharePermission `gorm:"size:16;not null" json:"permission"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`

	Bookmark  *Bookmark `gorm:"foreignKey:BookmarkID;constraint:OnDelete:CASCADE" json:"-"`
	Owner     *User     `gorm:"foreignKey:OwnerID" json:"-"`
	Recipient *User     `gorm:"foreignKey:RecipientID" json:"-"`
}

func (BookmarkShare) TableName() string {
	return "bookmark_shares"
}
