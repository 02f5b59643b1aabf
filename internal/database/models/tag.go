package models

import "github.com/google/uuid"

// Tag names are unique per user, not globally.
type Tag struct {
	Base
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_tags_user_name" json:"user_id"`
	CompanyID *uuid.UUID `gorm:"type:uuid;index" json:"company_id,omitempty"`
	Name      string     `gorm:"size:100;not null;uniqueIndex:idx_tags_user_name" json:"name"`
	Color     string     `gorm:"size:32" json:"color"`
}

func (Tag) TableName() string {
	return "tags"
}

func (t Tag) ScopeOwnerID() uuid.UUID     { return t.UserID }
func (t Tag) ScopeCompanyID() *uuid.UUID { return t.CompanyID }
