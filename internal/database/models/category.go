package models

import "github.com/google/uuid"

type Category struct {
	Base
	UserID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	CompanyID   *uuid.UUID `gorm:"type:uuid;index" json:"company_id,omitempty"`
	FolderID    *uuid.UUID `gorm:"type:uuid;index" json:"folder_id,omitempty"`
	Name        string     `gorm:"size:255;not null" json:"name"`
	Description string     `json:"description"`
	Color       string     `gorm:"size:32" json:"color"`
	Icon        string     `gorm:"size:64" json:"icon"`

	Folder *CategoryFolder `gorm:"foreignKey:FolderID" json:"-"`
}

func (Category) TableName() string {
	return "categories"
}

func (c Category) ScopeOwnerID() uuid.UUID     { return c.UserID }
func (c Category) ScopeCompanyID() *uuid.UUID { return c.CompanyID }

// CategoryFolder groups categories (and optionally bookmarks) in the sidebar.
type CategoryFolder struct {
	Base
	UserID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	CompanyID *uuid.UUID `gorm:"type:uuid;index" json:"company_id,omitempty"`
	Name      string     `gorm:"size:255;not null" json:"name"`
	Color     string     `gorm:"size:32" json:"color"`
	Position  int        `gorm:"not null;default:0" json:"position"`

	Categories []Category `gorm:"foreignKey:FolderID" json:"-"`
}

func (CategoryFolder) TableName() string {
	return "category_folders"
}

func (f CategoryFolder) ScopeOwnerID() uuid.UUID     { return f.UserID }
func (f CategoryFolder) ScopeCompanyID() *uuid.UUID { return f.CompanyID }
