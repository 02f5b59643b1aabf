package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Bookmark struct {
	Base
	UserID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	CompanyID   *uuid.UUID `gorm:"type:uuid;index" json:"company_id,omitempty"`
	FolderID    *uuid.UUID `gorm:"type:uuid;index" json:"folder_id,omitempty"`
	URL         string     `gorm:"not null" json:"url"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Favicon     string     `json:"favicon"`
	Image       string     `json:"image"`
	SiteName    string     `json:"site_name"`

	// Raw page metadata (open graph, twitter card) captured by the fetcher
	Metadata          datatypes.JSON `json:"metadata,omitempty"`
	MetadataFetchedAt *time.Time     `json:"metadata_fetched_at,omitempty"`

	// Engagement counters. TimeSpent is in seconds and only ever grows.
	VisitCount    int64      `gorm:"not null;default:0" json:"visit_count"`
	TimeSpent     int64      `gorm:"not null;default:0" json:"time_spent"`
	LastVisitedAt *time.Time `json:"last_visited_at,omitempty"`

	IsFavorite bool `gorm:"index" json:"is_favorite"`
	IsArchived bool `gorm:"index" json:"is_archived"`

	// Relationships
	Tags       []Tag           `gorm:"many2many:bookmark_tags;constraint:OnDelete:CASCADE" json:"-"`
	Categories []Category      `gorm:"many2many:bookmark_categories;constraint:OnDelete:CASCADE" json:"-"`
	Folder     *CategoryFolder `gorm:"foreignKey:FolderID" json:"-"`
}

func (Bookmark) TableName() string {
	return "bookmarks"
}

// ScopeOwnerID and ScopeCompanyID let the scope guard check ownership.
func (b Bookmark) ScopeOwnerID() uuid.UUID     { return b.UserID }
func (b Bookmark) ScopeCompanyID() *uuid.UUID { return b.CompanyID }
