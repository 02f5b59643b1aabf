package models

import "github.com/google/uuid"

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaFile  MediaKind = "file"
	MediaLink  MediaKind = "link"
)

func (k MediaKind) Valid() bool {
	switch k {
	case MediaImage, MediaVideo, MediaAudio, MediaFile, MediaLink:
		return true
	}
	return false
}

// Media is either an external link or an object uploaded to the blob store,
// in which case StorageKey is set.
type Media struct {
	Base
	BookmarkID  uuid.UUID `gorm:"type:uuid;index;not null" json:"bookmark_id"`
	Kind        MediaKind `gorm:"size:16;not null" json:"kind"`
	Title       string    `json:"title"`
	URL         string    `gorm:"not null" json:"url"`
	StorageKey  string    `json:"-"`
	ContentType string    `gorm:"size:255" json:"content_type"`
	Size        int64     `json:"size"`

	Bookmark *Bookmark `gorm:"foreignKey:BookmarkID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Media) TableName() string {
	return "media"
}
