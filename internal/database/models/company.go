package models

import "github.com/google/uuid"

// Company is an optional workspace. Each one has exactly one owner.
type Company struct {
	Base
	OwnerID     uuid.UUID `gorm:"type:uuid;index;not null" json:"owner_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `json:"description"`

	Owner *User `gorm:"foreignKey:OwnerID" json:"-"`
}

func (Company) TableName() string {
	return "companies"
}

func (c Company) ScopeOwnerID() uuid.UUID { return c.OwnerID }

// A company is never itself inside a company.
func (c Company) ScopeCompanyID() *uuid.UUID { return nil }
