// Package scope decides which rows a request may see or change.
//
// A Scope is resolved once per request from the authenticated principal and
// an optional active-company hint, then passed explicitly to every query and
// authorization check. Nothing here reads cookies or globals.
package scope

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Principal is what the session layer hands us: a user id and, for sessions
// minted before ids were embedded, the email to look the user up by.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

// Scope is the resolved (user, optional company) pair for one request.
// A nil CompanyID means unscoped: the company filter is omitted.
type Scope struct {
	UserID    uuid.UUID
	CompanyID *uuid.UUID
}

func (s Scope) Authenticated() bool {
	return s.UserID != uuid.Nil
}

func (s Scope) HasCompany() bool {
	return s.CompanyID != nil && *s.CompanyID != uuid.Nil
}

// CompanyForNew is the company a newly created row is filed under.
func (s Scope) CompanyForNew() *uuid.UUID {
	if !s.HasCompany() {
		return nil
	}
	id := *s.CompanyID
	return &id
}

// Owned restricts a query to rows owned by the principal. With an active
// company, rows of that company and legacy rows without one are included.
// table qualifies the columns when the query joins other tables.
func (s Scope) Owned(table string) func(*gorm.DB) *gorm.DB {
	prefix := ""
	if table != "" {
		prefix = table + "."
	}
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where(prefix+"user_id = ?", s.UserID)
		if s.HasCompany() {
			db = db.Where("("+prefix+"company_id = ? OR "+prefix+"company_id IS NULL)", *s.CompanyID)
		}
		return db
	}
}
