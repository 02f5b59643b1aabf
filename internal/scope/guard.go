package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/database/models"
	"gorm.io/gorm"
)

type Reason int

const (
	ReasonNone Reason = iota
	// ReasonNotFound also covers "exists but belongs to someone else".
	ReasonNotFound
	ReasonForbidden
)

type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(r Reason) Decision {
	return Decision{Reason: r}
}

// Err converts a denial into the error the HTTP layer reports.
func (d Decision) Err(resource string) error {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == ReasonForbidden:
		return apperr.Forbidden("Insufficient permission for this " + resource)
	default:
		return apperr.NotFound(resource)
	}
}

// Owned is implemented by directly owned entities.
type Owned interface {
	ScopeOwnerID() uuid.UUID
	ScopeCompanyID() *uuid.UUID
}

// AuthorizeOwned allows iff the entity belongs to the principal and, when both
// the scope and the entity name a company, the companies match.
func AuthorizeOwned(s Scope, e Owned) Decision {
	if !s.Authenticated() || e.ScopeOwnerID() != s.UserID {
		return deny(ReasonNotFound)
	}
	if s.HasCompany() {
		if c := e.ScopeCompanyID(); c != nil && *c != *s.CompanyID {
			return deny(ReasonNotFound)
		}
	}
	return allow()
}

// AuthorizeChild decides for a tool record hanging off parent. Only the
// parent's owner matters; the child must actually point at parent.
func AuthorizeChild(s Scope, parent models.Bookmark, childBookmarkID uuid.UUID) Decision {
	if childBookmarkID != parent.ID {
		return deny(ReasonNotFound)
	}
	return AuthorizeOwned(s, parent)
}

// Guard loads parents before letting a mutation through.
type Guard struct {
	db *gorm.DB
}

func NewGuard(db *gorm.DB) *Guard {
	return &Guard{db: db}
}

// Bookmark loads and authorizes a bookmark for its owner.
func (g *Guard) Bookmark(ctx context.Context, s Scope, id uuid.UUID) (*models.Bookmark, error) {
	bookmark, err := g.loadBookmark(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeOwned(s, *bookmark).Err("Bookmark"); err != nil {
		return nil, err
	}
	return bookmark, nil
}

func (g *Guard) loadBookmark(ctx context.Context, id uuid.UUID) (*models.Bookmark, error) {
	var bookmark models.Bookmark
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&bookmark).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Bookmark")
		}
		return nil, fmt.Errorf("loading bookmark: %w", err)
	}
	return &bookmark, nil
}

// LoadOwned loads a directly owned row of type T by id and authorizes it.
func LoadOwned[T Owned](ctx context.Context, db *gorm.DB, s Scope, id uuid.UUID, resource string) (*T, error) {
	var row T
	if err := db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(resource)
		}
		return nil, fmt.Errorf("loading %s: %w", resource, err)
	}
	if err := AuthorizeOwned(s, row).Err(resource); err != nil {
		return nil, err
	}
	return &row, nil
}

// LoadChild authorizes the parent bookmark, then loads the tool record of
// type T with the given id under it. An id alone never proves ownership.
func LoadChild[T any](ctx context.Context, g *Guard, s Scope, bookmarkID, id uuid.UUID, resource string) (*models.Bookmark, *T, error) {
	bookmark, err := g.Bookmark(ctx, s, bookmarkID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil, apperr.NotFound(resource)
		}
		return nil, nil, err
	}

	var row T
	if err := g.db.WithContext(ctx).
		Where("id = ? AND bookmark_id = ?", id, bookmark.ID).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound(resource)
		}
		return nil, nil, fmt.Errorf("loading %s: %w", resource, err)
	}
	return bookmark, &row, nil
}
