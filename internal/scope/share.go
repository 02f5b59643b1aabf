package scope

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/database/models"
	"gorm.io/gorm"
)

// Rank orders permissions read < comment < edit. Unknown values rank 0.
func Rank(p models.SharePermission) int {
	switch p {
	case models.PermissionRead:
		return 1
	case models.PermissionComment:
		return 2
	case models.PermissionEdit:
		return 3
	default:
		return 0
	}
}

func ParsePermission(s string) (models.SharePermission, bool) {
	p := models.SharePermission(s)
	return p, Rank(p) > 0
}

// Expired reports whether the share no longer grants anything at now.
func Expired(share models.BookmarkShare, now time.Time) bool {
	return share.ExpiresAt != nil && !share.ExpiresAt.After(now)
}

// AuthorizeShare decides access to a bookmark for an operation needing the
// given permission. The owner is always allowed. A recipient is allowed while
// the share is unexpired and grants at least need. Unexpired shares with too
// little permission are Forbidden; anything else is NotFound.
func AuthorizeShare(s Scope, b models.Bookmark, share *models.BookmarkShare, need models.SharePermission, now time.Time) Decision {
	if s.Authenticated() && b.UserID == s.UserID {
		return allow()
	}
	if !s.Authenticated() || share == nil || share.BookmarkID != b.ID || share.RecipientID != s.UserID {
		return deny(ReasonNotFound)
	}
	if Expired(*share, now) {
		return deny(ReasonNotFound)
	}
	if Rank(need) == 0 || Rank(need) > Rank(share.Permission) {
		return deny(ReasonForbidden)
	}
	return allow()
}

// SharedBookmark loads a bookmark reached through /shared routes and checks
// that s may perform an operation needing need on it.
func (g *Guard) SharedBookmark(ctx context.Context, s Scope, id uuid.UUID, need models.SharePermission, now time.Time) (*models.Bookmark, *models.BookmarkShare, error) {
	bookmark, err := g.loadBookmark(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var share *models.BookmarkShare
	if bookmark.UserID != s.UserID {
		var row models.BookmarkShare
		err := g.db.WithContext(ctx).
			Where("bookmark_id = ? AND recipient_id = ?", bookmark.ID, s.UserID).
			First(&row).Error
		switch {
		case err == nil:
			share = &row
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return nil, nil, fmt.Errorf("loading share: %w", err)
		}
	}

	if err := AuthorizeShare(s, *bookmark, share, need, now).Err("Bookmark"); err != nil {
		return nil, nil, err
	}
	return bookmark, share, nil
}
