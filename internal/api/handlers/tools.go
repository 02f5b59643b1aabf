package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/go-marks/internal/api/dto"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/internal/scope"
	"github.com/hugh/go-marks/internal/storage"
	"gorm.io/gorm"
)

// ToolHandler serves the per-bookmark tools mounted at /{tool}/{bookmarkID}.
// Every route authorizes the parent bookmark before touching a child row.
type ToolHandler struct {
	db        *gorm.DB
	guard     *scope.Guard
	blobs     storage.BlobStore
	maxUpload int64
	logger    *slog.Logger
}

// NewToolHandler accepts a nil blob store; media uploads are rejected then.
func NewToolHandler(db *gorm.DB, blobs storage.BlobStore, maxUpload int64, logger *slog.Logger) *ToolHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &ToolHandler{
		db:        db,
		guard:     scope.NewGuard(db),
		blobs:     blobs,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

func (h *ToolHandler) parent(r *http.Request) (scope.Scope, *models.Bookmark, error) {
	s, err := requestScope(r)
	if err != nil {
		return scope.Scope{}, nil, err
	}
	bookmarkID, err := urlID(r, "bookmarkID", "bookmark")
	if err != nil {
		return scope.Scope{}, nil, err
	}
	bookmark, err := h.guard.Bookmark(r.Context(), s, bookmarkID)
	if err != nil {
		return scope.Scope{}, nil, err
	}
	return s, bookmark, nil
}

// child loads the tool record named by {id} under {bookmarkID}.
func child[T any](h *ToolHandler, r *http.Request, resource string) (*models.Bookmark, *T, error) {
	s, err := requestScope(r)
	if err != nil {
		return nil, nil, err
	}
	bookmarkID, err := urlID(r, "bookmarkID", "bookmark")
	if err != nil {
		return nil, nil, err
	}
	id, err := urlID(r, "id", resource)
	if err != nil {
		return nil, nil, err
	}
	return scope.LoadChild[T](r.Context(), h.guard, s, bookmarkID, id, resource)
}

func listChildren[T any](h *ToolHandler, r *http.Request, order string, filter func(*gorm.DB) *gorm.DB) ([]T, error) {
	_, bookmark, err := h.parent(r)
	if err != nil {
		return nil, err
	}

	query := h.db.WithContext(r.Context()).Where("bookmark_id = ?", bookmark.ID).Order(order)
	if filter != nil {
		query = filter(query)
	}

	var rows []T
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func deleteChild[T any](h *ToolHandler, w http.ResponseWriter, r *http.Request, resource string) {
	_, row, err := child[T](h, r, resource)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(row).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: resource + " deleted"})
}

// saveChild writes only the given columns so a repeated PATCH is a no-op.
func (h *ToolHandler) saveChild(r *http.Request, row interface{}, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return h.db.WithContext(r.Context()).Model(row).Updates(updates).Error
}
