package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/api/dto"
	"github.com/hugh/go-marks/internal/api/validation"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/internal/scope"
	"github.com/hugh/go-marks/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetadataQueue schedules a page metadata fetch for a bookmark.
type MetadataQueue interface {
	EnqueueFetch(ctx context.Context, bookmarkID uuid.UUID, force bool) error
}

type BookmarkHandler struct {
	db     *gorm.DB
	guard  *scope.Guard
	queue  MetadataQueue
	blobs  storage.BlobStore
	logger *slog.Logger
}

// NewBookmarkHandler accepts a nil queue and a nil blob store; metadata
// fetches and blob cleanup are skipped then.
func NewBookmarkHandler(db *gorm.DB, queue MetadataQueue, blobs storage.BlobStore, logger *slog.Logger) *BookmarkHandler {
	return &BookmarkHandler{
		db:     db,
		guard:  scope.NewGuard(db),
		queue:  queue,
		blobs:  blobs,
		logger: logger,
	}
}

type CreateBookmarkRequest struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	FolderID    *string  `json:"folder_id,omitempty"`
	TagIDs      []string `json:"tag_ids,omitempty"`
	CategoryIDs []string `json:"category_ids,omitempty"`
	IsFavorite  bool     `json:"is_favorite,omitempty"`
}

func (r CreateBookmarkRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.URL == "" {
		errors["url"] = "URL is required"
	} else if !validation.IsValidURL(r.URL) {
		errors["url"] = "URL must be an absolute http or https URL"
	}
	if len(r.Title) > 500 {
		errors["title"] = "Title must be at most 500 characters"
	}
	return errors
}

// UpdateBookmarkRequest is a partial update. An empty folder_id clears the folder.
type UpdateBookmarkRequest struct {
	URL         *string `json:"url,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	FolderID    *string `json:"folder_id,omitempty"`
	IsFavorite  *bool   `json:"is_favorite,omitempty"`
	IsArchived  *bool   `json:"is_archived,omitempty"`
}

func (r UpdateBookmarkRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.URL != nil && !validation.IsValidURL(*r.URL) {
		errors["url"] = "URL must be an absolute http or https URL"
	}
	if r.Title != nil && len(*r.Title) > 500 {
		errors["title"] = "Title must be at most 500 characters"
	}
	return errors
}

type ReplaceIDsRequest struct {
	IDs []string `json:"ids"`
}

// EngagementRequest reports reading activity. TimeSpent is a delta in
// seconds added to the running total on every call.
type EngagementRequest struct {
	Visit     bool  `json:"visit"`
	TimeSpent int64 `json:"time_spent"`
}

func (r EngagementRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.TimeSpent < 0 {
		errors["time_spent"] = "time_spent cannot be negative"
	}
	if r.TimeSpent > 24*60*60 {
		errors["time_spent"] = "time_spent must be at most one day per report"
	}
	if !r.Visit && r.TimeSpent == 0 {
		errors["visit"] = "Report a visit or a time_spent delta"
	}
	return errors
}

type BookmarkResponse struct {
	ID                string             `json:"id"`
	URL               string             `json:"url"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Favicon           string             `json:"favicon,omitempty"`
	Image             string             `json:"image,omitempty"`
	SiteName          string             `json:"site_name,omitempty"`
	CompanyID         *string            `json:"company_id,omitempty"`
	FolderID          *string            `json:"folder_id,omitempty"`
	VisitCount        int64              `json:"visit_count"`
	TimeSpent         int64              `json:"time_spent"`
	LastVisitedAt     *string            `json:"last_visited_at,omitempty"`
	IsFavorite        bool               `json:"is_favorite"`
	IsArchived        bool               `json:"is_archived"`
	MetadataFetchedAt *string            `json:"metadata_fetched_at,omitempty"`
	Tags              []TagResponse      `json:"tags"`
	Categories        []CategoryResponse `json:"categories"`
	CreatedAt         string             `json:"created_at"`
	UpdatedAt         string             `json:"updated_at"`
}

func toBookmarkResponse(b models.Bookmark) BookmarkResponse {
	resp := BookmarkResponse{
		ID:                b.ID.String(),
		URL:               b.URL,
		Title:             b.Title,
		Description:       b.Description,
		Favicon:           b.Favicon,
		Image:             b.Image,
		SiteName:          b.SiteName,
		CompanyID:         idString(b.CompanyID),
		FolderID:          idString(b.FolderID),
		VisitCount:        b.VisitCount,
		TimeSpent:         b.TimeSpent,
		LastVisitedAt:     formatTimePtr(b.LastVisitedAt),
		IsFavorite:        b.IsFavorite,
		IsArchived:        b.IsArchived,
		MetadataFetchedAt: formatTimePtr(b.MetadataFetchedAt),
		Tags:              make([]TagResponse, len(b.Tags)),
		Categories:        make([]CategoryResponse, len(b.Categories)),
		CreatedAt:         formatTime(b.CreatedAt),
		UpdatedAt:         formatTime(b.UpdatedAt),
	}
	for i, t := range b.Tags {
		resp.Tags[i] = toTagResponse(t)
	}
	for i, c := range b.Categories {
		resp.Categories[i] = toCategoryResponse(c)
	}
	return resp
}

var bookmarkSorts = map[string]string{
	"created":      "bookmarks.created_at DESC",
	"updated":      "bookmarks.updated_at DESC",
	"title":        "bookmarks.title ASC",
	"visits":       "bookmarks.visit_count DESC",
	"time_spent":   "bookmarks.time_spent DESC",
	"last_visited": "bookmarks.last_visited_at DESC",
}

// List handles GET /api/v1/bookmarks. Archived bookmarks are hidden unless
// archived=true is passed.
func (h *BookmarkHandler) List(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	q := r.URL.Query()
	pagination := dto.PaginationFromQuery(q)

	query := h.db.WithContext(r.Context()).Model(&models.Bookmark{}).Scopes(s.Owned("bookmarks"))

	if term := strings.TrimSpace(q.Get("q")); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where(
			"(LOWER(bookmarks.title) LIKE ? OR LOWER(bookmarks.url) LIKE ? OR LOWER(bookmarks.description) LIKE ?)",
			like, like, like,
		)
	}

	filters := map[string]string{
		"tag_id":      "bookmarks.id IN (SELECT bookmark_id FROM bookmark_tags WHERE tag_id = ?)",
		"category_id": "bookmarks.id IN (SELECT bookmark_id FROM bookmark_categories WHERE category_id = ?)",
		"folder_id":   "bookmarks.folder_id = ?",
	}
	for param, cond := range filters {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, h.logger, apperr.Invalid("Invalid "+param))
			return
		}
		query = query.Where(cond, id)
	}

	if fav := q.Get("favorite"); fav != "" {
		query = query.Where("bookmarks.is_favorite = ?", fav == "true")
	}
	switch q.Get("archived") {
	case "true":
		query = query.Where("bookmarks.is_archived = ?", true)
	case "all":
	default:
		query = query.Where("bookmarks.is_archived = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	order, ok := bookmarkSorts[q.Get("sort")]
	if !ok {
		order = bookmarkSorts["created"]
	}

	var bookmarks []models.Bookmark
	if err := query.
		Preload("Tags").
		Preload("Categories").
		Order(order).
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&bookmarks).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]BookmarkResponse, len(bookmarks))
	for i, b := range bookmarks {
		response[i] = toBookmarkResponse(b)
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, pagination))
}

// Create handles POST /api/v1/bookmarks
func (h *BookmarkHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req CreateBookmarkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	errs := req.Validate()
	folderID := parseOptionalID(req.FolderID, "folder_id", errs)
	if len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	ctx := r.Context()
	if folderID != nil {
		if _, err := scope.LoadOwned[models.CategoryFolder](ctx, h.db, s, *folderID, "Folder"); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	tagIDs, err := ownedIDs[models.Tag](ctx, h.db, s, req.TagIDs, "tag_ids")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	categoryIDs, err := ownedIDs[models.Category](ctx, h.db, s, req.CategoryIDs, "category_ids")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	bookmark := models.Bookmark{
		UserID:      s.UserID,
		CompanyID:   s.CompanyForNew(),
		FolderID:    folderID,
		URL:         req.URL,
		Title:       validation.SanitizeString(req.Title),
		Description: req.Description,
		IsFavorite:  req.IsFavorite,
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&bookmark).Error; err != nil {
			return err
		}
		if err := replaceLinks(tx, "bookmark_tags", "tag_id", bookmark.ID, tagIDs); err != nil {
			return err
		}
		return replaceLinks(tx, "bookmark_categories", "category_id", bookmark.ID, categoryIDs)
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if h.queue != nil {
		if err := h.queue.EnqueueFetch(ctx, bookmark.ID, false); err != nil {
			h.logger.Warn("failed to enqueue metadata fetch", "bookmark_id", bookmark.ID, "error", err)
		}
	}

	created, err := h.reload(ctx, bookmark.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookmarkResponse(*created))
}

// Get handles GET /api/v1/bookmarks/{id}
func (h *BookmarkHandler) Get(w http.ResponseWriter, r *http.Request) {
	bookmark, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	full, err := h.reload(r.Context(), bookmark.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkResponse(*full))
}

// Update handles PATCH /api/v1/bookmarks/{id}
func (h *BookmarkHandler) Update(w http.ResponseWriter, r *http.Request) {
	bookmark, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req UpdateBookmarkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	errs := req.Validate()
	folderID := parseOptionalID(req.FolderID, "folder_id", errs)
	if len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	s, _ := requestScope(r)
	if folderID != nil {
		if _, err := scope.LoadOwned[models.CategoryFolder](r.Context(), h.db, s, *folderID, "Folder"); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	updates := applyBookmarkUpdate(req, folderID)
	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(bookmark).Updates(updates).Error; err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	full, err := h.reload(r.Context(), bookmark.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkResponse(*full))
}

// applyBookmarkUpdate builds a column map so explicit false and empty values
// are written too.
func applyBookmarkUpdate(req UpdateBookmarkRequest, folderID *uuid.UUID) map[string]interface{} {
	updates := make(map[string]interface{})
	if req.URL != nil {
		updates["url"] = *req.URL
	}
	if req.Title != nil {
		updates["title"] = validation.SanitizeString(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.FolderID != nil {
		updates["folder_id"] = folderID
	}
	if req.IsFavorite != nil {
		updates["is_favorite"] = *req.IsFavorite
	}
	if req.IsArchived != nil {
		updates["is_archived"] = *req.IsArchived
	}
	return updates
}

// Delete handles DELETE /api/v1/bookmarks/{id}. Tool records go with it.
func (h *BookmarkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	bookmark, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx := r.Context()
	var keys []string
	if err := h.db.WithContext(ctx).Model(&models.Media{}).
		Where("bookmark_id = ? AND storage_key <> ''", bookmark.ID).
		Pluck("storage_key", &keys).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteBookmark(tx, bookmark.ID)
	}); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if h.blobs != nil {
		for _, key := range keys {
			if err := h.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
				h.logger.Warn("failed to delete media object", "key", key, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Bookmark deleted"})
}

func deleteBookmark(tx *gorm.DB, id uuid.UUID) error {
	habits := tx.Model(&models.Habit{}).Select("id").Where("bookmark_id = ?", id)
	if err := tx.Where("habit_id IN (?)", habits).Delete(&models.HabitCheckIn{}).Error; err != nil {
		return err
	}

	children := []interface{}{
		&models.QuickNote{}, &models.TodoItem{}, &models.TaskList{}, &models.Habit{},
		&models.Highlight{}, &models.Comment{}, &models.CodeSnippet{}, &models.Media{},
		&models.BookmarkShare{},
	}
	for _, child := range children {
		if err := tx.Where("bookmark_id = ?", id).Delete(child).Error; err != nil {
			return err
		}
	}

	if err := tx.Model(&models.NotificationSchedule{}).
		Where("bookmark_id = ?", id).
		Update("bookmark_id", nil).Error; err != nil {
		return err
	}

	for _, table := range []string{"bookmark_tags", "bookmark_categories"} {
		if err := tx.Exec("DELETE FROM "+table+" WHERE bookmark_id = ?", id).Error; err != nil {
			return err
		}
	}

	return tx.Delete(&models.Bookmark{}, "id = ?", id).Error
}

// ReplaceTags handles PUT /api/v1/bookmarks/{id}/tags
func (h *BookmarkHandler) ReplaceTags(w http.ResponseWriter, r *http.Request) {
	h.replace(w, r, "bookmark_tags", "tag_id", func(ctx context.Context, s scope.Scope, ids []string) ([]uuid.UUID, error) {
		return ownedIDs[models.Tag](ctx, h.db, s, ids, "ids")
	})
}

// ReplaceCategories handles PUT /api/v1/bookmarks/{id}/categories
func (h *BookmarkHandler) ReplaceCategories(w http.ResponseWriter, r *http.Request) {
	h.replace(w, r, "bookmark_categories", "category_id", func(ctx context.Context, s scope.Scope, ids []string) ([]uuid.UUID, error) {
		return ownedIDs[models.Category](ctx, h.db, s, ids, "ids")
	})
}

func (h *BookmarkHandler) replace(w http.ResponseWriter, r *http.Request, table, column string,
	resolve func(context.Context, scope.Scope, []string) ([]uuid.UUID, error)) {
	bookmark, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req ReplaceIDsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	s, _ := requestScope(r)
	ids, err := resolve(r.Context(), s, req.IDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM "+table+" WHERE bookmark_id = ?", bookmark.ID).Error; err != nil {
			return err
		}
		return replaceLinks(tx, table, column, bookmark.ID, ids)
	}); err != nil {
		writeError(w, h.logger, err)
		return
	}

	full, err := h.reload(r.Context(), bookmark.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkResponse(*full))
}

// RecordEngagement handles POST /api/v1/bookmarks/{id}/engagement. Counters
// are additive: a retried request counts twice.
func (h *BookmarkHandler) RecordEngagement(w http.ResponseWriter, r *http.Request) {
	bookmark, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req EngagementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	updates := map[string]interface{}{
		"time_spent": gorm.Expr("time_spent + ?", req.TimeSpent),
	}
	if req.Visit {
		updates["visit_count"] = gorm.Expr("visit_count + ?", 1)
		updates["last_visited_at"] = time.Now().UTC()
	}

	if err := h.db.WithContext(r.Context()).Model(bookmark).Updates(updates).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	full, err := h.reload(r.Context(), bookmark.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkResponse(*full))
}

// Refresh handles POST /api/v1/bookmarks/{id}/refresh
func (h *BookmarkHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	bookmark, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if h.queue == nil {
		writeError(w, h.logger, apperr.Invalid("Metadata refresh is unavailable"))
		return
	}

	if err := h.queue.EnqueueFetch(r.Context(), bookmark.ID, true); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Metadata refresh queued"})
}

func (h *BookmarkHandler) load(r *http.Request) (*models.Bookmark, error) {
	s, err := requestScope(r)
	if err != nil {
		return nil, err
	}
	id, err := urlID(r, "id", "bookmark")
	if err != nil {
		return nil, err
	}
	return h.guard.Bookmark(r.Context(), s, id)
}

func (h *BookmarkHandler) reload(ctx context.Context, id uuid.UUID) (*models.Bookmark, error) {
	var bookmark models.Bookmark
	if err := h.db.WithContext(ctx).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name ASC") }).
		Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("categories.name ASC") }).
		First(&bookmark, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &bookmark, nil
}

// ownedIDs parses ids and checks every one names a row of T the scope owns.
func ownedIDs[T scope.Owned](ctx context.Context, db *gorm.DB, s scope.Scope, raw []string, field string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	seen := make(map[uuid.UUID]bool, len(raw))
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, apperr.ValidationFailed(map[string]string{field: "Invalid ID: " + r})
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	var rows []T
	if err := db.WithContext(ctx).Scopes(s.Owned("")).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) != len(ids) {
		return nil, apperr.ValidationFailed(map[string]string{field: "One or more IDs were not found"})
	}
	return ids, nil
}

func replaceLinks(tx *gorm.DB, table, column string, bookmarkID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, len(ids))
	for i, id := range ids {
		rows[i] = map[string]interface{}{"bookmark_id": bookmarkID, column: id}
	}
	return tx.Table(table).Create(rows).Error
}
