package handlers

import (
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
	"gorm.io/gorm"
)

// ShareHandler manages shares and the /shared routes recipients use.
type ShareHandler struct {
	db     *gorm.DB
	guard  *scope.Guard
	logger *slog.Logger
	now    func() time.Time
}

func NewShareHandler(db *gorm.DB, logger *slog.Logger) *ShareHandler {
	return &ShareHandler{
		db:     db,
		guard:  scope.NewGuard(db),
		logger: logger,
		now:    time.Now,
	}
}

type CreateShareRequest struct {
	BookmarkID     string  `json:"bookmark_id"`
	RecipientEmail string  `json:"recipient_email"`
	Permission     string  `json:"permission"`
	ExpiresAt      *string `json:"expires_at,omitempty"`
}

type UpdateShareRequest struct {
	Permission *string `json:"permission,omitempty"`
	// ExpiresAt of "" removes the expiry.
	ExpiresAt *string `json:"expires_at,omitempty"`
}

func parseExpiry(raw *string, now time.Time, errs map[string]string) *time.Time {
	if raw == nil || *raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		errs["expires_at"] = "Expiry must be an RFC 3339 timestamp"
		return nil
	}
	if !t.After(now) {
		errs["expires_at"] = "Expiry must be in the future"
		return nil
	}
	t = t.UTC()
	return &t
}

type ShareResponse struct {
	ID             string  `json:"id"`
	BookmarkID     string  `json:"bookmark_id"`
	BookmarkTitle  string  `json:"bookmark_title,omitempty"`
	BookmarkURL    string  `json:"bookmark_url,omitempty"`
	OwnerID        string  `json:"owner_id"`
	RecipientID    string  `json:"recipient_id"`
	RecipientEmail string  `json:"recipient_email,omitempty"`
	Permission     string  `json:"permission"`
	ExpiresAt      *string `json:"expires_at,omitempty"`
	Expired        bool    `json:"expired"`
	CreatedAt      string  `json:"created_at"`
}

func toShareResponse(s models.BookmarkShare, now time.Time) ShareResponse {
	resp := ShareResponse{
		ID:          s.ID.String(),
		BookmarkID:  s.BookmarkID.String(),
		OwnerID:     s.OwnerID.String(),
		RecipientID: s.RecipientID.String(),
		Permission:  string(s.Permission),
		ExpiresAt:   formatTimePtr(s.ExpiresAt),
		Expired:     scope.Expired(s, now),
		CreatedAt:   formatTime(s.CreatedAt),
	}
	if s.Bookmark != nil {
		resp.BookmarkTitle = s.Bookmark.Title
		resp.BookmarkURL = s.Bookmark.URL
	}
	if s.Recipient != nil {
		resp.RecipientEmail = s.Recipient.Email
	}
	return resp
}

// Create handles POST /api/v1/shares
func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req CreateShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	now := h.now()
	errs := make(map[string]string)
	bookmarkID, err := uuid.Parse(req.BookmarkID)
	if err != nil {
		errs["bookmark_id"] = "Invalid bookmark_id format"
	}
	email := strings.ToLower(strings.TrimSpace(req.RecipientEmail))
	if !validation.IsValidEmail(email) {
		errs["recipient_email"] = "Invalid email format"
	}
	perm, ok := scope.ParsePermission(req.Permission)
	if !ok {
		errs["permission"] = "Permission must be one of: read, comment, edit"
	}
	expiresAt := parseExpiry(req.ExpiresAt, now, errs)
	if len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	ctx := r.Context()
	bookmark, err := h.guard.Bookmark(ctx, s, bookmarkID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var recipient models.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&recipient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, h.logger, apperr.NotFound("Recipient"))
			return
		}
		writeError(w, h.logger, err)
		return
	}
	if recipient.ID == s.UserID {
		writeError(w, h.logger, apperr.ValidationFailed(map[string]string{
			"recipient_email": "You cannot share a bookmark with yourself",
		}))
		return
	}

	share := models.BookmarkShare{
		BookmarkID:  bookmark.ID,
		OwnerID:     s.UserID,
		RecipientID: recipient.ID,
		Permission:  perm,
		ExpiresAt:   expiresAt,
	}
	if err := h.db.WithContext(ctx).Create(&share).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = apperr.Conflict("bookmark is already shared with %s", email)
		}
		writeError(w, h.logger, err)
		return
	}

	share.Bookmark = bookmark
	share.Recipient = &recipient
	writeJSON(w, http.StatusCreated, toShareResponse(share, now))
}

// List handles GET /api/v1/shares: shares the caller has granted.
func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	query := h.db.WithContext(r.Context()).
		Preload("Bookmark").
		Preload("Recipient").
		Where("owner_id = ?", s.UserID)
	if raw := r.URL.Query().Get("bookmark_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, h.logger, apperr.Invalid("Invalid bookmark_id"))
			return
		}
		query = query.Where("bookmark_id = ?", id)
	}

	var shares []models.BookmarkShare
	if err := query.Order("created_at DESC").Find(&shares).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	now := h.now()
	response := make([]ShareResponse, len(shares))
	for i, sh := range shares {
		response[i] = toShareResponse(sh, now)
	}
	writeJSON(w, http.StatusOK, response)
}

// Received handles GET /api/v1/shares/received. Expired shares are omitted.
func (h *ShareHandler) Received(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	now := h.now()
	var shares []models.BookmarkShare
	if err := h.db.WithContext(r.Context()).
		Preload("Bookmark").
		Where("recipient_id = ?", s.UserID).
		Where("expires_at IS NULL OR expires_at > ?", now.UTC()).
		Order("created_at DESC").
		Find(&shares).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]ShareResponse, len(shares))
	for i, sh := range shares {
		response[i] = toShareResponse(sh, now)
	}
	writeJSON(w, http.StatusOK, response)
}

// Update handles PATCH /api/v1/shares/{id}
func (h *ShareHandler) Update(w http.ResponseWriter, r *http.Request) {
	share, err := h.loadOutgoing(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req UpdateShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	now := h.now()
	errs := make(map[string]string)
	updates := make(map[string]interface{})
	if req.Permission != nil {
		perm, ok := scope.ParsePermission(*req.Permission)
		if !ok {
			errs["permission"] = "Permission must be one of: read, comment, edit"
		}
		updates["permission"] = perm
	}
	if req.ExpiresAt != nil {
		updates["expires_at"] = parseExpiry(req.ExpiresAt, now, errs)
	}
	if len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(share).Updates(updates).Error; err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, toShareResponse(*share, now))
}

// Delete handles DELETE /api/v1/shares/{id}. Either side of a share may
// remove it.
func (h *ShareHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := urlID(r, "id", "share")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result := h.db.WithContext(r.Context()).
		Where("id = ? AND (owner_id = ? OR recipient_id = ?)", id, s.UserID, s.UserID).
		Delete(&models.BookmarkShare{})
	if result.Error != nil {
		writeError(w, h.logger, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		writeError(w, h.logger, apperr.NotFound("Share"))
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Share deleted"})
}

func (h *ShareHandler) loadOutgoing(r *http.Request) (*models.BookmarkShare, error) {
	s, err := requestScope(r)
	if err != nil {
		return nil, err
	}
	id, err := urlID(r, "id", "share")
	if err != nil {
		return nil, err
	}

	var share models.BookmarkShare
	if err := h.db.WithContext(r.Context()).
		Preload("Bookmark").
		Preload("Recipient").
		Where("id = ? AND owner_id = ?", id, s.UserID).
		First(&share).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Share")
		}
		return nil, err
	}
	return &share, nil
}

type SharedBookmarkResponse struct {
	Bookmark   BookmarkResponse `json:"bookmark"`
	Permission string           `json:"permission"`
	Owner      bool             `json:"owner"`
}

// SharedEditRequest is the part of a bookmark a recipient with edit
// permission may change.
type SharedEditRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	URL         *string `json:"url,omitempty"`
}

func (h *ShareHandler) shared(r *http.Request, need models.SharePermission) (*models.Bookmark, *models.BookmarkShare, error) {
	s, err := requestScope(r)
	if err != nil {
		return nil, nil, err
	}
	id, err := urlID(r, "bookmarkID", "bookmark")
	if err != nil {
		return nil, nil, err
	}
	return h.guard.SharedBookmark(r.Context(), s, id, need, h.now())
}

func (h *ShareHandler) sharedResponse(r *http.Request, id uuid.UUID, share *models.BookmarkShare) (*SharedBookmarkResponse, error) {
	var bookmark models.Bookmark
	if err := h.db.WithContext(r.Context()).
		Preload("Tags").
		Preload("Categories").
		First(&bookmark, "id = ?", id).Error; err != nil {
		return nil, err
	}

	resp := &SharedBookmarkResponse{Bookmark: toBookmarkResponse(bookmark)}
	if share == nil {
		resp.Owner = true
		resp.Permission = string(models.PermissionEdit)
	} else {
		resp.Permission = string(share.Permission)
		// Organisation is the owner's; a recipient sees the bookmark itself.
		resp.Bookmark.FolderID = nil
		resp.Bookmark.CompanyID = nil
	}
	return resp, nil
}

// GetShared handles GET /api/v1/shared/{bookmarkID}
func (h *ShareHandler) GetShared(w http.ResponseWriter, r *http.Request) {
	bookmark, share, err := h.shared(r, models.PermissionRead)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp, err := h.sharedResponse(r, bookmark.ID, share)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateShared handles PATCH /api/v1/shared/{bookmarkID}. Needs edit.
func (h *ShareHandler) UpdateShared(w http.ResponseWriter, r *http.Request) {
	bookmark, share, err := h.shared(r, models.PermissionEdit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req SharedEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	errs := UpdateBookmarkRequest{URL: req.URL, Title: req.Title}.Validate()
	if len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	updates := applyBookmarkUpdate(UpdateBookmarkRequest{
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description,
	}, nil)
	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(bookmark).Updates(updates).Error; err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	resp, err := h.sharedResponse(r, bookmark.ID, share)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSharedComments handles GET /api/v1/shared/{bookmarkID}/comments
func (h *ShareHandler) ListSharedComments(w http.ResponseWriter, r *http.Request) {
	bookmark, _, err := h.shared(r, models.PermissionRead)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var comments []models.Comment
	if err := h.db.WithContext(r.Context()).
		Where("bookmark_id = ?", bookmark.ID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]CommentResponse, len(comments))
	for i, c := range comments {
		response[i] = toCommentResponse(c)
	}
	writeJSON(w, http.StatusOK, response)
}

// CreateSharedComment handles POST /api/v1/shared/{bookmarkID}/comments.
// Needs comment.
func (h *ShareHandler) CreateSharedComment(w http.ResponseWriter, r *http.Request) {
	bookmark, _, err := h.shared(r, models.PermissionComment)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req CommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	s, _ := requestScope(r)
	comment := models.Comment{
		BookmarkID: bookmark.ID,
		AuthorID:   s.UserID,
		Content:    req.Content,
	}
	if err := h.db.WithContext(r.Context()).Create(&comment).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(comment))
}

func (h *ShareHandler) sharedComment(r *http.Request, need models.SharePermission) (*models.Bookmark, *models.Comment, error) {
	bookmark, _, err := h.shared(r, need)
	if err != nil {
		return nil, nil, err
	}
	id, err := urlID(r, "id", "comment")
	if err != nil {
		return nil, nil, err
	}

	var comment models.Comment
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND bookmark_id = ?", id, bookmark.ID).
		First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("Comment")
		}
		return nil, nil, err
	}
	return bookmark, &comment, nil
}

// UpdateSharedComment handles PATCH /api/v1/shared/{bookmarkID}/comments/{id}.
// Needs comment, and only the author may rewrite.
func (h *ShareHandler) UpdateSharedComment(w http.ResponseWriter, r *http.Request) {
	_, comment, err := h.sharedComment(r, models.PermissionComment)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	s, _ := requestScope(r)
	if comment.AuthorID != s.UserID {
		writeError(w, h.logger, apperr.Forbidden("Only the author can edit this comment"))
		return
	}

	var req CommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	comment.Content = req.Content
	if err := h.db.WithContext(r.Context()).Model(comment).Update("content", req.Content).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toCommentResponse(*comment))
}

// DeleteSharedComment handles DELETE /api/v1/shared/{bookmarkID}/comments/{id}.
// The author or the bookmark owner may remove it.
func (h *ShareHandler) DeleteSharedComment(w http.ResponseWriter, r *http.Request) {
	bookmark, comment, err := h.sharedComment(r, models.PermissionRead)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	s, _ := requestScope(r)
	if comment.AuthorID != s.UserID && bookmark.UserID != s.UserID {
		writeError(w, h.logger, apperr.Forbidden("Only the author or the owner can delete this comment"))
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(comment).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Comment deleted"})
}
