package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/api/validation"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/database/models"
	"gorm.io/datatypes"
)

type HighlightRequest struct {
	Text     *string         `json:"text,omitempty"`
	Note     *string         `json:"note,omitempty"`
	Color    *string         `json:"color,omitempty"`
	Position json.RawMessage `json:"position,omitempty"`
}

func (r HighlightRequest) Validate(creating bool) map[string]string {
	errs := make(map[string]string)
	if creating && r.Text == nil {
		errs["text"] = "Text is required"
	}
	if r.Text != nil && strings.TrimSpace(*r.Text) == "" {
		errs["text"] = "Text cannot be empty"
	}
	if r.Color != nil && *r.Color != "" && !validation.IsValidHexColor(*r.Color) {
		errs["color"] = "Color must be a hex value such as #fde68a"
	}
	if len(r.Position) > 0 && !json.Valid(r.Position) {
		errs["position"] = "Position must be a JSON value"
	}
	return errs
}

func (r HighlightRequest) updates() map[string]interface{} {
	u := make(map[string]interface{})
	if r.Text != nil {
		u["text"] = *r.Text
	}
	if r.Note != nil {
		u["note"] = *r.Note
	}
	if r.Color != nil {
		u["color"] = strings.ToLower(*r.Color)
	}
	if len(r.Position) > 0 {
		u["position"] = datatypes.JSON(r.Position)
	}
	return u
}

type HighlightResponse struct {
	ID         string          `json:"id"`
	BookmarkID string          `json:"bookmark_id"`
	Text       string          `json:"text"`
	Note       string          `json:"note,omitempty"`
	Color      string          `json:"color,omitempty"`
	Position   json.RawMessage `json:"position,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

func toHighlightResponse(h models.Highlight) HighlightResponse {
	return HighlightResponse{
		ID:         h.ID.String(),
		BookmarkID: h.BookmarkID.String(),
		Text:       h.Text,
		Note:       h.Note,
		Color:      h.Color,
		Position:   json.RawMessage(h.Position),
		CreatedAt:  formatTime(h.CreatedAt),
	}
}

// ListHighlights handles GET /api/v1/highlights/{bookmarkID}
func (h *ToolHandler) ListHighlights(w http.ResponseWriter, r *http.Request) {
	highlights, err := listChildren[models.Highlight](h, r, "created_at ASC", nil)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]HighlightResponse, len(highlights))
	for i, hl := range highlights {
		response[i] = toHighlightResponse(hl)
	}
	writeJSON(w, http.StatusOK, response)
}

// CreateHighlight handles POST /api/v1/highlights/{bookmarkID}
func (h *ToolHandler) CreateHighlight(w http.ResponseWriter, r *http.Request) {
	_, bookmark, err := h.parent(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req HighlightRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(true); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	highlight := models.Highlight{BookmarkID: bookmark.ID, Text: *req.Text}
	if req.Note != nil {
		highlight.Note = *req.Note
	}
	if req.Color != nil {
		highlight.Color = strings.ToLower(*req.Color)
	}
	if len(req.Position) > 0 {
		highlight.Position = datatypes.JSON(req.Position)
	}

	if err := h.db.WithContext(r.Context()).Create(&highlight).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toHighlightResponse(highlight))
}

// UpdateHighlight handles PATCH /api/v1/highlights/{bookmarkID}/{id}
func (h *ToolHandler) UpdateHighlight(w http.ResponseWriter, r *http.Request) {
	_, highlight, err := child[models.Highlight](h, r, "Highlight")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req HighlightRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(false); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	if err := h.saveChild(r, highlight, req.updates()); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toHighlightResponse(*highlight))
}

// DeleteHighlight handles DELETE /api/v1/highlights/{bookmarkID}/{id}
func (h *ToolHandler) DeleteHighlight(w http.ResponseWriter, r *http.Request) {
	deleteChild[models.Highlight](h, w, r, "Highlight")
}

type CommentRequest struct {
	Content string `json:"content"`
}

func (r CommentRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if strings.TrimSpace(r.Content) == "" {
		errs["content"] = "Content is required"
	} else if len(r.Content) > maxNoteLength {
		errs["content"] = "Content must be at most 10000 characters"
	}
	return errs
}

type CommentResponse struct {
	ID         string `json:"id"`
	BookmarkID string `json:"bookmark_id"`
	AuthorID   string `json:"author_id"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toCommentResponse(c models.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID.String(),
		BookmarkID: c.BookmarkID.String(),
		AuthorID:   c.AuthorID.String(),
		Content:    c.Content,
		CreatedAt:  formatTime(c.CreatedAt),
		UpdatedAt:  formatTime(c.UpdatedAt),
	}
}

// ListComments handles GET /api/v1/comments/{bookmarkID}
func (h *ToolHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := listChildren[models.Comment](h, r, "created_at ASC", nil)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]CommentResponse, len(comments))
	for i, c := range comments {
		response[i] = toCommentResponse(c)
	}
	writeJSON(w, http.StatusOK, response)
}

// CreateComment handles POST /api/v1/comments/{bookmarkID}
func (h *ToolHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	s, bookmark, err := h.parent(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	comment, err := h.addComment(r, bookmark.ID, s.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(*comment))
}

func (h *ToolHandler) addComment(r *http.Request, bookmarkID, authorID uuid.UUID) (*models.Comment, error) {
	var req CommentRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	if errs := req.Validate(); len(errs) > 0 {
		return nil, apperr.ValidationFailed(errs)
	}

	comment := models.Comment{
		BookmarkID: bookmarkID,
		AuthorID:   authorID,
		Content:    req.Content,
	}
	if err := h.db.WithContext(r.Context()).Create(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// UpdateComment handles PATCH /api/v1/comments/{bookmarkID}/{id}. Only the
// author may rewrite a comment.
func (h *ToolHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	_, comment, err := child[models.Comment](h, r, "Comment")
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

	if err := h.saveChild(r, comment, map[string]interface{}{"content": req.Content}); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toCommentResponse(*comment))
}

// DeleteComment handles DELETE /api/v1/comments/{bookmarkID}/{id}. The
// bookmark owner may remove any comment on it.
func (h *ToolHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	deleteChild[models.Comment](h, w, r, "Comment")
}
