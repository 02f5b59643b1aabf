package handlers

import (
	"net/http"
	"strings"

	"github.com/hugh/go-marks/internal/api/validation"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/database/models"
)

const maxNoteLength = 10000

type NoteRequest struct {
	Content  *string `json:"content,omitempty"`
	Color    *string `json:"color,omitempty"`
	IsPinned *bool   `json:"is_pinned,omitempty"`
}

func (r NoteRequest) Validate(creating bool) map[string]string {
	errs := make(map[string]string)
	if creating && r.Content == nil {
		errs["content"] = "Content is required"
	}
	if r.Content != nil {
		if strings.TrimSpace(*r.Content) == "" {
			errs["content"] = "Content cannot be empty"
		} else if len(*r.Content) > maxNoteLength {
			errs["content"] = "Content must be at most 10000 characters"
		}
	}
	if r.Color != nil && *r.Color != "" && !validation.IsValidHexColor(*r.Color) {
		errs["color"] = "Color must be a hex value such as #fde68a"
	}
	return errs
}

func (r NoteRequest) updates() map[string]interface{} {
	u := make(map[string]interface{})
	if r.Content != nil {
		u["content"] = *r.Content
	}
	if r.Color != nil {
		u["color"] = strings.ToLower(*r.Color)
	}
	if r.IsPinned != nil {
		u["is_pinned"] = *r.IsPinned
	}
	return u
}

type NoteResponse struct {
	ID         string `json:"id"`
	BookmarkID string `json:"bookmark_id"`
	Content    string `json:"content"`
	Color      string `json:"color,omitempty"`
	IsPinned   bool   `json:"is_pinned"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toNoteResponse(n models.QuickNote) NoteResponse {
	return NoteResponse{
		ID:         n.ID.String(),
		BookmarkID: n.BookmarkID.String(),
		Content:    n.Content,
		Color:      n.Color,
		IsPinned:   n.IsPinned,
		CreatedAt:  formatTime(n.CreatedAt),
		UpdatedAt:  formatTime(n.UpdatedAt),
	}
}

// ListNotes handles GET /api/v1/notes/{bookmarkID}
func (h *ToolHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := listChildren[models.QuickNote](h, r, "is_pinned DESC, created_at DESC", nil)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]NoteResponse, len(notes))
	for i, n := range notes {
		response[i] = toNoteResponse(n)
	}
	writeJSON(w, http.StatusOK, response)
}

// CreateNote handles POST /api/v1/notes/{bookmarkID}
func (h *ToolHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	_, bookmark, err := h.parent(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req NoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(true); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	note := models.QuickNote{BookmarkID: bookmark.ID, Content: *req.Content}
	if req.Color != nil {
		note.Color = strings.ToLower(*req.Color)
	}
	if req.IsPinned != nil {
		note.IsPinned = *req.IsPinned
	}

	if err := h.db.WithContext(r.Context()).Create(&note).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toNoteResponse(note))
}

// UpdateNote handles PATCH /api/v1/notes/{bookmarkID}/{id}
func (h *ToolHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	_, note, err := child[models.QuickNote](h, r, "Note")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req NoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(false); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	if err := h.saveChild(r, note, req.updates()); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toNoteResponse(*note))
}

// DeleteNote handles DELETE /api/v1/notes/{bookmarkID}/{id}
func (h *ToolHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	deleteChild[models.QuickNote](h, w, r, "Note")
}
