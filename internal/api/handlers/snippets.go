package handlers

import (
	"net/http"
	"strings"

	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/database/models"
)

type SnippetRequest struct {
	Title       *string `json:"title,omitempty"`
	Language    *string `json:"language,omitempty"`
	Code        *string `json:"code,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (r SnippetRequest) Validate(creating bool) map[string]string {
	errs := make(map[string]string)
	if creating {
		if r.Title == nil {
			errs["title"] = "Title is required"
		}
		if r.Code == nil {
			errs["code"] = "Code is required"
		}
	}
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		errs["title"] = "Title cannot be empty"
	}
	if r.Code != nil && strings.TrimSpace(*r.Code) == "" {
		errs["code"] = "Code cannot be empty"
	}
	if r.Language != nil && len(*r.Language) > 50 {
		errs["language"] = "Language must be at most 50 characters"
	}
	return errs
}

func (r SnippetRequest) updates() map[string]interface{} {
	u := make(map[string]interface{})
	if r.Title != nil {
		u["title"] = strings.TrimSpace(*r.Title)
	}
	if r.Language != nil {
		u["language"] = strings.ToLower(*r.Language)
	}
	if r.Code != nil {
		u["code"] = *r.Code
	}
	if r.Description != nil {
		u["description"] = *r.Description
	}
	return u
}

type SnippetResponse struct {
	ID          string `json:"id"`
	BookmarkID  string `json:"bookmark_id"`
	Title       string `json:"title"`
	Language    string `json:"language,omitempty"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toSnippetResponse(s models.CodeSnippet) SnippetResponse {
	return SnippetResponse{
		ID:          s.ID.String(),
		BookmarkID:  s.BookmarkID.String(),
		Title:       s.Title,
		Language:    s.Language,
		Code:        s.Code,
		Description: s.Description,
		CreatedAt:   formatTime(s.CreatedAt),
		UpdatedAt:   formatTime(s.UpdatedAt),
	}
}

// ListSnippets handles GET /api/v1/snippets/{bookmarkID}
func (h *ToolHandler) ListSnippets(w http.ResponseWriter, r *http.Request) {
	snippets, err := listChildren[models.CodeSnippet](h, r, "created_at DESC", nil)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]SnippetResponse, len(snippets))
	for i, s := range snippets {
		response[i] = toSnippetResponse(s)
	}
	writeJSON(w, http.StatusOK, response)
}

// CreateSnippet handles POST /api/v1/snippets/{bookmarkID}
func (h *ToolHandler) CreateSnippet(w http.ResponseWriter, r *http.Request) {
	_, bookmark, err := h.parent(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req SnippetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(true); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	snippet := models.CodeSnippet{
		BookmarkID: bookmark.ID,
		Title:      strings.TrimSpace(*req.Title),
		Code:       *req.Code,
	}
	if req.Language != nil {
		snippet.Language = strings.ToLower(*req.Language)
	}
	if req.Description != nil {
		snippet.Description = *req.Description
	}

	if err := h.db.WithContext(r.Context()).Create(&snippet).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSnippetResponse(snippet))
}

// UpdateSnippet handles PATCH /api/v1/snippets/{bookmarkID}/{id}
func (h *ToolHandler) UpdateSnippet(w http.ResponseWriter, r *http.Request) {
	_, snippet, err := child[models.CodeSnippet](h, r, "Snippet")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req SnippetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(false); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	if err := h.saveChild(r, snippet, req.updates()); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toSnippetResponse(*snippet))
}

// DeleteSnippet handles DELETE /api/v1/snippets/{bookmarkID}/{id}
func (h *ToolHandler) DeleteSnippet(w http.ResponseWriter, r *http.Request) {
	deleteChild[models.CodeSnippet](h, w, r, "Snippet")
}
