package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/hugh/go-marks/internal/api/dto"
	"github.com/hugh/go-marks/internal/api/validation"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/internal/storage"
)

type MediaRequest struct {
	Kind  string `json:"kind"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

func (r MediaRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Kind == "" {
		errs["kind"] = "Kind is required"
	} else if !models.MediaKind(r.Kind).Valid() {
		errs["kind"] = "Kind must be one of: image, video, audio, file, link"
	}
	if r.URL == "" {
		errs["url"] = "URL is required"
	} else if !validation.IsValidURL(r.URL) {
		errs["url"] = "URL must be an absolute http or https URL"
	}
	return errs
}

type UpdateMediaRequest struct {
	Title *string `json:"title,omitempty"`
	URL   *string `json:"url,omitempty"`
}

type MediaResponse struct {
	ID          string `json:"id"`
	BookmarkID  string `json:"bookmark_id"`
	Kind        string `json:"kind"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url"`
	Uploaded    bool   `json:"uploaded"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toMediaResponse(m models.Media) MediaResponse {
	return MediaResponse{
		ID:          m.ID.String(),
		BookmarkID:  m.BookmarkID.String(),
		Kind:        string(m.Kind),
		Title:       m.Title,
		URL:         m.URL,
		Uploaded:    m.StorageKey != "",
		ContentType: m.ContentType,
		Size:        m.Size,
		CreatedAt:   formatTime(m.CreatedAt),
	}
}

// kindFor classifies an uploaded file by its content type.
func kindFor(contentType string) models.MediaKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MediaImage
	case strings.HasPrefix(contentType, "video/"):
		return models.MediaVideo
	case strings.HasPrefix(contentType, "audio/"):
		return models.MediaAudio
	default:
		return models.MediaFile
	}
}

// ListMedia handles GET /api/v1/media/{bookmarkID}
func (h *ToolHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	media, err := listChildren[models.Media](h, r, "created_at ASC", nil)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]MediaResponse, len(media))
	for i, m := range media {
		response[i] = toMediaResponse(m)
	}
	writeJSON(w, http.StatusOK, response)
}

// CreateMedia handles POST /api/v1/media/{bookmarkID}. A multipart body with
// a "file" part is uploaded to the blob store; a JSON body records a link.
func (h *ToolHandler) CreateMedia(w http.ResponseWriter, r *http.Request) {
	_, bookmark, err := h.parent(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		h.upload(w, r, bookmark)
		return
	}

	var req MediaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	media := models.Media{
		BookmarkID: bookmark.ID,
		Kind:       models.MediaKind(req.Kind),
		Title:      validation.SanitizeString(req.Title),
		URL:        req.URL,
	}
	if err := h.db.WithContext(r.Context()).Create(&media).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMediaResponse(media))
}

func (h *ToolHandler) upload(w http.ResponseWriter, r *http.Request, bookmark *models.Bookmark) {
	if h.blobs == nil {
		writeError(w, h.logger, apperr.Invalid("Uploads are disabled"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.logger, apperr.Invalid("File is too large"))
			return
		}
		writeError(w, h.logger, apperr.Invalid("Invalid multipart body"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.logger, apperr.ValidationFailed(map[string]string{"file": "File is required"}))
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		writeError(w, h.logger, apperr.Invalid("File is too large"))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	title := validation.SanitizeString(r.FormValue("title"))
	if title == "" {
		title = validation.TruncateString(header.Filename, 255)
	}

	key := storage.ObjectKey(bookmark.ID, header.Filename)
	url, err := h.blobs.Put(r.Context(), key, file, header.Size, contentType)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	media := models.Media{
		BookmarkID:  bookmark.ID,
		Kind:        kindFor(contentType),
		Title:       title,
		URL:         url,
		StorageKey:  key,
		ContentType: contentType,
		Size:        header.Size,
	}
	if err := h.db.WithContext(r.Context()).Create(&media).Error; err != nil {
		if delErr := h.blobs.Delete(r.Context(), key); delErr != nil {
			h.logger.Warn("failed to remove orphaned upload", "key", key, "error", delErr)
		}
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("media uploaded", "bookmark_id", bookmark.ID, "key", key, "size", header.Size)
	writeJSON(w, http.StatusCreated, toMediaResponse(media))
}

// UpdateMedia handles PATCH /api/v1/media/{bookmarkID}/{id}. The URL of an
// uploaded object cannot be changed.
func (h *ToolHandler) UpdateMedia(w http.ResponseWriter, r *http.Request) {
	_, media, err := child[models.Media](h, r, "Media")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req UpdateMediaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	errs := make(map[string]string)
	if req.URL != nil {
		if media.StorageKey != "" {
			errs["url"] = "URL of an uploaded file cannot be changed"
		} else if !validation.IsValidURL(*req.URL) {
			errs["url"] = "URL must be an absolute http or https URL"
		}
	}
	if len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		updates["title"] = validation.SanitizeString(*req.Title)
	}
	if req.URL != nil {
		updates["url"] = *req.URL
	}
	if err := h.saveChild(r, media, updates); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toMediaResponse(*media))
}

// DeleteMedia handles DELETE /api/v1/media/{bookmarkID}/{id}
func (h *ToolHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	_, media, err := child[models.Media](h, r, "Media")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(media).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	if media.StorageKey != "" && h.blobs != nil {
		if err := h.blobs.Delete(r.Context(), media.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.logger.Warn("failed to delete media object", "key", media.StorageKey, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Media deleted"})
}
