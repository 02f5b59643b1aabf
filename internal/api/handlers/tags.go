package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hugh/go-marks/internal/api/dto"
	"github.com/hugh/go-marks/internal/api/validation"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/internal/scope"
	"gorm.io/gorm"
)

type TagHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewTagHandler(db *gorm.DB, logger *slog.Logger) *TagHandler {
	return &TagHandler{db: db, logger: logger}
}

type TagRequest struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

func (r TagRequest) Validate(creating bool) map[string]string {
	errs := make(map[string]string)
	if creating && r.Name == nil {
		errs["name"] = "Name is required"
	}
	if r.Name != nil {
		name := validation.NormalizeName(*r.Name)
		if name == "" {
			errs["name"] = "Name cannot be empty"
		} else if len(name) > 100 {
			errs["name"] = "Name must be at most 100 characters"
		}
	}
	if r.Color != nil && *r.Color != "" && !validation.IsValidHexColor(*r.Color) {
		errs["color"] = "Color must be a hex value such as #3b82f6"
	}
	return errs
}

type TagResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Color         string  `json:"color,omitempty"`
	CompanyID     *string `json:"company_id,omitempty"`
	BookmarkCount *int64  `json:"bookmark_count,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func toTagResponse(t models.Tag) TagResponse {
	return TagResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		Color:     t.Color,
		CompanyID: idString(t.CompanyID),
		CreatedAt: formatTime(t.CreatedAt),
	}
}

// List handles GET /api/v1/tags
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var tags []models.Tag
	if err := h.db.WithContext(r.Context()).Scopes(s.Owned("")).Order("name ASC").Find(&tags).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	type countRow struct {
		TagID string
		Count int64
	}
	var counts []countRow
	if len(tags) > 0 {
		ids := make([]interface{}, len(tags))
		for i, t := range tags {
			ids[i] = t.ID
		}
		if err := h.db.WithContext(r.Context()).
			Table("bookmark_tags").
			Select("tag_id, COUNT(*) AS count").
			Where("tag_id IN ?", ids).
			Group("tag_id").
			Scan(&counts).Error; err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	byTag := make(map[string]int64, len(counts))
	for _, c := range counts {
		byTag[c.TagID] = c.Count
	}

	response := make([]TagResponse, len(tags))
	for i, t := range tags {
		response[i] = toTagResponse(t)
		n := byTag[t.ID.String()]
		response[i].BookmarkCount = &n
	}

	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/tags. Names are unique per user.
func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req TagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(true); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	tag := models.Tag{
		UserID:    s.UserID,
		CompanyID: s.CompanyForNew(),
		Name:      validation.NormalizeName(*req.Name),
	}
	if req.Color != nil {
		tag.Color = strings.ToLower(*req.Color)
	}

	if err := h.ensureNameFree(r, s, tag.Name, nil); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.db.WithContext(r.Context()).Create(&tag).Error; err != nil {
		writeError(w, h.logger, tagWriteError(err, tag.Name))
		return
	}

	writeJSON(w, http.StatusCreated, toTagResponse(tag))
}

// Update handles PATCH /api/v1/tags/{id}
func (h *TagHandler) Update(w http.ResponseWriter, r *http.Request) {
	tag, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req TagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(false); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	if req.Name != nil {
		name := validation.NormalizeName(*req.Name)
		if name != tag.Name {
			s, _ := requestScope(r)
			if err := h.ensureNameFree(r, s, name, tag); err != nil {
				writeError(w, h.logger, err)
				return
			}
		}
		tag.Name = name
	}
	if req.Color != nil {
		tag.Color = strings.ToLower(*req.Color)
	}

	if err := h.db.WithContext(r.Context()).Save(tag).Error; err != nil {
		writeError(w, h.logger, tagWriteError(err, tag.Name))
		return
	}

	writeJSON(w, http.StatusOK, toTagResponse(*tag))
}

// Delete handles DELETE /api/v1/tags/{id}
func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tag, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM bookmark_tags WHERE tag_id = ?", tag.ID).Error; err != nil {
			return err
		}
		return tx.Delete(tag).Error
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Tag deleted"})
}

// ensureNameFree checks uniqueness across all of the user's tags, whatever
// company they are filed under, to match the database index.
func (h *TagHandler) ensureNameFree(r *http.Request, s scope.Scope, name string, self *models.Tag) error {
	query := h.db.WithContext(r.Context()).Model(&models.Tag{}).
		Where("user_id = ? AND name = ?", s.UserID, name)
	if self != nil {
		query = query.Where("id <> ?", self.ID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperr.Conflict("tag %q already exists", name)
	}
	return nil
}

// tagWriteError maps a unique violation that slipped past the pre-check.
func tagWriteError(err error, name string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("tag %q already exists", name)
	}
	return err
}

func (h *TagHandler) load(r *http.Request) (*models.Tag, error) {
	s, err := requestScope(r)
	if err != nil {
		return nil, err
	}
	id, err := urlID(r, "id", "tag")
	if err != nil {
		return nil, err
	}
	return scope.LoadOwned[models.Tag](r.Context(), h.db, s, id, "Tag")
}
