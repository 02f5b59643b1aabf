package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/api/dto"
	"github.com/hugh/go-marks/internal/api/validation"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/internal/scope"
	"gorm.io/gorm"
)

// CategoryHandler serves categories and the folders that group them.
type CategoryHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewCategoryHandler(db *gorm.DB, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{db: db, logger: logger}
}

type CategoryRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	FolderID    *string `json:"folder_id,omitempty"`
}

func (r CategoryRequest) Validate(creating bool) map[string]string {
	errors := make(map[string]string)
	if creating && r.Name == nil {
		errors["name"] = "Name is required"
	}
	if r.Name != nil {
		name := validation.NormalizeName(*r.Name)
		if name == "" {
			errors["name"] = "Name cannot be empty"
		} else if len(name) > 255 {
			errors["name"] = "Name must be at most 255 characters"
		}
	}
	if r.Color != nil && *r.Color != "" && !validation.IsValidHexColor(*r.Color) {
		errors["color"] = "Color must be a hex value such as #3b82f6"
	}
	return errors
}

type CategoryResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Color       string  `json:"color,omitempty"`
	Icon        string  `json:"icon,omitempty"`
	FolderID    *string `json:"folder_id,omitempty"`
	CompanyID   *string `json:"company_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func toCategoryResponse(c models.Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		Color:       c.Color,
		Icon:        c.Icon,
		FolderID:    idString(c.FolderID),
		CompanyID:   idString(c.CompanyID),
		CreatedAt:   formatTime(c.CreatedAt),
	}
}

type FolderRequest struct {
	Name     *string `json:"name,omitempty"`
	Color    *string `json:"color,omitempty"`
	Position *int    `json:"position,omitempty"`
}

func (r FolderRequest) Validate(creating bool) map[string]string {
	errors := make(map[string]string)
	if creating && r.Name == nil {
		errors["name"] = "Name is required"
	}
	if r.Name != nil && validation.NormalizeName(*r.Name) == "" {
		errors["name"] = "Name cannot be empty"
	}
	if r.Color != nil && *r.Color != "" && !validation.IsValidHexColor(*r.Color) {
		errors["color"] = "Color must be a hex value such as #3b82f6"
	}
	if r.Position != nil && *r.Position < 0 {
		errors["position"] = "Position cannot be negative"
	}
	return errors
}

type FolderResponse struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Color      string             `json:"color,omitempty"`
	Position   int                `json:"position"`
	CompanyID  *string            `json:"company_id,omitempty"`
	Categories []CategoryResponse `json:"categories"`
	CreatedAt  string             `json:"created_at"`
}

func toFolderResponse(f models.CategoryFolder) FolderResponse {
	resp := FolderResponse{
		ID:         f.ID.String(),
		Name:       f.Name,
		Color:      f.Color,
		Position:   f.Position,
		CompanyID:  idString(f.CompanyID),
		Categories: make([]CategoryResponse, len(f.Categories)),
		CreatedAt:  formatTime(f.CreatedAt),
	}
	for i, c := range f.Categories {
		resp.Categories[i] = toCategoryResponse(c)
	}
	return resp
}

// List handles GET /api/v1/categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	query := h.db.WithContext(r.Context()).Scopes(s.Owned("")).Order("name ASC")
	if raw := r.URL.Query().Get("folder_id"); raw != "" {
		folderID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, h.logger, apperr.Invalid("Invalid folder_id"))
			return
		}
		query = query.Where("folder_id = ?", folderID)
	}

	var categories []models.Category
	if err := query.Find(&categories).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		response[i] = toCategoryResponse(c)
	}

	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/categories
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	errs := req.Validate(true)
	folderID := parseOptionalID(req.FolderID, "folder_id", errs)
	if len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	if folderID != nil {
		if _, err := scope.LoadOwned[models.CategoryFolder](r.Context(), h.db, s, *folderID, "Folder"); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	category := models.Category{
		UserID:    s.UserID,
		CompanyID: s.CompanyForNew(),
		FolderID:  folderID,
		Name:      validation.NormalizeName(*req.Name),
	}
	applyCategoryFields(&category, req)

	if err := h.db.WithContext(r.Context()).Create(&category).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCategoryResponse(category))
}

func applyCategoryFields(c *models.Category, req CategoryRequest) {
	if req.Name != nil {
		c.Name = validation.NormalizeName(*req.Name)
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Color != nil {
		c.Color = strings.ToLower(*req.Color)
	}
	if req.Icon != nil {
		c.Icon = *req.Icon
	}
}

// Get handles GET /api/v1/categories/{id}
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	category, err := h.loadCategory(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toCategoryResponse(*category))
}

// Update handles PATCH /api/v1/categories/{id}. An empty folder_id moves
// the category out of its folder.
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	category, err := h.loadCategory(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	errs := req.Validate(false)
	folderID := parseOptionalID(req.FolderID, "folder_id", errs)
	if len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	if folderID != nil {
		s, _ := requestScope(r)
		if _, err := scope.LoadOwned[models.CategoryFolder](r.Context(), h.db, s, *folderID, "Folder"); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	applyCategoryFields(category, req)
	if req.FolderID != nil {
		category.FolderID = folderID
	}

	if err := h.db.WithContext(r.Context()).Save(category).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toCategoryResponse(*category))
}

// Delete handles DELETE /api/v1/categories/{id}
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	category, err := h.loadCategory(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM bookmark_categories WHERE category_id = ?", category.ID).Error; err != nil {
			return err
		}
		return tx.Delete(category).Error
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Category deleted"})
}

func (h *CategoryHandler) loadCategory(r *http.Request) (*models.Category, error) {
	s, err := requestScope(r)
	if err != nil {
		return nil, err
	}
	id, err := urlID(r, "id", "category")
	if err != nil {
		return nil, err
	}
	return scope.LoadOwned[models.Category](r.Context(), h.db, s, id, "Category")
}

// ListFolders handles GET /api/v1/folders
func (h *CategoryHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var folders []models.CategoryFolder
	if err := h.db.WithContext(r.Context()).
		Scopes(s.Owned("")).
		Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("categories.name ASC") }).
		Order("position ASC, name ASC").
		Find(&folders).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]FolderResponse, len(folders))
	for i, f := range folders {
		response[i] = toFolderResponse(f)
	}

	writeJSON(w, http.StatusOK, response)
}

// CreateFolder handles POST /api/v1/folders
func (h *CategoryHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req FolderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(true); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	folder := models.CategoryFolder{
		UserID:    s.UserID,
		CompanyID: s.CompanyForNew(),
	}
	applyFolderFields(&folder, req)

	if err := h.db.WithContext(r.Context()).Create(&folder).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFolderResponse(folder))
}

func applyFolderFields(f *models.CategoryFolder, req FolderRequest) {
	if req.Name != nil {
		f.Name = validation.NormalizeName(*req.Name)
	}
	if req.Color != nil {
		f.Color = strings.ToLower(*req.Color)
	}
	if req.Position != nil {
		f.Position = *req.Position
	}
}

// UpdateFolder handles PATCH /api/v1/folders/{id}
func (h *CategoryHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	folder, err := h.loadFolder(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req FolderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(false); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	applyFolderFields(folder, req)
	if err := h.db.WithContext(r.Context()).Save(folder).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toFolderResponse(*folder))
}

// DeleteFolder handles DELETE /api/v1/folders/{id}. Categories and bookmarks
// inside it are kept and moved to the top level.
func (h *CategoryHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	folder, err := h.loadFolder(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		for _, row := range []interface{}{&models.Category{}, &models.Bookmark{}} {
			if err := tx.Model(row).Where("folder_id = ?", folder.ID).Update("folder_id", nil).Error; err != nil {
				return err
			}
		}
		return tx.Delete(folder).Error
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Folder deleted"})
}

func (h *CategoryHandler) loadFolder(r *http.Request) (*models.CategoryFolder, error) {
	s, err := requestScope(r)
	if err != nil {
		return nil, err
	}
	id, err := urlID(r, "id", "folder")
	if err != nil {
		return nil, err
	}
	return scope.LoadOwned[models.CategoryFolder](r.Context(), h.db, s, id, "Folder")
}
