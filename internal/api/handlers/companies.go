package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/api/dto"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/internal/scope"
	"gorm.io/gorm"
)

type CompanyHandler struct {
	db     *gorm.DB
	logger *slog.Logger
	secure bool
}

func NewCompanyHandler(db *gorm.DB, logger *slog.Logger, secureCookies bool) *CompanyHandler {
	return &CompanyHandler{db: db, logger: logger, secure: secureCookies}
}

type CompanyRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (r CompanyRequest) Validate(creating bool) map[string]string {
	errors := make(map[string]string)
	if creating && r.Name == nil {
		errors["name"] = "Name is required"
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errors["name"] = "Name cannot be empty"
	}
	return errors
}

type SetActiveCompanyRequest struct {
	CompanyID string `json:"company_id"`
}

func toCompanyDTO(c models.Company, active *uuid.UUID) dto.CompanyDTO {
	return dto.CompanyDTO{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		Active:      active != nil && *active == c.ID,
		CreatedAt:   formatTime(c.CreatedAt),
		UpdatedAt:   formatTime(c.UpdatedAt),
	}
}

// List handles GET /api/v1/companies
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var companies []models.Company
	if err := h.db.WithContext(r.Context()).
		Where("owner_id = ?", s.UserID).
		Order("created_at ASC").
		Find(&companies).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]dto.CompanyDTO, len(companies))
	for i, c := range companies {
		response[i] = toCompanyDTO(c, s.CompanyID)
	}

	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/companies
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req CompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(true); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	company := models.Company{
		OwnerID: s.UserID,
		Name:    strings.TrimSpace(*req.Name),
	}
	if req.Description != nil {
		company.Description = *req.Description
	}

	if err := h.db.WithContext(r.Context()).Create(&company).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCompanyDTO(company, s.CompanyID))
}

// Get handles GET /api/v1/companies/{id}
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, company, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toCompanyDTO(*company, s.CompanyID))
}

// Update handles PATCH /api/v1/companies/{id}
func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	s, company, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req CompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(false); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	if req.Name != nil {
		company.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		company.Description = *req.Description
	}

	if err := h.db.WithContext(r.Context()).Save(company).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toCompanyDTO(*company, s.CompanyID))
}

// Delete handles DELETE /api/v1/companies/{id}. Rows filed under the company
// fall back to unscoped rather than being removed.
func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, company, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		for _, row := range []interface{}{&models.Bookmark{}, &models.Category{}, &models.CategoryFolder{}, &models.Tag{}} {
			if err := tx.Model(row).
				Where("company_id = ? AND user_id = ?", company.ID, company.OwnerID).
				Update("company_id", nil).Error; err != nil {
				return err
			}
		}
		return tx.Delete(company).Error
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Company deleted"})
}

// SetActive handles POST /api/v1/companies/active
func (h *CompanyHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req SetActiveCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	id, err := uuid.Parse(req.CompanyID)
	if err != nil {
		writeError(w, h.logger, apperr.ValidationFailed(map[string]string{"company_id": "Invalid company_id format"}))
		return
	}

	company, err := scope.LoadOwned[models.Company](r.Context(), h.db, s, id, "Company")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	setActiveCompanyCookie(w, company.ID.String(), h.secure)
	writeJSON(w, http.StatusOK, toCompanyDTO(*company, &company.ID))
}

func (h *CompanyHandler) load(r *http.Request) (scope.Scope, *models.Company, error) {
	s, err := requestScope(r)
	if err != nil {
		return s, nil, err
	}
	id, err := urlID(r, "id", "company")
	if err != nil {
		return s, nil, err
	}
	company, err := scope.LoadOwned[models.Company](r.Context(), h.db, s, id, "Company")
	return s, company, err
}
