package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/api/dto"
	"github.com/hugh/go-marks/internal/api/validation"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/database/models"
	"gorm.io/gorm"
)

type HabitRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Frequency   *string `json:"frequency,omitempty"`
	TargetCount *int    `json:"target_count,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

func (r HabitRequest) Validate(creating bool) map[string]string {
	errs := make(map[string]string)
	if creating && r.Name == nil {
		errs["name"] = "Name is required"
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errs["name"] = "Name cannot be empty"
	}
	if r.Frequency != nil {
		switch models.HabitFrequency(*r.Frequency) {
		case models.FrequencyDaily, models.FrequencyWeekly:
		default:
			errs["frequency"] = "Frequency must be one of: daily, weekly"
		}
	}
	if r.TargetCount != nil && *r.TargetCount < 1 {
		errs["target_count"] = "Target count must be at least 1"
	}
	return errs
}

func (r HabitRequest) updates() map[string]interface{} {
	u := make(map[string]interface{})
	if r.Name != nil {
		u["name"] = strings.TrimSpace(*r.Name)
	}
	if r.Description != nil {
		u["description"] = *r.Description
	}
	if r.Frequency != nil {
		u["frequency"] = *r.Frequency
	}
	if r.TargetCount != nil {
		u["target_count"] = *r.TargetCount
	}
	if r.IsActive != nil {
		u["is_active"] = *r.IsActive
	}
	return u
}

type HabitResponse struct {
	ID          string `json:"id"`
	BookmarkID  string `json:"bookmark_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Frequency   string `json:"frequency"`
	TargetCount int    `json:"target_count"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toHabitResponse(h models.Habit) HabitResponse {
	return HabitResponse{
		ID:          h.ID.String(),
		BookmarkID:  h.BookmarkID.String(),
		Name:        h.Name,
		Description: h.Description,
		Frequency:   string(h.Frequency),
		TargetCount: h.TargetCount,
		IsActive:    h.IsActive,
		CreatedAt:   formatTime(h.CreatedAt),
		UpdatedAt:   formatTime(h.UpdatedAt),
	}
}

// CheckInRequest is optional. Without a body (or with none of completed,
// count and note) an existing check-in is toggled.
type CheckInRequest struct {
	Date      string  `json:"date,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
	Count     *int    `json:"count,omitempty"`
	Note      *string `json:"note,omitempty"`
}

func (r CheckInRequest) explicit() bool {
	return r.Completed != nil || r.Count != nil || r.Note != nil
}

type CheckInResponse struct {
	ID        string `json:"id"`
	HabitID   string `json:"habit_id"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Count     int    `json:"count"`
	Note      string `json:"note,omitempty"`
}

func toCheckInResponse(c models.HabitCheckIn) CheckInResponse {
	return CheckInResponse{
		ID:        c.ID.String(),
		HabitID:   c.HabitID.String(),
		Date:      c.Date,
		Completed: c.Completed,
		Count:     c.Count,
		Note:      c.Note,
	}
}

// ListHabits handles GET /api/v1/habits/{bookmarkID}. Inactive habits are
// included only with include_inactive=true.
func (h *ToolHandler) ListHabits(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	habits, err := listChildren[models.Habit](h, r, "created_at ASC", func(db *gorm.DB) *gorm.DB {
		if !includeInactive {
			db = db.Where("is_active = ?", true)
		}
		return db
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]HabitResponse, len(habits))
	for i, hb := range habits {
		response[i] = toHabitResponse(hb)
	}
	writeJSON(w, http.StatusOK, response)
}

// CreateHabit handles POST /api/v1/habits/{bookmarkID}
func (h *ToolHandler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	_, bookmark, err := h.parent(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req HabitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(true); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	habit := models.Habit{
		BookmarkID:  bookmark.ID,
		Name:        strings.TrimSpace(*req.Name),
		Frequency:   models.FrequencyDaily,
		TargetCount: 1,
		IsActive:    true,
	}
	if req.Description != nil {
		habit.Description = *req.Description
	}
	if req.Frequency != nil {
		habit.Frequency = models.HabitFrequency(*req.Frequency)
	}
	if req.TargetCount != nil {
		habit.TargetCount = *req.TargetCount
	}

	if err := h.db.WithContext(r.Context()).Create(&habit).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toHabitResponse(habit))
}

// UpdateHabit handles PATCH /api/v1/habits/{bookmarkID}/{id}
func (h *ToolHandler) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	_, habit, err := child[models.Habit](h, r, "Habit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req HabitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(false); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	if err := h.saveChild(r, habit, req.updates()); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toHabitResponse(*habit))
}

// DeleteHabit handles DELETE /api/v1/habits/{bookmarkID}/{id}. The habit is
// deactivated so its check-in history is kept.
func (h *ToolHandler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	_, habit, err := child[models.Habit](h, r, "Habit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.saveChild(r, habit, map[string]interface{}{"is_active": false}); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Habit deactivated"})
}

// ListCheckIns handles GET /api/v1/habits/{bookmarkID}/{id}/checkins with
// optional from and to dates (inclusive).
func (h *ToolHandler) ListCheckIns(w http.ResponseWriter, r *http.Request) {
	_, habit, err := child[models.Habit](h, r, "Habit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	q := r.URL.Query()
	query := h.db.WithContext(r.Context()).Where("habit_id = ?", habit.ID)
	for param, cond := range map[string]string{"from": "date >= ?", "to": "date <= ?"} {
		v := q.Get(param)
		if v == "" {
			continue
		}
		if !validation.IsValidDate(v) {
			writeError(w, h.logger, apperr.Invalid("Invalid "+param+" date, expected YYYY-MM-DD"))
			return
		}
		query = query.Where(cond, v)
	}

	var checkIns []models.HabitCheckIn
	if err := query.Order("date DESC").Find(&checkIns).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]CheckInResponse, len(checkIns))
	for i, c := range checkIns {
		response[i] = toCheckInResponse(c)
	}
	writeJSON(w, http.StatusOK, response)
}

// CheckIn handles POST /api/v1/habits/{bookmarkID}/{id}/checkins. The day
// comes from ?date=, then the body, then today (UTC). A new day is recorded
// as completed; an existing one is updated from the body or toggled.
func (h *ToolHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	_, habit, err := child[models.Habit](h, r, "Habit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req CheckInRequest
	if _, err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = req.Date
	}
	if date == "" {
		date = time.Now().UTC().Format(models.CheckInDateLayout)
	}

	errs := make(map[string]string)
	if !validation.IsValidDate(date) {
		errs["date"] = "Date must be YYYY-MM-DD"
	}
	if req.Count != nil && *req.Count < 0 {
		errs["count"] = "Count cannot be negative"
	}
	if !habit.IsActive {
		errs["habit"] = "Habit is inactive"
	}
	if len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	var existing models.HabitCheckIn
	err = h.db.WithContext(r.Context()).
		Where("habit_id = ? AND date = ?", habit.ID, date).
		First(&existing).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		checkIn := newCheckIn(habit.ID, date, req)
		if err := h.db.WithContext(r.Context()).Create(&checkIn).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				err = apperr.Conflict("check-in for %s was recorded concurrently", date)
			}
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toCheckInResponse(checkIn))

	case err != nil:
		writeError(w, h.logger, err)

	default:
		updates := checkInUpdates(existing, req)
		if err := h.db.WithContext(r.Context()).Model(&existing).Updates(updates).Error; err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toCheckInResponse(existing))
	}
}

func newCheckIn(habitID uuid.UUID, date string, req CheckInRequest) models.HabitCheckIn {
	c := models.HabitCheckIn{
		HabitID:   habitID,
		Date:      date,
		Completed: true,
		Count:     1,
	}
	if req.Completed != nil {
		c.Completed = *req.Completed
		if !c.Completed {
			c.Count = 0
		}
	}
	if req.Count != nil {
		c.Count = *req.Count
	}
	if req.Note != nil {
		c.Note = *req.Note
	}
	return c
}

func checkInUpdates(existing models.HabitCheckIn, req CheckInRequest) map[string]interface{} {
	if !req.explicit() {
		completed := !existing.Completed
		count := 0
		if completed {
			count = existing.Count
			if count < 1 {
				count = 1
			}
		}
		return map[string]interface{}{"completed": completed, "count": count}
	}

	u := make(map[string]interface{})
	if req.Completed != nil {
		u["completed"] = *req.Completed
	}
	if req.Count != nil {
		u["count"] = *req.Count
	}
	if req.Note != nil {
		u["note"] = *req.Note
	}
	return u
}
