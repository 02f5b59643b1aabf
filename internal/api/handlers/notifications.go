package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/go-marks/internal/api/dto"
	"github.com/hugh/go-marks/internal/api/validation"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/internal/reminders"
	"github.com/hugh/go-marks/internal/scope"
	"github.com/hugh/go-marks/pkg/crypto"
	"github.com/hugh/go-marks/pkg/util"
	"gorm.io/gorm"
)

// NotificationHandler keeps reminder schedules. Delivery happens elsewhere;
// triggering here only records history.
type NotificationHandler struct {
	db        *gorm.DB
	guard     *scope.Guard
	encryptor *crypto.Encryptor
	reminders *reminders.Service
	logger    *slog.Logger
	now       func() time.Time
}

func NewNotificationHandler(db *gorm.DB, encryptor *crypto.Encryptor, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		db:        db,
		guard:     scope.NewGuard(db),
		encryptor: encryptor,
		reminders: reminders.NewService(db, logger),
		logger:    logger,
		now:       time.Now,
	}
}

type NotificationRequest struct {
	Title       *string `json:"title,omitempty"`
	Message     *string `json:"message,omitempty"`
	ScheduledAt *string `json:"scheduled_at,omitempty"`
	Recurrence  *string `json:"recurrence,omitempty"`
	Channel     *string `json:"channel,omitempty"`
	Target      *string `json:"target,omitempty"`
	BookmarkID  *string `json:"bookmark_id,omitempty"`
	IsEnabled   *bool   `json:"is_enabled,omitempty"`
}

func (r NotificationRequest) Validate(creating bool) (map[string]string, *time.Time) {
	errs := make(map[string]string)
	var scheduledAt *time.Time

	if creating {
		if r.Title == nil {
			errs["title"] = "Title is required"
		}
		if r.ScheduledAt == nil {
			errs["scheduled_at"] = "Scheduled time is required"
		}
	}
	if r.Title != nil {
		if strings.TrimSpace(*r.Title) == "" {
			errs["title"] = "Title cannot be empty"
		} else if len(*r.Title) > 255 {
			errs["title"] = "Title must be at most 255 characters"
		}
	}
	if r.ScheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *r.ScheduledAt)
		if err != nil {
			errs["scheduled_at"] = "Scheduled time must be an RFC 3339 timestamp"
		} else {
			t = t.UTC()
			scheduledAt = &t
		}
	}
	if r.Recurrence != nil && *r.Recurrence != "" {
		if err := util.ValidateCronExpr(*r.Recurrence); err != nil {
			errs["recurrence"] = err.Error()
		}
	}
	if r.Channel != nil && !models.NotificationChannel(*r.Channel).Valid() {
		errs["channel"] = "Channel must be one of: in_app, email, webhook"
	}
	return errs, scheduledAt
}

// validateTarget checks the delivery target against its channel.
func validateTarget(channel models.NotificationChannel, target string, errs map[string]string) {
	switch channel {
	case models.ChannelEmail:
		if !validation.IsValidEmail(target) {
			errs["target"] = "Email channel needs a valid email address"
		}
	case models.ChannelWebhook:
		if !validation.IsValidURL(target) {
			errs["target"] = "Webhook channel needs an http or https URL"
		}
	case models.ChannelInApp:
		if target != "" {
			errs["target"] = "In-app reminders take no target"
		}
	}
}

type NotificationResponse struct {
	ID              string  `json:"id"`
	BookmarkID      *string `json:"bookmark_id,omitempty"`
	Title           string  `json:"title"`
	Message         string  `json:"message,omitempty"`
	ScheduledAt     string  `json:"scheduled_at"`
	Recurrence      string  `json:"recurrence,omitempty"`
	Channel         string  `json:"channel"`
	Target          string  `json:"target,omitempty"`
	IsEnabled       bool    `json:"is_enabled"`
	NextRunAt       *string `json:"next_run_at,omitempty"`
	LastTriggeredAt *string `json:"last_triggered_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func (h *NotificationHandler) toResponse(s models.NotificationSchedule, withTarget bool) NotificationResponse {
	resp := NotificationResponse{
		ID:              s.ID.String(),
		BookmarkID:      idString(s.BookmarkID),
		Title:           s.Title,
		Message:         s.Message,
		ScheduledAt:     formatTime(s.ScheduledAt),
		Recurrence:      s.Recurrence,
		Channel:         string(s.Channel),
		IsEnabled:       s.IsEnabled,
		NextRunAt:       formatTimePtr(s.NextRunAt),
		LastTriggeredAt: formatTimePtr(s.LastTriggeredAt),
		CreatedAt:       formatTime(s.CreatedAt),
		UpdatedAt:       formatTime(s.UpdatedAt),
	}
	if withTarget && len(s.EncryptedTarget) > 0 {
		target, err := h.encryptor.OpenString(s.EncryptedTarget)
		if err != nil {
			h.logger.Warn("failed to open notification target", "schedule_id", s.ID, "error", err)
		} else {
			resp.Target = target
		}
	}
	return resp
}

type HistoryResponse struct {
	ID         string `json:"id"`
	ScheduleID string `json:"schedule_id"`
	Status     string `json:"status"`
	Title      string `json:"title"`
	Message    string `json:"message,omitempty"`
	FiredAt    string `json:"fired_at"`
}

func toHistoryResponse(e models.NotificationHistory) HistoryResponse {
	return HistoryResponse{
		ID:         e.ID.String(),
		ScheduleID: e.ScheduleID.String(),
		Status:     string(e.Status),
		Title:      e.Title,
		Message:    e.Message,
		FiredAt:    formatTime(e.FiredAt),
	}
}

// List handles GET /api/v1/notifications. Targets are left out of listings.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	query := h.db.WithContext(r.Context()).Where("user_id = ?", s.UserID)
	if enabled := r.URL.Query().Get("enabled"); enabled != "" {
		query = query.Where("is_enabled = ?", enabled == "true")
	}

	var schedules []models.NotificationSchedule
	if err := query.Order("next_run_at ASC, created_at ASC").Find(&schedules).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]NotificationResponse, len(schedules))
	for i, sc := range schedules {
		response[i] = h.toResponse(sc, false)
	}
	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/notifications
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req NotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	errs, scheduledAt := req.Validate(true)
	bookmarkID := parseOptionalID(req.BookmarkID, "bookmark_id", errs)

	schedule := models.NotificationSchedule{
		UserID:     s.UserID,
		BookmarkID: bookmarkID,
		Channel:    models.ChannelInApp,
		IsEnabled:  true,
	}
	if req.Channel != nil {
		schedule.Channel = models.NotificationChannel(*req.Channel)
	}
	target := ""
	if req.Target != nil {
		target = strings.TrimSpace(*req.Target)
	}
	if _, bad := errs["channel"]; !bad {
		validateTarget(schedule.Channel, target, errs)
	}
	if len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	if bookmarkID != nil {
		if _, err := h.guard.Bookmark(r.Context(), s, *bookmarkID); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	schedule.Title = strings.TrimSpace(*req.Title)
	schedule.ScheduledAt = *scheduledAt
	if req.Message != nil {
		schedule.Message = *req.Message
	}
	if req.Recurrence != nil {
		schedule.Recurrence = strings.TrimSpace(*req.Recurrence)
	}
	if req.IsEnabled != nil {
		schedule.IsEnabled = *req.IsEnabled
	}
	if target != "" {
		sealed, err := h.encryptor.SealString(target)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		schedule.EncryptedTarget = sealed
	}

	next, err := reminders.NextRun(&schedule, h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	schedule.NextRunAt = next

	if err := h.db.WithContext(r.Context()).Create(&schedule).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(schedule, true))
}

// Get handles GET /api/v1/notifications/{id}
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(*schedule, true))
}

// Update handles PATCH /api/v1/notifications/{id}. Changing the time, the
// recurrence or the enabled flag recomputes next_run_at; a new time or
// recurrence on a fired one-shot arms it again.
func (h *NotificationHandler) Update(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req NotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	errs, scheduledAt := req.Validate(false)
	bookmarkID := parseOptionalID(req.BookmarkID, "bookmark_id", errs)

	channel := schedule.Channel
	if req.Channel != nil {
		channel = models.NotificationChannel(*req.Channel)
	}

	target, targetChanged := "", false
	if req.Target != nil {
		target, targetChanged = strings.TrimSpace(*req.Target), true
	} else if channel != schedule.Channel {
		// A new channel needs a new target; an old one never carries over.
		targetChanged = true
	}
	if _, bad := errs["channel"]; !bad && targetChanged {
		validateTarget(channel, target, errs)
	}
	if len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	s, _ := requestScope(r)
	if bookmarkID != nil {
		if _, err := h.guard.Bookmark(r.Context(), s, *bookmarkID); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
		schedule.Title = updates["title"].(string)
	}
	if req.Message != nil {
		updates["message"] = *req.Message
		schedule.Message = *req.Message
	}
	if req.BookmarkID != nil {
		updates["bookmark_id"] = bookmarkID
		schedule.BookmarkID = bookmarkID
	}
	if req.Channel != nil {
		updates["channel"] = channel
		schedule.Channel = channel
	}
	if targetChanged {
		var sealed []byte
		if target != "" {
			sealed, err = h.encryptor.SealString(target)
			if err != nil {
				writeError(w, h.logger, err)
				return
			}
		}
		updates["encrypted_target"] = sealed
		schedule.EncryptedTarget = sealed
	}

	reschedule := false
	if scheduledAt != nil {
		if !scheduledAt.Equal(schedule.ScheduledAt) {
			schedule.LastTriggeredAt = nil
			updates["last_triggered_at"] = nil
		}
		schedule.ScheduledAt = *scheduledAt
		updates["scheduled_at"] = *scheduledAt
		reschedule = true
	}
	if req.Recurrence != nil {
		recurrence := strings.TrimSpace(*req.Recurrence)
		if recurrence != schedule.Recurrence {
			schedule.LastTriggeredAt = nil
			updates["last_triggered_at"] = nil
		}
		schedule.Recurrence = recurrence
		updates["recurrence"] = recurrence
		reschedule = true
	}
	if req.IsEnabled != nil {
		schedule.IsEnabled = *req.IsEnabled
		updates["is_enabled"] = *req.IsEnabled
		reschedule = true
	}
	if reschedule {
		next, err := reminders.NextRun(schedule, h.now())
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		schedule.NextRunAt = next
		updates["next_run_at"] = next
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(schedule).Updates(updates).Error; err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, h.toResponse(*schedule, true))
}

// Delete handles DELETE /api/v1/notifications/{id}. History rows stay.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(schedule).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Notification deleted"})
}

// Trigger handles POST /api/v1/notifications/{id}/trigger
func (h *NotificationHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.load(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	entry, err := h.reminders.Fire(r.Context(), schedule)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("notification triggered manually", "schedule_id", schedule.ID)
	writeJSON(w, http.StatusCreated, toHistoryResponse(*entry))
}

// History handles GET /api/v1/notifications/history and
// GET /api/v1/notifications/{id}/history.
func (h *NotificationHandler) History(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	pagination := dto.PaginationFromQuery(r.URL.Query())
	query := h.db.WithContext(r.Context()).Model(&models.NotificationHistory{}).Where("user_id = ?", s.UserID)

	if raw := chi.URLParam(r, "id"); raw != "" {
		schedule, err := h.load(r)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		query = query.Where("schedule_id = ?", schedule.ID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	var entries []models.NotificationHistory
	if err := query.Order("fired_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&entries).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]HistoryResponse, len(entries))
	for i, e := range entries {
		response[i] = toHistoryResponse(e)
	}
	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, pagination))
}

func (h *NotificationHandler) load(r *http.Request) (*models.NotificationSchedule, error) {
	s, err := requestScope(r)
	if err != nil {
		return nil, err
	}
	id, err := urlID(r, "id", "notification")
	if err != nil {
		return nil, err
	}

	var schedule models.NotificationSchedule
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND user_id = ?", id, s.UserID).
		First(&schedule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Notification")
		}
		return nil, err
	}
	return &schedule, nil
}
