package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hugh/go-marks/internal/database/models"
	"gorm.io/gorm"
)

type AnalyticsHandler struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewAnalyticsHandler(db *gorm.DB, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{db: db, logger: logger, now: time.Now}
}

type TopBookmark struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	VisitCount int64  `json:"visit_count"`
	TimeSpent  int64  `json:"time_spent"`
}

type TagCount struct {
	TagID string `json:"tag_id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type AnalyticsSummary struct {
	TotalBookmarks  int64         `json:"total_bookmarks"`
	Favorites       int64         `json:"favorites"`
	Archived        int64         `json:"archived"`
	CreatedLast30d  int64         `json:"created_last_30_days"`
	TotalVisits     int64         `json:"total_visits"`
	TotalTimeSpent  int64         `json:"total_time_spent"`
	TotalTags       int64         `json:"total_tags"`
	TotalCategories int64         `json:"total_categories"`
	ActiveHabits    int64         `json:"active_habits"`
	CheckInsLast7d  int64         `json:"check_ins_last_7_days"`
	TopByVisits     []TopBookmark `json:"top_by_visits"`
	TopByTimeSpent  []TopBookmark `json:"top_by_time_spent"`
	BookmarksPerTag []TagCount    `json:"bookmarks_per_tag"`
	GeneratedAt     string        `json:"generated_at"`
}

// Summary handles GET /api/v1/analytics/summary. ?limit= sizes the top
// lists (default 5, at most 20).
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	limit := 5
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if limit > 20 {
		limit = 20
	}

	now := h.now().UTC()
	db := h.db.WithContext(r.Context())
	bookmarks := func() *gorm.DB {
		return db.Model(&models.Bookmark{}).Scopes(s.Owned("bookmarks"))
	}

	var summary AnalyticsSummary
	counts := []struct {
		query *gorm.DB
		dest  *int64
	}{
		{bookmarks(), &summary.TotalBookmarks},
		{bookmarks().Where("bookmarks.is_favorite = ?", true), &summary.Favorites},
		{bookmarks().Where("bookmarks.is_archived = ?", true), &summary.Archived},
		{bookmarks().Where("bookmarks.created_at >= ?", now.AddDate(0, 0, -30)), &summary.CreatedLast30d},
		{db.Model(&models.Tag{}).Scopes(s.Owned("")), &summary.TotalTags},
		{db.Model(&models.Category{}).Scopes(s.Owned("")), &summary.TotalCategories},
		{
			db.Model(&models.Habit{}).
				Where("is_active = ? AND bookmark_id IN (?)", true, bookmarks().Select("bookmarks.id")),
			&summary.ActiveHabits,
		},
		{
			db.Model(&models.HabitCheckIn{}).
				Where("completed = ? AND date >= ?", true, now.AddDate(0, 0, -6).Format(models.CheckInDateLayout)).
				Where("habit_id IN (?)", db.Model(&models.Habit{}).Select("id").
					Where("bookmark_id IN (?)", bookmarks().Select("bookmarks.id"))),
			&summary.CheckInsLast7d,
		},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	var totals struct {
		Visits    int64
		TimeSpent int64
	}
	if err := bookmarks().
		Select("COALESCE(SUM(bookmarks.visit_count), 0) AS visits, COALESCE(SUM(bookmarks.time_spent), 0) AS time_spent").
		Scan(&totals).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}
	summary.TotalVisits = totals.Visits
	summary.TotalTimeSpent = totals.TimeSpent

	if summary.TopByVisits, err = h.top(bookmarks().Where("bookmarks.visit_count > 0"), "bookmarks.visit_count DESC", limit); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if summary.TopByTimeSpent, err = h.top(bookmarks().Where("bookmarks.time_spent > 0"), "bookmarks.time_spent DESC", limit); err != nil {
		writeError(w, h.logger, err)
		return
	}

	summary.BookmarksPerTag = []TagCount{}
	if err := db.Table("tags").
		Select("tags.id AS tag_id, tags.name AS name, COUNT(bookmark_tags.bookmark_id) AS count").
		Joins("LEFT JOIN bookmark_tags ON bookmark_tags.tag_id = tags.id").
		Scopes(s.Owned("tags")).
		Group("tags.id, tags.name").
		Order("count DESC, tags.name ASC").
		Scan(&summary.BookmarksPerTag).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	summary.GeneratedAt = formatTime(now)
	writeJSON(w, http.StatusOK, summary)
}

func (h *AnalyticsHandler) top(query *gorm.DB, order string, limit int) ([]TopBookmark, error) {
	var rows []models.Bookmark
	if err := query.Order(order).Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	top := make([]TopBookmark, len(rows))
	for i, b := range rows {
		top[i] = TopBookmark{
			ID:         b.ID.String(),
			Title:      b.Title,
			URL:        b.URL,
			VisitCount: b.VisitCount,
			TimeSpent:  b.TimeSpent,
		}
	}
	return top, nil
}
