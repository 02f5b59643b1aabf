package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/hugh/go-marks/internal/api/handlers"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsHandler_Summary(t *testing.T) {
	a := setupAPITestRouter(t)
	popular := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
	deep := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
	idle := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
	require.NoError(t, a.DB.Model(idle).Updates(map[string]interface{}{"is_archived": true, "is_favorite": true}).Error)

	for i := 0; i < 3; i++ {
		rr := a.do(t, "POST", "/api/v1/bookmarks/"+popular.ID.String()+"/engagement", map[string]interface{}{"visit": true, "time_spent": 5}, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := a.do(t, "POST", "/api/v1/bookmarks/"+deep.ID.String()+"/engagement", map[string]interface{}{"visit": true, "time_spent": 600}, a.Token)
	require.Equal(t, http.StatusOK, rr.Code)

	tag := testutil.CreateTestTag(t, a.DB, a.User.ID, "busy")
	testutil.CreateTestTag(t, a.DB, a.User.ID, "quiet")
	for _, b := range []*models.Bookmark{popular, deep} {
		require.NoError(t, a.DB.Table("bookmark_tags").Create(map[string]interface{}{"bookmark_id": b.ID, "tag_id": tag.ID}).Error)
	}
	testutil.CreateTestCategory(t, a.DB, a.User.ID, "Reading")

	habit := testutil.CreateTestHabit(t, a.DB, popular.ID)
	today := time.Now().UTC().Format(models.CheckInDateLayout)
	require.NoError(t, a.DB.Create(&models.HabitCheckIn{HabitID: habit.ID, Date: today, Completed: true, Count: 1}).Error)
	require.NoError(t, a.DB.Create(&models.HabitCheckIn{HabitID: habit.ID, Date: "2001-01-01", Completed: true, Count: 1}).Error)

	other, _ := a.AddUser(t)
	testutil.CreateTestBookmark(t, a.DB, other.ID, nil)
	testutil.CreateTestTag(t, a.DB, other.ID, "busy")

	rr = a.do(t, "GET", "/api/v1/analytics/summary?limit=1", nil, a.Token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var summary handlers.AnalyticsSummary
	testutil.ParseJSONResponse(t, rr, &summary)

	assert.Equal(t, int64(3), summary.TotalBookmarks)
	assert.Equal(t, int64(1), summary.Favorites)
	assert.Equal(t, int64(1), summary.Archived)
	assert.Equal(t, int64(4), summary.TotalVisits)
	assert.Equal(t, int64(615), summary.TotalTimeSpent)
	assert.Equal(t, int64(2), summary.TotalTags)
	assert.Equal(t, int64(1), summary.TotalCategories)
	assert.Equal(t, int64(1), summary.ActiveHabits)
	assert.Equal(t, int64(1), summary.CheckInsLast7d)

	require.Len(t, summary.TopByVisits, 1)
	assert.Equal(t, popular.ID.String(), summary.TopByVisits[0].ID)
	require.Len(t, summary.TopByTimeSpent, 1)
	assert.Equal(t, deep.ID.String(), summary.TopByTimeSpent[0].ID)

	require.Len(t, summary.BookmarksPerTag, 2)
	assert.Equal(t, "busy", summary.BookmarksPerTag[0].Name)
	assert.Equal(t, int64(2), summary.BookmarksPerTag[0].Count)
	assert.Equal(t, "quiet", summary.BookmarksPerTag[1].Name)
	assert.Zero(t, summary.BookmarksPerTag[1].Count)
}

func TestAnalyticsHandler_Empty(t *testing.T) {
	a := setupAPITestRouter(t)

	rr := a.do(t, "GET", "/api/v1/analytics/summary", nil, a.Token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var summary handlers.AnalyticsSummary
	testutil.ParseJSONResponse(t, rr, &summary)
	assert.Zero(t, summary.TotalBookmarks)
	assert.Zero(t, summary.TotalVisits)
	assert.Empty(t, summary.TopByVisits)
	assert.Empty(t, summary.BookmarksPerTag)
	assert.NotEmpty(t, summary.GeneratedAt)
}
