package handlers_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/api/handlers"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookmarkPage struct {
	Data  []handlers.BookmarkResponse `json:"data"`
	Total int64                       `json:"total"`
}

func createBookmark(t *testing.T, a *apiTest, body map[string]interface{}) handlers.BookmarkResponse {
	t.Helper()

	rr := a.do(t, "POST", "/api/v1/bookmarks", body, a.Token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var b handlers.BookmarkResponse
	testutil.ParseJSONResponse(t, rr, &b)
	return b
}

func TestBookmarkHandler_Create(t *testing.T) {
	a := setupAPITestRouter(t)
	tag := testutil.CreateTestTag(t, a.DB, a.User.ID, "go")
	category := testutil.CreateTestCategory(t, a.DB, a.User.ID, "Reading")

	t.Run("with tags and categories", func(t *testing.T) {
		b := createBookmark(t, a, map[string]interface{}{
			"url":          "https://go.dev/doc",
			"title":        "Go docs",
			"tag_ids":      []string{tag.ID.String()},
			"category_ids": []string{category.ID.String()},
		})

		assert.Equal(t, "https://go.dev/doc", b.URL)
		require.Len(t, b.Tags, 1)
		assert.Equal(t, "go", b.Tags[0].Name)
		require.Len(t, b.Categories, 1)
		assert.Equal(t, "Reading", b.Categories[0].Name)
		assert.Zero(t, b.VisitCount)
	})

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
	}{
		{"missing url", map[string]interface{}{"title": "x"}, http.StatusBadRequest},
		{"relative url", map[string]interface{}{"url": "/relative"}, http.StatusBadRequest},
		{"unknown tag", map[string]interface{}{"url": "https://a.test", "tag_ids": []string{"6f1c1f5e-0000-4000-8000-000000000000"}}, http.StatusBadRequest},
		{"malformed tag id", map[string]interface{}{"url": "https://a.test", "tag_ids": []string{"nope"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := a.do(t, "POST", "/api/v1/bookmarks", tt.body, a.Token)
			assert.Equal(t, tt.status, rr.Code)
		})
	}

	t.Run("foreign tag is rejected", func(t *testing.T) {
		other, _ := a.AddUser(t)
		foreign := testutil.CreateTestTag(t, a.DB, other.ID, "theirs")

		rr := a.do(t, "POST", "/api/v1/bookmarks", map[string]interface{}{
			"url":     "https://a.test",
			"tag_ids": []string{foreign.ID.String()},
		}, a.Token)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestBookmarkHandler_OwnerOnly(t *testing.T) {
	a := setupAPITestRouter(t)
	bookmark := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
	_, otherToken := a.AddUser(t)
	path := "/api/v1/bookmarks/" + bookmark.ID.String()

	tests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{"GET", path, nil},
		{"PATCH", path, map[string]string{"title": "stolen"}},
		{"DELETE", path, nil},
		{"PUT", path + "/tags", map[string][]string{"ids": {}}},
		{"POST", path + "/engagement", map[string]bool{"visit": true}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := a.do(t, tt.method, tt.path, tt.body, otherToken)
			assert.Equal(t, http.StatusNotFound, rr.Code)
		})
	}

	var reloaded models.Bookmark
	require.NoError(t, a.DB.First(&reloaded, "id = ?", bookmark.ID).Error)
	assert.Equal(t, "Test Bookmark", reloaded.Title)
	assert.Zero(t, reloaded.VisitCount)
}

func TestBookmarkHandler_UpdateIsIdempotent(t *testing.T) {
	a := setupAPITestRouter(t)
	b := createBookmark(t, a, map[string]interface{}{"url": "https://example.com", "title": "Before"})
	path := "/api/v1/bookmarks/" + b.ID

	patch := map[string]interface{}{"title": "After", "is_favorite": true}
	var first, second handlers.BookmarkResponse

	rr := a.do(t, "PATCH", path, patch, a.Token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	testutil.ParseJSONResponse(t, rr, &first)

	rr = a.do(t, "PATCH", path, patch, a.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	testutil.ParseJSONResponse(t, rr, &second)

	assert.Equal(t, "After", second.Title)
	assert.True(t, second.IsFavorite)
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.IsFavorite, second.IsFavorite)
	assert.Equal(t, first.URL, second.URL)

	t.Run("false is written", func(t *testing.T) {
		rr := a.do(t, "PATCH", path, map[string]bool{"is_favorite": false}, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)

		var b handlers.BookmarkResponse
		testutil.ParseJSONResponse(t, rr, &b)
		assert.False(t, b.IsFavorite)
		assert.Equal(t, "After", b.Title)
	})
}

func TestBookmarkHandler_Engagement(t *testing.T) {
	a := setupAPITestRouter(t)
	bookmark := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
	path := "/api/v1/bookmarks/" + bookmark.ID.String() + "/engagement"

	for i := 0; i < 3; i++ {
		rr := a.do(t, "POST", path, map[string]interface{}{"time_spent": 30}, a.Token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	rr := a.do(t, "POST", path, map[string]interface{}{"visit": true, "time_spent": 10}, a.Token)
	require.Equal(t, http.StatusOK, rr.Code)

	var b handlers.BookmarkResponse
	testutil.ParseJSONResponse(t, rr, &b)
	assert.Equal(t, int64(100), b.TimeSpent)
	assert.Equal(t, int64(1), b.VisitCount)
	assert.NotNil(t, b.LastVisitedAt)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"empty report", map[string]interface{}{}},
		{"negative delta", map[string]interface{}{"time_spent": -5}},
		{"delta over a day", map[string]interface{}{"time_spent": 86401}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := a.do(t, "POST", path, tt.body, a.Token)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestBookmarkHandler_ReplaceTags(t *testing.T) {
	a := setupAPITestRouter(t)
	bookmark := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
	first := testutil.CreateTestTag(t, a.DB, a.User.ID, "first")
	second := testutil.CreateTestTag(t, a.DB, a.User.ID, "second")
	path := "/api/v1/bookmarks/" + bookmark.ID.String() + "/tags"

	rr := a.do(t, "PUT", path, map[string][]string{"ids": {first.ID.String(), second.ID.String()}}, a.Token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = a.do(t, "PUT", path, map[string][]string{"ids": {second.ID.String()}}, a.Token)
	require.Equal(t, http.StatusOK, rr.Code)

	var b handlers.BookmarkResponse
	testutil.ParseJSONResponse(t, rr, &b)
	require.Len(t, b.Tags, 1)
	assert.Equal(t, second.ID.String(), b.Tags[0].ID)

	var links int64
	require.NoError(t, a.DB.Table("bookmark_tags").Where("bookmark_id = ?", bookmark.ID).Count(&links).Error)
	assert.Equal(t, int64(1), links)

	rr = a.do(t, "PUT", path, map[string][]string{"ids": {}}, a.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	testutil.ParseJSONResponse(t, rr, &b)
	assert.Empty(t, b.Tags)
}

func TestBookmarkHandler_ListFilters(t *testing.T) {
	a := setupAPITestRouter(t)
	tag := testutil.CreateTestTag(t, a.DB, a.User.ID, "news")

	createBookmark(t, a, map[string]interface{}{"url": "https://news.test", "title": "Daily News", "tag_ids": []string{tag.ID.String()}})
	createBookmark(t, a, map[string]interface{}{"url": "https://recipes.test", "title": "Recipes", "is_favorite": true})
	archived := createBookmark(t, a, map[string]interface{}{"url": "https://old.test", "title": "Old stuff"})
	rr := a.do(t, "PATCH", "/api/v1/bookmarks/"+archived.ID, map[string]bool{"is_archived": true}, a.Token)
	require.Equal(t, http.StatusOK, rr.Code)

	testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)

	tests := []struct {
		name  string
		query string
		want  int64
	}{
		{"default hides archived", "", 3},
		{"search", "?q=NEWS", 1},
		{"tag", "?tag_id=" + tag.ID.String(), 1},
		{"favorites", "?favorite=true", 1},
		{"archived only", "?archived=true", 1},
		{"everything", "?archived=all", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := a.do(t, "GET", "/api/v1/bookmarks"+tt.query, nil, a.Token)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			var page bookmarkPage
			testutil.ParseJSONResponse(t, rr, &page)
			assert.Equal(t, tt.want, page.Total)
			assert.Len(t, page.Data, int(tt.want))
		})
	}

	t.Run("bad filter id", func(t *testing.T) {
		rr := a.do(t, "GET", "/api/v1/bookmarks?folder_id=nope", nil, a.Token)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestBookmarkHandler_CompanyIsolation(t *testing.T) {
	a := setupAPITestRouter(t)
	acme := testutil.CreateTestCompany(t, a.DB, a.User, "Acme")
	globex := testutil.CreateTestCompany(t, a.DB, a.User, "Globex")

	inAcme := testutil.CreateTestBookmark(t, a.DB, a.User.ID, &acme.ID)
	inGlobex := testutil.CreateTestBookmark(t, a.DB, a.User.ID, &globex.ID)
	legacy := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)

	rr := a.doInCompany(t, "GET", "/api/v1/bookmarks", nil, a.Token, acme.ID.String())
	require.Equal(t, http.StatusOK, rr.Code)

	var page bookmarkPage
	testutil.ParseJSONResponse(t, rr, &page)
	ids := make([]string, len(page.Data))
	for i, b := range page.Data {
		ids[i] = b.ID
	}
	assert.ElementsMatch(t, []string{inAcme.ID.String(), legacy.ID.String()}, ids)

	rr = a.doInCompany(t, "GET", "/api/v1/bookmarks/"+inGlobex.ID.String(), nil, a.Token, acme.ID.String())
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = a.doInCompany(t, "POST", "/api/v1/bookmarks", map[string]string{"url": "https://new.test"}, a.Token, globex.ID.String())
	require.Equal(t, http.StatusCreated, rr.Code)

	var created handlers.BookmarkResponse
	testutil.ParseJSONResponse(t, rr, &created)
	require.NotNil(t, created.CompanyID)
	assert.Equal(t, globex.ID.String(), *created.CompanyID)
}

func TestBookmarkHandler_Delete(t *testing.T) {
	a := setupAPITestRouter(t)
	bookmark := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
	habit := testutil.CreateTestHabit(t, a.DB, bookmark.ID)
	tag := testutil.CreateTestTag(t, a.DB, a.User.ID, "kept")
	require.NoError(t, a.DB.Table("bookmark_tags").Create(map[string]interface{}{
		"bookmark_id": bookmark.ID,
		"tag_id":      tag.ID,
	}).Error)
	require.NoError(t, a.DB.Create(&models.HabitCheckIn{HabitID: habit.ID, Date: "2024-05-01", Completed: true, Count: 1}).Error)

	rr := a.do(t, "DELETE", "/api/v1/bookmarks/"+bookmark.ID.String(), nil, a.Token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var count int64
	require.NoError(t, a.DB.Model(&models.Habit{}).Where("bookmark_id = ?", bookmark.ID).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, a.DB.Model(&models.HabitCheckIn{}).Where("habit_id = ?", habit.ID).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, a.DB.Table("bookmark_tags").Where("bookmark_id = ?", bookmark.ID).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, a.DB.Model(&models.Tag{}).Where("id = ?", tag.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	rr = a.do(t, "GET", "/api/v1/bookmarks/"+bookmark.ID.String(), nil, a.Token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

type fetchRequest struct {
	bookmarkID uuid.UUID
	force      bool
}

type recordingQueue struct {
	mu       sync.Mutex
	requests []fetchRequest
}

func (q *recordingQueue) EnqueueFetch(ctx context.Context, bookmarkID uuid.UUID, force bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests = append(q.requests, fetchRequest{bookmarkID: bookmarkID, force: force})
	return nil
}

func TestBookmarkHandler_RefreshWithoutQueue(t *testing.T) {
	a := setupAPITestRouter(t)
	bookmark := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)

	rr := a.do(t, "POST", "/api/v1/bookmarks/"+bookmark.ID.String()+"/refresh", nil, a.Token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp struct {
		Error string `json:"error"`
	}
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "Metadata refresh is unavailable", resp.Error)
}

func TestBookmarkHandler_Refresh(t *testing.T) {
	queue := &recordingQueue{}
	a := setupAPITestRouterWithQueue(t, queue)
	bookmark := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)

	rr := a.do(t, "POST", "/api/v1/bookmarks/"+bookmark.ID.String()+"/refresh", nil, a.Token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, queue.requests, 1)
	assert.Equal(t, fetchRequest{bookmarkID: bookmark.ID, force: true}, queue.requests[0])

	t.Run("other user is not found", func(t *testing.T) {
		_, token := a.AddUser(t)
		rr := a.do(t, "POST", "/api/v1/bookmarks/"+bookmark.ID.String()+"/refresh", nil, token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Len(t, queue.requests, 1)
	})

	t.Run("create queues a fetch that keeps user fields", func(t *testing.T) {
		created := createBookmark(t, a, map[string]interface{}{"url": "https://queued.test"})
		require.Len(t, queue.requests, 2)
		assert.Equal(t, created.ID, queue.requests[1].bookmarkID.String())
		assert.False(t, queue.requests[1].force)
	})
}
