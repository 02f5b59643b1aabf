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

type historyPage struct {
	Data  []handlers.HistoryResponse `json:"data"`
	Total int64                      `json:"total"`
}

func TestNotificationHandler_Create(t *testing.T) {
	a := setupAPITestRouter(t)
	at := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)

	t.Run("email target is sealed at rest", func(t *testing.T) {
		rr := a.do(t, "POST", "/api/v1/notifications", map[string]string{
			"title":        "Reread the RFC",
			"scheduled_at": at.Format(time.RFC3339),
			"channel":      "email",
			"target":       "me@example.com",
		}, a.Token)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var n handlers.NotificationResponse
		testutil.ParseJSONResponse(t, rr, &n)
		assert.Equal(t, "me@example.com", n.Target)
		require.NotNil(t, n.NextRunAt)
		assert.Equal(t, at.Format(time.RFC3339), *n.NextRunAt)

		var stored models.NotificationSchedule
		require.NoError(t, a.DB.First(&stored, "id = ?", n.ID).Error)
		assert.NotEmpty(t, stored.EncryptedTarget)
		assert.NotContains(t, string(stored.EncryptedTarget), "me@example.com")

		rr = a.do(t, "GET", "/api/v1/notifications", nil, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)
		var list []handlers.NotificationResponse
		testutil.ParseJSONResponse(t, rr, &list)
		require.Len(t, list, 1)
		assert.Empty(t, list[0].Target)

		rr = a.do(t, "GET", "/api/v1/notifications/"+n.ID, nil, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)
		var one handlers.NotificationResponse
		testutil.ParseJSONResponse(t, rr, &one)
		assert.Equal(t, "me@example.com", one.Target)
	})

	t.Run("recurring", func(t *testing.T) {
		rr := a.do(t, "POST", "/api/v1/notifications", map[string]string{
			"title":        "Weekly digest",
			"scheduled_at": "2024-01-01T09:00:00Z",
			"recurrence":   "0 9 * * 1",
		}, a.Token)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var n handlers.NotificationResponse
		testutil.ParseJSONResponse(t, rr, &n)
		require.NotNil(t, n.NextRunAt)
		next, err := time.Parse(time.RFC3339, *n.NextRunAt)
		require.NoError(t, err)
		assert.True(t, next.After(time.Now()))
		assert.Equal(t, time.Monday, next.Weekday())
	})

	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{"missing title", map[string]string{"scheduled_at": at.Format(time.RFC3339)}, "title"},
		{"bad time", map[string]string{"title": "x", "scheduled_at": "tomorrow"}, "scheduled_at"},
		{"bad cron", map[string]string{"title": "x", "scheduled_at": at.Format(time.RFC3339), "recurrence": "every day"}, "recurrence"},
		{"bad channel", map[string]string{"title": "x", "scheduled_at": at.Format(time.RFC3339), "channel": "sms"}, "channel"},
		{"email without address", map[string]string{"title": "x", "scheduled_at": at.Format(time.RFC3339), "channel": "email"}, "target"},
		{"webhook with bad url", map[string]string{"title": "x", "scheduled_at": at.Format(time.RFC3339), "channel": "webhook", "target": "ftp://x"}, "target"},
		{"in-app with target", map[string]string{"title": "x", "scheduled_at": at.Format(time.RFC3339), "target": "me@example.com"}, "target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := a.do(t, "POST", "/api/v1/notifications", tt.body, a.Token)
			require.Equal(t, http.StatusBadRequest, rr.Code)

			var resp struct {
				Details map[string]string `json:"details"`
			}
			testutil.ParseJSONResponse(t, rr, &resp)
			assert.Contains(t, resp.Details, tt.field)
		})
	}

	t.Run("bookmark must be owned", func(t *testing.T) {
		other, _ := a.AddUser(t)
		foreign := testutil.CreateTestBookmark(t, a.DB, other.ID, nil)

		rr := a.do(t, "POST", "/api/v1/notifications", map[string]string{
			"title":        "Not mine",
			"scheduled_at": at.Format(time.RFC3339),
			"bookmark_id":  foreign.ID.String(),
		}, a.Token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestNotificationHandler_TriggerAndHistory(t *testing.T) {
	a := setupAPITestRouter(t)
	schedule := testutil.CreateTestSchedule(t, a.DB, a.User.ID, "Stand up")
	other := testutil.CreateTestSchedule(t, a.DB, a.User.ID, "Stretch")
	base := "/api/v1/notifications/" + schedule.ID.String()

	rr := a.do(t, "POST", base+"/trigger", nil, a.Token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var entry handlers.HistoryResponse
	testutil.ParseJSONResponse(t, rr, &entry)
	assert.Equal(t, "triggered", entry.Status)
	assert.Equal(t, "Stand up", entry.Title)

	rr = a.do(t, "POST", "/api/v1/notifications/"+other.ID.String()+"/trigger", nil, a.Token)
	require.Equal(t, http.StatusCreated, rr.Code)

	t.Run("one-shot is disarmed", func(t *testing.T) {
		rr := a.do(t, "GET", base, nil, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)

		var n handlers.NotificationResponse
		testutil.ParseJSONResponse(t, rr, &n)
		assert.Nil(t, n.NextRunAt)
		assert.NotNil(t, n.LastTriggeredAt)
	})

	t.Run("history for one schedule", func(t *testing.T) {
		rr := a.do(t, "GET", base+"/history", nil, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)

		var page historyPage
		testutil.ParseJSONResponse(t, rr, &page)
		assert.Equal(t, int64(1), page.Total)
		require.Len(t, page.Data, 1)
		assert.Equal(t, schedule.ID.String(), page.Data[0].ScheduleID)
	})

	t.Run("history for all schedules", func(t *testing.T) {
		rr := a.do(t, "GET", "/api/v1/notifications/history", nil, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)

		var page historyPage
		testutil.ParseJSONResponse(t, rr, &page)
		assert.Equal(t, int64(2), page.Total)
	})

	t.Run("moving the time re-arms", func(t *testing.T) {
		at := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
		rr := a.do(t, "PATCH", base, map[string]string{"scheduled_at": at.Format(time.RFC3339)}, a.Token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var n handlers.NotificationResponse
		testutil.ParseJSONResponse(t, rr, &n)
		require.NotNil(t, n.NextRunAt)
		assert.Equal(t, at.Format(time.RFC3339), *n.NextRunAt)
		assert.Nil(t, n.LastTriggeredAt)
	})

	t.Run("disabling clears next run", func(t *testing.T) {
		rr := a.do(t, "PATCH", base, map[string]bool{"is_enabled": false}, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)

		var n handlers.NotificationResponse
		testutil.ParseJSONResponse(t, rr, &n)
		assert.False(t, n.IsEnabled)
		assert.Nil(t, n.NextRunAt)
	})

	t.Run("delete keeps history", func(t *testing.T) {
		rr := a.do(t, "DELETE", base, nil, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)

		var count int64
		require.NoError(t, a.DB.Model(&models.NotificationHistory{}).Where("schedule_id = ?", schedule.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)

		rr = a.do(t, "GET", base, nil, a.Token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("other users see nothing", func(t *testing.T) {
		_, token := a.AddUser(t)

		rr := a.do(t, "POST", "/api/v1/notifications/"+other.ID.String()+"/trigger", nil, token)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = a.do(t, "GET", "/api/v1/notifications/history", nil, token)
		require.Equal(t, http.StatusOK, rr.Code)
		var page historyPage
		testutil.ParseJSONResponse(t, rr, &page)
		assert.Zero(t, page.Total)
	})
}

func TestNotificationHandler_Update(t *testing.T) {
	later := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)

	tests := []struct {
		name     string
		fired    bool
		patches  []map[string]interface{}
		wantNext bool
		wantLast bool
	}{
		{
			name:     "new time re-arms a fired one-shot",
			fired:    true,
			patches:  []map[string]interface{}{{"scheduled_at": later.Format(time.RFC3339)}},
			wantNext: true,
		},
		{
			name:     "switching to a cron re-arms",
			fired:    true,
			patches:  []map[string]interface{}{{"recurrence": "0 9 * * *"}},
			wantNext: true,
		},
		{
			name:     "cron and back to one-shot re-arms",
			fired:    true,
			patches:  []map[string]interface{}{{"recurrence": "0 9 * * *"}, {"recurrence": ""}},
			wantNext: true,
		},
		{
			name:     "unchanged recurrence stays disarmed",
			fired:    true,
			patches:  []map[string]interface{}{{"recurrence": ""}},
			wantLast: true,
		},
		{
			name:    "disabling clears next run",
			patches: []map[string]interface{}{{"is_enabled": false}},
		},
		{
			name:     "title only keeps the schedule",
			patches:  []map[string]interface{}{{"title": "Renamed"}},
			wantNext: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := setupAPITestRouter(t)
			schedule := testutil.CreateTestSchedule(t, a.DB, a.User.ID, "Stand up")
			base := "/api/v1/notifications/" + schedule.ID.String()

			if tt.fired {
				rr := a.do(t, "POST", base+"/trigger", nil, a.Token)
				require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
			}

			var n handlers.NotificationResponse
			for _, patch := range tt.patches {
				rr := a.do(t, "PATCH", base, patch, a.Token)
				require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
				testutil.ParseJSONResponse(t, rr, &n)
			}

			assert.Equal(t, tt.wantNext, n.NextRunAt != nil, "next_run_at")
			assert.Equal(t, tt.wantLast, n.LastTriggeredAt != nil, "last_triggered_at")

			var stored models.NotificationSchedule
			require.NoError(t, a.DB.First(&stored, "id = ?", schedule.ID).Error)
			assert.Equal(t, tt.wantNext, stored.NextRunAt != nil)
			assert.Equal(t, tt.wantLast, stored.LastTriggeredAt != nil)
		})
	}
}

func TestNotificationHandler_Delete(t *testing.T) {
	a := setupAPITestRouter(t)
	schedule := testutil.CreateTestSchedule(t, a.DB, a.User.ID, "Stand up")
	base := "/api/v1/notifications/" + schedule.ID.String()

	rr := a.do(t, "POST", base+"/trigger", nil, a.Token)
	require.Equal(t, http.StatusCreated, rr.Code)

	t.Run("other user cannot delete", func(t *testing.T) {
		_, token := a.AddUser(t)
		rr := a.do(t, "DELETE", base, nil, token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	rr = a.do(t, "DELETE", base, nil, a.Token)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = a.do(t, "GET", base, nil, a.Token)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = a.do(t, "DELETE", base, nil, a.Token)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = a.do(t, "GET", "/api/v1/notifications/history", nil, a.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	var page historyPage
	testutil.ParseJSONResponse(t, rr, &page)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, schedule.ID.String(), page.Data[0].ScheduleID)
}
