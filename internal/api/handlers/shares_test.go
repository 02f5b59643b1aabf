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

func TestShareHandler_Create(t *testing.T) {
	a := setupAPITestRouter(t)
	bookmark := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
	recipient, _ := a.AddUser(t)

	body := map[string]interface{}{
		"bookmark_id":     bookmark.ID.String(),
		"recipient_email": recipient.Email,
		"permission":      "comment",
	}

	rr := a.do(t, "POST", "/api/v1/shares", body, a.Token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var share handlers.ShareResponse
	testutil.ParseJSONResponse(t, rr, &share)
	assert.Equal(t, "comment", share.Permission)
	assert.Equal(t, recipient.ID.String(), share.RecipientID)
	assert.Equal(t, recipient.Email, share.RecipientEmail)
	assert.False(t, share.Expired)

	t.Run("duplicate conflicts", func(t *testing.T) {
		rr := a.do(t, "POST", "/api/v1/shares", body, a.Token)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
	}{
		{"unknown recipient", map[string]interface{}{"bookmark_id": bookmark.ID.String(), "recipient_email": "nobody@example.com", "permission": "read"}, http.StatusNotFound},
		{"self share", map[string]interface{}{"bookmark_id": bookmark.ID.String(), "recipient_email": a.User.Email, "permission": "read"}, http.StatusBadRequest},
		{"bad permission", map[string]interface{}{"bookmark_id": bookmark.ID.String(), "recipient_email": recipient.Email, "permission": "admin"}, http.StatusBadRequest},
		{"past expiry", map[string]interface{}{"bookmark_id": bookmark.ID.String(), "recipient_email": recipient.Email, "permission": "read", "expires_at": "2001-01-01T00:00:00Z"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := a.do(t, "POST", "/api/v1/shares", tt.body, a.Token)
			assert.Equal(t, tt.status, rr.Code)
		})
	}

	t.Run("only the owner can share", func(t *testing.T) {
		_, token := a.AddUser(t)
		rr := a.do(t, "POST", "/api/v1/shares", map[string]interface{}{
			"bookmark_id":     bookmark.ID.String(),
			"recipient_email": recipient.Email,
			"permission":      "edit",
		}, token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestShareHandler_SharedAccess(t *testing.T) {
	a := setupAPITestRouter(t)
	folder := models.CategoryFolder{UserID: a.User.ID, Name: "Private"}
	require.NoError(t, a.DB.Create(&folder).Error)
	bookmark := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
	require.NoError(t, a.DB.Model(bookmark).Update("folder_id", folder.ID).Error)

	reader, readerToken := a.AddUser(t)
	commenter, commenterToken := a.AddUser(t)
	editor, editorToken := a.AddUser(t)
	expired, expiredToken := a.AddUser(t)
	_, strangerToken := a.AddUser(t)

	past := time.Now().UTC().Add(-time.Hour)
	testutil.CreateTestShare(t, a.DB, bookmark, reader.ID, models.PermissionRead, nil)
	testutil.CreateTestShare(t, a.DB, bookmark, commenter.ID, models.PermissionComment, nil)
	testutil.CreateTestShare(t, a.DB, bookmark, editor.ID, models.PermissionEdit, nil)
	testutil.CreateTestShare(t, a.DB, bookmark, expired.ID, models.PermissionEdit, &past)

	base := "/api/v1/shared/" + bookmark.ID.String()
	edit := map[string]string{"title": "Edited"}
	comment := map[string]string{"content": "Nice find"}

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		token  string
		status int
	}{
		{"reader reads", "GET", base, nil, readerToken, http.StatusOK},
		{"reader cannot edit", "PATCH", base, edit, readerToken, http.StatusForbidden},
		{"reader cannot comment", "POST", base + "/comments", comment, readerToken, http.StatusForbidden},
		{"reader lists comments", "GET", base + "/comments", nil, readerToken, http.StatusOK},
		{"commenter comments", "POST", base + "/comments", comment, commenterToken, http.StatusCreated},
		{"commenter cannot edit", "PATCH", base, edit, commenterToken, http.StatusForbidden},
		{"editor edits", "PATCH", base, edit, editorToken, http.StatusOK},
		{"editor comments", "POST", base + "/comments", comment, editorToken, http.StatusCreated},
		{"expired share reads nothing", "GET", base, nil, expiredToken, http.StatusNotFound},
		{"expired share cannot edit", "PATCH", base, edit, expiredToken, http.StatusNotFound},
		{"stranger", "GET", base, nil, strangerToken, http.StatusNotFound},
		{"owner", "GET", base, nil, a.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := a.do(t, tt.method, tt.path, tt.body, tt.token)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}

	t.Run("recipient view hides owner organisation", func(t *testing.T) {
		rr := a.do(t, "GET", base, nil, readerToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp handlers.SharedBookmarkResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "read", resp.Permission)
		assert.False(t, resp.Owner)
		assert.Nil(t, resp.Bookmark.FolderID)
		assert.Equal(t, "Edited", resp.Bookmark.Title)
	})

	t.Run("owner view keeps folder", func(t *testing.T) {
		rr := a.do(t, "GET", base, nil, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp handlers.SharedBookmarkResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.True(t, resp.Owner)
		require.NotNil(t, resp.Bookmark.FolderID)
		assert.Equal(t, folder.ID.String(), *resp.Bookmark.FolderID)
	})

	t.Run("received omits expired", func(t *testing.T) {
		rr := a.do(t, "GET", "/api/v1/shares/received", nil, expiredToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var shares []handlers.ShareResponse
		testutil.ParseJSONResponse(t, rr, &shares)
		assert.Empty(t, shares)

		rr = a.do(t, "GET", "/api/v1/shares/received", nil, readerToken)
		testutil.ParseJSONResponse(t, rr, &shares)
		require.Len(t, shares, 1)
		assert.Equal(t, bookmark.ID.String(), shares[0].BookmarkID)
	})
}

func TestShareHandler_UpdateAndDelete(t *testing.T) {
	a := setupAPITestRouter(t)
	bookmark := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
	recipient, recipientToken := a.AddUser(t)
	share := testutil.CreateTestShare(t, a.DB, bookmark, recipient.ID, models.PermissionRead, nil)
	path := "/api/v1/shares/" + share.ID.String()

	t.Run("owner raises permission", func(t *testing.T) {
		future := time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339)
		rr := a.do(t, "PATCH", path, map[string]string{"permission": "edit", "expires_at": future}, a.Token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var updated handlers.ShareResponse
		testutil.ParseJSONResponse(t, rr, &updated)
		assert.Equal(t, "edit", updated.Permission)
		assert.NotNil(t, updated.ExpiresAt)

		rr = a.do(t, "PATCH", "/api/v1/shared/"+bookmark.ID.String(), map[string]string{"title": "Now editable"}, recipientToken)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("recipient cannot change the grant", func(t *testing.T) {
		rr := a.do(t, "PATCH", path, map[string]string{"permission": "edit"}, recipientToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("recipient may leave", func(t *testing.T) {
		rr := a.do(t, "DELETE", path, nil, recipientToken)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = a.do(t, "DELETE", path, nil, a.Token)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = a.do(t, "GET", "/api/v1/shared/"+bookmark.ID.String(), nil, recipientToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestShareHandler_SharedComments(t *testing.T) {
	a := setupAPITestRouter(t)
	bookmark := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
	author, authorToken := a.AddUser(t)
	testutil.CreateTestShare(t, a.DB, bookmark, author.ID, models.PermissionComment, nil)
	reader, readerToken := a.AddUser(t)
	testutil.CreateTestShare(t, a.DB, bookmark, reader.ID, models.PermissionRead, nil)
	base := "/api/v1/shared/" + bookmark.ID.String() + "/comments"

	post := func(t *testing.T, content string) handlers.CommentResponse {
		t.Helper()
		rr := a.do(t, "POST", base, map[string]string{"content": content}, authorToken)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var c handlers.CommentResponse
		testutil.ParseJSONResponse(t, rr, &c)
		return c
	}
	comment := post(t, "First take")

	tests := []struct {
		name   string
		method string
		token  string
		status int
	}{
		{"author edits", "PATCH", authorToken, http.StatusOK},
		{"owner cannot rewrite", "PATCH", a.Token, http.StatusForbidden},
		{"reader lacks comment permission", "PATCH", readerToken, http.StatusForbidden},
		{"reader cannot delete", "DELETE", readerToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body interface{}
			if tt.method == "PATCH" {
				body = map[string]string{"content": "Second take"}
			}
			rr := a.do(t, tt.method, base+"/"+comment.ID, body, tt.token)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}

	t.Run("edit is stored", func(t *testing.T) {
		var stored models.Comment
		require.NoError(t, a.DB.First(&stored, "id = ?", comment.ID).Error)
		assert.Equal(t, "Second take", stored.Content)
	})

	t.Run("stranger is not found", func(t *testing.T) {
		_, token := a.AddUser(t)
		rr := a.do(t, "DELETE", base+"/"+comment.ID, nil, token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("comment on another bookmark is not found", func(t *testing.T) {
		other := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
		testutil.CreateTestShare(t, a.DB, other, author.ID, models.PermissionComment, nil)
		rr := a.do(t, "DELETE", "/api/v1/shared/"+other.ID.String()+"/comments/"+comment.ID, nil, authorToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("author deletes", func(t *testing.T) {
		rr := a.do(t, "DELETE", base+"/"+comment.ID, nil, authorToken)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = a.do(t, "DELETE", base+"/"+comment.ID, nil, authorToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("owner deletes a guest comment", func(t *testing.T) {
		guest := post(t, "Another take")
		rr := a.do(t, "DELETE", base+"/"+guest.ID, nil, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)

		var count int64
		require.NoError(t, a.DB.Model(&models.Comment{}).Where("bookmark_id = ?", bookmark.ID).Count(&count).Error)
		assert.Zero(t, count)
	})
}
