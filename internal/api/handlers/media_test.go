package handlers_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/hugh/go-marks/internal/api/handlers"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadRequest(t *testing.T, path, token, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestToolHandler_MediaUpload(t *testing.T) {
	a := setupAPITestRouter(t)
	bookmark := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
	base := "/api/v1/media/" + bookmark.ID.String()

	req := uploadRequest(t, base, a.Token, "diagram.PNG", "image/png", []byte("\x89PNG fake"))
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var media handlers.MediaResponse
	testutil.ParseJSONResponse(t, rr, &media)
	assert.Equal(t, "image", media.Kind)
	assert.True(t, media.Uploaded)
	assert.Equal(t, "diagram.PNG", media.Title)
	assert.Equal(t, int64(len("\x89PNG fake")), media.Size)
	assert.True(t, strings.HasPrefix(media.URL, "https://blobs.test/bookmarks/"+bookmark.ID.String()+"/"))
	assert.True(t, strings.HasSuffix(media.URL, ".png"))

	var stored models.Media
	require.NoError(t, a.DB.First(&stored, "id = ?", media.ID).Error)
	data, contentType, ok := a.Blobs.Get(stored.StorageKey)
	require.True(t, ok)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, []byte("\x89PNG fake"), data)

	t.Run("uploaded url is fixed", func(t *testing.T) {
		rr := a.do(t, "PATCH", base+"/"+media.ID, map[string]string{"url": "https://elsewhere.test/x.png"}, a.Token)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = a.do(t, "PATCH", base+"/"+media.ID, map[string]string{"title": "Architecture"}, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)
		var updated handlers.MediaResponse
		testutil.ParseJSONResponse(t, rr, &updated)
		assert.Equal(t, "Architecture", updated.Title)
		assert.Equal(t, media.URL, updated.URL)
	})

	t.Run("too large", func(t *testing.T) {
		big := bytes.Repeat([]byte("a"), (1<<20)+512)
		req := uploadRequest(t, base, a.Token, "big.bin", "application/octet-stream", big)
		rr := httptest.NewRecorder()
		a.Router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, 1, a.Blobs.Len())
	})

	t.Run("delete removes the object", func(t *testing.T) {
		rr := a.do(t, "DELETE", base+"/"+media.ID, nil, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)

		_, _, ok := a.Blobs.Get(stored.StorageKey)
		assert.False(t, ok)
	})

	t.Run("other user cannot upload", func(t *testing.T) {
		_, token := a.AddUser(t)
		req := uploadRequest(t, base, token, "x.txt", "text/plain", []byte("x"))
		rr := httptest.NewRecorder()
		a.Router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Zero(t, a.Blobs.Len())
	})
}

func TestToolHandler_MediaLink(t *testing.T) {
	a := setupAPITestRouter(t)
	bookmark := testutil.CreateTestBookmark(t, a.DB, a.User.ID, nil)
	base := "/api/v1/media/" + bookmark.ID.String()

	rr := a.do(t, "POST", base, map[string]string{"kind": "video", "url": "https://video.test/watch?v=1", "title": "Talk"}, a.Token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var media handlers.MediaResponse
	testutil.ParseJSONResponse(t, rr, &media)
	assert.False(t, media.Uploaded)
	assert.Equal(t, "video", media.Kind)

	rr = a.do(t, "PATCH", base+"/"+media.ID, map[string]string{"url": "https://video.test/watch?v=2"}, a.Token)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = a.do(t, "POST", base, map[string]string{"kind": "hologram", "url": "https://x.test"}, a.Token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = a.do(t, "GET", base, nil, a.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []handlers.MediaResponse
	testutil.ParseJSONResponse(t, rr, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "https://video.test/watch?v=2", list[0].URL)
}
