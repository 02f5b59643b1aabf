package handlers_test

import (
	"net/http"
	"testing"

	"github.com/hugh/go-marks/internal/api/dto"
	"github.com/hugh/go-marks/internal/api/middleware"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanyHandler_CRUD(t *testing.T) {
	a := setupAPITestRouter(t)

	rr := a.do(t, "POST", "/api/v1/companies", map[string]string{"name": "  Acme  ", "description": "Main"}, a.Token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created dto.CompanyDTO
	testutil.ParseJSONResponse(t, rr, &created)
	assert.Equal(t, "Acme", created.Name)
	assert.False(t, created.Active, "the request resolved before the company existed")

	t.Run("list marks earliest as active", func(t *testing.T) {
		testutil.CreateTestCompany(t, a.DB, a.User, "Second")

		rr := a.do(t, "GET", "/api/v1/companies", nil, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)

		var list []dto.CompanyDTO
		testutil.ParseJSONResponse(t, rr, &list)
		require.Len(t, list, 2)
		assert.Equal(t, created.ID, list[0].ID)
		assert.True(t, list[0].Active)
		assert.False(t, list[1].Active)
	})

	t.Run("update", func(t *testing.T) {
		rr := a.do(t, "PATCH", "/api/v1/companies/"+created.ID, map[string]string{"name": "Acme Ltd"}, a.Token)
		require.Equal(t, http.StatusOK, rr.Code)

		var updated dto.CompanyDTO
		testutil.ParseJSONResponse(t, rr, &updated)
		assert.Equal(t, "Acme Ltd", updated.Name)
		assert.Equal(t, "Main", updated.Description)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		rr := a.do(t, "POST", "/api/v1/companies", map[string]string{"name": " "}, a.Token)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("other users cannot see it", func(t *testing.T) {
		_, token := a.AddUser(t)

		rr := a.do(t, "GET", "/api/v1/companies/"+created.ID, nil, token)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = a.do(t, "POST", "/api/v1/companies/active", map[string]string{"company_id": created.ID}, token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		rr := a.do(t, "GET", "/api/v1/companies/not-a-uuid", nil, a.Token)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCompanyHandler_SetActive(t *testing.T) {
	a := setupAPITestRouter(t)
	testutil.CreateTestCompany(t, a.DB, a.User, "First")
	second := testutil.CreateTestCompany(t, a.DB, a.User, "Second")

	rr := a.do(t, "POST", "/api/v1/companies/active", map[string]string{"company_id": second.ID.String()}, a.Token)
	require.Equal(t, http.StatusOK, rr.Code)

	var company dto.CompanyDTO
	testutil.ParseJSONResponse(t, rr, &company)
	assert.True(t, company.Active)

	cookie := cookieNamed(rr, middleware.ActiveCompanyCookie)
	require.NotNil(t, cookie)
	assert.Equal(t, second.ID.String(), cookie.Value)

	rr = a.do(t, "POST", "/api/v1/companies/active", map[string]string{"company_id": "bogus"}, a.Token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCompanyHandler_DeleteUnscopesRows(t *testing.T) {
	a := setupAPITestRouter(t)
	company := testutil.CreateTestCompany(t, a.DB, a.User, "Doomed")
	bookmark := testutil.CreateTestBookmark(t, a.DB, a.User.ID, &company.ID)

	rr := a.do(t, "DELETE", "/api/v1/companies/"+company.ID.String(), nil, a.Token)
	require.Equal(t, http.StatusOK, rr.Code)

	var reloaded models.Bookmark
	require.NoError(t, a.DB.First(&reloaded, "id = ?", bookmark.ID).Error)
	assert.Nil(t, reloaded.CompanyID)

	rr = a.do(t, "GET", "/api/v1/bookmarks/"+bookmark.ID.String(), nil, a.Token)
	assert.Equal(t, http.StatusOK, rr.Code)
}
