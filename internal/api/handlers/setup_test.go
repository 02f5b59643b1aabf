package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hugh/go-marks/internal/api"
	"github.com/hugh/go-marks/internal/api/handlers"
	"github.com/hugh/go-marks/internal/api/middleware"
	"github.com/hugh/go-marks/internal/auth"
	"github.com/hugh/go-marks/internal/storage"
	"github.com/hugh/go-marks/internal/testutil"
	"github.com/hugh/go-marks/pkg/crypto"
	"github.com/hugh/go-marks/pkg/util"
	"github.com/stretchr/testify/require"
)

type apiTest struct {
	*testutil.TestSetup
	Router http.Handler
	Blobs  *storage.Memory
}

// setupAPITestRouter wires the full router against an in-memory database.
// The metadata queue is left out, so refresh is rejected.
func setupAPITestRouter(t *testing.T) *apiTest {
	t.Helper()
	return setupAPITestRouterWithQueue(t, nil)
}

func setupAPITestRouterWithQueue(t *testing.T, queue handlers.MetadataQueue) *apiTest {
	t.Helper()

	tc := testutil.NewTestContext(t)
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	blobs := storage.NewMemory("https://blobs.test")
	router := api.NewRouter(api.RouterConfig{
		DB:             tc.DB,
		Logger:         util.DiscardLogger(),
		JWTService:     tc.JWTService,
		AuthService:    auth.NewService(tc.DB, tc.JWTService),
		Encryptor:      enc,
		Queue:          queue,
		Blobs:          blobs,
		MaxUploadBytes: 1 << 20,
	})

	return &apiTest{TestSetup: tc, Router: router, Blobs: blobs}
}

func (a *apiTest) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := testutil.AuthenticatedRequest(t, method, path, body, token)
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}

func (a *apiTest) doInCompany(t *testing.T, method, path string, body interface{}, token, companyID string) *httptest.ResponseRecorder {
	t.Helper()

	req := testutil.AuthenticatedRequest(t, method, path, body, token)
	req.Header.Set(middleware.ActiveCompanyHeader, companyID)
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}
