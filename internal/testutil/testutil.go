package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/auth"
	"github.com/hugh/go-marks/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing. The pool is
// pinned to one connection because every new connection would otherwise
// open its own empty database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })

	return db
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// CreateTestUser creates a user with a unique email
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test User",
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestCompany creates a company owned by owner
func CreateTestCompany(t *testing.T, db *gorm.DB, owner *models.User, name string) *models.Company {
	t.Helper()

	company := &models.Company{
		Base: models.Base{
			ID: uuid.New(),
		},
		OwnerID: owner.ID,
		Name:    name,
	}

	if err := db.Create(company).Error; err != nil {
		t.Fatalf("failed to create test company: %v", err)
	}

	return company
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CreateTestBookmark creates a bookmark owned by user, optionally in a company
func CreateTestBookmark(t *testing.T, db *gorm.DB, userID uuid.UUID, companyID *uuid.UUID) *models.Bookmark {
	t.Helper()

	bookmark := &models.Bookmark{
		Base: models.Base{
			ID: uuid.New(),
		},
		UserID:    userID,
		CompanyID: companyID,
		URL:       "https://example.com/" + uuid.New().String()[:8],
		Title:     "Test Bookmark",
	}

	if err := db.Create(bookmark).Error; err != nil {
		t.Fatalf("failed to create test bookmark: %v", err)
	}

	return bookmark
}

// CreateTestTag creates a tag owned by user
func CreateTestTag(t *testing.T, db *gorm.DB, userID uuid.UUID, name string) *models.Tag {
	t.Helper()

	tag := &models.Tag{
		Base:   models.Base{ID: uuid.New()},
		UserID: userID,
		Name:   name,
	}

	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("failed to create test tag: %v", err)
	}

	return tag
}

// CreateTestCategory creates a category owned by user
func CreateTestCategory(t *testing.T, db *gorm.DB, userID uuid.UUID, name string) *models.Category {
	t.Helper()

	category := &models.Category{
		Base:   models.Base{ID: uuid.New()},
		UserID: userID,
		Name:   name,
	}

	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}

	return category
}

// CreateTestHabit creates an active daily habit on bookmark
func CreateTestHabit(t *testing.T, db *gorm.DB, bookmarkID uuid.UUID) *models.Habit {
	t.Helper()

	habit := &models.Habit{
		Base:        models.Base{ID: uuid.New()},
		BookmarkID:  bookmarkID,
		Name:        "Read daily",
		Frequency:   models.FrequencyDaily,
		TargetCount: 1,
		IsActive:    true,
	}

	if err := db.Create(habit).Error; err != nil {
		t.Fatalf("failed to create test habit: %v", err)
	}

	return habit
}

// CreateTestShare shares bookmark with recipient
func CreateTestShare(t *testing.T, db *gorm.DB, bookmark *models.Bookmark, recipientID uuid.UUID, perm models.SharePermission, expiresAt *time.Time) *models.BookmarkShare {
	t.Helper()

	share := &models.BookmarkShare{
		Base:        models.Base{ID: uuid.New()},
		BookmarkID:  bookmark.ID,
		OwnerID:     bookmark.UserID,
		RecipientID: recipientID,
		Permission:  perm,
		ExpiresAt:   expiresAt,
	}

	if err := db.Create(share).Error; err != nil {
		t.Fatalf("failed to create test share: %v", err)
	}

	return share
}

// CreateTestSchedule creates an enabled one-shot in-app reminder
func CreateTestSchedule(t *testing.T, db *gorm.DB, userID uuid.UUID, title string) *models.NotificationSchedule {
	t.Helper()

	at := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	schedule := &models.NotificationSchedule{
		Base:        models.Base{ID: uuid.New()},
		UserID:      userID,
		Title:       title,
		ScheduledAt: at,
		Channel:     models.ChannelInApp,
		IsEnabled:   true,
		NextRunAt:   &at,
	}

	if err := db.Create(schedule).Error; err != nil {
		t.Fatalf("failed to create test schedule: %v", err)
	}

	return schedule
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	User       *models.User
	Token      string
}

// NewTestContext creates a complete test setup with DB, user, and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	user := CreateTestUser(t, db)
	token := GenerateTestToken(t, jwtService, user)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		User:       user,
		Token:      token,
	}
}

// AddUser creates another user in the same database and returns a token for it
func (ts *TestSetup) AddUser(t *testing.T) (*models.User, string) {
	t.Helper()
	user := CreateTestUser(t, ts.DB)
	return user, GenerateTestToken(t, ts.JWTService, user)
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
