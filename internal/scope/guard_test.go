package scope_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/internal/scope"
	"github.com/hugh/go-marks/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_Bookmark(t *testing.T) {
	db := testutil.SetupTestDB(t)
	guard := scope.NewGuard(db)
	ctx := testutil.TestContext(t)

	owner := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	bookmark := testutil.CreateTestBookmark(t, db, owner.ID, nil)

	got, err := guard.Bookmark(ctx, scope.Scope{UserID: owner.ID}, bookmark.ID)
	require.NoError(t, err)
	assert.Equal(t, bookmark.URL, got.URL)

	_, err = guard.Bookmark(ctx, scope.Scope{UserID: other.ID}, bookmark.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = guard.Bookmark(ctx, scope.Scope{UserID: owner.ID}, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLoadChild(t *testing.T) {
	db := testutil.SetupTestDB(t)
	guard := scope.NewGuard(db)
	ctx := testutil.TestContext(t)

	owner := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	bookmark := testutil.CreateTestBookmark(t, db, owner.ID, nil)
	otherBookmark := testutil.CreateTestBookmark(t, db, owner.ID, nil)
	habit := testutil.CreateTestHabit(t, db, bookmark.ID)

	t.Run("owner loads child", func(t *testing.T) {
		b, h, err := scope.LoadChild[models.Habit](ctx, guard, scope.Scope{UserID: owner.ID}, bookmark.ID, habit.ID, "Habit")
		require.NoError(t, err)
		assert.Equal(t, bookmark.ID, b.ID)
		assert.Equal(t, habit.ID, h.ID)
	})

	t.Run("other user gets not found for the child", func(t *testing.T) {
		_, _, err := scope.LoadChild[models.Habit](ctx, guard, scope.Scope{UserID: other.ID}, bookmark.ID, habit.ID, "Habit")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Equal(t, "Habit not found", err.Error())
	})

	t.Run("child under a different bookmark is not found", func(t *testing.T) {
		_, _, err := scope.LoadChild[models.Habit](ctx, guard, scope.Scope{UserID: owner.ID}, otherBookmark.ID, habit.ID, "Habit")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestLoadOwned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)

	owner := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	tag := testutil.CreateTestTag(t, db, owner.ID, "golang")

	got, err := scope.LoadOwned[models.Tag](ctx, db, scope.Scope{UserID: owner.ID}, tag.ID, "Tag")
	require.NoError(t, err)
	assert.Equal(t, "golang", got.Name)

	_, err = scope.LoadOwned[models.Tag](ctx, db, scope.Scope{UserID: other.ID}, tag.ID, "Tag")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
