package library_test

import (
	"context"
	"testing"

	"github.com/JassinAlSafe/gamerfie-sub001/activity"
	"github.com/JassinAlSafe/gamerfie-sub001/apperr"
	"github.com/JassinAlSafe/gamerfie-sub001/library"
	"github.com/JassinAlSafe/gamerfie-sub001/model"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"github.com/JassinAlSafe/gamerfie-sub001/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type noFriends struct{}

func (noFriends) AcceptedFriendIDs(_ context.Context, _ int64) ([]int64, error) {
	return nil, nil
}

func setup(t *testing.T) (*library.Service, *gorm.DB, int64) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	_, ps := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()
	notifier := notify.New(ps, logger)
	events := activity.NewService(db, noFriends{}, notifier, logger)
	svc := library.NewService(db, events, nil, notifier, logger)

	game := model.Game{Name: "Celeste"}
	require.NoError(t, db.Create(&game).Error)
	return svc, db, game.ID
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestUpdateEntryCreatesWithDefaults(t *testing.T) {
	svc, _, gid := setup(t)

	entry, err := svc.UpdateEntry(context.Background(), 1, gid, library.EntryPatch{
		PlayTime: intPtr(30),
	})
	require.NoError(t, err)
	assert.Equal(t, model.LibraryWantToPlay, entry.Status)
	assert.Equal(t, 30, entry.PlayTime)
	assert.NotNil(t, entry.LastPlayedAt)
}

func TestUpdateEntryValidation(t *testing.T) {
	svc, _, gid := setup(t)
	ctx := context.Background()

	_, err := svc.UpdateEntry(ctx, 1, gid, library.EntryPatch{Status: strPtr("paused")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.UpdateEntry(ctx, 1, gid, library.EntryPatch{CompletionPercentage: intPtr(150)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.UpdateEntry(ctx, 1, gid, library.EntryPatch{PlayTime: intPtr(-5)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateEntryUnknownGame(t *testing.T) {
	svc, _, _ := setup(t)
	_, err := svc.UpdateEntry(context.Background(), 1, 9999, library.EntryPatch{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateEntryUpsertsNotDuplicates(t *testing.T) {
	svc, db, gid := setup(t)
	ctx := context.Background()

	_, err := svc.UpdateEntry(ctx, 1, gid, library.EntryPatch{Status: strPtr(model.LibraryPlaying)})
	require.NoError(t, err)
	_, err = svc.UpdateEntry(ctx, 1, gid, library.EntryPatch{PlayTime: intPtr(60)})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&model.LibraryEntry{}).Where("user_id = ? AND game_id = ?", 1, gid).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	entry, err := svc.Entry(ctx, 1, gid)
	require.NoError(t, err)
	assert.Equal(t, model.LibraryPlaying, entry.Status)
	assert.Equal(t, 60, entry.PlayTime)
}

func TestProgressHistoryAppendsPerUpdate(t *testing.T) {
	svc, _, gid := setup(t)
	ctx := context.Background()

	for _, pct := range []int{10, 40, 90} {
		_, err := svc.UpdateEntry(ctx, 1, gid, library.EntryPatch{CompletionPercentage: intPtr(pct)})
		require.NoError(t, err)
	}

	points, err := svc.History(ctx, 1, gid)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 10, points[0].CompletionPercentage)
	assert.Equal(t, 90, points[2].CompletionPercentage)
}

func TestStatusChangeEmitsActivity(t *testing.T) {
	svc, db, gid := setup(t)
	ctx := context.Background()

	_, err := svc.UpdateEntry(ctx, 1, gid, library.EntryPatch{Status: strPtr(model.LibraryPlaying)})
	require.NoError(t, err)
	_, err = svc.UpdateEntry(ctx, 1, gid, library.EntryPatch{Status: strPtr(model.LibraryCompleted)})
	require.NoError(t, err)
	// No status change: plain progress event.
	_, err = svc.UpdateEntry(ctx, 1, gid, library.EntryPatch{PlayTime: intPtr(120)})
	require.NoError(t, err)

	var events []model.ActivityEvent
	require.NoError(t, db.Where("actor_id = ?", 1).Order("id ASC").Find(&events).Error)
	require.Len(t, events, 3)
	assert.Equal(t, model.ActivityStatusChanged, events[0].Type)
	assert.Equal(t, model.ActivityGameCompleted, events[1].Type)
	assert.Equal(t, model.ActivityProgress, events[2].Type)
}

func TestLibraryChangeSurvivesActivityFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, ps := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()
	notifier := notify.New(ps, logger)
	events := activity.NewService(db, noFriends{}, notifier, logger)
	svc := library.NewService(db, events, nil, notifier, logger)

	game := model.Game{Name: "Outer Wilds"}
	require.NoError(t, db.Create(&game).Error)

	// Dropping the events table makes the trailing write fail while the
	// library transaction still commits.
	require.NoError(t, db.Migrator().DropTable(&model.ActivityEvent{}))

	entry, err := svc.UpdateEntry(context.Background(), 1, game.ID, library.EntryPatch{
		Status: strPtr(model.LibraryPlaying),
	})
	require.NoError(t, err)
	assert.Equal(t, model.LibraryPlaying, entry.Status)

	var count int64
	require.NoError(t, db.Model(&model.ProgressPoint{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "progress point rides the committed transaction")
}

func TestListOrderedByRecency(t *testing.T) {
	svc, db, gid := setup(t)
	ctx := context.Background()

	game2 := model.Game{Name: "Hades"}
	require.NoError(t, db.Create(&game2).Error)

	_, err := svc.UpdateEntry(ctx, 1, gid, library.EntryPatch{})
	require.NoError(t, err)
	_, err = svc.UpdateEntry(ctx, 1, game2.ID, library.EntryPatch{})
	require.NoError(t, err)

	entries, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
