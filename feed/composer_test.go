package feed_test

import (
	"context"
	"testing"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/activity"
	"github.com/JassinAlSafe/gamerfie-sub001/feed"
	"github.com/JassinAlSafe/gamerfie-sub001/library"
	"github.com/JassinAlSafe/gamerfie-sub001/model"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"github.com/JassinAlSafe/gamerfie-sub001/social"
	"github.com/JassinAlSafe/gamerfie-sub001/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	composer *feed.Composer
	social   *social.Service
	activity *activity.Service
	viewer   int64
	friend   int64
	stranger int64
	game     int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	_, ps := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()
	notifier := notify.New(ps, logger)

	socialSvc := social.NewService(db, notifier, logger)
	activitySvc := activity.NewService(db, socialSvc, notifier, logger)
	composer := feed.NewComposer(db, socialSvc, activitySvc, 20, 100, logger)

	users := []model.User{
		{Username: "viewer", PasswordHash: "x"},
		{Username: "friend", PasswordHash: "x", AvatarURL: "http://img/f.png"},
		{Username: "stranger", PasswordHash: "x"},
	}
	for i := range users {
		require.NoError(t, db.Create(&users[i]).Error)
	}
	game := model.Game{Name: "Stardew Valley", CoverURL: "http://img/sdv.png"}
	require.NoError(t, db.Create(&game).Error)

	f := &fixture{
		db:       db,
		composer: composer,
		social:   socialSvc,
		activity: activitySvc,
		viewer:   users[0].ID,
		friend:   users[1].ID,
		stranger: users[2].ID,
		game:     game.ID,
	}

	edge, err := socialSvc.Request(context.Background(), f.viewer, f.friend)
	require.NoError(t, err)
	_, err = socialSvc.Respond(context.Background(), f.friend, edge.ID, model.FriendAccepted)
	require.NoError(t, err)
	return f
}

func (f *fixture) record(t *testing.T, actorID int64, isPublic bool) *model.ActivityEvent {
	t.Helper()
	event, err := f.activity.Record(context.Background(), actorID, model.ActivityProgress,
		activity.Subject{GameID: &f.game},
		map[string]interface{}{"completion_percentage": 50}, isPublic)
	require.NoError(t, err)
	return event
}

func TestEmptyFriendSetShortCircuits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, ps := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()
	notifier := notify.New(ps, logger)
	socialSvc := social.NewService(db, notifier, logger)
	activitySvc := activity.NewService(db, socialSvc, notifier, logger)
	composer := feed.NewComposer(db, socialSvc, activitySvc, 20, 100, logger)

	page, err := composer.Page(context.Background(), 42, 0, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Events)
	assert.False(t, page.HasMore)
}

func TestPageShowsFriendEventsOnly(t *testing.T) {
	f := setup(t)

	f.record(t, f.friend, true)
	f.record(t, f.stranger, true)
	f.record(t, f.viewer, true) // own events are not in the friend feed

	page, err := f.composer.Page(context.Background(), f.viewer, 0, 20)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, f.friend, page.Events[0].Actor.ID)
	assert.Equal(t, "friend", page.Events[0].Actor.Username)
}

func TestPageHidesPrivateEvents(t *testing.T) {
	f := setup(t)

	f.record(t, f.friend, true)
	f.record(t, f.friend, false)

	page, err := f.composer.Page(context.Background(), f.viewer, 0, 20)
	require.NoError(t, err)
	assert.Len(t, page.Events, 1)
}

func TestPageResolvesGameAndCounts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	event := f.record(t, f.friend, true)
	require.NoError(t, f.db.Create(&model.Reaction{EventID: event.ID, UserID: f.viewer, Kind: "like"}).Error)
	require.NoError(t, f.db.Create(&model.Reaction{EventID: event.ID, UserID: f.stranger, Kind: "love"}).Error)
	require.NoError(t, f.db.Create(&model.Comment{EventID: event.ID, UserID: f.viewer, Content: "nice"}).Error)

	page, err := f.composer.Page(ctx, f.viewer, 0, 20)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)

	view := page.Events[0]
	require.NotNil(t, view.SubjectGame)
	assert.Equal(t, "Stardew Valley", view.SubjectGame.Name)
	assert.EqualValues(t, 2, view.ReactionsCount)
	assert.EqualValues(t, 1, view.CommentsCount)
}

func TestPageDegradesDeletedGame(t *testing.T) {
	f := setup(t)

	f.record(t, f.friend, true)
	require.NoError(t, f.db.Delete(&model.Game{}, f.game).Error)

	page, err := f.composer.Page(context.Background(), f.viewer, 0, 20)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Nil(t, page.Events[0].SubjectGame)
}

func TestPaginationProbeAndStability(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// Identical timestamps force the id tie-break path.
	ts := time.Now().Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		row := model.ActivityEvent{
			ActorID:   f.friend,
			Type:      model.ActivityAchievement,
			Payload:   []byte(`{"name":"ace"}`),
			IsPublic:  true,
			CreatedAt: ts,
		}
		require.NoError(t, f.db.Create(&row).Error)
	}

	first, err := f.composer.Page(ctx, f.viewer, 0, 2)
	require.NoError(t, err)
	require.Len(t, first.Events, 2)
	assert.True(t, first.HasMore)

	second, err := f.composer.Page(ctx, f.viewer, 2, 2)
	require.NoError(t, err)
	require.Len(t, second.Events, 2)
	assert.True(t, second.HasMore)

	third, err := f.composer.Page(ctx, f.viewer, 4, 2)
	require.NoError(t, err)
	require.Len(t, third.Events, 1)
	assert.False(t, third.HasMore)

	seen := map[int64]bool{}
	for _, p := range []*feed.Page{first, second, third} {
		for _, ev := range p.Events {
			assert.False(t, seen[ev.ID], "event %d appeared twice across pages", ev.ID)
			seen[ev.ID] = true
		}
	}
	assert.Len(t, seen, 5)
}

func TestLibraryUpdateSurfacesInFriendFeed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()
	_, ps := testutil.SetupTestCache(t)
	librarySvc := library.NewService(f.db, f.activity, nil, notify.New(ps, logger), logger)

	status := model.LibraryCompleted
	_, err := librarySvc.UpdateEntry(ctx, f.friend, f.game, library.EntryPatch{Status: &status})
	require.NoError(t, err)

	page, err := f.composer.Page(ctx, f.viewer, 0, 20)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)

	view := page.Events[0]
	assert.Equal(t, model.ActivityGameCompleted, view.Type)
	assert.Equal(t, "friend", view.Actor.Username)
	require.NotNil(t, view.SubjectGame)
	assert.Equal(t, "Stardew Valley", view.SubjectGame.Name)
	assert.JSONEq(t,
		`{"play_time":0,"completion_percentage":0,"status":"completed"}`,
		string(view.Payload))
}

func TestLimitClamping(t *testing.T) {
	f := setup(t)
	f.record(t, f.friend, true)

	// limit <= 0 falls back to the default page size, oversized limits clamp.
	page, err := f.composer.Page(context.Background(), f.viewer, -3, 0)
	require.NoError(t, err)
	assert.Len(t, page.Events, 1)

	page, err = f.composer.Page(context.Background(), f.viewer, 0, 100000)
	require.NoError(t, err)
	assert.Len(t, page.Events, 1)
}
