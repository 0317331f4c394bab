package activity_test

import (
	"context"
	"testing"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/activity"
	"github.com/JassinAlSafe/gamerfie-sub001/apperr"
	"github.com/JassinAlSafe/gamerfie-sub001/model"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"github.com/JassinAlSafe/gamerfie-sub001/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type staticFriends struct {
	ids []int64
}

func (f *staticFriends) AcceptedFriendIDs(_ context.Context, _ int64) ([]int64, error) {
	return f.ids, nil
}

func setup(t *testing.T) (*activity.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	_, ps := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()
	svc := activity.NewService(db, &staticFriends{}, notify.New(ps, logger), logger)
	return svc, db
}

func gameID(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	game := model.Game{Name: "Hollow Knight"}
	require.NoError(t, db.Create(&game).Error)
	return game.ID
}

func TestRecordAndGet(t *testing.T) {
	svc, db := setup(t)
	gid := gameID(t, db)

	event, err := svc.Record(context.Background(), 1, model.ActivityProgress,
		activity.Subject{GameID: &gid},
		map[string]interface{}{"completion_percentage": 40}, true)
	require.NoError(t, err)
	assert.NotZero(t, event.ID)

	got, err := svc.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)
	assert.JSONEq(t, `{"completion_percentage":40}`, string(got.Payload))
}

func TestGetUnknownEvent(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.Get(context.Background(), 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPayloadValidation(t *testing.T) {
	svc, db := setup(t)
	gid := gameID(t, db)
	ctx := context.Background()

	cases := []struct {
		name    string
		typ     string
		subject activity.Subject
		payload map[string]interface{}
	}{
		{"unknown type", "poked", activity.Subject{}, nil},
		{"status without game", model.ActivityStatusChanged, activity.Subject{}, map[string]interface{}{"status": "playing"}},
		{"status without status", model.ActivityStatusChanged, activity.Subject{GameID: &gid}, map[string]interface{}{}},
		{"progress without game", model.ActivityProgress, activity.Subject{}, nil},
		{"completed without game", model.ActivityGameCompleted, activity.Subject{}, nil},
		{"achievement without name", model.ActivityAchievement, activity.Subject{}, map[string]interface{}{}},
		{"review without rating", model.ActivityReview, activity.Subject{}, map[string]interface{}{}},
		{"friend accepted without friend", model.ActivityFriendAccepted, activity.Subject{}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(ctx, 1, tc.typ, tc.subject, tc.payload, true)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestEventsByActorsVisibility(t *testing.T) {
	svc, db := setup(t)
	gid := gameID(t, db)
	ctx := context.Background()

	_, err := svc.Record(ctx, 1, model.ActivityProgress, activity.Subject{GameID: &gid},
		map[string]interface{}{"play_time": 10}, true)
	require.NoError(t, err)
	_, err = svc.Record(ctx, 1, model.ActivityProgress, activity.Subject{GameID: &gid},
		map[string]interface{}{"play_time": 20}, false)
	require.NoError(t, err)

	events, err := svc.EventsByActors(ctx, []int64{1}, 0, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1, "private events must not leak into friend queries")

	// The actor themselves sees both.
	own, err := svc.EventsByActor(ctx, 1, 0, 10)
	require.NoError(t, err)
	assert.Len(t, own, 2)
}

func TestEventsByActorsEmptySet(t *testing.T) {
	svc, _ := setup(t)
	events, err := svc.EventsByActors(context.Background(), nil, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestOrderingTieBreakByID(t *testing.T) {
	_, db := setup(t)
	_, ps := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()
	svc := activity.NewService(db, &staticFriends{}, notify.New(ps, logger), logger)

	// Batch writers can land several rows in the same millisecond. Insert
	// rows with an identical timestamp directly to force the tie.
	ts := time.Now().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		row := model.ActivityEvent{
			ActorID:   7,
			Type:      model.ActivityAchievement,
			Payload:   []byte(`{"name":"speedrun"}`),
			IsPublic:  true,
			CreatedAt: ts,
		}
		require.NoError(t, db.Create(&row).Error)
	}

	events, err := svc.EventsByActors(context.Background(), []int64{7}, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Greater(t, events[0].ID, events[1].ID)
	assert.Greater(t, events[1].ID, events[2].ID)

	// The order is stable across paginated fetches.
	first, err := svc.EventsByActors(context.Background(), []int64{7}, 0, 2)
	require.NoError(t, err)
	second, err := svc.EventsByActors(context.Background(), []int64{7}, 2, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Len(t, second, 1)
	assert.NotContains(t, []int64{first[0].ID, first[1].ID}, second[0].ID)
}
