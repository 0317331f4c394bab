package activity_test

import (
	"context"
	"testing"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/activity"
	"github.com/JassinAlSafe/gamerfie-sub001/model"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"github.com/JassinAlSafe/gamerfie-sub001/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOutboxRetriesUntilSuccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, ps := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()
	svc := activity.NewService(db, &staticFriends{}, notify.New(ps, logger), logger)

	outbox := activity.NewOutbox(svc, 20*time.Millisecond, 16, logger)
	defer outbox.Stop()

	// Simulate the store outage that caused the original failure.
	require.NoError(t, db.Migrator().DropTable(&model.ActivityEvent{}))

	game := model.Game{Name: "Tunic"}
	require.NoError(t, db.Create(&game).Error)

	outbox.Enqueue(&activity.PendingRecord{
		ActorID:  1,
		Type:     model.ActivityProgress,
		Subject:  activity.Subject{GameID: &game.ID},
		Payload:  map[string]interface{}{"play_time": 5},
		IsPublic: true,
	})

	// Let at least one failing flush pass, then restore the store.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, db.AutoMigrate(&model.ActivityEvent{}))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := svc.EventsByActor(context.Background(), 1, 0, 10)
		require.NoError(t, err)
		if len(events) == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("outbox never landed the pending record")
}

func TestOutboxStopFlushes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, ps := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()
	svc := activity.NewService(db, &staticFriends{}, notify.New(ps, logger), logger)

	game := model.Game{Name: "Inside"}
	require.NoError(t, db.Create(&game).Error)

	// Long retry interval: only the Stop drain can flush this.
	outbox := activity.NewOutbox(svc, time.Hour, 16, logger)
	outbox.Enqueue(&activity.PendingRecord{
		ActorID:  2,
		Type:     model.ActivityProgress,
		Subject:  activity.Subject{GameID: &game.ID},
		Payload:  map[string]interface{}{"play_time": 1},
		IsPublic: true,
	})
	outbox.Stop()

	events, err := svc.EventsByActor(context.Background(), 2, 0, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
