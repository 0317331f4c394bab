package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/model"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"github.com/JassinAlSafe/gamerfie-sub001/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUpsertDeliversChange(t *testing.T) {
	_, ps := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()
	n := notify.New(ps, logger)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, notify.FeedChannel(7))
	require.NoError(t, err)
	defer cancel()

	n.Upsert(ctx, "friend_edge", &model.FriendEdge{ID: 3, RequesterID: 1, RecipientID: 7}, notify.FeedChannel(7))

	select {
	case msg := <-ch:
		var change notify.Change
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &change))
		assert.Equal(t, "friend_edge", change.Resource)
		assert.Equal(t, notify.OpUpsert, change.Op)

		var edge model.FriendEdge
		require.NoError(t, json.Unmarshal(change.Row, &edge))
		assert.EqualValues(t, 3, edge.ID)
	case <-time.After(time.Second):
		t.Fatal("change not delivered")
	}
}

func TestDeleteOp(t *testing.T) {
	_, ps := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()
	n := notify.New(ps, logger)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, notify.EventChannel(9))
	require.NoError(t, err)
	defer cancel()

	n.Delete(ctx, "reaction", &model.Reaction{EventID: 9, UserID: 2, Kind: "like"}, notify.EventChannel(9))

	select {
	case msg := <-ch:
		var change notify.Change
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &change))
		assert.Equal(t, notify.OpDelete, change.Op)
	case <-time.After(time.Second):
		t.Fatal("change not delivered")
	}
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "feed:5", notify.FeedChannel(5))
	assert.Equal(t, "library:5:9", notify.LibraryChannel(5, 9))
	assert.Equal(t, "progress:5:9", notify.ProgressChannel(5, 9))
	assert.Equal(t, "event:11", notify.EventChannel(11))
}
