package local_test

import (
	"context"
	"testing"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/cache/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetDel(t *testing.T) {
	c, err := local.NewCache(local.Config{})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.Del(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, local.ErrNotFound)
}

func TestTTLExpiry(t *testing.T) {
	c, err := local.NewCache(local.Config{})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, local.ErrNotFound)
	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSetNX(t *testing.T) {
	c, err := local.NewCache(local.Config{})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "a", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "b", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := c.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestPubSubFanOut(t *testing.T) {
	ps := local.NewPubSub(8)
	ctx := context.Background()

	ch1, cancel1, err := ps.Subscribe(ctx, "feed:1")
	require.NoError(t, err)
	defer cancel1()
	ch2, cancel2, err := ps.Subscribe(ctx, "feed:1", "feed:2")
	require.NoError(t, err)
	defer cancel2()

	require.NoError(t, ps.Publish(ctx, "feed:1", "hello"))

	for _, ch := range []<-chan *local.LocalMessage{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, "feed:1", msg.Channel)
			assert.Equal(t, "hello", msg.Payload)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}
}

func TestPubSubCancelStopsDelivery(t *testing.T) {
	ps := local.NewPubSub(8)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "feed:1")
	require.NoError(t, err)
	cancel()

	require.NoError(t, ps.Publish(ctx, "feed:1", "late"))
	_, open := <-ch
	assert.False(t, open, "cancelled subscription channel should be closed")
}
