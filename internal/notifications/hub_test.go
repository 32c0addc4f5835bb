package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"truuo/internal/models"
	"truuo/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg := <-c.Send:
		return string(msg)
	case <-time.After(testEventuallyTimeout):
		t.Fatalf("client %s received nothing", c.UserID)
		return ""
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()

	a, err := hub.Register("u1", nil)
	require.NoError(t, err)
	b, err := hub.Register("u1", nil)
	require.NoError(t, err)
	_, err = hub.Register("u2", nil)
	require.NoError(t, err)

	assert.Equal(t, 3, hub.ClientCount())
	assert.Equal(t, int64(2), hub.OnlineUsers(ctx))

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 2, hub.ClientCount())
	assert.True(t, hub.IsOnline(ctx, "u1"))

	hub.UnregisterClient(b)
	assert.False(t, hub.IsOnline(ctx, "u1"))
	assert.Equal(t, int64(1), hub.OnlineUsers(ctx))

	_, open := <-a.Send
	assert.False(t, open)
}

func TestHub_ConnectionLimitPerUser(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register("busy", nil)
		require.NoError(t, err)
	}
	_, err := hub.Register("busy", nil)
	assert.ErrorIs(t, err, ErrUserConnLimit)

	_, err = hub.Register("other", nil)
	assert.NoError(t, err)
}

func TestHub_BroadcastAll(t *testing.T) {
	hub := NewHub(nil)
	clients := make([]*Client, 0, 3)
	for i := range 3 {
		c, err := hub.Register(fmt.Sprintf("u%d", i), nil)
		require.NoError(t, err)
		clients = append(clients, c)
	}

	hub.BroadcastAll([]byte(`{"type":"ping"}`))
	for _, c := range clients {
		assert.Equal(t, `{"type":"ping"}`, receive(t, c))
	}
}

func TestHub_PublishFeedEventLocally(t *testing.T) {
	hub := NewHub(nil)
	c, err := hub.Register("u1", nil)
	require.NoError(t, err)

	ev := models.FeedEvent{Type: models.EventPostCreated, Payload: map[string]any{"id": "p1"}}
	require.NoError(t, hub.PublishFeedEvent(context.Background(), ev))

	var got models.FeedEvent
	require.NoError(t, json.Unmarshal([]byte(receive(t, c)), &got))
	assert.Equal(t, ev, got)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub(nil)
	c, err := hub.Register("slow", nil)
	require.NoError(t, err)

	before := testutil.ToFloat64(observability.WebSocketBackpressureDrops)
	for range sendBuffer {
		require.True(t, c.TrySend([]byte("x")))
	}
	assert.False(t, c.TrySend([]byte("overflow")))
	assert.Equal(t, before+1, testutil.ToFloat64(observability.WebSocketBackpressureDrops))
	assert.Len(t, c.Send, sendBuffer)
}

func TestClient_TrySendAfterUnregister(t *testing.T) {
	hub := NewHub(nil)
	c, err := hub.Register("gone", nil)
	require.NoError(t, err)
	hub.UnregisterClient(c)

	assert.NotPanics(t, func() {
		assert.False(t, c.TrySend([]byte("late")))
	})
}

func TestHub_Shutdown(t *testing.T) {
	hub := NewHub(nil)
	c, err := hub.Register("u1", nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	_, open := <-c.Send
	assert.False(t, open)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, int64(0), hub.OnlineUsers(context.Background()))

	_, err = hub.Register("u2", nil)
	assert.ErrorIs(t, err, ErrHubClosed)

	// late unregister from a read pump must not double close
	assert.NotPanics(t, func() { hub.UnregisterClient(c) })
}

func TestHub_StartWiringAcrossInstances(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubA := NewHub(rdb)
	hubB := NewHub(rdb)
	require.NoError(t, hubA.StartWiring(ctx, NewNotifier(rdb)))
	require.NoError(t, hubB.StartWiring(ctx, NewNotifier(rdb)))

	a, err := hubA.Register("alice", nil)
	require.NoError(t, err)
	b, err := hubB.Register("bob", nil)
	require.NoError(t, err)

	ev := models.FeedEvent{Type: models.EventPostCreated, Payload: map[string]any{"id": "p9"}}
	require.NoError(t, NewNotifier(rdb).PublishFeedEvent(ctx, ev))

	assert.Contains(t, receive(t, a), `"p9"`)
	assert.Contains(t, receive(t, b), `"p9"`)

	// presence is shared through Redis
	assert.Equal(t, int64(2), hubA.OnlineUsers(ctx))
	assert.True(t, hubA.IsOnline(ctx, "bob"))
}

func TestPresence_PrunesStaleMembers(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	p := NewPresence(rdb)

	p.Register(ctx, "live")
	require.NoError(t, rdb.SAdd(ctx, presenceOnlineSetKey, "ghost").Err())

	assert.ElementsMatch(t, []string{"live"}, p.OnlineUserIDs(ctx))
	isMember, err := rdb.SIsMember(ctx, presenceOnlineSetKey, "ghost").Result()
	require.NoError(t, err)
	assert.False(t, isMember)

	// an expired last-seen key in Redis still leaves local connections online
	mr.FastForward(presenceTTL + time.Second)
	assert.ElementsMatch(t, []string{"live"}, p.OnlineUserIDs(ctx))

	p.Unregister(ctx, "live")
	assert.Empty(t, p.OnlineUserIDs(ctx))
	assert.False(t, mr.Exists(presenceLastSeenPrefix+"live"))
}
