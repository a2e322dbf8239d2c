package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snt-portal/snt-portal/internal/kv"
	_ "github.com/snt-portal/snt-portal/testing"
)

func newStore(t *testing.T) (*kv.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return kv.NewStore(client, "test"), mr
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSetGetRemove(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	var missing payload
	found, err := store.Get(ctx, "absent", &missing)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "k", payload{Name: "plot", Count: 3}, time.Minute))

	var got payload
	found, err = store.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "plot", Count: 3}, got)

	require.NoError(t, store.Remove(ctx, "k"))
	found, err = store.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)

	// Removing an absent key is fine.
	assert.NoError(t, store.Remove(ctx, "k"))
}

func TestCorruptPayloadReadsAsAbsent(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("test:bad", "{not json"))

	var got payload
	found, err := store.Get(ctx, "bad", &got)
	require.NoError(t, err)
	assert.False(t, found)

	// The corrupt value is dropped so the key starts clean.
	assert.False(t, mr.Exists("test:bad"))
}

func TestTTL(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", payload{Name: "n"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	var got payload
	found, err := store.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPublishSubscribe(t *testing.T) {
	store, _ := newStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := store.Subscribe(ctx, "events")
	// Give the subscriber goroutine time to register.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, store.Publish(ctx, "events", payload{Name: "ping", Count: 1}))

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"name":"ping","count":1}`, string(msg))
	case <-ctx.Done():
		t.Fatal("timed out waiting for published message")
	}
}
