package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, ch <-chan Update[T]) Update[T] {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "channel closed")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update[T]{}
}

func TestCell_LatestEmpty(t *testing.T) {
	c := New[string]()
	_, ok := c.Latest()
	assert.False(t, ok)
}

func TestCell_PublishAndSubscribe(t *testing.T) {
	c := New[string]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := c.Subscribe(ctx)
	seq := c.Publish("a")
	assert.Equal(t, uint64(1), seq)

	u := recv(t, ch)
	assert.Equal(t, "a", u.Value)
	assert.Equal(t, uint64(1), u.Seq)
}

func TestCell_LastWriteWinsForSlowSubscriber(t *testing.T) {
	c := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := c.Subscribe(ctx)
	for i := 1; i <= 5; i++ {
		c.Publish(i)
	}

	u := recv(t, ch)
	assert.Equal(t, 5, u.Value, "a lagging subscriber only sees the newest value")
	assert.Equal(t, uint64(5), u.Seq)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected queued update %+v", extra)
	default:
	}
}

func TestCell_LateSubscriberSeesLatestOnly(t *testing.T) {
	c := New[string]()
	c.Publish("old")
	c.Publish("new")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	u := recv(t, c.Subscribe(ctx))
	assert.Equal(t, "new", u.Value)
}

func TestCell_SubscribeClosesOnCancel(t *testing.T) {
	c := New[string]()
	ctx, cancel := context.WithCancel(context.Background())
	ch := c.Subscribe(ctx)
	require.Equal(t, 1, c.Subscribers())

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
	assert.Eventually(t, func() bool { return c.Subscribers() == 0 }, time.Second, 5*time.Millisecond)

	// Publishing after unsubscribe must not panic on the closed channel.
	c.Publish("after")
}

func TestCell_OnPublishHook(t *testing.T) {
	c := New[string]()
	var got []string
	c.OnPublish(func(u Update[string]) { got = append(got, u.Value) })

	c.Publish("x")
	c.Publish("y")
	assert.Equal(t, []string{"x", "y"}, got)
}

func TestCell_ConcurrentPublish(t *testing.T) {
	c := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			c.Publish(v)
		}(i)
	}
	wg.Wait()

	u, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(50), u.Seq)
}
