// Package bus provides the typed last-write-wins cell that carries panel
// data from the chat component to the side panel.
//
// A Cell holds at most one value. Publishing replaces it and notifies every
// subscriber; a subscriber that falls behind only ever sees the newest
// value, never a queue of stale ones.
package bus

import (
	"context"
	"sync"
)

// Update is one emission on a Cell. Seq increases by one per Publish.
type Update[T any] struct {
	Seq   uint64
	Value T
}

// Cell is a concurrency-safe last-write-wins value with change notification.
type Cell[T any] struct {
	mu    sync.Mutex
	seq   uint64
	value T
	has   bool

	nextID int
	subs   map[int]chan Update[T]
	hooks  []func(Update[T])
}

// New returns an empty cell.
func New[T any]() *Cell[T] {
	return &Cell[T]{subs: make(map[int]chan Update[T])}
}

// Publish stores v and notifies subscribers. It returns the emission's
// sequence number.
func (c *Cell[T]) Publish(v T) uint64 {
	c.mu.Lock()
	c.seq++
	c.value = v
	c.has = true
	u := Update[T]{Seq: c.seq, Value: v}
	for _, ch := range c.subs {
		offer(ch, u)
	}
	hooks := append([]func(Update[T]){}, c.hooks...)
	c.mu.Unlock()

	for _, h := range hooks {
		h(u)
	}
	return u.Seq
}

// Latest returns the most recent emission, if any.
func (c *Cell[T]) Latest() (Update[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Update[T]{Seq: c.seq, Value: c.value}, c.has
}

// Subscribe returns a channel that receives emissions until ctx is done,
// at which point the channel is closed. If the cell already holds a value
// it is delivered first.
func (c *Cell[T]) Subscribe(ctx context.Context) <-chan Update[T] {
	ch := make(chan Update[T], 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	if c.has {
		ch <- Update[T]{Seq: c.seq, Value: c.value}
	}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subs, id)
		close(ch)
		c.mu.Unlock()
	}()
	return ch
}

// OnPublish registers fn to run synchronously after every Publish, outside
// the cell's lock.
func (c *Cell[T]) OnPublish(fn func(Update[T])) {
	c.mu.Lock()
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// Subscribers reports the number of live subscriptions.
func (c *Cell[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// offer puts u on ch, replacing an unread value. Callers hold the cell lock,
// so there is no competing sender.
func offer[T any](ch chan Update[T], u Update[T]) {
	select {
	case ch <- u:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- u
}
