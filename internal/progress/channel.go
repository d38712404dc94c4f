package progress

import (
	"context"
	"errors"
	"iter"
	"sync"
)

// ErrClosed is returned by Wait once a channel is closed and the caller has
// already seen its final value.
var ErrClosed = errors.New("progress channel closed")

// Publisher accepts status labels.
type Publisher interface {
	Publish(status string)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(status string)

func (f PublisherFunc) Publish(status string) { f(status) }

// Discard drops every label.
var Discard Publisher = PublisherFunc(func(string) {})

// Channel is a latest-value-wins status cell with blocking readers.
type Channel struct {
	mu      sync.Mutex
	cond    *sync.Cond
	value   string
	version uint64
	closed  bool
}

// NewChannel returns an empty open channel.
func NewChannel() *Channel {
	c := &Channel{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Publish replaces the current value and wakes waiters. Publishing to a
// closed channel is a no-op.
func (c *Channel) Publish(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.value = status
	c.version++
	c.cond.Broadcast()
}

// Latest returns the current value and its version. Version zero means
// nothing has been published.
func (c *Channel) Latest() (string, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.version
}

// Close marks the channel finished. Readers still receive the last value if
// they have not seen it.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Wait blocks until a value newer than since is available, the channel is
// closed, or ctx ends.
func (c *Channel) Wait(ctx context.Context, since uint64) (string, uint64, error) {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if c.version > since {
			return c.value, c.version, nil
		}
		if c.closed {
			return c.value, c.version, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return c.value, c.version, err
		}
		c.cond.Wait()
	}
}

// Subscribe yields the current value, if any, and then each newer value as
// it is observed. Values published faster than the consumer reads are
// coalesced. The sequence ends when ctx ends or the channel is closed.
func (c *Channel) Subscribe(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		var since uint64
		for {
			value, version, err := c.Wait(ctx, since)
			if err != nil {
				return
			}
			since = version
			if !yield(value) {
				return
			}
		}
	}
}
