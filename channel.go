// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"context"
	"iter"
	"sync"
)

// responseQueue is the state shared by one Producer/Consumer pair.
type responseQueue struct {
	mu     sync.Mutex
	items  []*Response
	closed bool

	// wake has capacity 1 so a writer never blocks and a pending wakeup is
	// never lost; readers always re-check items after waking.
	wake chan struct{}
	done chan struct{}

	closeOnce sync.Once
	onClose   func()
}

// Producer is the write side of a response channel, held by the dispatch loop.
type Producer struct {
	q *responseQueue
}

// Consumer is the read side of a response channel, held by the caller that
// issued the tagged command.
type Consumer struct {
	q *responseQueue
}

// newResponseChannel returns both handles over one queue. onClose, if set,
// runs exactly once when either side closes.
func newResponseChannel(onClose func()) (*Producer, *Consumer) {
	q := &responseQueue{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
	return &Producer{q: q}, &Consumer{q: q}
}

// Write appends r to the queue. It reports false and discards r if the
// channel is already closed.
func (p *Producer) Write(r *Response) bool {
	q := p.q
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, r)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Close closes the channel.
func (p *Producer) Close() { p.q.close() }

// Read pops the oldest response, suspending while the channel is open and
// empty. It returns (nil, nil) once the channel is closed, and ctx.Err() if
// ctx ends first.
func (c *Consumer) Read(ctx context.Context) (*Response, error) {
	q := c.q
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, nil
		}
		if len(q.items) > 0 {
			r := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return r, nil
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ReadFirst waits for one response and closes the channel. It returns
// ErrNoResponse if the channel closed before anything arrived.
func (c *Consumer) ReadFirst(ctx context.Context) (*Response, error) {
	defer c.Close()
	r, err := c.Read(ctx)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNoResponse
	}
	return r, nil
}

// All yields responses until the channel closes or ctx ends. Breaking out of
// the loop leaves the channel open; a later call resumes at the current head.
func (c *Consumer) All(ctx context.Context) iter.Seq[*Response] {
	return func(yield func(*Response) bool) {
		for {
			r, err := c.Read(ctx)
			if err != nil || r == nil {
				return
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Close closes the channel. Safe to call more than once.
func (c *Consumer) Close() { c.q.close() }

// Done is closed when the channel closes.
func (c *Consumer) Done() <-chan struct{} { return c.q.done }

// close discards anything still queued. A reply delivered just before the
// transport fails is lost if its reader has not woken yet; the reader then
// sees ErrNoResponse from ReadFirst.
func (q *responseQueue) close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.items = nil
		q.mu.Unlock()

		close(q.done)
		if q.onClose != nil {
			q.onClose()
		}
	})
}
