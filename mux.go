// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	metrics "github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
)

// registry maps pending tags to the producer side of their response channel.
type registry struct {
	mu        sync.Mutex
	producers map[string]*Producer
	closed    bool
}

func newRegistry() *registry {
	return &registry{producers: make(map[string]*Producer)}
}

// register creates a response channel for tag. Closing either handle removes
// the entry again.
func (r *registry) register(tag string) (*Consumer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if _, ok := r.producers[tag]; ok {
		return nil, ErrTagInUse
	}

	var p *Producer
	p, c := newResponseChannel(func() { r.remove(tag, p) })
	r.producers[tag] = p
	return c, nil
}

// remove drops tag only while it still maps to p, so a closed channel never
// evicts a newer registration that reused the tag.
func (r *registry) remove(tag string, p *Producer) {
	r.mu.Lock()
	if cur, ok := r.producers[tag]; ok && cur == p {
		delete(r.producers, tag)
	}
	r.mu.Unlock()
}

func (r *registry) deliver(tag string, resp *Response) bool {
	r.mu.Lock()
	p, ok := r.producers[tag]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return p.Write(resp)
}

// closeAll closes every pending channel and refuses new registrations.
func (r *registry) closeAll() {
	r.mu.Lock()
	r.closed = true
	pending := make([]*Producer, 0, len(r.producers))
	for _, p := range r.producers {
		pending = append(pending, p)
	}
	r.mu.Unlock()

	for _, p := range pending {
		p.Close()
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.producers)
}

// ConnOption configures a Conn
type ConnOption func(*connOptions)

type connOptions struct {
	logger hclog.Logger
}

// WithConnLogger sets the logger used by the dispatch loop
func WithConnLogger(l hclog.Logger) ConnOption {
	return func(o *connOptions) { o.logger = l }
}

// Conn multiplexes tagged commands over one Transport. A single goroutine
// reads frames and routes each to the channel registered under its tag.
type Conn struct {
	t       Transport
	reg     *registry
	logger  hclog.Logger
	writeMu sync.Mutex

	cancel   context.CancelFunc
	closed   atomic.Bool
	readDone chan struct{}

	errMu sync.Mutex
	err   error
}

// NewConn starts the dispatch loop over t.
func NewConn(t Transport, opts ...ConnOption) *Conn {
	o := &connOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = hclog.NewNullLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		t:        t,
		reg:      newRegistry(),
		logger:   o.logger,
		cancel:   cancel,
		readDone: make(chan struct{}),
	}
	go c.readLoop(ctx)
	return c
}

// Register reserves tag and returns the channel its responses will arrive on.
// Call it before sending the command so a fast reply is not lost. Once the
// dispatch loop has failed, the error wraps both ErrClosed and the transport
// error.
func (c *Conn) Register(tag string) (*Consumer, error) {
	consumer, err := c.reg.register(tag)
	if errors.Is(err, ErrClosed) {
		if cerr := c.Err(); cerr != nil {
			return nil, fmt.Errorf("%w: %w", ErrClosed, cerr)
		}
	}
	return consumer, err
}

// Send writes one frame. Concurrent callers are serialized.
func (c *Conn) Send(ctx context.Context, frame []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	select {
	case <-c.readDone:
		if err := c.Err(); err != nil {
			return err
		}
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	err := c.t.Send(ctx, frame)
	c.writeMu.Unlock()
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return err
		}
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

// Pending returns the number of registered tags.
func (c *Conn) Pending() int { return c.reg.len() }

// Done is closed once the dispatch loop has stopped.
func (c *Conn) Done() <-chan struct{} { return c.readDone }

// Err returns the transport error that stopped the dispatch loop, if any.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close closes the transport and waits for the dispatch loop to exit. Every
// pending channel is closed.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.cancel()
	err := c.t.Close()
	<-c.readDone
	return err
}

func (c *Conn) readLoop(ctx context.Context) {
	defer close(c.readDone)
	defer c.reg.closeAll()

	for {
		frame, err := c.t.Recv(ctx)
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn("transport receive failed, closing pending requests",
				"pending", c.reg.len(),
				"error", err,
			)
			c.setErr(&TransportError{Op: "receive", Err: err})
			return
		}
		c.dispatch(frame)
	}
}

func (c *Conn) dispatch(frame []byte) {
	resp, err := DecodeResponse(frame)
	if err != nil {
		metrics.IncrCounter([]string{"xapi", "mux", "malformed"}, 1)
		c.logger.Debug("skipping undecodable frame", "error", err)
		return
	}
	if resp.Tag == "" {
		metrics.IncrCounter([]string{"xapi", "mux", "dropped"}, 1)
		c.logger.Trace("dropping untagged frame")
		return
	}
	if !c.reg.deliver(resp.Tag, resp) {
		metrics.IncrCounter([]string{"xapi", "mux", "dropped"}, 1)
		c.logger.Debug("dropping frame for unknown tag", "tag", resp.Tag)
		return
	}
	metrics.IncrCounter([]string{"xapi", "mux", "dispatched"}, 1)
}

func (c *Conn) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}
