// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// Command names used by the client itself.
const (
	CommandLogin  = "login"
	CommandLogout = "logout"
)

const tagPrefix = "cmd_"

// ClientOption configures a Client
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger         hclog.Logger
	requestTimeout time.Duration
	stream         Transport
	codec          Codec
}

// WithLogger sets the client logger
func WithLogger(l hclog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// WithRequestTimeout bounds every request whose context has no deadline.
// Zero disables the bound.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.requestTimeout = d }
}

// WithStream attaches the push/stream connection used by Subscribe
func WithStream(t Transport) ClientOption {
	return func(o *clientOptions) { o.stream = t }
}

// WithCodec sets a custom codec for command arguments
func WithCodec(c Codec) ClientOption {
	return func(o *clientOptions) { o.codec = c }
}

// Client issues tagged commands to the venue and waits for the matching
// replies. It is safe for concurrent use.
type Client struct {
	cmd    *Conn
	stream *Conn

	logger         hclog.Logger
	codec          Codec
	requestTimeout time.Duration

	nextTag atomic.Uint64

	sessionMu sync.RWMutex
	session   string
}

// NewClient builds a Client over an already connected command transport.
func NewClient(cmd Transport, opts ...ClientOption) *Client {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = hclog.NewNullLogger()
	}
	if o.codec == nil {
		o.codec = defaultCodec
	}

	c := &Client{
		cmd:            NewConn(cmd, WithConnLogger(o.logger.Named("mux"))),
		logger:         o.logger.Named("client"),
		codec:          o.codec,
		requestTimeout: o.requestTimeout,
	}
	if o.stream != nil {
		c.stream = NewConn(o.stream, WithConnLogger(o.logger.Named("stream")))
	}
	return c
}

// LoginArgs is the argument object of the login command.
type LoginArgs struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

// Login authenticates the session and stores the stream session id the venue
// hands back.
func (c *Client) Login(ctx context.Context, userID, password string) error {
	s, err := c.Invoke(ctx, CommandLogin, LoginArgs{UserID: userID, Password: password})
	if err != nil {
		return err
	}
	if s.StreamSessionID == "" {
		return ErrMissingSessionMarker
	}

	c.sessionMu.Lock()
	c.session = s.StreamSessionID
	c.sessionMu.Unlock()
	c.logger.Info("logged in", "user", userID)
	return nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.Invoke(ctx, CommandLogout, nil); err != nil {
		return err
	}

	c.sessionMu.Lock()
	c.session = ""
	c.sessionMu.Unlock()
	c.logger.Info("logged out")
	return nil
}

// StreamSessionID returns the id stored by the last successful Login.
func (c *Client) StreamSessionID() (string, bool) {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.session, c.session != ""
}

// Invoke sends command with args and waits for the first reply carrying its
// tag. A status=false reply is returned as a *RemoteError.
func (c *Client) Invoke(ctx context.Context, command string, args interface{}) (*Success, error) {
	defer metrics.MeasureSince([]string{"xapi", "client", "request"}, time.Now())

	if c.requestTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
			defer cancel()
		}
	}

	tag := c.newTag()
	frame, err := encodeCommand(c.codec, command, args, tag, "")
	if err != nil {
		return nil, err
	}

	consumer, err := c.cmd.Register(tag)
	if err != nil {
		return nil, err
	}
	defer consumer.Close()

	// A transport may drop the whole connection when a write outlives its
	// ctx, so the request deadline bounds only the wait for the reply.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.cmd.Send(context.WithoutCancel(ctx), frame); err != nil {
		return nil, err
	}

	resp, err := consumer.ReadFirst(ctx)
	if err != nil {
		if err == ErrNoResponse {
			if cerr := c.cmd.Err(); cerr != nil {
				return nil, fmt.Errorf("%w: %w", ErrNoResponse, cerr)
			}
		}
		c.logger.Debug("request abandoned", "command", command, "tag", tag, "error", err)
		return nil, err
	}
	s, err := resp.Result()
	if err != nil {
		return nil, err
	}
	s.codec = c.codec
	return s, nil
}

// Call invokes command and decodes returnData into D.
func Call[D any](ctx context.Context, c *Client, command string, args interface{}) (D, error) {
	var out D
	s, err := c.Invoke(ctx, command, args)
	if err != nil {
		return out, err
	}
	err = s.Decode(&out)
	return out, err
}

// Subscription receives every reply the venue pushes under one tag on the
// stream connection until it is closed.
type Subscription struct {
	Tag      string
	consumer *Consumer
}

// All yields pushed replies in arrival order until the subscription or the
// stream connection closes, or ctx ends.
func (s *Subscription) All(ctx context.Context) iter.Seq[*Response] {
	return s.consumer.All(ctx)
}

// Next waits for the next pushed reply. It returns ErrNoResponse once the
// subscription is closed.
func (s *Subscription) Next(ctx context.Context) (*Response, error) {
	r, err := s.consumer.Read(ctx)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNoResponse
	}
	return r, nil
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.consumer.Done() }

// Close stops routing replies to the subscription.
func (s *Subscription) Close() { s.consumer.Close() }

// Subscribe sends a session-scoped command on the stream connection and keeps
// its channel open for repeated replies.
func (c *Client) Subscribe(ctx context.Context, command string, args interface{}) (*Subscription, error) {
	if c.stream == nil {
		return nil, fmt.Errorf("xapi: no stream connection configured")
	}
	session, ok := c.StreamSessionID()
	if !ok {
		return nil, ErrNotLoggedIn
	}

	tag := c.newTag()
	frame, err := encodeCommand(c.codec, command, args, tag, session)
	if err != nil {
		return nil, err
	}
	consumer, err := c.stream.Register(tag)
	if err != nil {
		return nil, err
	}
	if err := c.stream.Send(context.WithoutCancel(ctx), frame); err != nil {
		consumer.Close()
		return nil, err
	}
	c.logger.Debug("subscribed", "command", command, "tag", tag)
	return &Subscription{Tag: tag, consumer: consumer}, nil
}

// Pending returns the number of outstanding tags on the command connection.
func (c *Client) Pending() int { return c.cmd.Pending() }

// Close closes both connections. Pending calls return ErrNoResponse.
func (c *Client) Close() error {
	var result *multierror.Error
	if err := c.cmd.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close command connection: %w", err))
	}
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close stream connection: %w", err))
		}
	}
	return result.ErrorOrNil()
}

func (c *Client) newTag() string {
	return tagPrefix + strconv.FormatUint(c.nextTag.Add(1), 10)
}
