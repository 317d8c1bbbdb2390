// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// DialOption configures transport connections
type DialOption func(*dialOptions)

type dialOptions struct {
	transport   string
	readLimit   int64
	dialTimeout time.Duration
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithReadLimit caps the size of one inbound frame
func WithReadLimit(n int64) DialOption {
	return func(o *dialOptions) { o.readLimit = n }
}

// WithDialTimeout bounds connection setup
func WithDialTimeout(d time.Duration) DialOption {
	return func(o *dialOptions) { o.dialTimeout = d }
}

// Dial opens a Transport to addr using the default transport (WebSocket).
func Dial(ctx context.Context, addr string, opts ...DialOption) (Transport, error) {
	o := &dialOptions{
		transport: DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}

	dial, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	if o.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.dialTimeout)
		defer cancel()
	}
	t, err := dial(ctx, addr, o)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	return t, nil
}

// Connect dials the command and stream endpoints named in cfg and returns a
// Client over both. Nothing is sent; call Login next.
func Connect(ctx context.Context, cfg Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	dialOpts := []DialOption{
		WithTransport(cfg.Transport),
		WithReadLimit(cfg.ReadLimit),
		WithDialTimeout(cfg.DialTimeout),
	}

	cmd, err := Dial(ctx, cfg.CommandURL, dialOpts...)
	if err != nil {
		return nil, err
	}

	var stream Transport
	if cfg.StreamURL != "" {
		stream, err = Dial(ctx, cfg.StreamURL, dialOpts...)
		if err != nil {
			var result *multierror.Error
			result = multierror.Append(result, err)
			if cerr := cmd.Close(); cerr != nil {
				result = multierror.Append(result, cerr)
			}
			return nil, result.ErrorOrNil()
		}
	}

	base := []ClientOption{
		WithRequestTimeout(cfg.RequestTimeout),
		WithLogger(logger),
	}
	if stream != nil {
		base = append(base, WithStream(stream))
	}
	return NewClient(cmd, append(base, opts...)...), nil
}
