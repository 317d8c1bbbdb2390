//go:build grpc

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"context"
	"fmt"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func init() {
	// Register gRPC transport when build tag is enabled
	registerTransport(TransportGRPC, dialGRPC)
}

// RelayFramesMethod is the bidirectional stream a relay must serve. Each
// message is one venue frame, passed through unchanged.
const RelayFramesMethod = "/xapi.v1.Relay/Frames"

var relayStreamDesc = &grpc.StreamDesc{
	StreamName:    "Frames",
	ClientStreams: true,
	ServerStreams: true,
}

// rawFrameCodec moves frames as plain bytes instead of protobuf messages.
type rawFrameCodec struct{}

func (rawFrameCodec) Marshal(v interface{}) ([]byte, error) {
	switch m := v.(type) {
	case *[]byte:
		return *m, nil
	case []byte:
		return m, nil
	default:
		return nil, fmt.Errorf("xapi: cannot marshal %T as frame", v)
	}
}

func (rawFrameCodec) Unmarshal(data []byte, v interface{}) error {
	p, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("xapi: cannot unmarshal frame into %T", v)
	}
	*p = append((*p)[:0], data...)
	return nil
}

func (rawFrameCodec) Name() string { return "xapi-frame" }

// GRPCTransport tunnels venue frames through a gRPC relay stream.
type GRPCTransport struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc
	closed atomic.Bool
}

func dialGRPC(ctx context.Context, addr string, o *dialOptions) (Transport, error) {
	callOpts := []grpc.CallOption{grpc.ForceCodec(rawFrameCodec{})}
	if o.readLimit > 0 {
		callOpts = append(callOpts, grpc.MaxCallRecvMsgSize(int(o.readLimit)))
	}
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(callOpts...),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}

	// The stream outlives the dial context.
	streamCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	stream, err := conn.NewStream(streamCtx, relayStreamDesc, RelayFramesMethod)
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("grpc open stream: %w", err)
	}
	return &GRPCTransport{conn: conn, stream: stream, cancel: cancel}, nil
}

func (g *GRPCTransport) Send(_ context.Context, data []byte) error {
	if g.closed.Load() {
		return ErrClosed
	}
	return g.stream.SendMsg(&data)
}

func (g *GRPCTransport) Recv(_ context.Context) ([]byte, error) {
	var frame []byte
	if err := g.stream.RecvMsg(&frame); err != nil {
		if g.closed.Load() {
			return nil, ErrClosed
		}
		return nil, err
	}
	return frame, nil
}

func (g *GRPCTransport) Close() error {
	if g.closed.Swap(true) {
		return nil
	}
	g.cancel()
	return g.conn.Close()
}
