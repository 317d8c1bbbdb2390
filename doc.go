// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package xapi is a client for a trading venue's JSON command API spoken over
// a persistent WebSocket.
//
// Every command carries a client-generated customTag and the venue echoes it
// on the reply. One goroutine per connection reads frames and routes each to
// the caller waiting on that tag, so many goroutines can share a connection.
//
// # Usage
//
//	client, err := xapi.Connect(ctx, xapi.DemoConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Login(ctx, "12345", "secret"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Typed call
//	version, err := xapi.Call[VersionData](ctx, client, "getVersion", nil)
//
//	// Venue failures
//	var re *xapi.RemoteError
//	if errors.As(err, &re) {
//	    log.Printf("%s: %s", re.Code, re.Description)
//	}
//
// # Transport Selection
//
// WebSocket is the default transport. Use build tags to enable alternatives:
//
//	go build              # WebSocket only (default)
//	go build -tags grpc   # Enable the gRPC relay transport
//
// # Reply modes
//
// Unary commands (Login, Logout, Invoke, Call) read exactly one reply and
// release their tag. Subscribe sends a session-scoped command on the stream
// connection and keeps its tag registered until the Subscription is closed
// or the stream connection drops.
//
// # Architecture
//
//   - codec.go: command envelope encoding and reply classification
//   - channel.go: per-tag response channel (Producer/Consumer)
//   - mux.go: tag registry and the dispatch loop (Conn)
//   - client.go: Login, Logout, Invoke, Call, Subscribe
//   - transport.go, dial.go, ws.go: Transport interface and dialers
//   - dial_grpc.go: gRPC relay transport (requires -tags grpc)
//   - gateway.go, json.go: JSON-RPC 2.0 gateway and its HTTP client
//   - config.go: TOML configuration
package xapi
