// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"context"
	"io"
	"sort"
	"sync"
)

// Transport is one duplex frame connection to the venue. Recv blocks until a
// frame arrives, ctx ends or the connection closes; Close must unblock it.
type Transport interface {
	io.Closer
	Send(ctx context.Context, data []byte) error
	Recv(ctx context.Context) ([]byte, error)
}

// Transport types
const (
	TransportWebSocket = "ws"   // default
	TransportGRPC      = "grpc" // gRPC relay, requires build tag
)

// DefaultTransport is the default transport type (WebSocket)
const DefaultTransport = TransportWebSocket

type dialFunc func(ctx context.Context, addr string, o *dialOptions) (Transport, error)

var (
	transportsMu sync.RWMutex
	transports   = map[string]dialFunc{
		TransportWebSocket: dialWebSocket,
	}
)

// registerTransport registers a new transport (used by build tags)
func registerTransport(name string, dial dialFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = dial
}

func lookupTransport(name string) (dialFunc, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	dial, ok := transports[name]
	return dial, ok
}

// AvailableTransports returns the registered transport types, sorted
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	_, ok := lookupTransport(name)
	return ok
}
