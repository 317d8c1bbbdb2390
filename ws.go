// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"
)

// WebSocketTransport carries venue frames as WebSocket text messages.
type WebSocketTransport struct {
	conn   *websocket.Conn
	closed atomic.Bool
}

func dialWebSocket(ctx context.Context, addr string, o *dialOptions) (Transport, error) {
	conn, resp, err := websocket.Dial(ctx, addr, &websocket.DialOptions{
		HTTPClient: http.DefaultClient,
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s: %w (status: %s)", addr, err, resp.Status)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", addr, err)
	}
	return NewWebSocketTransport(conn, o.readLimit), nil
}

// NewWebSocketTransport wraps an established connection. A readLimit of zero
// keeps the library default.
func NewWebSocketTransport(conn *websocket.Conn, readLimit int64) *WebSocketTransport {
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	return &WebSocketTransport{conn: conn}
}

func (w *WebSocketTransport) Send(ctx context.Context, data []byte) error {
	if w.closed.Load() {
		return ErrClosed
	}
	return w.conn.Write(ctx, websocket.MessageText, data)
}

// Recv returns the next text or binary message. Control frames are handled
// by the library.
func (w *WebSocketTransport) Recv(ctx context.Context) ([]byte, error) {
	_, data, err := w.conn.Read(ctx)
	if err != nil {
		if w.closed.Load() {
			return nil, ErrClosed
		}
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			return nil, fmt.Errorf("websocket closed by peer: %d %s", ce.Code, ce.Reason)
		}
		return nil, err
	}
	return data, nil
}

func (w *WebSocketTransport) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	err := w.conn.Close(websocket.StatusNormalClosure, "")
	if err != nil && websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return nil
	}
	return err
}
