// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
)

// pipeTransport is an in-memory Transport. Frames pushed with push are
// returned by Recv; frames passed to Send show up on sent.
type pipeTransport struct {
	in   chan []byte
	sent chan []byte
	done chan struct{}

	once sync.Once
	mu   sync.Mutex
	err  error
}

func newPipe() *pipeTransport {
	return &pipeTransport{
		in:   make(chan []byte, 256),
		sent: make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

func (p *pipeTransport) Send(ctx context.Context, data []byte) error {
	select {
	case <-p.done:
		return io.ErrClosedPipe
	default:
	}
	frame := append([]byte(nil), data...)
	select {
	case p.sent <- frame:
		return nil
	case <-p.done:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-p.in:
		return frame, nil
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return nil, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeTransport) Close() error {
	p.fail(io.EOF)
	return nil
}

// fail ends the connection; Recv reports err.
func (p *pipeTransport) fail(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *pipeTransport) push(frame string) {
	p.in <- []byte(frame)
}

// venueFunc answers one command with zero or more frames.
type venueFunc func(cmd Command) []string

// serveVenue answers every frame the client sends on p until p closes.
func serveVenue(t *testing.T, p *pipeTransport, handle venueFunc) {
	t.Helper()
	go func() {
		for {
			select {
			case frame := <-p.sent:
				var cmd Command
				if err := json.Unmarshal(frame, &cmd); err != nil {
					t.Errorf("venue: bad command frame %s: %v", frame, err)
					return
				}
				for _, reply := range handle(cmd) {
					select {
					case p.in <- []byte(reply):
					case <-p.done:
						return
					}
				}
			case <-p.done:
				return
			}
		}
	}()
}

// reply builds a status=true frame echoing cmd's tag with the given extra fields.
func reply(cmd Command, fields map[string]interface{}) string {
	out := map[string]interface{}{"status": true, "customTag": cmd.CustomTag}
	for k, v := range fields {
		out[k] = v
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// failure builds a status=false frame echoing cmd's tag.
func failure(cmd Command, code, desc string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"status":           false,
		"customTag":        cmd.CustomTag,
		"errorCode":        code,
		"errorDescription": desc,
	})
	return string(b)
}

func testLogger(t *testing.T) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   t.Name(),
		Level:  hclog.Trace,
		Output: testWriter{t},
	})
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
