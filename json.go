// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	rpc "github.com/gorilla/rpc/v2/json2"
	"github.com/hashicorp/go-hclog"
)

const (
	maxRetries    = 3
	retryBaseWait = 500 * time.Millisecond
)

// Option configures a SendJSONRequest call
type Option func(*Options)

// Options holds per-request HTTP settings
type Options struct {
	headers     http.Header
	queryParams url.Values
	logger      hclog.Logger
	retryWait   time.Duration
}

// NewOptions applies options over the defaults
func NewOptions(options []Option) *Options {
	o := &Options{
		headers:     http.Header{},
		queryParams: url.Values{},
		logger:      hclog.NewNullLogger(),
		retryWait:   retryBaseWait,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// WithHeader adds a request header
func WithHeader(key, value string) Option {
	return func(o *Options) { o.headers.Add(key, value) }
}

// WithQueryParam adds a query parameter
func WithQueryParam(key, value string) Option {
	return func(o *Options) { o.queryParams.Add(key, value) }
}

// WithRequestLogger logs retries through l
func WithRequestLogger(l hclog.Logger) Option {
	return func(o *Options) { o.logger = l }
}

// WithRetryWait sets the first backoff step
func WithRetryWait(d time.Duration) Option {
	return func(o *Options) { o.retryWait = d }
}

// newHTTPClient creates a fresh HTTP client with disabled connection reuse.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body.
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// isRetryableError checks if an error is transient and worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	if errors.Is(err, io.EOF) || strings.Contains(errStr, "EOF") {
		return true
	}
	if strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") {
		return true
	}
	return false
}

// SendJSONRequest calls method on a JSON-RPC 2.0 endpoint such as the one
// served by NewGatewayHandler. Transient connection errors are retried with
// exponential backoff; a JSON-RPC error reply is returned as *json2.Error.
func SendJSONRequest(
	ctx context.Context,
	uri *url.URL,
	method string,
	params interface{},
	reply interface{},
	options ...Option,
) error {
	requestBodyBytes, err := rpc.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}

	ops := NewOptions(options)
	target := *uri
	target.RawQuery = ops.queryParams.Encode()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			waitTime := ops.retryWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}

		// Create fresh request for each attempt (body buffer is consumed)
		request, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			target.String(),
			bytes.NewBuffer(requestBodyBytes),
		)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		request.Header = ops.headers.Clone()
		request.Header.Set("Content-Type", "application/json")

		resp, err := newHTTPClient().Do(request)
		if err != nil {
			lastErr = err
			ops.logger.Debug("json-rpc request attempt failed",
				"method", method,
				"attempt", attempt+1,
				"retryable", isRetryableError(err),
				"error", err,
			)
			if isRetryableError(err) {
				continue
			}
			return fmt.Errorf("failed to issue request: %w", err)
		}
		if attempt > 0 {
			ops.logger.Debug("json-rpc request succeeded after retry", "method", method, "attempt", attempt+1)
		}

		decodeErr := rpc.DecodeClientResponse(resp.Body, reply)
		CleanlyCloseBody(resp.Body)

		// error replies may come with a non-2xx status
		var rpcErr *rpc.Error
		if errors.As(decodeErr, &rpcErr) {
			return rpcErr
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("received status code: %d", resp.StatusCode)
		}
		if decodeErr != nil {
			return fmt.Errorf("failed to decode client response: %w", decodeErr)
		}
		return nil
	}

	return fmt.Errorf("failed to issue request after %d retries: %w", maxRetries, lastErr)
}
