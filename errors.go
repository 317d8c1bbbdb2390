// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame       = errors.New("xapi: malformed frame")
	ErrMissingStatus        = errors.New("xapi: missing status")
	ErrInvalidStatusType    = errors.New("xapi: invalid status type")
	ErrInvalidTagType       = errors.New("xapi: invalid tag type")
	ErrDeserialization      = errors.New("xapi: deserialization failed")
	ErrNoResponse           = errors.New("xapi: channel closed without response")
	ErrMissingSessionMarker = errors.New("xapi: login reply missing streamSessionId")
	ErrNotLoggedIn          = errors.New("xapi: no stream session")
	ErrTagInUse             = errors.New("xapi: tag already pending")
	ErrClosed               = errors.New("xapi: connection closed")
)

// ErrorCode is the venue's own error code, carried through unchanged.
type ErrorCode string

func (c ErrorCode) String() string { return string(c) }

// UnmarshalJSON keeps non-string codes as their literal JSON text.
func (c *ErrorCode) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := wire.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ErrorCode(s)
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	*c = ErrorCode(data)
	return nil
}

// TransportError reports a connect, send or receive failure. It is fatal to
// the connection it came from.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("xapi: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is returned when the venue answers a command with status=false.
type RemoteError struct {
	Code        ErrorCode
	Description string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("xapi: remote command failed: %s: %s", e.Code, e.Description)
}

// IsRemoteCode reports whether err is a RemoteError carrying code.
func IsRemoteCode(err error, code ErrorCode) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Code == code
}
