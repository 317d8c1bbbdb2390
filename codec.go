// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"encoding/json"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Codec encodes command arguments and decodes return data.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

var wire = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONCodec is the codec the venue speaks.
type JSONCodec struct{}

func (JSONCodec) Encode(v interface{}) ([]byte, error) {
	return wire.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v interface{}) error {
	return wire.Unmarshal(data, v)
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}

// Command is the outgoing envelope. Empty optional fields are omitted on the wire.
type Command struct {
	Command         string          `json:"command"`
	Arguments       json.RawMessage `json:"arguments,omitempty"`
	CustomTag       string          `json:"customTag,omitempty"`
	StreamSessionID string          `json:"streamSessionId,omitempty"`
}

// EncodeCommand builds the wire form of one command. A nil args, empty tag or
// empty streamSessionID leaves the corresponding field out.
func EncodeCommand(name string, args interface{}, tag, streamSessionID string) ([]byte, error) {
	return encodeCommand(defaultCodec, name, args, tag, streamSessionID)
}

func encodeCommand(codec Codec, name string, args interface{}, tag, streamSessionID string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("xapi: empty command name")
	}
	cmd := Command{
		Command:         name,
		CustomTag:       tag,
		StreamSessionID: streamSessionID,
	}
	if args != nil {
		raw, err := codec.Encode(args)
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		if string(raw) != "null" {
			cmd.Arguments = raw
		}
	}
	return wire.Marshal(&cmd)
}

// Response is an inbound frame classified by status and tag. The payload is
// kept raw until the caller knows which data shape to expect.
type Response struct {
	Status bool
	// Tag is empty when the frame carried no customTag or a null one.
	Tag string
	Raw json.RawMessage
}

// DecodeResponse classifies one inbound frame.
func DecodeResponse(frame []byte) (*Response, error) {
	var fields map[string]json.RawMessage
	if err := wire.Unmarshal(frame, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedFrame)
	}

	rawStatus, ok := fields["status"]
	if !ok {
		return nil, ErrMissingStatus
	}
	if isNull(rawStatus) {
		return nil, fmt.Errorf("%w: null", ErrInvalidStatusType)
	}
	var status interface{}
	if err := wire.Unmarshal(rawStatus, &status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatusType, err)
	}
	value, isBool := status.(bool)
	if !isBool {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatusType, rawStatus)
	}

	resp := &Response{Status: value, Raw: append(json.RawMessage(nil), frame...)}
	if rawTag, present := fields["customTag"]; present && !isNull(rawTag) {
		var tag interface{}
		if err := wire.Unmarshal(rawTag, &tag); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTagType, err)
		}
		v, isString := tag.(string)
		if !isString {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTagType, rawTag)
		}
		resp.Tag = v
	}
	return resp, nil
}

// isNull reports whether a raw member is JSON null. jsoniter hands back an
// empty RawMessage for a null map value.
func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// Success is the payload of a status=true response.
type Success struct {
	ReturnData      json.RawMessage `json:"returnData,omitempty"`
	StreamSessionID string          `json:"streamSessionId,omitempty"`
	CustomTag       string          `json:"customTag,omitempty"`

	codec Codec
}

// Decode unpacks returnData into v with the codec of the client that received
// it. A missing or null returnData leaves v untouched.
func (s *Success) Decode(v interface{}) error {
	if isNull(s.ReturnData) {
		return nil
	}
	codec := s.codec
	if codec == nil {
		codec = defaultCodec
	}
	if err := codec.Decode(s.ReturnData, v); err != nil {
		return fmt.Errorf("%w: returnData: %v", ErrDeserialization, err)
	}
	return nil
}

// Failure is the payload of a status=false response.
type Failure struct {
	Code        ErrorCode `json:"errorCode"`
	Description string    `json:"errorDescription"`
}

// Err converts the failure into the error handed to callers.
func (f *Failure) Err() error {
	return &RemoteError{Code: f.Code, Description: f.Description}
}

// Success decodes a status=true response.
func (r *Response) Success() (*Success, error) {
	if !r.Status {
		return nil, fmt.Errorf("%w: response has status=false", ErrDeserialization)
	}
	var s Success
	if err := wire.Unmarshal(r.Raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return &s, nil
}

// Failure decodes a status=false response.
func (r *Response) Failure() (*Failure, error) {
	if r.Status {
		return nil, fmt.Errorf("%w: response has status=true", ErrDeserialization)
	}
	var f struct {
		Code        *ErrorCode `json:"errorCode"`
		Description string     `json:"errorDescription"`
	}
	if err := wire.Unmarshal(r.Raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	if f.Code == nil {
		return nil, fmt.Errorf("%w: missing errorCode", ErrDeserialization)
	}
	return &Failure{Code: *f.Code, Description: f.Description}, nil
}

// Result decodes the response into a Success, or returns the venue failure as
// a *RemoteError.
func (r *Response) Result() (*Success, error) {
	if r.Status {
		return r.Success()
	}
	f, err := r.Failure()
	if err != nil {
		return nil, err
	}
	return nil, f.Err()
}
