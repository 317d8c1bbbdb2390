// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeCommandOmitsAbsentFields(t *testing.T) {
	frame, err := EncodeCommand("logout", nil, "", "")
	require.NoError(t, err)
	require.JSONEq(t, `{"command":"logout"}`, string(frame))
	require.NotContains(t, string(frame), "null")
}

func TestEncodeCommandAllFields(t *testing.T) {
	frame, err := EncodeCommand("login", LoginArgs{UserID: "u1", Password: "p1"}, "cmd_1", "abc")
	require.NoError(t, err)
	require.JSONEq(t, `{
		"command": "login",
		"arguments": {"userId": "u1", "password": "p1"},
		"customTag": "cmd_1",
		"streamSessionId": "abc"
	}`, string(frame))
}

func TestEncodeCommandRejectsEmptyName(t *testing.T) {
	_, err := EncodeCommand("", nil, "cmd_1", "")
	require.Error(t, err)
}

func TestCommandRoundTrip(t *testing.T) {
	args := map[string]string{"symbol": "EURUSD"}
	frame, err := EncodeCommand("getSymbol", args, "cmd_42", "")
	require.NoError(t, err)

	var cmd Command
	require.NoError(t, json.Unmarshal(frame, &cmd))
	require.Equal(t, "getSymbol", cmd.Command)
	require.Equal(t, "cmd_42", cmd.CustomTag)
	require.JSONEq(t, `{"symbol":"EURUSD"}`, string(cmd.Arguments))

	resp, err := DecodeResponse([]byte(reply(cmd, nil)))
	require.NoError(t, err)
	require.True(t, resp.Status)
	require.Equal(t, cmd.CustomTag, resp.Tag)
}

func TestDecodeResponseErrors(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		want  error
	}{
		{"not json", `hello`, ErrMalformedFrame},
		{"array", `[1,2]`, ErrMalformedFrame},
		{"string", `"status"`, ErrMalformedFrame},
		{"null", `null`, ErrMalformedFrame},
		{"missing status", `{"customTag":"cmd_1"}`, ErrMissingStatus},
		{"string status", `{"status":"true"}`, ErrInvalidStatusType},
		{"null status", `{"status":null}`, ErrInvalidStatusType},
		{"numeric status", `{"status":1}`, ErrInvalidStatusType},
		{"numeric tag", `{"status":true,"customTag":5}`, ErrInvalidTagType},
		{"object tag", `{"status":true,"customTag":{"a":1}}`, ErrInvalidTagType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := DecodeResponse([]byte(tc.frame))
			require.ErrorIs(t, err, tc.want)
			require.Nil(t, resp)
		})
	}
}

func TestDecodeResponseTag(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"status":true}`))
	require.NoError(t, err)
	require.Empty(t, resp.Tag)

	resp, err = DecodeResponse([]byte(`{"status":false,"customTag":null}`))
	require.NoError(t, err)
	require.False(t, resp.Status)
	require.Empty(t, resp.Tag)

	resp, err = DecodeResponse([]byte(`{"customTag":null,"status":true}`))
	require.NoError(t, err)
	require.True(t, resp.Status)
	require.Empty(t, resp.Tag)

	resp, err = DecodeResponse([]byte(`{"status":true,"customTag":"cmd_7"}`))
	require.NoError(t, err)
	require.Equal(t, "cmd_7", resp.Tag)
}

func TestResponseSuccess(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"status":true,"customTag":"cmd_1","streamSessionId":"abc","returnData":{"version":"2.5.0"}}`))
	require.NoError(t, err)

	s, err := resp.Success()
	require.NoError(t, err)
	require.Equal(t, "abc", s.StreamSessionID)
	require.Equal(t, "cmd_1", s.CustomTag)

	var data struct {
		Version string `json:"version"`
	}
	require.NoError(t, s.Decode(&data))
	require.Equal(t, "2.5.0", data.Version)

	var wrong []int
	require.ErrorIs(t, s.Decode(&wrong), ErrDeserialization)

	_, err = resp.Failure()
	require.ErrorIs(t, err, ErrDeserialization)
}

func TestResponseFailure(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"status":false,"customTag":"cmd_2","errorCode":"BE118","errorDescription":"User already logged"}`))
	require.NoError(t, err)

	_, err = resp.Success()
	require.ErrorIs(t, err, ErrDeserialization)

	f, err := resp.Failure()
	require.NoError(t, err)
	require.Equal(t, ErrorCode("BE118"), f.Code)
	require.Equal(t, "User already logged", f.Description)

	s, err := resp.Result()
	require.Nil(t, s)
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	require.Equal(t, ErrorCode("BE118"), re.Code)
	require.Equal(t, "User already logged", re.Description)
	require.True(t, IsRemoteCode(err, "BE118"))
}

func TestResponseFailureCodeIsOpaque(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"status":false,"errorCode":37,"errorDescription":"x"}`))
	require.NoError(t, err)
	f, err := resp.Failure()
	require.NoError(t, err)
	require.Equal(t, ErrorCode("37"), f.Code)
}

func TestResponseFailureEscapedCode(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"status":false,"errorCode":"\u0042E1","errorDescription":"x"}`))
	require.NoError(t, err)
	f, err := resp.Failure()
	require.NoError(t, err)
	require.Equal(t, ErrorCode("BE1"), f.Code)
}

func TestSuccessDecodeNullReturnData(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"status":true,"returnData":null}`))
	require.NoError(t, err)
	s, err := resp.Success()
	require.NoError(t, err)
	n := 7
	require.NoError(t, s.Decode(&n))
	require.Equal(t, 7, n)
}

func TestResponseFailureMissingCode(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"status":false,"errorDescription":"x"}`))
	require.NoError(t, err)
	_, err = resp.Result()
	require.ErrorIs(t, err, ErrDeserialization)
}
