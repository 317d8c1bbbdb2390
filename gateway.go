// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/hashicorp/go-hclog"
)

// Gateway exposes one Client to local tools as a JSON-RPC 2.0 service. All
// callers share the client's venue session.
type Gateway struct {
	client *Client
	logger hclog.Logger
}

// GatewayLoginArgs are the parameters of Gateway.Login.
type GatewayLoginArgs struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

// GatewayLoginReply is the result of Gateway.Login.
type GatewayLoginReply struct {
	StreamSessionID string `json:"streamSessionId"`
}

// GatewayEmpty is used by methods without parameters or result.
type GatewayEmpty struct{}

// GatewayInvokeArgs are the parameters of Gateway.Invoke.
type GatewayInvokeArgs struct {
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// GatewayInvokeReply is the result of Gateway.Invoke.
type GatewayInvokeReply struct {
	ReturnData json.RawMessage `json:"returnData,omitempty"`
}

// RemoteErrorData is attached to JSON-RPC errors caused by venue failures.
type RemoteErrorData struct {
	ErrorCode        ErrorCode `json:"errorCode"`
	ErrorDescription string    `json:"errorDescription"`
}

// NewGatewayHandler returns an http.Handler serving the Gateway service.
func NewGatewayHandler(c *Client, logger hclog.Logger) (http.Handler, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := rpc.NewServer()
	s.RegisterCodec(json2.NewCodec(), "application/json")
	if err := s.RegisterService(&Gateway{client: c, logger: logger.Named("gateway")}, ""); err != nil {
		return nil, err
	}
	return s, nil
}

func (g *Gateway) Login(r *http.Request, args *GatewayLoginArgs, reply *GatewayLoginReply) error {
	if err := g.client.Login(r.Context(), args.UserID, args.Password); err != nil {
		return g.rpcError("login", err)
	}
	reply.StreamSessionID, _ = g.client.StreamSessionID()
	return nil
}

func (g *Gateway) Logout(r *http.Request, _ *GatewayEmpty, _ *GatewayEmpty) error {
	if err := g.client.Logout(r.Context()); err != nil {
		return g.rpcError("logout", err)
	}
	return nil
}

func (g *Gateway) Invoke(r *http.Request, args *GatewayInvokeArgs, reply *GatewayInvokeReply) error {
	if args.Command == "" {
		return &json2.Error{Code: json2.E_INVALID_REQ, Message: "missing command"}
	}
	var params interface{}
	if len(args.Arguments) > 0 {
		params = args.Arguments
	}
	s, err := g.client.Invoke(r.Context(), args.Command, params)
	if err != nil {
		return g.rpcError(args.Command, err)
	}
	reply.ReturnData = s.ReturnData
	return nil
}

func (g *Gateway) rpcError(command string, err error) error {
	var re *RemoteError
	if errors.As(err, &re) {
		return &json2.Error{
			Code:    json2.E_SERVER,
			Message: re.Error(),
			Data:    RemoteErrorData{ErrorCode: re.Code, ErrorDescription: re.Description},
		}
	}
	g.logger.Warn("gateway call failed", "command", command, "error", err)
	return &json2.Error{Code: json2.E_INTERNAL, Message: err.Error()}
}
