// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package h1proto

// Event is the tagged-variant interface implemented by every value that can
// come out of Connection.NextEvent or go into Connection.Send (spec
// section 3 and design note 9). Besides the six wire events, it is also
// implemented by the two sentinel non-event outcomes NeedData and Paused,
// so the event channel never needs a side "is this an event or a control
// signal" out-of-band check — the type switch a caller does on the
// returned Event already answers that.
type Event interface {
	isEvent()
}

// Request is a client→server start-line plus headers.
type Request struct {
	MethodNo Method
	Method   []byte
	Target   []byte
	Headers  Headers
	Version  HTTPVersion
}

// NewRequest validates and builds a Request event. Version defaults to
// HTTP/1.1, the only version Connection.Send accepts on an outgoing
// Request.
func NewRequest(method string, target []byte, headers Headers) (Request, error) {
	m := []byte(method)
	if !validateToken(m) {
		return Request{}, newLocalProtocolError("invalid request method %q", method)
	}
	if len(target) == 0 {
		return Request{}, newLocalProtocolError("empty request target")
	}
	for _, b := range target {
		if !isVisibleTargetChar(b) {
			return Request{}, newLocalProtocolError("invalid byte in request target")
		}
	}
	if err := validateHeaders(headers); err != nil {
		return Request{}, err
	}
	return Request{
		MethodNo: GetMethodNo(m),
		Method:   m,
		Target:   target,
		Headers:  headers,
		Version:  Version11,
	}, nil
}

// InformationalResponse is a server 1xx interim response.
type InformationalResponse struct {
	StatusCode int
	Reason     []byte
	Headers    Headers
	Version    HTTPVersion
}

// NewInformationalResponse validates and builds an InformationalResponse.
func NewInformationalResponse(status int, headers Headers) (InformationalResponse, error) {
	if status < 100 || status > 199 {
		return InformationalResponse{}, newLocalProtocolError("informational status %d out of [100,199]", status)
	}
	if err := validateHeaders(headers); err != nil {
		return InformationalResponse{}, err
	}
	return InformationalResponse{StatusCode: status, Headers: headers, Version: Version11}, nil
}

// Response is a server final response.
type Response struct {
	StatusCode int
	Reason     []byte
	Headers    Headers
	Version    HTTPVersion
}

// NewResponse validates and builds a Response.
func NewResponse(status int, headers Headers) (Response, error) {
	if status < 200 || status > 999 {
		return Response{}, newLocalProtocolError("response status %d out of [200,999]", status)
	}
	if err := validateHeaders(headers); err != nil {
		return Response{}, err
	}
	return Response{StatusCode: status, Headers: headers, Version: Version11}, nil
}

// Data is a slice of message body. ChunkStart/ChunkEnd are
// only meaningful under chunked framing: ChunkStart is set on the first
// Data emitted for a given wire chunk, ChunkEnd on the last (a whole chunk
// coalesced into one Data carries both).
type Data struct {
	Data       []byte
	ChunkStart bool
	ChunkEnd   bool
}

// NewData builds a Data event carrying payload.
func NewData(payload []byte) Data {
	return Data{Data: payload}
}

// EndOfMessage signals the end of a request or response body (spec
// section 3). Headers (trailers) must be empty unless the framing in use
// is chunked.
type EndOfMessage struct {
	Headers Headers
}

// NewEndOfMessage builds an EndOfMessage, optionally carrying trailers.
func NewEndOfMessage(trailers Headers) (EndOfMessage, error) {
	if len(trailers) > 0 {
		if err := validateHeaders(trailers); err != nil {
			return EndOfMessage{}, err
		}
	}
	return EndOfMessage{Headers: trailers}, nil
}

// ConnectionClosed is the half-duplex close signal.
type ConnectionClosed struct{}

// NeedData is returned by Connection.NextEvent when no complete event can
// be produced from the bytes buffered so far; the caller should call
// ReceiveData and try again.
type NeedData struct{}

// Paused is returned by Connection.NextEvent while incoming-byte
// interpretation is suspended: pipelined bytes buffered ahead of a pending
// start_next_cycle, a switch proposal awaiting the server's decision, or a
// completed protocol handoff. Repeated calls keep returning Paused; no
// buffered bytes are interpreted until the caller acts (StartNextCycle, or
// takes ownership of TrailingData after a switch).
type Paused struct{}

func (Request) isEvent()               {}
func (InformationalResponse) isEvent() {}
func (Response) isEvent()              {}
func (Data) isEvent()                  {}
func (EndOfMessage) isEvent()          {}
func (ConnectionClosed) isEvent()      {}
func (NeedData) isEvent()              {}
func (Paused) isEvent()                {}

// validateHeaders checks the invariants every header list must hold
// regardless of direction: no control characters or embedded
// newlines in any name or value (values arriving through Header are
// already OWS-stripped and CTL-checked by the parser; this additionally
// covers headers an embedder built by hand).
func validateHeaders(h Headers) error {
	for _, hdr := range h {
		if !validateToken([]byte(hdr.Name)) {
			return newLocalProtocolError("invalid header name %q", hdr.Name)
		}
		if !validateFieldValue(hdr.Value) {
			return newLocalProtocolError("invalid byte in header %q value", hdr.Name)
		}
	}
	return nil
}
