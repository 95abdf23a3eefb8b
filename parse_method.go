// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package h1proto

import (
	"bytes"

	"github.com/intuitivelabs/bytescase"
)

// Method is the type used to hold the well-known HTTP request methods as a
// numeric constant, so common-case dispatch (does this look like CONNECT?)
// never has to compare strings.
type Method uint8

// method types, see https://www.iana.org/assignments/http-methods
const (
	MUndef Method = iota
	MGet
	MHead
	MPost
	MPut
	MDelete
	MConnect
	MOptions
	MTrace
	MPatch
	MOther // any other token; must be last
)

// method2Name translates between a numeric Method and its canonical ASCII
// spelling.
var method2Name = [MOther + 1][]byte{
	MUndef:   []byte(""),
	MGet:     []byte("GET"),
	MHead:    []byte("HEAD"),
	MPost:    []byte("POST"),
	MPut:     []byte("PUT"),
	MDelete:  []byte("DELETE"),
	MConnect: []byte("CONNECT"),
	MOptions: []byte("OPTIONS"),
	MTrace:   []byte("TRACE"),
	MPatch:   []byte("PATCH"),
	MOther:   []byte("OTHER"),
}

// Name returns the ASCII method name.
func (m Method) Name() []byte {
	if m > MOther {
		return method2Name[MUndef]
	}
	return method2Name[m]
}

// String implements the Stringer interface.
func (m Method) String() string {
	return string(m.Name())
}

// GetMethodNo converts an ASCII method token to its numeric Method value,
// falling back to MOther for any token not in the well-known set (every
// token is still a legal HTTP method; MOther just means "dispatch on the
// raw bytes instead of the fast enum"). Method tokens are case-sensitive
// per RFC 7230, so the fast path below only uses case-folding to pick a
// branch, never to decide a match.
func GetMethodNo(tok []byte) Method {
	if len(tok) < 3 || len(tok) > 7 {
		return MOther
	}
	switch bytescase.ByteToLower(tok[0]) {
	case 'g':
		if bytes.Equal(tok, method2Name[MGet]) {
			return MGet
		}
	case 'h':
		if bytes.Equal(tok, method2Name[MHead]) {
			return MHead
		}
	case 'p':
		switch len(tok) {
		case 3:
			if bytes.Equal(tok, method2Name[MPut]) {
				return MPut
			}
		case 4:
			if bytes.Equal(tok, method2Name[MPost]) {
				return MPost
			}
		case 5:
			if bytes.Equal(tok, method2Name[MPatch]) {
				return MPatch
			}
		}
	case 'd':
		if bytes.Equal(tok, method2Name[MDelete]) {
			return MDelete
		}
	case 'c':
		if bytes.Equal(tok, method2Name[MConnect]) {
			return MConnect
		}
	case 'o':
		if bytes.Equal(tok, method2Name[MOptions]) {
			return MOptions
		}
	case 't':
		if bytes.Equal(tok, method2Name[MTrace]) {
			return MTrace
		}
	}
	return MOther
}

// ProposesProtocolSwitch reports whether a request using this method, with
// the given headers, asks the peer to hand the connection over to another
// protocol once the request finishes: unconditionally for CONNECT (the
// method exists only to open a tunnel), and for any other method that
// carries both an Upgrade header and an "upgrade" Connection token.
func (m Method) ProposesProtocolSwitch(headers Headers) bool {
	if m == MConnect {
		return true
	}
	return len(headers.GetSpecial(hdrUpgrade)) > 0 && hasConnectionToken(headers, "upgrade")
}

// ForcesResponseNoBody reports whether a response carrying status, sent in
// reply to a request that used this method, can never carry a body no
// matter what framing headers are present. A HEAD response never does
// (the recipient is expected to infer what a GET's body length would have
// been instead), and a successful reply to CONNECT marks the start of the
// tunneled protocol rather than an HTTP payload.
func (m Method) ForcesResponseNoBody(status int) bool {
	if m == MHead {
		return true
	}
	return m == MConnect && status >= 200 && status < 300
}
