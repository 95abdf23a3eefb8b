// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package h1proto

import (
	"github.com/intuitivelabs/bytescase"
)

// Header is one entry of an ordered header list: a
// canonical lowercase name, the value with leading/trailing OWS stripped
// (interior whitespace preserved verbatim), and the name exactly as
// received on the wire or supplied by the caller.
type Header struct {
	Name  string // canonical lowercased name
	Value []byte
	Raw   []byte // original casing
}

// Headers is an ordered list of Header entries; insertion order is the
// order they're written to the wire (or the order they were received).
type Headers []Header

// Get returns the value of the first header matching name
// (case-insensitive) and whether one was found.
func (h Headers) Get(name string) ([]byte, bool) {
	for i := range h {
		if bytescase.CmpEq([]byte(h[i].Name), []byte(name)) {
			return h[i].Value, true
		}
	}
	return nil, false
}

// GetAll returns the values of every header matching name
// (case-insensitive), in insertion order.
func (h Headers) GetAll(name string) [][]byte {
	var vals [][]byte
	for i := range h {
		if bytescase.CmpEq([]byte(h[i].Name), []byte(name)) {
			vals = append(vals, h[i].Value)
		}
	}
	return vals
}

// GetSpecial returns the values of every header classifyHdr resolves to
// kind, in insertion order. It is how the engine looks up the handful of
// headers it interprets itself (Content-Length, Transfer-Encoding,
// Connection, Host, Expect, Upgrade), whether the header list came off the
// wire or was built directly by the embedder.
func (h Headers) GetSpecial(kind specialHdr) [][]byte {
	var vals [][]byte
	for i := range h {
		if classifyHdr([]byte(h[i].Name)) == kind {
			vals = append(vals, h[i].Value)
		}
	}
	return vals
}

// specialHdr identifies the small set of headers that change the engine's
// own behavior; every other header is carried
// unexamined.
type specialHdr uint8

const (
	hdrOther specialHdr = iota
	hdrContentLength
	hdrTransferEncoding
	hdrConnection
	hdrHost
	hdrExpect
	hdrUpgrade
)

type hdrName2Type struct {
	n []byte
	t specialHdr
}

var specialHdrNames = [...]hdrName2Type{
	{n: []byte("content-length"), t: hdrContentLength},
	{n: []byte("transfer-encoding"), t: hdrTransferEncoding},
	{n: []byte("connection"), t: hdrConnection},
	{n: []byte("host"), t: hdrHost},
	{n: []byte("expect"), t: hdrExpect},
	{n: []byte("upgrade"), t: hdrUpgrade},
}

const (
	hnBitsLen   uint = 2
	hnBitsFChar uint = 5
)

var specialHdrLookup [1 << (hnBitsLen + hnBitsFChar)][]hdrName2Type

func hashHdrName(n []byte) int {
	if len(n) == 0 {
		return 0
	}
	const (
		mC = (1 << hnBitsFChar) - 1
		mL = (1 << hnBitsLen) - 1
	)
	return (int(bytescase.ByteToLower(n[0])) & mC) |
		((len(n) & mL) << hnBitsFChar)
}

func init() {
	for _, h := range specialHdrNames {
		i := hashHdrName(h.n)
		specialHdrLookup[i] = append(specialHdrLookup[i], h)
	}
}

// classifyHdr returns the specialHdr type for a header name (case
// insensitive; name need not be pre-lowercased).
func classifyHdr(name []byte) specialHdr {
	i := hashHdrName(name)
	for _, h := range specialHdrLookup[i] {
		if bytescase.CmpEq(name, h.n) {
			return h.t
		}
	}
	return hdrOther
}

// canonicalName returns a freshly allocated, lowercased copy of name.
func canonicalName(name []byte) string {
	out := make([]byte, len(name))
	for i, b := range name {
		out[i] = bytescase.ByteToLower(b)
	}
	return string(out)
}

// titlecase returns the conventional "Title-Case" spelling of a canonical
// lowercase header name, used for every header written without a Raw
// spelling: the ones the engine itself injects and any hand-built header
// whose Raw is empty. A header with Raw set keeps that casing instead.
func titlecase(canonical string) string {
	b := []byte(canonical)
	upNext := true
	for i, c := range b {
		if upNext && c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
		upNext = c == '-'
	}
	return string(b)
}

// hasConnectionToken reports whether headers contains a Connection header
// whose comma-separated token list includes tok (case-insensitive).
func hasConnectionToken(h Headers, tok string) bool {
	for _, v := range h.GetSpecial(hdrConnection) {
		for _, part := range splitComma(v) {
			if bytescase.CmpEq(stripOWS(part), []byte(tok)) {
				return true
			}
		}
	}
	return false
}

// splitComma splits a header value on every comma; quotes are not
// recognized. Chunk/transfer
// extensions and quoted strings are not expected in the small set of
// headers this engine interprets (Connection, Transfer-Encoding, Expect,
// Upgrade tokens are all bare tokens), so a plain split is sufficient.
func splitComma(v []byte) [][]byte {
	var parts [][]byte
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			parts = append(parts, v[start:i])
			start = i + 1
		}
	}
	return parts
}

// has100ContinueExpectation reports whether the Expect header's value is
// (case-insensitively) "100-continue".
func has100ContinueExpectation(v []byte) bool {
	return bytescase.CmpEq(stripOWS(v), []byte("100-continue"))
}
