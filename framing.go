// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package h1proto

import "github.com/intuitivelabs/bytescase"

// Framing identifies how a message body's end is delimited (spec
// section 3/4.4/4.5).
type Framing uint8

const (
	// FramingNoBody means the message has no body at all; EndOfMessage
	// follows the header event immediately.
	FramingNoBody Framing = iota
	// FramingContentLength means the body is exactly N bytes, given by
	// the accompanying length.
	FramingContentLength
	// FramingChunked means the body is delimited by RFC 9112 chunked
	// transfer coding.
	FramingChunked
	// FramingReadUntilClose means the body ends when the connection
	// closes (only ever selected for responses with neither
	// Content-Length nor chunked framing).
	FramingReadUntilClose
)

func (f Framing) String() string {
	switch f {
	case FramingNoBody:
		return "no-body"
	case FramingContentLength:
		return "content-length"
	case FramingChunked:
		return "chunked"
	case FramingReadUntilClose:
		return "read-until-close"
	default:
		return "invalid"
	}
}

// contentLengthValue returns the message's declared Content-Length.
// Multiple occurrences are allowed only if every value is identical (spec
// section 4.3); differing values report ErrDuplicateHeader.
func contentLengthValue(h Headers) (n int64, present bool, err ParseError) {
	vals := h.GetSpecial(hdrContentLength)
	if len(vals) == 0 {
		return 0, false, errOk
	}
	first, perr := parseDecimalUint(stripOWS(vals[0]))
	if perr != errOk {
		return 0, true, perr
	}
	for _, v := range vals[1:] {
		other, perr := parseDecimalUint(stripOWS(v))
		if perr != errOk {
			return 0, true, perr
		}
		if other != first {
			return 0, true, ErrDuplicateHeader
		}
	}
	if first > (1<<63 - 1) {
		return 0, true, ErrNumTooBig
	}
	return int64(first), true, errOk
}

// transferEncodingChunked reports whether the message's Transfer-Encoding
// header(s) name exactly "chunked" overall. Any other coding, or more than
// one coding, is rejected: non-chunked transfer encodings aren't supported,
// and "chunked must be the final coding" collapses to "chunked must be the
// only coding" once every other coding is already rejected.
func transferEncodingChunked(h Headers) (chunked bool, present bool, err ParseError) {
	vals := h.GetSpecial(hdrTransferEncoding)
	if len(vals) == 0 {
		return false, false, errOk
	}
	var tokens [][]byte
	for _, v := range vals {
		for _, part := range splitComma(v) {
			if t := stripOWS(part); len(t) > 0 {
				tokens = append(tokens, t)
			}
		}
	}
	if len(tokens) != 1 || !bytescase.CmpEq(tokens[0], []byte("chunked")) {
		return false, true, ErrUnknownTransferCoding
	}
	return true, true, errOk
}

// requestBodyFraming implements the request rows of the body-framing
// table.
func requestBodyFraming(h Headers) (Framing, int64, ParseError) {
	chunked, hasTE, err := transferEncodingChunked(h)
	if err != errOk {
		return 0, 0, err
	}
	cl, hasCL, err := contentLengthValue(h)
	if err != errOk {
		return 0, 0, err
	}
	if hasTE && hasCL {
		return 0, 0, ErrConflictingFraming
	}
	if chunked {
		return FramingChunked, 0, errOk
	}
	if hasCL {
		return FramingContentLength, cl, errOk
	}
	return FramingNoBody, 0, errOk
}

// responseBodyFraming implements the response rows of the body-framing
// table. reqMethod is the method of the request this response answers,
// which decides whether a body is forced absent regardless of framing
// headers (see Method.ForcesResponseNoBody).
func responseBodyFraming(status int, reqMethod Method, h Headers) (Framing, int64, ParseError) {
	if reqMethod.ForcesResponseNoBody(status) || (status >= 100 && status <= 199) || status == 204 || status == 304 {
		return FramingNoBody, 0, errOk
	}
	chunked, hasTE, err := transferEncodingChunked(h)
	if err != errOk {
		return 0, 0, err
	}
	cl, hasCL, err := contentLengthValue(h)
	if err != errOk {
		return 0, 0, err
	}
	if hasTE && hasCL {
		return 0, 0, ErrConflictingFraming
	}
	if chunked {
		return FramingChunked, 0, errOk
	}
	if hasCL {
		return FramingContentLength, cl, errOk
	}
	return FramingReadUntilClose, 0, errOk
}

// selectOutgoingFraming picks the framing for a message this side is about
// to send, injecting a framing header when the embedder didn't supply one
//. isResponse distinguishes a response (where the
// engine auto-selects framing when neither Content-Length nor
// Transfer-Encoding is present) from a request (where the absence of
// either simply means no body: this package never guesses a request body's
// length for the embedder). peerVersion is the other side's advertised
// HTTP version, needed because chunked framing cannot be sent to an
// HTTP/1.0 peer. forceNoBody mirrors responseBodyFraming's unconditional
// no-body rows (HEAD/1xx/204/304/CONNECT 2xx): when set, no framing header
// is injected and the message is sent with no body regardless of what
// headers the embedder supplied, matching what the peer's own reader will
// select for the same status line.
func selectOutgoingFraming(isResponse bool, forceNoBody bool, peerVersion HTTPVersion, headers Headers) (Framing, int64, Headers, error) {
	if forceNoBody {
		return FramingNoBody, 0, headers, nil
	}
	chunked, hasTE, err := transferEncodingChunked(headers)
	if err != errOk {
		return 0, 0, nil, wrapLocalProtocolError(err, "invalid outgoing Transfer-Encoding")
	}
	cl, hasCL, err := contentLengthValue(headers)
	if err != errOk {
		return 0, 0, nil, wrapLocalProtocolError(err, "invalid outgoing Content-Length")
	}
	if hasTE && hasCL {
		return 0, 0, nil, newLocalProtocolError("cannot set both Content-Length and Transfer-Encoding")
	}
	if hasCL {
		return FramingContentLength, cl, headers, nil
	}
	if chunked {
		if !peerVersion.AtLeast11() {
			return 0, 0, nil, newLocalProtocolError("cannot send chunked transfer encoding to an HTTP/1.0 peer")
		}
		return FramingChunked, 0, headers, nil
	}
	if !isResponse {
		return FramingNoBody, 0, headers, nil
	}
	if peerVersion.AtLeast11() {
		headers = append(headers, injectedHeader("transfer-encoding", "chunked"))
		return FramingChunked, 0, headers, nil
	}
	if !hasConnectionToken(headers, "close") {
		headers = append(headers, injectedHeader("connection", "close"))
	}
	return FramingReadUntilClose, 0, headers, nil
}
