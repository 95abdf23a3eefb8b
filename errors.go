// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package h1proto

import (
	"fmt"

	"github.com/pkg/errors"
)

// ParseError is a lightweight sentinel error returned by the byte-level
// scanners (tokenizer, header-block parser, chunk parser). It carries no
// allocation on the hot per-byte path; unlike an ordinary Go error it is
// cheap to return and compare by value.
type ParseError int8

// sentinel parse error values.
const (
	errOk ParseError = iota
	// ErrMoreBytes means the scanner ran off the end of the buffer before
	// finding what it was looking for; the caller should feed more bytes
	// and retry from the same logical position.
	ErrMoreBytes
	// ErrLineTooLong means a line exceeded Options.MaxLineLength before a
	// terminator was found.
	ErrLineTooLong
	// ErrHeadersTooLong means the header block exceeded
	// Options.MaxHeadersSize before the terminating blank line was found.
	ErrHeadersTooLong
	// ErrBadChar means a disallowed byte (control character, stray
	// whitespace) was found where the grammar does not allow one.
	ErrBadChar
	// ErrEmptyToken means a token production matched zero bytes.
	ErrEmptyToken
	// ErrBadVersion means the HTTP-version token did not match
	// `HTTP/digit.digit`.
	ErrBadVersion
	// ErrBadStatus means the status code was not exactly three digits.
	ErrBadStatus
	// ErrBadMethod means the request method was not a valid token.
	ErrBadMethod
	// ErrNumTooBig means a decimal or hex numeric field overflowed.
	ErrNumTooBig
	// ErrDuplicateHeader means Content-Length occurrences disagree.
	ErrDuplicateHeader
	// ErrConflictingFraming means Content-Length and Transfer-Encoding
	// were both present, or some other framing-selection rule was
	// violated.
	ErrConflictingFraming
	// ErrUnknownTransferCoding means a Transfer-Encoding coding other
	// than "chunked" was present, or "chunked" was not the final coding.
	ErrUnknownTransferCoding
	// ErrMissingHost means an HTTP/1.1 request did not carry exactly one
	// Host header (none, or more than one).
	ErrMissingHost
	// ErrEarlyBinary means the very first byte of a request/status line
	// was non-printable, non-whitespace — almost certainly not HTTP at
	// all (e.g. a TLS ClientHello landed on a plaintext port).
	ErrEarlyBinary
	// ErrTruncatedBody means the peer closed the connection before a
	// Content-Length or chunked body was fully delivered.
	ErrTruncatedBody
)

var parseErrStr = [...]string{
	errOk:                    "ok",
	ErrMoreBytes:             "more bytes needed",
	ErrLineTooLong:           "line too long",
	ErrHeadersTooLong:        "headers too long",
	ErrBadChar:               "unexpected character",
	ErrEmptyToken:            "empty token",
	ErrBadVersion:            "bad HTTP version",
	ErrBadStatus:             "bad status code",
	ErrBadMethod:             "bad request method",
	ErrNumTooBig:             "numeric field too large",
	ErrDuplicateHeader:       "duplicate or conflicting header",
	ErrConflictingFraming:    "conflicting message framing",
	ErrUnknownTransferCoding: "unknown or misplaced transfer coding",
	ErrMissingHost:           "missing Host header",
	ErrEarlyBinary:           "non-HTTP binary data",
	ErrTruncatedBody:         "body truncated before framing was satisfied",
}

// String implements the Stringer interface.
func (e ParseError) String() string {
	if int(e) < 0 || int(e) >= len(parseErrStr) {
		return "invalid parse error"
	}
	return parseErrStr[e]
}

// Error implements the error interface so ParseError can be returned and
// compared either as a sentinel value or wrapped into a Go error.
func (e ParseError) Error() string {
	return e.String()
}

// LocalProtocolError is raised when the embedder asked the engine to do
// something that violates HTTP or the connection's state machine: send an
// illegal event for the current state, build an event with bad field
// values, reset before both sides are DONE, or send after this side has
// already entered ERROR. The side that attempted the violation transitions
// to ERROR.
type LocalProtocolError struct {
	cause error
}

func newLocalProtocolError(format string, args ...interface{}) *LocalProtocolError {
	return &LocalProtocolError{cause: errors.Errorf(format, args...)}
}

func wrapLocalProtocolError(err error, format string, args ...interface{}) *LocalProtocolError {
	return &LocalProtocolError{cause: errors.Wrapf(err, format, args...)}
}

func (e *LocalProtocolError) Error() string {
	return fmt.Sprintf("local protocol error: %s", e.cause)
}

func (e *LocalProtocolError) Unwrap() error { return e.cause }

// RemoteProtocolError is raised when bytes received from the peer do not
// parse, or parse into a message that violates an HTTP invariant (bad
// framing, oversized header block, Content-Length mismatch at EOF, unknown
// transfer coding, non-integer status). The peer's side transitions to
// ERROR.
type RemoteProtocolError struct {
	cause error
}

func newRemoteProtocolError(format string, args ...interface{}) *RemoteProtocolError {
	return &RemoteProtocolError{cause: errors.Errorf(format, args...)}
}

func wrapRemoteProtocolError(err error, format string, args ...interface{}) *RemoteProtocolError {
	return &RemoteProtocolError{cause: errors.Wrapf(err, format, args...)}
}

func (e *RemoteProtocolError) Error() string {
	return fmt.Sprintf("remote protocol error: %s", e.cause)
}

func (e *RemoteProtocolError) Unwrap() error { return e.cause }
