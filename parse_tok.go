// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE_BSD.txt file in the root of the source
// tree.

package h1proto

// lexical primitives shared by the request-line/status-line, header-block
// and chunk-size scanners. Every helper here is a
// single linear pass over the slice it's given; none of them re-scan bytes
// a caller already consumed, matching the "bounded time, bounded memory per
// input byte" requirement.

// isTokenChar reports whether b is a valid RFC 7230 "tchar":
//
//	tchar = "!" / "#" / "$" / "%" / "&" / "'" / "*"
//	      / "+" / "-" / "." / "^" / "_" / "`" / "|" / "~"
//	      / DIGIT / ALPHA
var tokenCharTable = func() [256]bool {
	var t [256]bool
	for c := '0'; c <= '9'; c++ {
		t[c] = true
	}
	for c := 'a'; c <= 'z'; c++ {
		t[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		t[c] = true
	}
	for _, c := range "!#$%&'*+-.^_`|~" {
		t[c] = true
	}
	return t
}()

func isTokenChar(b byte) bool { return tokenCharTable[b] }

// skipToken advances i while buf[i] is a tchar, returning the offset of the
// first non-tchar byte (or len(buf) if the token runs off the end).
func skipToken(buf []byte, i int) int {
	for i < len(buf) && isTokenChar(buf[i]) {
		i++
	}
	return i
}

// isCTL reports whether b is an ASCII control character. HTAB counts as
// one; callers that allow it check for it before calling isCTL.
func isCTL(b byte) bool {
	return b < 0x20 || b == 0x7f
}

// validateToken reports whether tok is non-empty and entirely tchar — used
// to validate a parsed method.
func validateToken(tok []byte) bool {
	if len(tok) == 0 {
		return false
	}
	for _, b := range tok {
		if !isTokenChar(b) {
			return false
		}
	}
	return true
}

// validateFieldValue reports whether v contains no control characters
// (besides plain HTAB, which is allowed inside a header value) and no
// embedded CR/LF, the invariant header values, request targets and
// reason phrases must hold once OWS has been stripped.
func validateFieldValue(v []byte) bool {
	for _, b := range v {
		if b == '\t' {
			continue
		}
		if isCTL(b) {
			return false
		}
	}
	return true
}

// isVisibleTargetChar reports whether b is allowed inside a request
// target: any visible (printable, non-space) ASCII byte, plus the small
// vetted set of bytes RFC 7230's request-target grammar allows there
// (percent-encoding, URI reserved/unreserved characters). Whitespace and
// control bytes are never allowed.
func isVisibleTargetChar(b byte) bool {
	return b > 0x20 && b < 0x7f
}

// stripOWS trims leading/trailing "optional whitespace" (SP/HTAB only —
// RFC 7230's OWS) from v, preserving interior whitespace verbatim.
func stripOWS(v []byte) []byte {
	start := 0
	for start < len(v) && (v[start] == ' ' || v[start] == '\t') {
		start++
	}
	end := len(v)
	for end > start && (v[end-1] == ' ' || v[end-1] == '\t') {
		end--
	}
	return v[start:end]
}

// parseDecimalUint parses an unsigned decimal integer with no leading
// sign, no leading '+', and no embedded separators — exactly what
// Content-Length's grammar allows. An empty slice, a non-digit byte, or
// overflow past 1<<63 - 1 all yield ErrBadChar/ErrNumTooBig.
func parseDecimalUint(v []byte) (uint64, ParseError) {
	if len(v) == 0 {
		return 0, ErrBadChar
	}
	var n uint64
	for _, b := range v {
		if b < '0' || b > '9' {
			return 0, ErrBadChar
		}
		d := uint64(b - '0')
		if n > (1<<63-1-d)/10 {
			return 0, ErrNumTooBig
		}
		n = n*10 + d
	}
	return n, errOk
}

// parseHexUint parses an unsigned hexadecimal integer, as used in chunk
// size lines (RFC 9112 section 7.1: "chunk-size = 1*HEXDIG").
func parseHexUint(v []byte) (uint64, ParseError) {
	if len(v) == 0 {
		return 0, ErrBadChar
	}
	var n uint64
	for i, b := range v {
		var d uint64
		switch {
		case b >= '0' && b <= '9':
			d = uint64(b - '0')
		case b >= 'a' && b <= 'f':
			d = uint64(b-'a') + 10
		case b >= 'A' && b <= 'F':
			d = uint64(b-'A') + 10
		default:
			return 0, ErrBadChar
		}
		if i >= 16 {
			return 0, ErrNumTooBig
		}
		n = n<<4 | d
	}
	return n, errOk
}
