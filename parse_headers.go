// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package h1proto

import "bytes"

// parseHeaderBlock parses a complete header block: zero
// or more header lines, each either "name: OWS value OWS CRLF" or an
// "obsolete line folding" continuation line whose leading SP/HTAB marks it
// as a continuation of the previous header's value, terminated by a blank
// line. Like parseRequestLine/parseStatusLine, this is never called with a
// partial block — recvBuffer.findHeadersEnd only succeeds once the whole
// block (through the terminating blank line) is buffered — so there is no
// resumable cross-call state to carry.
func parseHeaderBlock(block []byte) (Headers, ParseError) {
	var hdrs Headers
	var curName string
	var curRaw []byte
	var curVal []byte
	haveCur := false

	flush := func() {
		if haveCur {
			hdrs = append(hdrs, Header{
				Name:  curName,
				Value: append([]byte(nil), curVal...),
				Raw:   append([]byte(nil), curRaw...),
			})
		}
	}

	pos := 0
	for pos < len(block) {
		end := bytes.IndexByte(block[pos:], '\n')
		if end < 0 {
			// unreachable: findHeadersEnd guarantees every line up to and
			// including the blank line ends in '\n'.
			return nil, ErrBadChar
		}
		end += pos + 1
		body := stripLineTerm(block[pos:end])
		pos = end

		if len(body) == 0 {
			break // blank line: end of header block
		}

		if body[0] == ' ' || body[0] == '\t' {
			if !haveCur {
				return nil, ErrBadChar
			}
			cont := stripOWS(body)
			if len(cont) > 0 {
				curVal = append(curVal, ' ')
				curVal = append(curVal, cont...)
			}
			continue
		}

		flush()
		haveCur = false

		colon := bytes.IndexByte(body, ':')
		if colon <= 0 {
			return nil, ErrBadChar
		}
		name := body[:colon]
		if !validateToken(name) {
			// covers whitespace inside the name or between the name and
			// the colon: neither SP nor HTAB is a tchar.
			return nil, ErrBadChar
		}
		val := stripOWS(body[colon+1:])
		if !validateFieldValue(val) {
			return nil, ErrBadChar
		}

		curName = canonicalName(name)
		curRaw = name
		curVal = append([]byte(nil), val...)
		haveCur = true
	}
	flush()
	return hdrs, errOk
}
