// Copyright 2022 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package h1proto

import "bytes"

// parseChunkSizeLine parses a complete chunk-size line (RFC 9112 section
// 7.1):
//
//	chunk-size = 1*HEXDIG
//	chunk-ext  = *( ";" chunk-ext-name [ "=" chunk-ext-val ] )
//
// Extensions are recognized only to be discarded; this package never
// preserves chunk extensions. Trailing whitespace before the line
// terminator is tolerated for compatibility with real servers.
func parseChunkSizeLine(line []byte) (uint64, ParseError) {
	body := stripLineTerm(line)
	body = trimTrailingWS(body)
	if idx := bytes.IndexByte(body, ';'); idx >= 0 {
		body = body[:idx]
	}
	body = trimTrailingWS(body)
	if len(body) == 0 {
		return 0, ErrBadChar
	}
	return parseHexUint(body)
}

func trimTrailingWS(b []byte) []byte {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == '\t') {
		end--
	}
	return b[:end]
}
